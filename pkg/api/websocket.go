package api

import "encoding/json"

type (
	// SubscribeRequest is sent by clients to narrow which events they
	// receive. An absent filter field matches everything
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription configures which events a WebSocket client receives
	ClientSubscription struct {
		FlowID      FlowID      `json:"flow_id,omitempty"`
		ExecutionID ExecutionID `json:"execution_id,omitempty"`
		EventTypes  []EventType `json:"event_types,omitempty"`
	}

	// SubscribedResult is sent to a client on subscribe, carrying the
	// current state of the subscribed execution when one was named
	SubscribedResult struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data,omitempty"`
	}
)

// Matches returns true if the event passes the subscription's filters
func (s *ClientSubscription) Matches(ev *Event) bool {
	if s.FlowID != "" && ev.FlowID != s.FlowID {
		return false
	}
	if s.ExecutionID != "" && ev.ExecutionID != s.ExecutionID {
		return false
	}
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, t := range s.EventTypes {
		if ev.Type == t {
			return true
		}
	}
	return false
}
