package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/log"
)

type (
	// Client represents a WebSocket client connection for event streaming.
	// A client receives no events until it sends a subscribe message
	Client struct {
		conn      *websocket.Conn
		consumer  engine.EventConsumer
		getState  StateFunc
		onClose   func(*Client)
		sub       *api.ClientSubscription
		closeOnce sync.Once
	}

	// StateFunc retrieves the current state of an execution so it can be
	// included with a subscription acknowledgement
	StateFunc func(api.ExecutionID) (*api.ExecutionState, error)
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades an HTTP connection to WebSocket and starts
// streaming engine events based on the client's subscription. Connections
// beyond the configured client limit are refused before the upgrade
func (s *Server) handleWebSocket(c *gin.Context) {
	if !s.reserveClient() {
		slog.Warn("WebSocket client limit reached",
			slog.Int("max_clients", s.config.MaxClients))
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{
			Error:  "too many event stream clients",
			Status: http.StatusServiceUnavailable,
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.releaseClient()
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		consumer: s.engine.Subscribe(),
		getState: s.engine.Execution,
		onClose:  s.unregisterWebSocket,
	}
	s.registerWebSocket(client)

	go client.run()
}

// Close terminates the client's event consumer, ending its run loop
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.consumer.Close()
	})
}

func (c *Client) run() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			c.handleSubscribe(message)

		case event, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendEventIfMatched(event) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		incoming <- message
	}
}

func (c *Client) handleSubscribe(message []byte) {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.Error(err))
		return
	}

	if sub.Type != "subscribe" {
		return
	}

	c.sub = &sub.Data
	c.sendSubscribed(sub.Data.ExecutionID)
}

func (c *Client) sendSubscribed(id api.ExecutionID) {
	msg := api.SubscribedResult{Type: "subscribed"}
	if id != "" && c.getState != nil {
		msg.Data = c.stateData(id)
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			slog.String("context", "subscribed"),
			log.Error(err))
	}
}

func (c *Client) stateData(id api.ExecutionID) json.RawMessage {
	st, err := c.getState(id)
	if err != nil {
		slog.Error("Failed to get execution for subscription",
			log.ExecutionID(id),
			log.Error(err))
		return nil
	}

	data, err := json.Marshal(st)
	if err != nil {
		slog.Error("Failed to marshal execution state",
			log.ExecutionID(id),
			log.Error(err))
		return nil
	}
	return data
}

func (c *Client) sendEventIfMatched(ev *api.Event) bool {
	if c.sub == nil || !c.sub.Matches(ev) {
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
