// Package engine implements the core workflow execution engine
//
// This package contains flow validation, the task registry, the execution
// state machine, script environments, and the event hub that feeds the
// server's WebSocket clients and metrics
package engine
