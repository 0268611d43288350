// Package server implements the HTTP API server for the workflow engine
//
// This package provides REST endpoints for registering and executing
// flows, querying executions, health checks, Prometheus metrics, and a
// WebSocket stream of engine events
package server
