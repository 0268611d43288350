// Package flume is a workflow engine that executes task graphs defined as
// flows, with conditional routing, scripted tasks, and an HTTP API
package flume

const (
	// Name identifies the application in logs and diagnostics
	Name = "flume"

	// Version is the application release version
	Version = "0.1.0"
)
