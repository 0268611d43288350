// Package api defines the core data types for the flow engine
//
// This package contains all the shared types used across the engine,
// including flow definitions, execution state, task results, events, and
// HTTP messages
package api
