// Package util provides common utility functions and data structures
//
// This package includes the generic set implementation, state transition
// helpers, and the LRU cache used throughout the workflow engine
package util
