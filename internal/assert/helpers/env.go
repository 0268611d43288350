package helpers

import (
	"testing"

	"github.com/flumeworks/flume/internal/config"
	"github.com/flumeworks/flume/internal/engine"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine   *engine.Engine
	Registry *engine.Registry
	Config   *config.Config
	Cleanup  func()
}

// NewTestConfig creates a default configuration with debug logging enabled
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	return cfg
}

// NewTestEngine creates a fully configured test engine environment with an
// empty task registry
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()

	cfg := NewTestConfig()
	reg := engine.NewRegistry()
	eng := engine.New(cfg, reg)

	return &TestEngineEnv{
		Engine:   eng,
		Registry: reg,
		Config:   cfg,
		Cleanup: func() {
			eng.Close()
		},
	}
}

// WithTestEnv creates a test engine environment, executes the provided
// function with it, and ensures cleanup happens automatically
func WithTestEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	testEnv := NewTestEngine(t)
	defer testEnv.Cleanup()
	fn(testEnv)
}

// WithEngine creates a test engine, executes the provided function with it,
// and ensures cleanup happens automatically
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}
