package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/flumeworks/flume"
	"github.com/flumeworks/flume/internal/config"
	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/internal/server"
	"github.com/flumeworks/flume/internal/tasks"
	"github.com/flumeworks/flume/pkg/log"
)

type flume struct {
	cfg        *config.Config
	registry   *engine.Registry
	engine     *engine.Engine
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &flume{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *flume) run() error {
	if err := s.initializeEngine(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *flume) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	logger := log.NewWithLevel(
		app.Name, s.cfg.Environment, app.Version, level,
	)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Flume engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort),
		slog.Int("max_context_bytes", s.cfg.MaxContextBytes),
		slog.String("script_dir", s.cfg.ScriptDir))
}

func (s *flume) initializeEngine() error {
	s.registry = engine.NewRegistry()
	if err := s.registry.RegisterAll(tasks.Handlers()); err != nil {
		return err
	}

	s.engine = engine.New(s.cfg, s.registry)

	if s.cfg.ScriptDir != "" {
		err := s.engine.Scripts().LoadDir(s.registry, s.cfg.ScriptDir)
		if err != nil {
			s.engine.Close()
			return err
		}
	}

	if err := s.engine.RegisterFlow(tasks.PipelineFlow()); err != nil {
		s.engine.Close()
		return err
	}
	return nil
}

func (s *flume) startServer() {
	s.apiServer = server.NewServer(s.engine, s.cfg)
	s.apiServer.Start()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: s.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *flume) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.Stop()
	s.engine.Close()

	slog.Info("Server exited")
}
