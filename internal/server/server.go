package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/flumeworks/flume/internal/config"
	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/util"
)

// Server implements the HTTP API server for the workflow engine
type Server struct {
	engine  *engine.Engine
	config  *config.Config
	health  *HealthChecker
	metrics *Metrics
	sockets util.Set[*Client]
	clients int
	mu      sync.Mutex
}

// NewServer creates a new HTTP API server around an engine
func NewServer(eng *engine.Engine, cfg *config.Config) *Server {
	return &Server{
		engine:  eng,
		config:  cfg,
		health:  NewHealthChecker(eng),
		metrics: NewMetrics(eng),
		sockets: util.Set[*Client]{},
	}
}

// Start launches the server's background monitors
func (s *Server) Start() {
	s.health.Start()
	s.metrics.Start()
}

// Stop halts the background monitors and closes all WebSocket clients
func (s *Server) Stop() {
	s.health.Stop()
	s.metrics.Stop()
	s.CloseWebSockets()
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health and monitoring
	router.GET("/health", s.handleHealth)
	router.GET("/health/tasks", s.listTaskHealth)
	router.GET("/health/tasks/:taskName", s.getTaskHealth)
	router.GET("/metrics", s.metrics.Handler())

	// Flow endpoints
	flows := router.Group("/flows")
	{
		flows.POST("", s.createFlow)
		flows.GET("", s.listFlows)
		flows.POST("/execute", s.executeFlow)
		flows.GET("/:flowID", s.getFlow)
	}

	// Execution endpoints
	execs := router.Group("/executions")
	{
		execs.GET("", s.listExecutions)
		execs.GET("/:executionID", s.getExecution)
	}

	// WebSocket
	router.GET("/engine/ws", s.handleWebSocket)

	return router
}

// reserveClient claims a connection slot ahead of the upgrade, so the
// limit holds before a rejected client ever sees a handshake
func (s *Server) reserveClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients >= s.config.MaxClients {
		return false
	}
	s.clients++
	return true
}

func (s *Server) releaseClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients--
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
	s.clients--
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
