package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

// HealthChecker tracks per-task health from the engine's event stream.
// A task is degraded after failureThreshold consecutive failures and
// healthy again on its next success
type HealthChecker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	consumer engine.EventConsumer
	tasks    map[api.TaskName]*api.TaskHealth
	mu       sync.RWMutex
}

const (
	serviceName = "flume"

	healthCheckInterval = 30 * time.Second
	failureThreshold    = 3
)

// NewHealthChecker creates a health checker fed by the engine's event hub
func NewHealthChecker(eng *engine.Engine) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthChecker{
		ctx:      ctx,
		cancel:   cancel,
		consumer: eng.Subscribe(),
		tasks:    map[api.TaskName]*api.TaskHealth{},
	}
}

func (h *HealthChecker) Start() {
	go h.reviewLoop()
	go h.eventLoop()
}

func (h *HealthChecker) Stop() {
	h.cancel()
	h.consumer.Close()
}

// TaskHealth returns a snapshot of every observed task, ordered by name
func (h *HealthChecker) TaskHealth() []*api.TaskHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	res := make([]*api.TaskHealth, 0, len(h.tasks))
	for _, th := range h.tasks {
		snap := *th
		res = append(res, &snap)
	}
	sort.Slice(res, func(l, r int) bool {
		return res[l].Task < res[r].Task
	})
	return res
}

// TaskHealthFor returns the health entry for a single task
func (h *HealthChecker) TaskHealthFor(name api.TaskName) (*api.TaskHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	th, ok := h.tasks[name]
	if !ok {
		return nil, false
	}
	snap := *th
	return &snap, true
}

// Degraded returns the names of tasks currently considered degraded
func (h *HealthChecker) Degraded() []api.TaskName {
	var res []api.TaskName
	for _, th := range h.TaskHealth() {
		if th.Status == api.HealthDegraded {
			res = append(res, th.Task)
		}
	}
	return res
}

func (h *HealthChecker) eventLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case event, ok := <-h.consumer.Receive():
			if !ok {
				return
			}
			h.handleTaskResult(event)
		}
	}
}

func (h *HealthChecker) handleTaskResult(event *api.Event) {
	switch event.Type {
	case api.EventTypeTaskCompleted:
		h.recordSuccess(event)
	case api.EventTypeTaskFailed:
		h.recordFailure(event)
	}
}

func (h *HealthChecker) recordSuccess(event *api.Event) {
	now := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	th := h.taskEntry(event.Task)
	th.Successes++
	th.Consecutive = 0
	th.Status = api.HealthHealthy
	th.LastSuccess = &now
	th.LastError = ""
}

func (h *HealthChecker) recordFailure(event *api.Event) {
	now := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	th := h.taskEntry(event.Task)
	th.Failures++
	th.Consecutive++
	th.LastFailure = &now
	th.LastError = event.Error
	if th.Consecutive >= failureThreshold {
		th.Status = api.HealthDegraded
	}
}

func (h *HealthChecker) taskEntry(name api.TaskName) *api.TaskHealth {
	th, ok := h.tasks[name]
	if !ok {
		th = &api.TaskHealth{
			Task:   name,
			Status: api.HealthHealthy,
		}
		h.tasks[name] = th
	}
	return th
}

func (h *HealthChecker) reviewLoop() {
	slog.Info("Health checker started")
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.reportDegraded()
		}
	}
}

func (h *HealthChecker) reportDegraded() {
	degraded := h.Degraded()
	if len(degraded) == 0 {
		return
	}
	slog.Warn("Tasks degraded",
		slog.Any("tasks", degraded))
}

func (s *Server) handleHealth(c *gin.Context) {
	status := api.HealthHealthy
	if len(s.health.Degraded()) > 0 {
		status = api.HealthDegraded
	}

	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  string(status),
		Service: serviceName,
	})
}

func (s *Server) listTaskHealth(c *gin.Context) {
	tasks := s.health.TaskHealth()
	c.JSON(http.StatusOK, api.TaskHealthListResponse{
		Tasks: tasks,
		Count: len(tasks),
	})
}

func (s *Server) getTaskHealth(c *gin.Context) {
	taskName := api.TaskName(c.Param("taskName"))

	th, ok := s.health.TaskHealthFor(taskName)
	if !ok {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("No health recorded for task: %s", taskName),
			Status: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, th)
}
