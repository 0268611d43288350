package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

// Metrics aggregates engine events into Prometheus collectors
type Metrics struct {
	registry  *prometheus.Registry
	consumer  engine.EventConsumer
	flows     prometheus.Counter
	execs     *prometheus.CounterVec
	tasks     *prometheus.CounterVec
	durations prometheus.Histogram
}

// NewMetrics creates the Prometheus registry and collectors, fed by the
// engine's event hub
func NewMetrics(eng *engine.Engine) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		consumer: eng.Subscribe(),
		flows: factory.NewCounter(prometheus.CounterOpts{
			Name: "flume_flows_registered_total",
			Help: "Number of flow definitions registered.",
		}),
		execs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flume_executions_total",
			Help: "Executions reaching a terminal status.",
		}, []string{"status"}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flume_task_results_total",
			Help: "Task results by outcome status.",
		}, []string{"status"}),
		durations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flume_task_duration_seconds",
			Help:    "Task handler execution time in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Start() {
	go m.eventLoop()
}

func (m *Metrics) Stop() {
	m.consumer.Close()
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(
		m.registry, promhttp.HandlerOpts{},
	))
}

func (m *Metrics) eventLoop() {
	for event := range m.consumer.Receive() {
		m.observe(event)
	}
}

func (m *Metrics) observe(event *api.Event) {
	switch event.Type {
	case api.EventTypeFlowRegistered:
		m.flows.Inc()

	case api.EventTypeTaskCompleted:
		m.tasks.WithLabelValues(string(api.TaskSuccess)).Inc()
		m.durations.Observe(event.Duration)

	case api.EventTypeTaskFailed:
		m.tasks.WithLabelValues(string(api.TaskFailure)).Inc()
		m.durations.Observe(event.Duration)

	case api.EventTypeExecutionCompleted,
		api.EventTypeExecutionFailed,
		api.EventTypeExecutionError:
		m.execs.WithLabelValues(string(event.Status)).Inc()
	}
}
