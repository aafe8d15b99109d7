// Package metrics exposes Prometheus instrumentation for graph queries and HTTP
// requests.
package metrics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/The24thDS/karen-backend/internal/neopersist"
)

const namespace = "karen"

// Metrics holds every collector of the process.
type Metrics struct {
	QueryDuration   *prometheus.HistogramVec
	QueryTotal      *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "query_duration_seconds",
				Help:      "Graph query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"clause", "status"},
		),
		QueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "queries_total",
				Help:      "Total number of graph queries",
			},
			[]string{"clause", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		RequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// clause is the leading keyword of a query, used as a low-cardinality label.
func clause(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	kw := strings.ToUpper(fields[0])
	if kw == "OPTIONAL" && len(fields) > 1 {
		kw += "_" + strings.ToUpper(fields[1])
	}
	return kw
}

func (m *Metrics) observe(query string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c := clause(query)
	m.QueryDuration.WithLabelValues(c, status).Observe(time.Since(start).Seconds())
	m.QueryTotal.WithLabelValues(c, status).Inc()
}

type runner struct {
	next neopersist.DBRunner
	m    *Metrics
}

func (r *runner) Run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	start := time.Now()
	res, err := r.next.Run(ctx, query, params)
	r.m.observe(query, start, err)
	return res, err
}

type txRunner struct {
	runner
	tx neopersist.TxRunner
}

func (r *txRunner) ExecuteWrite(ctx context.Context, work func(tx neopersist.DBRunner) error) error {
	return r.tx.ExecuteWrite(ctx, func(tx neopersist.DBRunner) error {
		return work(&runner{next: tx, m: r.m})
	})
}

// InstrumentRunner wraps next so every query is timed and counted. The wrapper
// keeps transaction support when next has it.
func (m *Metrics) InstrumentRunner(next neopersist.DBRunner) neopersist.DBRunner {
	if tx, ok := next.(neopersist.TxRunner); ok {
		return &txRunner{runner: runner{next: next, m: m}, tx: tx}
	}
	return &runner{next: next, m: m}
}

// Middleware records every request under its route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.RequestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
