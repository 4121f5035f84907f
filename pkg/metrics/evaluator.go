package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluator bundles the Prometheus collectors exported by the service.
type Evaluator struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	GradesTotal     *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	FieldRejections *prometheus.CounterVec
}

var (
	evaluatorOnce     sync.Once
	evaluatorInstance *Evaluator
)

// NewEvaluator registers the collectors once per process and returns them.
func NewEvaluator() *Evaluator {
	evaluatorOnce.Do(func() {
		evaluatorInstance = &Evaluator{
			RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "evaluator_runs_total",
				Help: "Evaluation runs by terminal status",
			}, []string{"status"}),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "evaluator_run_duration_seconds",
				Help:    "Wall clock duration of evaluation runs",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
			GradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "evaluator_grades_total",
				Help: "Graded questions by kind (answer, retrieval) and score",
			}, []string{"kind", "score"}),
			ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "evaluator_active_sessions",
				Help: "Playground sessions currently mounted",
			}),
			FieldRejections: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "evaluator_config_rejections_total",
				Help: "Configuration edits rejected by field",
			}, []string{"field"}),
		}
	})
	return evaluatorInstance
}

func (m *Evaluator) RunFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		m.RunDuration.Observe(elapsed.Seconds())
	}
}

func (m *Evaluator) Graded(kind, score string) {
	if m == nil {
		return
	}
	m.GradesTotal.WithLabelValues(kind, score).Inc()
}

func (m *Evaluator) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Evaluator) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Evaluator) FieldRejected(field string) {
	if m == nil {
		return
	}
	m.FieldRejections.WithLabelValues(field).Inc()
}
