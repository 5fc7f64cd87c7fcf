// Package metrics reports training and stylization progress to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gostyle"

// Metrics holds the collectors updated by the style engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	TrainSteps   prometheus.Counter
	ContentLoss  prometheus.Gauge
	StyleLoss    prometheus.Gauge
	StepDuration prometheus.Histogram
	Evals        prometheus.Counter
}

// New registers the collectors with reg. It returns nil when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		TrainSteps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "train_steps_total",
			Help:      "Number of completed training steps",
		}),
		ContentLoss: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "content_loss",
			Help:      "Content loss of the most recent training step",
		}),
		StyleLoss: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "style_loss",
			Help:      "Style loss of the most recent training step",
		}),
		StepDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of a training step",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		Evals: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_total",
			Help:      "Number of stylized batches produced in evaluation mode",
		}),
	}
}

// ObserveTrain records one training step.
func (m *Metrics) ObserveTrain(contentLoss, styleLoss float64, took time.Duration) {
	if m == nil {
		return
	}
	m.TrainSteps.Inc()
	m.ContentLoss.Set(contentLoss)
	m.StyleLoss.Set(styleLoss)
	m.StepDuration.Observe(took.Seconds())
}

// ObserveEval records one evaluation call.
func (m *Metrics) ObserveEval() {
	if m == nil {
		return
	}
	m.Evals.Inc()
}
