package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

const resultOK = "ok"

// Validation counts and times payload checks by flow and outcome.
type Validation struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) (*Validation, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Validation{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgauth",
			Name:      "validations_total",
			Help:      "Telegram payload validations by flow and result.",
		}, []string{"flow", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tgauth",
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating Telegram payloads.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		}, []string{"flow"}),
	}

	for _, c := range []prometheus.Collector{m.total, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one validation. A nil receiver is a no-op.
func (m *Validation) Observe(flow tgauth.Flow, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = tgauth.KindOf(err)
	}
	m.total.WithLabelValues(flow.String(), result).Inc()
	m.duration.WithLabelValues(flow.String()).Observe(elapsed.Seconds())
}
