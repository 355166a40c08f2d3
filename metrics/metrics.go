package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V-Sekai-fire/forge/zimage"
)

const namespace = "zimage"

type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	replyFailures prometheus.Counter
}

// New creates the responder metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: newCounterVec("responder", "requests_total", "Generation queries handled, by reply status.", "status"),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "request_duration_seconds",
			Help:      "Time from receiving a query to having its reply encoded.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		replyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "reply_failures_total",
			Help:      "Replies that could not be encoded or sent.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.replyFailures)
	return m
}

func newCounterVec(subsystem, name, help string, labelNames ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
}

func (m *Metrics) ObserveRequest(status zimage.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(status)).Inc()
	m.duration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReplyFailure() {
	if m == nil {
		return
	}
	m.replyFailures.Inc()
}
