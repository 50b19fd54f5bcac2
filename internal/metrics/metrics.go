package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/tsfeed/internal/connection"
)

var states = []connection.State{
	connection.StateDisconnected,
	connection.StateConnecting,
	connection.StateConnected,
	connection.StateError,
}

// FeedSource exposes the manager counters read at scrape time.
type FeedSource interface {
	Info() connection.Info
}

// Metrics groups all Prometheus instruments used by the client.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory
	ns       string

	State            *prometheus.GaugeVec
	Transitions      *prometheus.CounterVec
	Retries          prometheus.Counter
	RetryDelay       prometheus.Histogram
	FrequencyFetches *prometheus.CounterVec
	FrequencyLatency prometheus.Histogram
	FrequencyPoints  prometheus.Gauge
}

// New creates the instruments under namespace on a fresh registry that also
// carries the Go runtime and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		factory:  f,
		ns:       namespace,
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_transitions_total",
			Help:      "Connection state transitions by source and target state.",
		}, []string{"from", "to"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_scheduled_total",
			Help:      "Automatic reconnection attempts scheduled after an unclean close.",
		}),
		RetryDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay of scheduled reconnection attempts.",
			Buckets:   []float64{1, 2, 4, 8, 16, 30},
		}),
		FrequencyFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frequency_fetches_total",
			Help:      "Frequency summary fetches by result.",
		}, []string{"result"}),
		FrequencyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frequency_fetch_duration_seconds",
			Help:      "Latency of frequency summary fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		FrequencyPoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frequency_points",
			Help:      "Number of bins in the latest frequency summary.",
		}),
	}

	m.setState(connection.StateDisconnected)
	return m
}

// ObserveTransition records a connection state change. It matches
// connection.ManagerConfig.OnTransition.
func (m *Metrics) ObserveTransition(t connection.Transition) {
	m.Transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	m.setState(t.To)

	if t.NextDelay > 0 {
		m.Retries.Inc()
		m.RetryDelay.Observe(t.NextDelay.Seconds())
	}
}

// ObserveFetch records one frequency summary fetch. It matches
// poller.ResultHandler.
func (m *Metrics) ObserveFetch(points int, dur time.Duration, err error) {
	m.FrequencyLatency.Observe(dur.Seconds())
	if err != nil {
		m.FrequencyFetches.WithLabelValues("error").Inc()
		return
	}
	m.FrequencyFetches.WithLabelValues("ok").Inc()
	m.FrequencyPoints.Set(float64(points))
}

// WatchFeed exports the manager's sample counters and window fill.
func (m *Metrics) WatchFeed(src FeedSource) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.ns,
		Name:      "samples_received_total",
		Help:      "Samples accepted into the window.",
	}, func() float64 { return float64(src.Info().Received) })

	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.ns,
		Name:      "samples_rejected_total",
		Help:      "Frames discarded because they did not decode as a sample.",
	}, func() float64 { return float64(src.Info().Rejected) })

	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.ns,
		Name:      "window_samples",
		Help:      "Samples currently held in the window.",
	}, func() float64 { return float64(src.Info().Buffered) })

	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.ns,
		Name:      "window_capacity",
		Help:      "Maximum number of samples held in the window.",
	}, func() float64 { return float64(src.Info().Capacity) })
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) setState(current connection.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}
