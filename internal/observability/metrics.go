package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest outcomes used as the outcome label.
const (
	OutcomeAccepted = "accepted"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "storage_error"
)

// Collector bundles the service's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	IngestBatches       *prometheus.CounterVec
	IngestRecords       prometheus.Counter
	IngestDuration      prometheus.Histogram
	Subscribers         prometheus.Gauge
	BroadcastDeliveries *prometheus.CounterVec
}

// NewCollector registers the service metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	batches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwatch_ingest_batches_total",
		Help: "Ingestion requests handled, labeled by outcome.",
	}, []string{"outcome"}), "roadwatch_ingest_batches_total")
	if err != nil {
		return nil, err
	}

	records, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadwatch_ingest_records_total",
		Help: "Records committed to storage.",
	}), "roadwatch_ingest_records_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadwatch_ingest_duration_seconds",
		Help:    "Ingestion latency in seconds, from validation to the last broadcast.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "roadwatch_ingest_duration_seconds")
	if err != nil {
		return nil, err
	}

	subscribers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roadwatch_subscribers",
		Help: "Currently registered live subscribers.",
	}), "roadwatch_subscribers")
	if err != nil {
		return nil, err
	}

	deliveries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwatch_broadcast_deliveries_total",
		Help: "Per-subscriber delivery attempts, labeled by result.",
	}, []string{"result"}), "roadwatch_broadcast_deliveries_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:            gatherer,
		IngestBatches:       batches,
		IngestRecords:       records,
		IngestDuration:      duration,
		Subscribers:         subscribers,
		BroadcastDeliveries: deliveries,
	}, nil
}

// ObserveIngest records one ingestion call.
func (c *Collector) ObserveIngest(outcome string, accepted int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.IngestBatches.WithLabelValues(outcome).Inc()
	if accepted > 0 {
		c.IngestRecords.Add(float64(accepted))
	}
	c.IngestDuration.Observe(elapsed.Seconds())
}

// SetSubscribers sets the live subscriber gauge.
func (c *Collector) SetSubscribers(n int) {
	if c == nil {
		return
	}
	c.Subscribers.Set(float64(n))
}

// ObserveDelivery counts one delivery attempt.
func (c *Collector) ObserveDelivery(result string) {
	if c == nil {
		return
	}
	c.BroadcastDeliveries.WithLabelValues(result).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
