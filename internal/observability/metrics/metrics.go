package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels shared by the availability and booking metrics.
const (
	OutcomeOK         = "ok"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeFetchError = "fetch_error"
	OutcomeCreated    = "created"
	OutcomeConflict   = "conflict"
	OutcomeError      = "error"
)

// AvailabilityMetrics exposes counters/histograms for availability queries.
type AvailabilityMetrics struct {
	computations   *prometheus.CounterVec
	computeLatency prometheus.Histogram
	publishedSlots prometheus.Histogram
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "availability",
			Name:      "computations_total",
			Help:      "Total availability computations by outcome",
		}, []string{"outcome"}),
		computeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetclinic",
			Subsystem: "availability",
			Name:      "compute_seconds",
			Help:      "Latency of snapshot load plus computation",
			Buckets:   prometheus.DefBuckets,
		}),
		publishedSlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetclinic",
			Subsystem: "availability",
			Name:      "published_slots",
			Help:      "Number of (date, time) slots published per computation",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.computations, m.computeLatency, m.publishedSlots)
	return m
}

func (m *AvailabilityMetrics) ObserveComputation(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(outcome).Inc()
	m.computeLatency.Observe(seconds)
}

func (m *AvailabilityMetrics) ObservePublished(slots int) {
	if m == nil {
		return
	}
	m.publishedSlots.Observe(float64(slots))
}

// BookingMetrics counts booking writes, including lost uniqueness races.
type BookingMetrics struct {
	writes *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "bookings",
			Name:      "writes_total",
			Help:      "Booking and block writes by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.writes)
	return m
}

func (m *BookingMetrics) ObserveWrite(kind, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind, outcome).Inc()
}
