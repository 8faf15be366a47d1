package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics counts booking outcomes and queue movements.
type SchedulingMetrics struct {
	bookings         *prometheus.CounterVec
	queueTransitions *prometheus.CounterVec
	availability     *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "appointment_writes_total",
			Help:      "Appointment create/reschedule attempts by outcome",
		}, []string{"op", "outcome"}),
		queueTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Queue entry mutations by kind",
		}, []string{"kind"}),
		availability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "availability_seconds",
			Help:      "Latency of availability resolution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.queueTransitions, m.availability)
	return m
}

// ObserveBooking records op ("create", "reschedule") with outcome
// ("ok", "conflict", "invalid", "error").
func (m *SchedulingMetrics) ObserveBooking(op, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(op, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveQueue(kind string) {
	if m == nil {
		return
	}
	m.queueTransitions.WithLabelValues(kind).Inc()
}

func (m *SchedulingMetrics) ObserveAvailability(scope string, seconds float64) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(scope).Observe(seconds)
}
