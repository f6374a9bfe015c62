package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics exposes counters/histograms for reminder processing and
// dispatch.
type ReminderMetrics struct {
	processedTotal *prometheus.CounterVec
	itemsTotal     *prometheus.CounterVec
	sendTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicware",
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Total reminders evaluated, by outcome",
		}, []string{"outcome"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicware",
			Subsystem: "reminders",
			Name:      "items_total",
			Help:      "Total reminder items generated, by kind and status",
		}, []string{"kind", "status"}),
		sendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicware",
			Subsystem: "reminders",
			Name:      "sends_total",
			Help:      "Total reminder dispatch attempts, by kind and result",
		}, []string{"kind", "result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicware",
			Subsystem: "reminders",
			Name:      "run_duration_seconds",
			Help:      "Duration of reminder processing runs",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.processedTotal, m.itemsTotal, m.sendTotal, m.runDuration)
	return m
}

func (m *ReminderMetrics) ObserveProcessed(outcome string) {
	if m == nil {
		return
	}
	m.processedTotal.WithLabelValues(outcome).Inc()
}

func (m *ReminderMetrics) ObserveItem(kind, status string) {
	if m == nil {
		return
	}
	m.itemsTotal.WithLabelValues(kind, status).Inc()
}

func (m *ReminderMetrics) ObserveSend(kind, result string) {
	if m == nil {
		return
	}
	m.sendTotal.WithLabelValues(kind, result).Inc()
}

func (m *ReminderMetrics) ObserveRunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}
