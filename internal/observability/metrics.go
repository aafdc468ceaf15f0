package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ctas"

// Metrics holds the Prometheus counters, histograms, and gauges for the alert service.
type Metrics struct {
	// Detection loop metrics.
	CyclesTotal   *prometheus.CounterVec // labels: outcome={assessed,dispatched,failed,skipped}
	CycleDuration prometheus.Histogram
	ThreatLevel   prometheus.Gauge // 0=LOW, 1=MEDIUM, 2=HIGH
	CycloneErrors prometheus.Counter

	// Dispatch metrics.
	DispatchesTotal  *prometheus.CounterVec   // labels: success={true,false}
	SendsTotal       *prometheus.CounterVec   // labels: channel, outcome={sent,not_configured,invalid_destination,timeout,rejected,transport}
	SendDuration     *prometheus.HistogramVec // labels: channel
	DispatchInFlight prometheus.Gauge
	AuditErrors      *prometheus.CounterVec // labels: sink

	// Host metrics.
	HostCPU    prometheus.Gauge
	HostMemory prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cycles_total",
			Help:      help("Detection cycles by outcome."),
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_cycle_duration_seconds",
			Help:      help("Duration of a complete detection cycle."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ThreatLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threat_level",
			Help:      help("Overall threat level of the last assessment (0=LOW, 1=MEDIUM, 2=HIGH)."),
		}),
		CycloneErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cyclone_estimator_errors_total",
			Help:      help("Cyclone estimator failures replaced by an unavailable estimate."),
		}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      help("Alert dispatches by success."),
		}, []string{"success"}),
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      help("Channel send attempts by channel and outcome."),
		}, []string{"channel", "outcome"}),
		SendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      help("Channel send latency in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		DispatchInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_sends_in_flight",
			Help:      help("Channel sends currently in flight."),
		}),
		AuditErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_errors_total",
			Help:      help("Audit sink write failures by sink."),
		}, []string{"sink"}),
		HostCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_cpu_percent",
			Help:      help("Host CPU utilisation percent."),
		}),
		HostMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_memory_percent",
			Help:      help("Host memory utilisation percent."),
		}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.ThreatLevel,
		m.CycloneErrors,
		m.DispatchesTotal,
		m.SendsTotal,
		m.SendDuration,
		m.DispatchInFlight,
		m.AuditErrors,
		m.HostCPU,
		m.HostMemory,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
