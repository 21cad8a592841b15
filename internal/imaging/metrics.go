package imaging

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine activity. A nil *Metrics records nothing.
type Metrics struct {
	jobs         *prometheus.CounterVec
	formats      *prometheus.CounterVec
	bytesWritten prometheus.Counter
	running      prometheus.Gauge
}

// NewMetrics creates the engine metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskforge_write_jobs_total",
				Help: "The number of finished write jobs.",
			},
			[]string{"strategy", "state"},
		),
		formats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diskforge_formats_total",
				Help: "The number of format operations.",
			},
			[]string{"filesystem", "result"},
		),
		bytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "diskforge_bytes_written_total",
				Help: "The bytes written to target devices.",
			},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "diskforge_write_running",
				Help: "Whether a write job is running.",
			},
		),
	}
	reg.MustRegister(m.jobs, m.formats, m.bytesWritten, m.running)
	return m
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.running.Set(1)
}

func (m *Metrics) jobFinished(job *WriteJob, written int64) {
	if m == nil {
		return
	}
	m.running.Set(0)
	m.bytesWritten.Add(float64(written))
	m.jobs.WithLabelValues(job.Strategy.String(), string(job.State())).Inc()
}

func (m *Metrics) formatDone(fs string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.formats.WithLabelValues(fs, result).Inc()
}
