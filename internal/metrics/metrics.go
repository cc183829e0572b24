// Package metrics exposes curation run counters for Prometheus
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for curation runs. A nil *Metrics is valid and records nothing
type Metrics struct {
	// Runs by result: "ok" or "failed"
	Runs *prometheus.CounterVec

	// Topics by result: "ok" or "failed"
	Topics *prometheus.CounterVec

	// Candidates by outcome: mined, invalid, off_taxonomy, verified, degraded, rejected
	Candidates *prometheus.CounterVec

	// Merges by outcome: inserted, refreshed, revived
	Merges *prometheus.CounterVec

	Archived   prometheus.Counter
	Reverified *prometheus.CounterVec

	// Entries by status after the latest run
	Entries *prometheus.GaugeVec

	RunDuration prometheus.Histogram
}

// New creates and registers the run metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_runs_total",
			Help: "Curation runs by result",
		}, []string{"result"}),

		Topics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_topics_total",
			Help: "Mined topics by result",
		}, []string{"result"}),

		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_candidates_total",
			Help: "Candidate drafts by outcome",
		}, []string{"outcome"}),

		Merges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_merges_total",
			Help: "Merged drafts by outcome",
		}, []string{"outcome"}),

		Archived: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskwatch_archived_total",
			Help: "Entries archived by the lifecycle sweep",
		}),

		Reverified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskwatch_reverified_total",
			Help: "Degraded entries looked up again, by outcome",
		}, []string{"outcome"}),

		Entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskwatch_entries",
			Help: "Stored entries by status after the latest run",
		}, []string{"status"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskwatch_run_duration_seconds",
			Help:    "Duration of full curation runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
}

// IncRun records a finished run
func (m *Metrics) IncRun(ok bool) {
	if m != nil {
		m.Runs.WithLabelValues(result(ok)).Inc()
	}
}

// IncTopic records a mined topic
func (m *Metrics) IncTopic(ok bool) {
	if m != nil {
		m.Topics.WithLabelValues(result(ok)).Inc()
	}
}

// AddCandidates records n candidates with an outcome
func (m *Metrics) AddCandidates(outcome string, n int) {
	if m != nil && n > 0 {
		m.Candidates.WithLabelValues(outcome).Add(float64(n))
	}
}

// IncMerge records a merge outcome
func (m *Metrics) IncMerge(outcome string) {
	if m != nil {
		m.Merges.WithLabelValues(outcome).Inc()
	}
}

// AddArchived records archived entries
func (m *Metrics) AddArchived(n int) {
	if m != nil && n > 0 {
		m.Archived.Add(float64(n))
	}
}

// IncReverified records a re-verification outcome
func (m *Metrics) IncReverified(outcome string) {
	if m != nil {
		m.Reverified.WithLabelValues(outcome).Inc()
	}
}

// SetEntries records the stored entry counts
func (m *Metrics) SetEntries(active, archived int) {
	if m != nil {
		m.Entries.WithLabelValues("Active").Set(float64(active))
		m.Entries.WithLabelValues("Archived").Set(float64(archived))
	}
}

// ObserveRun records a run duration
func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
