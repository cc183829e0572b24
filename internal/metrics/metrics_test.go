package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncRun(true)
	m.IncTopic(false)
	m.IncTopic(false)
	m.AddCandidates("mined", 5)
	m.AddCandidates("rejected", 0)
	m.IncMerge("inserted")
	m.AddArchived(3)
	m.IncReverified("verified")
	m.SetEntries(10, 4)
	m.ObserveRun(2 * time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Topics.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Candidates.WithLabelValues("mined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues("inserted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Archived))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Entries.WithLabelValues("Archived")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRun(false)
		m.IncTopic(true)
		m.AddCandidates("mined", 1)
		m.IncMerge("revived")
		m.AddArchived(1)
		m.IncReverified("not_found")
		m.SetEntries(1, 1)
		m.ObserveRun(time.Second)
	})
}
