package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/tickets", "GET", 200, 5*time.Millisecond)
	m.RecordError("/tickets/:id", "GET", "NOT_FOUND")
	m.RecordAdvisory("cache_hit")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/tickets|GET|200"])
	assert.Equal(t, int64(20), snap.RequestMillis["/tickets|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/tickets/:id|GET|NOT_FOUND"])
	assert.Equal(t, int64(1), snap.AdvisoryEvents["cache_hit"])

	// The snapshot is detached from later writes.
	m.RecordAdvisory("cache_hit")
	assert.Equal(t, int64(1), snap.AdvisoryEvents["cache_hit"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordAdvisory("failed")
	assert.Empty(t, m.Snapshot().Requests)
}
