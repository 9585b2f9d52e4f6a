package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrementCounter("requests")
	m.IncrementCounterBy("requests", 4)

	require.Equal(t, int64(5), m.GetCounters()["requests"])
}

func TestTimers(t *testing.T) {
	m := NewMetrics()

	m.RecordTimer("refresh", 100)
	m.RecordTimer("refresh", 300)

	timer := m.GetTimers()["refresh"]
	require.Equal(t, int64(2), timer.Count)
	require.Equal(t, int64(100), timer.MinTimeMs)
	require.Equal(t, int64(300), timer.MaxTimeMs)
	require.Equal(t, 200.0, timer.AverageTimeMs)
}

func TestHealthChecks(t *testing.T) {
	m := NewMetrics()

	m.SetHealth("data_source", true)
	m.SetHealth("redis", false)

	checks := m.GetHealthChecks()
	require.True(t, checks["data_source"])
	require.False(t, checks["redis"])
}
