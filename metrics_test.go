package lockfree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyMetricsRecordAndSample(t *testing.T) {
	var m LatencyMetrics
	for i := 1; i <= 20; i++ {
		m.Record(time.Duration(i) * time.Millisecond)
	}
	n := m.Sample()
	require.Equal(t, 20, n)
	require.Equal(t, 20*time.Millisecond, m.Max)
	require.Positive(t, m.P50)
	require.LessOrEqual(t, m.P50, m.P99)
}

func TestLatencyMetricsEmptySample(t *testing.T) {
	var m LatencyMetrics
	require.Zero(t, m.Sample())
}

func TestLatencyMetricsSnapshot(t *testing.T) {
	var m LatencyMetrics
	for i := 1; i <= 10; i++ {
		m.Record(time.Duration(i) * time.Millisecond)
	}
	snap := m.Snapshot()
	require.Equal(t, 10, snap.Count)
	require.Equal(t, 10*time.Millisecond, snap.Max)
	require.Positive(t, snap.P50)
}

func TestQueueMetricsUpdateDepth(t *testing.T) {
	var m QueueMetrics
	m.UpdateDepth(5)
	m.UpdateDepth(10)
	m.UpdateDepth(3)

	snap := m.snapshot()
	require.Equal(t, 3, snap.Current)
	require.Equal(t, 10, snap.Max)
	require.Greater(t, snap.Avg, 0.0)
}

func TestTPSCounterIncrement(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 5; i++ {
		c.Increment()
	}
	require.Greater(t, c.TPS(), 0.0)
}

func TestTPSCounterInvalidConfig(t *testing.T) {
	require.Panics(t, func() { NewTPSCounter(0, time.Second) })
	require.Panics(t, func() { NewTPSCounter(time.Second, 0) })
	require.Panics(t, func() { NewTPSCounter(time.Second, 2*time.Second) })
}
