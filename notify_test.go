package lockfree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyThresholds(t *testing.T) {
	pe, af := notifyThresholds(10, 0.8, 0.9)
	require.Equal(t, uint32(8), pe)
	require.Equal(t, uint32(9), af)

	// Thresholds must never reach capacity itself.
	pe, af = notifyThresholds(10, 1.0, 1.0)
	require.Equal(t, uint32(9), pe)
	require.Equal(t, uint32(9), af)
}

func TestSubjectNotifyAlwaysFires(t *testing.T) {
	s := NewSubject()
	var count int
	s.Subscribe(func(EventKind) { count++ })

	s.Notify(OnAllInserts)
	s.Notify(OnAllInserts)
	require.Equal(t, 2, count)
}

// TestSubjectNotifyOnceEdgeLaw verifies the Notification edge law:
// OnAlmostFull fires at most once between two OnPartlyEmpty
// occurrences, and vice versa, regardless of how many times the
// threshold condition is rechecked while the container sits in one
// zone.
func TestSubjectNotifyOnceEdgeLaw(t *testing.T) {
	s := NewSubject()
	var fired []EventKind
	s.Subscribe(func(k EventKind) { fired = append(fired, k) })

	// Rechecking the same zone repeatedly must not re-fire.
	s.NotifyOnce(OnAlmostFull)
	s.NotifyOnce(OnAlmostFull)
	s.NotifyOnce(OnAlmostFull)
	require.Equal(t, []EventKind{OnAlmostFull}, fired)

	// Crossing back re-arms OnAlmostFull and fires OnPartlyEmpty once.
	s.NotifyOnce(OnPartlyEmpty)
	s.NotifyOnce(OnPartlyEmpty)
	require.Equal(t, []EventKind{OnAlmostFull, OnPartlyEmpty}, fired)

	s.NotifyOnce(OnAlmostFull)
	require.Equal(t, []EventKind{OnAlmostFull, OnPartlyEmpty, OnAlmostFull}, fired)
}

func TestNotifyingStackEdges(t *testing.T) {
	base, err := NewStack(4, 4)
	require.NoError(t, err)
	ns := NewNotifyingStack(base)

	var events []EventKind
	ns.Subscribe(func(k EventKind) { events = append(events, k) })

	// A fresh, empty stack starts in the partly-empty zone without
	// having dropped into it, so the very first push must not fire
	// OnPartlyEmpty.
	require.True(t, ns.Push([]byte{0, 0, 0, 0}))
	require.NotContains(t, events, OnPartlyEmpty)

	for i := byte(1); i < 4; i++ {
		require.True(t, ns.Push([]byte{i, i, i, i}))
	}
	require.Contains(t, events, OnAlmostFull)

	var buf [4]byte
	for i := 0; i < 4; i++ {
		require.True(t, ns.Pop(buf[:]))
	}
	require.Contains(t, events, OnPartlyEmpty)
}

func TestNotifyingRingQueueEdges(t *testing.T) {
	base, err := NewRingQueue(4, 4)
	require.NoError(t, err)
	nq := NewNotifyingRingQueue(base)

	var events []EventKind
	nq.Subscribe(func(k EventKind) { events = append(events, k) })

	for i := byte(0); i < 4; i++ {
		require.True(t, nq.Enqueue([]byte{i, i, i, i}))
	}
	require.Contains(t, events, OnAlmostFull)
}

func TestNotifyingBlockQueueWatermark(t *testing.T) {
	base, err := NewBlockQueue[int]()
	require.NoError(t, err)
	nq := NewNotifyingBlockQueue(base, 3)

	var events []EventKind
	nq.Subscribe(func(k EventKind) { events = append(events, k) })

	for i := 0; i < 3; i++ {
		require.NoError(t, nq.Enqueue(i))
	}
	require.Contains(t, events, OnAlmostFull)

	for i := 0; i < 3; i++ {
		_, ok := nq.TryDequeue()
		require.True(t, ok)
	}
	require.Contains(t, events, OnPartlyEmpty)
}
