package lockfree

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingQueueInvalidInitialization(t *testing.T) {
	_, err := NewRingQueue(0, 4)
	require.Error(t, err)

	_, err = NewRingQueue(4, 0)
	require.Error(t, err)
}

func TestRingQueueEnqueueDequeueFIFO(t *testing.T) {
	q, err := NewRingQueue(4, 4)
	require.NoError(t, err)

	require.True(t, q.IsEmpty())
	require.False(t, q.IsFull())

	for i := byte(0); i < 4; i++ {
		require.True(t, q.Enqueue([]byte{i, i, i, i}))
	}
	require.True(t, q.IsFull())
	require.False(t, q.Enqueue([]byte{9, 9, 9, 9}), "enqueue into a full ring must fail")

	var buf [4]byte
	for i := byte(0); i < 4; i++ {
		require.True(t, q.Dequeue(buf[:]))
		require.Equal(t, [4]byte{i, i, i, i}, buf)
	}
	require.True(t, q.IsEmpty())
	require.False(t, q.Dequeue(buf[:]), "dequeue from an empty ring must fail")
}

func TestRingQueueWrapsAround(t *testing.T) {
	q, err := NewRingQueue(3, 4)
	require.NoError(t, err)

	var buf [4]byte
	for round := 0; round < 10; round++ {
		require.True(t, q.Enqueue([]byte{byte(round), 0, 0, 0}))
		require.True(t, q.Dequeue(buf[:]))
		require.Equal(t, byte(round), buf[0])
	}
}

func TestRingQueueConcurrentMPMC(t *testing.T) {
	const capacity = 32
	const perGoroutine = 2000
	const workers = 4

	q, err := NewRingQueue(capacity, 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(workers * 2)

	popped := make(chan uint64, workers*perGoroutine)
	for p := 0; p < workers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				var buf [8]byte
				putUint64(buf[:], uint64(p)<<32|uint64(i))
				for !q.Enqueue(buf[:]) {
				}
			}
		}(p)
	}
	for c := 0; c < workers; c++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				var buf [8]byte
				for !q.Dequeue(buf[:]) {
				}
				popped <- getUint64(buf[:])
			}
		}()
	}
	wg.Wait()
	close(popped)

	seen := make(map[uint64]bool, workers*perGoroutine)
	count := 0
	for v := range popped {
		require.False(t, seen[v])
		seen[v] = true
		count++
	}
	require.Equal(t, workers*perGoroutine, count)
	require.True(t, q.IsEmpty())
}

func TestRingQueueMetrics(t *testing.T) {
	q, err := NewRingQueue(4, 4, WithMetrics(true))
	require.NoError(t, err)
	require.True(t, q.Enqueue([]byte{1, 2, 3, 4}))
	snap, _ := q.Metrics()
	require.Equal(t, 1, snap.Current)
}

func TestRingQueueLatencyStatsEnabled(t *testing.T) {
	q, err := NewRingQueue(4, 4, WithMetrics(true))
	require.NoError(t, err)
	require.True(t, q.Enqueue([]byte{1, 2, 3, 4}))
	snap, ok := q.LatencyStats()
	require.True(t, ok)
	require.Equal(t, 1, snap.Count)
}

func TestRingQueueEnqueueErr(t *testing.T) {
	q, err := NewRingQueue(1, 4)
	require.NoError(t, err)
	require.NoError(t, q.EnqueueErr([]byte{1, 2, 3, 4}))

	err = q.EnqueueErr([]byte{5, 6, 7, 8})
	require.Error(t, err)
	var fullErr *FullError
	require.ErrorAs(t, err, &fullErr)
}

// TestRingQueueFirstUseDoesNotDeadlock exercises the first
// Enqueue/Dequeue on a freshly constructed ring, which triggers
// spin-limit calibration. The calibration probe must not call back
// into the public Enqueue/Dequeue entry points, or it would deadlock
// re-entering the same sync.Once.
func TestRingQueueFirstUseDoesNotDeadlock(t *testing.T) {
	q, err := NewRingQueue(1, 3)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.True(t, q.Enqueue([]byte{1, 2, 3}))
		var buf [3]byte
		require.True(t, q.Dequeue(buf[:]))
		require.Equal(t, [3]byte{1, 2, 3}, buf)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first Enqueue/Dequeue did not complete; spin-limit calibration likely deadlocked")
	}
}
