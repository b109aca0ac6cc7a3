package lockfree

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// ringSpin is the class-level adaptive spin calibration singleton
// shared by every [RingQueue] instance.
var ringSpin spinCalibration

// ringBuf is one of the two ring buffers backing a [RingQueue]: a
// cyclic array of capacity referenced pointers, with first_in/last_in
// cursors that are themselves micro-locked referenced pointers holding
// an index into the slots array rather than a raw pointer. See
// spec.md §3.2.
type ringBuf struct {
	firstIn referencedPtr
	_       cpu.CacheLinePad
	lastIn  referencedPtr
	_       cpu.CacheLinePad

	slots    []referencedPtr
	capacity uint32
}

func newRingBuf(capacity uint32) *ringBuf {
	return &ringBuf{slots: make([]referencedPtr, capacity), capacity: capacity}
}

// insertLink acquires the micro-lock on last_in, publishes payloadIdx
// into the current tail slot, and advances the cursor, releasing the
// lock in the same step. The slot write and the last_in release are
// two separate stores; a reader never inspects a slot until after
// last_in has advanced past it, so no slot-level busy marking is
// needed here.
func (r *ringBuf) insertLink(payloadIdx uint32, spinLimit uint32) {
	cur, tag := r.lastIn.acquire(spinLimit)
	r.slots[cur].word.Store(packRef(payloadIdx, 0))
	next := cur + 1
	if next >= r.capacity {
		next = 0
	}
	r.lastIn.release(cur, tag, next)
}

// removeLink acquires the micro-lock on first_in; if the ring is
// empty (first_in == last_in) it releases without advancing and
// reports false. Otherwise it reads the head slot's payload index,
// advances the cursor, and releases.
func (r *ringBuf) removeLink(spinLimit uint32) (payloadIdx uint32, ok bool) {
	cur, tag := r.firstIn.acquire(spinLimit)
	last, _ := r.lastIn.load()
	if cur == last {
		r.firstIn.release(cur, tag, cur)
		return 0, false
	}
	payloadIdx, _ = r.slots[cur].load()
	next := cur + 1
	if next >= r.capacity {
		next = 0
	}
	r.firstIn.release(cur, tag, next)
	return payloadIdx, true
}

func (r *ringBuf) isEmpty() bool {
	f, _ := r.firstIn.load()
	l, _ := r.lastIn.load()
	return f == l
}

// RingQueue is a bounded, lock-free FIFO over two ring buffers of
// referenced pointers: public carries filled payload-cell indices,
// recycle carries free ones. See spec.md §3.2 and §4.3.
type RingQueue struct {
	numElements uint32
	elementSize uint32
	slotSize    uint32
	payload     []byte

	public  *ringBuf
	recycle *ringBuf

	opts    *containerOptions
	metrics *QueueMetrics
	tps     *TPSCounter
	latency *LatencyMetrics
	count   atomic.Int32
}

// NewRingQueue allocates a bounded ring queue of numElements slots of
// elementSize bytes each. Both parameters must be non-zero.
func NewRingQueue(numElements, elementSize uint32, opts ...Option) (*RingQueue, error) {
	if numElements == 0 {
		return nil, &InvalidInitializationError{Field: "num_elements", Value: numElements}
	}
	if elementSize == 0 {
		return nil, &InvalidInitializationError{Field: "element_size", Value: elementSize}
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	capacity := numElements + 1
	slotSize := round4(elementSize)
	payload := make([]byte, uint64(capacity)*uint64(slotSize))
	if len(payload) > 0 {
		if addr := uintptr(unsafe.Pointer(&payload[0])); addr%8 != 0 {
			return nil, &AlignmentFailureError{Want: 8, Got: addr % 8}
		}
	}

	q := &RingQueue{
		numElements: numElements,
		elementSize: elementSize,
		slotSize:    slotSize,
		payload:     payload,
		public:      newRingBuf(capacity),
		recycle:     newRingBuf(capacity),
		opts:        cfg,
	}

	q.public.firstIn.storeIdle(0)
	q.public.lastIn.storeIdle(0)

	q.recycle.firstIn.storeIdle(0)
	q.recycle.lastIn.storeIdle(numElements)
	for i := uint32(0); i < capacity; i++ {
		q.recycle.slots[i].storeIdle(i)
	}

	if cfg.metricsEnabled {
		q.metrics = &QueueMetrics{}
		q.tps = NewTPSCounter(defaultTPSWindow, defaultTPSBucket)
		q.latency = &LatencyMetrics{}
	}
	return q, nil
}

func (q *RingQueue) payloadCell(idx uint32) []byte {
	start := uint64(idx) * uint64(q.slotSize)
	return q.payload[start : start+uint64(q.elementSize) : start+uint64(q.elementSize)]
}

// spinLimit returns the configured or calibrated spin count. Calibration
// runs calibrateSpinLimit's probe directly against enqueueWithLimit/
// dequeueWithLimit at defaultSpinLimit, never through spinLimit itself:
// the class-level sync.Once in ringSpin.get is not reentrant, and a
// probe that called back into spinLimit would deadlock on its own Do.
func (q *RingQueue) spinLimit() uint32 {
	if q.opts.spinLimit != 0 {
		return q.opts.spinLimit
	}
	return ringSpin.get(func() {
		scratch := make([]byte, q.elementSize)
		if q.enqueueWithLimit(scratch, defaultSpinLimit) {
			q.dequeueWithLimit(scratch, defaultSpinLimit)
		}
	})
}

// Enqueue copies elementSize bytes from src into the queue. Returns
// false if the queue is full.
func (q *RingQueue) Enqueue(src []byte) bool {
	return q.enqueueWithLimit(src, q.spinLimit())
}

func (q *RingQueue) enqueueWithLimit(src []byte, limit uint32) bool {
	acquireStart := time.Now()
	cellIdx, ok := q.recycle.removeLink(limit)
	if q.latency != nil {
		q.latency.Record(time.Since(acquireStart))
	}
	if !ok {
		return false
	}
	copy(q.payloadCell(cellIdx), src[:q.elementSize])
	q.public.insertLink(cellIdx, limit)
	n := q.count.Add(1)

	if q.metrics != nil {
		q.tps.Increment()
		q.metrics.UpdateDepth(int(n))
	}
	return true
}

// EnqueueErr behaves like Enqueue but reports a full queue as a
// *FullError instead of a bool, for callers that want one
// error-handling shape across every container in the package.
func (q *RingQueue) EnqueueErr(src []byte) error {
	if !q.Enqueue(src) {
		return &FullError{Container: "ring queue"}
	}
	return nil
}

// Dequeue copies elementSize bytes from the queue into dst. Returns
// false if the queue is empty.
func (q *RingQueue) Dequeue(dst []byte) bool {
	return q.dequeueWithLimit(dst, q.spinLimit())
}

func (q *RingQueue) dequeueWithLimit(dst []byte, limit uint32) bool {
	acquireStart := time.Now()
	cellIdx, ok := q.public.removeLink(limit)
	if q.latency != nil {
		q.latency.Record(time.Since(acquireStart))
	}
	if !ok {
		return false
	}
	copy(dst, q.payloadCell(cellIdx)[:q.elementSize])
	q.recycle.insertLink(cellIdx, limit)
	n := q.count.Add(-1)

	if q.metrics != nil {
		q.tps.Increment()
		q.metrics.UpdateDepth(int(n))
	}
	return true
}

// IsEmpty reports whether the queue currently holds no elements. The
// result is a snapshot and may be stale under contention.
func (q *RingQueue) IsEmpty() bool {
	return q.public.isEmpty()
}

// IsFull reports whether the queue currently holds numElements
// elements. The result is a snapshot and may be stale under contention.
func (q *RingQueue) IsFull() bool {
	return q.recycle.isEmpty()
}

// Empty drains every queued element back into the recycle ring. It is
// not safe to call concurrently with Enqueue/Dequeue on the same queue.
func (q *RingQueue) Empty() {
	limit := q.spinLimit()
	for {
		cellIdx, ok := q.public.removeLink(limit)
		if !ok {
			return
		}
		q.recycle.insertLink(cellIdx, limit)
		q.count.Add(-1)
	}
}

// occupancy returns a snapshot element count, used by [NotifyingRingQueue]
// to evaluate the partly-empty/almost-full thresholds.
func (q *RingQueue) occupancy() uint32 {
	n := q.count.Load()
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Metrics returns a snapshot of the queue's runtime metrics. Only
// populated when the queue was constructed with WithMetrics(true).
func (q *RingQueue) Metrics() (QueueMetricsSnapshot, float64) {
	if q.metrics == nil {
		return QueueMetricsSnapshot{}, 0
	}
	return q.metrics.snapshot(), q.tps.TPS()
}

// LatencyStats returns the micro-lock acquisition latency distribution
// observed by this queue. Only populated when the queue was
// constructed with WithMetrics(true).
func (q *RingQueue) LatencyStats() (LatencySnapshot, bool) {
	if q.latency == nil {
		return LatencySnapshot{}, false
	}
	return q.latency.Snapshot(), true
}
