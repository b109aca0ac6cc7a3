package lockfree

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// slotTag enumerates the states a [BlockQueue] slot moves through.
// tagFree must be the zero value so a freshly zeroed block's slots
// start Free without an initialization pass. See spec.md §3.3/§4.4.1.
type slotTag uint32

const (
	tagFree slotTag = iota
	tagAllocating
	tagAllocated
	tagRemoving
	tagRemoved
	tagEndOfList
	tagExtending
	tagBlockPointer
	tagDestroying
)

// slot is one cell of a block: a 4-byte-aligned tag word (so a single
// CAS transitions it without touching the payload) plus the value
// payload and three auxiliary pointers. after is precomputed
// at block-creation time and points to the next physical slot in the
// same block (nil for the block's final slot); next is set only when
// the slot's tag is tagBlockPointer, and holds the first slot of the
// successor block. owner recovers the enclosing block for reclamation
// without resorting to pointer arithmetic.
type slot[T any] struct {
	tag   atomic.Uint32
	val   T
	after *slot[T]
	next  *slot[T]
	owner *block[T]
}

func (s *slot[T]) getTag() slotTag {
	return slotTag(s.tag.Load())
}

// block is the fixed-capacity backing array of one unbounded-queue
// segment: blockSlotCount slots, the last initialized to EndOfList.
type block[T any] struct {
	slots [blockSlotCount]slot[T]
}

func newBlockSegment[T any]() *block[T] {
	b := &block[T]{}
	for i := range b.slots {
		b.slots[i].owner = b
		if i+1 < blockSlotCount {
			b.slots[i].after = &b.slots[i+1]
		}
	}
	b.slots[blockSlotCount-1].tag.Store(uint32(tagEndOfList))
	return b
}

// resetBlockSegment restores a previously-used block to its
// just-allocated state for reuse via the cached_block slot.
func resetBlockSegment[T any](b *block[T]) {
	var zero T
	for i := 0; i < blockSlotCount-1; i++ {
		b.slots[i].tag.Store(uint32(tagFree))
		b.slots[i].val = zero
		b.slots[i].next = nil
	}
	b.slots[blockSlotCount-1].tag.Store(uint32(tagEndOfList))
}

// BlockQueue is an unbounded, lock-free FIFO of values of type T,
// stored in a linked list of fixed-capacity blocks. A reader/writer
// epoch counter ([BlockQueue.removeCount]) gates block reclamation so
// a block is only freed once no reader can still be walking its
// slots. See spec.md §3.3 and §4.4.
type BlockQueue[T any] struct {
	_           cpu.CacheLinePad
	head        atomic.Pointer[slot[T]]
	_           cpu.CacheLinePad
	tail        atomic.Pointer[slot[T]]
	_           cpu.CacheLinePad
	cachedBlock atomic.Pointer[block[T]]
	_           cpu.CacheLinePad
	removeCount atomic.Int32

	opts    *containerOptions
	metrics *QueueMetrics
	tps     *TPSCounter
	length  atomic.Int64

	blocksAllocated atomic.Int64
	blocksFreed     atomic.Int64
}

// NewBlockQueue allocates an empty unbounded block queue.
func NewBlockQueue[T any](opts ...Option) (*BlockQueue[T], error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	q := &BlockQueue[T]{opts: cfg}
	b := newBlockSegment[T]()
	q.blocksAllocated.Add(1)
	q.head.Store(&b.slots[0])
	q.tail.Store(&b.slots[0])

	if cfg.metricsEnabled {
		q.metrics = &QueueMetrics{}
		q.tps = NewTPSCounter(defaultTPSWindow, defaultTPSBucket)
	}
	return q, nil
}

// enterReader implements the documented EnterReader spin: CAS(n, n+1,
// remove_count) while the observed value is non-negative; a negative
// observed value means a writer holds the exclusive section, so the
// reader yields and retries rather than spinning tightly.
func (q *BlockQueue[T]) enterReader() {
	for {
		v := q.removeCount.Load()
		if v >= 0 {
			if q.removeCount.CompareAndSwap(v, v+1) {
				return
			}
			continue
		}
		pauseHint()
	}
}

func (q *BlockQueue[T]) leaveReader() {
	q.removeCount.Add(-1)
}

// enterWriter claims the exclusive section used only around block
// reclamation: it requires no readers present.
func (q *BlockQueue[T]) enterWriter() {
	for {
		if q.removeCount.CompareAndSwap(0, -1) {
			return
		}
		pauseHint()
	}
}

func (q *BlockQueue[T]) leaveWriter() {
	q.removeCount.Store(0)
}

// allocateBlock returns a fresh block, preferring the single cached
// block left by a prior reclamation over a new allocation.
func (q *BlockQueue[T]) allocateBlock() (*block[T], error) {
	if cached := q.cachedBlock.Load(); cached != nil {
		if q.cachedBlock.CompareAndSwap(cached, nil) {
			resetBlockSegment(cached)
			LogBlockAllocated(q.id(), blockID(cached), true)
			return cached, nil
		}
	}
	b := newBlockSegment[T]()
	q.blocksAllocated.Add(1)
	LogBlockAllocated(q.id(), blockID(b), false)
	return b, nil
}

// releaseBlock reclaims the block owning lastSlot. If force is set or
// a block is already cached, the block is dropped (left for the
// garbage collector); otherwise it is offered to cached_block. The
// caller must hold the writer section.
func (q *BlockQueue[T]) releaseBlock(lastSlot *slot[T], force bool) {
	blk := lastSlot.owner
	if !force && q.cachedBlock.CompareAndSwap(nil, blk) {
		LogBlockFreed(q.id(), blockID(blk), true)
		return
	}
	q.blocksFreed.Add(1)
	LogBlockFreed(q.id(), blockID(blk), false)
}

// id returns a stable, non-zero identifier for log correlation derived
// from the queue's own address.
func (q *BlockQueue[T]) id() int64 {
	return int64(uintptr(unsafe.Pointer(q)))
}

// blockID returns a stable, non-zero identifier for log correlation
// derived from the block's own address.
func blockID[T any](b *block[T]) int64 {
	return int64(uintptr(unsafe.Pointer(b)))
}

// Enqueue appends v to the queue. It always succeeds unless block
// allocation fails.
func (q *BlockQueue[T]) Enqueue(v T) error {
	q.enterReader()
	for {
		t := q.tail.Load()
		switch t.getTag() {
		case tagFree:
			if t.tag.CompareAndSwap(uint32(tagFree), uint32(tagAllocating)) {
				q.tail.Store(t.after)
				t.val = v
				t.tag.Store(uint32(tagAllocated))
				q.leaveReader()
				q.recordEnqueue()
				return nil
			}
		case tagEndOfList:
			if t.tag.CompareAndSwap(uint32(tagEndOfList), uint32(tagExtending)) {
				nb, err := q.allocateBlock()
				if err != nil {
					t.tag.Store(uint32(tagEndOfList))
					q.leaveReader()
					wrapped := &AllocationFailureError{Requested: blockSlotCount, Cause: err}
					LogAllocationFailure(q.id(), wrapped)
					return wrapped
				}
				nb.slots[0].val = v
				nb.slots[0].tag.Store(uint32(tagAllocated))
				q.tail.Store(&nb.slots[1])
				t.next = &nb.slots[0]
				t.tag.Store(uint32(tagBlockPointer))
				q.leaveReader()
				q.recordEnqueue()
				return nil
			}
		case tagExtending:
			pauseHint()
		default:
			pauseHint()
		}
	}
}

// TryDequeue removes and returns the oldest value. ok is false if the
// queue was empty.
func (q *BlockQueue[T]) TryDequeue() (v T, ok bool) {
	q.enterReader()
	for {
		h := q.head.Load()
		switch h.getTag() {
		case tagFree:
			q.leaveReader()
			var zero T
			return zero, false
		case tagAllocated:
			if h.tag.CompareAndSwap(uint32(tagAllocated), uint32(tagRemoving)) {
				q.head.Store(h.after)
				val := h.val
				var zero T
				h.val = zero
				h.tag.Store(uint32(tagRemoved))
				q.leaveReader()
				q.recordDequeue()
				return val, true
			}
		case tagBlockPointer:
			if h.tag.CompareAndSwap(uint32(tagBlockPointer), uint32(tagDestroying)) {
				next := h.next
				if next.getTag() != tagAllocated {
					// Successor's first slot is not Allocated. Enqueue
					// marks it Allocated before it publishes the
					// BlockPointer, so this path is defensive. Resolved
					// as a transparent retry (see the Open Questions
					// resolution in SPEC_FULL.md): the Destroying claim
					// is undone and head is left on this slot.
					h.tag.Store(uint32(tagBlockPointer))
					pauseHint()
					continue
				}
				nextNext := next.after
				q.head.Store(nextNext)
				val := next.val
				var zero T
				next.val = zero
				next.tag.CompareAndSwap(uint32(tagAllocated), uint32(tagRemoved))
				q.leaveReader()
				q.enterWriter()
				q.releaseBlock(h, false)
				q.leaveWriter()
				q.recordDequeue()
				return val, true
			}
		default:
			pauseHint()
		}
	}
}

// Dequeue removes and returns the oldest value, reporting an
// [EmptyError] if the queue is empty rather than a bare bool.
func (q *BlockQueue[T]) Dequeue() (T, error) {
	v, ok := q.TryDequeue()
	if !ok {
		var zero T
		return zero, &EmptyError{Container: "block queue"}
	}
	return v, nil
}

// Close walks the queue from head forward, force-freeing every block
// it owns, then drops any cached block. Not safe to call concurrently
// with Enqueue/TryDequeue.
func (q *BlockQueue[T]) Close() {
	cur := q.head.Load()
loop:
	for {
		switch cur.getTag() {
		case tagEndOfList:
			q.releaseBlock(cur, true)
			break loop
		case tagBlockPointer:
			next := cur.next
			q.releaseBlock(cur, true)
			cur = next
		default:
			cur = cur.after
		}
	}
	if cb := q.cachedBlock.Swap(nil); cb != nil {
		q.blocksFreed.Add(1)
	}
}

// BlocksAllocated returns the total number of blocks allocated over
// the queue's lifetime, including the initial block.
func (q *BlockQueue[T]) BlocksAllocated() int64 {
	return q.blocksAllocated.Load()
}

// BlocksFreed returns the total number of blocks released (including
// every block dropped by Close) rather than retained in cached_block.
func (q *BlockQueue[T]) BlocksFreed() int64 {
	return q.blocksFreed.Load()
}

func (q *BlockQueue[T]) recordEnqueue() {
	n := q.length.Add(1)
	if q.metrics != nil {
		q.tps.Increment()
		q.metrics.UpdateDepth(int(n))
	}
}

func (q *BlockQueue[T]) recordDequeue() {
	n := q.length.Add(-1)
	if q.metrics != nil {
		q.tps.Increment()
		q.metrics.UpdateDepth(int(n))
	}
}

// occupancy returns a snapshot element count, used by
// [NotifyingBlockQueue] to evaluate its watermark.
func (q *BlockQueue[T]) occupancy() uint32 {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Metrics returns a snapshot of the queue's runtime metrics. Only
// populated when the queue was constructed with WithMetrics(true).
func (q *BlockQueue[T]) Metrics() (QueueMetricsSnapshot, float64) {
	if q.metrics == nil {
		return QueueMetricsSnapshot{}, 0
	}
	return q.metrics.snapshot(), q.tps.TPS()
}
