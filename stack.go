package lockfree

import (
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// stackNode is one element slot of a [Stack]: the intrusive link
// field and a fixed-size payload view into the stack's backing slab.
type stackNode struct {
	next    uint32 // 1-based arena index; 0 means nil
	payload []byte
}

// stackSpin is the class-level adaptive spin calibration singleton
// shared by every [Stack] instance, per the design note that
// calibration state belongs to the container class, not the instance.
var stackSpin spinCalibration

// Stack is a bounded, lock-free LIFO of fixed-size byte slots, backed
// by a preallocated slab and two intrusive singly linked chains: one
// for filled slots (public), one for free slots (recycle). See
// spec.md §3.1 and §4.2.
type Stack struct {
	_       cpu.CacheLinePad
	public  referencedPtr
	_       cpu.CacheLinePad
	recycle referencedPtr
	_       cpu.CacheLinePad

	numElements uint32
	elementSize uint32
	slab        []byte
	nodes       []stackNode

	opts    *containerOptions
	metrics *QueueMetrics
	tps     *TPSCounter
	latency *LatencyMetrics
}

// NewStack allocates a bounded stack of numElements slots of
// elementSize bytes each. Both parameters must be non-zero.
func NewStack(numElements, elementSize uint32, opts ...Option) (*Stack, error) {
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

	slotSize := round4(elementSize)
	slab := make([]byte, uint64(numElements)*uint64(slotSize))
	if len(slab) > 0 {
		if addr := uintptr(unsafe.Pointer(&slab[0])); addr%8 != 0 {
			return nil, &AlignmentFailureError{Want: 8, Got: addr % 8}
		}
	}

	nodes := make([]stackNode, numElements)
	for i := range nodes {
		start := uint64(i) * uint64(slotSize)
		nodes[i].payload = slab[start : start+uint64(elementSize) : start+uint64(elementSize)]
		if uint32(i)+1 < numElements {
			nodes[i].next = uint32(i) + 2
		}
	}

	s := &Stack{
		numElements: numElements,
		elementSize: elementSize,
		slab:        slab,
		nodes:       nodes,
		opts:        cfg,
	}
	s.public.storeIdle(0)
	s.recycle.storeIdle(1)
	if cfg.metricsEnabled {
		s.metrics = &QueueMetrics{}
		s.tps = NewTPSCounter(defaultTPSWindow, defaultTPSBucket)
		s.latency = &LatencyMetrics{}
	}
	return s, nil
}

// spinLimit returns the configured or calibrated spin count. Calibration
// runs calibrateSpinLimit's probe directly against pushWithLimit/
// popWithLimit at defaultSpinLimit, never through spinLimit itself: the
// class-level sync.Once in stackSpin.get is not reentrant, and a probe
// that called back into spinLimit would deadlock on its own Do.
func (s *Stack) spinLimit() uint32 {
	if s.opts.spinLimit != 0 {
		return s.opts.spinLimit
	}
	return stackSpin.get(func() {
		scratch := make([]byte, s.elementSize)
		if s.pushWithLimit(scratch, defaultSpinLimit) {
			s.popWithLimit(scratch, defaultSpinLimit)
		}
	})
}

// Push copies elementSize bytes from src onto the stack. Returns
// false if the stack is full.
func (s *Stack) Push(src []byte) bool {
	return s.pushWithLimit(src, s.spinLimit())
}

func (s *Stack) pushWithLimit(src []byte, limit uint32) bool {
	acquireStart := time.Now()
	idx, tag := s.recycle.acquire(limit)
	if s.latency != nil {
		s.latency.Record(time.Since(acquireStart))
	}
	if idx == 0 {
		s.recycle.release(0, tag, 0)
		return false
	}
	node := &s.nodes[idx-1]
	next := node.next
	s.recycle.release(idx, tag, next)

	copy(node.payload, src[:s.elementSize])
	s.pushLink(idx, &s.public)

	if s.metrics != nil {
		s.tps.Increment()
		s.metrics.UpdateDepth(int(s.numElements) - s.freeCountHint())
	}
	return true
}

// Pop copies elementSize bytes off the stack into dst. Returns false
// if the stack is empty.
func (s *Stack) Pop(dst []byte) bool {
	return s.popWithLimit(dst, s.spinLimit())
}

func (s *Stack) popWithLimit(dst []byte, limit uint32) bool {
	acquireStart := time.Now()
	idx, tag := s.public.acquire(limit)
	if s.latency != nil {
		s.latency.Record(time.Since(acquireStart))
	}
	if idx == 0 {
		s.public.release(0, tag, 0)
		return false
	}
	node := &s.nodes[idx-1]
	next := node.next
	s.public.release(idx, tag, next)

	copy(dst, node.payload[:s.elementSize])
	s.pushLink(idx, &s.recycle)

	if s.metrics != nil {
		s.tps.Increment()
		s.metrics.UpdateDepth(int(s.numElements) - s.freeCountHint())
	}
	return true
}

// PushErr behaves like Push but reports a full stack as a *FullError
// instead of a bool, for callers that want one error-handling shape
// across every container in the package.
func (s *Stack) PushErr(src []byte) error {
	if !s.Push(src) {
		return &FullError{Container: "stack"}
	}
	return nil
}

// pushLink splices the node at idx onto the head of chain without
// acquiring its micro-lock: a bare CAS suffices because concurrent
// pop_link-style removals validate (data, ref) jointly and retry if
// the head changed underneath them.
func (s *Stack) pushLink(idx uint32, chain *referencedPtr) {
	node := &s.nodes[idx-1]
	for {
		old, ref := chain.load()
		if busy(ref) {
			pauseHint()
			continue
		}
		node.next = old
		if chain.casData(old, idx) {
			return
		}
	}
}

// IsEmpty reports whether the stack currently holds no elements. The
// result is a snapshot and may be stale under contention.
func (s *Stack) IsEmpty() bool {
	idx, _ := s.public.load()
	return idx == 0
}

// IsFull reports whether the stack currently holds numElements
// elements. The result is a snapshot and may be stale under contention.
func (s *Stack) IsFull() bool {
	idx, _ := s.recycle.load()
	return idx == 0
}

// freeCountHint walks the recycle chain to estimate free slot count.
// Used only for metrics; not safe to call concurrently with mutation
// if an exact count matters, since it is a non-atomic multi-step read.
func (s *Stack) freeCountHint() int {
	idx, _ := s.recycle.load()
	count := 0
	seen := make(map[uint32]bool, s.numElements)
	for idx != 0 && !seen[idx] {
		seen[idx] = true
		count++
		idx = s.nodes[idx-1].next
	}
	return count
}

// occupancy returns a snapshot element count, used by [NotifyingStack]
// to evaluate the partly-empty/almost-full thresholds.
func (s *Stack) occupancy() uint32 {
	return s.numElements - uint32(s.freeCountHint())
}

// Empty drains every public element into the recycle chain. It is not
// safe to call concurrently with Push/Pop on the same stack.
func (s *Stack) Empty() {
	for {
		idx, tag := s.public.acquire(s.spinLimit())
		if idx == 0 {
			s.public.release(0, tag, 0)
			return
		}
		next := s.nodes[idx-1].next
		s.public.release(idx, tag, next)
		s.pushLink(idx, &s.recycle)
	}
}

// Metrics returns a snapshot of the stack's runtime metrics. Only
// populated when the stack was constructed with WithMetrics(true).
func (s *Stack) Metrics() (QueueMetricsSnapshot, float64) {
	if s.metrics == nil {
		return QueueMetricsSnapshot{}, 0
	}
	return s.metrics.snapshot(), s.tps.TPS()
}

// LatencyStats returns the micro-lock acquisition latency distribution
// observed by this stack. Only populated when the stack was
// constructed with WithMetrics(true).
func (s *Stack) LatencyStats() (LatencySnapshot, bool) {
	if s.latency == nil {
		return LatencySnapshot{}, false
	}
	return s.latency.Snapshot(), true
}

// round4 rounds v up to the nearest multiple of 4, matching the
// slot-size rounding documented in spec.md §3.1.
func round4(v uint32) uint32 {
	return (v + 3) &^ 3
}
