package lockfree

import "unsafe"

// NotifyingStack wraps a [Stack] with edge-triggered notifications: every
// successful Push/Pop fires OnAllInserts/OnAllRemoves, and occupancy
// crossing the configured thresholds fires OnPartlyEmpty/OnAlmostFull
// at most once per edge. See spec.md §7's Notification edge law.
type NotifyingStack struct {
	*Stack
	subject     *Subject
	partlyEmpty uint32
	almostFull  uint32
}

// NewNotifyingStack wraps s, computing thresholds from the options it
// was constructed with (WithPartlyEmptyFactor/WithAlmostFullFactor,
// defaulting to 0.8/0.9 of capacity).
func NewNotifyingStack(s *Stack) *NotifyingStack {
	pe, af := notifyThresholds(s.numElements, s.opts.partlyEmptyFactor, s.opts.almostFullFactor)
	subject := NewSubjectInZone(s.occupancy(), pe, af)
	return &NotifyingStack{Stack: s, subject: subject, partlyEmpty: pe, almostFull: af}
}

// Subscribe registers fn to receive every event delivered by this wrapper.
func (n *NotifyingStack) Subscribe(fn func(EventKind)) {
	n.subject.Subscribe(fn)
}

// Push pushes onto the underlying stack and fires notifications.
func (n *NotifyingStack) Push(src []byte) bool {
	ok := n.Stack.Push(src)
	if ok {
		n.subject.Notify(OnAllInserts)
		n.checkThresholds()
	}
	return ok
}

// Pop pops from the underlying stack and fires notifications.
func (n *NotifyingStack) Pop(dst []byte) bool {
	ok := n.Stack.Pop(dst)
	if ok {
		n.subject.Notify(OnAllRemoves)
		n.checkThresholds()
	}
	return ok
}

func (n *NotifyingStack) checkThresholds() {
	occ := n.Stack.occupancy()
	id := int64(uintptr(unsafe.Pointer(n.Stack)))
	if occ <= n.partlyEmpty {
		n.subject.NotifyOnce(OnPartlyEmpty)
		LogNotificationFired(id, OnPartlyEmpty)
	}
	if occ >= n.almostFull {
		n.subject.NotifyOnce(OnAlmostFull)
		LogNotificationFired(id, OnAlmostFull)
	}
}

// NotifyingRingQueue wraps a [RingQueue] with the same edge-triggered
// notification semantics as [NotifyingStack].
type NotifyingRingQueue struct {
	*RingQueue
	subject     *Subject
	partlyEmpty uint32
	almostFull  uint32
}

// NewNotifyingRingQueue wraps q, computing thresholds from the options
// it was constructed with.
func NewNotifyingRingQueue(q *RingQueue) *NotifyingRingQueue {
	pe, af := notifyThresholds(q.numElements, q.opts.partlyEmptyFactor, q.opts.almostFullFactor)
	subject := NewSubjectInZone(q.occupancy(), pe, af)
	return &NotifyingRingQueue{RingQueue: q, subject: subject, partlyEmpty: pe, almostFull: af}
}

// Subscribe registers fn to receive every event delivered by this wrapper.
func (n *NotifyingRingQueue) Subscribe(fn func(EventKind)) {
	n.subject.Subscribe(fn)
}

// Enqueue enqueues onto the underlying ring and fires notifications.
func (n *NotifyingRingQueue) Enqueue(src []byte) bool {
	ok := n.RingQueue.Enqueue(src)
	if ok {
		n.subject.Notify(OnAllInserts)
		n.checkThresholds()
	}
	return ok
}

// Dequeue dequeues from the underlying ring and fires notifications.
func (n *NotifyingRingQueue) Dequeue(dst []byte) bool {
	ok := n.RingQueue.Dequeue(dst)
	if ok {
		n.subject.Notify(OnAllRemoves)
		n.checkThresholds()
	}
	return ok
}

func (n *NotifyingRingQueue) checkThresholds() {
	occ := n.RingQueue.occupancy()
	id := int64(uintptr(unsafe.Pointer(n.RingQueue)))
	if occ <= n.partlyEmpty {
		n.subject.NotifyOnce(OnPartlyEmpty)
		LogNotificationFired(id, OnPartlyEmpty)
	}
	if occ >= n.almostFull {
		n.subject.NotifyOnce(OnAlmostFull)
		LogNotificationFired(id, OnAlmostFull)
	}
}

// NotifyingBlockQueue wraps a [BlockQueue] with edge-triggered
// notifications. Because the block queue is unbounded it has no
// natural capacity, so OnAlmostFull is driven by an explicit watermark
// rather than a fraction of a fixed size.
type NotifyingBlockQueue[T any] struct {
	*BlockQueue[T]
	subject        *Subject
	almostFullMark uint32
}

// NewNotifyingBlockQueue wraps q. almostFullMark is the element count
// at or above which OnAlmostFull fires; OnPartlyEmpty fires when
// occupancy returns to zero.
func NewNotifyingBlockQueue[T any](q *BlockQueue[T], almostFullMark uint32) *NotifyingBlockQueue[T] {
	subject := NewSubjectInZone(q.occupancy(), 0, almostFullMark)
	return &NotifyingBlockQueue[T]{BlockQueue: q, subject: subject, almostFullMark: almostFullMark}
}

// Subscribe registers fn to receive every event delivered by this wrapper.
func (n *NotifyingBlockQueue[T]) Subscribe(fn func(EventKind)) {
	n.subject.Subscribe(fn)
}

// Enqueue enqueues onto the underlying queue and fires notifications.
func (n *NotifyingBlockQueue[T]) Enqueue(v T) error {
	err := n.BlockQueue.Enqueue(v)
	if err == nil {
		n.subject.Notify(OnAllInserts)
		n.checkThresholds()
	}
	return err
}

// TryDequeue dequeues from the underlying queue and fires notifications.
func (n *NotifyingBlockQueue[T]) TryDequeue() (T, bool) {
	v, ok := n.BlockQueue.TryDequeue()
	if ok {
		n.subject.Notify(OnAllRemoves)
		n.checkThresholds()
	}
	return v, ok
}

func (n *NotifyingBlockQueue[T]) checkThresholds() {
	occ := n.BlockQueue.occupancy()
	id := n.BlockQueue.id()
	if occ == 0 {
		n.subject.NotifyOnce(OnPartlyEmpty)
		LogNotificationFired(id, OnPartlyEmpty)
	}
	if n.almostFullMark > 0 && occ >= n.almostFullMark {
		n.subject.NotifyOnce(OnAlmostFull)
		LogNotificationFired(id, OnAlmostFull)
	}
}
