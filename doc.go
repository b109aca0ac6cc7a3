// Package lockfree provides lock-free concurrent containers for
// single-process, multi-threaded producer/consumer use: a bounded
// stack (LIFO), a bounded ring-buffer queue (FIFO), and an unbounded
// queue built from linked fixed-size blocks.
//
// # Architecture
//
// The bounded containers ([Stack], [RingQueue]) protect their cursors
// with a referenced-pointer micro-lock ([referencedPtr]): a busy bit
// packed into the low bit of a per-acquisition tag, released by a
// single 64-bit compare-and-swap that
// simultaneously publishes the new value and clears the bit. No
// container holds an OS-level mutex on its fast path; contention is
// resolved by bounded spinning, a cooperative yield, and a "pause"
// hint ([pauseHint]).
//
//   - [Stack] holds fixed-size byte slots in two intrusive singly
//     linked chains (filled, free).
//   - [RingQueue] holds referenced pointers in two ring buffers
//     (filled, free), one extra slot acting as a full/empty separator.
//   - [BlockQueue] holds values of a single generic type in a linked
//     list of fixed-capacity 4096-slot blocks, with a reader/writer
//     epoch counter gating block reclamation.
//
// # Platform Support
//
// The containers are portable; no platform-specific yield primitive is
// used (see spec Non-goals). [pauseHint] degrades to [runtime.Gosched]
// everywhere.
//
// # Thread Safety
//
//   - [Stack.Push], [Stack.Pop], [RingQueue.Enqueue], [RingQueue.Dequeue],
//     [BlockQueue.Enqueue], [BlockQueue.TryDequeue] are safe to call
//     concurrently from any number of goroutines.
//   - [Stack.Empty] and the `IsEmpty`/`IsFull` snapshot accessors are
//     not serialized against concurrent mutation; they may be stale.
//
// # Usage
//
//	s, err := lockfree.NewStack(4, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var v [4]byte
//	ok := s.Push([]byte{1, 2, 3, 4})
//	ok = s.Pop(v[:])
//
// # Error Types
//
// The package provides domain error types:
//   - [EmptyError]: returned by a blocking-style drain on an empty container.
//   - [AllocationFailureError]: fatal, unbounded queue block allocation failed.
//   - [AlignmentFailureError]: fatal, initialization produced a misaligned buffer.
//   - [InvalidInitializationError]: zero `num_elements` or `element_size`.
//
// All error types implement [error]; all except
// [InvalidInitializationError] also implement Unwrap for [errors.Unwrap].
package lockfree
