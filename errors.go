// Package lockfree: domain error types with cause-chain support,
// compatible with [errors.Is] / [errors.As].
package lockfree

import "fmt"

// EmptyError is returned by a container operation that requires a
// value to be present but found none (e.g. [BlockQueue.Dequeue] on an
// empty queue). Bounded containers signal empty/full via a plain bool
// return on the fast path; EmptyError is reserved for the operations
// that cannot express the condition that way.
type EmptyError struct {
	Container string
	Cause     error
}

// Error implements the error interface.
func (e *EmptyError) Error() string {
	if e.Container == "" {
		return "lockfree: container is empty"
	}
	return fmt.Sprintf("lockfree: %s is empty", e.Container)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *EmptyError) Unwrap() error {
	return e.Cause
}

// FullError is returned by a container operation that requires space
// to be available but found none. Bounded containers signal empty/full
// via a plain bool return on the fast path ([Stack.Push],
// [RingQueue.Enqueue]); FullError backs the error-returning counterparts
// ([Stack.PushErr], [RingQueue.EnqueueErr]) for callers that want the
// uniform error-handling shape [BlockQueue.Enqueue] already uses.
type FullError struct {
	Container string
	Cause     error
}

// Error implements the error interface.
func (e *FullError) Error() string {
	if e.Container == "" {
		return "lockfree: container is full"
	}
	return fmt.Sprintf("lockfree: %s is full", e.Container)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *FullError) Unwrap() error {
	return e.Cause
}

// AllocationFailureError reports that the unbounded block queue could
// not allocate a new block. This is fatal: the queue cannot honor its
// invariants without growing.
type AllocationFailureError struct {
	Requested int
	Cause     error
}

// Error implements the error interface.
func (e *AllocationFailureError) Error() string {
	return fmt.Sprintf("lockfree: failed to allocate block of %d slots", e.Requested)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *AllocationFailureError) Unwrap() error {
	return e.Cause
}

// AlignmentFailureError reports that a container's backing buffer was
// not naturally aligned at initialization. Fatal: every CAS-targeted
// word in this library requires natural alignment.
type AlignmentFailureError struct {
	Want  uintptr
	Got   uintptr
	Cause error
}

// Error implements the error interface.
func (e *AlignmentFailureError) Error() string {
	return fmt.Sprintf("lockfree: buffer alignment %d does not satisfy required %d", e.Got, e.Want)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *AlignmentFailureError) Unwrap() error {
	return e.Cause
}

// InvalidInitializationError reports a rejected `num_elements == 0` or
// `element_size == 0` at container construction.
type InvalidInitializationError struct {
	Field string
	Value uint32
}

// Error implements the error interface.
func (e *InvalidInitializationError) Error() string {
	return fmt.Sprintf("lockfree: invalid initialization: %s must be non-zero, got %d", e.Field, e.Value)
}

// WrapError wraps an error with a message, preserving the cause chain
// so that errors.Is(result, cause) == true.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
