package lockfree

// sizeOfReferencedPtr, sizeOfAtomicUint64 and blockSlotCount are
// verified by the unit tests in sizeof_test.go.
const (
	// sizeOfCacheLine is the size of a CPU cache line.
	// 64 bytes is standard for x86-64.
	// 128 bytes is standard for Apple Silicon (M1/M2/M3) and other ARM64.
	// We use 128 to satisfy the largest common alignment requirement.
	sizeOfCacheLine = 128

	// sizeOfAtomicUint64 is the size of an atomic.Uint64 variable.
	sizeOfAtomicUint64 = 8

	// sizeOfReferencedPtr is the size of a referencedPtr: one packed
	// atomic.Uint64 holding a 32-bit arena index and a 32-bit ref tag.
	sizeOfReferencedPtr = 8

	// blockSlotCount is N, the fixed slot count of one unbounded-queue
	// block (spec.md §3.3).
	blockSlotCount = 4096

	// sizeOfTaggedValue is the 16-byte slot size of the packed layout:
	// a 4-byte-aligned tag word followed by a 12-byte value payload.
	// The Go slot[T] type does not use this layout; it also carries a
	// generic value and three pointers, so its size depends on T.
	sizeOfTaggedValue = 16
)
