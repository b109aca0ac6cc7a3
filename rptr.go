package lockfree

import (
	"runtime"
	"sync/atomic"
)

// referencedPtr is the micro-locking primitive shared by [Stack] and
// [RingQueue]: a 64-bit aligned pair `{data, ref}` where `ref`'s low
// bit is the busy flag and the remaining bits identify the holding
// attempt. Per the design notes, `data` is not a raw pointer but an
// index into a preallocated arena ([Stack] uses 1-based node indices
// with 0 meaning nil; [RingQueue] uses 0-based slot and cell
// indices); this keeps
// every slot access free of an atomic refcount while still fitting
// the "64-bit pair" shape in a single [atomic.Uint64], which is the
// widest compare-and-swap Go's atomic package exposes.
//
// Acquiring the micro-lock only ever rewrites the ref half (the data
// half is left untouched), mirroring the documented CAS32 on the `ref`
// field. Releasing rewrites both halves in one compare-and-swap,
// mirroring the documented CAS64 that publishes a new `data` and
// clears `ref` together.
type referencedPtr struct {
	word atomic.Uint64
}

// packRef packs an arena index and a ref tag into a single word.
func packRef(idx, ref uint32) uint64 {
	return uint64(idx)<<32 | uint64(ref)
}

// unpackRef splits a packed word back into its index and ref halves.
func unpackRef(packed uint64) (idx, ref uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// busy reports whether ref's low bit (the busy flag) is set.
func busy(ref uint32) bool {
	return ref&1 != 0
}

// load returns the current index and ref without acquiring anything.
func (p *referencedPtr) load() (idx, ref uint32) {
	return unpackRef(p.word.Load())
}

// storeIdle initializes the pointer to idx with the busy flag clear.
// Only valid before the structure is published to other goroutines.
func (p *referencedPtr) storeIdle(idx uint32) {
	p.word.Store(packRef(idx, 0))
}

// acquire implements the referenced-pointer micro-lock: it spins up
// to spinLimit times per round waiting for the busy bit to clear, then
// attempts CAS32(observed_ref, tag, ref_field); on failure (contention
// or a changed observed value) it retries from the top. Between
// rounds it yields cooperatively. Returns the arena index that was
// current at acquisition and the tag now published in ref.
func (p *referencedPtr) acquire(spinLimit uint32) (idx uint32, tag uint32) {
	if spinLimit == 0 {
		spinLimit = defaultSpinLimit
	}
	tag = nextThreadTag()
	for {
		for i := uint32(0); i < spinLimit; i++ {
			packed := p.word.Load()
			curIdx, ref := unpackRef(packed)
			if !busy(ref) {
				if p.word.CompareAndSwap(packed, packRef(curIdx, tag)) {
					return curIdx, tag
				}
			}
			pauseHint()
		}
		runtime.Gosched()
	}
}

// release publishes newIdx and clears the busy bit in one
// compare-and-swap, validating that the calling goroutine still holds
// the lock it acquired as (idx, tag). Because only the acquirer may
// mutate the data half while the busy bit is set, this CAS always
// succeeds on the first attempt in a correct caller; it loops purely
// as a defensive measure against a caller error rather than expected
// contention.
func (p *referencedPtr) release(idx, tag, newIdx uint32) {
	expect := packRef(idx, tag)
	newWord := packRef(newIdx, 0)
	for !p.word.CompareAndSwap(expect, newWord) {
		// The lock holder's own CAS should never race; if it does,
		// re-read the current word and replace it, so the busy bit is
		// never left set.
		packed := p.word.Load()
		curIdx, ref := unpackRef(packed)
		expect = packRef(curIdx, ref)
		pauseHint()
	}
}

// casData performs the bare compare-and-swap used by push_link's
// ([Stack.pushLink]) non-lock-holding fast path: it only succeeds while
// the busy bit is clear, so it naturally defers to any concurrent
// micro-lock holder.
func (p *referencedPtr) casData(oldIdx, newIdx uint32) bool {
	packed := p.word.Load()
	curIdx, ref := unpackRef(packed)
	if busy(ref) || curIdx != oldIdx {
		return false
	}
	return p.word.CompareAndSwap(packed, packRef(newIdx, 0))
}

// threadTagCounter mints fresh, non-zero, odd-low-bit tags. The
// protocol only requires that a tag differ from the idle value (ref
// == 0) and from any tag concurrently in flight; a monotonically
// increasing counter satisfies both without needing a stable
// per-goroutine identity, which Go does not expose portably.
var threadTagCounter atomic.Uint32

// nextThreadTag returns a fresh non-zero tag with its low (busy) bit set.
func nextThreadTag() uint32 {
	return threadTagCounter.Add(2) | 1
}

// pauseHint is the portable stand-in for a CPU "pause" spin
// instruction. Platform-specific yield primitives are out of scope;
// [runtime.Gosched] gives the scheduler a chance to run another
// goroutine without blocking the calling thread.
func pauseHint() {
	runtime.Gosched()
}
