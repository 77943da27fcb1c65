// Package scratch manages a single fixed-size byte array the target
// statically reserves as a host-controlled heap (the "scratch region"),
// located by a known symbol name such as gti2_memory/pyroxene_memory.
package scratch

import (
	"crypto/rand"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/remlink/rlg/internal/protocol"
)

// scratchSlot is the live-allocation record. id exists purely so a
// finalizer callback (which must not retain the slot itself, or nothing
// would ever become unreachable) can name which slot to reclaim.
type scratchSlot struct {
	id   ulid.ULID
	addr uint64
	size int
}

// Handle is the caller-visible allocation token returned by Allocate. It is
// a thin value wrapping a pointer to the slot record; dropping every Handle
// that wraps a given slot makes the slot's runtime.AddCleanup fallback fire
// on a future GC, reclaiming memory the caller never explicitly freed
// without a fabricated reachability counter.
type Handle struct {
	slot *scratchSlot
}

// Address is the target-memory address of this allocation.
func (h Handle) Address() uint64 {
	if h.slot == nil {
		return 0
	}
	return h.slot.addr
}

// Size is the allocation's size in bytes.
func (h Handle) Size() int {
	if h.slot == nil {
		return 0
	}
	return h.slot.size
}

// Allocator owns the scratch region's placement bookkeeping. It is not
// thread-safe for Allocate/Free — the only unavoidably-concurrent bit is the
// finalizer callback runtime.AddCleanup invokes from its own goroutine,
// which is confined to mutating a small guarded id set that autofree drains
// under the Allocator's own call.
type Allocator struct {
	client *protocol.Client
	base   uint64
	size   int

	live []*scratchSlot // sorted by addr, ascending

	mu           sync.Mutex
	finalizedIDs map[ulid.ULID]bool

	entropy *ulid.MonotonicEntropy
}

// New constructs an Allocator over the region [base, base+size) reachable
// through client. The caller resolves base/size from the target's named
// scratch symbol (internal/dwarfgraph.Graph lookup) before calling this.
func New(client *protocol.Client, base uint64, size int) *Allocator {
	return &Allocator{
		client:       client,
		base:         base,
		size:         size,
		finalizedIDs: make(map[ulid.ULID]bool),
		entropy:      ulid.Monotonic(rand.Reader, 0),
	}
}

// Allocate reserves size bytes 8-byte aligned within the region, running
// autofree first to reclaim anything the host has already dropped. The
// returned memory is zeroed on the target before Allocate returns.
func (a *Allocator) Allocate(size int) (Handle, error) {
	a.autofree()

	addr, index, err := a.findFit(size)
	if err != nil {
		return Handle{}, err
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), a.entropy)
	slot := &scratchSlot{id: id, addr: addr, size: size}
	// live keeps its own copy of the record, so the Handle's slot becomes
	// unreachable (and its cleanup can fire) once the caller drops it.
	rec := *slot
	a.live = append(a.live, nil)
	copy(a.live[index+1:], a.live[index:])
	a.live[index] = &rec

	if size > 0 {
		if err := a.client.MemWrite(addr, make([]byte, size)); err != nil {
			a.removeByID(id)
			return Handle{}, err
		}
	}

	runtime.AddCleanup(slot, a.markFinalized, id)
	return Handle{slot: slot}, nil
}

// Free releases h immediately, without waiting for a GC to run h's
// finalizer fallback. This is the explicit, Go-idiomatic substitute for a
// reachability-probe-driven autofree.
func (a *Allocator) Free(h Handle) {
	if h.slot == nil {
		return
	}
	a.removeByID(h.slot.id)
}

func (a *Allocator) markFinalized(id ulid.ULID) {
	a.mu.Lock()
	a.finalizedIDs[id] = true
	a.mu.Unlock()
}

// autofree drains whatever ids the GC has finalized since the last call and
// removes all of their slots from the live list in a single pass; the ULIDs
// only identify slots, they impose no order on the removal.
func (a *Allocator) autofree() {
	a.mu.Lock()
	if len(a.finalizedIDs) == 0 {
		a.mu.Unlock()
		return
	}
	ids := a.finalizedIDs
	a.finalizedIDs = make(map[ulid.ULID]bool)
	a.mu.Unlock()

	remaining := a.live[:0]
	for _, s := range a.live {
		if ids[s.id] {
			continue
		}
		remaining = append(remaining, s)
	}
	a.live = remaining
}

func (a *Allocator) removeByID(id ulid.ULID) {
	for i, s := range a.live {
		if s.id == id {
			a.live = append(a.live[:i], a.live[i+1:]...)
			return
		}
	}
}

// findFit returns the lowest aligned address with size bytes of headroom
// before the next live allocation (or the region's end), plus the index in
// a.live the new slot should be inserted at to keep the list sorted.
func (a *Allocator) findFit(size int) (uint64, int, error) {
	cursor := align8(a.base)
	for i, s := range a.live {
		if cursor+uint64(size) <= s.addr {
			return cursor, i, nil
		}
		cursor = align8(s.addr + uint64(s.size))
	}
	if cursor+uint64(size) <= a.base+uint64(a.size) {
		return cursor, len(a.live), nil
	}
	return 0, 0, ErrOutOfMemory
}

func align8(addr uint64) uint64 {
	return (addr + 7) &^ 7
}
