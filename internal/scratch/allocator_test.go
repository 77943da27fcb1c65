package scratch

import (
	"runtime"
	"testing"
	"time"

	"github.com/remlink/rlg/internal/commlink"
	"github.com/remlink/rlg/internal/protocol"
)

func newTestAllocator(t *testing.T, base uint64, size int) *Allocator {
	t.Helper()
	a, b := commlink.NewLoopbackPair()
	target := newFakeSink(b)
	t.Cleanup(func() { target.stop() })
	return New(protocol.NewClient(a, 8), base, size)
}

// fakeSink drains mem_write frames with a zero-byte ACK reply; scratch's
// zeroing writes are the only traffic Allocate generates.
type fakeSink struct {
	comm commlink.Communicator
	done chan struct{}
}

func newFakeSink(comm commlink.Communicator) *fakeSink {
	s := &fakeSink{comm: comm, done: make(chan struct{})}
	go s.serve()
	return s
}

func (s *fakeSink) stop() {
	s.comm.Close()
	<-s.done
}

func (s *fakeSink) serve() {
	defer close(s.done)
	for {
		hdr, err := s.comm.Read(4)
		if err != nil {
			return
		}
		length := int(hdr[2])<<8 | int(hdr[3])
		if length > 0 {
			if _, err := s.comm.Read(length); err != nil {
				return
			}
		}
		if err := s.comm.Write([]byte{'A', 'C', 'K'}); err != nil {
			return
		}
	}
}

func TestAllocateIs8ByteAligned(t *testing.T) {
	a := newTestAllocator(t, 0x1003, 4096)
	h, err := a.Allocate(10)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if h.Address()%8 != 0 {
		t.Fatalf("address %x is not 8-byte aligned", h.Address())
	}
}

func TestAllocateReusesFreedSlot(t *testing.T) {
	a := newTestAllocator(t, 0x2000, 4096)

	h1, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate 1: %v", err)
	}
	firstAddr := h1.Address()

	if _, err := a.Allocate(16); err != nil {
		t.Fatalf("Allocate 2: %v", err)
	}

	a.Free(h1)

	h3, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate 3: %v", err)
	}
	if h3.Address() != firstAddr {
		t.Fatalf("Allocate after Free = %x, want reused address %x", h3.Address(), firstAddr)
	}
}

func TestAllocateFailsWhenFull(t *testing.T) {
	a := newTestAllocator(t, 0x3000, 16)
	if _, err := a.Allocate(16); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate(1); err == nil {
		t.Fatal("expected ErrOutOfMemory")
	}
}

func TestAutofreeReclaimsFinalizedHandle(t *testing.T) {
	a := newTestAllocator(t, 0x4000, 4096)

	func() {
		if _, err := a.Allocate(32); err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		// h goes out of scope here with no other reference.
	}()

	runtime.GC()
	// Cleanup callbacks run on their own goroutine; give the runtime a
	// moment before asserting autofree sees the finalized id.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		n := len(a.finalizedIDs)
		a.mu.Unlock()
		if n > 0 {
			break
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := a.Allocate(4096 - 16); err != nil {
		t.Fatalf("Allocate after GC should have reused the reclaimed slot: %v", err)
	}
}
