package inspect

import (
	"encoding/binary"
	"testing"

	"github.com/remlink/rlg/internal/commlink"
	"github.com/remlink/rlg/internal/dwarfgraph"
	"github.com/remlink/rlg/internal/protocol"
	"github.com/remlink/rlg/internal/proxy"
	"github.com/remlink/rlg/internal/scratch"
)

// memTarget is a minimal read/write-only command loop, the same shape as
// proxy's own test fixture, sized down since flatten never issues a call.
type memTarget struct {
	comm commlink.Communicator
	word int
	mem  []byte
	base uint64
	done chan struct{}
}

func newMemTarget(comm commlink.Communicator, word int, base uint64, size int) *memTarget {
	t := &memTarget{comm: comm, word: word, mem: make([]byte, size), base: base, done: make(chan struct{})}
	go t.serve()
	return t
}

func (t *memTarget) stop() {
	t.comm.Close()
	<-t.done
}

func (t *memTarget) serve() {
	defer close(t.done)
	for {
		hdr, err := t.comm.Read(4)
		if err != nil {
			return
		}
		opcode := binary.BigEndian.Uint16(hdr[0:2])
		length := binary.BigEndian.Uint16(hdr[2:4])
		var payload []byte
		if length > 0 {
			payload, err = t.comm.Read(int(length))
			if err != nil {
				return
			}
		}
		switch opcode {
		case protocol.OpMemRead:
			addr := decodeWordBE(payload[0:t.word])
			size := decodeWordBE(payload[t.word : 2*t.word])
			off := addr - t.base
			t.reply(t.mem[off : off+size])
		case protocol.OpMemWrite:
			addr := decodeWordBE(payload[0:t.word])
			off := addr - t.base
			copy(t.mem[off:], payload[t.word:])
			t.reply(nil)
		}
	}
}

func (t *memTarget) reply(payload []byte) {
	t.comm.Write(append([]byte{'A', 'C', 'K'}, payload...))
}

func decodeWordBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func newTestLib(t *testing.T, base uint64, size int) *proxy.Lib {
	t.Helper()
	a, b := commlink.NewLoopbackPair()
	target := newMemTarget(b, 8, base, size)
	t.Cleanup(func() { target.stop() })

	client := protocol.NewClient(a, 8)
	graph := &dwarfgraph.Graph{Types: map[string]*dwarfgraph.Node{}, Enums: map[string]int64{}, ByteOrder: binary.BigEndian, WordSize: 8}
	alloc := scratch.New(client, base, size)
	return proxy.New(graph, client, alloc, "_rlg_")
}

func addr(n uint64) *uint64 { return &n }

func TestFlattenScalarRoot(t *testing.T) {
	lib := newTestLib(t, 0x1000, 4096)
	counter := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "int", Size: 4, Signed: true}
	lib.Graph.Types["int"] = counter
	lib.Graph.Types["g_counter"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, Base: counter, Size: 4, Address: addr(0x1010)}
	if err := lib.Client.MemWrite(0x1010, []byte{0, 0, 0, 7}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	val, err := lib.Get("g_counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rows := flatten("g_counter", val)
	if len(rows) != 1 || rows[0].text != "7" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestFlattenStructExpandsMembers(t *testing.T) {
	lib := newTestLib(t, 0x1000, 4096)
	intType := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "int", Size: 4, Signed: true}
	nodeStruct := &dwarfgraph.Node{Kind: dwarfgraph.KindStruct, TypeName: "struct point"}
	nodeStruct.Members = []dwarfgraph.Member{
		{Name: "x", Type: intType, Offset: 0},
		{Name: "y", Type: intType, Offset: 4},
	}
	lib.Graph.Types["g_p"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, Base: nodeStruct, Size: 8, Address: addr(0x1020)}

	if err := lib.Client.MemWrite(0x1020, []byte{0, 0, 0, 3, 0, 0, 0, 9}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	val, err := lib.Get("g_p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rows := flatten("g_p", val)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].name != "x" || rows[0].text != "3" {
		t.Errorf("x row = %+v", rows[0])
	}
	if rows[1].name != "y" || rows[1].text != "9" {
		t.Errorf("y row = %+v", rows[1])
	}
}

func TestFlattenArrayExpandsElements(t *testing.T) {
	lib := newTestLib(t, 0x1000, 4096)
	elemType := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "uint8_t", Size: 1}
	arrayType := &dwarfgraph.Node{Kind: dwarfgraph.KindArray, TypeName: "uint8_t[4]", Base: elemType, Length: 4, Size: 4}
	lib.Graph.Types["g_buf"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, Base: arrayType, Size: 4, Address: addr(0x1030)}

	if err := lib.Client.MemWrite(0x1030, []byte{10, 20, 30, 40}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	val, err := lib.Get("g_buf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rows := flatten("g_buf", val)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4: %+v", len(rows), rows)
	}
	if rows[0].name != "[0]" || rows[0].text != "10" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[3].text != "40" {
		t.Errorf("row 3 = %+v", rows[3])
	}
}

func TestFlattenStructMemberIsNavigableWhenComposite(t *testing.T) {
	lib := newTestLib(t, 0x1000, 4096)
	inner := &dwarfgraph.Node{Kind: dwarfgraph.KindStruct, TypeName: "struct inner"}
	inner.Members = []dwarfgraph.Member{{Name: "v", Type: &dwarfgraph.Node{Kind: dwarfgraph.KindInt, Size: 4, Signed: true}, Offset: 0}}
	outer := &dwarfgraph.Node{Kind: dwarfgraph.KindStruct, TypeName: "struct outer"}
	outer.Members = []dwarfgraph.Member{{Name: "inner", Type: inner, Offset: 0}}
	lib.Graph.Types["g_outer"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, Base: outer, Size: 4, Address: addr(0x1040)}

	val, err := lib.Get("g_outer")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rows := flatten("g_outer", val)
	if len(rows) != 1 || !rows[0].navigable {
		t.Fatalf("expected a navigable composite member row, got %+v", rows)
	}
}
