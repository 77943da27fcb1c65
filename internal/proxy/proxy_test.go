package proxy

import (
	"encoding/binary"
	"testing"

	"github.com/remlink/rlg/internal/commlink"
	"github.com/remlink/rlg/internal/dwarfgraph"
	"github.com/remlink/rlg/internal/protocol"
	"github.com/remlink/rlg/internal/scratch"
)

// memTarget is a tiny in-process command loop: a flat byte array plus a
// table of callable functions, driven over a loopback Communicator exactly
// like a real target's trampoline would be.
type memTarget struct {
	comm  commlink.Communicator
	word  int
	mem   []byte
	base  uint64
	funcs map[uint64]func(args []uint64) uint64
	done  chan struct{}
}

func newMemTarget(comm commlink.Communicator, word int, base uint64, size int) *memTarget {
	t := &memTarget{comm: comm, word: word, mem: make([]byte, size), base: base, funcs: make(map[uint64]func([]uint64) uint64), done: make(chan struct{})}
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
		case protocol.OpEcho:
			t.reply(payload)
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
		case protocol.OpCall:
			addr := decodeWordBE(payload[0:t.word])
			retsize := binary.BigEndian.Uint16(payload[t.word : t.word+2])
			argc := binary.BigEndian.Uint16(payload[t.word+2 : t.word+4])
			args := make([]uint64, argc)
			cursor := t.word + 4
			for i := range args {
				args[i] = decodeWordBE(payload[cursor : cursor+t.word])
				cursor += t.word
			}
			fn, ok := t.funcs[addr]
			var ret uint64
			if ok {
				ret = fn(args)
			}
			buf := make([]byte, retsize)
			putWordBE(buf, ret)
			t.reply(buf)
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

func putWordBE(buf []byte, v uint64) {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

func newTestLib(t *testing.T, base uint64, size int) (*Lib, *memTarget) {
	t.Helper()
	a, b := commlink.NewLoopbackPair()
	target := newMemTarget(b, 8, base, size)
	t.Cleanup(func() { target.stop() })

	client := protocol.NewClient(a, 8)
	graph := &dwarfgraph.Graph{Types: map[string]*dwarfgraph.Node{}, Enums: map[string]int64{}, ByteOrder: binary.BigEndian, WordSize: 8}
	alloc := scratch.New(client, base, size)
	return New(graph, client, alloc, "_rlg_"), target
}

func addr(n uint64) *uint64 { return &n }

func TestLibGetScalarCompatibilityModeUnwraps(t *testing.T) {
	lib, target := newTestLib(t, 0x1000, 4096)
	_ = target

	counter := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "int", Size: 4, Signed: true}
	lib.Graph.Types["int"] = counter
	lib.Graph.Types["g_counter"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, TypeName: "g_counter", Base: counter, Size: 4, Address: addr(0x1010)}

	if err := lib.Client.MemWrite(0x1010, []byte{0, 0, 0, 42}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	got, err := lib.Get("g_counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.(int64) != 42 {
		t.Fatalf("Get() = %v, want 42", got)
	}
}

func TestLibGetConstUsesHarvestedData(t *testing.T) {
	lib, _ := newTestLib(t, 0x1000, 4096)

	u32 := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "uint32_t", Size: 4, Signed: false}
	lib.Graph.Types["uint32_t"] = u32
	lib.Graph.Types["X"] = &dwarfgraph.Node{
		Kind: dwarfgraph.KindVariable, TypeName: "X", Base: u32, Size: 4,
		Address: addr(0x2000), Data: []byte{0, 0, 0, 42},
	}

	lib.Client.Close() // prove no wire traffic is needed: the link is dead.

	got, err := lib.Get("X")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.(int64) != 42 {
		t.Fatalf("Get() = %v, want 42 from harvested data", got)
	}
}

func TestValueIndexedReadWrite(t *testing.T) {
	lib, _ := newTestLib(t, 0x1000, 4096)

	u8 := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "uint8_t", Size: 1, Signed: false}
	lib.Graph.Types["uint8_t"] = u8
	arr := &dwarfgraph.Node{Kind: dwarfgraph.KindArray, TypeName: "uint8_t [10]", Base: u8, Length: 10, Size: 10}
	lib.Graph.Types["buf"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, TypeName: "buf", Base: arr, Size: 10, Address: addr(0x1100)}

	got, err := lib.Get("buf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v := got.(*Value)

	if err := v.SetIndex(3, int64(0x55)); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	readBack, err := v.Index(3)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if readBack.(int64) != 0x55 {
		t.Fatalf("Index(3) = %v, want 0x55", readBack)
	}
}

func TestValueMemberAccessAndPointerAutoDeref(t *testing.T) {
	lib, _ := newTestLib(t, 0x1000, 4096)

	i32 := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "int", Size: 4, Signed: true}
	lib.Graph.Types["int"] = i32

	nodeStruct := &dwarfgraph.Node{Kind: dwarfgraph.KindStruct, TypeName: "struct node", Size: 12}
	ptrToSelf := &dwarfgraph.Node{Kind: dwarfgraph.KindPointer, TypeName: "struct node *", Size: 8, Base: nodeStruct}
	nodeStruct.Members = []dwarfgraph.Member{
		{Name: "value", Offset: 0, Type: i32},
		{Name: "next", Offset: 4, Type: ptrToSelf},
	}
	lib.Graph.Types["struct node"] = nodeStruct

	lib.Graph.Types["head"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, TypeName: "head", Base: nodeStruct, Size: 12, Address: addr(0x1200)}
	lib.Graph.Types["tail"] = &dwarfgraph.Node{Kind: dwarfgraph.KindVariable, TypeName: "tail", Base: nodeStruct, Size: 12, Address: addr(0x1300)}

	// head.value = 7, head.next = &tail, tail.value = 9
	if err := lib.Client.MemWrite(0x1200, []byte{0, 0, 0, 7}); err != nil {
		t.Fatal(err)
	}
	nextBuf := make([]byte, 8)
	putWordBE(nextBuf, 0x1300)
	if err := lib.Client.MemWrite(0x1204, nextBuf); err != nil {
		t.Fatal(err)
	}
	if err := lib.Client.MemWrite(0x1300, []byte{0, 0, 0, 9}); err != nil {
		t.Fatal(err)
	}

	got, err := lib.Get("head")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	head := got.(*Value)

	val, err := head.Member("value")
	if err != nil {
		t.Fatalf("Member(value): %v", err)
	}
	if val.(int64) != 7 {
		t.Fatalf("head.value = %v, want 7", val)
	}

	nextAny, err := head.Member("next")
	if err != nil {
		t.Fatalf("Member(next): %v", err)
	}
	next := nextAny.(*Value)
	if next.Address != 0x1300 {
		t.Fatalf("head.next address = %x, want 0x1300 (auto-deref)", next.Address)
	}

	tailVal, err := next.Member("value")
	if err != nil {
		t.Fatalf("next.Member(value): %v", err)
	}
	if tailVal.(int64) != 9 {
		t.Fatalf("head.next.value = %v, want 9", tailVal)
	}
}

func TestFuncCallSimpleReturn(t *testing.T) {
	lib, target := newTestLib(t, 0x1000, 4096)

	i32 := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "int", Size: 4, Signed: true}
	lib.Graph.Types["int"] = i32
	fnAddr := uint64(0x5000)
	lib.Graph.Types["f3"] = &dwarfgraph.Node{
		Kind: dwarfgraph.KindFunction, TypeName: "f3", ReturnType: i32,
		Arguments: []*dwarfgraph.Node{i32, i32}, Address: &fnAddr,
	}
	target.funcs[fnAddr] = func(args []uint64) uint64 {
		return uint64(int32(args[0]) + int32(args[1]) + 1)
	}

	f, err := lib.Func("f3")
	if err != nil {
		t.Fatalf("Func: %v", err)
	}
	ret, err := f.Call(int64(21), int64(20))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ret.(int64) != 42 {
		t.Fatalf("Call() = %v, want 42", ret)
	}
}

func TestFuncCallStructByValueRedirectsToPtrVariant(t *testing.T) {
	lib, target := newTestLib(t, 0x1000, 4096)

	i32 := &dwarfgraph.Node{Kind: dwarfgraph.KindInt, TypeName: "int", Size: 4, Signed: true}
	lib.Graph.Types["int"] = i32
	bigStruct := &dwarfgraph.Node{Kind: dwarfgraph.KindStruct, TypeName: "struct big", Size: 16}
	lib.Graph.Types["struct big"] = bigStruct

	fnAddr := uint64(0x6000)
	lib.Graph.Types["make_big"] = &dwarfgraph.Node{
		Kind: dwarfgraph.KindFunction, TypeName: "make_big", ReturnType: bigStruct, Address: &fnAddr,
	}
	ptrAddr := uint64(0x6100)
	lib.Graph.Types["_rlg_ptr_make_big"] = &dwarfgraph.Node{
		Kind: dwarfgraph.KindFunction, TypeName: "_rlg_ptr_make_big", ReturnType: nil, Address: &ptrAddr,
	}
	target.funcs[ptrAddr] = func(args []uint64) uint64 {
		out := args[0]
		off := out - target.base
		putWordBE(target.mem[off:off+4], 0xAABBCCDD&0xFFFFFFFF)
		return 0
	}

	f, err := lib.Func("make_big")
	if err != nil {
		t.Fatalf("Func: %v", err)
	}
	ret, err := f.Call()
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	v, ok := ret.(*Value)
	if !ok {
		t.Fatalf("Call() returned %T, want *Value", ret)
	}
	if v.Type != bigStruct {
		t.Fatalf("returned proxy type = %v, want struct big", v.Type)
	}
}
