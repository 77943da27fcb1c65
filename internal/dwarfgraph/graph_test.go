package dwarfgraph

import (
	"encoding/binary"
	"testing"
)

func newTestGraph() *Graph {
	return newGraph(binary.BigEndian, 8)
}

func TestNewGraphSeedsVoidAndNull(t *testing.T) {
	g := newTestGraph()
	void, ok := g.Lookup("void")
	if !ok || void.Kind != KindVoid {
		t.Fatal("void sentinel missing or wrong kind")
	}
	null, ok := g.Lookup("NULL")
	if !ok || null.Kind != KindVariable {
		t.Fatal("NULL sentinel missing or wrong kind")
	}
	if null.Address == nil || *null.Address != 0 {
		t.Fatal("NULL must be address 0")
	}
}

func TestInternOrGetReturnsSameNodeOnSecondCall(t *testing.T) {
	g := newTestGraph()
	a := g.internOrGet("struct foo", KindStruct)
	b := g.internOrGet("struct foo", KindStruct)
	if a != b {
		t.Fatal("internOrGet must return the canonical node on repeat calls")
	}
}

func TestSelfReferentialStructSharesNode(t *testing.T) {
	g := newTestGraph()
	foo := g.internOrGet("struct foo", KindStruct)
	ptr := &Node{Kind: KindPointer, TypeName: "struct foo *", Size: 8, Base: foo}
	foo.addMember(Member{Name: "next", Offset: 0, Type: ptr})
	foo.Size = 8

	m, ok := foo.Member("next")
	if !ok {
		t.Fatal("next member missing")
	}
	if m.Type.Base != foo {
		t.Fatal("self-referential member must point back to the same struct node")
	}
}

func TestMergeFillsUnsetFieldsOnly(t *testing.T) {
	g := newTestGraph()
	addr1 := uint64(0x1000)
	g.Types["counter"] = &Node{Kind: KindVariable, TypeName: "counter", Size: UnsetSize, Length: UnsetLength}

	src := newTestGraph()
	src.Types["counter"] = &Node{Kind: KindVariable, TypeName: "counter", Size: 4, Length: UnsetLength, Address: &addr1}

	g.Merge(src)

	n := g.Types["counter"]
	if n.Address == nil || *n.Address != addr1 {
		t.Fatal("merge should have resolved the address")
	}
	if n.Size != 4 {
		t.Fatal("merge should have resolved the size")
	}
}

func TestMergeDoesNotOverwriteResolvedFields(t *testing.T) {
	g := newTestGraph()
	addr1 := uint64(0x1000)
	g.Types["counter"] = &Node{Kind: KindVariable, TypeName: "counter", Size: 4, Address: &addr1}

	addr2 := uint64(0x9999)
	src := newTestGraph()
	src.Types["counter"] = &Node{Kind: KindVariable, TypeName: "counter", Size: 999, Address: &addr2}

	g.Merge(src)

	n := g.Types["counter"]
	if *n.Address != addr1 {
		t.Fatal("merge must not overwrite an already-resolved address")
	}
	if n.Size != 4 {
		t.Fatal("merge must not overwrite an already-resolved size")
	}
}

func TestArrayNodeSizeInvariant(t *testing.T) {
	g := newTestGraph()
	base := &Node{Kind: KindInt, TypeName: "uint8_t", Size: 1, Signed: false}
	g.Types["uint8_t"] = base

	arr, err := g.ParseTypeString("uint8_t [10]")
	if err != nil {
		t.Fatalf("ParseTypeString: %v", err)
	}
	if arr.Length != 10 {
		t.Fatalf("length = %d, want 10", arr.Length)
	}
	if arr.Size != 10*base.Size {
		t.Fatalf("size = %d, want %d", arr.Size, 10*base.Size)
	}
}
