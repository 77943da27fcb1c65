package dwarfgraph

import "encoding/binary"

// Graph is the process-wide type dictionary built from one or more ELF
// files. It is read-mostly after construction: Merge is the only mutator
// callers are expected to reach for once Build has returned.
type Graph struct {
	Types map[string]*Node
	Enums map[string]int64

	// ByteOrder and WordSize are read from the target ELF header; WordSize
	// is the protocol's WORD (sizeof_voidp).
	ByteOrder binary.ByteOrder
	WordSize  int
}

// newGraph returns an empty graph seeded with the two sentinel types every
// graph must carry: a bare "void" node and a "NULL" variable of type
// "void *" at address 0.
func newGraph(order binary.ByteOrder, wordSize int) *Graph {
	g := &Graph{
		Types:     make(map[string]*Node),
		Enums:     make(map[string]int64),
		ByteOrder: order,
		WordSize:  wordSize,
	}
	voidNode := &Node{Kind: KindVoid, TypeName: "void", Size: UnsetSize}
	g.Types["void"] = voidNode
	voidPtr := &Node{Kind: KindPointer, TypeName: "void *", Size: int64(wordSize), Base: voidNode}
	g.Types["void *"] = voidPtr
	zero := uint64(0)
	g.Types["NULL"] = &Node{Kind: KindVariable, TypeName: "NULL", Size: int64(wordSize), Base: voidPtr, Address: &zero}
	return g
}

// Lookup finds a type by its canonical name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	n, ok := g.Types[name]
	return n, ok
}

// internOrGet registers a freshly-constructed, not-yet-populated node under
// name if one doesn't already exist, and returns the canonical node either
// way. This is the intern-before-walk step struct/union construction needs
// to let a self-referential member (linked-list style `struct foo *next`)
// resolve to the same node instead of recursing forever.
func (g *Graph) internOrGet(name string, kind Kind) *Node {
	if existing, ok := g.Types[name]; ok {
		return existing
	}
	n := &Node{Kind: kind, TypeName: name, Size: UnsetSize, Length: UnsetLength}
	g.Types[name] = n
	return n
}

// Merge folds src into g: a node present in both graphs under the same
// typename is reconciled via update (fills unset fields only); a node
// present only in src is copied in. Used to resolve externs across a second
// compilation unit or a linked companion object.
func (g *Graph) Merge(src *Graph) {
	for name, n := range src.Types {
		existing, ok := g.Types[name]
		if !ok {
			g.Types[name] = n
			continue
		}
		existing.update(n)
	}
	for name, v := range src.Enums {
		if _, ok := g.Enums[name]; !ok {
			g.Enums[name] = v
		}
	}
}

// update fills address, size, length and data from other only where the
// receiver's own field is still unset. Already-resolved fields are never
// overwritten — invariant (v) from the data model.
func (n *Node) update(other *Node) {
	if n.Address == nil && other.Address != nil {
		addr := *other.Address
		n.Address = &addr
	}
	if n.Size == UnsetSize && other.Size != UnsetSize {
		n.Size = other.Size
	}
	if n.Length == UnsetLength && other.Length != UnsetLength {
		n.Length = other.Length
	}
	if n.Data == nil && other.Data != nil {
		n.Data = other.Data
	}
	if n.Base == nil && other.Base != nil {
		n.Base = other.Base
	}
	if len(n.Members) == 0 && len(other.Members) > 0 {
		n.Members = other.Members
		n.memberIdx = other.memberIdx
	}
}
