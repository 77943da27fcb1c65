package dwarfgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTypeString fabricates (and, unless the declaration is an unsized
// array, registers) a Node for a textual C-ish type declaration such as
// "uint32_t *", "uint8_t [10]" or "uint8_t []". base must already exist in
// the graph. Anything that isn't "known base name" optionally followed by
// one "*" or one "[N?]" fails with ErrUnknownType.
func (g *Graph) ParseTypeString(decl string) (*Node, error) {
	decl = strings.TrimSpace(decl)

	if strings.HasSuffix(decl, "*") {
		baseName := strings.TrimSpace(strings.TrimSuffix(decl, "*"))
		base, ok := g.Types[baseName]
		if !ok {
			return nil, fmt.Errorf("%w: %q (base %q)", ErrUnknownType, decl, baseName)
		}
		name := baseName + " *"
		if existing, ok := g.Types[name]; ok {
			return existing, nil
		}
		n := &Node{Kind: KindPointer, TypeName: name, Size: int64(g.WordSize), Base: base}
		g.Types[name] = n
		return n, nil
	}

	if open := strings.LastIndex(decl, "["); open != -1 && strings.HasSuffix(decl, "]") {
		baseName := strings.TrimSpace(decl[:open])
		inner := strings.TrimSpace(decl[open+1 : len(decl)-1])
		base, ok := g.Types[baseName]
		if !ok {
			return nil, fmt.Errorf("%w: %q (base %q)", ErrUnknownType, decl, baseName)
		}

		if inner == "" {
			// Unsized declaration: the node is fabricated for the caller but
			// not interned into the dictionary, since its length is unknown.
			return &Node{Kind: KindArray, TypeName: decl, Size: UnsetSize, Length: UnsetLength, Base: base}, nil
		}

		n64, err := strconv.ParseInt(inner, 10, 64)
		if err != nil || n64 < 0 {
			return nil, fmt.Errorf("%w: %q (bad array length %q)", ErrUnknownType, decl, inner)
		}
		name := fmt.Sprintf("%s [%d]", baseName, n64)
		if existing, ok := g.Types[name]; ok {
			return existing, nil
		}
		size := UnsetSize
		if base.Size != UnsetSize {
			size = n64 * base.Size
		}
		arr := &Node{Kind: KindArray, TypeName: name, Size: size, Length: n64, Base: base}
		g.Types[name] = arr
		return arr, nil
	}

	if n, ok := g.Types[decl]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, decl)
}
