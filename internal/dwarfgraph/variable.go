package dwarfgraph

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
)

// dwOpAddr is the DWARF location-expression opcode for "the address is the
// following target-word-sized literal" — the only location form this
// builder resolves; anything else is reported via ErrUnsupportedLocation.
const dwOpAddr = 0x03

// canonicalName returns ct.Name, or "" for an anonymous type (anonymous
// structs/unions are still built and interned, just not keyed in the
// dictionary by name).
func canonicalName(ct dwarf.CommonType) string {
	return ct.Name
}

// buildVariable resolves a DW_TAG_variable DIE: name, type, and address via
// DW_OP_addr. If the declared type is const-qualified and the address falls
// inside a PT_LOAD segment's file-backed range, the initializer bytes are
// harvested into the node's Data so later reads never touch the wire.
func (b *builder) buildVariable(entry *dwarf.Entry) error {
	name, _ := entry.Val(dwarf.AttrName).(string)
	if name == "" {
		return nil
	}

	typeOff, ok := entry.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return fmt.Errorf("variable %s: no type", name)
	}

	varType, err := b.resolveType(typeOff)
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}

	n := b.graph.internOrGet(name, KindVariable)
	n.Kind = KindVariable
	n.Base = varType
	if n.Size == UnsetSize {
		n.Size = varType.Size
	}

	loc, ok := entry.Val(dwarf.AttrLocation).([]byte)
	if !ok || len(loc) == 0 {
		return nil // extern declaration without a definition: leave unresolved
	}
	if loc[0] != dwOpAddr {
		return fmt.Errorf("%s: %w (op 0x%02x)", name, ErrUnsupportedLocation, loc[0])
	}
	addr, err := b.decodeAddr(loc[1:])
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	n.Address = &addr

	if b.isConstQualified(typeOff) {
		if data := b.harvestConstData(addr, varType.Size); data != nil {
			n.Data = data
		}
	}
	return nil
}

func (b *builder) decodeAddr(b8 []byte) (uint64, error) {
	switch b.graph.WordSize {
	case 4:
		if len(b8) < 4 {
			return 0, fmt.Errorf("short DW_OP_addr operand")
		}
		return uint64(b.graph.ByteOrder.Uint32(b8)), nil
	default:
		if len(b8) < 8 {
			return 0, fmt.Errorf("short DW_OP_addr operand")
		}
		return b.graph.ByteOrder.Uint64(b8), nil
	}
}

// isConstQualified peeks the raw DIE at off (without going through the
// transparent QualType unwrap fromDwarfType performs) to see whether the
// variable's declared type is itself DW_TAG_const_type.
func (b *builder) isConstQualified(off dwarf.Offset) bool {
	r := b.dwf.Reader()
	r.Seek(off)
	e, err := r.Next()
	if err != nil || e == nil {
		return false
	}
	return e.Tag == dwarf.TagConstType
}

// harvestConstData reads size bytes at addr from whichever PT_LOAD segment
// covers it, provided the segment's file-backed range (p_filesz) actually
// reaches that far. Returns nil if no such segment exists or size is
// unknown.
func (b *builder) harvestConstData(addr uint64, size int64) []byte {
	if size <= 0 {
		return nil
	}
	for _, prog := range b.ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if addr < prog.Vaddr {
			continue
		}
		off := addr - prog.Vaddr
		if off+uint64(size) > prog.Filesz {
			continue
		}
		buf := make([]byte, size)
		section := prog.Open()
		if _, err := section.Seek(int64(off), io.SeekStart); err != nil {
			continue
		}
		if _, err := io.ReadFull(section, buf); err != nil {
			continue
		}
		return buf
	}
	return nil
}

// buildSubprogram resolves a DW_TAG_subprogram DIE: requires DW_AT_low_pc
// (otherwise the function has no body to call and is skipped as useless),
// return type, and formal parameters collected from its immediate children.
// A real `-g`-compiled function's children are almost never just its
// parameters — locals and lexical blocks follow them — so every child is
// consumed up to the subprogram's own null terminator (Tag == 0): a
// DW_TAG_formal_parameter contributes an argument, anything else (a local
// DW_TAG_variable, a DW_TAG_lexical_block, …) is skipped via SkipChildren,
// the same way dispatch's own default case skips a DIE it doesn't care
// about. Nothing here is ever handed to buildVariable — a local's location
// is stack-relative (DW_OP_fbreg), not the DW_OP_addr buildVariable
// understands, and it has no business being registered as a global anyway.
func (b *builder) buildSubprogram(r *dwarf.Reader, entry *dwarf.Entry) error {
	name, _ := entry.Val(dwarf.AttrName).(string)

	var args []*Node
	if entry.Children {
		for {
			child, err := r.Next()
			if err != nil {
				return err
			}
			if child == nil || child.Tag == 0 {
				break
			}
			if child.Tag != dwarf.TagFormalParameter {
				if child.Children {
					r.SkipChildren()
				}
				continue
			}
			typeOff, ok := child.Val(dwarf.AttrType).(dwarf.Offset)
			if child.Children {
				r.SkipChildren()
			}
			if !ok {
				continue
			}
			argType, err := b.resolveType(typeOff)
			if err != nil {
				return fmt.Errorf("subprogram %s: parameter: %w", name, err)
			}
			args = append(args, argType)
		}
	}

	lowPC, ok := entry.Val(dwarf.AttrLowpc).(uint64)
	if !ok {
		// No address: an inline-only declaration or a prototype with no
		// body. Useless for remote calling, so it's skipped rather than
		// registered half-built.
		return nil
	}
	if name == "" {
		return nil
	}

	ret := b.graph.Types["void"]
	if typeOff, ok := entry.Val(dwarf.AttrType).(dwarf.Offset); ok {
		r, err := b.resolveType(typeOff)
		if err != nil {
			return fmt.Errorf("subprogram %s: return type: %w", name, err)
		}
		ret = r
	}

	n := b.graph.internOrGet(name, KindFunction)
	n.Kind = KindFunction
	n.ReturnType = ret
	n.Arguments = args
	n.Address = &lowPC
	return nil
}
