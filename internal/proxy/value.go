package proxy

import (
	"fmt"

	"github.com/remlink/rlg/internal/dwarfgraph"
)

// Value is a transient host-side handle (type_node, address, length) bound
// to a Lib's communicator. Values are cheap, copyable, and never own target
// memory: anything they point at is owned either by a static target symbol
// or by the scratch allocator.
type Value struct {
	lib     *Lib
	Type    *dwarfgraph.Node
	Address uint64
	Length  int64 // -1 means singleton

	// cached holds harvested const-variable bytes; when set, reads are
	// served from here and never reach the wire.
	cached []byte
}

// Equal reports whether two values have the same type and address.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.Type == other.Type && v.Address == other.Address
}

// Len returns the proxy's element count. Unsized arrays fail with
// ErrUnsizedArray.
func (v *Value) Len() (int64, error) {
	if v.Length < 0 {
		return 0, ErrUnsizedArray
	}
	return v.Length, nil
}

func (v *Value) elemSize() int64 {
	if v.Type == nil {
		return 0
	}
	return v.Type.Size
}

func (v *Value) readBytes(offset, size int64) ([]byte, error) {
	if v.cached != nil {
		if offset+size > int64(len(v.cached)) {
			return nil, ErrIndexOutOfRange
		}
		return v.cached[offset : offset+size], nil
	}
	return v.lib.Client.MemRead(v.Address+uint64(offset), int(size))
}

func (v *Value) writeBytes(offset int64, data []byte) error {
	if v.cached != nil {
		return fmt.Errorf("%w: cannot write a const-harvested value", ErrTypeMismatch)
	}
	return v.lib.Client.MemWrite(v.Address+uint64(offset), data)
}

// readScalarInt decodes this value as a single int-kind scalar at offset 0,
// the representation CompatibilityMode unwraps library globals and struct
// members to.
func (v *Value) readScalarInt() (int64, error) {
	b, err := v.readBytes(0, v.elemSize())
	if err != nil {
		return 0, err
	}
	return decodeInt(v.lib.Graph, b, v.Type.Signed), nil
}

func (v *Value) writeScalarInt(val int64) error {
	b := encodeInt(v.lib.Graph, val, v.elemSize())
	return v.writeBytes(0, b)
}

// Index implements proxy[i]: an int element decodes to a plain integer, a
// pointer element produces a new proxy over its base type at the decoded
// address, anything else produces a new singleton proxy at that offset.
func (v *Value) Index(i int64) (any, error) {
	if v.Length >= 0 && (i < 0 || i >= v.Length) {
		return nil, ErrIndexOutOfRange
	}
	elemAddr := v.Address + uint64(i)*uint64(v.elemSize())
	elem := &Value{lib: v.lib, Type: v.Type, Address: elemAddr, Length: -1}

	switch v.Type.Kind {
	case dwarfgraph.KindInt:
		return elem.readScalarInt()
	case dwarfgraph.KindPointer:
		b, err := elem.readBytes(0, elem.elemSize())
		if err != nil {
			return nil, err
		}
		ptrAddr := decodeInt(v.lib.Graph, b, false)
		return &Value{lib: v.lib, Type: v.Type.Base, Address: uint64(ptrAddr), Length: -1}, nil
	default:
		return elem, nil
	}
}

// Slice implements proxy[a:b]: primitive int elements decode as a single
// mem_read and a []int64; composite elements return b-a independent
// proxies.
func (v *Value) Slice(a, b int64) (any, error) {
	if v.Length >= 0 && (a < 0 || b > v.Length || a > b) {
		return nil, ErrIndexOutOfRange
	}
	n := b - a
	if v.Type.Kind == dwarfgraph.KindInt {
		raw, err := v.readBytes(a*v.elemSize(), n*v.elemSize())
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		sz := v.elemSize()
		for i := int64(0); i < n; i++ {
			out[i] = decodeInt(v.lib.Graph, raw[i*sz:(i+1)*sz], v.Type.Signed)
		}
		return out, nil
	}

	out := make([]*Value, n)
	for i := int64(0); i < n; i++ {
		out[i] = &Value{lib: v.lib, Type: v.Type, Address: v.Address + uint64(a+i)*uint64(v.elemSize()), Length: -1}
	}
	return out, nil
}

// SetIndex implements proxy[i] = val. val may be an int64, a *Value (its
// address is marshalled for pointer-kind elements) or a []int64/[]any for
// struct-member positional assignment.
func (v *Value) SetIndex(i int64, val any) error {
	if v.Length >= 0 && (i < 0 || i >= v.Length) {
		return ErrIndexOutOfRange
	}
	elemAddr := v.Address + uint64(i)*uint64(v.elemSize())
	elem := &Value{lib: v.lib, Type: v.Type, Address: elemAddr, Length: -1}
	return elem.assign(val)
}

// SetSlice implements proxy[a:b] = xs for primitive array element types.
func (v *Value) SetSlice(a, b int64, xs []int64) error {
	if v.Length >= 0 && (a < 0 || b > v.Length || a > b) {
		return ErrIndexOutOfRange
	}
	if int64(len(xs)) != b-a {
		return fmt.Errorf("%w: slice assignment length mismatch (%d != %d)", ErrTypeMismatch, len(xs), b-a)
	}
	sz := v.elemSize()
	buf := make([]byte, 0, (b-a)*sz)
	for _, x := range xs {
		buf = append(buf, encodeInt(v.lib.Graph, x, sz)...)
	}
	return v.writeBytes(a*sz, buf)
}

// Set implements proxy = val for a value accessed directly (no index or
// member step), the counterpart to the auto-unwrap Lib.Get performs on read.
func (v *Value) Set(val any) error {
	return v.assign(val)
}

// assign implements the scalar/pointer/struct-member assignment rules for a
// single destination value.
func (v *Value) assign(val any) error {
	switch x := val.(type) {
	case int64:
		if v.Type.Kind != dwarfgraph.KindInt && v.Type.Kind != dwarfgraph.KindPointer {
			return fmt.Errorf("%w: cannot assign an integer to a %s", ErrTypeMismatch, v.Type.Kind)
		}
		return v.writeScalarInt(x)
	case int:
		return v.assign(int64(x))
	case *Value:
		if v.Type.Kind != dwarfgraph.KindPointer {
			return fmt.Errorf("%w: cannot assign a proxy to a %s", ErrTypeMismatch, v.Type.Kind)
		}
		return v.writeScalarInt(int64(x.Address))
	case []int64:
		xs := make([]any, len(x))
		for i, n := range x {
			xs[i] = n
		}
		return v.assign(xs)
	case []any:
		if v.Type.Kind != dwarfgraph.KindStruct && v.Type.Kind != dwarfgraph.KindUnion {
			return fmt.Errorf("%w: positional assignment requires a struct/union", ErrTypeMismatch)
		}
		for i, m := range v.Type.Members {
			if i >= len(x) {
				break
			}
			member := &Value{lib: v.lib, Type: m.Type, Address: v.Address + uint64(m.Offset), Length: -1}
			if err := member.assign(x[i]); err != nil {
				return fmt.Errorf("member %s: %w", m.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot assign value of type %T", ErrTypeMismatch, val)
	}
}

// Member implements proxy.m. Primitives auto-unwrap to a plain integer.
// Under CompatibilityMode, a length-unspecified pointer member additionally
// auto-dereferences once so struct.next.value reads naturally instead of
// requiring an explicit dereference step.
func (v *Value) Member(name string) (any, error) {
	if v.Type.Kind != dwarfgraph.KindStruct && v.Type.Kind != dwarfgraph.KindUnion {
		return nil, fmt.Errorf("%w: member access on a %s", ErrTypeMismatch, v.Type.Kind)
	}
	m, ok := v.Type.Member(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", ErrUnknownMember, name, v.Type.TypeName)
	}

	member := &Value{lib: v.lib, Type: m.Type, Address: v.Address + uint64(m.Offset), Length: -1}

	switch m.Type.Kind {
	case dwarfgraph.KindInt:
		return member.readScalarInt()
	case dwarfgraph.KindPointer:
		if !CompatibilityMode {
			return member, nil
		}
		b, err := member.readBytes(0, member.elemSize())
		if err != nil {
			return nil, err
		}
		ptrAddr := decodeInt(v.lib.Graph, b, false)
		return &Value{lib: v.lib, Type: m.Type.Base, Address: uint64(ptrAddr), Length: -1}, nil
	default:
		return member, nil
	}
}

// SetMember implements proxy.m = val.
func (v *Value) SetMember(name string, val any) error {
	if v.Type.Kind != dwarfgraph.KindStruct && v.Type.Kind != dwarfgraph.KindUnion {
		return fmt.Errorf("%w: member access on a %s", ErrTypeMismatch, v.Type.Kind)
	}
	m, ok := v.Type.Member(name)
	if !ok {
		return fmt.Errorf("%w: %q on %q", ErrUnknownMember, name, v.Type.TypeName)
	}
	member := &Value{lib: v.lib, Type: m.Type, Address: v.Address + uint64(m.Offset), Length: -1}
	return member.assign(val)
}
