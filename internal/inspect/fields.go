package inspect

import (
	"fmt"

	"github.com/remlink/rlg/internal/dwarfgraph"
	"github.com/remlink/rlg/internal/proxy"
)

// maxArrayFields bounds how many elements of a large array get their own
// row; past this the view shows a single summary row instead of one read
// per element.
const maxArrayFields = 64

// field is one flattened row: a struct member, array element, or (at the
// root) the variable itself.
type field struct {
	name      string
	typ       string
	text      string
	raw       any // the underlying proxy.Value or scalar, for drilling in or copying
	navigable bool
}

// flatten expands val (whatever Lib.Get/Value.Member/Value.Index returned)
// into the rows a screen shows. A scalar produces one row named "value"; a
// struct/union produces one row per member; an array (Value.Length >= 0,
// the same signal Value.Index/Slice key off) produces one row per element
// up to maxArrayFields.
func flatten(name string, val any) []field {
	v, ok := val.(*proxy.Value)
	if !ok {
		return []field{{name: "value", typ: "int", text: fmt.Sprintf("%v", val), raw: val}}
	}

	if v.Length >= 0 {
		n, err := v.Len()
		if err != nil || n > maxArrayFields {
			return []field{{name: name, typ: v.Type.TypeName + "[]", text: "<array too large to expand>"}}
		}
		rows := make([]field, 0, n)
		for i := int64(0); i < n; i++ {
			ev, err := v.Index(i)
			label := fmt.Sprintf("[%d]", i)
			if err != nil {
				rows = append(rows, field{name: label, text: fmt.Sprintf("<error: %v>", err)})
				continue
			}
			rows = append(rows, fieldFor(label, v.Type.TypeName, ev))
		}
		return rows
	}

	switch v.Type.Kind {
	case dwarfgraph.KindStruct, dwarfgraph.KindUnion:
		rows := make([]field, 0, len(v.Type.Members))
		for _, m := range v.Type.Members {
			mv, err := v.Member(m.Name)
			if err != nil {
				rows = append(rows, field{name: m.Name, typ: m.Type.TypeName, text: fmt.Sprintf("<error: %v>", err)})
				continue
			}
			rows = append(rows, fieldFor(m.Name, m.Type.TypeName, mv))
		}
		return rows
	default:
		return []field{fieldFor(name, v.Type.TypeName, val)}
	}
}

// fieldFor builds a single row for an already-resolved value (the result of
// a Get/Member/Index call, which may be a plain scalar or a *Value). A
// *Value row is navigable when it's an array (Length >= 0) or a
// struct/union singleton.
func fieldFor(name, typ string, val any) field {
	if v, ok := val.(*proxy.Value); ok {
		navigable := v.Length >= 0 || v.Type.Kind == dwarfgraph.KindStruct || v.Type.Kind == dwarfgraph.KindUnion
		text := fmt.Sprintf("<%s at 0x%x>", v.Type.TypeName, v.Address)
		return field{name: name, typ: typ, text: text, raw: v, navigable: navigable}
	}
	return field{name: name, typ: typ, text: fmt.Sprintf("%v", val), raw: val}
}
