package proxy

import (
	"fmt"

	"github.com/remlink/rlg/internal/dwarfgraph"
)

// Func is a callable handle resolved from a function symbol. A return type
// larger than WORD cannot come back through a register-sized reply, so
// resolveFunc transparently redirects it to the companion's out-pointer
// variant (structReturn == true): the actual wire call targets that
// variant's address and the proxy over the caller-allocated scratch struct
// is what Call returns instead of a decoded scalar.
type Func struct {
	lib          *Lib
	node         *dwarfgraph.Node // the node actually invoked on the wire
	logicalRet   *dwarfgraph.Node // the type the caller thinks it's getting back
	structReturn bool
}

// resolveFunc looks up name as a callable symbol, applying the same
// companion-prefix fallback as variable lookup, and performs the
// struct-by-value redirect described above.
func (l *Lib) resolveFunc(name string) (*Func, error) {
	node, err := l.lookupFuncNode(name)
	if err != nil {
		return nil, err
	}
	if node.Kind != dwarfgraph.KindFunction {
		return nil, fmt.Errorf("%w: %q is not a function", ErrTypeMismatch, name)
	}

	if node.ReturnType != nil && node.ReturnType.Size > int64(l.Client.Word()) {
		ptrName := l.CompanionPrefix + "ptr_" + name
		ptrNode, ok := l.Graph.Lookup(ptrName)
		if ok && ptrNode.Kind == dwarfgraph.KindFunction {
			return &Func{lib: l, node: ptrNode, logicalRet: node.ReturnType, structReturn: true}, nil
		}
	}
	return &Func{lib: l, node: node, logicalRet: node.ReturnType}, nil
}

func (l *Lib) lookupFuncNode(name string) (*dwarfgraph.Node, error) {
	if n, ok := l.Graph.Lookup(name); ok {
		return n, nil
	}
	if n, ok := l.Graph.Lookup(l.CompanionPrefix + name); ok {
		return n, nil
	}
	for _, prefix := range fallbackPrefixes {
		if n, ok := l.Graph.Lookup(prefix + name); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", dwarfgraph.ErrUnknownType, name)
}

// Call marshals args (int64 → raw word, *Value → its address, []byte →
// scratch-allocated and copied in, passing its address) and issues the
// call. A struct-by-value return allocates scratch for the logical return
// type, prepends its address as the synthetic first argument per the
// companion's _ptr_ convention, and returns a *Value over that allocation.
func (f *Func) Call(args ...any) (any, error) {
	if f.node.Address == nil {
		return nil, fmt.Errorf("%w: function has no resolved address", dwarfgraph.ErrUnknownType)
	}

	words := make([]uint64, 0, len(args)+1)

	if f.structReturn {
		h, err := f.lib.Alloc.Allocate(int(f.logicalRet.Size))
		if err != nil {
			return nil, err
		}
		words = append(words, h.Address())
		if err := f.appendArgs(&words, args); err != nil {
			return nil, err
		}
		if _, err := f.lib.Client.Call(*f.node.Address, 0, words); err != nil {
			return nil, err
		}
		return &Value{lib: f.lib, Type: f.logicalRet, Address: h.Address(), Length: -1}, nil
	}

	if err := f.appendArgs(&words, args); err != nil {
		return nil, err
	}

	retType := f.logicalRet
	retSize := 0
	if retType != nil {
		retSize = int(retType.Size)
	}

	reply, err := f.lib.Client.Call(*f.node.Address, retSize, words)
	if err != nil {
		return nil, err
	}
	return f.decodeReturn(retType, reply)
}

func (f *Func) appendArgs(words *[]uint64, args []any) error {
	for i, a := range args {
		switch x := a.(type) {
		case int64:
			*words = append(*words, uint64(x))
		case int:
			*words = append(*words, uint64(x))
		case uint64:
			*words = append(*words, x)
		case *Value:
			*words = append(*words, x.Address)
		case []byte:
			h, err := f.lib.Alloc.Allocate(len(x))
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			if err := f.lib.Client.MemWrite(h.Address(), x); err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			*words = append(*words, h.Address())
		default:
			return fmt.Errorf("%w: unsupported argument type %T at position %d", ErrUnimplemented, a, i)
		}
	}
	return nil
}

func (f *Func) decodeReturn(retType *dwarfgraph.Node, reply []byte) (any, error) {
	if retType == nil || retType.Kind == dwarfgraph.KindVoid {
		return nil, nil
	}
	switch retType.Kind {
	case dwarfgraph.KindInt:
		return decodeInt(f.lib.Graph, reply, retType.Signed), nil
	case dwarfgraph.KindPointer:
		addr := decodeInt(f.lib.Graph, reply, false)
		return &Value{lib: f.lib, Type: retType.Base, Address: uint64(addr), Length: -1}, nil
	case dwarfgraph.KindFloat:
		return nil, fmt.Errorf("%w: floating-point return", ErrUnimplemented)
	default:
		addr := decodeInt(f.lib.Graph, reply, false)
		return &Value{lib: f.lib, Type: retType, Address: uint64(addr), Length: -1}, nil
	}
}
