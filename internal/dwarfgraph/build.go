package dwarfgraph

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Options configures Build.
type Options struct {
	// Tolerant, when true, logs and accumulates per-DIE errors into the
	// returned *multierror.Error instead of aborting the scan on the first
	// one.
	Tolerant bool

	// CUFilter, if set, restricts the scan to compilation units whose name
	// satisfies the predicate.
	CUFilter func(cuName string) bool

	// Logger receives Warn-level notices for tolerant-mode skips; nothing
	// else is logged. A nil Logger discards them.
	Logger *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Build scans elfPath's DWARF info into a new Graph. In strict mode (the
// default) the first malformed or unsupported DIE aborts the scan. In
// tolerant mode the graph returned is still usable; the accumulated
// *multierror.Error describes what was skipped.
func Build(elfPath string, opts Options) (*Graph, error) {
	log := opts.logger()

	ef, err := elf.Open(elfPath)
	if err != nil {
		return nil, fmt.Errorf("dwarfgraph: open %s: %w", elfPath, err)
	}
	defer ef.Close()

	dwf, err := ef.DWARF()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDebugInfo, err)
	}

	wordSize := 8
	if ef.Class == elf.ELFCLASS32 {
		wordSize = 4
	}

	b := &builder{
		graph:    newGraph(ef.ByteOrder, wordSize),
		dwf:      dwf,
		ef:       ef,
		tolerant: opts.Tolerant,
		log:      log,
		memo:     make(map[dwarf.Type]*Node),
	}

	if err := b.scan(opts.CUFilter); err != nil {
		return nil, err
	}

	if b.tolerant && b.errs != nil {
		return b.graph, b.errs
	}
	return b.graph, nil
}

type builder struct {
	graph    *Graph
	dwf      *dwarf.Data
	ef       *elf.File
	tolerant bool
	log      *logrus.Logger
	memo     map[dwarf.Type]*Node
	errs     *multierror.Error
}

func (b *builder) fail(context string, err error) error {
	wrapped := fmt.Errorf("dwarfgraph: %s: %w", context, err)
	if !b.tolerant {
		return wrapped
	}
	b.log.WithError(err).Warn("dwarfgraph: skipping " + context)
	b.errs = multierror.Append(b.errs, wrapped)
	return nil
}

// scan walks every compilation unit's top-level (depth-1) DIEs and
// dispatches each to a per-kind constructor.
func (b *builder) scan(cuFilter func(string) bool) error {
	r := b.dwf.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return fmt.Errorf("dwarfgraph: reading DIE: %w", err)
		}
		if entry == nil {
			return nil
		}

		if entry.Tag == dwarf.TagCompileUnit {
			name, _ := entry.Val(dwarf.AttrName).(string)
			if cuFilter != nil && !cuFilter(name) {
				r.SkipChildren()
			}
			continue
		}

		if err := b.dispatch(r, entry); err != nil {
			if err := b.fail(fmt.Sprintf("DIE %v at %v", entry.Tag, entry.Offset), err); err != nil {
				return err
			}
		}
	}
}

// dispatch handles one top-level DIE. Type DIEs are resolved through
// resolveType (which recurses through debug/dwarf's own cycle-safe Type()
// accessor); variable and subprogram DIEs are built manually since they
// carry addresses/arguments the Type() view doesn't expose.
func (b *builder) dispatch(r *dwarf.Reader, entry *dwarf.Entry) error {
	switch entry.Tag {
	case dwarf.TagBaseType, dwarf.TagTypedef, dwarf.TagPointerType, dwarf.TagArrayType,
		dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagEnumerationType,
		dwarf.TagConstType, dwarf.TagVolatileType:
		if _, err := b.resolveType(entry.Offset); err != nil {
			r.SkipChildren()
			return err
		}
		r.SkipChildren()
		return nil

	case dwarf.TagVariable:
		r.SkipChildren()
		return b.buildVariable(entry)

	case dwarf.TagSubprogram:
		return b.buildSubprogram(r, entry)

	default:
		r.SkipChildren()
		return nil
	}
}

// resolveType converts a DWARF type at off into a Node, memoizing by the
// dwarf.Type identity debug/dwarf itself already de-duplicates by offset —
// this is what makes a self-referential struct terminate instead of
// recursing forever.
func (b *builder) resolveType(off dwarf.Offset) (*Node, error) {
	t, err := b.dwf.Type(off)
	if err != nil {
		return nil, err
	}
	return b.fromDwarfType(t)
}

func (b *builder) fromDwarfType(t dwarf.Type) (*Node, error) {
	if n, ok := b.memo[t]; ok {
		return n, nil
	}

	switch v := t.(type) {
	case *dwarf.CharType:
		return b.primitive(t, v.CommonType, true), nil
	case *dwarf.UcharType:
		return b.primitive(t, v.CommonType, false), nil
	case *dwarf.IntType:
		return b.primitive(t, v.CommonType, true), nil
	case *dwarf.UintType:
		return b.primitive(t, v.CommonType, false), nil
	case *dwarf.BoolType:
		return b.primitive(t, v.CommonType, false), nil
	case *dwarf.FloatType:
		n := &Node{Kind: KindFloat, TypeName: canonicalName(v.CommonType), Size: v.CommonType.ByteSize}
		b.memo[t] = n
		return b.register(n), nil

	case *dwarf.PtrType:
		name := canonicalName(v.CommonType)
		n := &Node{Kind: KindPointer, TypeName: name, Size: int64(b.graph.WordSize)}
		b.memo[t] = n
		if v.Type == nil {
			n.Base = b.graph.Types["void"]
		} else {
			base, err := b.fromDwarfType(v.Type)
			if err != nil {
				return nil, err
			}
			n.Base = base
		}
		if name == "" {
			n.TypeName = n.Base.TypeName + " *"
		}
		return b.register(n), nil

	case *dwarf.ArrayType:
		base, err := b.fromDwarfType(v.Type)
		if err != nil {
			return nil, err
		}
		length := UnsetLength
		if v.Count >= 0 {
			length = v.Count
		}
		size := UnsetSize
		if length != UnsetLength && base.Size != UnsetSize {
			size = length * base.Size
		}
		name := canonicalName(v.CommonType)
		if name == "" {
			if length == UnsetLength {
				name = base.TypeName + " []"
			} else {
				name = fmt.Sprintf("%s [%d]", base.TypeName, length)
			}
		}
		n := &Node{Kind: KindArray, TypeName: name, Size: size, Length: length, Base: base}
		b.memo[t] = n
		return b.register(n), nil

	case *dwarf.StructType:
		return b.buildCompound(t, v.CommonType, v.Field, KindStruct)
	case *dwarf.UnionType:
		return b.buildCompound(t, v.CommonType, v.Field, KindUnion)

	case *dwarf.TypedefType:
		base, err := b.fromDwarfType(v.Type)
		if err != nil {
			return nil, err
		}
		// Flattening: the typedef's own name resolves to the SAME node as
		// its underlying type — a distinct Node isn't needed because the
		// member/size/address data is identical either way.
		b.memo[t] = base
		if v.CommonType.Name != "" {
			b.graph.Types[v.CommonType.Name] = base
		}
		return base, nil

	case *dwarf.EnumType:
		name := canonicalName(v.CommonType)
		n := &Node{Kind: KindInt, TypeName: name, Size: v.CommonType.ByteSize, Signed: true}
		b.memo[t] = n
		for _, ev := range v.Val {
			b.graph.Enums[ev.Name] = ev.Val
		}
		return b.register(n), nil

	case *dwarf.QualType:
		// const/volatile are transparent at the node level; the one place
		// constness matters (harvesting PT_LOAD initializer bytes for a
		// const variable) is handled by buildVariable inspecting the raw
		// DW_AT_type DIE tag before calling here.
		inner, err := b.fromDwarfType(v.Type)
		if err != nil {
			return nil, err
		}
		b.memo[t] = inner
		return inner, nil

	case *dwarf.FuncType:
		ret := b.graph.Types["void"]
		if v.ReturnType != nil {
			r, err := b.fromDwarfType(v.ReturnType)
			if err != nil {
				return nil, err
			}
			ret = r
		}
		args := make([]*Node, 0, len(v.ParamType))
		for _, pt := range v.ParamType {
			a, err := b.fromDwarfType(pt)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		n := &Node{Kind: KindFunction, TypeName: canonicalName(v.CommonType), ReturnType: ret, Arguments: args, Size: UnsetSize}
		b.memo[t] = n
		return n, nil

	case *dwarf.VoidType:
		n := b.graph.Types["void"]
		b.memo[t] = n
		return n, nil

	default:
		return nil, fmt.Errorf("dwarfgraph: unsupported DWARF type %T", t)
	}
}

// primitive builds an int-kind node for the signed/unsigned char/int/bool
// base_type variants, which all share the same field shape.
func (b *builder) primitive(t dwarf.Type, ct dwarf.CommonType, signed bool) *Node {
	n := &Node{Kind: KindInt, TypeName: canonicalName(ct), Size: ct.ByteSize, Signed: signed}
	b.memo[t] = n
	return b.register(n)
}

func (b *builder) register(n *Node) *Node {
	if n.TypeName == "" {
		return n
	}
	if existing, ok := b.graph.Types[n.TypeName]; ok {
		existing.update(n)
		return existing
	}
	b.graph.Types[n.TypeName] = n
	return n
}

// buildCompound implements the intern-before-walk rule: the struct/union
// node is registered under its name before any member is resolved, so a
// member whose type chain loops back to this same struct (a linked-list
// `next` pointer) finds the canonical node already in the dictionary
// instead of recursing.
func (b *builder) buildCompound(t dwarf.Type, ct dwarf.CommonType, fields []*dwarf.StructField, kind Kind) (*Node, error) {
	name := canonicalName(ct)
	n := b.graph.internOrGet(name, kind)
	n.Kind = kind
	if n.Size == UnsetSize {
		n.Size = ct.ByteSize
	}
	b.memo[t] = n

	if len(n.Members) == 0 {
		for _, f := range fields {
			memberType, err := b.fromDwarfType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", f.Name, err)
			}
			n.addMember(Member{Name: f.Name, Offset: f.ByteOffset, Type: memberType})
		}
	}
	if name != "" {
		b.graph.Types[name] = n
	}
	return n, nil
}
