// Package proxy turns typed handles resolved from a dwarfgraph.Graph into
// byte-level reads, writes and calls against a running target, mirroring an
// FFI binding's ergonomics: lib.<name>, proxy[i], proxy.member, lib.fn(...).
package proxy

import (
	"fmt"

	"github.com/remlink/rlg/internal/dwarfgraph"
	"github.com/remlink/rlg/internal/protocol"
	"github.com/remlink/rlg/internal/scratch"
)

// CompatibilityMode is the one process-wide mutable flag: on by default, it
// makes scalar library globals auto-unwrap to plain integers and
// length-unspecified pointer-typed struct members auto-dereference once.
// Every other piece of state (graph, client, allocator) is carried
// explicitly as a *Lib field, never a package global.
var CompatibilityMode = true

// fallbackPrefixes are tried, in order, after CompanionPrefix when a name
// doesn't resolve directly — interoperability with companion objects
// produced by prior tooling under a different prefix convention.
var fallbackPrefixes = []string{"_gti2_", "_pyroxene_"}

// Lib is the library facade: lib.<name> and lib.<name>(...) both start
// here. It owns the pieces a single user-facing operation needs, the way a
// bundled execution config owns its transport, types and allocator
// together rather than threading them through every call site.
type Lib struct {
	Graph           *dwarfgraph.Graph
	Client          *protocol.Client
	Alloc           *scratch.Allocator
	CompanionPrefix string
}

// New constructs a Lib. companionPrefix defaults to "_rlg_" if empty.
func New(graph *dwarfgraph.Graph, client *protocol.Client, alloc *scratch.Allocator, companionPrefix string) *Lib {
	if companionPrefix == "" {
		companionPrefix = "_rlg_"
	}
	return &Lib{Graph: graph, Client: client, Alloc: alloc, CompanionPrefix: companionPrefix}
}

// Get resolves lib.<name>: a type-graph variable lookup (trying the
// companion prefix and its fallbacks when name isn't found directly),
// returning a *Value, or — in CompatibilityMode, for a scalar integer
// variable — the plain int64 it holds.
func (l *Lib) Get(name string) (any, error) {
	node, err := l.lookupVariable(name)
	if err != nil {
		return nil, err
	}

	v, err := l.valueForVariable(node)
	if err != nil {
		return nil, err
	}

	if CompatibilityMode && v.Length == -1 && v.Type.Kind == dwarfgraph.KindInt {
		return v.readScalarInt()
	}
	return v, nil
}

// Func resolves a callable symbol: lib.<name> used as lib.<name>(args...).
func (l *Lib) Func(name string) (*Func, error) {
	return l.resolveFunc(name)
}

func (l *Lib) lookupVariable(name string) (*dwarfgraph.Node, error) {
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

// valueForVariable builds the Value a graph variable node represents: an
// array/sized declaration keeps its declared length, a plain scalar becomes
// a singleton proxy, and a const variable with harvested data carries that
// cache so reads never touch the wire.
func (l *Lib) valueForVariable(varNode *dwarfgraph.Node) (*Value, error) {
	if varNode.Kind != dwarfgraph.KindVariable {
		return nil, fmt.Errorf("%w: %q is not a variable", ErrTypeMismatch, varNode.TypeName)
	}
	if varNode.Address == nil {
		return nil, fmt.Errorf("%w: %q has no resolved address", dwarfgraph.ErrUnknownType, varNode.TypeName)
	}

	elemType := varNode.Base
	length := int64(-1)
	if elemType != nil && elemType.Kind == dwarfgraph.KindArray {
		length = elemType.Length
		elemType = elemType.Base
	}

	v := &Value{
		lib:     l,
		Type:    elemType,
		Address: *varNode.Address,
		Length:  length,
	}
	if varNode.Data != nil {
		v.cached = varNode.Data
	}
	return v, nil
}
