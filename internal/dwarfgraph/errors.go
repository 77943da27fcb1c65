package dwarfgraph

import "errors"

var (
	// ErrUnknownType is returned when a textual type declaration or a graph
	// lookup names something not present in the type dictionary.
	ErrUnknownType = errors.New("dwarfgraph: unknown type")

	// ErrNoDebugInfo is returned when the ELF file carries no .debug_info
	// section at all.
	ErrNoDebugInfo = errors.New("dwarfgraph: no DWARF debug info present")

	// ErrUnsupportedLocation is returned when a variable's DW_AT_location
	// uses anything other than a bare DW_OP_addr operand.
	ErrUnsupportedLocation = errors.New("dwarfgraph: unsupported location expression")
)
