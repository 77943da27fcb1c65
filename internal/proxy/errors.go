package proxy

import "errors"

var (
	// ErrUnknownMember is returned by Value.Member for a name not present
	// in the struct/union's member list.
	ErrUnknownMember = errors.New("proxy: unknown member")

	// ErrTypeMismatch is returned when an operation isn't supported on the
	// value's kind (e.g. member access on an int).
	ErrTypeMismatch = errors.New("proxy: type mismatch")

	// ErrUnimplemented covers floating-point marshalling and any other
	// representation this package declines to guess at rather than get
	// wrong silently.
	ErrUnimplemented = errors.New("proxy: unimplemented")

	// ErrIndexOutOfRange is returned by Index/Slice for an out-of-bounds
	// access on a bounded array.
	ErrIndexOutOfRange = errors.New("proxy: index out of range")

	// ErrUnsizedArray is returned by Len/iteration on a proxy whose length
	// is unknown.
	ErrUnsizedArray = errors.New("proxy: unsized array")
)
