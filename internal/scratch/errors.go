package scratch

import "errors"

// ErrOutOfMemory is returned by Allocate when no gap in the scratch region
// is wide enough, even after autofree has reclaimed finalized slots.
var ErrOutOfMemory = errors.New("scratch: out of memory")
