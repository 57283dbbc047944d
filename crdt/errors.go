package crdt

import "errors"

// Error kinds per the core's error handling design: local operations abort
// and emit nothing on any of these. Remote operations are defensive (a
// DELETE of an unknown Symbol is a silent no-op); the one error they
// surface is ErrUnknownOperationKind, returned by Replica.Process.
var (
	// ErrOutOfRange is returned when a (line, col) cursor falls outside
	// the document.
	ErrOutOfRange = errors.New("crdt: cursor out of range")

	// ErrInvalidInterval is returned when the allocator is asked to find
	// a Position strictly between p1 and p2 but p1 >= p2. This indicates
	// a programming error in the caller.
	ErrInvalidInterval = errors.New("crdt: invalid allocation interval")

	// ErrUnknownOperationKind is returned by Replica.Process when a
	// Message carries a Kind other than KindInsert or KindDelete.
	ErrUnknownOperationKind = errors.New("crdt: unknown operation kind")
)
