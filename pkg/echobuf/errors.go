package echobuf

import "errors"

// Sentinel errors returned by echobuf operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, echobuf.ErrBufferOverwrite) {
//	    // slot already holds its one write
//	}
var (
	// ErrAlreadyExists indicates Create was called on a taken address.
	ErrAlreadyExists = errors.New("echobuf: already exists")

	// ErrNotFound indicates no slot is registered at the derived address.
	ErrNotFound = errors.New("echobuf: not found")

	// ErrInvalidCapacity indicates a capacity of zero or above
	// [Options.MaxCapacity].
	ErrInvalidCapacity = errors.New("echobuf: invalid capacity")

	// ErrBufferOverwrite indicates WriteOnce was called on a slot that has
	// already been written. The slot is left unchanged.
	ErrBufferOverwrite = errors.New("echobuf: buffer overwrite")

	// ErrUnauthorized indicates AuthorizedWrite was called by an identity
	// other than the slot's owner.
	ErrUnauthorized = errors.New("echobuf: unauthorized")

	// ErrPolicyMismatch indicates the operation does not match the policy
	// the slot was created with.
	ErrPolicyMismatch = errors.New("echobuf: policy mismatch")

	// ErrInvalidInput indicates invalid arguments were provided.
	//
	// Common causes: empty or oversized namespace, oversized owner identity.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("echobuf: invalid input")

	// ErrClosed indicates the [Store] has already been closed.
	ErrClosed = errors.New("echobuf: closed")

	// ErrCorrupt indicates a persisted record failed validation on load.
	//
	// Recovery: remove the record from the backend or restore it from a
	// backup.
	ErrCorrupt = errors.New("echobuf: corrupt")
)
