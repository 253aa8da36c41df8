package cli

import "errors"

// Error variables for command-line handling.
var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrNamespaceRequired = errors.New("namespace argument required")
	ErrOwnerRequired     = errors.New("--owner or --key required")
	ErrKeyRequired       = errors.New("--key required")
	ErrDataRequired      = errors.New("--data or --hex required")
	ErrConflictingFlags  = errors.New("conflicting flags")
	ErrInvalidHex        = errors.New("invalid hex")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrTooManyArgs       = errors.New("too many arguments")
)
