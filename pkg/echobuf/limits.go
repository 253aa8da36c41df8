package echobuf

// Hardcoded implementation limits.
//
// Violations of the identity limits return ErrInvalidInput; capacity
// violations return ErrInvalidCapacity.
const (
	// Upper bound for [Options.MaxCapacity] and its default (10 MiB).
	maxCapacityBytes = uint64(10 << 20)

	// Maximum namespace length (bytes).
	maxNamespaceBytes = 64

	// Maximum owner identity length (bytes).
	maxOwnerBytes = 1024
)

// MaxCapacityLimit is the largest accepted [Options.MaxCapacity].
const MaxCapacityLimit = maxCapacityBytes
