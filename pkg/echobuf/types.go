package echobuf

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// Policy selects how a slot accepts writes.
type Policy uint8

const (
	// PolicyWriteOnce accepts exactly one successful [Store.WriteOnce].
	PolicyWriteOnce Policy = 1

	// PolicyAuthorized accepts repeated [Store.AuthorizedWrite] calls from
	// the owning identity.
	PolicyAuthorized Policy = 2
)

// Well-known namespaces registered by default.
const (
	NamespaceEcho      = "echo"
	NamespaceAuthority = "authority"
)

// String returns "write-once" or "authorized".
func (p Policy) String() string {
	switch p {
	case PolicyWriteOnce:
		return "write-once"
	case PolicyAuthorized:
		return "authorized"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy is the inverse of [Policy.String].
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "write-once":
		return PolicyWriteOnce, nil
	case "authorized":
		return PolicyAuthorized, nil
	default:
		return 0, fmt.Errorf("unknown policy %q: %w", s, ErrInvalidInput)
	}
}

func (p Policy) valid() bool {
	return p == PolicyWriteOnce || p == PolicyAuthorized
}

// Backend persists encoded records. Implementations live under pkg/backend.
//
// The store calls Put with the complete encoded record each time a slot is
// created or written, and Scan once during [Open]. The store owns the
// backend: [Store.Close] closes it.
type Backend interface {
	Put(ctx context.Context, addr slotaddr.Address, value []byte) error
	Scan(ctx context.Context, fn func(addr slotaddr.Address, value []byte) error) error
	Close() error
}

// Options configure a [Store].
type Options struct {
	// MaxCapacity bounds slot capacity at creation. Zero means the 10 MiB
	// hard limit, which is also the largest accepted value.
	MaxCapacity uint64

	// Namespaces maps namespace labels to policies. Entries are merged over
	// the defaults ("echo" is write-once, "authority" is authorized).
	Namespaces map[string]Policy

	// DefaultPolicy applies to namespaces absent from Namespaces.
	// Zero means PolicyWriteOnce.
	DefaultPolicy Policy

	// Backend receives write-through copies of every record. Nil keeps the
	// store purely in memory.
	Backend Backend

	// Logger receives structured operation logs. Nil disables logging.
	Logger *zap.Logger

	// Registerer, if set, receives the store's operation metrics.
	Registerer prometheus.Registerer
}

// DefaultNamespaces returns the namespace policies every store starts with.
func DefaultNamespaces() map[string]Policy {
	return map[string]Policy{
		NamespaceEcho:      PolicyWriteOnce,
		NamespaceAuthority: PolicyAuthorized,
	}
}

// normalize validates opts and fills defaults.
func (opts Options) normalize() (Options, error) {
	if opts.MaxCapacity == 0 {
		opts.MaxCapacity = maxCapacityBytes
	}

	if opts.MaxCapacity > maxCapacityBytes {
		return Options{}, fmt.Errorf("max capacity %d exceeds %d: %w", opts.MaxCapacity, maxCapacityBytes, ErrInvalidInput)
	}

	if opts.DefaultPolicy == 0 {
		opts.DefaultPolicy = PolicyWriteOnce
	}

	if !opts.DefaultPolicy.valid() {
		return Options{}, fmt.Errorf("default %s: %w", opts.DefaultPolicy, ErrInvalidInput)
	}

	namespaces := DefaultNamespaces()

	for ns, policy := range opts.Namespaces {
		if ns == "" || len(ns) > maxNamespaceBytes {
			return Options{}, fmt.Errorf("namespace %q: %w", ns, ErrInvalidInput)
		}

		if !policy.valid() {
			return Options{}, fmt.Errorf("namespace %q has %s: %w", ns, policy, ErrInvalidInput)
		}

		namespaces[ns] = policy
	}

	opts.Namespaces = namespaces

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return opts, nil
}

// Record is a snapshot of one slot, returned by read accessors.
// Owner and Data are copies; mutating them does not affect the store.
type Record struct {
	Address   slotaddr.Address
	Namespace string
	Owner     []byte
	Seed      uint64
	Policy    Policy
	Capacity  uint64

	// Data holds the written bytes; len(Data) <= Capacity.
	Data []byte

	// Written is set by the first successful WriteOnce (write-once only).
	Written bool

	// OwnerSeed and DeclaredSize are recorded at creation for authorized
	// slots and are zero otherwise.
	OwnerSeed    uint64
	DeclaredSize uint64

	// Generation counts successful writes.
	Generation uint64
}
