package echobuf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// Store maps derived slot addresses to fixed-capacity buffers.
//
// All methods are safe for concurrent use by multiple goroutines.
//
// A Store must be obtained via [Open]; the zero value is not usable.
type Store struct {
	_ [0]func() // prevent external construction

	// mu guards table and isClosed. Create and Close take it exclusively;
	// reads and writes take it shared and then lock the individual record.
	//
	// Lock ordering: Store.mu → record.mu
	mu    sync.RWMutex
	table map[slotaddr.Address]*record

	opts    Options
	log     *zap.Logger
	metrics *metrics

	isClosed bool
}

// Open creates a store and, if [Options.Backend] is set, loads every record
// the backend holds.
//
// On success the store owns the backend. On failure the backend is left
// open for the caller to close.
//
// Possible errors: [ErrInvalidInput], [ErrCorrupt], or a wrapped backend error.
func Open(ctx context.Context, opts Options) (*Store, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	s := &Store{
		table:   make(map[slotaddr.Address]*record),
		opts:    opts,
		log:     opts.Logger,
		metrics: m,
	}

	if opts.Backend != nil {
		err := opts.Backend.Scan(ctx, func(addr slotaddr.Address, value []byte) error {
			st, err := decodeRecord(addr, value)
			if err != nil {
				return err
			}

			if _, dup := s.table[addr]; dup {
				return fmt.Errorf("record %s: listed twice: %w", addr, ErrCorrupt)
			}

			s.table[addr] = newRecord(addr, st)

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
	}

	s.metrics.slots.Set(float64(len(s.table)))
	s.log.Debug("store opened", zap.Int("slots", len(s.table)), zap.Bool("persistent", opts.Backend != nil))

	return s, nil
}

// Close releases the store and its backend.
//
// After Close, all other methods return [ErrClosed].
// Close is idempotent; subsequent calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return nil
	}

	s.isClosed = true
	s.table = nil

	if s.opts.Backend != nil {
		if err := s.opts.Backend.Close(); err != nil {
			return fmt.Errorf("close backend: %w", err)
		}
	}

	return nil
}

// PolicyFor returns the policy a slot created under namespace receives.
func (s *Store) PolicyFor(namespace string) Policy {
	if policy, ok := s.opts.Namespaces[namespace]; ok {
		return policy
	}

	return s.opts.DefaultPolicy
}

// Namespaces returns the effective namespace policies.
func (s *Store) Namespaces() map[string]Policy {
	return maps.Clone(s.opts.Namespaces)
}

// MaxCapacity returns the largest capacity Create accepts.
func (s *Store) MaxCapacity() uint64 {
	return s.opts.MaxCapacity
}

// Create registers a zero-filled slot of exactly capacity bytes at
// Derive(namespace, owner, seed) and returns its address.
//
// The slot's policy is taken from namespace (see [Store.PolicyFor]).
// Authorized slots record seed and capacity as their owner seed and
// declared size.
//
// Possible errors: [ErrClosed], [ErrInvalidInput], [ErrInvalidCapacity],
// [ErrAlreadyExists], or a wrapped backend error.
func (s *Store) Create(ctx context.Context, namespace string, owner []byte, seed, capacity uint64) (addr slotaddr.Address, err error) {
	defer func() { s.metrics.observe(opCreate, err) }()

	if err := validateIdentity(namespace, owner); err != nil {
		return slotaddr.Address{}, err
	}

	if capacity == 0 || capacity > s.opts.MaxCapacity {
		return slotaddr.Address{}, fmt.Errorf("capacity %d not in [1, %d]: %w", capacity, s.opts.MaxCapacity, ErrInvalidCapacity)
	}

	addr = slotaddr.Derive(namespace, owner, seed)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return slotaddr.Address{}, ErrClosed
	}

	if _, exists := s.table[addr]; exists {
		s.log.Info("create rejected", zap.Stringer("addr", addr), zap.String("namespace", namespace), zap.Uint64("seed", seed))

		return slotaddr.Address{}, fmt.Errorf("slot %s: %w", addr, ErrAlreadyExists)
	}

	st := recordState{
		namespace: namespace,
		owner:     bytes.Clone(owner),
		seed:      seed,
		policy:    s.PolicyFor(namespace),
		capacity:  capacity,
	}

	if st.policy == PolicyAuthorized {
		st.declaredSize = capacity
	}

	if err := s.persist(ctx, addr, st); err != nil {
		return slotaddr.Address{}, err
	}

	s.table[addr] = newRecord(addr, st)
	s.metrics.slots.Inc()

	s.log.Debug("slot created",
		zap.Stringer("addr", addr),
		zap.String("namespace", namespace),
		zap.Uint64("seed", seed),
		zap.Uint64("capacity", capacity),
		zap.Stringer("policy", st.policy),
	)

	return addr, nil
}

// WriteOnce copies payload into a write-once slot, truncated to capacity,
// and returns the number of bytes written.
//
// Payloads longer than the slot's capacity are silently truncated, not
// rejected. Only the first successful call per slot is accepted.
//
// Possible errors: [ErrClosed], [ErrNotFound], [ErrPolicyMismatch],
// [ErrBufferOverwrite], or a wrapped backend error.
func (s *Store) WriteOnce(ctx context.Context, namespace string, owner []byte, seed uint64, payload []byte) (int, error) {
	return s.write(ctx, opWriteOnce, slotaddr.Derive(namespace, owner, seed), payload, func(rec *record) error {
		if rec.policy != PolicyWriteOnce {
			return fmt.Errorf("%s slot: %w", rec.policy, ErrPolicyMismatch)
		}

		if rec.written {
			return ErrBufferOverwrite
		}

		return nil
	})
}

// AuthorizedWrite replaces the contents of an authorized slot with payload,
// truncated to capacity, and returns the number of bytes written.
//
// caller must equal the owner identity the slot was created with. The
// write is a full replace: bytes from earlier, longer writes do not survive.
//
// Possible errors: [ErrClosed], [ErrNotFound], [ErrPolicyMismatch],
// [ErrUnauthorized], or a wrapped backend error.
func (s *Store) AuthorizedWrite(ctx context.Context, namespace string, owner []byte, seed uint64, payload, caller []byte) (int, error) {
	return s.write(ctx, opAuthorizedWrite, slotaddr.Derive(namespace, owner, seed), payload, func(rec *record) error {
		if rec.policy != PolicyAuthorized {
			return fmt.Errorf("%s slot: %w", rec.policy, ErrPolicyMismatch)
		}

		if !bytes.Equal(caller, rec.owner) {
			return ErrUnauthorized
		}

		return nil
	})
}

// write runs check and then the truncating copy under the record lock.
// Nothing is mutated unless check passes and the backend accepts the new
// state.
func (s *Store) write(ctx context.Context, op string, addr slotaddr.Address, payload []byte, check func(*record) error) (n int, err error) {
	defer func() {
		s.metrics.observe(op, err)

		if err == nil {
			s.metrics.bytes.Add(float64(n))
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return 0, ErrClosed
	}

	rec, ok := s.table[addr]
	if !ok {
		return 0, fmt.Errorf("slot %s: %w", addr, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := check(rec); err != nil {
		s.log.Info("write rejected", zap.String("op", op), zap.Stringer("addr", addr), zap.Error(err))

		return 0, fmt.Errorf("slot %s: %w", addr, err)
	}

	next := rec.next(payload, op == opWriteOnce)

	if err := s.persist(ctx, addr, next); err != nil {
		return 0, err
	}

	rec.apply(next)

	if len(payload) > len(next.data) {
		s.log.Debug("payload truncated", zap.Stringer("addr", addr), zap.Int("payload", len(payload)), zap.Uint64("capacity", rec.capacity()))
	}

	s.log.Debug("slot written", zap.String("op", op), zap.Stringer("addr", addr), zap.Int("bytes", len(next.data)), zap.Uint64("generation", next.generation))

	return len(next.data), nil
}

func (s *Store) persist(ctx context.Context, addr slotaddr.Address, st recordState) error {
	if s.opts.Backend == nil {
		return nil
	}

	if err := s.opts.Backend.Put(ctx, addr, encodeRecord(st)); err != nil {
		s.log.Error("persist failed", zap.Stringer("addr", addr), zap.Error(err))

		return fmt.Errorf("persist slot %s: %w", addr, err)
	}

	return nil
}

// Get returns the slot at Derive(namespace, owner, seed).
//
// Returns (record, true, nil) if found, ([Record]{}, false, nil) if not.
//
// Possible errors: [ErrClosed].
func (s *Store) Get(namespace string, owner []byte, seed uint64) (Record, bool, error) {
	return s.Lookup(slotaddr.Derive(namespace, owner, seed))
}

// Lookup returns the slot at addr.
//
// Possible errors: [ErrClosed].
func (s *Store) Lookup(addr slotaddr.Address) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return Record{}, false, ErrClosed
	}

	rec, ok := s.table[addr]
	if !ok {
		return Record{}, false, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.snapshot(), true, nil
}

// Records returns snapshots of all slots ordered by address bytes.
//
// Possible errors: [ErrClosed].
func (s *Store) Records() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return nil, ErrClosed
	}

	out := make([]Record, 0, len(s.table))

	for _, rec := range s.table {
		rec.mu.Lock()
		out = append(out, rec.snapshot())
		rec.mu.Unlock()
	}

	slices.SortFunc(out, func(a, b Record) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})

	return out, nil
}

// Len returns the number of registered slots.
//
// Possible errors: [ErrClosed].
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return 0, ErrClosed
	}

	return len(s.table), nil
}

func validateIdentity(namespace string, owner []byte) error {
	if namespace == "" || len(namespace) > maxNamespaceBytes {
		return fmt.Errorf("namespace length %d not in [1, %d]: %w", len(namespace), maxNamespaceBytes, ErrInvalidInput)
	}

	if len(owner) > maxOwnerBytes {
		return fmt.Errorf("owner length %d exceeds %d: %w", len(owner), maxOwnerBytes, ErrInvalidInput)
	}

	return nil
}

// IsRejection reports whether err is a policy or lookup outcome rather than
// a fault: ErrAlreadyExists, ErrNotFound, ErrInvalidCapacity,
// ErrBufferOverwrite, ErrUnauthorized or ErrPolicyMismatch.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAlreadyExists, ErrNotFound, ErrInvalidCapacity,
		ErrBufferOverwrite, ErrUnauthorized, ErrPolicyMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
