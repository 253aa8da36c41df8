package echobuf_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

var errInjected = errors.New("injected backend failure")

// memBackend is an in-memory [echobuf.Backend] with fault injection.
type memBackend struct {
	mu       sync.Mutex
	values   map[slotaddr.Address][]byte
	failPuts bool
	puts     int
	closed   bool
}

func newMemBackend() *memBackend {
	return &memBackend{values: make(map[slotaddr.Address][]byte)}
}

func (b *memBackend) Put(_ context.Context, addr slotaddr.Address, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failPuts {
		return errInjected
	}

	b.values[addr] = bytes.Clone(value)
	b.puts++

	return nil
}

func (b *memBackend) Scan(_ context.Context, fn func(slotaddr.Address, []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for addr, value := range b.values {
		if err := fn(addr, bytes.Clone(value)); err != nil {
			return err
		}
	}

	return nil
}

func (b *memBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

func (b *memBackend) setFailPuts(fail bool) {
	b.mu.Lock()
	b.failPuts = fail
	b.mu.Unlock()
}

// reopen returns a fresh backend holding the same values, as if the
// process restarted.
func (b *memBackend) reopen() *memBackend {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := newMemBackend()
	for addr, value := range b.values {
		next.values[addr] = bytes.Clone(value)
	}

	return next
}

func (b *memBackend) mutate(addr slotaddr.Address, fn func([]byte)) {
	b.mu.Lock()
	fn(b.values[addr])
	b.mu.Unlock()
}

func openStore(tb testing.TB, opts echobuf.Options) *echobuf.Store {
	tb.Helper()

	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(tb)
	}

	store, err := echobuf.Open(context.Background(), opts)
	require.NoError(tb, err, "Open should succeed")

	tb.Cleanup(func() { _ = store.Close() })

	return store
}

func mustRecords(tb testing.TB, store *echobuf.Store) []echobuf.Record {
	tb.Helper()

	records, err := store.Records()
	require.NoError(tb, err, "Records should succeed")

	return records
}

func mustGet(tb testing.TB, store *echobuf.Store, namespace string, owner []byte, seed uint64) echobuf.Record {
	tb.Helper()

	rec, ok, err := store.Get(namespace, owner, seed)
	require.NoError(tb, err, "Get should succeed")
	require.True(tb, ok, "slot should exist")

	return rec
}

// errorKind maps err to the sentinel it wraps so model and store errors can
// be compared without their context text.
func errorKind(err error) error {
	if err == nil {
		return nil
	}

	sentinels := []error{
		echobuf.ErrAlreadyExists, echobuf.ErrNotFound, echobuf.ErrInvalidCapacity,
		echobuf.ErrBufferOverwrite, echobuf.ErrUnauthorized, echobuf.ErrPolicyMismatch,
		echobuf.ErrInvalidInput, echobuf.ErrClosed, echobuf.ErrCorrupt,
	}

	if i := slices.IndexFunc(sentinels, func(s error) bool { return errors.Is(err, s) }); i >= 0 {
		return sentinels[i]
	}

	return err
}
