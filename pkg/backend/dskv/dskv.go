// Package dskv persists echobuf records in an IPFS go-datastore.
//
// Any [datastore.Datastore] works: the in-memory MapDatastore for tests and
// the REPL, or a disk-backed implementation supplied by the caller. Records
// live under /slots/<base58 address>.
package dskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

const slotsPrefix = "/slots"

// Store adapts a Datastore to [echobuf.Backend].
type Store struct {
	ds datastore.Datastore
}

var _ echobuf.Backend = (*Store)(nil)

// New wraps ds. The returned Store owns ds and closes it on Close.
func New(ds datastore.Datastore) *Store {
	return &Store{ds: ds}
}

// NewInMemory returns a Store over a mutex-guarded MapDatastore.
func NewInMemory() *Store {
	return New(dssync.MutexWrap(datastore.NewMapDatastore()))
}

func slotKey(addr slotaddr.Address) datastore.Key {
	return datastore.NewKey(slotsPrefix + "/" + addr.String())
}

// Put stores value under the slot key for addr.
func (s *Store) Put(ctx context.Context, addr slotaddr.Address, value []byte) error {
	if err := s.ds.Put(ctx, slotKey(addr), value); err != nil {
		return fmt.Errorf("dskv: put %s: %w", addr, err)
	}

	return nil
}

// Get returns the value for addr, or (nil, false, nil) if absent.
func (s *Store) Get(ctx context.Context, addr slotaddr.Address) ([]byte, bool, error) {
	value, err := s.ds.Get(ctx, slotKey(addr))

	switch {
	case errors.Is(err, datastore.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("dskv: get %s: %w", addr, err)
	}

	return value, true, nil
}

// Scan queries every key under /slots and calls fn for each entry.
func (s *Store) Scan(ctx context.Context, fn func(addr slotaddr.Address, value []byte) error) error {
	res, err := s.ds.Query(ctx, query.Query{Prefix: slotsPrefix})
	if err != nil {
		return fmt.Errorf("dskv: query: %w", err)
	}
	defer res.Close()

	for entry := range res.Next() {
		if entry.Error != nil {
			return fmt.Errorf("dskv: query: %w", entry.Error)
		}

		key := datastore.NewKey(entry.Key)

		addr, err := slotaddr.Parse(key.BaseNamespace())
		if err != nil {
			return fmt.Errorf("dskv: key %s: %w", entry.Key, errors.Join(err, echobuf.ErrCorrupt))
		}

		if err := fn(addr, entry.Value); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the wrapped datastore.
func (s *Store) Close() error {
	if err := s.ds.Close(); err != nil {
		return fmt.Errorf("dskv: close: %w", err)
	}

	return nil
}
