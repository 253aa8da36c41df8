// Package badgerkv persists echobuf records in BadgerDB.
package badgerkv

import (
	"context"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// keyPrefix namespaces slot records within the Badger key space.
var keyPrefix = []byte("slot/")

// ErrNoDir is returned by [Open] when neither Dir nor InMemory is set.
var ErrNoDir = errors.New("badgerkv: data directory required")

// Options configure a [DB].
type Options struct {
	// Dir holds the Badger files. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM. Useful for tests and the REPL.
	InMemory bool

	// SyncWrites fsyncs every Put before returning.
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil discards them.
	Logger *zap.Logger
}

// DB is a Badger-backed [echobuf.Backend].
type DB struct {
	db *badgerdb.DB
}

var _ echobuf.Backend = (*DB)(nil)

// Open opens or creates the Badger database described by opts.
func Open(opts Options) (*DB, error) {
	var bopts badgerdb.Options

	switch {
	case opts.InMemory:
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	case opts.Dir == "":
		return nil, ErrNoDir
	default:
		if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("badgerkv: create dir: %w", err)
		}

		bopts = badgerdb.DefaultOptions(opts.Dir).WithSyncWrites(opts.SyncWrites)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bopts.Logger = newBadgerLogger(logger)

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open: %w", err)
	}

	return &DB{db: db}, nil
}

func recordKey(addr slotaddr.Address) []byte {
	return append(append(make([]byte, 0, len(keyPrefix)+slotaddr.Size), keyPrefix...), addr[:]...)
}

// Put stores value under addr in a single transaction.
func (d *DB) Put(ctx context.Context, addr slotaddr.Address, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := d.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(recordKey(addr), value)
	})
	if err != nil {
		return fmt.Errorf("badgerkv: put %s: %w", addr, err)
	}

	return nil
}

// Get returns the value stored under addr, or (nil, false, nil) if absent.
func (d *DB) Get(addr slotaddr.Address) ([]byte, bool, error) {
	var value []byte

	err := d.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(recordKey(addr))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})

	switch {
	case errors.Is(err, badgerdb.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("badgerkv: get %s: %w", addr, err)
	}

	return value, true, nil
}

// Scan calls fn for every stored record in key order. Values passed to fn
// are copies. Scan stops at the first error from fn or ctx.
func (d *DB) Scan(ctx context.Context, fn func(addr slotaddr.Address, value []byte) error) error {
	return d.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()

			key := item.Key()[len(keyPrefix):]
			if len(key) != slotaddr.Size {
				return fmt.Errorf("badgerkv: key %q: %w", item.Key(), echobuf.ErrCorrupt)
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("badgerkv: read %x: %w", key, err)
			}

			if err := fn(slotaddr.Address(key), value); err != nil {
				return err
			}
		}

		return nil
	})
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("badgerkv: close: %w", err)
	}

	return nil
}

// badgerLogger adapts zap to Badger's Logger interface.
type badgerLogger struct {
	log *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	return &badgerLogger{log: logger.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.log.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.log.Warnf(format, args...) }

// Badger is chatty at Info; surface it as Debug.
func (l *badgerLogger) Infof(format string, args ...any)  { l.log.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
