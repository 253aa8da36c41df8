// Package filekv persists echobuf records as one file per slot.
//
// Layout:
//
//	<dir>/.lock            held with flock(LOCK_EX) while the backend is open
//	<dir>/<base58>.rec     one encoded record per slot
//
// Record files are replaced atomically (temp file + rename), so a crash
// leaves either the previous or the new record, never a torn one.
//
// The lock is advisory and whole-directory: a second process (or a second
// Open in the same process) fails with [ErrLocked] instead of interleaving
// writes.
package filekv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

const (
	lockName  = ".lock"
	recordExt = ".rec"
)

var (
	// ErrLocked is returned by [Open] when another handle holds the directory.
	ErrLocked = errors.New("filekv: directory locked by another process")

	// ErrClosed is returned by operations on a closed [Dir].
	ErrClosed = errors.New("filekv: closed")
)

// Dir is a directory-backed [echobuf.Backend].
type Dir struct {
	path string

	mu   sync.Mutex
	lock *os.File
}

var _ echobuf.Backend = (*Dir)(nil)

// Open creates path if needed and takes its exclusive lock.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("filekv: create dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(path, lockName), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("filekv: open lock: %w", err)
	}

	if err := flock(f, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}

		return nil, fmt.Errorf("filekv: lock: %w", err)
	}

	return &Dir{path: path, lock: f}, nil
}

// flock retries on EINTR.
func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Path returns the directory the records live in.
func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) recordPath(addr slotaddr.Address) string {
	return filepath.Join(d.path, addr.String()+recordExt)
}

func (d *Dir) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lock == nil {
		return ErrClosed
	}

	return nil
}

// Put atomically replaces the record file for addr.
func (d *Dir) Put(ctx context.Context, addr slotaddr.Address, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.checkOpen(); err != nil {
		return err
	}

	if err := atomic.WriteFile(d.recordPath(addr), bytes.NewReader(value)); err != nil {
		return fmt.Errorf("filekv: write %s: %w", addr, err)
	}

	return nil
}

// Scan reads every *.rec file in the directory. Other files are ignored.
func (d *Dir) Scan(ctx context.Context, fn func(addr slotaddr.Address, value []byte) error) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("filekv: list: %w", err)
	}

	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), recordExt)
		if !ok || entry.IsDir() {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		addr, err := slotaddr.Parse(name)
		if err != nil {
			return fmt.Errorf("filekv: file %s: %w", entry.Name(), errors.Join(err, echobuf.ErrCorrupt))
		}

		value, err := os.ReadFile(filepath.Join(d.path, entry.Name()))
		if err != nil {
			return fmt.Errorf("filekv: read %s: %w", entry.Name(), err)
		}

		if err := fn(addr, value); err != nil {
			return err
		}
	}

	return nil
}

// Close releases the directory lock. Idempotent.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lock == nil {
		return nil
	}

	unlockErr := flock(d.lock, unix.LOCK_UN)
	closeErr := d.lock.Close()
	d.lock = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("filekv: unlock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("filekv: close lock: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}
