package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/calvinalkan/echobuf/internal/config"
	"github.com/calvinalkan/echobuf/pkg/backend/badgerkv"
	"github.com/calvinalkan/echobuf/pkg/backend/dskv"
	"github.com/calvinalkan/echobuf/pkg/backend/filekv"
	"github.com/calvinalkan/echobuf/pkg/echobuf"
)

// Session holds one lazily opened store and dispatches commands to it.
//
// cmd/echobuf runs a single command per Session; cmd/echorepl keeps one
// Session for the life of the process. A Session is not safe for
// concurrent Exec calls.
type Session struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	store    *echobuf.Store
}

// NewSession returns a session for cfg. The store is opened on first use.
func NewSession(cfg *config.Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{cfg: cfg, log: logger, registry: prometheus.NewRegistry()}
}

// Config returns the effective configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Store opens the configured backend and store if not already open.
func (s *Session) Store(ctx context.Context) (*echobuf.Store, error) {
	if s.store != nil {
		return s.store, nil
	}

	policies, err := s.cfg.NamespacePolicies()
	if err != nil {
		return nil, err
	}

	backend, err := s.openBackend()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()

	opts := echobuf.Options{
		MaxCapacity: s.cfg.MaxCapacity,
		Namespaces:  policies,
		Backend:     backend,
		Logger:      s.log.Named("store"),
		Registerer:  reg,
	}

	store, err := echobuf.Open(ctx, opts)
	if err != nil {
		if backend != nil {
			err = errors.Join(err, backend.Close())
		}

		return nil, err
	}

	s.log.Debug("session store opened", zap.String("backend", s.cfg.Backend), zap.String("data_dir", s.cfg.DataDirAbs))
	s.store = store
	s.registry = reg

	return store, nil
}

func (s *Session) openBackend() (echobuf.Backend, error) {
	switch s.cfg.Backend {
	case config.BackendMemory:
		return nil, nil
	case config.BackendDatastore:
		return dskv.NewInMemory(), nil
	case config.BackendFile:
		return filekv.Open(filepath.Join(s.cfg.DataDirAbs, "slots"))
	case config.BackendBadger:
		return badgerkv.Open(badgerkv.Options{
			Dir:        filepath.Join(s.cfg.DataDirAbs, "badger"),
			SyncWrites: true,
			Logger:     s.log,
		})
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, s.cfg.Backend)
	}
}

// Gatherer exposes the store's metrics.
func (s *Session) Gatherer() prometheus.Gatherer {
	return s.registry
}

// Commands returns a fresh set of commands bound to this session.
// FlagSets carry parse state, so each Exec builds new ones.
func (s *Session) Commands() []*Command {
	return []*Command{
		KeygenCmd(),
		AddrCmd(),
		SignCmd(),
		CreateCmd(s),
		WriteCmd(s),
		AuthWriteCmd(s),
		ShowCmd(s),
		LsCmd(s),
		StatsCmd(s),
		PrintConfigCmd(s.cfg),
	}
}

// Exec runs the command named by args[0]. Returns exit code.
func (s *Session) Exec(ctx context.Context, o *IO, args []string) int {
	if len(args) == 0 {
		return 0
	}

	for _, cmd := range s.Commands() {
		if cmd.Name() == args[0] {
			code := cmd.Run(ctx, o, args[1:])
			o.Finish()

			return code
		}
	}

	o.ErrPrintln("error:", fmt.Errorf("%w: %s", ErrUnknownCommand, args[0]))

	return 1
}

// Close closes the store and its backend, if opened.
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}

	err := s.store.Close()
	s.store = nil

	return err
}
