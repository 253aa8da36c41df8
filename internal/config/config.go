// Package config loads echobuf's layered JSONC configuration.
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/tailscale/hujson"
	"go.uber.org/zap/zapcore"

	"github.com/calvinalkan/echobuf/pkg/echobuf"
)

// Backend names accepted in the "backend" field.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendBadger    = "badger"
	BackendDatastore = "datastore"
)

// FileName is the default project config file name.
const FileName = ".echobuf.json"

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Backend     string            `json:"backend"`
	DataDir     string            `json:"data_dir"`
	MaxCapacity uint64            `json:"max_capacity,omitempty"`
	Namespaces  map[string]string `json:"namespaces,omitempty"`
	Log         Log               `json:"log"`

	// Resolved values (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	DataDirAbs   string `json:"-"` // Absolute path to data directory

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Log configures the process logger.
type Log struct {
	Level      string `json:"level,omitempty"`
	Format     string `json:"format,omitempty"` // console or json
	File       string `json:"file,omitempty"`   // empty means stderr
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Backend: BackendFile,
		DataDir: ".echobuf",
		Log: Log{
			Level:      "warn",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// NamespacePolicies parses the namespaces map into store policies.
func (c Config) NamespacePolicies() (map[string]echobuf.Policy, error) {
	out := make(map[string]echobuf.Policy, len(c.Namespaces))

	for name, value := range c.Namespaces {
		policy, err := echobuf.ParsePolicy(value)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidNamespace, name, err)
		}

		out[name] = policy
	}

	return out, nil
}

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/echobuf/config.json if set, otherwise
// ~/.config/echobuf/config.json. Returns empty string if home directory
// cannot be determined.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "echobuf", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "echobuf", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	BackendOverride string            // --backend flag value; empty means no override
	DataDirOverride string            // --data-dir flag value; empty means no override
	DefaultBackend  string            // replaces the built-in default backend, if set
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/echobuf/config.json)
// 3. Project config file at default location (.echobuf.json, if exists)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := Default()
	if input.DefaultBackend != "" {
		cfg.Backend = input.DefaultBackend
	}

	if path := globalPath(input.Env); path != "" {
		globalCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = merge(cfg, globalCfg)
		}
	}

	projectCfg, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if input.BackendOverride != "" {
		cfg.Backend = input.BackendOverride
	}

	if input.DataDirOverride != "" {
		cfg.DataDir = input.DataDirOverride
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.DataDir) {
		cfg.DataDirAbs = cfg.DataDir
	} else {
		cfg.DataDirAbs = filepath.Join(workDir, cfg.DataDir)
	}

	if cfg.Log.File != "" && !filepath.IsAbs(cfg.Log.File) {
		cfg.Log.File = filepath.Join(workDir, cfg.Log.File)
	}

	return cfg, nil
}

// loadProject loads .echobuf.json from workDir, or the explicit config file
// if one was given. Returns the config and the path if loaded.
func loadProject(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, FileName)

		cfg, loaded, err := loadFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if _, err := os.Stat(path); err != nil {
		return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	cfg, _, err := loadFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile loads a config file. If mustExist is false, missing files return
// zero config and loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	// An explicit "data_dir": "" is an error rather than "use the default".
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if val, exists := raw["data_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			return Config{}, ErrDataDirEmpty
		}
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}

	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.MaxCapacity != 0 {
		base.MaxCapacity = overlay.MaxCapacity
	}

	if len(overlay.Namespaces) > 0 {
		merged := maps.Clone(base.Namespaces)
		if merged == nil {
			merged = make(map[string]string, len(overlay.Namespaces))
		}

		maps.Copy(merged, overlay.Namespaces)
		base.Namespaces = merged
	}

	if overlay.Log.Level != "" {
		base.Log.Level = overlay.Log.Level
	}

	if overlay.Log.Format != "" {
		base.Log.Format = overlay.Log.Format
	}

	if overlay.Log.File != "" {
		base.Log.File = overlay.Log.File
	}

	if overlay.Log.MaxSizeMB != 0 {
		base.Log.MaxSizeMB = overlay.Log.MaxSizeMB
	}

	if overlay.Log.MaxBackups != 0 {
		base.Log.MaxBackups = overlay.Log.MaxBackups
	}

	return base
}

var backends = []string{BackendMemory, BackendFile, BackendBadger, BackendDatastore}

func validate(cfg Config) error {
	if !slices.Contains(backends, cfg.Backend) {
		return fmt.Errorf("%w %q (want one of %v)", ErrUnknownBackend, cfg.Backend, backends)
	}

	if cfg.DataDir == "" {
		return ErrDataDirEmpty
	}

	if cfg.MaxCapacity > echobuf.MaxCapacityLimit {
		return fmt.Errorf("%w: %d > %d", ErrMaxCapacityRange, cfg.MaxCapacity, echobuf.MaxCapacityLimit)
	}

	if _, err := cfg.NamespacePolicies(); err != nil {
		return err
	}

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogConfig, err)
	}

	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return fmt.Errorf("%w: format %q", ErrInvalidLogConfig, cfg.Log.Format)
	}

	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("%w: negative rotation limits", ErrInvalidLogConfig)
	}

	return nil
}
