package config

import "errors"

// Error variables for configuration loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDataDirEmpty       = errors.New("data_dir cannot be empty")
	ErrUnknownBackend     = errors.New("unknown backend")
	ErrInvalidLogConfig   = errors.New("invalid log config")
	ErrInvalidNamespace   = errors.New("invalid namespace")
	ErrMaxCapacityRange   = errors.New("max_capacity out of range")
)
