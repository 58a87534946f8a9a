package ofd

import (
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type readConfig struct {
	limits Limits
	logger *slog.Logger
}

type ReadOption func(*readConfig)

func newReadConfig(opts []ReadOption) readConfig {
	cfg := readConfig{limits: defaultLimits(), logger: discardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	return cfg
}

func WithReadLimits(l Limits) ReadOption {
	return func(c *readConfig) { c.limits = l }
}

// WithReadLogger routes debug records of Load and ReadArchive to l.
func WithReadLogger(l *slog.Logger) ReadOption {
	return func(c *readConfig) { c.logger = l }
}

type writeConfig struct {
	compression Compression
	level       int
	modTime     *time.Time
	logger      *slog.Logger
}

type WriteOption func(*writeConfig)

func newWriteConfig(opts []WriteOption) writeConfig {
	cfg := writeConfig{compression: CompAuto, level: DefaultCompressionLevel, logger: discardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	return cfg
}

// WithCompression overrides Options.Compress for every entry.
func WithCompression(comp Compression) WriteOption {
	return func(c *writeConfig) { c.compression = comp }
}

// WithCompressionLevel sets the deflate level (-2..9, see compress/flate).
func WithCompressionLevel(level int) WriteOption {
	return func(c *writeConfig) { c.level = level }
}

// WithModTime stamps every ZIP entry header with t. By default the metadata
// modification date is used, then the creation date, then the zero DOS time.
func WithModTime(t time.Time) WriteOption {
	return func(c *writeConfig) { c.modTime = &t }
}

func WithWriteLogger(l *slog.Logger) WriteOption {
	return func(c *writeConfig) { c.logger = l }
}
