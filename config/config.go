// Package config defines the single immutable Config value threaded
// through the orchestrator and every framer, per the format
// specification's design note against global state and ad-hoc option
// objects: it replaces loadg's package-level flag variables (see
// DESIGN.md) with one value constructed once and passed down, the way
// AlexFalzone-zm/internal/config.Config is loaded once by the CLI and
// handed to callers rather than read from package globals.
package config

import "log"

const (
	// DefaultMaxRecordBytes is the default ceiling on any single
	// allocated buffer, per the resource-bounds requirement.
	DefaultMaxRecordBytes = 64 * 1024 * 1024
	// DefaultMaxNested caps nested-container recursion depth.
	DefaultMaxNested = 8
)

// Config holds every knob the format specification's external interface
// names. A zero Config is not directly usable; call New to fill in
// defaults, or use the Option functions with New.
type Config struct {
	LreclOverride      int
	Encoding           string
	Unnum              bool
	ForceText          bool
	BinaryOnly         bool
	PreserveModifyDate bool
	MaxRecordBytes     int64
	MaxNested          int
	Logger             *log.Logger
	// Quiet restricts Logger output to warnings/errors only, per spec.md
	// §7's "quiet mode emits only warnings/errors to the diagnostics
	// sink".
	Quiet bool
	// Debug enables the per-record trace (offset, record tag, decoded
	// text units) spec.md §7 describes for debug mode.
	Debug bool
}

// Option mutates a Config being built by New.
type Option func(*Config)

// New builds a Config with the specification's defaults, then applies
// opts in order.
func New(opts ...Option) Config {
	c := Config{
		Encoding:       "cp1140",
		Unnum:          true,
		ForceText:      false,
		BinaryOnly:     false,
		MaxRecordBytes: DefaultMaxRecordBytes,
		MaxNested:      DefaultMaxNested,
		Logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithLreclOverride(n int) Option    { return func(c *Config) { c.LreclOverride = n } }
func WithEncoding(name string) Option   { return func(c *Config) { c.Encoding = name } }
func WithUnnum(b bool) Option           { return func(c *Config) { c.Unnum = b } }
func WithForceText(b bool) Option       { return func(c *Config) { c.ForceText = b } }
func WithBinaryOnly(b bool) Option      { return func(c *Config) { c.BinaryOnly = b } }
func WithPreserveModifyDate(b bool) Option {
	return func(c *Config) { c.PreserveModifyDate = b }
}
func WithMaxRecordBytes(n int64) Option { return func(c *Config) { c.MaxRecordBytes = n } }
func WithMaxNested(n int) Option        { return func(c *Config) { c.MaxNested = n } }
func WithLogger(l *log.Logger) Option   { return func(c *Config) { c.Logger = l } }
func WithQuiet(b bool) Option           { return func(c *Config) { c.Quiet = b } }
func WithDebug(b bool) Option           { return func(c *Config) { c.Debug = b } }
