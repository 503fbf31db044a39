package ziparchive

import (
	"log/slog"
	"time"
)

// DefaultMaxEntrySize is the default limit for in-memory entry reads (256MB).
const DefaultMaxEntrySize = 256 << 20

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithMethod sets the compression method used for entries that are not
// stored. The default is MethodDeflate.
func WithMethod(m Method) Option {
	return func(a *Archive) {
		a.method = m
	}
}

// WithSkipCompression adds predicates that decide to store an entry
// uncompressed. If any predicate returns true, compression is skipped.
func WithSkipCompression(fns ...SkipCompressionFunc) Option {
	return func(a *Archive) {
		a.skipCompression = append(a.skipCompression, fns...)
	}
}

// WithMaxEntrySize limits the uncompressed size of entries read into memory
// by ReadAll. Set limit to 0 to disable the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(a *Archive) {
		a.maxEntrySize = limit
	}
}

// WithMaxDecoderMemory limits the memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(a *Archive) {
		a.maxDecoderMemory = limit
	}
}

// WithComment sets the archive comment written on Close.
// It replaces the comment of an archive opened in ModeAppend and is
// ignored in ModeRead.
func WithComment(comment string) Option {
	return func(a *Archive) {
		a.comment = &comment
	}
}

// WithClock sets the time source for entry modification times.
// The default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		a.now = now
	}
}
