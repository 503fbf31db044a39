package ziparchive

import "github.com/meigma/ziparchive/internal/batch"

// ExtractOption configures Extract and ExtractTo.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	directWrites  bool
	archiveOpts   []Option
}

func newExtractConfig(opts []ExtractOption) extractConfig {
	cfg := extractConfig{overwrite: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c *extractConfig) sinkOptions() []batch.FileSinkOption {
	return []batch.FileSinkOption{
		batch.WithOverwrite(c.overwrite),
		batch.WithPreserveMode(c.preserveMode),
		batch.WithPreserveTimes(c.preserveTimes),
		batch.WithDirectWrites(c.directWrites),
	}
}

// ExtractWithOverwrite controls whether existing files are replaced.
// The default is true. When false, existing files are skipped and counted
// in ExtractStats.Skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.overwrite = overwrite
	}
}

// ExtractWithPreserveMode applies the permission bits recorded in the
// archive. By default files are created with mode 0666 less the process
// umask, as os.Create does.
func ExtractWithPreserveMode(preserve bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.preserveMode = preserve
	}
}

// ExtractWithPreserveTimes applies the modification times recorded in the
// archive.
func ExtractWithPreserveTimes(preserve bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.preserveTimes = preserve
	}
}

// ExtractWithDirectWrites writes files directly to their final path instead
// of staging them in a temporary file. A failed entry is removed.
func ExtractWithDirectWrites(enabled bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.directWrites = enabled
	}
}

// ExtractWithArchiveOptions passes options to the archive opened by Extract.
func ExtractWithArchiveOptions(opts ...Option) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.archiveOpts = append(cfg.archiveOpts, opts...)
	}
}
