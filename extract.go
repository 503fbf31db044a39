package ziparchive

import (
	"errors"
	"fmt"

	"github.com/meigma/ziparchive/internal/batch"
)

// ExtractFunc is called after each entry is extracted, with a 1-based
// ordinal and the total number of entries. Returning an error stops the
// extraction; the error is returned wrapped in ErrAborted.
type ExtractFunc func(name string, ordinal, total int) error

// ExtractStats contains statistics from an extraction.
type ExtractStats = batch.Stats

// Extract opens the archive at archivePath and extracts every entry below
// destDir. See ExtractTo.
func Extract(archivePath, destDir string, fn ExtractFunc, opts ...ExtractOption) (stats ExtractStats, err error) {
	cfg := newExtractConfig(opts)
	a, err := Open(archivePath, DefaultCompression, ModeRead, cfg.archiveOpts...)
	if err != nil {
		return ExtractStats{}, err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return a.extractTo(destDir, fn, &cfg)
}

// ExtractTo extracts every entry below destDir in directory order.
//
// Parent directories are created as needed and directory entries become
// empty directories. Names that would resolve outside destDir are rejected
// with an *fs.PathError wrapping fs.ErrInvalid. Extraction stops at the
// first error; entries already extracted are left in place.
//
// The archive must be in ModeRead with no entry open.
func (a *Archive) ExtractTo(destDir string, fn ExtractFunc, opts ...ExtractOption) (ExtractStats, error) {
	cfg := newExtractConfig(opts)
	return a.extractTo(destDir, fn, &cfg)
}

func (a *Archive) extractTo(destDir string, fn ExtractFunc, cfg *extractConfig) (ExtractStats, error) {
	var stats ExtractStats
	if err := a.idle(); err != nil {
		return stats, err
	}
	if a.mode != ModeRead {
		return stats, fmt.Errorf("%w: extract in %v mode", ErrMode, a.mode)
	}

	sink, err := batch.NewFileSink(destDir, cfg.sinkOptions()...)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer sink.Close()

	err = a.extractEntries(sink, fn, &stats)
	a.log().Debug("extraction finished",
		"dest", destDir,
		"files", stats.Files,
		"dirs", stats.Dirs,
		"skipped", stats.Skipped,
		"bytes", stats.TotalBytes,
		"error", err)
	return stats, err
}

// extractEntries drives sink over every entry in directory order.
func (a *Archive) extractEntries(sink batch.Sink, fn ExtractFunc, stats *ExtractStats) error {
	total := a.dir.Len()
	for i, rec := range a.dir.All() {
		ok, err := sink.ShouldProcess(&rec)
		if err != nil {
			return fmt.Errorf("%w: extract %s: %w", ErrIO, rec.Name, err)
		}
		if !ok {
			stats.Skipped++
			continue
		}
		if err := a.extractEntry(sink, i, &rec, stats); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(rec.Name, i+1, total); err != nil {
				return fmt.Errorf("%w: after %s: %w", ErrAborted, rec.Name, err)
			}
		}
	}
	return nil
}

// extractEntry materializes one entry through the regular read path.
func (a *Archive) extractEntry(sink batch.Sink, i int, rec *Record, stats *ExtractStats) (err error) {
	if rec.IsDir() {
		if err := sink.MakeDir(rec); err != nil {
			return fmt.Errorf("%w: extract %s: %w", ErrIO, rec.Name, err)
		}
		stats.Dirs++
		return nil
	}

	if err := a.OpenEntryByIndex(i); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.CloseEntry())
	}()
	r, err := a.reading()
	if err != nil {
		return err
	}

	c, err := sink.Writer(rec)
	if err != nil {
		return fmt.Errorf("%w: extract %s: %w", ErrIO, rec.Name, err)
	}
	if err := a.decodeCommit(r, c); err != nil {
		return err
	}
	stats.AddFile(rec.UncompressedSize)
	return nil
}
