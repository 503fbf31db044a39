package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/meigma/ziparchive"
	"github.com/meigma/ziparchive/internal/platform"
)

// walker adds a directory tree to an archive. It only uses the entry
// protocol of the archive: OpenEntry, WriteFrom and CloseEntry, plus the
// entry metadata setters.
type walker struct {
	archive *ziparchive.Archive
	logger  *slog.Logger

	// exclude is skipped if it appears inside the tree, so an archive
	// written into the directory it compresses does not include itself.
	exclude     string
	excludeInfo fs.FileInfo
}

// addTree adds every directory and regular file below dir, using paths
// relative to dir as entry names. Symbolic links and special files are
// skipped. It returns the number of entries added.
func (w *walker) addTree(dir string) (int, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return 0, fmt.Errorf("open source directory: %w", err)
	}
	defer root.Close()

	if w.exclude != "" {
		if info, err := os.Stat(w.exclude); err == nil {
			w.excludeInfo = info
		}
	}

	count := 0
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		switch {
		case d.IsDir():
			if err := w.addDir(path, d); err != nil {
				return err
			}
		case d.Type().IsRegular():
			added, err := w.addFile(root, path)
			if err != nil {
				return err
			}
			if !added {
				return nil
			}
		default:
			w.log().Debug("skipping non-regular file", "path", path, "type", d.Type())
			return nil
		}
		count++
		return nil
	})
	return count, err
}

func (w *walker) addDir(path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if err := w.archive.OpenEntry(path + "/"); err != nil {
		return err
	}
	if err := w.archive.SetEntryMode(info.Mode()); err != nil {
		return err
	}
	if err := w.archive.SetEntryModified(info.ModTime()); err != nil {
		return err
	}
	return w.archive.CloseEntry()
}

// addFile adds one regular file. It reports false when the file was skipped.
func (w *walker) addFile(root *os.Root, path string) (bool, error) {
	f, info, err := platform.OpenRegular(root, path)
	if errors.Is(err, platform.ErrSymlink) || errors.Is(err, platform.ErrNotRegular) {
		w.log().Debug("skipping file", "path", path, "reason", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	if w.excludeInfo != nil && os.SameFile(info, w.excludeInfo) {
		w.log().Debug("skipping archive being written", "path", path)
		return false, nil
	}

	if err := w.archive.OpenEntry(path); err != nil {
		return false, err
	}
	if err := w.archive.SetEntryMode(info.Mode()); err != nil {
		return false, err
	}
	if err := w.archive.SetEntryModified(info.ModTime()); err != nil {
		return false, err
	}
	if _, err := w.archive.WriteFrom(f); err != nil {
		return false, errors.Join(fmt.Errorf("%s: %w", path, err), w.archive.AbortEntry())
	}
	if err := w.archive.CloseEntry(); err != nil {
		return false, err
	}
	return true, nil
}

func (w *walker) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}
