package ziparchive

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Create writes a new archive at archivePath holding the given files.
// Each file is stored under its base name at the default compression level.
// On failure the partially written archive is still closed so that it holds
// a valid directory of the entries written before the error.
func Create(archivePath string, files []string, opts ...Option) (err error) {
	a, err := Open(archivePath, DefaultCompression, ModeWrite, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	for _, path := range files {
		if err := a.addFile(filepath.Base(path), path); err != nil {
			return err
		}
	}
	return nil
}

// addFile writes one file as a complete entry.
func (a *Archive) addFile(name, path string) error {
	if err := a.OpenEntry(name); err != nil {
		return err
	}
	if err := a.WriteFile(path); err != nil {
		return errors.Join(fmt.Errorf("add %s: %w", path, err), a.AbortEntry())
	}
	return a.CloseEntry()
}
