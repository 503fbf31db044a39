// Package platform isolates the OS-specific parts of reading a source tree.
package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrSymlink is returned when the path to open is a symbolic link.
	ErrSymlink = errors.New("symbolic links not supported")

	// ErrNotRegular is returned when the path is not a regular file.
	ErrNotRegular = errors.New("not a regular file")
)

// OpenRegular opens name inside root for reading without following a final
// symlink, and checks that the opened file is a regular file.
// The returned info describes the opened file, not the path.
func OpenRegular(root *os.Root, name string) (*os.File, fs.FileInfo, error) {
	f, err := openNoFollow(root, name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNotRegular)
	}
	return f, info, nil
}
