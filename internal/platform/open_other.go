//go:build !unix

package platform

import (
	"fmt"
	"io/fs"
	"os"
)

// The Lstat check races with the open; Windows has no O_NOFOLLOW.
func openNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrSymlink)
	}
	return root.Open(name)
}
