//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// sourceFlags opens a tree member for reading. O_NOFOLLOW makes a final
// symlink fail with ELOOP. O_NONBLOCK keeps a FIFO from stalling the open;
// OpenRegular rejects it after the stat.
const sourceFlags = os.O_RDONLY | syscall.O_NOFOLLOW | syscall.O_NONBLOCK

func openNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, sourceFlags, 0)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, syscall.ELOOP):
		return nil, fmt.Errorf("%s: %w", name, ErrSymlink)
	default:
		return nil, err
	}
}
