package ziparchive

import (
	"fmt"
	"io"
	"os"
)

// storage is the random-access handle under an Archive.
type storage interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// fileStorage is a storage backed by an *os.File.
type fileStorage struct {
	f *os.File
}

func openFileStorage(path string, mode Mode) (*fileStorage, error) {
	var (
		f   *os.File
		err error
	)
	switch mode {
	case ModeWrite:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	case ModeAppend:
		f, err = os.OpenFile(path, os.O_RDWR, 0)
	default:
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return &fileStorage{f: f}, nil
}

func (s *fileStorage) ReadAt(p []byte, off int64) (int, error)  { return s.f.ReadAt(p, off) }
func (s *fileStorage) WriteAt(p []byte, off int64) (int, error) { return s.f.WriteAt(p, off) }
func (s *fileStorage) Truncate(size int64) error                { return s.f.Truncate(size) }
func (s *fileStorage) Sync() error                              { return s.f.Sync() }
func (s *fileStorage) Close() error                             { return s.f.Close() }

func (s *fileStorage) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// memStorage is a storage backed by a growable byte slice.
type memStorage struct {
	data []byte
}

func (s *memStorage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *memStorage) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	end := off + int64(len(p))
	if end > int64(len(s.data)) {
		if end > int64(cap(s.data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(s.data))))
			copy(grown, s.data)
			s.data = grown
		} else {
			n := len(s.data)
			s.data = s.data[:end]
			clear(s.data[n:])
		}
	}
	return copy(s.data[off:], p), nil
}

func (s *memStorage) Truncate(size int64) error {
	if size < 0 || size > int64(len(s.data)) {
		return fmt.Errorf("truncate to %d: out of range", size)
	}
	s.data = s.data[:size]
	return nil
}

func (s *memStorage) Size() (int64, error) { return int64(len(s.data)), nil }
func (s *memStorage) Sync() error          { return nil }
func (s *memStorage) Close() error         { return nil }
