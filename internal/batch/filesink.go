package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const tempPrefix = ".ziparchive-"

// fileMode is the creation mode of extracted files. The process umask
// applies to it.
const fileMode = 0o666

// FileSink writes entries below a destination directory.
//
// All paths are resolved inside an os.Root opened on the destination, so an
// entry name can never reach outside it. By default, files are written to a
// temporary file in the same directory and renamed to the final path on
// Commit, which keeps partially written files from appearing at the final
// path.
type FileSink struct {
	destDir       string
	root          *os.Root
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	directWrite   bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithPreserveMode applies the permission bits recorded in the archive.
// By default, files are created with mode 0666 less the process umask, as
// os.Create does.
func WithPreserveMode(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveMode = preserve
	}
}

// WithPreserveTimes applies the modification time recorded in the archive.
func WithPreserveTimes(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveTimes = preserve
	}
}

// WithDirectWrites disables temp files and writes directly to the final path.
func WithDirectWrites(enabled bool) FileSinkOption {
	return func(s *FileSink) {
		s.directWrite = enabled
	}
}

// NewFileSink creates destDir if needed and returns a FileSink rooted there.
// The caller must Close the sink.
func NewFileSink(destDir string, opts ...FileSinkOption) (*FileSink, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", destDir, err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", destDir, err)
	}
	s := &FileSink{
		destDir: destDir,
		root:    root,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the destination root.
func (s *FileSink) Close() error {
	return s.root.Close()
}

// ShouldProcess returns false if the file already exists and overwrite is
// disabled. Directory entries are always processed.
func (s *FileSink) ShouldProcess(entry *Entry) (bool, error) {
	rel, err := relPath(entry)
	if err != nil {
		return false, err
	}
	if s.overwrite || entry.IsDir() {
		return true, nil
	}
	_, err = s.root.Lstat(rel)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	default:
		return false, err
	}
}

// MakeDir creates the directory for a directory entry and its parents.
func (s *FileSink) MakeDir(entry *Entry) error {
	rel, err := relPath(entry)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	if err := s.root.MkdirAll(rel, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", s.destPath(rel), err)
	}
	return applyMetadata(s.root, rel, entry, s.preserveMode, s.preserveTimes)
}

// Writer returns a Committer for a file entry.
func (s *FileSink) Writer(entry *Entry) (Committer, error) {
	rel, err := relPath(entry)
	if err != nil {
		return nil, err
	}
	if rel == "." {
		return nil, &fs.PathError{Op: "extract", Path: entry.Name, Err: fs.ErrInvalid}
	}
	if err := s.root.MkdirAll(filepath.Dir(rel), 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", s.destPath(filepath.Dir(rel)), err)
	}

	meta := metadata{
		mode:          entry.Mode.Perm(),
		modified:      entry.Modified,
		preserveMode:  s.preserveMode,
		preserveTimes: s.preserveTimes,
	}
	if s.directWrite {
		file, err := s.root.OpenFile(rel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
		if err != nil {
			return nil, fmt.Errorf("create file %s: %w", s.destPath(rel), err)
		}
		return &directCommitter{root: s.root, destRel: rel, file: file, meta: meta}, nil
	}
	return newFileCommitter(s.root, rel, meta, false)
}

func (s *FileSink) destPath(rel string) string {
	return filepath.Join(s.destDir, rel)
}

// CreateFile returns a Committer that stages content in a temp file next to
// path and renames it to path on Commit.
func CreateFile(path string) (Committer, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if base == "" {
		return nil, &fs.PathError{Op: "create", Path: path, Err: fs.ErrInvalid}
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", dir, err)
	}
	c, err := newFileCommitter(root, base, metadata{}, true)
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	return c, nil
}

// relPath converts an entry name to a path relative to the destination.
// Names that are absolute or contain ".." elements are rejected.
func relPath(entry *Entry) (string, error) {
	name := strings.TrimSuffix(entry.Name, "/")
	if name == "" && entry.IsDir() {
		return ".", nil
	}
	if !fs.ValidPath(name) || name == "." {
		return "", &fs.PathError{Op: "extract", Path: entry.Name, Err: fs.ErrInvalid}
	}
	return filepath.FromSlash(name), nil
}

type metadata struct {
	mode          fs.FileMode
	modified      time.Time
	preserveMode  bool
	preserveTimes bool
}

func applyMetadata(root *os.Root, rel string, entry *Entry, preserveMode, preserveTimes bool) error {
	return metadata{
		mode:          entry.Mode.Perm(),
		modified:      entry.Modified,
		preserveMode:  preserveMode,
		preserveTimes: preserveTimes,
	}.apply(root, rel)
}

func (m metadata) apply(root *os.Root, rel string) error {
	if m.preserveMode && m.mode != 0 {
		if err := root.Chmod(rel, m.mode); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}
	if m.preserveTimes && !m.modified.IsZero() {
		if err := root.Chtimes(rel, m.modified, m.modified); err != nil {
			return fmt.Errorf("chtimes: %w", err)
		}
	}
	return nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	root     *os.Root
	ownsRoot bool
	destRel  string
	tempFile *os.File
	tempRel  string
	meta     metadata
}

func newFileCommitter(root *os.Root, destRel string, meta metadata, ownsRoot bool) (*fileCommitter, error) {
	tempFile, tempRel, err := createTempFile(root, filepath.Dir(destRel), tempPrefix)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &fileCommitter{
		root:     root,
		ownsRoot: ownsRoot,
		destRel:  destRel,
		tempFile: tempFile,
		tempRel:  tempRel,
		meta:     meta,
	}, nil
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file, applies metadata, and renames to final path.
func (c *fileCommitter) Commit() error {
	defer c.release()

	if err := c.tempFile.Close(); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.meta.apply(c.root, c.tempRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destRel, err)
	}
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	defer c.release()
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return c.root.Remove(c.tempRel)
}

func (c *fileCommitter) release() {
	if c.ownsRoot {
		_ = c.root.Close() //nolint:errcheck // best-effort cleanup
	}
}

// directCommitter writes directly to the final path.
type directCommitter struct {
	root    *os.Root
	destRel string
	file    *os.File
	meta    metadata
}

// Write implements io.Writer.
func (c *directCommitter) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Commit closes the file and applies metadata.
func (c *directCommitter) Commit() error {
	if err := c.file.Close(); err != nil {
		_ = c.root.Remove(c.destRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close file: %w", err)
	}
	if err := c.meta.apply(c.root, c.destRel); err != nil {
		_ = c.root.Remove(c.destRel) //nolint:errcheck // best-effort cleanup
		return err
	}
	return nil
}

// Discard closes and removes the file.
func (c *directCommitter) Discard() error {
	_ = c.file.Close() //nolint:errcheck // best-effort cleanup
	return c.root.Remove(c.destRel)
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fileMode)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
