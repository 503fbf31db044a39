package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ziparchive/internal/testutil"
)

func newSink(t *testing.T, opts ...FileSinkOption) (*FileSink, string) {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "out")
	s, err := NewFileSink(dest, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dest
}

func writeEntry(t *testing.T, s Sink, entry *Entry, content string) {
	t.Helper()
	c, err := s.Writer(entry)
	require.NoError(t, err)
	_, err = c.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, c.Commit())
}

func TestFileSinkCommit(t *testing.T) {
	t.Parallel()

	s, dest := newSink(t)
	writeEntry(t, s, &Entry{Name: "a/b/c.txt"}, "hello")

	got, err := os.ReadFile(filepath.Join(dest, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	entries, err := os.ReadDir(filepath.Join(dest, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileSinkDiscard(t *testing.T) {
	t.Parallel()

	for _, direct := range []bool{false, true} {
		s, dest := newSink(t, WithDirectWrites(direct))
		c, err := s.Writer(&Entry{Name: "x.txt"})
		require.NoError(t, err)
		_, err = c.Write([]byte("partial"))
		require.NoError(t, err)
		require.NoError(t, c.Discard())

		entries, err := os.ReadDir(dest)
		require.NoError(t, err)
		assert.Empty(t, entries, "direct=%v", direct)
	}
}

func TestFileSinkRejectsTraversal(t *testing.T) {
	t.Parallel()

	s, _ := newSink(t)
	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/abs.txt", "./", "a//b"} {
		_, err := s.Writer(&Entry{Name: name})
		require.ErrorIs(t, err, fs.ErrInvalid, name)

		var pathErr *fs.PathError
		require.ErrorAs(t, err, &pathErr, name)
	}
	err := s.MakeDir(&Entry{Name: "../up/"})
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestFileSinkShouldProcess(t *testing.T) {
	t.Parallel()

	s, dest := newSink(t)
	require.NoError(t, os.WriteFile(filepath.Join(dest, "exists.txt"), []byte("old"), 0o600))

	ok, err := s.ShouldProcess(&Entry{Name: "exists.txt"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ShouldProcess(&Entry{Name: "new.txt"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ShouldProcess(&Entry{Name: "d/"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.ShouldProcess(&Entry{Name: "../x"})
	require.ErrorIs(t, err, fs.ErrInvalid)

	over, overDest := newSink(t, WithOverwrite(true))
	require.NoError(t, os.WriteFile(filepath.Join(overDest, "exists.txt"), []byte("old"), 0o600))
	ok, err = over.ShouldProcess(&Entry{Name: "exists.txt"})
	require.NoError(t, err)
	assert.True(t, ok)
	writeEntry(t, over, &Entry{Name: "exists.txt"}, "new")
	got, err := os.ReadFile(filepath.Join(overDest, "exists.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestFileSinkMetadata(t *testing.T) {
	t.Parallel()

	mod := time.Date(2020, time.June, 1, 12, 0, 0, 0, time.UTC)
	s, dest := newSink(t, WithPreserveMode(true), WithPreserveTimes(true))
	writeEntry(t, s, &Entry{Name: "exec.sh", Mode: 0o750, Modified: mod}, "#!/bin/sh\n")
	require.NoError(t, s.MakeDir(&Entry{Name: "dir/", Mode: 0o700 | fs.ModeDir, Modified: mod}))

	info, err := os.Stat(filepath.Join(dest, "exec.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o750), info.Mode().Perm())
	assert.True(t, mod.Equal(info.ModTime()))

	info, err = os.Stat(filepath.Join(dest, "dir"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, fs.FileMode(0o700), info.Mode().Perm())
}

func TestFileSinkDefaultMode(t *testing.T) {
	t.Parallel()

	want := testutil.CreateMode(t)
	for _, direct := range []bool{false, true} {
		s, dest := newSink(t, WithDirectWrites(direct))
		writeEntry(t, s, &Entry{Name: "plain.txt"}, "plain")
		writeEntry(t, s, &Entry{Name: "private.txt", Mode: 0o600}, "private")

		for _, name := range []string{"plain.txt", "private.txt"} {
			info, err := os.Stat(filepath.Join(dest, name))
			require.NoError(t, err)
			assert.Equal(t, want, info.Mode().Perm(), "direct=%v %s", direct, name)
		}
	}
}

func TestCreateFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dest.bin")

	c, err := CreateFile(path)
	require.NoError(t, err)
	_, err = c.Write([]byte("payload"))
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.ErrorIs(t, err, fs.ErrNotExist, "destination visible before commit")
	require.NoError(t, c.Commit())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	c, err = CreateFile(filepath.Join(dir, "gone.bin"))
	require.NoError(t, err)
	require.NoError(t, c.Discard())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStats(t *testing.T) {
	t.Parallel()

	var st Stats
	st.AddFile(10)
	st.AddFile(5)
	st.Dirs++
	assert.Equal(t, 3, st.Processed())
	assert.Equal(t, uint64(15), st.TotalBytes)
}
