// Package testutil holds fixtures shared by the archive tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ErrInjected is the error returned by the failing readers and writers.
var ErrInjected = errors.New("testutil: injected failure")

// File is one entry of a fixture archive.
type File struct {
	Name    string
	Content []byte
	Store   bool
}

// CreateMode returns the permission bits os.Create gives a new file under
// the current process umask.
func CreateMode(t testing.TB) fs.FileMode {
	t.Helper()
	path := filepath.Join(t.TempDir(), "umask-reference")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Mode().Perm()
}

// WriteTree creates files below dir. Names use forward slashes; names
// ending in "/" create empty directories.
func WriteTree(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// CompressibleBytes returns n bytes of repetitive text.
func CompressibleBytes(n int) []byte {
	const pattern = "the quick brown fox jumps over the lazy dog. "
	return bytes.Repeat([]byte(pattern), n/len(pattern)+1)[:n]
}

// RandomBytes returns n pseudo-random bytes from a fixed seed.
func RandomBytes(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

// StdlibArchive builds an archive with archive/zip.
func StdlibArchive(t testing.TB, files []File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Store || strings.HasSuffix(f.Name, "/") {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		require.NoError(t, err)
		if len(f.Content) > 0 {
			_, err = w.Write(f.Content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ReadStdlibArchive reads every entry of data with archive/zip, which
// verifies each CRC-32.
func ReadStdlibArchive(t testing.TB, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err, f.Name)
		require.NoError(t, rc.Close())
		out[f.Name] = content
	}
	return out
}

// FailingReader returns data and then ErrInjected instead of io.EOF.
type FailingReader struct {
	Data []byte
}

// Read implements io.Reader.
func (r *FailingReader) Read(p []byte) (int, error) {
	if len(r.Data) == 0 {
		return 0, ErrInjected
	}
	n := copy(p, r.Data)
	r.Data = r.Data[n:]
	return n, nil
}

// FlipByte returns a copy of data with the byte at off inverted.
func FlipByte(data []byte, off int) []byte {
	out := bytes.Clone(data)
	out[off] ^= 0xff
	return out
}
