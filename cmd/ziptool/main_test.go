package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ziparchive"
	"github.com/meigma/ziparchive/internal/testutil"
)

func newTool(method ziparchive.Method) (*tool, *bytes.Buffer) {
	var out bytes.Buffer
	return &tool{out: &out, level: ziparchive.DefaultCompression, method: method}, &out
}

func TestParseEntrySpec(t *testing.T) {
	tests := []struct {
		arg  string
		want entrySpec
	}{
		{"foo-1.txt=a.txt", entrySpec{name: "foo-1.txt", files: []string{"a.txt"}}},
		{"foo-2.txt=a.txt,b.txt,,c.txt", entrySpec{name: "foo-2.txt", files: []string{"a.txt", "b.txt", "c.txt"}}},
		{"dir/file.bin", entrySpec{name: "file.bin", files: []string{"dir/file.bin"}}},
		{"folder/=", entrySpec{name: "folder/"}},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseEntrySpec(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseEntrySpec("=a.txt")
	require.ErrorIs(t, err, errUsage)
}

func TestHarnessFlow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"fixtures/a.txt": "first\n",
		"fixtures/b.txt": "second\n",
		"fixtures/c.txt": "third\n",
		"fixtures/d.txt": "appended\n",
	})
	fx := func(name string) string { return filepath.Join(dir, "fixtures", name) }
	zipPath := filepath.Join(dir, "foo.zip")
	data := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(data, []byte("Some data here..."), 0o644))

	tl, out := newTool(ziparchive.MethodDeflate)
	require.NoError(t, tl.run("create", []string{
		zipPath,
		"foo-1.txt=" + data,
		"foo-2.txt=" + strings.Join([]string{fx("a.txt"), fx("b.txt"), fx("c.txt")}, ","),
	}))
	assert.Equal(t, "Added: foo-1.txt\nAdded: foo-2.txt\n", out.String())

	out.Reset()
	require.NoError(t, tl.run("append", []string{zipPath, "foo-3.txt=" + fx("d.txt")}))

	out.Reset()
	require.NoError(t, tl.run("cat", []string{zipPath, "foo-2.txt"}))
	assert.Equal(t, "first\nsecond\nthird\n", out.String())

	out.Reset()
	dest := filepath.Join(dir, "out")
	require.NoError(t, tl.run("extract", []string{zipPath, dest}))
	assert.Contains(t, out.String(), "Extracted: foo-1.txt (1 of 3)\n")
	assert.Contains(t, out.String(), "Extracted: foo-3.txt (3 of 3)\n")
	got, err := os.ReadFile(filepath.Join(dest, "foo-3.txt"))
	require.NoError(t, err)
	assert.Equal(t, "appended\n", string(got))

	out.Reset()
	freadDest := filepath.Join(dir, "foo-1.copy")
	require.NoError(t, tl.run("fread", []string{zipPath, "foo-1.txt", freadDest}))
	got, err = os.ReadFile(freadDest)
	require.NoError(t, err)
	assert.Equal(t, "Some data here...", string(got))

	out.Reset()
	require.NoError(t, tl.run("list", []string{zipPath}))
	listing := out.String()
	assert.Contains(t, listing, "foo-1.txt")
	assert.Contains(t, listing, "3 entries")
	assert.Contains(t, listing, "digest: sha256:")

	require.ErrorIs(t, tl.run("cat", []string{zipPath, "nope.txt"}), ziparchive.ErrNotFound)
	require.ErrorIs(t, tl.run("bogus", nil), errUsage)
	require.ErrorIs(t, tl.run("list", nil), errUsage)
}

func TestCompressTree(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{
		"top.txt":          "top",
		"empty/":           "",
		"nested/deep/x.go": "package x\n",
	})
	require.NoError(t, os.Symlink("top.txt", filepath.Join(src, "link.txt")))

	// The archive lives inside the tree it compresses.
	zipPath := filepath.Join(src, "self.zip")
	tl, out := newTool(ziparchive.MethodZstd)
	require.NoError(t, tl.run("compress", []string{zipPath, src}))
	assert.Contains(t, out.String(), "Compressed 5 entries")

	a, err := ziparchive.Open(zipPath, ziparchive.DefaultCompression, ziparchive.ModeRead)
	require.NoError(t, err)
	defer a.Close()

	var names []string
	for _, rec := range a.Entries() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{
		"empty/",
		"nested/",
		"nested/deep/",
		"nested/deep/x.go",
		"top.txt",
	}, names)

	require.NoError(t, a.OpenEntry("nested/deep/x.go"))
	data, err := a.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "package x\n", string(data))
	require.NoError(t, a.CloseEntry())

	rec, err := a.Entry(0)
	require.NoError(t, err)
	assert.True(t, rec.IsDir())
	assert.Equal(t, ziparchive.MethodStore, rec.Method)
}

func TestCompressMissingDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tl, _ := newTool(ziparchive.MethodDeflate)
	err := tl.run("compress", []string{filepath.Join(dir, "x.zip"), filepath.Join(dir, "missing")})
	require.Error(t, err)
}
