package directory

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io/fs"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ziparchive/internal/zipfmt"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// stdlibArchive builds an archive with archive/zip.
func stdlibArchive(t *testing.T, files map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.SetComment("archive comment"))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadStdlibArchive(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"a.txt":     "alpha",
		"dir/":      "",
		"dir/b.txt": "bravo bravo bravo",
	}
	data := stdlibArchive(t, files, []string{"a.txt", "dir/", "dir/b.txt"})

	d, err := Load(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, 3, d.Len())
	assert.Equal(t, "archive comment", d.Comment())

	rec, ok := d.At(0)
	require.True(t, ok)
	assert.Equal(t, "a.txt", rec.Name)
	assert.Equal(t, uint64(5), rec.UncompressedSize)
	assert.Equal(t, ziptype.MethodDeflate, rec.Method)
	assert.Equal(t, uint64(0), rec.Offset)

	rec, ok = d.At(1)
	require.True(t, ok)
	assert.True(t, rec.IsDir())

	i, ok := d.Lookup("dir/b.txt")
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = d.Lookup("missing")
	assert.False(t, ok)
	_, ok = d.At(3)
	assert.False(t, ok)
	_, ok = d.At(-1)
	assert.False(t, ok)

	assert.Less(t, uint64(0), d.CentralOffset())
	assert.Less(t, d.CentralOffset(), uint64(len(data)))
}

func TestWriteToRoundTrip(t *testing.T) {
	t.Parallel()

	mod := time.Date(2024, time.March, 9, 14, 30, 12, 0, time.UTC)
	d := New()
	require.NoError(t, d.SetComment("hello"))
	require.NoError(t, d.Append(Record{
		Name:             "one.txt",
		Method:           ziptype.MethodDeflate,
		CRC32:            0xdeadbeef,
		CompressedSize:   12,
		UncompressedSize: 40,
		Offset:           0,
		Modified:         mod,
		Mode:             0o600,
	}))
	require.NoError(t, d.Append(Record{
		Name:     "sub/",
		Method:   ziptype.MethodStore,
		Offset:   49,
		Modified: mod,
	}))

	const dataEnd = 200
	var buf bytes.Buffer
	buf.Write(make([]byte, dataEnd))
	n, err := d.WriteTo(&buf, dataEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()-dataEnd), n)

	loaded, err := Load(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, uint64(dataEnd), loaded.CentralOffset())
	assert.Equal(t, "hello", loaded.Comment())

	rec, _ := loaded.At(0)
	assert.Equal(t, "one.txt", rec.Name)
	assert.Equal(t, uint32(0xdeadbeef), rec.CRC32)
	assert.Equal(t, uint64(12), rec.CompressedSize)
	assert.Equal(t, uint64(40), rec.UncompressedSize)
	assert.True(t, mod.Equal(rec.Modified), "modified %v", rec.Modified)
	assert.Equal(t, fs.FileMode(0o600), rec.Mode)

	rec, _ = loaded.At(1)
	assert.True(t, rec.IsDir())
	assert.Equal(t, fs.ModeDir|0o755, rec.Mode)
	assert.Equal(t, uint64(49), rec.Offset)
}

func TestWriteToReadableByStdlib(t *testing.T) {
	t.Parallel()

	d := New()
	require.NoError(t, d.Append(Record{Name: "empty/", Method: ziptype.MethodStore}))

	var buf bytes.Buffer
	// One stored empty directory: local header + name, then the directory.
	lh := zipfmt.LocalHeader{VersionNeeded: zipfmt.VersionDefault, Name: "empty/"}
	hdr, err := lh.MarshalBinary()
	require.NoError(t, err)
	buf.Write(hdr)
	_, err = d.WriteTo(&buf, uint64(len(hdr)))
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "empty/", zr.File[0].Name)
	assert.True(t, zr.File[0].FileInfo().IsDir())
}

func TestLookupReturnsFirstDuplicate(t *testing.T) {
	t.Parallel()

	d := New()
	require.NoError(t, d.Append(Record{Name: "dup"}))
	require.NoError(t, d.Append(Record{Name: "other"}))
	require.NoError(t, d.Append(Record{Name: "dup"}))

	i, ok := d.Lookup("dup")
	require.True(t, ok)
	assert.Equal(t, 0, i)

	var names []string
	for _, rec := range d.All() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"dup", "other", "dup"}, names)
}

func TestAllStopsEarly(t *testing.T) {
	t.Parallel()

	d := New()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, d.Append(Record{Name: name}))
	}
	count := 0
	for range d.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestAppendRejectsEmptyName(t *testing.T) {
	t.Parallel()

	d := New()
	require.Error(t, d.Append(Record{}))
	assert.Equal(t, 0, d.Len())
}

func TestAppendEntryLimit(t *testing.T) {
	t.Parallel()

	d := New()
	d.records = make([]Record, MaxEntries)
	assert.True(t, d.Full())
	err := d.Append(Record{Name: "x"})
	require.ErrorIs(t, err, ziptype.ErrSizeOverflow)
}

func TestWriteToRejectsOverflow(t *testing.T) {
	t.Parallel()

	d := New()
	require.NoError(t, d.Append(Record{Name: "big", CompressedSize: math.MaxUint32}))
	_, err := d.WriteTo(&bytes.Buffer{}, 0)
	require.ErrorIs(t, err, ziptype.ErrSizeOverflow)

	d = New()
	_, err = d.WriteTo(&bytes.Buffer{}, math.MaxUint32)
	require.ErrorIs(t, err, ziptype.ErrSizeOverflow)
}

func TestSetCommentTooLong(t *testing.T) {
	t.Parallel()

	d := New()
	err := d.SetComment(string(make([]byte, math.MaxUint16+1)))
	require.ErrorIs(t, err, ziptype.ErrSizeOverflow)
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	valid := stdlibArchive(t, map[string]string{"a.txt": "alpha", "b.txt": "bravo"}, []string{"a.txt", "b.txt"})
	eocd := bytes.LastIndex(valid, []byte("PK\x05\x06"))
	require.Positive(t, eocd)
	cd := int(binary.LittleEndian.Uint32(valid[eocd+16:]))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{
			name:   "empty",
			mutate: func([]byte) []byte { return nil },
		},
		{
			name:   "truncated tail",
			mutate: func(b []byte) []byte { return b[:len(b)-5] },
		},
		{
			name: "bad central signature",
			mutate: func(b []byte) []byte {
				b[cd] = 'X'
				return b
			},
		},
		{
			name: "entry count too high",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[eocd+8:], 3)
				binary.LittleEndian.PutUint16(b[eocd+10:], 3)
				return b
			},
		},
		{
			name: "entry count too low",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[eocd+8:], 1)
				binary.LittleEndian.PutUint16(b[eocd+10:], 1)
				return b
			},
		},
		{
			name: "local offset past central directory",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[cd+42:], uint32(cd))
				return b
			},
		},
		{
			name: "zip64 sentinel",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[cd+24:], math.MaxUint32)
				return b
			},
		},
		{
			name: "multi disk",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[eocd+4:], 1)
				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := tt.mutate(bytes.Clone(valid))
			_, err := Load(bytes.NewReader(data), int64(len(data)))
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestNameFlags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0), NameFlags("plain.txt"))
	assert.Equal(t, ziptype.FlagUTF8, NameFlags("résumé.txt"))
	assert.Equal(t, uint16(0), NameFlags("bad\xff.txt"))
}

func TestDefaultMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, fs.FileMode(0o644), DefaultMode(&Record{Name: "f"}))
	assert.Equal(t, fs.ModeDir|0o755, DefaultMode(&Record{Name: "d/"}))
	assert.Equal(t, fs.FileMode(0o600), DefaultMode(&Record{Name: "f", Mode: 0o600}))
	assert.Equal(t, fs.ModeDir|0o700, DefaultMode(&Record{Name: "d/", Mode: 0o700}))
}
