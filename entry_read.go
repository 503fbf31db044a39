package ziparchive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/ziparchive/internal/batch"
	"github.com/meigma/ziparchive/internal/checksum"
	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/zipfmt"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// readEntry is the state of an entry open for reading.
type readEntry struct {
	rec        Record
	index      int
	dataOffset int64
}

func (r *readEntry) record() *Record { return &r.rec }

// release drops the entry's transient state. Decoders are returned to the
// pool as soon as each read completes, so nothing is held here.
func (r *readEntry) release() {}

// openRead validates the local header of entry i and makes it current.
func (a *Archive) openRead(i int) error {
	rec, _ := a.dir.At(i)
	if rec.Flags&ziptype.FlagEncrypted != 0 {
		return fmt.Errorf("%w: entry %s is encrypted", ErrUnsupported, rec.Name)
	}
	if !rec.Method.Supported() {
		return fmt.Errorf("%w: entry %s uses compression method %d", ErrUnsupported, rec.Name, rec.Method)
	}

	var buf [zipfmt.LocalHeaderSize]byte
	if _, err := a.st.ReadAt(buf[:], int64(rec.Offset)); err != nil { //nolint:gosec // offset < 4GiB
		return fmt.Errorf("%w: read local header of %s: %w", ErrDecode, rec.Name, err)
	}
	var lh zipfmt.LocalHeader
	if err := lh.DecodeFrom(buf[:]); err != nil {
		return fmt.Errorf("%w: entry %s: %w", ErrDecode, rec.Name, err)
	}
	dataOffset := int64(rec.Offset) + lh.DataOffset() //nolint:gosec // offset < 4GiB
	end, ok := sizing.AddUint64(uint64(dataOffset), rec.CompressedSize)
	if !ok || end > a.dir.CentralOffset() {
		return fmt.Errorf("%w: entry %s data extends past central directory", ErrDecode, rec.Name)
	}

	a.state = &readEntry{rec: rec, index: i, dataOffset: dataOffset}
	a.log().Debug("entry opened for reading", "name", rec.Name, "index", i, "method", rec.Method)
	return nil
}

// ReadAll decodes the open entry into a new buffer.
// It fails with ErrSizeOverflow if the entry is larger than the
// WithMaxEntrySize limit.
func (a *Archive) ReadAll() ([]byte, error) {
	r, err := a.reading()
	if err != nil {
		return nil, err
	}
	if a.maxEntrySize != 0 && r.rec.UncompressedSize > a.maxEntrySize {
		return nil, fmt.Errorf("%w: entry %s is %d bytes, limit %d",
			ErrSizeOverflow, r.rec.Name, r.rec.UncompressedSize, a.maxEntrySize)
	}
	size, err := sizing.ToInt(r.rec.UncompressedSize, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := a.readInto(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto decodes the open entry into buf and returns the entry size.
// It fails with ErrBufferTooSmall if buf is shorter than the entry.
func (a *Archive) ReadInto(buf []byte) (int, error) {
	r, err := a.reading()
	if err != nil {
		return 0, err
	}
	return a.readInto(r, buf)
}

func (a *Archive) readInto(r *readEntry, buf []byte) (int, error) {
	if uint64(len(buf)) < r.rec.UncompressedSize {
		return 0, fmt.Errorf("%w: entry %s needs %d bytes, have %d",
			ErrBufferTooSmall, r.rec.Name, r.rec.UncompressedSize, len(buf))
	}
	// The decoder is limited to the recorded size, so the buffer never grows
	// past buf and shares its memory.
	out := bytes.NewBuffer(buf[:0])
	if err := a.decode(r, out); err != nil {
		return 0, err
	}
	return out.Len(), nil
}

// ReadToFile decodes the open entry into a new file at path.
//
// Content is staged in a temporary file in the same directory and renamed
// to path only after verification succeeds. On a mismatch the temporary
// file is removed and ErrDecode is returned.
func (a *Archive) ReadToFile(path string) error {
	r, err := a.reading()
	if err != nil {
		return err
	}
	c, err := batch.CreateFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return a.decodeCommit(r, c)
}

// decodeCommit decodes into c and commits it, discarding it on failure.
func (a *Archive) decodeCommit(r *readEntry, c batch.Committer) error {
	if err := a.decode(r, c); err != nil {
		_ = c.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := c.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// decode streams the verified content of r into dst.
//
// Decoder failures and length or CRC-32 mismatches wrap ErrDecode.
// Failures writing to dst wrap ErrIO.
func (a *Archive) decode(r *readEntry, dst io.Writer) error {
	rec := &r.rec
	if rec.IsDir() && rec.UncompressedSize == 0 {
		return nil
	}
	size, err := sizing.ToInt64(rec.UncompressedSize, ErrSizeOverflow)
	if err != nil {
		return err
	}
	compressed, err := sizing.ToInt64(rec.CompressedSize, ErrSizeOverflow)
	if err != nil {
		return err
	}

	src := bufio.NewReader(io.NewSectionReader(a.st, r.dataOffset, compressed))
	dec, release, err := a.pool.Get(rec.Method, src)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return err
		}
		return fmt.Errorf("%w: entry %s: %w", ErrDecode, rec.Name, err)
	}
	defer release()

	cr := checksum.NewReader(io.LimitReader(dec, size))
	out := &trackingWriter{w: dst}
	n, err := io.Copy(out, cr)
	if err != nil {
		if out.err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrIO, rec.Name, out.err)
		}
		return fmt.Errorf("%w: entry %s: %w", ErrDecode, rec.Name, err)
	}
	if n != size {
		return fmt.Errorf("%w: entry %s: decoded %d bytes, want %d", ErrDecode, rec.Name, n, size)
	}
	if err := checksum.EnsureNoExtra(dec); err != nil {
		return fmt.Errorf("%w: entry %s: %w", ErrDecode, rec.Name, err)
	}
	if got := cr.Sum32(); got != rec.CRC32 {
		return fmt.Errorf("%w: entry %s: crc32 %08x, want %08x", ErrDecode, rec.Name, got, rec.CRC32)
	}
	return nil
}

// trackingWriter remembers destination errors so they can be told apart
// from decoder errors after io.Copy.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
