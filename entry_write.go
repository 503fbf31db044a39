package ziparchive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/meigma/ziparchive/internal/checksum"
	"github.com/meigma/ziparchive/internal/codec"
	"github.com/meigma/ziparchive/internal/directory"
	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/zipfmt"
)

const writeBufferSize = 64 << 10

// writeEntry is the state of an entry open for writing.
//
// Content is hashed, then encoded, then buffered onto the storage at the
// entry's data offset. The local header is written first with zero CRC
// and sizes and patched in place on commit.
type writeEntry struct {
	rec       Record
	headerLen uint64
	crc       checksum.CRC32
	enc       *codec.Encoder
	buf       *bufio.Writer

	// sourced is set once WriteFile has recorded file metadata.
	sourced bool
}

func (w *writeEntry) record() *Record { return &w.rec }

// snapshot returns the record with the CRC-32 and sizes so far.
func (w *writeEntry) snapshot() Record {
	rec := w.rec
	rec.CRC32 = w.crc.Sum32()
	rec.UncompressedSize = w.crc.Len()
	rec.CompressedSize = w.enc.Stored()
	return rec
}

// openWrite writes the local header of a new entry and makes it current.
func (a *Archive) openWrite(name string) error {
	norm, err := NormalizeName(name)
	if err != nil {
		return err
	}
	if a.dir.Full() {
		return fmt.Errorf("%w: more than %d entries", ErrSizeOverflow, directory.MaxEntries)
	}

	w := &writeEntry{
		rec: Record{
			Name:     norm,
			Method:   a.selectMethod(norm),
			Flags:    directory.NameFlags(norm),
			Offset:   a.pos,
			Modified: a.now(),
		},
	}
	if w.rec.IsDir() {
		w.rec.Mode = 0o755
	}

	lh := zipfmt.LocalHeader{
		VersionNeeded: zipfmt.VersionNeeded(uint16(w.rec.Method)),
		Flags:         w.rec.Flags,
		Method:        uint16(w.rec.Method),
		Name:          w.rec.Name,
	}
	header, err := lh.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSizeOverflow, err)
	}
	w.headerLen = uint64(len(header))
	if _, ok := sizing.AddUint64(a.pos, w.headerLen); !ok || a.pos+w.headerLen >= math.MaxUint32 {
		return fmt.Errorf("%w: archive exceeds 4GiB", ErrSizeOverflow)
	}

	w.buf = bufio.NewWriterSize(io.NewOffsetWriter(a.st, int64(a.pos)), writeBufferSize) //nolint:gosec // pos < 4GiB
	if _, err := w.buf.Write(header); err != nil {
		return a.fail(fmt.Errorf("write local header: %w", err))
	}
	enc, err := codec.NewEncoder(w.rec.Method, a.level, w.buf)
	if err != nil {
		return err
	}
	w.enc = enc

	a.state = w
	a.log().Debug("entry opened for writing", "name", norm, "method", w.rec.Method, "offset", w.rec.Offset)
	return nil
}

// selectMethod picks the method for a new entry.
func (a *Archive) selectMethod(name string) Method {
	rec := Record{Name: name}
	switch {
	case a.level == 0, rec.IsDir():
		return MethodStore
	case codec.ShouldSkip(name, a.skipCompression):
		return MethodStore
	default:
		return a.method
	}
}

// Write appends p to the open entry. Successive writes form one continuous
// stream with one CRC-32.
func (a *Archive) Write(p []byte) (int, error) {
	w, err := a.writing()
	if err != nil {
		return 0, err
	}
	return a.write(w, p)
}

func (a *Archive) write(w *writeEntry, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.rec.IsDir() {
		return 0, fmt.Errorf("%w: cannot write content to directory entry %s", ErrEntryState, w.rec.Name)
	}
	if w.crc.Len()+uint64(len(p)) >= math.MaxUint32 {
		return 0, fmt.Errorf("%w: entry %s exceeds 4GiB", ErrSizeOverflow, w.rec.Name)
	}
	n, err := w.enc.Write(p)
	w.crc.Update(p[:n])
	if err != nil {
		return n, a.fail(fmt.Errorf("compress %s: %w", w.rec.Name, err))
	}
	return n, nil
}

// WriteFrom copies r into the open entry until EOF.
// A read failure wraps ErrIO.
func (a *Archive) WriteFrom(r io.Reader) (int64, error) {
	w, err := a.writing()
	if err != nil {
		return 0, err
	}
	return a.writeFrom(w, r)
}

func (a *Archive) writeFrom(w *writeEntry, r io.Reader) (int64, error) {
	buf := make([]byte, 32<<10)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written, err := a.write(w, buf[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("%w: read source: %w", ErrIO, rerr)
		}
	}
}

// WriteFile copies the file at path into the open entry.
// The first WriteFile on an entry also records the file's permission bits
// and modification time.
func (a *Archive) WriteFile(path string) error {
	w, err := a.writing()
	if err != nil {
		return err
	}
	if w.rec.IsDir() {
		return fmt.Errorf("%w: cannot write content to directory entry %s", ErrEntryState, w.rec.Name)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	if !w.sourced {
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		w.rec.Mode = info.Mode().Perm()
		w.rec.Modified = info.ModTime()
		w.sourced = true
	}
	_, err = a.writeFrom(w, f)
	return err
}

// commit finalizes a write entry and appends its record to the directory.
//
// Storage failures are sticky. A size overflow drops the entry: the next
// entry or the central directory is written over it.
func (a *Archive) commit(w *writeEntry) error {
	if err := w.enc.Close(); err != nil {
		return a.fail(fmt.Errorf("finish %s: %w", w.rec.Name, err))
	}
	if err := w.buf.Flush(); err != nil {
		return a.fail(fmt.Errorf("flush %s: %w", w.rec.Name, err))
	}

	rec := w.snapshot()
	crc := rec.CRC32
	compressed, err := sizing.ToUint32(rec.CompressedSize, ErrSizeOverflow)
	if err != nil {
		return fmt.Errorf("entry %s: %w", rec.Name, err)
	}
	uncompressed, err := sizing.ToUint32(rec.UncompressedSize, ErrSizeOverflow)
	if err != nil {
		return fmt.Errorf("entry %s: %w", rec.Name, err)
	}
	end := rec.Offset + w.headerLen + rec.CompressedSize
	if end >= math.MaxUint32 {
		return fmt.Errorf("%w: archive exceeds 4GiB at entry %s", ErrSizeOverflow, rec.Name)
	}

	dosDate, dosTime := zipfmt.TimeToDOS(rec.Modified)
	var patch [zipfmt.LocalPatchSize]byte
	zipfmt.EncodeLocalPatch(patch[:], dosTime, dosDate, crc, compressed, uncompressed)
	if _, err := a.st.WriteAt(patch[:], int64(rec.Offset)+zipfmt.LocalPatchOffset); err != nil { //nolint:gosec // offset < 4GiB
		return a.fail(fmt.Errorf("patch local header of %s: %w", rec.Name, err))
	}

	if err := a.dir.Append(rec); err != nil {
		return fmt.Errorf("entry %s: %w", rec.Name, err)
	}
	a.pos = end
	a.log().Debug("entry committed",
		"name", rec.Name,
		"method", rec.Method,
		"size", rec.UncompressedSize,
		"compressed", rec.CompressedSize,
		"crc32", rec.CRC32)
	return nil
}

// fail records a sticky storage failure and returns it wrapped in ErrIO.
func (a *Archive) fail(err error) error {
	a.err = fmt.Errorf("%w: %w", ErrIO, err)
	return a.err
}
