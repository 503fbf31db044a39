package directory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"math"
	"unicode/utf8"

	"github.com/meigma/ziparchive/internal/sizing"
	"github.com/meigma/ziparchive/internal/zipfmt"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Record is an alias for ziptype.Record.
type Record = ziptype.Record

// MaxEntries is the largest entry count representable without ZIP64.
const MaxEntries = math.MaxUint16 - 1

// ErrCorrupt is returned by Load when the central directory is inconsistent.
var ErrCorrupt = errors.New("directory: corrupt central directory")

// Directory is the ordered table of entry records.
//
// Lookups by position are O(1). Lookups by name return the first record
// with that name; the format permits duplicates.
type Directory struct {
	records       []Record
	byName        map[string]int
	centralOffset uint64
	comment       string
}

// New returns an empty directory for a new archive.
func New() *Directory {
	return &Directory{byName: make(map[string]int)}
}

// Load parses the central directory of an archive of the given size.
//
// Every inconsistency is reported: a missing or malformed end record, a
// central directory that does not parse as exactly the declared number of
// headers, or a record whose local header would start inside the central
// directory.
func Load(r io.ReaderAt, size int64) (*Directory, error) {
	eocd, eocdOffset, err := zipfmt.FindEndOfCentral(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	d := &Directory{
		records:       make([]Record, 0, int(eocd.Entries)),
		byName:        make(map[string]int, int(eocd.Entries)),
		centralOffset: uint64(eocd.CentralOffset),
		comment:       eocd.Comment,
	}

	section := io.NewSectionReader(r, int64(eocd.CentralOffset), int64(eocd.CentralSize))
	counted := &countingReader{r: bufio.NewReader(section)}
	for i := range int(eocd.Entries) {
		h, err := zipfmt.ReadCentralHeader(counted)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrCorrupt, i, err)
		}
		rec := recordFromHeader(&h)
		if err := d.validate(&rec); err != nil {
			return nil, fmt.Errorf("%w: entry %d (%s): %w", ErrCorrupt, i, rec.Name, err)
		}
		d.add(rec)
	}
	if counted.n != uint64(eocd.CentralSize) {
		return nil, fmt.Errorf("%w: central directory size %d, parsed %d bytes", ErrCorrupt, eocd.CentralSize, counted.n)
	}
	if uint64(eocd.CentralOffset)+uint64(eocd.CentralSize) != uint64(eocdOffset) { //nolint:gosec // offsets are non-negative
		return nil, fmt.Errorf("%w: unexpected data between central directory and end record", ErrCorrupt)
	}
	return d, nil
}

// validate checks that a parsed record points at data before the central
// directory.
func (d *Directory) validate(rec *Record) error {
	if rec.Name == "" {
		return errors.New("empty name")
	}
	end, ok := sizing.AddUint64(rec.Offset, zipfmt.LocalHeaderSize)
	if ok {
		end, ok = sizing.AddUint64(end, rec.CompressedSize)
	}
	if !ok || end > d.centralOffset {
		return errors.New("entry data overlaps central directory")
	}
	return nil
}

// Len returns the number of records.
func (d *Directory) Len() int {
	return len(d.records)
}

// At returns the record at position i.
func (d *Directory) At(i int) (Record, bool) {
	if i < 0 || i >= len(d.records) {
		return Record{}, false
	}
	return d.records[i], true
}

// Lookup returns the position of the first record named name.
func (d *Directory) Lookup(name string) (int, bool) {
	i, ok := d.byName[name]
	return i, ok
}

// All returns an iterator over all records in directory order.
func (d *Directory) All() iter.Seq2[int, Record] {
	return func(yield func(int, Record) bool) {
		for i, rec := range d.records {
			if !yield(i, rec) {
				return
			}
		}
	}
}

// CentralOffset returns where the loaded central directory started. New
// entries appended to a loaded archive are written from this offset.
func (d *Directory) CentralOffset() uint64 {
	return d.centralOffset
}

// Comment returns the archive comment.
func (d *Directory) Comment() string {
	return d.comment
}

// SetComment replaces the archive comment.
func (d *Directory) SetComment(comment string) error {
	if len(comment) > math.MaxUint16 {
		return fmt.Errorf("%w: archive comment is %d bytes", ziptype.ErrSizeOverflow, len(comment))
	}
	d.comment = comment
	return nil
}

// Full reports whether another record would exceed the entry limit.
func (d *Directory) Full() bool {
	return len(d.records) >= MaxEntries
}

// Append commits a record. Records are immutable once appended.
func (d *Directory) Append(rec Record) error {
	if d.Full() {
		return fmt.Errorf("%w: more than %d entries", ziptype.ErrSizeOverflow, MaxEntries)
	}
	if rec.Name == "" {
		return errors.New("directory: empty entry name")
	}
	d.add(rec)
	return nil
}

func (d *Directory) add(rec Record) {
	if _, ok := d.byName[rec.Name]; !ok {
		d.byName[rec.Name] = len(d.records)
	}
	d.records = append(d.records, rec)
}

// WriteTo serializes the central directory, starting at archive offset
// offset, followed by the end of central directory record.
// It returns the number of bytes written.
func (d *Directory) WriteTo(w io.Writer, offset uint64) (int64, error) {
	cdOffset, err := sizing.ToUint32(offset, ziptype.ErrSizeOverflow)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	var size uint64
	for i := range d.records {
		h, err := headerFromRecord(&d.records[i])
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", d.records[i].Name, err)
		}
		buf, err := h.MarshalBinary()
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", d.records[i].Name, err)
		}
		if _, err := bw.Write(buf); err != nil {
			return 0, err
		}
		size += uint64(len(buf))
	}

	cdSize, err := sizing.ToUint32(size, ziptype.ErrSizeOverflow)
	if err != nil {
		return 0, err
	}
	if _, ok := sizing.AddUint64(offset, size); !ok || offset+size >= math.MaxUint32 {
		return 0, ziptype.ErrSizeOverflow
	}
	count, err := sizing.ToUint16(len(d.records), ziptype.ErrSizeOverflow)
	if err != nil {
		return 0, err
	}
	eocd := zipfmt.EndOfCentral{
		EntriesOnDisk: count,
		Entries:       count,
		CentralSize:   cdSize,
		CentralOffset: cdOffset,
		Comment:       d.comment,
	}
	tail, err := eocd.MarshalBinary()
	if err != nil {
		return 0, err
	}
	if _, err := bw.Write(tail); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(size) + int64(len(tail)), nil //nolint:gosec // size fits in uint32
}

// recordFromHeader converts a parsed central header to a record.
func recordFromHeader(h *zipfmt.CentralHeader) Record {
	return Record{
		Name:             h.Name,
		Method:           ziptype.Method(h.Method),
		Flags:            h.Flags,
		CRC32:            h.CRC32,
		CompressedSize:   uint64(h.CompressedSize),
		UncompressedSize: uint64(h.UncompressedSize),
		Offset:           uint64(h.LocalOffset),
		Modified:         zipfmt.DOSToTime(h.ModDate, h.ModTime),
		Mode:             zipfmt.ExternalToMode(h.VersionMadeBy, h.ExternalAttrs),
		Comment:          h.Comment,
	}
}

// headerFromRecord builds the central header written for a record.
func headerFromRecord(rec *Record) (zipfmt.CentralHeader, error) {
	compressed, err := sizing.ToUint32(rec.CompressedSize, ziptype.ErrSizeOverflow)
	if err != nil {
		return zipfmt.CentralHeader{}, err
	}
	uncompressed, err := sizing.ToUint32(rec.UncompressedSize, ziptype.ErrSizeOverflow)
	if err != nil {
		return zipfmt.CentralHeader{}, err
	}
	offset, err := sizing.ToUint32(rec.Offset, ziptype.ErrSizeOverflow)
	if err != nil {
		return zipfmt.CentralHeader{}, err
	}

	version := zipfmt.VersionNeeded(uint16(rec.Method))
	dosDate, dosTime := zipfmt.TimeToDOS(rec.Modified)
	return zipfmt.CentralHeader{
		VersionMadeBy:    zipfmt.CreatorUnix<<8 | version,
		VersionNeeded:    version,
		Flags:            rec.Flags,
		Method:           uint16(rec.Method),
		ModTime:          dosTime,
		ModDate:          dosDate,
		CRC32:            rec.CRC32,
		CompressedSize:   compressed,
		UncompressedSize: uncompressed,
		ExternalAttrs:    zipfmt.ModeToExternal(DefaultMode(rec)),
		LocalOffset:      offset,
		Name:             rec.Name,
		Comment:          rec.Comment,
	}, nil
}

// DefaultMode returns the record's mode, or a conventional mode when the
// record carries none.
func DefaultMode(rec *Record) fs.FileMode {
	switch {
	case rec.Mode != 0 && rec.IsDir():
		return rec.Mode | fs.ModeDir
	case rec.Mode != 0:
		return rec.Mode
	case rec.IsDir():
		return fs.ModeDir | 0o755
	default:
		return 0o644
	}
}

// NameFlags returns the general purpose flags a name requires: the UTF-8 bit
// is set for valid non-ASCII names.
func NameFlags(name string) uint16 {
	for i := 0; i < len(name); i++ {
		if name[i] >= utf8.RuneSelf {
			if utf8.ValidString(name) {
				return ziptype.FlagUTF8
			}
			return 0
		}
	}
	return 0
}

// countingReader counts bytes consumed from the central directory.
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n) //nolint:gosec // n is non-negative
	return n, err
}
