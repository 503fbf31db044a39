package ziparchive

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/meigma/ziparchive/internal/codec"
	"github.com/meigma/ziparchive/internal/directory"
)

// Archive is an open ZIP archive session.
//
// An Archive owns its storage handle, its central directory and at most one
// open entry. Use Open or OpenStream to create one and Close to release it.
type Archive struct {
	st    storage
	mem   *memStorage
	path  string
	mode  Mode
	level int
	dir   *directory.Directory
	state entryState

	// pos is the offset where the next local header is written.
	pos uint64

	// err is a sticky storage failure on the write path. Once set, every
	// write operation returns it and Close skips the central directory.
	err    error
	closed bool

	pool             *codec.DecompressPool
	method           Method
	skipCompression  []SkipCompressionFunc
	maxEntrySize     uint64
	maxDecoderMemory uint64
	comment          *string
	now              func() time.Time
	logger           *slog.Logger
}

// log returns the configured logger or a no-op logger if none was set.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens the archive at path in the given mode.
//
// level is DefaultCompression or 0 through 9, where 0 stores entries
// uncompressed. ModeWrite creates or truncates the file. ModeAppend and
// ModeRead require an existing archive with a valid central directory.
// Every failure wraps ErrOpen.
func Open(path string, level int, mode Mode, opts ...Option) (*Archive, error) {
	a, err := newArchive(level, mode, opts)
	if err != nil {
		return nil, err
	}
	st, err := openFileStorage(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	a.path = path
	if err := a.init(st); err != nil {
		_ = st.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	a.log().Info("archive opened", "path", path, "mode", mode, "entries", a.dir.Len())
	return a, nil
}

// OpenStream opens an archive held in memory.
//
// In ModeWrite data is ignored and the archive starts empty. In ModeAppend
// data is copied and extended. In ModeRead data is read in place and must
// not be modified while the archive is open. Bytes returns the archive
// content.
func OpenStream(data []byte, level int, mode Mode, opts ...Option) (*Archive, error) {
	a, err := newArchive(level, mode, opts)
	if err != nil {
		return nil, err
	}
	mem := &memStorage{}
	switch mode {
	case ModeAppend:
		mem.data = append([]byte(nil), data...)
	case ModeRead:
		mem.data = data
	}
	a.mem = mem
	if err := a.init(mem); err != nil {
		return nil, err
	}
	a.log().Info("archive opened", "path", "<memory>", "mode", mode, "entries", a.dir.Len())
	return a, nil
}

func newArchive(level int, mode Mode, opts []Option) (*Archive, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: invalid mode %v", ErrOpen, mode)
	}
	if level < DefaultCompression || level > 9 {
		return nil, fmt.Errorf("%w: invalid compression level %d", ErrOpen, level)
	}
	a := &Archive{
		mode:             mode,
		level:            level,
		state:            idleState{},
		method:           MethodDeflate,
		maxEntrySize:     DefaultMaxEntrySize,
		maxDecoderMemory: codec.DefaultMaxDecoderMemory,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.method.Supported() {
		return nil, fmt.Errorf("%w: %w: method %d", ErrOpen, ErrUnsupported, a.method)
	}
	a.pool = codec.NewDecompressPool(a.maxDecoderMemory)
	return a, nil
}

// init loads or creates the central directory.
func (a *Archive) init(st storage) error {
	a.st = st
	if a.mode == ModeWrite {
		a.dir = directory.New()
	} else {
		size, err := st.Size()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpen, err)
		}
		dir, err := directory.Load(st, size)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpen, err)
		}
		a.dir = dir
		a.pos = dir.CentralOffset()
		a.log().Debug("central directory loaded", "entries", dir.Len(), "offset", dir.CentralOffset())
	}
	if a.comment != nil && a.mode.writable() {
		if err := a.dir.SetComment(*a.comment); err != nil {
			return fmt.Errorf("%w: %w", ErrOpen, err)
		}
	}
	return nil
}

// Close finalizes and releases the archive.
//
// An open write entry is committed first. In ModeWrite and ModeAppend the
// central directory is then written and the storage is truncated to its end.
// The storage handle is always released. Calling Close again returns
// ErrClosed.
func (a *Archive) Close() error {
	if a.closed {
		return ErrClosed
	}
	a.closed = true

	var errs []error
	switch s := a.state.(type) {
	case *writeEntry:
		if err := a.commit(s); err != nil {
			errs = append(errs, err)
		}
	case *readEntry:
		s.release()
	}
	a.state = idleState{}

	if a.mode.writable() {
		if a.err != nil {
			if len(errs) == 0 {
				errs = append(errs, a.err)
			}
		} else if err := a.finish(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.st.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: close storage: %w", ErrIO, err))
	}

	a.log().Info("archive closed", "path", a.path, "mode", a.mode, "entries", a.dir.Len())
	return errors.Join(errs...)
}

// finish writes the central directory at the current position and trims
// anything after it.
func (a *Archive) finish() error {
	n, err := a.dir.WriteTo(io.NewOffsetWriter(a.st, int64(a.pos)), a.pos) //nolint:gosec // pos < 4GiB
	if err != nil {
		if errors.Is(err, ErrSizeOverflow) {
			return err
		}
		return fmt.Errorf("%w: write central directory: %w", ErrIO, err)
	}
	end := int64(a.pos) + n //nolint:gosec // pos < 4GiB
	if err := a.st.Truncate(end); err != nil {
		return fmt.Errorf("%w: truncate: %w", ErrIO, err)
	}
	if err := a.st.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrIO, err)
	}
	a.log().Debug("central directory written", "entries", a.dir.Len(), "offset", a.pos, "size", n)
	return nil
}

// Bytes returns the content of an archive opened with OpenStream.
// The central directory is only present after Close.
// It returns nil for file-backed archives.
func (a *Archive) Bytes() []byte {
	if a.mem == nil {
		return nil
	}
	return a.mem.data
}

// Mode returns the mode the archive was opened in.
func (a *Archive) Mode() Mode {
	return a.mode
}

// Comment returns the archive comment.
func (a *Archive) Comment() string {
	return a.dir.Comment()
}

// EntryCount returns the number of committed entries.
// Directory accessors remain valid after Close.
func (a *Archive) EntryCount() int {
	return a.dir.Len()
}

// Entry returns the record at index i.
func (a *Archive) Entry(i int) (Record, error) {
	rec, ok := a.dir.At(i)
	if !ok {
		return Record{}, fmt.Errorf("%w: index %d, %d entries", ErrRange, i, a.dir.Len())
	}
	return rec, nil
}

// EntryName returns the name of the entry at index i.
func (a *Archive) EntryName(i int) (string, error) {
	rec, err := a.Entry(i)
	return rec.Name, err
}

// EntryIsDir reports whether the entry at index i is a directory.
func (a *Archive) EntryIsDir(i int) (bool, error) {
	rec, err := a.Entry(i)
	return rec.IsDir(), err
}

// EntrySize returns the uncompressed size of the entry at index i.
func (a *Archive) EntrySize(i int) (uint64, error) {
	rec, err := a.Entry(i)
	return rec.UncompressedSize, err
}

// EntryCompressedSize returns the stored size of the entry at index i.
func (a *Archive) EntryCompressedSize(i int) (uint64, error) {
	rec, err := a.Entry(i)
	return rec.CompressedSize, err
}

// EntryCRC32 returns the CRC-32 of the entry at index i.
func (a *Archive) EntryCRC32(i int) (uint32, error) {
	rec, err := a.Entry(i)
	return rec.CRC32, err
}

// Entries returns an iterator over all records in directory order.
func (a *Archive) Entries() iter.Seq2[int, Record] {
	return a.dir.All()
}

// usable returns ErrClosed after Close and the sticky write error if one
// occurred.
func (a *Archive) usable() error {
	if a.closed {
		return ErrClosed
	}
	return a.err
}
