package ziparchive

import (
	"fmt"
	"io/fs"
	"time"
)

// entryState is the open-entry variant of a session: idleState, *writeEntry
// or *readEntry.
type entryState interface {
	record() *Record
}

// idleState means no entry is open.
type idleState struct{}

func (idleState) record() *Record { return nil }

// OpenEntry opens the entry named name.
//
// In ModeWrite and ModeAppend it starts a new entry. A name ending in "/"
// starts a directory entry, which holds no content. In ModeRead it selects
// the first entry with that name and fails with ErrNotFound if there is
// none. It fails with ErrEntryState if an entry is already open.
func (a *Archive) OpenEntry(name string) error {
	if err := a.idle(); err != nil {
		return err
	}
	if a.mode.writable() {
		return a.openWrite(name)
	}

	i, ok := a.dir.Lookup(name)
	if !ok {
		if norm, err := NormalizeName(name); err == nil {
			i, ok = a.dir.Lookup(norm)
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return a.openRead(i)
}

// OpenEntryByIndex opens the entry at index i for reading.
// It requires ModeRead and 0 <= i < EntryCount.
func (a *Archive) OpenEntryByIndex(i int) error {
	if err := a.idle(); err != nil {
		return err
	}
	if a.mode != ModeRead {
		return fmt.Errorf("%w: open entry by index in %v mode", ErrMode, a.mode)
	}
	if i < 0 || i >= a.dir.Len() {
		return fmt.Errorf("%w: index %d, %d entries", ErrRange, i, a.dir.Len())
	}
	return a.openRead(i)
}

// CloseEntry closes the open entry.
//
// A write entry is finalized: the compressor is flushed, the local header
// is patched with the final CRC-32 and sizes, and the record is committed to
// the central directory. A read entry is released.
func (a *Archive) CloseEntry() error {
	if a.closed {
		return ErrClosed
	}
	switch s := a.state.(type) {
	case *writeEntry:
		a.state = idleState{}
		return a.commit(s)
	case *readEntry:
		a.state = idleState{}
		s.release()
		return nil
	default:
		return fmt.Errorf("%w: no entry is open", ErrEntryState)
	}
}

// AbortEntry discards the open write entry without committing it. The
// next entry, or the central directory, is written over its bytes.
func (a *Archive) AbortEntry() error {
	if a.closed {
		return ErrClosed
	}
	w, ok := a.state.(*writeEntry)
	if !ok {
		return fmt.Errorf("%w: no entry is open for writing", ErrEntryState)
	}
	a.state = idleState{}
	_ = w.enc.Close() //nolint:errcheck // content is discarded
	a.log().Debug("entry aborted", "name", w.rec.Name)
	return nil
}

// Current returns the record of the open entry. For a write entry the CRC-32
// and sizes reflect the content written so far.
func (a *Archive) Current() (Record, bool) {
	switch s := a.state.(type) {
	case *writeEntry:
		return s.snapshot(), true
	case *readEntry:
		return s.rec, true
	default:
		return Record{}, false
	}
}

// Size returns the uncompressed size of the open entry: the recorded size
// for a read entry, the bytes written so far for a write entry.
func (a *Archive) Size() (uint64, error) {
	rec, ok := a.Current()
	if !ok {
		return 0, fmt.Errorf("%w: no entry is open", ErrEntryState)
	}
	return rec.UncompressedSize, nil
}

// SetEntryModified sets the modification time of the open write entry.
// The time is written to the local header when the entry is closed.
func (a *Archive) SetEntryModified(t time.Time) error {
	w, err := a.writing()
	if err != nil {
		return err
	}
	w.rec.Modified = t
	return nil
}

// SetEntryMode sets the permission bits of the open write entry.
func (a *Archive) SetEntryMode(mode fs.FileMode) error {
	w, err := a.writing()
	if err != nil {
		return err
	}
	w.rec.Mode = mode.Perm()
	return nil
}

// idle checks that the archive is open, healthy and has no open entry.
func (a *Archive) idle() error {
	if err := a.usable(); err != nil {
		return err
	}
	if rec := a.state.record(); rec != nil {
		return fmt.Errorf("%w: entry %s is already open", ErrEntryState, rec.Name)
	}
	return nil
}

// writing returns the open write entry.
func (a *Archive) writing() (*writeEntry, error) {
	if err := a.usable(); err != nil {
		return nil, err
	}
	w, ok := a.state.(*writeEntry)
	if !ok {
		return nil, fmt.Errorf("%w: no entry is open for writing", ErrEntryState)
	}
	return w, nil
}

// reading returns the open read entry.
func (a *Archive) reading() (*readEntry, error) {
	if a.closed {
		return nil, ErrClosed
	}
	r, ok := a.state.(*readEntry)
	if !ok {
		return nil, fmt.Errorf("%w: no entry is open for reading", ErrEntryState)
	}
	return r, nil
}
