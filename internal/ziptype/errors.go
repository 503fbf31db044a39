package ziptype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrOpen is returned when an archive cannot be opened: the file is
	// missing or unwritable, or its central directory is corrupt.
	ErrOpen = errors.New("zip: cannot open archive")

	// ErrEntryState is returned on entry protocol violations such as opening
	// an entry while another is open or closing when none is open.
	ErrEntryState = errors.New("zip: invalid entry state")

	// ErrNotFound is returned when a named entry is not in the directory.
	ErrNotFound = errors.New("zip: entry not found")

	// ErrRange is returned when an entry index is out of range.
	ErrRange = errors.New("zip: entry index out of range")

	// ErrDecode is returned when entry content fails its length or CRC-32 check
	// or cannot be decompressed.
	ErrDecode = errors.New("zip: entry content corrupt")

	// ErrBufferTooSmall is returned when a caller buffer cannot hold an entry.
	ErrBufferTooSmall = errors.New("zip: buffer too small")

	// ErrIO is returned when the underlying storage or a source fails.
	ErrIO = errors.New("zip: i/o failure")

	// ErrClosed is returned for any operation on a closed archive.
	ErrClosed = errors.New("zip: archive closed")

	// ErrMode is returned when an operation is not valid for the archive mode.
	ErrMode = errors.New("zip: operation not permitted in this mode")

	// ErrUnsupported is returned for encrypted entries and unknown methods.
	ErrUnsupported = errors.New("zip: unsupported feature")

	// ErrSizeOverflow is returned when a size, offset or entry count exceeds
	// what the format can record without ZIP64.
	ErrSizeOverflow = errors.New("zip: size overflow")

	// ErrAborted is returned when an extraction callback stops a bulk extract.
	ErrAborted = errors.New("zip: extraction aborted")
)
