package ziparchive

import "github.com/meigma/ziparchive/internal/ziptype"

// Sentinel errors re-exported from internal/ziptype.
// Returned errors wrap one of these; match them with errors.Is.
var (
	// ErrOpen is returned when an archive cannot be opened.
	ErrOpen = ziptype.ErrOpen

	// ErrEntryState is returned on entry protocol violations.
	ErrEntryState = ziptype.ErrEntryState

	// ErrNotFound is returned when a named entry does not exist.
	ErrNotFound = ziptype.ErrNotFound

	// ErrRange is returned when an entry index is out of range.
	ErrRange = ziptype.ErrRange

	// ErrDecode is returned when entry content fails verification.
	ErrDecode = ziptype.ErrDecode

	// ErrBufferTooSmall is returned when a caller buffer cannot hold an entry.
	ErrBufferTooSmall = ziptype.ErrBufferTooSmall

	// ErrIO is returned when storage, a source or a destination fails.
	ErrIO = ziptype.ErrIO

	// ErrClosed is returned for operations on a closed archive.
	ErrClosed = ziptype.ErrClosed

	// ErrMode is returned when an operation does not fit the archive mode.
	ErrMode = ziptype.ErrMode

	// ErrUnsupported is returned for encrypted entries and unknown methods.
	ErrUnsupported = ziptype.ErrUnsupported

	// ErrSizeOverflow is returned when a size, offset or entry count does
	// not fit the format without ZIP64.
	ErrSizeOverflow = ziptype.ErrSizeOverflow

	// ErrAborted is returned when an ExtractFunc stops an extraction.
	ErrAborted = ziptype.ErrAborted
)
