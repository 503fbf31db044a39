package ziptype

import (
	"io/fs"
	"time"
)

// General purpose flag bits the codec inspects.
const (
	FlagEncrypted      uint16 = 1 << 0
	FlagDataDescriptor uint16 = 1 << 3
	FlagUTF8           uint16 = 1 << 11
)

// Record describes one committed entry of the central directory.
type Record struct {
	// Name is the entry path as stored, using forward slashes.
	// Directory entries end with "/".
	Name string

	// Method is the compression method of the entry data.
	Method Method

	// Flags holds the general purpose bit flags.
	Flags uint16

	// CRC32 is the IEEE CRC-32 of the uncompressed content.
	CRC32 uint32

	// CompressedSize is the size of the entry data as stored.
	CompressedSize uint64

	// UncompressedSize is the size of the decoded content.
	UncompressedSize uint64

	// Offset is the position of the entry's local file header.
	Offset uint64

	// Modified is the modification time, at DOS date/time precision.
	Modified time.Time

	// Mode holds the permission and type bits carried in the external
	// attributes. Zero when the creator did not record Unix attributes.
	Mode fs.FileMode

	// Comment is the per-entry comment.
	Comment string
}

// IsDir reports whether the record is a directory marker.
func (r *Record) IsDir() bool {
	return len(r.Name) > 0 && r.Name[len(r.Name)-1] == '/'
}
