package zipfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Record signatures.
const (
	LocalHeaderSignature   uint32 = 0x04034b50
	CentralHeaderSignature uint32 = 0x02014b50
	EndOfCentralSignature  uint32 = 0x06054b50
)

// Fixed record sizes, excluding variable-length trailers.
const (
	LocalHeaderSize   = 30
	CentralHeaderSize = 46
	EndOfCentralSize  = 22
)

// LocalPatchOffset is the offset of the modification time field within a
// local header. Time, date, CRC-32 and both sizes follow it contiguously
// (LocalPatchSize bytes), which lets a writer patch them in one write once an
// entry is finalized.
const (
	LocalPatchOffset = 10
	LocalPatchSize   = 16
)

// Version fields.
const (
	VersionDefault = 20 // 2.0: store, deflate, directories
	VersionModern  = 63 // 6.3: zstd, xz
	CreatorUnix    = 3
	CreatorFAT     = 0
	CreatorNTFS    = 10
	CreatorDarwin  = 19
)

// VersionNeeded returns the minimum APPNOTE version needed to extract an
// entry stored with the given method.
func VersionNeeded(method uint16) uint16 {
	if method == 0 || method == 8 {
		return VersionDefault
	}
	return VersionModern
}

var (
	// ErrFormat is returned when a record is malformed or has a wrong signature.
	ErrFormat = errors.New("zipfmt: malformed record")

	// ErrZip64 is returned when a record carries ZIP64 sentinel values.
	ErrZip64 = errors.New("zipfmt: zip64 archives are not supported")
)

// LocalHeader is the record preceding each entry's data.
type LocalHeader struct {
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLength       uint16
	ExtraLength      uint16
	Name             string
	Extra            []byte
}

// Size returns the encoded size of the header including name and extra field.
func (h *LocalHeader) Size() int {
	return LocalHeaderSize + len(h.Name) + len(h.Extra)
}

// MarshalBinary encodes the header, name and extra field.
func (h *LocalHeader) MarshalBinary() ([]byte, error) {
	if len(h.Name) > math.MaxUint16 || len(h.Extra) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: name or extra field too long", ErrFormat)
	}
	h.NameLength = uint16(len(h.Name))   //nolint:gosec // checked above
	h.ExtraLength = uint16(len(h.Extra)) //nolint:gosec // checked above
	buf := make([]byte, h.Size())
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo writes the header to buf, which must be at least Size bytes.
func (h *LocalHeader) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], LocalHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionNeeded)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint16(buf[8:10], h.Method)
	EncodeLocalPatch(buf[LocalPatchOffset:LocalPatchOffset+LocalPatchSize],
		h.ModTime, h.ModDate, h.CRC32, h.CompressedSize, h.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], h.NameLength)
	binary.LittleEndian.PutUint16(buf[28:30], h.ExtraLength)
	copy(buf[LocalHeaderSize:], h.Name)
	copy(buf[LocalHeaderSize+len(h.Name):], h.Extra)
}

// DecodeFrom reads the fixed part of a local header from data.
// Name and Extra are left empty; NameLength and ExtraLength tell the caller
// where the entry data starts.
func (h *LocalHeader) DecodeFrom(data []byte) error {
	if len(data) < LocalHeaderSize {
		return fmt.Errorf("%w: local header too short (%d bytes)", ErrFormat, len(data))
	}
	if sig := binary.LittleEndian.Uint32(data[0:4]); sig != LocalHeaderSignature {
		return fmt.Errorf("%w: bad local header signature %#08x", ErrFormat, sig)
	}
	h.VersionNeeded = binary.LittleEndian.Uint16(data[4:6])
	h.Flags = binary.LittleEndian.Uint16(data[6:8])
	h.Method = binary.LittleEndian.Uint16(data[8:10])
	h.ModTime = binary.LittleEndian.Uint16(data[10:12])
	h.ModDate = binary.LittleEndian.Uint16(data[12:14])
	h.CRC32 = binary.LittleEndian.Uint32(data[14:18])
	h.CompressedSize = binary.LittleEndian.Uint32(data[18:22])
	h.UncompressedSize = binary.LittleEndian.Uint32(data[22:26])
	h.NameLength = binary.LittleEndian.Uint16(data[26:28])
	h.ExtraLength = binary.LittleEndian.Uint16(data[28:30])
	return nil
}

// DataOffset returns the distance from the start of the header to the data.
func (h *LocalHeader) DataOffset() int64 {
	return LocalHeaderSize + int64(h.NameLength) + int64(h.ExtraLength)
}

// EncodeLocalPatch encodes the time, date, CRC-32 and sizes into a
// LocalPatchSize buffer laid out as in the local header.
func EncodeLocalPatch(buf []byte, modTime, modDate uint16, crc, compressed, uncompressed uint32) {
	binary.LittleEndian.PutUint16(buf[0:2], modTime)
	binary.LittleEndian.PutUint16(buf[2:4], modDate)
	PutSizes(buf[4:16], crc, compressed, uncompressed)
}

// PutSizes encodes the CRC-32 and both sizes into a 12-byte buffer laid out
// as in the local header.
func PutSizes(buf []byte, crc, compressed, uncompressed uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], crc)
	binary.LittleEndian.PutUint32(buf[4:8], compressed)
	binary.LittleEndian.PutUint32(buf[8:12], uncompressed)
}

// CentralHeader is one record of the central directory.
type CentralHeader struct {
	VersionMadeBy    uint16
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	DiskNumberStart  uint16
	InternalAttrs    uint16
	ExternalAttrs    uint32
	LocalOffset      uint32
	Name             string
	Extra            []byte
	Comment          string
}

// Size returns the encoded size including the variable-length fields.
func (h *CentralHeader) Size() int {
	return CentralHeaderSize + len(h.Name) + len(h.Extra) + len(h.Comment)
}

// MarshalBinary encodes the record.
func (h *CentralHeader) MarshalBinary() ([]byte, error) {
	if len(h.Name) > math.MaxUint16 || len(h.Extra) > math.MaxUint16 || len(h.Comment) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: variable field too long", ErrFormat)
	}
	buf := make([]byte, h.Size())
	binary.LittleEndian.PutUint32(buf[0:4], CentralHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionMadeBy)
	binary.LittleEndian.PutUint16(buf[6:8], h.VersionNeeded)
	binary.LittleEndian.PutUint16(buf[8:10], h.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], h.Method)
	binary.LittleEndian.PutUint16(buf[12:14], h.ModTime)
	binary.LittleEndian.PutUint16(buf[14:16], h.ModDate)
	PutSizes(buf[16:28], h.CRC32, h.CompressedSize, h.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(h.Name)))    //nolint:gosec // checked above
	binary.LittleEndian.PutUint16(buf[30:32], uint16(len(h.Extra)))   //nolint:gosec // checked above
	binary.LittleEndian.PutUint16(buf[32:34], uint16(len(h.Comment))) //nolint:gosec // checked above
	binary.LittleEndian.PutUint16(buf[34:36], h.DiskNumberStart)
	binary.LittleEndian.PutUint16(buf[36:38], h.InternalAttrs)
	binary.LittleEndian.PutUint32(buf[38:42], h.ExternalAttrs)
	binary.LittleEndian.PutUint32(buf[42:46], h.LocalOffset)

	off := CentralHeaderSize
	off += copy(buf[off:], h.Name)
	off += copy(buf[off:], h.Extra)
	copy(buf[off:], h.Comment)
	return buf, nil
}

// ReadCentralHeader reads one central directory record from r.
func ReadCentralHeader(r io.Reader) (CentralHeader, error) {
	var buf [CentralHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CentralHeader{}, fmt.Errorf("%w: read central header: %v", ErrFormat, err)
	}
	if sig := binary.LittleEndian.Uint32(buf[0:4]); sig != CentralHeaderSignature {
		return CentralHeader{}, fmt.Errorf("%w: bad central header signature %#08x", ErrFormat, sig)
	}

	h := CentralHeader{
		VersionMadeBy:    binary.LittleEndian.Uint16(buf[4:6]),
		VersionNeeded:    binary.LittleEndian.Uint16(buf[6:8]),
		Flags:            binary.LittleEndian.Uint16(buf[8:10]),
		Method:           binary.LittleEndian.Uint16(buf[10:12]),
		ModTime:          binary.LittleEndian.Uint16(buf[12:14]),
		ModDate:          binary.LittleEndian.Uint16(buf[14:16]),
		CRC32:            binary.LittleEndian.Uint32(buf[16:20]),
		CompressedSize:   binary.LittleEndian.Uint32(buf[20:24]),
		UncompressedSize: binary.LittleEndian.Uint32(buf[24:28]),
		DiskNumberStart:  binary.LittleEndian.Uint16(buf[34:36]),
		InternalAttrs:    binary.LittleEndian.Uint16(buf[36:38]),
		ExternalAttrs:    binary.LittleEndian.Uint32(buf[38:42]),
		LocalOffset:      binary.LittleEndian.Uint32(buf[42:46]),
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(buf[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(buf[32:34]))

	if h.CompressedSize == math.MaxUint32 || h.UncompressedSize == math.MaxUint32 || h.LocalOffset == math.MaxUint32 {
		return CentralHeader{}, ErrZip64
	}

	variable := make([]byte, nameLen+extraLen+commentLen)
	if _, err := io.ReadFull(r, variable); err != nil {
		return CentralHeader{}, fmt.Errorf("%w: read central header fields: %v", ErrFormat, err)
	}
	h.Name = string(variable[:nameLen])
	if extraLen > 0 {
		h.Extra = variable[nameLen : nameLen+extraLen]
	}
	h.Comment = string(variable[nameLen+extraLen:])
	return h, nil
}

// EndOfCentral is the end of central directory record.
type EndOfCentral struct {
	DiskNumber    uint16
	CentralDisk   uint16
	EntriesOnDisk uint16
	Entries       uint16
	CentralSize   uint32
	CentralOffset uint32
	Comment       string
}

// MarshalBinary encodes the record with its comment.
func (e *EndOfCentral) MarshalBinary() ([]byte, error) {
	if len(e.Comment) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: archive comment too long", ErrFormat)
	}
	buf := make([]byte, EndOfCentralSize+len(e.Comment))
	binary.LittleEndian.PutUint32(buf[0:4], EndOfCentralSignature)
	binary.LittleEndian.PutUint16(buf[4:6], e.DiskNumber)
	binary.LittleEndian.PutUint16(buf[6:8], e.CentralDisk)
	binary.LittleEndian.PutUint16(buf[8:10], e.EntriesOnDisk)
	binary.LittleEndian.PutUint16(buf[10:12], e.Entries)
	binary.LittleEndian.PutUint32(buf[12:16], e.CentralSize)
	binary.LittleEndian.PutUint32(buf[16:20], e.CentralOffset)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(e.Comment))) //nolint:gosec // checked above
	copy(buf[EndOfCentralSize:], e.Comment)
	return buf, nil
}

// decodeEndOfCentral decodes the fixed part of the record. data must start
// at the signature and hold at least EndOfCentralSize bytes.
func decodeEndOfCentral(data []byte) (EndOfCentral, int) {
	e := EndOfCentral{
		DiskNumber:    binary.LittleEndian.Uint16(data[4:6]),
		CentralDisk:   binary.LittleEndian.Uint16(data[6:8]),
		EntriesOnDisk: binary.LittleEndian.Uint16(data[8:10]),
		Entries:       binary.LittleEndian.Uint16(data[10:12]),
		CentralSize:   binary.LittleEndian.Uint32(data[12:16]),
		CentralOffset: binary.LittleEndian.Uint32(data[16:20]),
	}
	return e, int(binary.LittleEndian.Uint16(data[20:22]))
}

// FindEndOfCentral locates and decodes the end of central directory record of
// an archive of the given size. It returns the record and its offset.
//
// The record is searched backwards over the last EndOfCentralSize+65535
// bytes, the largest span a trailing comment allows. A candidate is accepted
// only if its comment length reaches exactly the end of the archive.
func FindEndOfCentral(r io.ReaderAt, size int64) (EndOfCentral, int64, error) {
	if size < EndOfCentralSize {
		return EndOfCentral{}, 0, fmt.Errorf("%w: archive too small (%d bytes)", ErrFormat, size)
	}
	span := min(size, int64(EndOfCentralSize+math.MaxUint16))
	start := size - span
	buf := make([]byte, span)
	if _, err := r.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return EndOfCentral{}, 0, fmt.Errorf("read archive tail: %w", err)
	}

	for i := len(buf) - EndOfCentralSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != EndOfCentralSignature {
			continue
		}
		e, commentLen := decodeEndOfCentral(buf[i:])
		if i+EndOfCentralSize+commentLen != len(buf) {
			continue
		}
		e.Comment = string(buf[i+EndOfCentralSize:])
		if err := e.validate(start + int64(i)); err != nil {
			return EndOfCentral{}, 0, err
		}
		return e, start + int64(i), nil
	}
	return EndOfCentral{}, 0, fmt.Errorf("%w: end of central directory not found", ErrFormat)
}

// validate checks the record against the position it was found at.
func (e *EndOfCentral) validate(at int64) error {
	if e.Entries == math.MaxUint16 || e.CentralSize == math.MaxUint32 || e.CentralOffset == math.MaxUint32 {
		return ErrZip64
	}
	if e.DiskNumber != 0 || e.CentralDisk != 0 || e.EntriesOnDisk != e.Entries {
		return fmt.Errorf("%w: multi-volume archives are not supported", ErrFormat)
	}
	if int64(e.CentralOffset)+int64(e.CentralSize) > at {
		return fmt.Errorf("%w: central directory overlaps end record", ErrFormat)
	}
	return nil
}
