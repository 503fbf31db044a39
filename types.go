package ziparchive

import (
	"fmt"
	"strings"

	"github.com/meigma/ziparchive/internal/codec"
	"github.com/meigma/ziparchive/internal/ziptype"
)

// Re-export types from internal/ziptype for the public API.
type (
	// Record describes one entry of the central directory.
	Record = ziptype.Record

	// Method identifies the compression method of an entry.
	Method = ziptype.Method

	// SkipCompressionFunc returns true when an entry should be stored
	// uncompressed. It is called once per entry with the entry name.
	SkipCompressionFunc = codec.SkipCompressionFunc
)

// Re-export compression method constants.
const (
	MethodStore   = ziptype.MethodStore
	MethodDeflate = ziptype.MethodDeflate
	MethodZstd    = ziptype.MethodZstd
	MethodXZ      = ziptype.MethodXZ
)

// DefaultCompression selects the method's default compression level.
const DefaultCompression = codec.DefaultLevel

// DefaultSkipCompression returns a SkipCompressionFunc that stores entries
// with extensions of already-compressed formats.
var DefaultSkipCompression = codec.DefaultSkipCompression

// ParseMethod parses a method name as printed by Method.String.
func ParseMethod(s string) (Method, error) {
	for _, m := range []Method{MethodStore, MethodDeflate, MethodZstd, MethodXZ} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: compression method %q", ErrUnsupported, s)
}

// Mode is the access mode of an Archive.
type Mode byte

const (
	// ModeWrite creates a new archive, truncating any existing file.
	ModeWrite Mode = 'w'

	// ModeAppend adds entries to an existing archive.
	ModeAppend Mode = 'a'

	// ModeRead opens an existing archive for reading.
	ModeRead Mode = 'r'
)

// ParseMode parses "w", "a" or "r", or the names "write", "append" and "read".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "w", "write":
		return ModeWrite, nil
	case "a", "append":
		return ModeAppend, nil
	case "r", "read":
		return ModeRead, nil
	default:
		return 0, fmt.Errorf("invalid archive mode %q", s)
	}
}

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	case ModeRead:
		return "read"
	default:
		return fmt.Sprintf("Mode(%q)", byte(m))
	}
}

func (m Mode) valid() bool {
	return m == ModeWrite || m == ModeAppend || m == ModeRead
}

func (m Mode) writable() bool {
	return m == ModeWrite || m == ModeAppend
}
