// Package ziptype defines the record, method and error types shared by the
// archive package and its internal packages. Keeping them here avoids
// import cycles between the session and the directory/codec layers.
package ziptype

// Method identifies the compression method recorded for an entry.
// Values are the APPNOTE method ids.
type Method uint16

const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
	MethodZstd    Method = 93
	MethodXZ      Method = 95
)

// String returns the human-readable name of the method.
func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodZstd:
		return "zstd"
	case MethodXZ:
		return "xz"
	default:
		return "unknown"
	}
}

// Supported reports whether the method can be encoded and decoded.
func (m Method) Supported() bool {
	switch m {
	case MethodStore, MethodDeflate, MethodZstd, MethodXZ:
		return true
	default:
		return false
	}
}
