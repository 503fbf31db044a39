package zipfmt

import "io/fs"

// Unix file type bits as stored in the high half of external attributes.
const (
	unixTypeMask = 0o170000
	unixDir      = 0o040000
	unixRegular  = 0o100000
	unixSymlink  = 0o120000

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// ModeToExternal encodes mode for a "made by Unix" central header.
// The low byte carries the MS-DOS directory and read-only bits for readers
// that ignore the Unix half.
func ModeToExternal(mode fs.FileMode) uint32 {
	unix := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		unix |= unixDir
	case mode&fs.ModeSymlink != 0:
		unix |= unixSymlink
	default:
		unix |= unixRegular
	}
	attrs := unix << 16
	if mode.IsDir() {
		attrs |= msdosDir
	}
	if mode.Perm()&0o200 == 0 {
		attrs |= msdosReadOnly
	}
	return attrs
}

// ExternalToMode decodes the external attributes written by the given
// creator host. It returns zero when the attributes carry no usable bits.
func ExternalToMode(versionMadeBy uint16, attrs uint32) fs.FileMode {
	switch versionMadeBy >> 8 {
	case CreatorUnix, CreatorDarwin:
		unix := attrs >> 16
		mode := fs.FileMode(unix & 0o777)
		switch unix & unixTypeMask {
		case unixDir:
			mode |= fs.ModeDir
		case unixSymlink:
			mode |= fs.ModeSymlink
		}
		return mode
	case CreatorFAT, CreatorNTFS:
		mode := fs.FileMode(0o666)
		if attrs&msdosDir != 0 {
			mode = fs.ModeDir | 0o777
		}
		if attrs&msdosReadOnly != 0 {
			mode &^= 0o222
		}
		return mode
	default:
		return 0
	}
}
