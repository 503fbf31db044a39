package codec

import (
	"path"
	"strings"
)

// SkipCompressionFunc returns true when an entry should be stored uncompressed.
// It is called once per entry with the entry name and should be inexpensive.
type SkipCompressionFunc func(name string) bool

// DefaultSkipCompression returns a SkipCompressionFunc that stores entries
// whose extension marks already-compressed content.
func DefaultSkipCompression() SkipCompressionFunc {
	return func(name string) bool {
		ext := strings.ToLower(path.Ext(name))
		_, ok := defaultSkipCompressionExts[ext]
		return ok
	}
}

// ShouldSkip checks if any predicate returns true for the given name.
func ShouldSkip(name string, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(name) {
			return true
		}
	}
	return false
}

var defaultSkipCompressionExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".heic":  {},
	".jar":   {},
	".jpeg":  {},
	".jpg":   {},
	".m4v":   {},
	".mkv":   {},
	".mov":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".png":   {},
	".rar":   {},
	".tgz":   {},
	".webm":  {},
	".webp":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}
