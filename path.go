package ziparchive

import (
	"io/fs"
	"strings"
)

// NormalizeName converts a caller-supplied entry name to the stored form.
//
// It performs the following transformations:
//   - Converts backslashes to forward slashes: `a\b` → "a/b"
//   - Strips leading slashes: "/etc/nginx" → "etc/nginx"
//   - Collapses consecutive slashes: "etc//nginx" → "etc/nginx"
//   - Keeps one trailing slash, which marks a directory entry
//
// Names that are empty after normalization are rejected.
// "." and ".." elements are preserved as given; extraction rejects them.
func NormalizeName(name string) (string, error) {
	p := strings.ReplaceAll(name, `\`, "/")
	dir := strings.HasSuffix(p, "/")

	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "", &fs.PathError{Op: "entry", Path: name, Err: fs.ErrInvalid}
	}
	p = strings.Join(result, "/")
	if dir {
		p += "/"
	}
	return p, nil
}
