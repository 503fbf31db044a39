package ziparchive

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "foo.txt", "foo.txt"},
		{"leading slash", "/etc/nginx.conf", "etc/nginx.conf"},
		{"directory marker kept", "etc/nginx/", "etc/nginx/"},
		{"backslashes", `dir\sub\file.txt`, "dir/sub/file.txt"},
		{"backslash directory", `dir\`, "dir/"},
		{"internal double slashes", "etc//nginx", "etc/nginx"},
		{"multiple trailing slashes", "etc///", "etc/"},
		// Dot and dotdot segments are preserved for extraction to reject.
		{"dotdot preserved", "../evil", "../evil"},
		{"dot preserved", "a/./b", "a/./b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeNameRejectsEmpty(t *testing.T) {
	for _, input := range []string{"", "/", "///", `\`} {
		_, err := NormalizeName(input)
		require.ErrorIs(t, err, fs.ErrInvalid, "input %q", input)
	}
}
