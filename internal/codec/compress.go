// Package codec is the compression transport between entry content and the
// bytes stored in the archive. It builds streaming compressors for the
// write path and pooled decompressors for the read path.
package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/meigma/ziparchive/internal/ziptype"
)

// DefaultLevel selects each method's default compression level.
const DefaultLevel = -1

// NewCompressor returns a writer that compresses into w with the given method.
// Closing the returned writer flushes the compressed stream but never closes w.
// level is DefaultLevel or 1..9; MethodStore ignores it.
func NewCompressor(method ziptype.Method, level int, w io.Writer) (io.WriteCloser, error) {
	switch method {
	case ziptype.MethodStore:
		return nopCloser{w}, nil
	case ziptype.MethodDeflate:
		fw, err := flate.NewWriter(w, flateLevel(level))
		if err != nil {
			return nil, fmt.Errorf("create deflate writer: %w", err)
		}
		return fw, nil
	case ziptype.MethodZstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstdLevel(level)),
			zstd.WithEncoderConcurrency(1),
			zstd.WithLowerEncoderMem(true),
			zstd.WithZeroFrames(true),
		)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return enc, nil
	case ziptype.MethodXZ:
		cfg := xz.WriterConfig{DictCap: xzDictCap(level)}
		xw, err := cfg.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("create xz writer: %w", err)
		}
		return xw, nil
	default:
		return nil, fmt.Errorf("%w: compression method %d", ziptype.ErrUnsupported, method)
	}
}

func flateLevel(level int) int {
	if level < 1 || level > 9 {
		return flate.DefaultCompression
	}
	return level
}

func zstdLevel(level int) zstd.EncoderLevel {
	if level < 1 || level > 9 {
		return zstd.SpeedDefault
	}
	// Map the 1..9 deflate-style scale onto zstd's 1..22 scale.
	return zstd.EncoderLevelFromZstd(level * 22 / 9)
}

// xzDictCap follows the xz preset dictionary sizes.
func xzDictCap(level int) int {
	switch {
	case level < 1 || level > 9:
		return 8 << 20
	case level <= 2:
		return 1 << 20 << (level - 1)
	case level <= 4:
		return 4 << 20
	case level <= 6:
		return 8 << 20
	default:
		return 16 << 20 << (level - 7)
	}
}

// nopCloser adapts a writer for the store method.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
