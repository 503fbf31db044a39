package codec

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/meigma/ziparchive/internal/ziptype"
)

// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// DecompressPool manages reusable deflate readers and zstd decoders to reduce
// allocation overhead when many entries are read from one archive.
type DecompressPool struct {
	flatePool        sync.Pool
	zstdPool         sync.Pool
	maxDecoderMemory uint64
}

// NewDecompressPool creates a new pool.
// If maxMemory is 0, no memory limit is applied to zstd decoders.
func NewDecompressPool(maxMemory uint64) *DecompressPool {
	return &DecompressPool{maxDecoderMemory: maxMemory}
}

// Get returns a reader that decodes r with the given method.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *DecompressPool) Get(method ziptype.Method, r io.Reader) (io.Reader, func(), error) {
	switch method {
	case ziptype.MethodStore:
		return r, func() {}, nil
	case ziptype.MethodDeflate:
		return p.getFlate(r)
	case ziptype.MethodZstd:
		return p.getZstd(r)
	case ziptype.MethodXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: compression method %d", ziptype.ErrUnsupported, method)
	}
}

func (p *DecompressPool) getFlate(r io.Reader) (io.Reader, func(), error) {
	if value := p.flatePool.Get(); value != nil {
		fr, ok := value.(io.ReadCloser)
		if ok {
			if resetter, ok := fr.(flate.Resetter); ok && resetter.Reset(r, nil) == nil {
				return fr, func() { p.flatePool.Put(fr) }, nil
			}
		}
	}
	fr := flate.NewReader(r)
	return fr, func() { p.flatePool.Put(fr) }, nil
}

func (p *DecompressPool) getZstd(r io.Reader) (io.Reader, func(), error) {
	value := p.zstdPool.Get()
	if value == nil {
		dec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, p.releaseZstd(dec), nil
	}

	dec, ok := value.(*zstd.Decoder)
	if !ok {
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, p.releaseZstd(newDec), nil
	}

	if err := dec.Reset(r); err != nil {
		// Reset failed, close this one and create new
		dec.Close()
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, p.releaseZstd(newDec), nil
	}
	return dec, p.releaseZstd(dec), nil
}

// releaseZstd returns a release function that clears the decoder's input
// and puts it back in the pool.
func (p *DecompressPool) releaseZstd(dec *zstd.Decoder) func() {
	return func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.zstdPool.Put(dec)
	}
}

// newDecoder creates a new zstd decoder with the configured memory limit.
func (p *DecompressPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(false),
	}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}
