package codec

import (
	"io"

	"github.com/meigma/ziparchive/internal/ziptype"
)

// Encoder turns entry content into the bytes stored in the archive. It
// remembers how many stored bytes it has handed to the underlying writer,
// which is the compressed size recorded in the entry headers.
type Encoder struct {
	method ziptype.Method
	comp   io.WriteCloser
	out    storedWriter
	closed bool
}

// storedWriter sits below the compressor and tallies its output.
type storedWriter struct {
	w io.Writer
	n uint64
}

func (s *storedWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += uint64(n) //nolint:gosec // io.Writer never reports a negative count
	return n, err
}

// NewEncoder returns an Encoder that writes method-encoded content to w.
func NewEncoder(method ziptype.Method, level int, w io.Writer) (*Encoder, error) {
	e := &Encoder{method: method, out: storedWriter{w: w}}
	comp, err := NewCompressor(method, level, &e.out)
	if err != nil {
		return nil, err
	}
	e.comp = comp
	return e, nil
}

// Write compresses p.
func (e *Encoder) Write(p []byte) (int, error) {
	return e.comp.Write(p)
}

// Close ends the compressed stream. Later calls do nothing.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.comp.Close()
}

// Method returns the compression method.
func (e *Encoder) Method() ziptype.Method {
	return e.method
}

// Stored returns the number of bytes written to the underlying writer so
// far. Compressors buffer internally, so the value is final only after
// Close.
func (e *Encoder) Stored() uint64 {
	return e.out.n
}
