// Package checksum implements the incremental CRC-32 used to verify entry
// content on both the write and the read path.
package checksum

import (
	"errors"
	"hash/crc32"
	"io"
)

// ErrExtraData is returned by EnsureNoExtra when a reader yields more bytes
// than the recorded size.
var ErrExtraData = errors.New("checksum: unexpected trailing data")

// CRC32 is an incremental IEEE CRC-32. The zero value is ready to use and
// equals the checksum of no data.
type CRC32 struct {
	sum uint32
	n   uint64
}

// New returns a fresh checksum state.
func New() *CRC32 {
	return &CRC32{}
}

// Update folds p into the running checksum.
// The result does not depend on how the input is chunked.
func (c *CRC32) Update(p []byte) {
	c.sum = crc32.Update(c.sum, crc32.IEEETable, p)
	c.n += uint64(len(p))
}

// Write implements io.Writer so the checksum can sit behind io.MultiWriter.
func (c *CRC32) Write(p []byte) (int, error) {
	c.Update(p)
	return len(p), nil
}

// Sum32 returns the checksum of everything written so far.
func (c *CRC32) Sum32() uint32 {
	return c.sum
}

// Len returns the number of bytes folded in so far.
func (c *CRC32) Len() uint64 {
	return c.n
}

// Reset returns the state to the checksum of no data.
func (c *CRC32) Reset() {
	c.sum = 0
	c.n = 0
}

// Reader wraps an io.Reader and checksums all data read.
type Reader struct {
	r   io.Reader
	crc CRC32
}

// NewReader creates a reader that computes a CRC-32 while reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read implements io.Reader.
func (cr *Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.crc.Update(p[:n])
	}
	return n, err
}

// Sum32 returns the checksum of the data read so far.
func (cr *Reader) Sum32() uint32 {
	return cr.crc.Sum32()
}

// Len returns the number of bytes read so far.
func (cr *Reader) Len() uint64 {
	return cr.crc.Len()
}

// EnsureNoExtra reads from r and returns ErrExtraData if any data is
// available. Used to detect decoded content longer than the recorded size.
func EnsureNoExtra(r io.Reader) error {
	var scratch [1]byte
	n, err := r.Read(scratch[:])
	if n > 0 {
		return ErrExtraData
	}
	if err == io.EOF {
		return nil
	}
	return err
}
