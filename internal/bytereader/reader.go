// Package bytereader provides a buffered, seekable accessor for fixed-layout
// binary files. Multi-byte values are little-endian unless the method name
// says otherwise.
//
// A Reader owns its position; it is not safe for concurrent use.
package bytereader

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/arloliu/mebo/endian"

	"github.com/tingold/orb-tinsource/errs"
)

const bufferSize = 64 * 1024

// Reader reads primitive values from a seekable byte source.
type Reader struct {
	name    string
	src     io.ReadSeeker
	closer  io.Closer
	br      *bufio.Reader
	pos     int64
	size    int64
	le      endian.EndianEngine
	be      endian.EndianEngine
	scratch [8]byte
	closed  bool
}

// Open opens the named file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return New(path, f, st.Size()), nil
}

// New wraps src. If src implements io.Closer it is closed by Close.
// The source is assumed to be positioned at offset zero.
func New(name string, src io.ReadSeeker, size int64) *Reader {
	r := &Reader{
		name: name,
		src:  src,
		br:   bufio.NewReaderSize(src, bufferSize),
		size: size,
		le:   endian.GetLittleEndianEngine(),
		be:   endian.GetBigEndianEngine(),
	}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}

	return r
}

// Name returns the name the reader was created with, usually a file path.
func (r *Reader) Name() string { return r.name }

// Size returns the total size of the source in bytes.
func (r *Reader) Size() int64 { return r.size }

// Position returns the absolute offset of the next byte to be read.
func (r *Reader) Position() int64 { return r.pos }

// IsClosed reports whether Close has been called.
func (r *Reader) IsClosed() bool { return r.closed }

// Seek moves to an absolute offset.
func (r *Reader) Seek(offset int64) error {
	if r.closed {
		return errs.Closed(r.name, "seek")
	}
	if offset < 0 {
		return fmt.Errorf("seek %s: negative offset %d", r.name, offset)
	}

	// Stay inside the buffer when moving forward over data already read.
	if delta := offset - r.pos; delta >= 0 && delta <= int64(r.br.Buffered()) {
		if _, err := r.br.Discard(int(delta)); err != nil {
			return err
		}
		r.pos = offset

		return nil
	}

	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s to %d: %w", r.name, offset, err)
	}
	r.br.Reset(r.src)
	r.pos = offset

	return nil
}

// Skip advances the position by n bytes without returning them.
func (r *Reader) Skip(n int64) error {
	return r.Seek(r.pos + n)
}

// ReadFull fills p from the current position.
func (r *Reader) ReadFull(p []byte) error {
	if r.closed {
		return errs.Closed(r.name, "read")
	}

	n, err := io.ReadFull(r.br, p)
	r.pos += int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read %d bytes at offset %d of %s: %w", len(p), r.pos-int64(n), r.name, err)
	}

	return nil
}

func (r *Reader) fill(n int) ([]byte, error) {
	b := r.scratch[:n]
	if err := r.ReadFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI8 reads a signed byte.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadU16 reads an unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return r.le.Uint16(b), nil
}

// ReadI16 reads a signed 16-bit integer.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 reads an unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return r.le.Uint32(b), nil
}

// ReadI32 reads a signed 32-bit integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI32BE reads a big-endian signed 32-bit integer.
func (r *Reader) ReadI32BE() (int32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(r.be.Uint32(b)), nil
}

// ReadU64 reads an unsigned 64-bit integer.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return r.le.Uint64(b), nil
}

// ReadI64 reads a signed 64-bit integer.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads an IEEE 754 single-precision float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads an IEEE 754 double-precision float.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadASCII reads a fixed-length text field. The value ends at the first NUL
// and surrounding spaces are removed.
func (r *Reader) ReadASCII(n int) (string, error) {
	b := make([]byte, n)
	if err := r.ReadFull(b); err != nil {
		return "", err
	}

	return TrimASCII(b), nil
}

// TrimASCII applies the ReadASCII trimming rules to b.
func TrimASCII(b []byte) string {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}

	return strings.TrimSpace(string(b))
}

// Close releases the underlying source. Subsequent operations fail with a
// StateError wrapping errs.ErrClosed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.br = nil

	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
