package dicom

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader layers DICOM primitive reads over an io.Reader: fixed-width
// integers in a switchable byte order, counted byte/string reads, and a
// running position for error reporting.
type Reader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
	position  int64
}

// NewReader wraps r with the given initial byte order. File Meta
// Information is always little-endian; the dataset's order follows the
// negotiated transfer syntax and is switched with SetByteOrder.
func NewReader(r io.Reader, byteOrder binary.ByteOrder) *Reader {
	return &Reader{r: r, byteOrder: byteOrder}
}

// fill reads exactly len(buf) bytes, normalizing the partial-read error
// shape: clean EOF at a boundary stays io.EOF, a torn read is always
// io.ErrUnexpectedEOF.
func (r *Reader) fill(buf []byte) error {
	n, err := io.ReadFull(r.r, buf)
	switch {
	case err == nil:
		r.position += int64(n)
		return nil
	case err == io.EOF && n == 0:
		return io.EOF
	case err == io.ErrUnexpectedEOF || err == io.EOF:
		return io.ErrUnexpectedEOF
	default:
		return fmt.Errorf("failed to read %d bytes: %w", len(buf), err)
	}
}

// ReadUint16 reads one 16-bit word in the current byte order.
func (r *Reader) ReadUint16() (uint16, error) {
	var buf [2]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return r.byteOrder.Uint16(buf[:]), nil
}

// ReadUint32 reads one 32-bit word in the current byte order.
func (r *Reader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return r.byteOrder.Uint32(buf[:]), nil
}

// ReadBytes reads exactly n bytes; n == 0 yields an empty slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if err := r.fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadString reads exactly n bytes as a string, preserving any NUL or
// space padding for the caller to trim.
func (r *Reader) ReadString(n int) (string, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// SetByteOrder switches the byte order for subsequent reads.
func (r *Reader) SetByteOrder(order binary.ByteOrder) {
	r.byteOrder = order
}

// Position is the count of bytes consumed so far.
func (r *Reader) Position() int64 {
	return r.position
}

// WrapReader swaps the underlying stream (e.g. to interpose an inflater
// for the deflated transfer syntax) while keeping the position counter.
func (r *Reader) WrapReader(newReader io.Reader) {
	r.r = newReader
}
