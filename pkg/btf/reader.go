package btf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when the cursor would read past the end of the slice.
var ErrTruncated = errors.New("btf: truncated")

// reader is a positional little/big-endian cursor over an immutable byte
// slice. It never copies the underlying slice; subslice() borrows from it.
type reader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func newReader(data []byte, order binary.ByteOrder) *reader {
	return &reader{data: data, order: order}
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, len(r.data))
	}
	return nil
}

func (r *reader) readU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) readU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) readU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) readU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

// skip advances the cursor by n bytes without reading them.
func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// subslice returns a borrowed view of length l starting at offset off,
// measured from the start of the underlying slice (not the cursor).
func (r *reader) subslice(off, l int) ([]byte, error) {
	if off < 0 || l < 0 || off+l > len(r.data) {
		return nil, fmt.Errorf("%w: subslice [%d:%d] out of range (len %d)", ErrTruncated, off, off+l, len(r.data))
	}
	return r.data[off : off+l], nil
}

// offset reports the current cursor position.
func (r *reader) offset() int {
	return r.pos
}

// reset moves the cursor to a previously observed offset. The reader is
// otherwise forward-only.
func (r *reader) reset(off int) {
	r.pos = off
}

// remaining reports how many unread bytes are left.
func (r *reader) remaining() int {
	return len(r.data) - r.pos
}
