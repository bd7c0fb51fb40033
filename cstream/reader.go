package cstream

import (
	"encoding/binary"
	"errors"
)

// ErrOutOfBounds is reported when an instruction reaches outside of the stream.
var ErrOutOfBounds = errors.New("read past the end of the stream")

// reader is a bounds-checked cursor over the stream bytes.
//
// The first failed read sets err; the following reads return zeros.
type reader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
	wide  bool
	err   error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) has(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos < 0 || n > len(r.data)-r.pos {
		r.fail(ErrOutOfBounds)
		return false
	}
	return true
}

func (r *reader) u8() int {
	if !r.has(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return int(v)
}

func (r *reader) s8() int {
	return int(int8(r.u8()))
}

func (r *reader) u16() int {
	if !r.has(2) {
		return 0
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return int(v)
}

func (r *reader) s16() int {
	return int(int16(r.u16()))
}

func (r *reader) u32() uint32 {
	if !r.has(4) {
		return 0
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

// pointer reads an address using the stream pointer width.
func (r *reader) pointer() int {
	if r.wide {
		return int(r.u32())
	}
	return r.u16()
}

// varint reads a zigzag-encoded variable length integer.
func (r *reader) varint() int {
	if r.err != nil {
		return 0
	}
	if r.pos < 0 || r.pos >= len(r.data) {
		r.fail(ErrOutOfBounds)
		return 0
	}
	v, n := binary.Varint(r.data[r.pos:])
	if n <= 0 {
		r.fail(ErrOutOfBounds)
		return 0
	}
	r.pos += n
	return int(v)
}
