package mp4

import (
	"bytes"
	"fmt"
	"io"
)

// reader is a cursor over one box body. The first short read sticks; later
// reads return zero values and finish reports the error.
type reader struct {
	buf []byte
	pos int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.buf)-r.pos < n {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := be.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u24() uint32 {
	if !r.need(3) {
		return 0
	}
	b := r.buf[r.pos:]
	r.pos += 3
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := be.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := be.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) i32() int32 { return int32(r.u32()) }

// uvar reads a 16, 32 or 64 bit unsigned integer.
func (r *reader) uvar(width int) uint64 {
	switch width {
	case 0:
		return 0
	case 2:
		return uint64(r.u16())
	case 4:
		return uint64(r.u32())
	case 8:
		return r.u64()
	}
	if r.err == nil {
		r.err = fmt.Errorf("invalid field width %d", width)
	}
	return 0
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.pos += n
	}
}

func (r *reader) rest() []byte {
	return r.bytes(r.remaining())
}

func (r *reader) fourCC() BoxType {
	var t BoxType
	copy(t[:], r.bytes(4))
	return t
}

// fullBox reads the version and 24-bit flags of a full box.
func (r *reader) fullBox() (uint8, uint32) {
	v := r.u32()
	return uint8(v >> 24), v & 0x00ffffff
}

// cstring reads a NUL terminated string. A missing terminator consumes the
// rest of the body.
func (r *reader) cstring() string {
	if r.err != nil {
		return ""
	}
	tail := r.buf[r.pos:]
	n := bytes.IndexByte(tail, 0)
	if n < 0 {
		r.pos = len(r.buf)
		return lossy(tail)
	}
	r.pos += n + 1
	return lossy(tail[:n])
}

// finish reports a short read or unconsumed bytes.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if n := r.remaining(); n != 0 {
		return fmt.Errorf("%d bytes left after decoding", n)
	}
	return nil
}
