// Package dolby decodes the Dolby audio decoder configuration boxes found in
// ac-3, ec-3 and ac-4 sample entries.
package dolby

import (
	"fmt"
	"io"
	"strings"

	"github.com/bluenviron/mediacommon/pkg/bits"
)

// bitReader is a big-endian bit cursor. The first short read sticks and later
// reads return zero.
type bitReader struct {
	buf []byte
	pos int // in bits
	err error
}

func newBitReader(buf []byte) *bitReader {
	return &bitReader{buf: buf}
}

func (r *bitReader) read(n int) uint64 {
	if r.err != nil || n == 0 {
		return 0
	}
	v, err := bits.ReadBits(r.buf, &r.pos, n)
	if err != nil {
		r.err = fmt.Errorf("reading %d bits at bit %d: %w", n, r.pos, io.ErrUnexpectedEOF)
		return 0
	}
	return v
}

func (r *bitReader) flag() bool { return r.read(1) == 1 }

func (r *bitReader) u8() uint8 { return uint8(r.read(8)) }

func (r *bitReader) u16() uint16 { return uint16(r.read(16)) }

func (r *bitReader) u32() uint32 { return uint32(r.read(32)) }

func (r *bitReader) bytes(n int) []byte {
	out := make([]byte, 0, n)
	for range n {
		if r.err != nil {
			return nil
		}
		out = append(out, r.u8())
	}
	return out
}

func (r *bitReader) mask3() [3]byte {
	var m [3]byte
	copy(m[:], r.bytes(3))
	return m
}

// align skips to the next byte boundary.
func (r *bitReader) align() {
	if rem := r.pos % 8; rem != 0 {
		r.read(8 - rem)
	}
}

// consumed is the number of bytes touched so far, counting a partial byte.
func (r *bitReader) consumed() int { return (r.pos + 7) / 8 }

// skip advances n whole bytes.
func (r *bitReader) skip(n int) {
	if r.err != nil || n <= 0 {
		return
	}
	if r.pos+n*8 > len(r.buf)*8 {
		r.err = fmt.Errorf("skipping %d bytes at bit %d: %w", n, r.pos, io.ErrUnexpectedEOF)
		return
	}
	r.pos += n * 8
}

func lossy(b []byte) string { return strings.ToValidUTF8(string(b), "\uFFFD") }
