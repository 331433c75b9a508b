package mp4

import (
	"fmt"
	"strconv"
)

// maxEntries bounds counts declared by encryption boxes.
const maxEntries = 4096

// --- tenc ---

func isProtectedLabel(v uint8) string {
	switch v {
	case 0:
		return "Not protected"
	case 1:
		return "Protected"
	}
	return "Reserved"
}

func ivSizeLabel(size, isProtected uint8) string {
	switch {
	case size == 0 && isProtected == 0:
		return "Not protected"
	case size == 0:
		return "Constant IV"
	case size == 8:
		return "64-bit"
	case size == 16:
		return "128-bit"
	}
	return "Undocumented in ISO/IEC 23001-7:2016"
}

func constantIVSizeLabel(n int) string {
	switch n {
	case 8:
		return "64-bit"
	case 16:
		return "128-bit"
	}
	return "Undocumented size in ISO/IEC 23001-7:2016"
}

func decodeTenc(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, _ := r.fullBox()
	r.skip(1)
	var crypt, skip uint8
	if version == 0 {
		r.skip(1)
	} else {
		b := r.u8()
		crypt, skip = b>>4, b&0x0f
	}
	isProtected := r.u8()
	ivSize := r.u8()
	kid := r.bytes(16)
	var constantIV []byte
	if isProtected == 1 && ivSize == 0 {
		n := int(r.u8())
		constantIV = r.bytes(n)
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}

	ps := newPropertySet("TrackEncryptionBox")
	ps.add("default_isProtected", String(fmt.Sprintf("%d (%s)", isProtected, isProtectedLabel(isProtected))))
	ps.add("default_Per_Sample_IV_Size", String(fmt.Sprintf("%d (%s)", ivSize, ivSizeLabel(ivSize, isProtected))))
	ps.add("default_KID", String(encodeHex(kid)))
	if constantIV != nil {
		ps.add("default_constant_IV_size", String(fmt.Sprintf("%d (%s)", len(constantIV), constantIVSizeLabel(len(constantIV)))))
		ps.add("default_constant_IV", String(encodeHex(constantIV)))
	}
	if version >= 1 {
		ps.add("default_crypt_byte_block", U8(crypt))
		ps.add("default_skip_byte_block", U8(skip))
	}
	return ps, nil
}

// --- senc ---

const sencUseSubsamples = 0x2

type sencSubsample struct {
	clear     uint16
	protected uint32
}

type sencSample struct {
	iv         string
	subsamples []sencSubsample
}

// ivWidths is the order in which IV widths are tried when the box does not
// say which one applies.
var ivWidths = [...]int{0, 8, 16}

func ivString(iv []byte) string {
	if len(iv) == 0 {
		return "0"
	}
	return "0x" + encodeHex(iv)
}

func decodeSenc(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	_, flags := r.fullBox()
	count := r.u32()
	if r.err != nil {
		return PropertySet{}, r.err
	}
	if count > maxEntries {
		return PropertySet{}, fmt.Errorf("senc: %w: %d samples", errCountTooLarge, count)
	}

	var samples []sencSample
	var err error
	if flags&sencUseSubsamples != 0 {
		samples, err = sencWithSubsamples(r.rest(), int(count))
	} else {
		samples, err = sencWithoutSubsamples(r.rest(), int(count))
	}
	if err != nil {
		return PropertySet{}, &UnsupportedError{Type: TypeSenc, Err: err}
	}

	ps := newPropertySet("SampleEncryptionBox")
	if len(samples) == 0 {
		ps.add("IV", String("Constant"))
		return ps, nil
	}
	for i, s := range samples {
		t := Table{Rows: [][]Scalar{{String("sample " + strconv.Itoa(i+1) + " IV"), String(s.iv)}}}
		for _, sub := range s.subsamples {
			t.Rows = append(t.Rows, []Scalar{
				String("subsample 🔓/🔒"),
				String(fmt.Sprintf("%d/%d", sub.clear, sub.protected)),
			})
		}
		ps.add("", t)
	}
	return ps, nil
}

// sencWithSubsamples tries each IV width against its own view of data and
// keeps the first that consumes every byte.
func sencWithSubsamples(data []byte, count int) ([]sencSample, error) {
	for _, w := range ivWidths {
		if samples, ok := sencAttempt(data, count, w); ok {
			return samples, nil
		}
	}
	return nil, ErrUnknownIVSize
}

func sencAttempt(data []byte, count, width int) ([]sencSample, bool) {
	r := newReader(data)
	samples := make([]sencSample, 0, count)
	for range count {
		iv := r.bytes(width)
		n := r.u16()
		if r.err != nil || n > maxEntries {
			return nil, false
		}
		s := sencSample{iv: ivString(iv), subsamples: make([]sencSubsample, 0, n)}
		for range n {
			s.subsamples = append(s.subsamples, sencSubsample{clear: r.u16(), protected: r.u32()})
		}
		samples = append(samples, s)
	}
	if r.finish() != nil {
		return nil, false
	}
	return samples, true
}

func sencWithoutSubsamples(data []byte, count int) ([]sencSample, error) {
	if count == 0 {
		if len(data) == 0 {
			return nil, nil
		}
		return nil, ErrUnknownIVSize
	}
	if len(data)%count != 0 {
		return nil, ErrUnknownIVSize
	}
	width := len(data) / count
	switch width {
	case 0:
		return nil, nil
	case 8, 16:
	default:
		return nil, ErrUnknownIVSize
	}
	samples := make([]sencSample, count)
	for i := range samples {
		samples[i].iv = ivString(data[i*width : (i+1)*width])
	}
	return samples, nil
}
