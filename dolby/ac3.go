package dolby

import (
	"io"
)

// AC3 is the AC3SpecificBox (dac3) payload, ETSI TS 102 366 F.4.
type AC3 struct {
	Fscod       uint8
	Bsid        uint8
	Bsmod       uint8
	Acmod       uint8
	Lfeon       uint8
	BitRateCode uint8
}

// AC3Size is the fixed size of a dac3 payload.
const AC3Size = 3

var ac3BitRates = [...]uint16{32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 448, 512, 576, 640}

// ParseAC3 decodes the first three bytes of b.
func ParseAC3(b []byte) (AC3, error) {
	if len(b) < AC3Size {
		return AC3{}, io.ErrUnexpectedEOF
	}
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return AC3{
		Fscod:       uint8(v >> 22 & 0x03),
		Bsid:        uint8(v >> 17 & 0x1f),
		Bsmod:       uint8(v >> 14 & 0x07),
		Acmod:       uint8(v >> 11 & 0x07),
		Lfeon:       uint8(v >> 10 & 0x01),
		BitRateCode: uint8(v >> 5 & 0x1f),
	}, nil
}

// BitRate returns the nominal bit rate in kbit/s, or 0 for codes outside
// the table.
func (a AC3) BitRate() uint16 {
	if int(a.BitRateCode) < len(ac3BitRates) {
		return ac3BitRates[a.BitRateCode]
	}
	return 0
}
