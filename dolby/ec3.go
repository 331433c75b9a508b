package dolby

import (
	"strings"
)

// EC3 is the EC3SpecificBox (dec3) payload, ETSI TS 102 366 F.6.
type EC3 struct {
	DataRate              uint16
	IndependentSubstreams []EC3Substream
}

type EC3Substream struct {
	Fscod     uint8
	Bsid      uint8
	Asvc      uint8
	Bsmod     uint8
	Acmod     uint8
	Lfeon     uint8
	NumDepSub uint8
	// ChanLoc is set only when NumDepSub > 0.
	ChanLoc *uint16
}

var chanLocNames = [...]string{"Lc/Rc", "Lrs/Rrs", "Cs", "Ts", "Lsd/Rsd", "Lw/Rw", "Lvh/Rvh", "Cvh", "LFE2"}

// ChanLocNames lists the channel locations set in the substream's chan_loc
// bitmask, lowest bit first.
func (s EC3Substream) ChanLocNames() []string {
	if s.ChanLoc == nil {
		return nil
	}
	var names []string
	for i, n := range chanLocNames {
		if *s.ChanLoc>>i&1 == 1 {
			names = append(names, n)
		}
	}
	return names
}

// ChanLocString renders chan_loc as nine binary digits followed by the
// location names.
func (s EC3Substream) ChanLocString() string {
	if s.ChanLoc == nil {
		return ""
	}
	var sb strings.Builder
	for i := 8; i >= 0; i-- {
		sb.WriteByte('0' + byte(*s.ChanLoc>>i&1))
	}
	sb.WriteString(" (")
	sb.WriteString(strings.Join(s.ChanLocNames(), " + "))
	sb.WriteByte(')')
	return sb.String()
}

// ParseEC3 decodes a dec3 payload. Bytes after the last substream are
// reserved and ignored.
func ParseEC3(b []byte) (EC3, error) {
	r := newBitReader(b)
	e := EC3{DataRate: uint16(r.read(13))}
	n := int(r.read(3)) + 1
	for range n {
		s := EC3Substream{
			Fscod: uint8(r.read(2)),
			Bsid:  uint8(r.read(5)),
		}
		r.read(1)
		s.Asvc = uint8(r.read(1))
		s.Bsmod = uint8(r.read(3))
		s.Acmod = uint8(r.read(3))
		s.Lfeon = uint8(r.read(1))
		r.read(3)
		s.NumDepSub = uint8(r.read(4))
		if s.NumDepSub > 0 {
			v := uint16(r.read(9))
			s.ChanLoc = &v
		} else {
			r.read(1)
		}
		if r.err != nil {
			return EC3{}, r.err
		}
		e.IndependentSubstreams = append(e.IndependentSubstreams, s)
	}
	return e, nil
}
