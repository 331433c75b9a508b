// Package mp4 walks ISO Base Media File Format (MP4) boxes and describes each
// one as an ordered list of display properties.
package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var be = binary.BigEndian

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// newBoxType creates a BoxType from a 4-character string.
func newBoxType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// Known box types.
var (
	TypeFtyp = newBoxType("ftyp")
	TypeStyp = newBoxType("styp")
	TypeMoov = newBoxType("moov")
	TypeMvhd = newBoxType("mvhd")
	TypeTrak = newBoxType("trak")
	TypeTkhd = newBoxType("tkhd")
	TypeEdts = newBoxType("edts")
	TypeElst = newBoxType("elst")
	TypeMdia = newBoxType("mdia")
	TypeMdhd = newBoxType("mdhd")
	TypeHdlr = newBoxType("hdlr")
	TypeMinf = newBoxType("minf")
	TypeVmhd = newBoxType("vmhd")
	TypeSmhd = newBoxType("smhd")
	TypeDinf = newBoxType("dinf")
	TypeDref = newBoxType("dref")
	TypeStbl = newBoxType("stbl")
	TypeStsd = newBoxType("stsd")
	TypeStts = newBoxType("stts")
	TypeCtts = newBoxType("ctts")
	TypeStsc = newBoxType("stsc")
	TypeStsz = newBoxType("stsz")
	TypeStco = newBoxType("stco")
	TypeCo64 = newBoxType("co64")
	TypeStss = newBoxType("stss")
	TypeSbgp = newBoxType("sbgp")
	TypeSgpd = newBoxType("sgpd")
	TypeSubs = newBoxType("subs")
	TypeSaiz = newBoxType("saiz")
	TypeSaio = newBoxType("saio")
	TypeMvex = newBoxType("mvex")
	TypeMehd = newBoxType("mehd")
	TypeTrex = newBoxType("trex")
	TypeMoof = newBoxType("moof")
	TypeMfhd = newBoxType("mfhd")
	TypeTraf = newBoxType("traf")
	TypeTfhd = newBoxType("tfhd")
	TypeTfdt = newBoxType("tfdt")
	TypeTrun = newBoxType("trun")
	TypeMfra = newBoxType("mfra")
	TypeTfra = newBoxType("tfra")
	TypeMfro = newBoxType("mfro")
	TypeSidx = newBoxType("sidx")
	TypeEmsg = newBoxType("emsg")
	TypePrft = newBoxType("prft")
	TypeMeta = newBoxType("meta")
	TypeUdta = newBoxType("udta")
	TypeIlst = newBoxType("ilst")
	TypeMdat = newBoxType("mdat")
	TypeFree = newBoxType("free")
	TypeSkip = newBoxType("skip")

	TypeAvc1 = newBoxType("avc1")
	TypeHev1 = newBoxType("hev1")
	TypeHvc1 = newBoxType("hvc1")
	TypeVp08 = newBoxType("vp08")
	TypeVp09 = newBoxType("vp09")
	TypeAv01 = newBoxType("av01")
	TypeUncv = newBoxType("uncv")
	TypeEncv = newBoxType("encv")
	TypeMp4a = newBoxType("mp4a")
	TypeOpus = newBoxType("Opus")
	TypeAc3  = newBoxType("ac-3")
	TypeEc3  = newBoxType("ec-3")
	TypeAc4  = newBoxType("ac-4")
	TypeEnca = newBoxType("enca")

	TypeAvcC = newBoxType("avcC")
	TypeHvcC = newBoxType("hvcC")
	TypeVpcC = newBoxType("vpcC")
	TypeAv1C = newBoxType("av1C")
	TypeDOps = newBoxType("dOps")
	TypeEsds = newBoxType("esds")
	TypeBtrt = newBoxType("btrt")
	TypePasp = newBoxType("pasp")
	TypeColr = newBoxType("colr")
	TypeDac3 = newBoxType("dac3")
	TypeDec3 = newBoxType("dec3")
	TypeDac4 = newBoxType("dac4")
	TypeLac4 = newBoxType("lac4")

	TypeSinf = newBoxType("sinf")
	TypeFrma = newBoxType("frma")
	TypeSchm = newBoxType("schm")
	TypeSchi = newBoxType("schi")
	TypeTenc = newBoxType("tenc")
	TypeSenc = newBoxType("senc")
	TypePssh = newBoxType("pssh")

	TypeIprp = newBoxType("iprp")
	TypeIpco = newBoxType("ipco")
	TypeIpma = newBoxType("ipma")
	TypeIinf = newBoxType("iinf")
	TypeIloc = newBoxType("iloc")
	TypeIref = newBoxType("iref")
	TypeIdat = newBoxType("idat")
	TypePitm = newBoxType("pitm")
	TypeIspe = newBoxType("ispe")
	TypeIrot = newBoxType("irot")
	TypeImir = newBoxType("imir")
	TypePixi = newBoxType("pixi")
	TypeAuxC = newBoxType("auxC")
	TypeClap = newBoxType("clap")
	TypeIscl = newBoxType("iscl")
	TypeCcst = newBoxType("ccst")
	TypeRref = newBoxType("rref")
	TypeInfe = newBoxType("infe")
)

// Header is a decoded box header.
type Header struct {
	Type BoxType
	// Size is the total box size including the header. For boxes that
	// extend to the end of the buffer it is resolved against the buffer.
	Size       uint64
	HeaderSize int
	// ToEnd is set when the declared size was 0.
	ToEnd bool
}

// BodySize returns the number of bytes following the header.
func (h Header) BodySize() int {
	return int(h.Size) - h.HeaderSize
}

var (
	errShortHeader = errors.New("need at least 8 bytes")
	errShortLarge  = errors.New("need at least 16 bytes for extended size")
)

// ReadHeader decodes the box header at buf[pos:].
// A declared size of 1 selects the 64-bit extended size that follows the
// type; a declared size of 0 means the box runs to the end of buf.
func ReadHeader(buf []byte, pos int) (Header, error) {
	avail := len(buf) - pos
	if avail < 8 {
		return Header{}, &StructuralError{Offset: pos, Err: errShortHeader}
	}

	h := Header{HeaderSize: 8}
	size := uint64(be.Uint32(buf[pos:]))
	copy(h.Type[:], buf[pos+4:])

	switch size {
	case 0:
		h.ToEnd = true
		size = uint64(avail)
	case 1:
		if avail < 16 {
			return h, &StructuralError{Type: h.Type, Offset: pos, Err: errShortLarge}
		}
		size = be.Uint64(buf[pos+8:])
		h.HeaderSize = 16
	}

	if size < uint64(h.HeaderSize) {
		return h, &StructuralError{Type: h.Type, Offset: pos,
			Err: fmt.Errorf("declared size %d smaller than header", size)}
	}
	if size > uint64(avail) {
		return h, &StructuralError{Type: h.Type, Offset: pos,
			Err: fmt.Errorf("data too short (need %d, have %d)", size, avail)}
	}
	h.Size = size
	return h, nil
}
