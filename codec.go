package mp4

import (
	"fmt"
)

// decodeFunc decodes a complete leaf box body.
type decodeFunc func(h Header, body []byte) (PropertySet, error)

var codecs map[BoxType]decodeFunc

func getCodec(t BoxType) decodeFunc {
	return codecs[t]
}

func init() {
	codecs = map[BoxType]decodeFunc{
		TypePrft: decodePrft,
		TypeFrma: decodeFrma,
		TypeSchm: decodeSchm,
		TypeLac4: decodeLac4,
		TypeColr: decodeColr,
		TypeDref: decodeDref,
		TypeSgpd: decodeSgpd,
		TypeSubs: decodeSubs,
		TypeEsds: decodeEsds,
		TypeTenc: decodeTenc,
		TypeSenc: decodeSenc,
		TypePssh: decodePssh,
		TypeDac3: decodeDac3,
		TypeDec3: decodeDec3,
		TypeDac4: decodeDac4,
		TypePitm: decodePitm,
		TypeIspe: decodeIspe,
		TypeIrot: decodeIrot,
		TypeImir: decodeImir,
		TypePixi: decodePixi,
		TypeAuxC: decodeAuxC,
		TypeClap: decodeClap,
		TypeIscl: decodeIscl,
		TypeIdat: decodeIdat,
		TypeIref: decodeIref,
		TypeIpma: decodeIpma,
		TypeIinf: decodeIinf,
		TypeIloc: decodeIloc,
		TypeCcst: decodeCcst,
		TypeRref: decodeRref,
	}
}

// --- prft ---

const (
	prftEncoderInput  = 0x00
	prftEncoderOutput = 0x01
	prftFinalized     = 0x02
	prftWritten       = 0x04
	prftArbitrary     = 0x08
	prftRealTime      = 0x18
)

func prftAssociation(flags uint32) string {
	switch flags {
	case prftEncoderInput:
		return "The UTC time is the time at which the frame belonging to the reference track " +
			"in the following movie fragment and whose presentation time is media_time " +
			"was input to the encoder."
	case prftEncoderOutput:
		return "The UTC time is the time at which the frame belonging to the reference track " +
			"in the following movie fragment and whose presentation time is `media_time` " +
			"was output from the encoder."
	case prftFinalized:
		return "The UTC time is the time at which the following MovieFragmentBox was " +
			"finalized. `media_time` is set to the presentation of the earliest frame of " +
			"the reference track in presentation order of the movie fragment."
	case prftWritten:
		return "The UTC time is the time at which the following MovieFragmentBox was written " +
			"to file. `media_time` is set to the presentation of the earliest frame of " +
			"the reference track in presentation order of the movie fragment."
	case prftArbitrary:
		return "The association between the `media_time` and UTC time is arbitrary but " +
			"consistent between multiple occurrences of this box in the same track"
	case prftRealTime:
		return "The UTC time has a consistent, small (ideally zero), offset from the real-" +
			"time of the experience depicted in the media at `media_time`"
	}
	return "The association is unknown because an unknown flag was set in the `prft` atom."
}

func decodePrft(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, flags := r.fullBox()
	trackID := r.u32()
	ntp := r.u64()
	var mediaTime uint64
	if version == 0 {
		mediaTime = uint64(r.u32())
	} else {
		mediaTime = r.u64()
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}

	ps := newPropertySet("ProducerReferenceTimeBox")
	ps.add("reference_track_id", U32(trackID))
	ps.add("ntp_timestamp", U64(ntp))
	ps.add("media_time", U64(mediaTime))
	ps.add("ntp_timestamp_media_time_association", String(prftAssociation(flags)))
	return ps, nil
}

// --- frma ---

func decodeFrma(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	format := r.fourCC()
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("OriginalFormatBox")
	ps.add("data_format", String(format.String()))
	return ps, nil
}

// --- schm ---

func decodeSchm(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	_, flags := r.fullBox()
	scheme := r.fourCC()
	version := r.u32()
	uri := None()
	if flags&1 != 0 {
		uri = String(r.cstring())
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("SchemeTypeBox")
	ps.add("scheme_type", String(scheme.String()))
	ps.add("scheme_version", U32(version))
	ps.add("scheme_uri", uri)
	return ps, nil
}

// --- lac4 ---

func decodeLac4(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	n := int(r.u16())
	lang := r.cstring()
	labels := Table{Headers: []string{"id", "label"}}
	for i := 0; i < n && r.err == nil; i++ {
		id := r.u16()
		label := r.cstring()
		labels.Rows = append(labels.Rows, []Scalar{U16(id), String(label)})
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("AC4PresentationLabelBox")
	ps.add("language_tag", String(lang))
	ps.add("labels", labels)
	return ps, nil
}

// --- colr ---

func decodeColr(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	kind := r.fourCC()
	ps := newPropertySet("ColourInformationBox")

	switch kind.String() {
	case "nclx":
		primaries := r.u16()
		transfer := r.u16()
		matrix := r.u16()
		fullRange := r.u8() == 0x80
		ps.add("colour_type", String("nclx"))
		ps.add("colour_primaries", U16(primaries))
		ps.add("transfer_characteristics", U16(transfer))
		ps.add("matrix_coefficients", U16(matrix))
		ps.add("full_range_flag", Bool(fullRange))
	case "nclc":
		primaries := r.u16()
		transfer := r.u16()
		matrix := r.u16()
		ps.add("colour_type", String("nclc"))
		ps.add("primaries_index", U16(primaries))
		ps.add("transfer_function_index", U16(transfer))
		ps.add("matrix_index", U16(matrix))
	case "prof":
		ps.add("colour_type", String("prof"))
		ps.add("profile", Data(r.rest()))
	case "rICC":
		ps.add("colour_type", String("ricc"))
		ps.add("profile", Data(r.rest()))
	default:
		ps.add("colour_type", String(kind.String()))
		ps.add("data", Data(r.rest()))
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	return ps, nil
}

// --- dref ---

var (
	typeURL = newBoxType("url ")
	typeURN = newBoxType("urn ")
)

func decodeDref(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	count := r.u32()
	urls := Table{}
	for i := uint32(0); i < count && r.err == nil; i++ {
		size := int(r.u32())
		t := r.fourCC()
		if size < 12 {
			return PropertySet{}, fmt.Errorf("dref entry %d: size %d too small", i, size)
		}
		entry := newReader(r.bytes(size - 8))
		_, flags := entry.fullBox()
		location := ""
		if flags&1 == 0 {
			switch t {
			case typeURL:
				location = entry.cstring()
			case typeURN:
				entry.cstring()
				location = entry.cstring()
			}
		}
		entry.rest()
		if entry.err != nil {
			return PropertySet{}, entry.err
		}
		urls.Rows = append(urls.Rows, []Scalar{String(location)})
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("DataReferenceBox")
	ps.add("urls", urls)
	return ps, nil
}

// --- sgpd ---

func decodeSgpd(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, flags := r.fullBox()
	grouping := r.fourCC()
	defaultLength, defaultIndex := None(), None()
	var length uint32
	if version >= 1 {
		length = r.u32()
		defaultLength = U32(length)
	}
	if version >= 2 {
		defaultIndex = U32(r.u32())
	}
	count := r.u32()
	if r.err != nil {
		return PropertySet{}, r.err
	}

	if version == 0 && count > 0 {
		if r.remaining() == 0 {
			return PropertySet{}, fmt.Errorf("sgpd: %d entries declared with no entry bytes", count)
		}
		if r.remaining()%int(count) != 0 {
			return PropertySet{}, fmt.Errorf("sgpd: %d bytes do not divide into %d entries", r.remaining(), count)
		}
		length = uint32(r.remaining() / int(count))
	}

	entries := Table{Headers: []string{"description_length", "4CC", "data"}}
	for i := uint32(0); i < count && r.err == nil; i++ {
		n := length
		if version >= 1 && length == 0 {
			n = r.u32()
		}
		data := r.bytes(int(n))
		entries.Rows = append(entries.Rows, []Scalar{U32(n), String(grouping.String()), Hex(data)})
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}

	ps := newPropertySet("SampleGroupDescriptionBox")
	ps.add("grouping_type", String(grouping.String()))
	ps.add("default_length", defaultLength)
	ps.add("default_group_description_index", defaultIndex)
	ps.add("static_group_description", Bool(flags&1 != 0))
	ps.add("static_mapping", Bool(flags&2 != 0))
	ps.add("essential", Bool(flags&4 != 0))
	ps.add("entries", entries)
	return ps, nil
}

// --- subs ---

func decodeSubs(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	flagBytes := r.bytes(4)
	count := r.u32()
	if r.err != nil {
		return PropertySet{}, r.err
	}
	version := flagBytes[0]

	entries := Table{Headers: []string{"sample_delta", "size", "priority", "discardable", "params"}}
	for i := uint32(0); i < count && r.err == nil; i++ {
		delta := r.u32()
		n := int(r.u16())
		for j := 0; j < n && r.err == nil; j++ {
			var size uint32
			if version == 1 {
				size = r.u32()
			} else {
				size = uint32(r.u16())
			}
			entries.Rows = append(entries.Rows, []Scalar{
				U32(delta), U32(size), U8(r.u8()), U8(r.u8()), Hex(r.bytes(4)),
			})
		}
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}

	ps := newPropertySet("SubSampleInformationBox")
	ps.add("flags", Hex(flagBytes[1:]))
	ps.add("entries", entries)
	return ps, nil
}
