package mp4

// decoded is the result of decoding one box body. children is the offset
// into the body where child boxes start, or -1 for leaf boxes.
type decoded struct {
	props    PropertySet
	children int
}

func leaf(ps PropertySet) decoded {
	return decoded{props: ps, children: -1}
}

// containerDef describes a box whose body holds child boxes.
type containerDef struct {
	name string
	// full containers start with version and flags.
	full bool
	// entryCount containers carry a 32-bit child count after the flags.
	entryCount bool
}

var containers = map[BoxType]containerDef{
	TypeMeta: {name: "MetaBox", full: true},
	TypeIprp: {name: "ItemPropertiesBox"},
	TypeIpco: {name: "ItemPropertyContainerBox"},
	TypeIlst: {name: "MetadataItemList"},
	TypeMoov: {name: "MovieBox"},
	TypeUdta: {name: "UserDataBox"},
	TypeTrak: {name: "TrackBox"},
	TypeMdia: {name: "MediaBox"},
	TypeMinf: {name: "MediaInformationBox"},
	TypeStbl: {name: "SampleTableBox"},
	TypeStsd: {name: "SampleDescriptionBox", full: true, entryCount: true},
	TypeDinf: {name: "DataInformationBox"},
	TypeEdts: {name: "EditBox"},
	TypeMvex: {name: "MovieExtendsBox"},
	TypeMoof: {name: "MovieFragmentBox"},
	TypeTraf: {name: "TrackFragmentBox"},
	TypeMfra: {name: "MovieFragmentRandomAccessBox"},
	TypeSinf: {name: "ProtectionSchemeInfoBox"},
	TypeSchi: {name: "SchemeInformationBox"},
}

var visualEntries = map[BoxType]string{
	TypeAvc1: "AVCSampleEntryBox",
	TypeHev1: "HEVCSampleEntryBox",
	TypeHvc1: "HEVCSampleEntryBox",
	TypeVp08: "VP08SampleEntryBox",
	TypeVp09: "VP09SampleEntryBox",
	TypeAv01: "AV1SampleEntryBox",
	TypeUncv: "UncompressedFrameSampleEntryBox",
	TypeEncv: "EncryptedVisualSampleEntryBox",
}

var audioEntries = map[BoxType]string{
	TypeMp4a: "MP4AudioSampleEntryBox",
	TypeOpus: "OpusSampleEntryBox",
	TypeAc3:  "AC3SampleEntryBox",
	TypeEc3:  "EC3SampleEntryBox",
	TypeAc4:  "AC4SampleEntryBox",
	TypeEnca: "EncryptedAudioSampleEntryBox",
}

const (
	visualEntrySize = 78
	audioEntrySize  = 28
)

func decodeBox(h Header, body []byte) (decoded, error) {
	if def, ok := containers[h.Type]; ok {
		return decodeContainer(h, def, body)
	}
	if name, ok := visualEntries[h.Type]; ok {
		return decodeVisualEntry(name, body)
	}
	if name, ok := audioEntries[h.Type]; ok {
		return decodeAudioEntry(name, body)
	}
	if h.Type == TypeMdat {
		return leaf(newPropertySet("MediaDataBox")), nil
	}
	if fn := getCodec(h.Type); fn != nil {
		ps, err := fn(h, body)
		return leaf(ps), err
	}
	ps, err := decodeGeneral(h, body)
	return leaf(ps), err
}

func decodeContainer(h Header, def containerDef, body []byte) (decoded, error) {
	ps := newPropertySet(def.name)
	// QuickTime writes meta as a plain box whose first child is hdlr.
	if !def.full || (h.Type == TypeMeta && len(body) >= 8 && BoxType(body[4:8]) == TypeHdlr) {
		return decoded{props: ps, children: 0}, nil
	}

	r := newReader(body)
	vf := r.bytes(4)
	if def.entryCount {
		r.skip(4)
	}
	if r.err != nil {
		return decoded{}, r.err
	}
	ps.add("version", U8(vf[0]))
	ps.add("flags", BinaryMask(vf[1:4]))
	return decoded{props: ps, children: r.pos}, nil
}

// decodeVisualEntry reads the fields shared by all visual sample entries.
// Codec configuration boxes follow as children.
func decodeVisualEntry(name string, body []byte) (decoded, error) {
	r := newReader(body)
	r.skip(6)
	dataRefIndex := r.u16()
	r.skip(16)
	width := r.u16()
	height := r.u16()
	hres := r.u32()
	vres := r.u32()
	r.skip(4)
	frameCount := r.u16()
	compressor := r.bytes(32)
	depth := r.u16()
	r.skip(2)
	if r.err != nil {
		return decoded{}, r.err
	}

	n := min(int(compressor[0]), 31)

	ps := newPropertySet(name)
	ps.add("data_reference_index", U16(dataRefIndex))
	ps.add("width", U16(width))
	ps.add("height", U16(height))
	ps.add("horizresolution", String(fixed16(hres)))
	ps.add("vertresolution", String(fixed16(vres)))
	ps.add("frame_count", U16(frameCount))
	ps.add("compressor", String(lossy(compressor[1:1+n])))
	ps.add("depth", U16(depth))
	return decoded{props: ps, children: visualEntrySize}, nil
}

// decodeAudioEntry reads the fields shared by all audio sample entries.
func decodeAudioEntry(name string, body []byte) (decoded, error) {
	r := newReader(body)
	r.skip(6)
	dataRefIndex := r.u16()
	r.skip(8)
	channels := r.u16()
	sampleSize := r.u16()
	r.skip(4)
	sampleRate := r.u32()
	if r.err != nil {
		return decoded{}, r.err
	}

	ps := newPropertySet(name)
	ps.add("data_reference_index", U16(dataRefIndex))
	ps.add("channel_count", U16(channels))
	ps.add("sample_size", U16(sampleSize))
	ps.add("sample_rate", String(fixed16(sampleRate)))
	return decoded{props: ps, children: audioEntrySize}, nil
}
