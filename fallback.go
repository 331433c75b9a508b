package mp4

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	gomp4 "github.com/abema/go-mp4"
)

// unmapped lists kinds that are recognised but have no property mapping,
// whether or not the general library can decode them.
var unmapped = map[BoxType]bool{
	TypeInfe:           true,
	newBoxType("tx3g"): true,
	newBoxType("uncC"): true,
	newBoxType("cmpd"): true,
	newBoxType("taic"): true,
	newBoxType("covr"): true,
	newBoxType("desc"): true,
	newBoxType("name"): true,
	newBoxType("year"): true,
}

// generalKinds are the go-mp4 kinds generalProperties maps. Other kinds
// go-mp4 knows, such as the QuickTime wave container, are not decoded.
var generalKinds = func() map[BoxType]bool {
	m := make(map[BoxType]bool)
	for _, s := range []string{
		"ftyp", "styp", "hdlr", "mvhd", "tkhd", "mdhd", "avcC", "hvcC", "vpcC",
		"av1C", "dOps", "btrt", "pasp", "stts", "stsc", "stsz", "stss", "stco",
		"co64", "ctts", "sbgp", "saio", "saiz", "smhd", "vmhd", "elst", "mehd",
		"trex", "emsg", "mfhd", "tfhd", "tfdt", "trun", "sidx", "free", "skip",
	} {
		m[newBoxType(s)] = true
	}
	return m
}()

// decodeGeneral hands boxes without an own codec to go-mp4 and maps the
// decoded structure to properties.
func decodeGeneral(h Header, body []byte) (PropertySet, error) {
	if unmapped[h.Type] {
		return PropertySet{}, &UnimplementedError{Type: h.Type}
	}

	bt := gomp4.BoxType(h.Type)
	var ctx gomp4.Context
	if !bt.IsSupported(ctx) {
		ps := newPropertySet("Unknown (unhandled box parsing)")
		ps.add("data", Data(body))
		return ps, nil
	}
	if !generalKinds[h.Type] {
		return PropertySet{}, &UnimplementedError{Type: h.Type}
	}

	box, n, err := gomp4.UnmarshalAny(bytes.NewReader(body), bt, uint64(len(body)), ctx)
	if errors.Is(err, gomp4.ErrUnsupportedBoxVersion) {
		return PropertySet{}, &UnsupportedError{Type: h.Type, Err: err}
	}
	if err != nil {
		return PropertySet{}, err
	}
	if left := uint64(len(body)) - n; left != 0 {
		return PropertySet{}, fmt.Errorf("%d bytes left after decoding", left)
	}

	ps, ok := generalProperties(box)
	if !ok {
		return PropertySet{}, &UnimplementedError{Type: h.Type}
	}
	return ps, nil
}

func pick(version uint8, v0 uint32, v1 uint64) uint64 {
	if version == 0 {
		return uint64(v0)
	}
	return v1
}

func matrix(m [9]int32) Table {
	t := Table{}
	for i := 0; i < 9; i += 3 {
		t.Rows = append(t.Rows, []Scalar{I32(m[i]), I32(m[i+1]), I32(m[i+2])})
	}
	return t
}

func brands(bs []gomp4.CompatibleBrandElem) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = string(b.CompatibleBrand[:])
	}
	return strings.Join(parts, ", ")
}

// language decodes the packed ISO-639-2/T code of mdhd.
func language(l [3]byte) string {
	var b [3]byte
	for i, c := range l {
		b[i] = c + 0x60
	}
	return string(b[:])
}

func parameterSets(sets []gomp4.AVCParameterSet) Table {
	t := Table{}
	for _, s := range sets {
		t.Rows = append(t.Rows, []Scalar{Hex(s.NALUnit)})
	}
	return t
}

const (
	tfhdBaseDataOffset   = 0x000001
	tfhdSampleDescIndex  = 0x000002
	tfhdDefaultDuration  = 0x000008
	tfhdDefaultSize      = 0x000010
	tfhdDefaultFlags     = 0x000020
	trunDataOffset       = 0x000001
	trunFirstSampleFlags = 0x000004
	trunSampleDuration   = 0x000100
	trunSampleSize       = 0x000200
	trunSampleFlags      = 0x000400
	trunSampleCTS        = 0x000800
)

func optU32(present bool, v uint32) Scalar {
	if !present {
		return None()
	}
	return U32(v)
}

func generalProperties(box gomp4.IBox) (PropertySet, bool) {
	var ps PropertySet
	switch b := box.(type) {
	case *gomp4.Ftyp:
		ps = newPropertySet("FileTypeBox")
		ps.add("major_brand", String(string(b.MajorBrand[:])))
		ps.add("minor_version", U32(b.MinorVersion))
		ps.add("compatible_brands", String(brands(b.CompatibleBrands)))
	case *gomp4.Styp:
		ps = newPropertySet("SegmentTypeBox")
		ps.add("major_brand", String(string(b.MajorBrand[:])))
		ps.add("minor_version", U32(b.MinorVersion))
		ps.add("compatible_brands", String(brands(b.CompatibleBrands)))
	case *gomp4.Hdlr:
		ps = newPropertySet("HandlerBox")
		ps.add("handler", String(string(b.HandlerType[:])))
		ps.add("name", String(strings.TrimRight(b.Name, "\x00")))
	case *gomp4.Mvhd:
		v := b.GetVersion()
		ps = newPropertySet("MovieHeaderBox")
		ps.add("creation_time", U64(pick(v, b.CreationTimeV0, b.CreationTimeV1)))
		ps.add("modification_time", U64(pick(v, b.ModificationTimeV0, b.ModificationTimeV1)))
		ps.add("timescale", U32(b.Timescale))
		ps.add("duration", U64(pick(v, b.DurationV0, b.DurationV1)))
		ps.add("rate", String(fixed16s(b.Rate)))
		ps.add("volume", String(fixed8(b.Volume)))
		ps.add("matrix", matrix(b.Matrix))
		ps.add("next_track_id", U32(b.NextTrackID))
	case *gomp4.Tkhd:
		v := b.GetVersion()
		ps = newPropertySet("TrackHeaderBox")
		ps.add("creation_time", U64(pick(v, b.CreationTimeV0, b.CreationTimeV1)))
		ps.add("modification_time", U64(pick(v, b.ModificationTimeV0, b.ModificationTimeV1)))
		ps.add("track_id", U32(b.TrackID))
		ps.add("duration", U64(pick(v, b.DurationV0, b.DurationV1)))
		ps.add("layer", I16(b.Layer))
		ps.add("alternate_group", I16(b.AlternateGroup))
		ps.add("enabled", Bool(b.GetFlags()&1 != 0))
		ps.add("volume", String(fixed8(b.Volume)))
		ps.add("matrix", matrix(b.Matrix))
		ps.add("width", String(fixed16(b.Width)))
		ps.add("height", String(fixed16(b.Height)))
	case *gomp4.Mdhd:
		v := b.GetVersion()
		ps = newPropertySet("MediaHeaderBox")
		ps.add("creation_time", U64(pick(v, b.CreationTimeV0, b.CreationTimeV1)))
		ps.add("modification_time", U64(pick(v, b.ModificationTimeV0, b.ModificationTimeV1)))
		ps.add("timescale", U32(b.Timescale))
		ps.add("duration", U64(pick(v, b.DurationV0, b.DurationV1)))
		ps.add("language", String(language(b.Language)))
	case *gomp4.AVCDecoderConfiguration:
		ps = newPropertySet("AVCConfigurationBox")
		ps.add("configuration_version", U8(b.ConfigurationVersion))
		ps.add("avc_profile_indication", U8(b.Profile))
		ps.add("profile_compatibility", U8(b.ProfileCompatibility))
		ps.add("avc_level_indication", U8(b.Level))
		ps.add("length_size", U8(b.LengthSizeMinusOne+1))
		ps.add("sequence_parameter_sets", parameterSets(b.SequenceParameterSets))
		ps.add("picture_parameter_sets", parameterSets(b.PictureParameterSets))
		if b.HighProfileFieldsEnabled {
			ps.add("ext_chroma_format", U8(b.ChromaFormat))
			ps.add("ext_bit_depth_luma", U8(b.BitDepthLumaMinus8+8))
			ps.add("ext_bit_depth_chroma", U8(b.BitDepthChromaMinus8+8))
			ps.add("ext_sequence_parameter_sets", parameterSets(b.SequenceParameterSetsExt))
		} else {
			ps.add("ext_chroma_format", None())
			ps.add("ext_bit_depth_luma", None())
			ps.add("ext_bit_depth_chroma", None())
			ps.add("ext_sequence_parameter_sets", None())
		}
	case *gomp4.HvcC:
		ps = hvcCProperties(b)
	case *gomp4.VpcC:
		ps = newPropertySet("VPCodecConfigurationBox")
		ps.add("profile", U8(b.Profile))
		ps.add("level", U8(b.Level))
		ps.add("bit_depth", U8(b.BitDepth))
		ps.add("chroma_subsampling", U8(b.ChromaSubsampling))
		ps.add("video_full_range_flag", Bool(b.VideoFullRangeFlag != 0))
		ps.add("color_primaries", U8(b.ColourPrimaries))
		ps.add("transfer_characteristics", U8(b.TransferCharacteristics))
		ps.add("matrix_coefficients", U8(b.MatrixCoefficients))
		ps.add("codec_initialization_data", Hex(b.CodecInitializationData))
	case *gomp4.Av1C:
		ps = newPropertySet("AV1CodecConfigurationBox")
		ps.add("seq_profile", U8(b.SeqProfile))
		ps.add("seq_level_idx_0", U8(b.SeqLevelIdx0))
		ps.add("seq_tier_0", Bool(b.SeqTier0 != 0))
		ps.add("high_bitdepth", Bool(b.HighBitdepth != 0))
		ps.add("twelve_bit", Bool(b.TwelveBit != 0))
		ps.add("monochrome", Bool(b.Monochrome != 0))
		ps.add("chroma_subsampling_x", Bool(b.ChromaSubsamplingX != 0))
		ps.add("chroma_subsampling_y", Bool(b.ChromaSubsamplingY != 0))
		ps.add("chroma_sample_position", U8(b.ChromaSamplePosition))
		if b.InitialPresentationDelayPresent != 0 {
			ps.add("initial_presentation_delay", U8(b.InitialPresentationDelayMinusOne+1))
		} else {
			ps.add("initial_presentation_delay", None())
		}
		ps.add("config_obus", Hex(b.ConfigOBUs))
	case *gomp4.DOps:
		ps = newPropertySet("OpusSpecificBox")
		ps.add("output_channel_count", U8(b.OutputChannelCount))
		ps.add("pre_skip", U16(b.PreSkip))
		ps.add("input_sample_rate", U32(b.InputSampleRate))
		ps.add("output_gain", I16(b.OutputGain))
	case *gomp4.Btrt:
		ps = newPropertySet("BitRateBox")
		ps.add("buffer_size_db", U32(b.BufferSizeDB))
		ps.add("max_bitrate", U32(b.MaxBitrate))
		ps.add("avg_bitrate", U32(b.AvgBitrate))
	case *gomp4.PixelAspectRatioBox:
		ps = newPropertySet("PixelAspectRatioBox")
		ps.add("h_spacing", U32(b.HSpacing))
		ps.add("v_spacing", U32(b.VSpacing))
	default:
		return sampleTableProperties(box)
	}
	return ps, true
}

func hvcCProperties(b *gomp4.HvcC) PropertySet {
	var compat [4]uint8
	for i, set := range b.GeneralProfileCompatibility {
		if set {
			compat[i/8] |= 0x80 >> (i % 8)
		}
	}
	ps := newPropertySet("HEVCConfigurationBox")
	ps.add("configuration_version", U8(b.ConfigurationVersion))
	ps.add("general_profile_space", U8(b.GeneralProfileSpace))
	ps.add("general_tier_flag", Bool(b.GeneralTierFlag))
	ps.add("general_profile_idc", U8(b.GeneralProfileIdc))
	ps.add("general_profile_compatibility_flags", String(joinUints(compat[:])))
	ps.add("general_constraint_indicator_flags", String(joinUints(b.GeneralConstraintIndicator[:])))
	ps.add("general_level_idc", U8(b.GeneralLevelIdc))
	ps.add("min_spatial_segmentation_idc", U16(b.MinSpatialSegmentationIdc))
	ps.add("parallelism_type", U8(b.ParallelismType))
	ps.add("chroma_format_idc", U8(b.ChromaFormatIdc))
	ps.add("bit_depth_luma_minus8", U8(b.BitDepthLumaMinus8))
	ps.add("bit_depth_chroma_minus8", U8(b.BitDepthChromaMinus8))
	ps.add("avg_frame_rate", U16(b.AvgFrameRate))
	ps.add("constant_frame_rate", U8(b.ConstantFrameRate))
	ps.add("num_temporal_layers", U8(b.NumTemporalLayers))
	ps.add("temporal_id_nested", Bool(b.TemporalIdNested != 0))
	ps.add("length_size_minus_one", U8(b.LengthSizeMinusOne))

	arrays := Table{Headers: []string{"completeness", "nal_unit_type", "nalus"}}
	for _, a := range b.NaluArrays {
		var nalus []byte
		for _, n := range a.Nalus {
			nalus = append(nalus, n.NALUnit...)
		}
		arrays.Rows = append(arrays.Rows, []Scalar{Bool(a.Completeness), U8(a.NaluType), Hex(nalus)})
	}
	ps.add("arrays", arrays)
	return ps
}

func sampleTableProperties(box gomp4.IBox) (PropertySet, bool) {
	var ps PropertySet
	switch b := box.(type) {
	case *gomp4.Stts:
		t := Table{Headers: []string{"count", "delta"}}
		for _, e := range b.Entries {
			t.Rows = append(t.Rows, []Scalar{U32(e.SampleCount), U32(e.SampleDelta)})
		}
		ps = newPropertySet("TimeToSampleBox")
		ps.add("entries", t)
	case *gomp4.Stsc:
		t := Table{Headers: []string{"first_chunk", "samples_per_chunk", "sample_description_index"}}
		for _, e := range b.Entries {
			t.Rows = append(t.Rows, []Scalar{U32(e.FirstChunk), U32(e.SamplesPerChunk), U32(e.SampleDescriptionIndex)})
		}
		ps = newPropertySet("SampleToChunkBox")
		ps.add("entries", t)
	case *gomp4.Stsz:
		ps = newPropertySet("SampleSizeBox")
		if b.SampleSize != 0 {
			ps.add("sample_count", U32(b.SampleCount))
			ps.add("sample_size", U32(b.SampleSize))
		} else {
			ps.add("sample_count", Usize(len(b.EntrySize)))
			ps.add("sample_sizes", String(joinUints(b.EntrySize)))
		}
	case *gomp4.Stss:
		ps = newPropertySet("SyncSampleBox")
		ps.add("entries", String(joinUints(b.SampleNumber)))
	case *gomp4.Stco:
		ps = newPropertySet("ChunkOffsetBox")
		ps.add("entries", String(joinUints(b.ChunkOffset)))
	case *gomp4.Co64:
		ps = newPropertySet("ChunkLargeOffsetBox")
		ps.add("entries", String(joinUints(b.ChunkOffset)))
	case *gomp4.Ctts:
		parts := make([]string, len(b.Entries))
		for i, e := range b.Entries {
			var off int64
			if b.GetVersion() == 0 {
				off = int64(e.SampleOffsetV0)
			} else {
				off = int64(e.SampleOffsetV1)
			}
			parts[i] = fmt.Sprintf("(count: %d, offset: %d)", e.SampleCount, off)
		}
		ps = newPropertySet("CompositionOffsetBox")
		ps.add("entries", String(strings.Join(parts, ", ")))
	case *gomp4.Sbgp:
		t := Table{Headers: []string{"sample_count", "group_description_index"}}
		for _, e := range b.Entries {
			t.Rows = append(t.Rows, []Scalar{U32(e.SampleCount), U32(e.GroupDescriptionIndex)})
		}
		var gt BoxType
		be.PutUint32(gt[:], b.GroupingType)
		ps = newPropertySet("SampleToGroupBox")
		ps.add("grouping_type", String(gt.String()))
		ps.add("grouping_type_parameter", optU32(b.GetVersion() == 1, b.GroupingTypeParameter))
		ps.add("entries", t)
	case *gomp4.Saio:
		aux := b.GetFlags()&1 != 0
		ps = newPropertySet("SampleAuxiliaryInformationOffsetsBox")
		ps.add("aux_info_type", auxInfoType(aux, b.AuxInfoType))
		ps.add("aux_info_type_parameter", optU32(aux, b.AuxInfoTypeParameter))
		if b.GetVersion() == 0 {
			ps.add("offsets", String(joinUints(b.OffsetV0)))
		} else {
			ps.add("offsets", String(joinUints(b.OffsetV1)))
		}
	case *gomp4.Saiz:
		aux := b.GetFlags()&1 != 0
		ps = newPropertySet("SampleAuxiliaryInformationSizesBox")
		ps.add("aux_info_type", auxInfoType(aux, b.AuxInfoType))
		ps.add("aux_info_type_parameter", optU32(aux, b.AuxInfoTypeParameter))
		ps.add("default_sample_info_size", U8(b.DefaultSampleInfoSize))
		ps.add("sample_count", U32(b.SampleCount))
		ps.add("sample_info_size", String(joinUints(b.SampleInfoSize)))
	default:
		return fragmentProperties(box)
	}
	return ps, true
}

func auxInfoType(present bool, t [4]byte) Scalar {
	if !present {
		return None()
	}
	return String(string(t[:]))
}

func fragmentProperties(box gomp4.IBox) (PropertySet, bool) {
	var ps PropertySet
	switch b := box.(type) {
	case *gomp4.Smhd:
		ps = newPropertySet("SoundMediaHeaderBox")
		ps.add("balance", String(fixed8(b.Balance)))
	case *gomp4.Vmhd:
		ps = newPropertySet("VideoMediaHeaderBox")
		ps.add("graphics_mode", U16(b.Graphicsmode))
		ps.add("op_color", String(fmt.Sprintf("r:%d, g:%d, b:%d", b.Opcolor[0], b.Opcolor[1], b.Opcolor[2])))
	case *gomp4.Elst:
		t := Table{Headers: []string{"segment_duration", "media_time", "media_rate", "media_rate_fraction"}}
		for _, e := range b.Entries {
			dur, mt := uint64(e.SegmentDurationV0), int64(e.MediaTimeV0)
			if b.GetVersion() != 0 {
				dur, mt = e.SegmentDurationV1, e.MediaTimeV1
			}
			t.Rows = append(t.Rows, []Scalar{U64(dur), I64(mt), I16(e.MediaRateInteger), I16(e.MediaRateFraction)})
		}
		ps = newPropertySet("EditListBox")
		ps.add("entries", t)
	case *gomp4.Mehd:
		ps = newPropertySet("MovieExtendsHeaderBox")
		ps.add("fragment_duration", U64(pick(b.GetVersion(), b.FragmentDurationV0, b.FragmentDurationV1)))
	case *gomp4.Trex:
		ps = newPropertySet("TrackExtendsBox")
		ps.add("track_id", U32(b.TrackID))
		ps.add("default_sample_description_index", U32(b.DefaultSampleDescriptionIndex))
		ps.add("default_sample_duration", U32(b.DefaultSampleDuration))
		ps.add("default_sample_size", U32(b.DefaultSampleSize))
		ps.add("default_sample_flags", U32(b.DefaultSampleFlags))
	case *gomp4.Emsg:
		ps = newPropertySet("EventMessageBox")
		ps.add("timescale", U32(b.Timescale))
		if b.GetVersion() == 0 {
			ps.add("presentation_time_delta", U32(b.PresentationTimeDelta))
		} else {
			ps.add("presentation_time", U64(b.PresentationTime))
		}
		ps.add("event_duration", U32(b.EventDuration))
		ps.add("id", U32(b.Id))
		ps.add("scheme_id_uri", String(b.SchemeIdUri))
		ps.add("value", String(b.Value))
		ps.add("message_data", String(lossy(b.MessageData)))
	case *gomp4.Mfhd:
		ps = newPropertySet("MovieFragmentHeaderBox")
		ps.add("sequence_number", U32(b.SequenceNumber))
	case *gomp4.Tfhd:
		f := b.GetFlags()
		ps = newPropertySet("TrackFragmentHeaderBox")
		ps.add("track_id", U32(b.TrackID))
		if f&tfhdBaseDataOffset != 0 {
			ps.add("base_data_offset", U64(b.BaseDataOffset))
		} else {
			ps.add("base_data_offset", None())
		}
		ps.add("sample_description_index", optU32(f&tfhdSampleDescIndex != 0, b.SampleDescriptionIndex))
		ps.add("default_sample_duration", optU32(f&tfhdDefaultDuration != 0, b.DefaultSampleDuration))
		ps.add("default_sample_size", optU32(f&tfhdDefaultSize != 0, b.DefaultSampleSize))
		ps.add("default_sample_flags", optU32(f&tfhdDefaultFlags != 0, b.DefaultSampleFlags))
	case *gomp4.Tfdt:
		ps = newPropertySet("TrackFragmentBaseMediaDecodeTimeBox")
		ps.add("base_media_decode_time", U64(pick(b.GetVersion(), b.BaseMediaDecodeTimeV0, b.BaseMediaDecodeTimeV1)))
	case *gomp4.Trun:
		ps = trunProperties(b)
	case *gomp4.Sidx:
		ps = sidxProperties(b)
	case *gomp4.Free, *gomp4.Skip:
		ps = newPropertySet("FreeSpaceBox")
	default:
		return PropertySet{}, false
	}
	return ps, true
}

func trunProperties(b *gomp4.Trun) PropertySet {
	f := b.GetFlags()
	t := Table{Headers: []string{"#", "duration", "size", "flags", "cts"}}
	for i, e := range b.Entries {
		flags := None()
		switch {
		case f&trunSampleFlags != 0:
			flags = String(sampleFlags(e.SampleFlags))
		case i == 0 && f&trunFirstSampleFlags != 0:
			flags = String(sampleFlags(b.FirstSampleFlags))
		}
		cts := None()
		if f&trunSampleCTS != 0 {
			if b.GetVersion() == 0 {
				cts = I64(int64(e.SampleCompositionTimeOffsetV0))
			} else {
				cts = I64(int64(e.SampleCompositionTimeOffsetV1))
			}
		}
		t.Rows = append(t.Rows, []Scalar{
			Usize(i + 1),
			optU32(f&trunSampleDuration != 0, e.SampleDuration),
			optU32(f&trunSampleSize != 0, e.SampleSize),
			flags,
			cts,
		})
	}
	ps := newPropertySet("TrackRunBox")
	if f&trunDataOffset != 0 {
		ps.add("data_offset", I32(b.DataOffset))
	} else {
		ps.add("data_offset", None())
	}
	ps.add("sample_count", Usize(len(b.Entries)))
	ps.add("entries", t)
	return ps
}

func sampleFlags(v uint32) string {
	var b [4]byte
	be.PutUint32(b[:], v)
	return HexDump(b[:])
}

func sidxProperties(b *gomp4.Sidx) PropertySet {
	v := b.GetVersion()
	t := Table{Headers: []string{
		"reference_type", "referenced_size", "subsegment_duration",
		"starts_with_sap", "sap_type", "sap_delta_time",
	}}
	for _, r := range b.References {
		typ := "media"
		if r.ReferenceType {
			typ = "index"
		}
		t.Rows = append(t.Rows, []Scalar{
			String(typ), U32(r.ReferencedSize), U32(r.SubsegmentDuration),
			Bool(r.StartsWithSAP), U32(r.SAPType), U32(r.SAPDeltaTime),
		})
	}
	ps := newPropertySet("SegmentIndexBox")
	ps.add("reference_id", U32(b.ReferenceID))
	ps.add("timescale", U32(b.Timescale))
	ps.add("earliest_presentation_time", U64(pick(v, b.EarliestPresentationTimeV0, b.EarliestPresentationTimeV1)))
	ps.add("first_offset", U64(pick(v, b.FirstOffsetV0, b.FirstOffsetV1)))
	ps.add("references", t)
	return ps
}
