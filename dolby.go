package mp4

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tetsuo/boxview/dolby"
)

func decodeDac3(_ Header, body []byte) (PropertySet, error) {
	a, err := dolby.ParseAC3(body)
	if err != nil {
		return PropertySet{}, err
	}
	if n := len(body) - dolby.AC3Size; n != 0 {
		return PropertySet{}, fmt.Errorf("%d bytes left after decoding", n)
	}
	ps := newPropertySet("AC3SpecificBox")
	ps.add("fscod", U8(a.Fscod))
	ps.add("bsid", U8(a.Bsid))
	ps.add("bsmod", U8(a.Bsmod))
	ps.add("acmod", U8(a.Acmod))
	ps.add("lfeon", U8(a.Lfeon))
	ps.add("bit_rate", U16(a.BitRate()))
	return ps, nil
}

func decodeDec3(_ Header, body []byte) (PropertySet, error) {
	e, err := dolby.ParseEC3(body)
	if err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("EC3SpecificBox")
	ps.add("data_rate", U16(e.DataRate))
	for i, s := range e.IndependentSubstreams {
		var t kvTable
		t.add("fscod", U8(s.Fscod))
		t.add("bsid", U8(s.Bsid))
		t.add("asvc", U8(s.Asvc))
		t.add("bsmod", U8(s.Bsmod))
		t.add("acmod", U8(s.Acmod))
		t.add("lfeon", U8(s.Lfeon))
		t.add("num_dep_sub", U8(s.NumDepSub))
		if s.ChanLoc != nil {
			t.add("chan_loc", String(s.ChanLocString()))
		}
		ps.add("independent_substream #"+strconv.Itoa(i+1), t.t)
	}
	return ps, nil
}

func decodeDac4(_ Header, body []byte) (PropertySet, error) {
	a, n, err := dolby.ParseAC4(body)
	if errors.Is(err, dolby.ErrPresentationOverrun) {
		return PropertySet{}, &UnsupportedError{Type: TypeDac4, Err: err}
	}
	if err != nil {
		return PropertySet{}, err
	}
	if n != len(body) {
		return PropertySet{}, fmt.Errorf("%d bytes left after decoding", len(body)-n)
	}

	ps := newPropertySet("AC4SpecificBox")
	ps.add("ac4_dsi_version", U8(a.DSIVersion))
	ps.add("bitstream_version", U8(a.BitstreamVersion))
	fs := int32(0)
	if a.FsIndex {
		fs = 1
	}
	ps.add("fs_index", I32(fs))
	ps.add("frame_rate_index", U8(a.FrameRateIndex))
	if a.ShortProgramID != nil {
		ps.add("short_program_id", U16(*a.ShortProgramID))
	}
	if a.ProgramUUID != nil {
		ps.add("program_uuid", String(encodeHex(a.ProgramUUID)))
	}
	ps.add("bit_rate_mode", String(a.BitRateMode.String()))
	ps.add("bit_rate", U32(a.BitRate))
	ps.add("bit_rate_precision", U32(a.BitRatePrecision))

	for i, p := range a.Presentations {
		var t kvTable
		switch {
		case p.V0 != nil:
			t.add("version", U8(0))
			ac4PresentationV0(&t, p.V0)
		case p.V1 != nil:
			t.add("version", U8(p.Version))
			ac4PresentationV1(&t, p.V1, p.Version)
		default:
			t.add("unhandled version", U8(p.Version))
		}
		ps.add("presentation #"+strconv.Itoa(i+1), t.t)
	}
	return ps, nil
}

func optU8(t *kvTable, key string, v *uint8) {
	if v != nil {
		t.add(key, U8(*v))
	}
}

func optBool(t *kvTable, key string, v *bool) {
	if v != nil {
		t.add(key, Bool(*v))
	}
}

func ac4PresentationV0(t *kvTable, p *dolby.PresentationV0) {
	t.add("config", U8(p.Config))
	optU8(t, "md_compat", p.MDCompat)
	optU8(t, "id", p.ID)
	optU8(t, "dsi_frame_rate_multiply_info", p.FrameRateMultiply)
	optU8(t, "emdf_version", p.EMDFVersion)
	if p.KeyID != nil {
		t.add("key_id", U16(*p.KeyID))
	}
	if p.ChannelMask != nil {
		t.add("channel_mask", BinaryMask(p.ChannelMask[:]))
	}
	optBool(t, "hsf_ext", p.HSFExt)
	if p.Groups != nil {
		ac4Groups(t, p.Groups)
	}
	optBool(t, "pre_virtualized", p.PreVirtualized)
	ac4EMDF(t, p.EMDF)
}

func ac4PresentationV1(t *kvTable, p *dolby.PresentationV1, version uint8) {
	t.add("config", U8(p.Config))
	optU8(t, "md_compat", p.MDCompat)
	optU8(t, "id", p.ID)
	optU8(t, "dsi_frame_rate_multiply_info", p.FrameRateMultiply)
	optU8(t, "dsi_frame_rate_fraction_info", p.FrameRateFraction)
	optU8(t, "emdf_version", p.EMDFVersion)
	if p.KeyID != nil {
		t.add("key_id", U16(*p.KeyID))
	}
	optBool(t, "channel_coded", p.ChannelCoded)
	optU8(t, "ch_mode", p.ChMode)
	optBool(t, "4_back_channels", p.BackChannels4)
	optU8(t, "top_channel_pairs", p.TopChannelPairs)
	if p.ChannelMask != nil {
		t.add("channel_mask", BinaryMask(p.ChannelMask[:]))
	}
	optBool(t, "core_differs", p.CoreDiffers)
	optBool(t, "core_channel_coded", p.CoreChannelCoded)
	optU8(t, "channel_mode_core", p.ChannelModeCore)
	optBool(t, "presentation_filter", p.Filter)
	optBool(t, "enable_presentation", p.EnablePresentation)
	if p.Filter != nil && *p.Filter {
		t.add("filter_data", Hex(p.FilterData))
	}
	optBool(t, "multi_pid", p.MultiPID)
	if p.Groups != nil {
		ac4Groups(t, p.Groups)
	}
	optBool(t, "pre_virtualized", p.PreVirtualized)
	ac4EMDF(t, p.EMDF)
	if p.BitRateMode != nil {
		t.add("bit_rate_mode", String(p.BitRateMode.String()))
	}
	if p.BitRate != nil {
		t.add("bit_rate", U32(*p.BitRate))
	}
	if p.BitRatePrecision != nil {
		t.add("bit_rate_precision", U32(*p.BitRatePrecision))
	}
	if alt := p.Alternative; alt != nil {
		t.add("alternative_info", String(""))
		t.add("name", String(alt.Name))
		if len(alt.Targets) > 0 {
			t.add("alternative_info_targets", String(""))
			for i, tg := range alt.Targets {
				t.add(fmt.Sprintf("[%d] md_compat", i), U8(tg.MDCompat))
				t.add(fmt.Sprintf("[%d] device_category", i), U8(tg.DeviceCategory))
			}
		}
	}
	optBool(t, "dialogue_enhancement", p.DialogueEnhancement)
	if version == 2 {
		optBool(t, "dolby_atmos", p.Immersive)
	} else {
		optBool(t, "immersive_audio", p.Immersive)
	}
	if p.ExtendedID != nil {
		t.add("extended_id", U16(*p.ExtendedID))
	}
}

func ac4Groups(t *kvTable, groups []dolby.SubstreamGroup) {
	if len(groups) == 0 {
		t.add("substream_groups", String("empty"))
	} else {
		t.add("substream_groups", String(fmt.Sprintf("g.len() == %d", len(groups))))
	}
	for i, g := range groups {
		t.add(fmt.Sprintf("g[%d] hsf_ext", i), Bool(g.HSFExt))
		t.add(fmt.Sprintf("g[%d] channel_coded", i), Bool(g.ChannelCoded))
		if len(g.Substreams) > 0 {
			t.add(fmt.Sprintf("g[%d] substreams", i), String(fmt.Sprintf("s.len() == %d", len(g.Substreams))))
		}
		for j, s := range g.Substreams {
			key := func(name string) string { return fmt.Sprintf("g[%d]s[%d] %s", i, j, name) }
			t.add(key("sf_multiplier"), U8(s.SFMultiplier))
			optU8(t, key("bitrate_indicator"), s.BitrateIndicator)
			if s.ChannelMask != nil {
				t.add(key("channel_mask"), BinaryMask(s.ChannelMask[:]))
			}
			if s.DmxMinus1 != nil {
				t.add(key("n_dmx_objects"), Usize(int(*s.DmxMinus1)+1))
			}
			if s.UmxMinus1 != nil {
				t.add(key("n_umx_objects"), Usize(int(*s.UmxMinus1)+1))
			}
			optBool(t, key("contains_bed_objects"), s.Bed)
			optBool(t, key("contains_dynamic_objects"), s.Dynamic)
			optBool(t, key("contains_isf_objects"), s.ISF)
		}
		if g.ContentClassifier != nil {
			t.add(fmt.Sprintf("g[%d] content_classifier", i), String(g.ContentClassifier.String()))
		}
		if g.LanguageTag != nil {
			t.add(fmt.Sprintf("g[%d] language_tag", i), String(*g.LanguageTag))
		}
	}
}

func ac4EMDF(t *kvTable, subs []dolby.EMDFSubstream) {
	if len(subs) == 0 {
		return
	}
	t.add("emdf_substreams", String(""))
	for i, s := range subs {
		t.add(fmt.Sprintf("[%d] version", i), U8(s.Version))
		t.add(fmt.Sprintf("[%d] key_id", i), U16(s.KeyID))
	}
}
