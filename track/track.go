// Package track summarises the tracks of a walked MP4 buffer: ids, timing,
// codec strings and protection.
package track

import (
	"fmt"
	"strconv"
	"strings"

	mp4 "github.com/tetsuo/boxview"
)

// TrackKind distinguishes video and audio tracks.
type TrackKind int

const (
	TrackOther TrackKind = iota
	TrackVideo
	TrackAudio
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	}
	return "other"
}

func (k TrackKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Track holds the facts about one track gathered from trak and traf boxes.
type Track struct {
	ID        uint32    `json:"id"`
	Kind      TrackKind `json:"kind"`
	Handler   string    `json:"handler,omitempty"`
	TimeScale uint32    `json:"timescale,omitempty"`
	Duration  uint64    `json:"duration,omitempty"`
	Language  string    `json:"language,omitempty"`

	Width        uint16 `json:"width,omitempty"`
	Height       uint16 `json:"height,omitempty"`
	ChannelCount uint16 `json:"channel_count,omitempty"`
	SampleRate   uint32 `json:"sample_rate,omitempty"`

	// SampleEntry is the type of the first sample entry, e.g. "encv".
	SampleEntry string `json:"sample_entry,omitempty"`
	// Codec is the RFC 6381 codec string (e.g. "avc1.64001e", "mp4a.40.2").
	Codec string `json:"codec,omitempty"`

	Scheme     string `json:"scheme,omitempty"`
	DefaultKID string `json:"default_kid,omitempty"`

	// SampleCount adds the stsz count of the track to the sample counts of
	// every trun that references it.
	SampleCount uint64 `json:"sample_count"`
	Fragments   int    `json:"fragments,omitempty"`

	codec codecState
}

// codecState collects the rows a codec string is built from.
type codecState struct {
	format string // frma original format
	config mp4.Row
	esds   mp4.Row
}

// FindTrack returns the track with the given ID, or nil.
func FindTrack(tracks []*Track, id uint32) *Track {
	for _, t := range tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Summarize groups rows by trak and traf and returns one Track per track
// id, in order of first appearance. Rows outside those boxes are ignored.
func Summarize(rows []mp4.Row) []*Track {
	var tracks []*Track

	var cur *Track
	var frag *Track
	scope := -1 // depth of the enclosing trak or traf
	inFrag := false
	entryDepth := -1

	for _, row := range rows {
		if scope >= 0 && row.Depth <= scope {
			if cur != nil {
				cur.finish()
			}
			cur, frag, scope, inFrag = nil, nil, -1, false
		}
		switch row.Type {
		case mp4.TypeTrak:
			cur = &Track{}
			tracks = append(tracks, cur)
			scope, inFrag, entryDepth = row.Depth, false, -1
			continue
		case mp4.TypeTraf:
			scope, inFrag = row.Depth, true
			continue
		}
		if scope < 0 || row.Err != nil {
			continue
		}
		if inFrag {
			frag = fragmentRow(&tracks, frag, row)
			continue
		}
		if row.Type == mp4.TypeStsd {
			entryDepth = row.Depth + 1
		}
		cur.apply(row, row.Depth == entryDepth)
	}
	if cur != nil {
		cur.finish()
	}
	return tracks
}

func fragmentRow(tracks *[]*Track, t *Track, row mp4.Row) *Track {
	ps := row.Properties
	switch row.Type {
	case mp4.TypeTfhd:
		id := uint32(uintProp(ps, "track_id"))
		t = FindTrack(*tracks, id)
		if t == nil {
			t = &Track{ID: id}
			*tracks = append(*tracks, t)
		}
		t.Fragments++
	case mp4.TypeTrun:
		if t != nil {
			t.SampleCount += uintProp(ps, "sample_count")
		}
	}
	return t
}

func (t *Track) apply(row mp4.Row, sampleEntry bool) {
	ps := row.Properties
	switch row.Type {
	case mp4.TypeTkhd:
		t.ID = uint32(uintProp(ps, "track_id"))
		t.Width = uint16(fixedProp(ps, "width"))
		t.Height = uint16(fixedProp(ps, "height"))
	case mp4.TypeMdhd:
		t.TimeScale = uint32(uintProp(ps, "timescale"))
		t.Duration = uintProp(ps, "duration")
		t.Language = stringProp(ps, "language")
	case mp4.TypeHdlr:
		t.Handler = stringProp(ps, "handler")
		switch t.Handler {
		case "vide":
			t.Kind = TrackVideo
		case "soun":
			t.Kind = TrackAudio
		}
	case mp4.TypeStsz:
		t.SampleCount += uintProp(ps, "sample_count")
	case mp4.TypeFrma:
		t.codec.format = stringProp(ps, "data_format")
	case mp4.TypeSchm:
		t.Scheme = stringProp(ps, "scheme_type")
	case mp4.TypeTenc:
		t.DefaultKID = stringProp(ps, "default_KID")
	case mp4.TypeEsds:
		t.codec.esds = row
	case mp4.TypeAvcC, mp4.TypeHvcC, mp4.TypeVpcC, mp4.TypeAv1C, mp4.TypeDac4:
		if t.codec.config.Properties.BoxName == "" {
			t.codec.config = row
		}
	}

	if sampleEntry && t.SampleEntry == "" {
		t.SampleEntry = row.Type.String()
		if _, ok := ps.Scalar("channel_count"); ok {
			t.ChannelCount = uint16(uintProp(ps, "channel_count"))
			t.SampleRate = uint32(fixedProp(ps, "sample_rate"))
		} else if _, ok := ps.Scalar("width"); ok {
			t.Width = uint16(uintProp(ps, "width"))
			t.Height = uint16(uintProp(ps, "height"))
		}
	}
}

func (t *Track) finish() {
	format := t.SampleEntry
	if t.codec.format != "" {
		format = t.codec.format
	}
	t.Codec = codecString(format, t.codec)
}

func codecString(format string, c codecState) string {
	ps := c.config.Properties
	switch format {
	case "":
		return ""
	case "avc1", "avc3":
		if c.config.Type != mp4.TypeAvcC {
			return format
		}
		return format + "." + hex2(uint8(uintProp(ps, "avc_profile_indication"))) +
			hex2(uint8(uintProp(ps, "profile_compatibility"))) +
			hex2(uint8(uintProp(ps, "avc_level_indication")))
	case "hev1", "hvc1":
		if c.config.Type != mp4.TypeHvcC {
			return format
		}
		return format + "." + hevcCodec(ps)
	case "vp09":
		if c.config.Type != mp4.TypeVpcC {
			return format
		}
		return fmt.Sprintf("vp09.%02d.%02d.%02d", uintProp(ps, "profile"), uintProp(ps, "level"), uintProp(ps, "bit_depth"))
	case "av01":
		if c.config.Type != mp4.TypeAv1C {
			return format
		}
		return av1Codec(ps)
	case "mp4a":
		oti := uint8(uintProp(c.esds.Properties, "decoder_config_object_type_indication"))
		if oti == 0 {
			return format
		}
		s := format + "." + strings.TrimPrefix(hex2(oti), "0")
		if aot := uintProp(c.esds.Properties, "decoder_specific_profile"); aot > 0 {
			s += "." + strconv.FormatUint(aot, 10)
		}
		return s
	case "ac-4":
		if c.config.Type != mp4.TypeDac4 {
			return format
		}
		return ac4Codec(ps)
	case "Opus":
		return "opus"
	}
	return format
}

const hexChars = "0123456789abcdef"

func hex2(b uint8) string {
	return string([]byte{hexChars[b>>4], hexChars[b&0x0f]})
}

// hevcCodec renders profile, compatibility, tier, level and constraint
// fields as in ISO/IEC 14496-15 annex E.
func hevcCodec(ps mp4.PropertySet) string {
	var sb strings.Builder
	if space := uintProp(ps, "general_profile_space"); space > 0 {
		sb.WriteByte(byte('A' + space - 1))
	}
	sb.WriteString(strconv.FormatUint(uintProp(ps, "general_profile_idc"), 10))

	var compat uint32
	for _, b := range parseList(stringProp(ps, "general_profile_compatibility_flags")) {
		compat = compat<<8 | uint32(b)
	}
	var rev uint32
	for range 32 {
		rev = rev<<1 | compat&1
		compat >>= 1
	}
	sb.WriteString("." + strconv.FormatUint(uint64(rev), 16))

	tier := "L"
	if boolProp(ps, "general_tier_flag") {
		tier = "H"
	}
	sb.WriteString("." + tier + strconv.FormatUint(uintProp(ps, "general_level_idc"), 10))

	constraints := parseList(stringProp(ps, "general_constraint_indicator_flags"))
	for len(constraints) > 0 && constraints[len(constraints)-1] == 0 {
		constraints = constraints[:len(constraints)-1]
	}
	for _, c := range constraints {
		sb.WriteString("." + strings.ToUpper(strconv.FormatUint(uint64(c), 16)))
	}
	return sb.String()
}

func av1Codec(ps mp4.PropertySet) string {
	tier := "M"
	if boolProp(ps, "seq_tier_0") {
		tier = "H"
	}
	depth := 8
	if boolProp(ps, "high_bitdepth") {
		depth = 10
		if boolProp(ps, "twelve_bit") {
			depth = 12
		}
	}
	return fmt.Sprintf("av01.%d.%02d%s.%02d", uintProp(ps, "seq_profile"), uintProp(ps, "seq_level_idx_0"), tier, depth)
}

// ac4Codec uses the first presentation, ETSI TS 103 190-2 annex E.13.
func ac4Codec(ps mp4.PropertySet) string {
	bv := uintProp(ps, "bitstream_version")
	v, ok := ps.Get("presentation #1")
	if !ok {
		return fmt.Sprintf("ac-4.%02d", bv)
	}
	pres, _ := v.(mp4.Table)
	var version, mdcompat uint64
	for _, r := range pres.Rows {
		if len(r) != 2 {
			continue
		}
		switch r[0].String() {
		case "version":
			version, _ = r[1].Uint()
		case "md_compat":
			mdcompat, _ = r[1].Uint()
		}
	}
	return fmt.Sprintf("ac-4.%02d.%02d.%02d", bv, version, mdcompat)
}

func uintProp(ps mp4.PropertySet, key string) uint64 {
	s, ok := ps.Scalar(key)
	if !ok {
		return 0
	}
	v, _ := s.Uint()
	return v
}

func stringProp(ps mp4.PropertySet, key string) string {
	s, ok := ps.Scalar(key)
	if !ok {
		return ""
	}
	return s.String()
}

func boolProp(ps mp4.PropertySet, key string) bool {
	return stringProp(ps, key) == "true"
}

// fixedProp reads a fixed point property rendered in decimal and returns
// its integer part.
func fixedProp(ps mp4.PropertySet, key string) uint64 {
	f, err := strconv.ParseFloat(stringProp(ps, key), 64)
	if err != nil || f < 0 {
		return 0
	}
	return uint64(f)
}

func parseList(s string) []uint8 {
	var out []uint8
	for _, p := range strings.Split(s, ", ") {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			continue
		}
		out = append(out, uint8(v))
	}
	return out
}
