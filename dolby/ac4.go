package dolby

import (
	"errors"
	"fmt"
)

// ErrPresentationOverrun is returned when a presentation decodes to more bytes
// than its pres_bytes field declares.
var ErrPresentationOverrun = errors.New("dac4 pres_bytes < presentation_bytes")

// BitRateMode is the dsi bit_rate_mode field.
type BitRateMode uint8

func (m BitRateMode) String() string {
	switch m {
	case 1:
		return "constant (1)"
	case 2:
		return "average (2)"
	case 3:
		return "variable (3)"
	}
	return "not specified"
}

// ContentClassifier is the content_classifier of a substream group.
type ContentClassifier uint8

var classifierNames = [...]string{
	"complete main", "music and effects", "visually impaired", "hearing impaired",
	"dialogue", "commentary", "emergency", "voice over",
}

func (c ContentClassifier) String() string {
	return fmt.Sprintf("%s (%d)", classifierNames[c&7], uint8(c&7))
}

// AC4 is the AC4SpecificBox (dac4) payload, ETSI TS 103 190-2 E.6.
type AC4 struct {
	DSIVersion       uint8
	BitstreamVersion uint8
	FsIndex          bool
	FrameRateIndex   uint8
	ShortProgramID   *uint16
	ProgramUUID      []byte
	BitRateMode      BitRateMode
	BitRate          uint32
	BitRatePrecision uint32
	Presentations    []Presentation
}

// Presentation holds one ac4_presentation_v*_dsi. Exactly one of V0 and V1 is
// set for versions 0, 1 and 2; both are nil for other versions. Version 2
// shares the version 1 layout.
type Presentation struct {
	Version uint8
	V0      *PresentationV0
	V1      *PresentationV1
}

// PresentationV0 is an ac4_presentation_v0_dsi.
type PresentationV0 struct {
	Config            uint8
	MDCompat          *uint8
	ID                *uint8
	FrameRateMultiply *uint8
	EMDFVersion       *uint8
	KeyID             *uint16
	ChannelMask       *[3]byte
	HSFExt            *bool
	Groups            []SubstreamGroup
	PreVirtualized    *bool
	EMDF              []EMDFSubstream
}

// PresentationV1 is an ac4_presentation_v1_dsi, also used for version 2.
type PresentationV1 struct {
	Config             uint8
	MDCompat           *uint8
	ID                 *uint8
	FrameRateMultiply  *uint8
	FrameRateFraction  *uint8
	EMDFVersion        *uint8
	KeyID              *uint16
	ChannelCoded       *bool
	ChMode             *uint8
	BackChannels4      *bool
	TopChannelPairs    *uint8
	ChannelMask        *[3]byte
	CoreDiffers        *bool
	CoreChannelCoded   *bool
	ChannelModeCore    *uint8
	Filter             *bool
	EnablePresentation *bool
	FilterData         []byte
	MultiPID           *bool
	Groups             []SubstreamGroup
	PreVirtualized     *bool
	EMDF               []EMDFSubstream
	BitRateMode        *BitRateMode
	BitRate            *uint32
	BitRatePrecision   *uint32
	Alternative        *AlternativeInfo
	// DialogueEnhancement, Immersive and ExtendedID are present only when
	// the presentation's byte budget has room after the aligned fields.
	// Immersive is the dolby_atmos_indicator in version 2.
	DialogueEnhancement *bool
	Immersive           *bool
	ExtendedID          *uint16
}

// SubstreamGroup is an ac4_substream_group_dsi.
type SubstreamGroup struct {
	SubstreamsPresent bool
	HSFExt            bool
	ChannelCoded      bool
	Substreams        []Substream
	ContentClassifier *ContentClassifier
	LanguageTag       *string
}

// Substream is one substream of a group.
type Substream struct {
	SFMultiplier     uint8
	BitrateIndicator *uint8
	ChannelMask      *[3]byte
	DmxMinus1        *uint8
	UmxMinus1        *uint8
	Bed              *bool
	Dynamic          *bool
	ISF              *bool
}

// EMDFSubstream carries the version and key id of one EMDF substream.
type EMDFSubstream struct {
	Version uint8
	KeyID   uint16
}

// AlternativeInfo is the alternative_info of a presentation.
type AlternativeInfo struct {
	Name    string
	Targets []AlternativeTarget
}

// AlternativeTarget is one target of an AlternativeInfo.
type AlternativeTarget struct {
	MDCompat       uint8
	DeviceCategory uint8
}

const (
	configEMDFOnly   = 0x06
	configSingleSub  = 0x1f
	presBytesEscaped = 255
)

func ptr[T any](v T) *T { return &v }

// ParseAC4 decodes a dac4 payload and reports how many bytes it used.
func ParseAC4(b []byte) (AC4, int, error) {
	r := newBitReader(b)
	a := AC4{
		DSIVersion:       uint8(r.read(3)),
		BitstreamVersion: uint8(r.read(7)),
		FsIndex:          r.flag(),
		FrameRateIndex:   uint8(r.read(4)),
	}
	n := int(r.read(9))
	if a.BitstreamVersion > 1 && r.flag() {
		a.ShortProgramID = ptr(r.u16())
		if r.flag() {
			a.ProgramUUID = r.bytes(16)
		}
	}
	a.BitRateMode = BitRateMode(r.read(2))
	a.BitRate = r.u32()
	a.BitRatePrecision = r.u32()
	r.align()
	if r.err != nil {
		return AC4{}, 0, r.err
	}

	for i := range n {
		p := Presentation{Version: r.u8()}
		presBytes := int(r.u8())
		if presBytes == presBytesEscaped {
			presBytes += int(r.u16())
		}
		start := r.consumed()
		switch p.Version {
		case 0:
			p.V0 = r.presentationV0()
		case 1, 2:
			p.V1 = r.presentationV1(presBytes)
		}
		if r.err != nil {
			return AC4{}, 0, fmt.Errorf("presentation %d: %w", i+1, r.err)
		}
		used := r.consumed() - start
		if used > presBytes {
			return AC4{}, 0, fmt.Errorf("presentation %d: %w", i+1, ErrPresentationOverrun)
		}
		r.align()
		r.skip(presBytes - used)
		if r.err != nil {
			return AC4{}, 0, fmt.Errorf("presentation %d: %w", i+1, r.err)
		}
		a.Presentations = append(a.Presentations, p)
	}
	return a, r.consumed(), nil
}

// groups reads the substream groups selected by a presentation config.
// Configs with no group layout carry a byte count to skip instead.
func (r *bitReader) groups(config uint8) []SubstreamGroup {
	var n int
	switch config {
	case 0, 1, 2:
		n = 2
	case 3, 4:
		n = 3
	case 5:
		n = int(r.read(3)) + 2
	default:
		r.skip(int(r.read(7)))
		return nil
	}
	g := make([]SubstreamGroup, 0, n)
	for range n {
		g = append(g, r.substreamGroup())
	}
	return g
}

func (r *bitReader) emdf() []EMDFSubstream {
	n := int(r.read(7))
	out := make([]EMDFSubstream, 0, n)
	for range n {
		out = append(out, EMDFSubstream{Version: uint8(r.read(5)), KeyID: uint16(r.read(10))})
	}
	return out
}

func (r *bitReader) presentationV0() *PresentationV0 {
	p := &PresentationV0{Config: uint8(r.read(5))}
	addEMDF := true
	if p.Config != configEMDFOnly {
		p.MDCompat = ptr(uint8(r.read(3)))
		if r.flag() {
			p.ID = ptr(uint8(r.read(5)))
		}
		p.FrameRateMultiply = ptr(uint8(r.read(2)))
		p.EMDFVersion = ptr(uint8(r.read(5)))
		p.KeyID = ptr(uint16(r.read(10)))
		p.ChannelMask = ptr(r.mask3())
		if p.Config == configSingleSub {
			p.Groups = []SubstreamGroup{r.substreamGroup()}
		} else {
			p.HSFExt = ptr(r.flag())
			p.Groups = r.groups(p.Config)
		}
		p.PreVirtualized = ptr(r.flag())
		addEMDF = r.flag()
	}
	if addEMDF {
		p.EMDF = r.emdf()
	}
	r.align()
	return p
}

func (r *bitReader) presentationV1(presBytes int) *PresentationV1 {
	start := r.pos
	p := &PresentationV1{Config: uint8(r.read(5))}
	addEMDF := true
	if p.Config != configEMDFOnly {
		p.MDCompat = ptr(uint8(r.read(3)))
		if r.flag() {
			p.ID = ptr(uint8(r.read(5)))
		}
		p.FrameRateMultiply = ptr(uint8(r.read(2)))
		p.FrameRateFraction = ptr(uint8(r.read(2)))
		p.EMDFVersion = ptr(uint8(r.read(5)))
		p.KeyID = ptr(uint16(r.read(10)))

		coded := r.flag()
		p.ChannelCoded = &coded
		if coded {
			mode := uint8(r.read(5))
			p.ChMode = &mode
			if mode >= 11 && mode <= 14 {
				p.BackChannels4 = ptr(r.flag())
				p.TopChannelPairs = ptr(uint8(r.read(2)))
			}
			p.ChannelMask = ptr(r.mask3())
		}

		differs := r.flag()
		p.CoreDiffers = &differs
		if differs {
			cc := r.flag()
			p.CoreChannelCoded = &cc
			if cc {
				p.ChannelModeCore = ptr(uint8(r.read(2)))
			}
		}

		filter := r.flag()
		p.Filter = &filter
		if filter {
			p.EnablePresentation = ptr(r.flag())
			p.FilterData = r.bytes(int(r.u8()))
		}

		if p.Config == configSingleSub {
			p.Groups = []SubstreamGroup{r.substreamGroup()}
		} else {
			p.MultiPID = ptr(r.flag())
			p.Groups = r.groups(p.Config)
		}
		p.PreVirtualized = ptr(r.flag())
		addEMDF = r.flag()
	}
	if addEMDF {
		p.EMDF = r.emdf()
	}

	if r.flag() {
		p.BitRateMode = ptr(BitRateMode(r.read(2)))
		p.BitRate = ptr(r.u32())
		p.BitRatePrecision = ptr(r.u32())
	}
	if r.flag() {
		r.align()
		alt := &AlternativeInfo{Name: lossy(r.bytes(int(r.u16())))}
		for range int(r.read(5)) {
			alt.Targets = append(alt.Targets, AlternativeTarget{
				MDCompat:       uint8(r.read(3)),
				DeviceCategory: r.u8(),
			})
		}
		p.Alternative = alt
	}
	r.align()

	if bitsRead := r.pos - start; presBytes > 0 && bitsRead <= (presBytes-1)*8 {
		p.DialogueEnhancement = ptr(r.flag())
		p.Immersive = ptr(r.flag())
		r.read(4)
		if r.flag() {
			p.ExtendedID = ptr(uint16(r.read(9)))
		} else {
			r.read(1)
		}
	}
	return p
}

func (r *bitReader) substreamGroup() SubstreamGroup {
	g := SubstreamGroup{
		SubstreamsPresent: r.flag(),
		HSFExt:            r.flag(),
		ChannelCoded:      r.flag(),
	}
	n := int(r.u8())
	for range n {
		if r.err != nil {
			break
		}
		s := Substream{SFMultiplier: uint8(r.read(2))}
		if r.flag() {
			s.BitrateIndicator = ptr(uint8(r.read(5)))
		}
		if g.ChannelCoded {
			s.ChannelMask = ptr(r.mask3())
		} else {
			if r.flag() {
				if !r.flag() {
					s.DmxMinus1 = ptr(uint8(r.read(4)))
				}
				s.UmxMinus1 = ptr(uint8(r.read(6)))
			}
			s.Bed = ptr(r.flag())
			s.Dynamic = ptr(r.flag())
			s.ISF = ptr(r.flag())
			r.read(1)
		}
		g.Substreams = append(g.Substreams, s)
	}
	if r.flag() {
		g.ContentClassifier = ptr(ContentClassifier(r.read(3)))
		if r.flag() {
			g.LanguageTag = ptr(lossy(r.bytes(int(r.read(6)))))
		}
	}
	return g
}
