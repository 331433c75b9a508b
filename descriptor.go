package mp4

import (
	"errors"

	"github.com/bluenviron/mediacommon/pkg/bits"
)

// descriptor implements MPEG-4 descriptor parsing for esds boxes.

var tagToName = map[byte]string{
	0x03: "ESDescriptor",
	0x04: "DecoderConfigDescriptor",
	0x05: "DecoderSpecificInfo",
	0x06: "SLConfigDescriptor",
}

type descriptor struct {
	tag     byte
	tagName string
	length  int

	esID uint16

	oti          byte
	streamType   byte
	upStream     bool
	bufferSizeDB uint32
	maxBitrate   uint32
	avgBitrate   uint32

	buffer   []byte
	children map[string]*descriptor
}

func decodeDescriptor(buf []byte, start, end int) *descriptor {
	if start >= end {
		return nil
	}
	tag := buf[start]
	ptr := start + 1
	length := 0
	for ptr < end {
		lenByte := buf[ptr]
		ptr++
		length = (length << 7) | int(lenByte&0x7f)
		if lenByte&0x80 == 0 {
			break
		}
	}

	d := &descriptor{
		tag:      tag,
		tagName:  tagToName[tag],
		length:   (ptr - start) + length,
		children: make(map[string]*descriptor),
	}
	dEnd := min(ptr+length, end)

	switch d.tagName {
	case "ESDescriptor":
		decodeESDescriptor(d, buf, ptr, dEnd)
	case "DecoderConfigDescriptor":
		decodeDecoderConfigDescriptor(d, buf, ptr, dEnd)
	default:
		d.buffer = buf[ptr:dEnd]
	}

	return d
}

func decodeDescriptorArray(buf []byte, start, end int) map[string]*descriptor {
	m := make(map[string]*descriptor)
	ptr := start
	for ptr+2 <= end {
		desc := decodeDescriptor(buf, ptr, end)
		if desc == nil {
			break
		}
		ptr += desc.length
		if desc.tagName == "" {
			continue
		}
		m[desc.tagName] = desc
	}
	return m
}

func decodeESDescriptor(d *descriptor, buf []byte, start, end int) {
	if start+3 > end {
		return
	}
	d.esID = be.Uint16(buf[start:])
	flags := buf[start+2]
	ptr := start + 3
	if flags&0x80 != 0 {
		ptr += 2
	}
	if flags&0x40 != 0 {
		if ptr >= end {
			return
		}
		l := int(buf[ptr])
		ptr += l + 1
	}
	if flags&0x20 != 0 {
		ptr += 2
	}
	d.children = decodeDescriptorArray(buf, ptr, end)
}

func decodeDecoderConfigDescriptor(d *descriptor, buf []byte, start, end int) {
	if start+13 > end {
		return
	}
	d.oti = buf[start]
	d.streamType = buf[start+1] >> 2
	d.upStream = buf[start+1]&0x02 != 0
	d.bufferSizeDB = uint32(buf[start+2])<<16 | uint32(buf[start+3])<<8 | uint32(buf[start+4])
	d.maxBitrate = be.Uint32(buf[start+5:])
	d.avgBitrate = be.Uint32(buf[start+9:])
	d.children = decodeDescriptorArray(buf, start+13, end)
}

// audioSpecificConfig holds the leading fields of an MPEG-4 AudioSpecificConfig.
type audioSpecificConfig struct {
	profile   uint8
	freqIndex uint8
	chanConf  uint8
}

func decodeAudioSpecificConfig(buf []byte) (audioSpecificConfig, error) {
	var c audioSpecificConfig
	pos := 0
	v, err := bits.ReadBits(buf, &pos, 5)
	if err != nil {
		return c, err
	}
	if v == 31 {
		ext, err := bits.ReadBits(buf, &pos, 6)
		if err != nil {
			return c, err
		}
		v = 32 + ext
	}
	c.profile = uint8(v)

	v, err = bits.ReadBits(buf, &pos, 4)
	if err != nil {
		return c, err
	}
	c.freqIndex = uint8(v)
	if v == 15 {
		if _, err := bits.ReadBits(buf, &pos, 24); err != nil {
			return c, err
		}
	}

	v, err = bits.ReadBits(buf, &pos, 4)
	if err != nil {
		return c, err
	}
	c.chanConf = uint8(v)
	return c, nil
}

var errNoESDescriptor = errors.New("esds: missing ES or decoder config descriptor")

func decodeEsds(_ Header, body []byte) (PropertySet, error) {
	if len(body) < 4 {
		return PropertySet{}, errShortBody
	}
	es := decodeDescriptor(body, 4, len(body))
	if es == nil || es.tagName != "ESDescriptor" {
		return PropertySet{}, errNoESDescriptor
	}
	dc := es.children["DecoderConfigDescriptor"]
	if dc == nil {
		return PropertySet{}, errNoESDescriptor
	}

	var asc audioSpecificConfig
	if dsi := dc.children["DecoderSpecificInfo"]; dsi != nil && len(dsi.buffer) > 0 {
		var err error
		if asc, err = decodeAudioSpecificConfig(dsi.buffer); err != nil {
			return PropertySet{}, err
		}
	}

	ps := newPropertySet("ElementaryStreamDescriptorBox")
	ps.add("es_id", U16(es.esID))
	ps.add("decoder_config_object_type_indication", U8(dc.oti))
	ps.add("decoder_config_stream_type", U8(dc.streamType))
	ps.add("decoder_config_up_stream", Bool(dc.upStream))
	ps.add("decoder_config_buffer_size_db", U32(dc.bufferSizeDB))
	ps.add("decoder_config_max_bitrate", U32(dc.maxBitrate))
	ps.add("decoder_config_avg_bitrate", U32(dc.avgBitrate))
	ps.add("decoder_specific_profile", U8(asc.profile))
	ps.add("decoder_specific_freq_index", U8(asc.freqIndex))
	ps.add("decoder_specific_chan_conf", U8(asc.chanConf))
	return ps, nil
}
