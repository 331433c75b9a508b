package mp4

import (
	"fmt"
	"strconv"
	"strings"
)

// HEIF item and property boxes, ISO/IEC 23008-12.

func decodePitm(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, _ := r.fullBox()
	var id uint32
	if version == 0 {
		id = uint32(r.u16())
	} else {
		id = r.u32()
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("PrimaryItemBox")
	ps.add("item_id", U32(id))
	return ps, nil
}

func decodeIspe(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	w, h := r.u32(), r.u32()
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ImageSpatialExtentProperty")
	ps.add("width", U32(w))
	ps.add("height", U32(h))
	return ps, nil
}

func decodeIrot(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	angle := r.u8() & 0x03
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ImageRotation")
	ps.add("angle", U8(angle))
	return ps, nil
}

func decodeImir(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	axis := r.u8() & 0x01
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ImageMirror")
	ps.add("axis", U8(axis))
	return ps, nil
}

func decodePixi(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	bits := r.bytes(int(r.u8()))
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("PixelInformationProperty")
	ps.add("bits_per_channel", String(joinUints(bits)))
	return ps, nil
}

func decodeAuxC(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	auxType := r.cstring()
	sub := r.rest()
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("AuxiliaryTypeProperty")
	ps.add("aux_type", String(auxType))
	ps.add("aux_subtype", Data(sub))
	return ps, nil
}

func decodeClap(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	wn, wd := r.u32(), r.u32()
	hn, hd := r.u32(), r.u32()
	xn, xd := r.i32(), r.u32()
	yn, yd := r.i32(), r.u32()
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("CleanApertureBox")
	ps.add("clean_aperture_width_n", U32(wn))
	ps.add("clean_aperture_width_d", U32(wd))
	ps.add("clean_aperture_height_n", U32(hn))
	ps.add("clean_aperture_height_d", U32(hd))
	ps.add("horiz_off_n", I32(xn))
	ps.add("horiz_off_d", U32(xd))
	ps.add("vert_off_n", I32(yn))
	ps.add("vert_off_d", U32(yd))
	return ps, nil
}

func decodeIscl(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	wn, wd := r.u16(), r.u16()
	hn, hd := r.u16(), r.u16()
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ImageScaling")
	ps.add("target_width_numerator", U16(wn))
	ps.add("target_width_denominator", U16(wd))
	ps.add("target_height_numerator", U16(hn))
	ps.add("target_height_denominator", U16(hd))
	return ps, nil
}

func decodeIdat(_ Header, body []byte) (PropertySet, error) {
	ps := newPropertySet("ItemDataBox")
	ps.add("data", Data(body))
	return ps, nil
}

// itemID reads a 16-bit item id for version 0 boxes and a 32-bit one
// otherwise.
func (r *reader) itemID(wide bool) uint32 {
	if wide {
		return r.u32()
	}
	return uint32(r.u16())
}

func decodeIref(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, _ := r.fullBox()
	t := Table{Headers: []string{"reference_type", "from_item_id", "to_item_ids"}}
	for r.err == nil && r.remaining() > 0 {
		start := r.pos
		size := int(r.u32())
		typ := r.fourCC()
		from := r.itemID(version != 0)
		n := int(r.u16())
		to := make([]uint32, 0, min(n, r.remaining()/2))
		for range n {
			to = append(to, r.itemID(version != 0))
		}
		if r.err == nil && r.pos-start != size {
			return PropertySet{}, fmt.Errorf("iref: reference %s declares %d bytes, decoded %d", typ, size, r.pos-start)
		}
		t.Rows = append(t.Rows, []Scalar{String(typ.String()), U32(from), String(joinUints(to))})
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ItemReferenceBox")
	ps.add("references", t)
	return ps, nil
}

func decodeIpma(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, flags := r.fullBox()
	count := r.u32()
	t := Table{Headers: []string{"item_id", "associations"}}
	for i := uint32(0); i < count && r.err == nil; i++ {
		id := r.itemID(version >= 1)
		n := int(r.u8())
		assoc := make([]string, 0, n)
		for range n {
			var essential bool
			var index uint16
			if flags&1 != 0 {
				v := r.u16()
				essential, index = v&0x8000 != 0, v&0x7fff
			} else {
				v := r.u8()
				essential, index = v&0x80 != 0, uint16(v&0x7f)
			}
			assoc = append(assoc, fmt.Sprintf("(essential: %t, property_index: %d)", essential, index))
		}
		t.Rows = append(t.Rows, []Scalar{U32(id), String(strings.Join(assoc, ", "))})
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ItemPropertyAssociationBox")
	ps.add("item_properties", t)
	return ps, nil
}

var typeMime = newBoxType("mime")
var typeURI = newBoxType("uri ")

func decodeIinf(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, _ := r.fullBox()
	var count uint32
	if version == 0 {
		count = uint32(r.u16())
	} else {
		count = r.u32()
	}
	t := Table{Headers: []string{
		"item_id", "item_protection_index", "item_type", "item_name",
		"content_type", "content_encoding", "item_not_in_presentation",
	}}
	for i := uint32(0); i < count && r.err == nil; i++ {
		h, err := ReadHeader(r.buf, r.pos)
		if err != nil {
			// Offsets here are relative to the iinf body.
			return PropertySet{}, fmt.Errorf("iinf entry %d: %v", i+1, err)
		}
		if h.Type != TypeInfe {
			return PropertySet{}, fmt.Errorf("iinf entry %d: unexpected box %s", i+1, h.Type)
		}
		r.skip(h.HeaderSize)
		row, err := decodeInfe(r.bytes(h.BodySize()))
		if err != nil {
			return PropertySet{}, fmt.Errorf("iinf entry %d: %w", i+1, err)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ItemInfoBox")
	ps.add("item_infos", t)
	return ps, nil
}

func decodeInfe(body []byte) ([]Scalar, error) {
	r := newReader(body)
	version, flags := r.fullBox()
	var id uint32
	var protection uint16
	var typ, name, contentType, encoding string
	switch {
	case version < 2:
		id = uint32(r.u16())
		protection = r.u16()
		name = r.cstring()
		contentType = r.cstring()
		if r.remaining() > 0 {
			encoding = r.cstring()
		}
		// Version 1 item info extensions are not described.
		r.rest()
	default:
		id = r.itemID(version > 2)
		protection = r.u16()
		it := r.fourCC()
		typ = it.String()
		name = r.cstring()
		switch it {
		case typeMime:
			contentType = r.cstring()
			if r.remaining() > 0 {
				encoding = r.cstring()
			}
		case typeURI:
			contentType = r.cstring()
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return []Scalar{
		U32(id), U16(protection), String(typ), String(name),
		String(contentType), String(encoding), Bool(flags&1 != 0),
	}, nil
}

func decodeIloc(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	version, _ := r.fullBox()
	b := r.u8()
	offsetSize, lengthSize := int(b>>4), int(b&0x0f)
	b = r.u8()
	baseOffsetSize, indexSize := int(b>>4), 0
	if version == 1 || version == 2 {
		indexSize = int(b & 0x0f)
	}
	var count uint32
	if version < 2 {
		count = uint32(r.u16())
	} else {
		count = r.u32()
	}

	width := indexSize + offsetSize + lengthSize
	total := 0
	t := Table{Headers: []string{"item_id", "construction_method", "data_reference_index", "base_offset", "extents"}}
	for i := uint32(0); i < count && r.err == nil; i++ {
		id := r.itemID(version >= 2)
		var method uint16
		if version == 1 || version == 2 {
			method = r.u16() & 0x0f
		}
		dataRef := r.u16()
		base := r.uvar(baseOffsetSize)
		n := int(r.u16())
		if r.err != nil {
			break
		}
		if width*n > r.remaining() {
			return PropertySet{}, fmt.Errorf("iloc: item %d declares %d extents of %d bytes, %d left", id, n, width, r.remaining())
		}
		if total += n; total > maxEntries {
			return PropertySet{}, fmt.Errorf("iloc: %w: %d extents", errCountTooLarge, total)
		}
		extents := make([]string, 0, n)
		for range n {
			var idx uint64
			if indexSize > 0 {
				idx = r.uvar(indexSize)
			}
			off := r.uvar(offsetSize)
			length := r.uvar(lengthSize)
			extents = append(extents, "("+strconv.FormatUint(idx, 10)+","+
				strconv.FormatUint(off, 10)+","+strconv.FormatUint(length, 10)+")")
		}
		t.Rows = append(t.Rows, []Scalar{
			U32(id), U16(method), U16(dataRef), U64(base), String(strings.Join(extents, ", ")),
		})
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("ItemLocationBox")
	ps.add("item_locations", t)
	return ps, nil
}

func decodeCcst(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	v := r.u32()
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("CodingConstraintsBox")
	ps.add("all_ref_pics_intra", Bool(v>>31 == 1))
	ps.add("intra_pred_used", Bool(v>>30&1 == 1))
	ps.add("max_ref_per_pic", U8(uint8(v>>26&0x0f)))
	return ps, nil
}

func decodeRref(_ Header, body []byte) (PropertySet, error) {
	r := newReader(body)
	r.fullBox()
	n := int(r.u8())
	types := make([]BoxType, 0, n)
	for range n {
		types = append(types, r.fourCC())
	}
	if err := r.finish(); err != nil {
		return PropertySet{}, err
	}
	ps := newPropertySet("RequiredReferenceTypesProperty")
	ps.add("reference_types", String(joinTypes(types)))
	return ps, nil
}
