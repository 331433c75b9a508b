package mp4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHEIFProperties(t *testing.T) {
	tests := []struct {
		name    string
		box     []byte
		boxName string
		want    map[string]string
	}{
		{"pitm v0", mkbox("pitm", vflags(0, 0), u16(7)), "PrimaryItemBox",
			map[string]string{"item_id": "7"}},
		{"pitm v1", mkbox("pitm", vflags(1, 0), u32(70000)), "PrimaryItemBox",
			map[string]string{"item_id": "70000"}},
		{"ispe", mkbox("ispe", vflags(0, 0), u32(4032), u32(3024)), "ImageSpatialExtentProperty",
			map[string]string{"width": "4032", "height": "3024"}},
		{"irot", mkbox("irot", []byte{0xfe}), "ImageRotation",
			map[string]string{"angle": "2"}},
		{"imir", mkbox("imir", []byte{0x01}), "ImageMirror",
			map[string]string{"axis": "1"}},
		{"pixi", mkbox("pixi", vflags(0, 0), []byte{3, 8, 8, 8}), "PixelInformationProperty",
			map[string]string{"bits_per_channel": "8, 8, 8"}},
		{"auxC", mkbox("auxC", vflags(0, 0), []byte("urn:mpeg:hevc:2015:auxid:1\x00"), []byte{1, 2}), "AuxiliaryTypeProperty",
			map[string]string{"aux_type": "urn:mpeg:hevc:2015:auxid:1", "aux_subtype": "Data<2>"}},
		{"clap", mkbox("clap", u32(100), u32(1), u32(50), u32(1), u32(0xfffffff6), u32(2), u32(0), u32(1)), "CleanApertureBox",
			map[string]string{"clean_aperture_width_n": "100", "horiz_off_n": "-10", "horiz_off_d": "2"}},
		{"iscl", mkbox("iscl", vflags(0, 0), u16(1), u16(2), u16(3), u16(4)), "ImageScaling",
			map[string]string{"target_width_numerator": "1", "target_height_denominator": "4"}},
		{"idat", mkbox("idat", repeat(0, 9)), "ItemDataBox",
			map[string]string{"data": "Data<9>"}},
		{"ccst", mkbox("ccst", vflags(0, 0), u32(0xc4000000)), "CodingConstraintsBox",
			map[string]string{"all_ref_pics_intra": "true", "intra_pred_used": "true", "max_ref_per_pic": "1"}},
		{"rref", mkbox("rref", vflags(0, 0), []byte{2}, []byte("dimgauxl")), "RequiredReferenceTypesProperty",
			map[string]string{"reference_types": "dimg, auxl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := decodeOne(t, tt.box)
			assert.Equal(t, tt.boxName, row.Properties.BoxName)
			for k, v := range tt.want {
				assert.Equal(t, v, scalar(t, row.Properties, k), k)
			}
		})
	}
}

func TestIref(t *testing.T) {
	row := decodeOne(t, mkbox("iref", vflags(0, 0),
		u32(16), []byte("dimg"), u16(1), u16(2), u16(2), u16(3),
		u32(12), []byte("thmb"), u16(4), u16(0),
	))
	tb := table(t, row.Properties, "references")
	assert.Equal(t, []string{"reference_type", "from_item_id", "to_item_ids"}, tb.Headers)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, []string{"dimg", "1", "2, 3"}, cells(tb.Rows[0]))
	assert.Equal(t, []string{"thmb", "4", ""}, cells(tb.Rows[1]))

	_, err := Walk(mkbox("iref", vflags(0, 0), u32(20), []byte("dimg"), u16(1), u16(1), u16(2), repeat(0, 6)))
	assert.ErrorContains(t, err, "declares 20 bytes")
}

func TestIpma(t *testing.T) {
	row := decodeOne(t, mkbox("ipma", vflags(0, 0), u32(1), u16(1), []byte{2, 0x81, 0x02}))
	tb := table(t, row.Properties, "item_properties")
	require.Len(t, tb.Rows, 1)
	assert.Equal(t, []string{"1", "(essential: true, property_index: 1), (essential: false, property_index: 2)"}, cells(tb.Rows[0]))

	row = decodeOne(t, mkbox("ipma", vflags(1, 1), u32(1), u32(9), []byte{1}, u16(0x8101)))
	tb = table(t, row.Properties, "item_properties")
	assert.Equal(t, []string{"9", "(essential: true, property_index: 257)"}, cells(tb.Rows[0]))
}

func TestIinf(t *testing.T) {
	row := decodeOne(t, mkbox("iinf", vflags(0, 0), u16(2),
		mkbox("infe", vflags(2, 0), u16(1), u16(0), []byte("hvc1"), []byte("Image\x00")),
		mkbox("infe", vflags(2, 1), u16(2), u16(0), []byte("mime"), []byte("\x00application/rdf+xml\x00")),
	))
	tb := table(t, row.Properties, "item_infos")
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, []string{"1", "0", "hvc1", "Image", "", "", "false"}, cells(tb.Rows[0]))
	assert.Equal(t, []string{"2", "0", "mime", "", "application/rdf+xml", "", "true"}, cells(tb.Rows[1]))

	_, err := Walk(mkbox("iinf", vflags(0, 0), u16(1), mkbox("free")))
	assert.ErrorContains(t, err, "unexpected box free")
}

func TestIinfEntryOutsideIinf(t *testing.T) {
	rows, err := Walk(mkbox("infe", vflags(2, 0), u16(1), u16(0), []byte("hvc1"), []byte{0}))
	require.NoError(t, err)
	var ne *UnimplementedError
	assert.ErrorAs(t, rows[0].Err, &ne)
}

func TestIloc(t *testing.T) {
	row := decodeOne(t, mkbox("iloc", vflags(1, 0), []byte{0x44, 0x00}, u16(1),
		u16(1), u16(0), u16(0), u16(1), u32(100), u32(50),
	))
	tb := table(t, row.Properties, "item_locations")
	require.Len(t, tb.Rows, 1)
	assert.Equal(t, []string{"1", "0", "0", "0", "(0,100,50)"}, cells(tb.Rows[0]))

	// version 2 with base offsets and extent indexes
	row = decodeOne(t, mkbox("iloc", vflags(2, 0), []byte{0x44, 0x44}, u32(1),
		u32(3), u16(1), u16(0), u32(1000), u16(2),
		u32(1), u32(0), u32(10),
		u32(2), u32(10), u32(20),
	))
	tb = table(t, row.Properties, "item_locations")
	assert.Equal(t, []string{"3", "1", "0", "1000", "(1,0,10), (2,10,20)"}, cells(tb.Rows[0]))
}

func TestIlocExtentLimits(t *testing.T) {
	// zero-width extents carry no bytes, so only the total count bounds them
	item := cat(u16(1), u16(0), u16(0xffff))
	_, err := Walk(mkbox("iloc", vflags(0, 0), []byte{0x00, 0x00}, u16(1), item))
	assert.ErrorIs(t, err, errCountTooLarge)

	// a few zero-width extents are fine
	row := decodeOne(t, mkbox("iloc", vflags(0, 0), []byte{0x00, 0x00}, u16(1), u16(1), u16(0), u16(2)))
	assert.Equal(t, "(0,0,0), (0,0,0)", cells(table(t, row.Properties, "item_locations").Rows[0])[4])

	// extents that need more bytes than the box has
	_, err = Walk(mkbox("iloc", vflags(0, 0), []byte{0x44, 0x00}, u16(1), u16(1), u16(0), u16(1000), u32(0), u32(4)))
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "declares 1000 extents")
}
