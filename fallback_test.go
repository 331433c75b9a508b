package mp4

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneralFtyp(t *testing.T) {
	row := decodeOne(t, mkbox("ftyp", []byte("iso6"), u32(512), []byte("iso6cmfcdash")))
	ps := row.Properties
	assert.Equal(t, "FileTypeBox", ps.BoxName)
	assert.Equal(t, "iso6", scalar(t, ps, "major_brand"))
	assert.Equal(t, "512", scalar(t, ps, "minor_version"))
	assert.Equal(t, "iso6, cmfc, dash", scalar(t, ps, "compatible_brands"))

	row = decodeOne(t, mkbox("styp", []byte("msdh"), u32(0), []byte("msdhmsix")))
	assert.Equal(t, "SegmentTypeBox", row.Properties.BoxName)
}

func TestGeneralMdhd(t *testing.T) {
	// 'und' packed as three 5-bit letters
	row := decodeOne(t, mkbox("mdhd", vflags(0, 0), u32(0), u32(0), u32(48000), u32(96000), u16(0x55c4), u16(0)))
	ps := row.Properties
	assert.Equal(t, "MediaHeaderBox", ps.BoxName)
	assert.Equal(t, "48000", scalar(t, ps, "timescale"))
	assert.Equal(t, "96000", scalar(t, ps, "duration"))
	assert.Equal(t, "und", scalar(t, ps, "language"))
}

func TestGeneralSampleTables(t *testing.T) {
	row := decodeOne(t, mkbox("stts", vflags(0, 0), u32(1), u32(10), u32(1024)))
	tb := table(t, row.Properties, "entries")
	assert.Equal(t, []string{"count", "delta"}, tb.Headers)
	assert.Equal(t, []string{"10", "1024"}, cells(tb.Rows[0]))

	row = decodeOne(t, mkbox("stsz", vflags(0, 0), u32(0), u32(3), u32(1), u32(2), u32(3)))
	assert.Equal(t, "3", scalar(t, row.Properties, "sample_count"))
	assert.Equal(t, "1, 2, 3", scalar(t, row.Properties, "sample_sizes"))

	row = decodeOne(t, mkbox("stsz", vflags(0, 0), u32(500), u32(30)))
	assert.Equal(t, "30", scalar(t, row.Properties, "sample_count"))
	assert.Equal(t, "500", scalar(t, row.Properties, "sample_size"))

	row = decodeOne(t, mkbox("stco", vflags(0, 0), u32(2), u32(48), u32(4096)))
	assert.Equal(t, "ChunkOffsetBox", row.Properties.BoxName)
	assert.Equal(t, "48, 4096", scalar(t, row.Properties, "entries"))
}

func TestGeneralFragment(t *testing.T) {
	buf := mkbox("moof",
		mkbox("mfhd", vflags(0, 0), u32(7)),
		mkbox("traf",
			mkbox("tfhd", vflags(0, 0x020008), u32(1), u32(1024)),
			mkbox("tfdt", vflags(1, 0), u64(90000)),
			mkbox("trun", vflags(0, 0x000301), u32(2), u32(100), u32(1024), u32(500), u32(1024), u32(300)),
		),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, "7", scalar(t, rows[1].Properties, "sequence_number"))

	tfhd := rows[3].Properties
	assert.Equal(t, "TrackFragmentHeaderBox", tfhd.BoxName)
	assert.Equal(t, "1", scalar(t, tfhd, "track_id"))
	assert.Equal(t, "", scalar(t, tfhd, "base_data_offset"))
	assert.Equal(t, "1024", scalar(t, tfhd, "default_sample_duration"))
	assert.Equal(t, "", scalar(t, tfhd, "default_sample_size"))

	assert.Equal(t, "90000", scalar(t, rows[4].Properties, "base_media_decode_time"))

	trun := rows[5].Properties
	assert.Equal(t, "TrackRunBox", trun.BoxName)
	assert.Equal(t, "100", scalar(t, trun, "data_offset"))
	assert.Equal(t, "2", scalar(t, trun, "sample_count"))
	tb := table(t, trun, "entries")
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, []string{"1", "1024", "500", "", ""}, cells(tb.Rows[0]))
	assert.Equal(t, []string{"2", "1024", "300", "", ""}, cells(tb.Rows[1]))
}

func TestGeneralTrunSampleFlags(t *testing.T) {
	row := decodeOne(t, mkbox("trun", vflags(1, 0x000804), u32(1), u32(0x02000000), u32(0xfffffffe)))
	tb := table(t, row.Properties, "entries")
	assert.Equal(t, []string{"1", "", "", "02 00 00 00", "-2"}, cells(tb.Rows[0]))
	assert.Equal(t, "", scalar(t, row.Properties, "data_offset"))
}

func TestGeneralEmsg(t *testing.T) {
	row := decodeOne(t, mkbox("emsg", vflags(1, 0),
		u32(1000), u64(5000), u32(100), u32(1),
		[]byte("urn:scte:scte35:2013:bin\x00"), []byte("1\x00"), []byte("hello")))
	ps := row.Properties
	assert.Equal(t, "EventMessageBox", ps.BoxName)
	assert.Equal(t, "5000", scalar(t, ps, "presentation_time"))
	_, ok := ps.Get("presentation_time_delta")
	assert.False(t, ok)
	assert.Equal(t, "urn:scte:scte35:2013:bin", scalar(t, ps, "scheme_id_uri"))
	assert.Equal(t, "hello", scalar(t, ps, "message_data"))
}

func TestGeneralLeftoverBytes(t *testing.T) {
	_, err := Walk(mkbox("mfhd", vflags(0, 0), u32(7), []byte{0, 0}))
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TypeMfhd, se.Type)
}

func TestGeneralUnsupportedVersion(t *testing.T) {
	rows, err := Walk(mkbox("tfdt", vflags(2, 0), u64(1)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var ue *UnsupportedError
	require.ErrorAs(t, rows[0].Err, &ue)
	assert.True(t, strings.HasPrefix(rows[0].Properties.BoxName, "Unsupported ("))
}

func TestGeneralUnmapped(t *testing.T) {
	for _, typ := range []string{"tx3g", "uncC", "cmpd", "taic", "covr", "desc", "name", "year"} {
		rows, err := Walk(mkbox(typ, repeat(0, 4)))
		require.NoError(t, err, typ)
		var ne *UnimplementedError
		assert.ErrorAs(t, rows[0].Err, &ne, typ)
		assert.Equal(t, "Not implemented", rows[0].Properties.BoxName, typ)
	}
}

func TestMatrix(t *testing.T) {
	m := matrix([9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000})
	assert.Nil(t, m.Headers)
	require.Len(t, m.Rows, 3)
	assert.Equal(t, []string{"0", "0", "1073741824"}, cells(m.Rows[2]))
}
