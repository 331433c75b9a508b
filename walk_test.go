package mp4

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type depthType struct {
	depth int
	typ   string
}

func shape(rows []Row) []depthType {
	out := make([]depthType, len(rows))
	for i, r := range rows {
		out[i] = depthType{r.Depth, r.Type.String()}
	}
	return out
}

func TestWalkDepthSharedEnd(t *testing.T) {
	// moov, trak and mdia all end where mdat ends.
	buf := cat(
		mkbox("moov", mkbox("trak", mkbox("mdia", mkbox("mdat", []byte{1, 2, 3})))),
		mkbox("free"),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)
	assert.Equal(t, []depthType{
		{0, "moov"}, {1, "trak"}, {2, "mdia"}, {3, "mdat"}, {0, "free"},
	}, shape(rows))
}

func TestWalkSiblingAfterNestedClose(t *testing.T) {
	buf := mkbox("moov",
		mkbox("trak", mkbox("mdia", mkbox("mdat"))),
		mkbox("mvex"),
		mkbox("udta", mkbox("mdat", []byte{0})),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)
	assert.Equal(t, []depthType{
		{0, "moov"}, {1, "trak"}, {2, "mdia"}, {3, "mdat"},
		{1, "mvex"}, {1, "udta"}, {2, "mdat"},
	}, shape(rows))
}

func TestWalkTiling(t *testing.T) {
	buf := cat(
		mkbox("moov",
			mkbox("trak", mkbox("mdia", mkbox("mdat", repeat(0, 5)))),
			mkbox("udta", mkbox("free", repeat(0, 3)), mkbox("skip")),
		),
		mkbox("mdat", repeat(7, 9)),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)

	// The children of each container cover its body exactly.
	for i, r := range rows {
		if _, ok := containers[r.Type]; !ok {
			continue
		}
		next := r.Offset + 8
		for _, c := range rows[i+1:] {
			if c.Depth <= r.Depth {
				break
			}
			if c.Depth == r.Depth+1 {
				assert.Equal(t, next, c.Offset, "child %s of %s", c.Type, r.Type)
				next = c.Offset + c.Size
			}
		}
		assert.Equal(t, r.Offset+r.Size, next, "children of %s", r.Type)
	}
	last := rows[len(rows)-1]
	assert.Equal(t, len(buf), last.Offset+last.Size)
}

func TestWalkSizeProperty(t *testing.T) {
	rows, err := Walk(mkbox("mdat", repeat(0, 4)))
	require.NoError(t, err)
	require.NotEmpty(t, rows[0].Properties.Properties)
	assert.Equal(t, "size", rows[0].Properties.Properties[0].Key)
	assert.Equal(t, "12", scalar(t, rows[0].Properties, "size"))
	assert.Equal(t, "MediaDataBox", rows[0].Properties.BoxName)
}

func TestWalkExtendsToEnd(t *testing.T) {
	buf := cat(mkbox("free"), u32(0), []byte("mdat"), repeat(1, 20))
	rows, err := Walk(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Extends to end of file", scalar(t, rows[1].Properties, "size"))
	assert.Equal(t, 28, rows[1].Size)
}

func TestWalkExtendedSize(t *testing.T) {
	buf := cat(u32(1), []byte("mdat"), u64(24), repeat(0, 8))
	rows, err := Walk(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 24, rows[0].Size)
	// body plus the nominal 8 byte header
	assert.Equal(t, "16", scalar(t, rows[0].Properties, "size"))
}

func TestWalkTruncatedHeader(t *testing.T) {
	buf := cat(mkbox("free"), []byte{0, 0, 0})
	rows, err := Walk(buf)
	require.Len(t, rows, 1)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 8, se.Offset)
}

func TestWalkSizeBeyondBuffer(t *testing.T) {
	buf := cat(u32(100), []byte("mdat"), repeat(0, 10))
	rows, err := Walk(buf)
	assert.Empty(t, rows)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TypeMdat, se.Type)
}

func TestWalkChildPastParent(t *testing.T) {
	// moov declares 16 bytes but its child claims 24.
	buf := cat(u32(16), []byte("moov"), u32(24), []byte("mdat"), repeat(0, 16))
	rows, err := Walk(buf)
	require.Len(t, rows, 1)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TypeMdat, se.Type)
	assert.Equal(t, 8, se.Offset)
}

func TestWalkLeafLeftovers(t *testing.T) {
	buf := cat(mkbox("free"), mkbox("frma", []byte("avc1xx")))
	rows, err := Walk(buf)
	require.Len(t, rows, 1)
	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TypeFrma, se.Type)
	assert.Equal(t, 8, se.Offset)
	assert.Contains(t, err.Error(), "2 bytes left after decoding")
}

func TestWalkPlaceholderRows(t *testing.T) {
	buf := cat(
		// three samples, ten bytes of IVs
		mkbox("senc", vflags(0, 0), u32(3), repeat(0, 10)),
		mkbox("tx3g", repeat(0, 4)),
		mkbox("free"),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, errors.Is(rows[0].Err, ErrUnknownIVSize))
	assert.Equal(t, "SampleEncryptionBox", rows[0].Properties.BoxName)
	assert.Equal(t, "Unsupported size", scalar(t, rows[0].Properties, "IV"))
	assert.Equal(t, "26", scalar(t, rows[0].Properties, "size"))

	var ne *UnimplementedError
	require.ErrorAs(t, rows[1].Err, &ne)
	assert.Equal(t, "Not implemented", rows[1].Properties.BoxName)
	assert.Equal(t, "12", scalar(t, rows[1].Properties, "size"))

	assert.NoError(t, rows[2].Err)
	assert.Equal(t, "FreeSpaceBox", rows[2].Properties.BoxName)
}

func TestWalkUnmappedGeneralContainer(t *testing.T) {
	// go-mp4 knows wave but decodes none of its body.
	buf := cat(
		audioEntry("mp4a", 2, 44100, mkbox("wave", mkbox("frma", []byte("mp4a")))),
		mkbox("free"),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)
	assert.Equal(t, []depthType{{0, "mp4a"}, {1, "wave"}, {0, "free"}}, shape(rows))

	var ne *UnimplementedError
	require.ErrorAs(t, rows[1].Err, &ne)
	assert.Equal(t, "Not implemented", rows[1].Properties.BoxName)
	assert.Equal(t, "20", scalar(t, rows[1].Properties, "size"))
}

func TestWalkUnknownBox(t *testing.T) {
	row := decodeOne(t, mkbox("zzzz", repeat(9, 6)))
	assert.Equal(t, "Unknown (unhandled box parsing)", row.Properties.BoxName)
	assert.Equal(t, "Data<6>", scalar(t, row.Properties, "data"))
}

func TestWalkFullContainers(t *testing.T) {
	buf := mkbox("meta", vflags(0, 0x000102), mkbox("free"))
	rows, err := Walk(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MetaBox", rows[0].Properties.BoxName)
	assert.Equal(t, "0", scalar(t, rows[0].Properties, "version"))
	assert.Equal(t, "00000000 00000001 00000010", scalar(t, rows[0].Properties, "flags"))
	assert.Equal(t, 1, rows[1].Depth)

	// QuickTime meta has no version and flags.
	rows, err = Walk(mkbox("meta", mkbox("hdlr", vflags(0, 0), u32(0), []byte("mdta"), repeat(0, 12), []byte{0})))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	_, ok := rows[0].Properties.Get("version")
	assert.False(t, ok)
	assert.Equal(t, "HandlerBox", rows[1].Properties.BoxName)
	assert.Equal(t, "mdta", scalar(t, rows[1].Properties, "handler"))
}

func visualEntry(typ string, width, height uint16, compressor string, children ...[]byte) []byte {
	name := make([]byte, 32)
	name[0] = byte(len(compressor))
	copy(name[1:], compressor)
	return mkbox(typ, cat(
		repeat(0, 6), u16(1),
		repeat(0, 16),
		u16(width), u16(height),
		u32(0x00480000), u32(0x00480000),
		u32(0), u16(1),
		name,
		u16(0x18), []byte{0xff, 0xff},
	), cat(children...))
}

func audioEntry(typ string, channels uint16, rate uint32, children ...[]byte) []byte {
	return mkbox(typ, cat(
		repeat(0, 6), u16(1),
		repeat(0, 8),
		u16(channels), u16(16),
		repeat(0, 4),
		u32(rate<<16),
	), cat(children...))
}

func TestWalkSampleEntries(t *testing.T) {
	buf := mkbox("stsd", vflags(0, 0), u32(2),
		visualEntry("avc1", 1280, 720, "x264", mkbox("pasp", u32(1), u32(1))),
		audioEntry("mp4a", 2, 48000),
	)
	rows, err := Walk(buf)
	require.NoError(t, err)
	assert.Equal(t, []depthType{{0, "stsd"}, {1, "avc1"}, {2, "pasp"}, {1, "mp4a"}}, shape(rows))

	v := rows[1].Properties
	assert.Equal(t, "AVCSampleEntryBox", v.BoxName)
	assert.Equal(t, "1280", scalar(t, v, "width"))
	assert.Equal(t, "720", scalar(t, v, "height"))
	assert.Equal(t, "72", scalar(t, v, "horizresolution"))
	assert.Equal(t, "x264", scalar(t, v, "compressor"))
	assert.Equal(t, "24", scalar(t, v, "depth"))

	a := rows[3].Properties
	assert.Equal(t, "MP4AudioSampleEntryBox", a.BoxName)
	assert.Equal(t, "2", scalar(t, a, "channel_count"))
	assert.Equal(t, "16", scalar(t, a, "sample_size"))
	assert.Equal(t, "48000", scalar(t, a, "sample_rate"))
}

func TestWalkEmpty(t *testing.T) {
	rows, err := Walk(nil)
	assert.NoError(t, err)
	assert.Empty(t, rows)
}
