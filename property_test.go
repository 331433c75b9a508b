package mp4

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexDump(t *testing.T) {
	b := make([]byte, 20)
	for i := range b {
		b[i] = byte(i * 17)
	}
	assert.Equal(t,
		"00 11 22 33  44 55 66 77  88 99 aa bb  cc dd ee ff\n"+
			"10 21 32 43",
		HexDump(b))
	assert.Equal(t, "", HexDump(nil))
	assert.Equal(t, "0a 0b", HexDump([]byte{0x0a, 0x0b}))
}

func TestScalarString(t *testing.T) {
	tests := []struct {
		s    Scalar
		want string
	}{
		{String("abc"), "abc"},
		{U8(255), "255"},
		{U64(1 << 40), "1099511627776"},
		{I32(-3), "-3"},
		{I16(-32768), "-32768"},
		{Usize(7), "7"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Hex([]byte{0xde, 0xad}), "de ad"},
		{BinaryMask([]byte{0x80, 0x01}), "10000000 00000001"},
		{Data(make([]byte, 12)), "Data<12>"},
		{None(), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.String())
	}
}

func TestScalarAccessors(t *testing.T) {
	v, ok := U16(9).Uint()
	assert.True(t, ok)
	assert.EqualValues(t, 9, v)
	_, ok = I16(9).Uint()
	assert.False(t, ok)

	i, ok := I64(-9).Int()
	assert.True(t, ok)
	assert.EqualValues(t, -9, i)

	assert.Equal(t, []byte{1, 2}, Hex([]byte{1, 2}).Bytes())
}

func TestFixedPoint(t *testing.T) {
	assert.Equal(t, "1", fixed16(0x00010000))
	assert.Equal(t, "0.5", fixed16(0x00008000))
	assert.Equal(t, "72", fixed16(0x00480000))
	assert.Equal(t, "-1", fixed16s(-0x00010000))
	assert.Equal(t, "1", fixed8(0x0100))
}

func TestLossy(t *testing.T) {
	assert.Equal(t, "a�b", lossy([]byte{'a', 0xff, 'b'}))
}

func TestPropertySetJSON(t *testing.T) {
	ps := newPropertySet("TestBox")
	ps.add("count", U32(2))
	ps.add("signed", I16(-1))
	ps.add("flag", Bool(true))
	ps.add("kid", Hex([]byte{0xab}))
	ps.add("rows", Table{Headers: []string{"a", "b"}, Rows: [][]Scalar{{U8(1), String("x")}}})

	b, err := json.Marshal(ps)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"box_name": "TestBox",
		"properties": [
			{"key": "count", "value": 2},
			{"key": "signed", "value": -1},
			{"key": "flag", "value": true},
			{"key": "kid", "value": "ab"},
			{"key": "rows", "value": {"headers": ["a", "b"], "rows": [[1, "x"]]}}
		]
	}`, string(b))
}

func TestTableString(t *testing.T) {
	tb := Table{Headers: []string{"a", "b"}, Rows: [][]Scalar{{U8(1), U8(2)}, {U8(3), U8(4)}}}
	assert.Equal(t, "a\tb\n1\t2\n3\t4", tb.String())
	assert.Equal(t, "1\t2", Table{Rows: [][]Scalar{{U8(1), U8(2)}}}.String())
}

func TestPropertySetLookup(t *testing.T) {
	ps := newPropertySet("X")
	ps.add("t", Table{})
	ps.add("s", String("v"))
	_, ok := ps.Scalar("t")
	assert.False(t, ok)
	s, ok := ps.Scalar("s")
	assert.True(t, ok)
	assert.Equal(t, "v", s.String())
	_, ok = ps.Get("missing")
	assert.False(t, ok)
}
