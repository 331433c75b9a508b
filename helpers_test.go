package mp4

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// mkbox builds a box with a 32-bit size header around the concatenated parts.
func mkbox(typ string, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	b := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	b = append(b, typ...)
	return append(b, body...)
}

// vflags encodes the version and flags of a full box.
func vflags(version uint8, flags uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(version)<<24|flags&0xffffff)
}

func u16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
func u64(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

func cat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// decodeOne walks a buffer holding exactly one leaf box.
func decodeOne(t *testing.T, buf []byte) Row {
	t.Helper()
	rows, err := Walk(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func scalar(t *testing.T, ps PropertySet, key string) string {
	t.Helper()
	s, ok := ps.Scalar(key)
	require.True(t, ok, "missing property %q in %s", key, ps.BoxName)
	return s.String()
}

func table(t *testing.T, ps PropertySet, key string) Table {
	t.Helper()
	v, ok := ps.Get(key)
	require.True(t, ok, "missing property %q in %s", key, ps.BoxName)
	tb, ok := v.(Table)
	require.True(t, ok, "property %q is not a table", key)
	return tb
}

func cells(row []Scalar) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.String()
	}
	return out
}
