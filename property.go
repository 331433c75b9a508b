package mp4

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ScalarKind identifies how a Scalar renders.
type ScalarKind uint8

const (
	KindString ScalarKind = iota
	KindU64
	KindU32
	KindU16
	KindU8
	KindI64
	KindI32
	KindI16
	KindI8
	KindUsize
	KindBool
	KindHex
	KindBinaryMask
)

// Scalar is a single displayable value.
type Scalar struct {
	Kind ScalarKind
	s    string
	u    uint64
	i    int64
	b    []byte
}

func String(s string) Scalar     { return Scalar{Kind: KindString, s: s} }
func U64(v uint64) Scalar        { return Scalar{Kind: KindU64, u: v} }
func U32(v uint32) Scalar        { return Scalar{Kind: KindU32, u: uint64(v)} }
func U16(v uint16) Scalar        { return Scalar{Kind: KindU16, u: uint64(v)} }
func U8(v uint8) Scalar          { return Scalar{Kind: KindU8, u: uint64(v)} }
func I64(v int64) Scalar         { return Scalar{Kind: KindI64, i: v} }
func I32(v int32) Scalar         { return Scalar{Kind: KindI32, i: int64(v)} }
func I16(v int16) Scalar         { return Scalar{Kind: KindI16, i: int64(v)} }
func I8(v int8) Scalar           { return Scalar{Kind: KindI8, i: int64(v)} }
func Usize(v int) Scalar         { return Scalar{Kind: KindUsize, u: uint64(v)} }
func Bool(v bool) Scalar         { return Scalar{Kind: KindBool, u: boolBit(v)} }
func Hex(b []byte) Scalar        { return Scalar{Kind: KindHex, b: b} }
func BinaryMask(b []byte) Scalar { return Scalar{Kind: KindBinaryMask, b: b} }

// None is the rendering of an absent optional value.
func None() Scalar { return String("") }

// Data summarises a raw byte vector by its length.
func Data(b []byte) Scalar { return String(fmt.Sprintf("Data<%d>", len(b))) }

func boolBit(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func (s Scalar) String() string {
	switch s.Kind {
	case KindString:
		return s.s
	case KindU64, KindU32, KindU16, KindU8, KindUsize:
		return strconv.FormatUint(s.u, 10)
	case KindI64, KindI32, KindI16, KindI8:
		return strconv.FormatInt(s.i, 10)
	case KindBool:
		return strconv.FormatBool(s.u == 1)
	case KindHex:
		return HexDump(s.b)
	case KindBinaryMask:
		return binaryMask(s.b)
	}
	return ""
}

// Uint returns the value of an unsigned scalar.
func (s Scalar) Uint() (uint64, bool) {
	switch s.Kind {
	case KindU64, KindU32, KindU16, KindU8, KindUsize:
		return s.u, true
	}
	return 0, false
}

// Int returns the value of a signed scalar.
func (s Scalar) Int() (int64, bool) {
	switch s.Kind {
	case KindI64, KindI32, KindI16, KindI8:
		return s.i, true
	}
	return 0, false
}

// Bytes returns the payload of a hex or mask scalar.
func (s Scalar) Bytes() []byte { return s.b }

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindU64, KindU32, KindU16, KindU8, KindUsize:
		return json.Marshal(s.u)
	case KindI64, KindI32, KindI16, KindI8:
		return json.Marshal(s.i)
	case KindBool:
		return json.Marshal(s.u == 1)
	}
	return json.Marshal(s.String())
}

// Value is either a Scalar or a Table.
type Value interface {
	String() string
	isValue()
}

func (Scalar) isValue() {}

// Table is a list of rows. Headers is nil for positional data.
type Table struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]Scalar `json:"rows"`
}

func (Table) isValue() {}

func (t Table) String() string {
	var sb strings.Builder
	if t.Headers != nil {
		sb.WriteString(strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		for i, c := range row {
			if i > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(c.String())
		}
	}
	return sb.String()
}

// Property is one named value of a box.
type Property struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// PropertySet is the display form of one box.
type PropertySet struct {
	BoxName    string     `json:"box_name"`
	Properties []Property `json:"properties"`
}

func newPropertySet(name string) PropertySet {
	return PropertySet{BoxName: name}
}

func (ps *PropertySet) add(key string, v Value) {
	ps.Properties = append(ps.Properties, Property{Key: key, Value: v})
}

// Get returns the first property with the given key.
func (ps PropertySet) Get(key string) (Value, bool) {
	for _, p := range ps.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Scalar returns the scalar property with the given key.
func (ps PropertySet) Scalar(key string) (Scalar, bool) {
	v, ok := ps.Get(key)
	if !ok {
		return Scalar{}, false
	}
	s, ok := v.(Scalar)
	return s, ok
}

// kvTable builds a header-less two column table.
type kvTable struct{ t Table }

func (k *kvTable) add(key string, v Scalar) {
	k.t.Rows = append(k.t.Rows, []Scalar{String(key), v})
}

// HexDump renders bytes as lowercase hex in groups of four, four groups per
// line.
func HexDump(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			switch {
			case i%16 == 0:
				sb.WriteByte('\n')
			case i%4 == 0:
				sb.WriteString("  ")
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(hex.EncodeToString([]byte{c}))
	}
	return sb.String()
}

func binaryMask(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%08b", c)
	}
	return strings.Join(parts, " ")
}

func encodeHex(b []byte) string { return hex.EncodeToString(b) }

// fixed16 renders a 16.16 fixed point value.
func fixed16(v uint32) string {
	return strconv.FormatFloat(float64(v)/65536, 'f', -1, 64)
}

func fixed16s(v int32) string {
	return strconv.FormatFloat(float64(v)/65536, 'f', -1, 64)
}

// fixed8 renders an 8.8 fixed point value.
func fixed8(v int16) string {
	return strconv.FormatFloat(float64(v)/256, 'f', -1, 64)
}

func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func joinUints[T ~uint8 | ~uint16 | ~uint32 | ~uint64](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ", ")
}

func joinTypes(ts []BoxType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
