// Package widevine decodes the WidevinePsshData protobuf message carried in
// a pssh box.
package widevine

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

type Algorithm int32

const (
	Unencrypted Algorithm = 0
	AESCTR      Algorithm = 1
)

func (a Algorithm) String() string {
	switch a {
	case Unencrypted:
		return "UNENCRYPTED"
	case AESCTR:
		return "AESCTR"
	}
	return fmt.Sprintf("Unknown: %d", int32(a))
}

type Type int32

const (
	Single      Type = 0
	Entitlement Type = 1
	EntitledKey Type = 2
)

func (t Type) String() string {
	switch t {
	case Single:
		return "SINGLE"
	case Entitlement:
		return "ENTITLEMENT"
	case EntitledKey:
		return "ENTITLED_KEY"
	}
	return fmt.Sprintf("Unknown: %d", int32(t))
}

// Protection scheme four character codes as big-endian integers.
const (
	SchemeCENC uint32 = 0x63656e63
	SchemeCBC1 uint32 = 0x63626331
	SchemeCENS uint32 = 0x63656e73
	SchemeCBCS uint32 = 0x63626373
)

// SchemeName names a protection_scheme value.
func SchemeName(v uint32) string {
	switch v {
	case 0:
		return "Unspecified"
	case SchemeCENC:
		return "CENC"
	case SchemeCBC1:
		return "CBC1"
	case SchemeCENS:
		return "CENS"
	case SchemeCBCS:
		return "CBCS"
	}
	return fmt.Sprintf("Unknown: %d", v)
}

// PsshData mirrors the WidevinePsshData message. Pointer fields are nil when
// the field was absent on the wire.
type PsshData struct {
	Algorithm           *Algorithm
	KeyIDs              [][]byte
	Provider            *string
	ContentID           []byte
	TrackType           *string
	Policy              *string
	CryptoPeriodIndex   *uint32
	GroupedLicense      []byte
	ProtectionScheme    *uint32
	CryptoPeriodSeconds *uint32
	Type                *Type
	KeySequence         *uint32
	GroupIDs            [][]byte
	EntitledKeys        []EntitledKeyData
	VideoFeature        *string
}

type EntitledKeyData struct {
	EntitlementKeyID        []byte
	KeyID                   []byte
	Key                     []byte
	IV                      []byte
	EntitlementKeySizeBytes *uint32
}

const (
	fieldAlgorithm           protowire.Number = 1
	fieldKeyID               protowire.Number = 2
	fieldProvider            protowire.Number = 3
	fieldContentID           protowire.Number = 4
	fieldTrackType           protowire.Number = 5
	fieldPolicy              protowire.Number = 6
	fieldCryptoPeriodIndex   protowire.Number = 7
	fieldGroupedLicense      protowire.Number = 8
	fieldProtectionScheme    protowire.Number = 9
	fieldCryptoPeriodSeconds protowire.Number = 10
	fieldType                protowire.Number = 11
	fieldKeySequence         protowire.Number = 12
	fieldGroupIDs            protowire.Number = 13
	fieldEntitledKeys        protowire.Number = 14
	fieldVideoFeature        protowire.Number = 15
)

// field is one decoded tag/value pair. Exactly one of v and b is meaningful,
// depending on the wire type.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

// fields splits a message into its tag/value pairs.
func fields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

func (f field) want(t protowire.Type) error {
	if f.typ != t {
		return fmt.Errorf("field %d: wire type %d, want %d", f.num, f.typ, t)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// Parse decodes a WidevinePsshData message. Unknown fields are skipped.
func Parse(buf []byte) (*PsshData, error) {
	fs, err := fields(buf)
	if err != nil {
		return nil, err
	}
	d := &PsshData{}
	for _, f := range fs {
		switch f.num {
		case fieldAlgorithm, fieldCryptoPeriodIndex, fieldProtectionScheme,
			fieldCryptoPeriodSeconds, fieldType, fieldKeySequence:
			if err := f.want(protowire.VarintType); err != nil {
				return nil, err
			}
		case fieldKeyID, fieldProvider, fieldContentID, fieldTrackType, fieldPolicy,
			fieldGroupedLicense, fieldGroupIDs, fieldEntitledKeys, fieldVideoFeature:
			if err := f.want(protowire.BytesType); err != nil {
				return nil, err
			}
		}

		switch f.num {
		case fieldAlgorithm:
			d.Algorithm = ptr(Algorithm(int32(f.v)))
		case fieldKeyID:
			d.KeyIDs = append(d.KeyIDs, f.b)
		case fieldProvider:
			d.Provider = ptr(string(f.b))
		case fieldContentID:
			d.ContentID = f.b
		case fieldTrackType:
			d.TrackType = ptr(string(f.b))
		case fieldPolicy:
			d.Policy = ptr(string(f.b))
		case fieldCryptoPeriodIndex:
			d.CryptoPeriodIndex = ptr(uint32(f.v))
		case fieldGroupedLicense:
			d.GroupedLicense = f.b
		case fieldProtectionScheme:
			d.ProtectionScheme = ptr(uint32(f.v))
		case fieldCryptoPeriodSeconds:
			d.CryptoPeriodSeconds = ptr(uint32(f.v))
		case fieldType:
			d.Type = ptr(Type(int32(f.v)))
		case fieldKeySequence:
			d.KeySequence = ptr(uint32(f.v))
		case fieldGroupIDs:
			d.GroupIDs = append(d.GroupIDs, f.b)
		case fieldEntitledKeys:
			k, err := parseEntitledKey(f.b)
			if err != nil {
				return nil, fmt.Errorf("entitled_keys: %w", err)
			}
			d.EntitledKeys = append(d.EntitledKeys, k)
		case fieldVideoFeature:
			d.VideoFeature = ptr(string(f.b))
		}
	}
	return d, nil
}

func parseEntitledKey(b []byte) (EntitledKeyData, error) {
	var k EntitledKeyData
	fs, err := fields(b)
	if err != nil {
		return k, err
	}
	for _, f := range fs {
		switch f.num {
		case 1, 2, 3, 4:
			if err := f.want(protowire.BytesType); err != nil {
				return k, err
			}
		case 5:
			if err := f.want(protowire.VarintType); err != nil {
				return k, err
			}
		}
		switch f.num {
		case 1:
			k.EntitlementKeyID = f.b
		case 2:
			k.KeyID = f.b
		case 3:
			k.Key = f.b
		case 4:
			k.IV = f.b
		case 5:
			k.EntitlementKeySizeBytes = ptr(uint32(f.v))
		}
	}
	return k, nil
}
