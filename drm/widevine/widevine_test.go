package widevine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestParse(t *testing.T) {
	kid := []byte{0x90, 0x44, 0x5e, 0x6b, 0x1d, 0x7b, 0x4c, 0x1a, 0x86, 0x6a, 0x37, 0xa8, 0xd3, 0x9a, 0x3e, 0x1f}

	var b []byte
	b = protowire.AppendTag(b, fieldAlgorithm, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	b = protowire.AppendTag(b, fieldKeyID, protowire.BytesType)
	b = protowire.AppendBytes(b, kid)
	b = protowire.AppendTag(b, fieldProvider, protowire.BytesType)
	b = protowire.AppendString(b, "widevine_test")
	b = protowire.AppendTag(b, fieldContentID, protowire.BytesType)
	b = protowire.AppendString(b, "movie-1")
	b = protowire.AppendTag(b, fieldProtectionScheme, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(SchemeCBCS))
	b = protowire.AppendTag(b, 99, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)

	var ek []byte
	ek = protowire.AppendTag(ek, 2, protowire.BytesType)
	ek = protowire.AppendString(ek, "k")
	ek = protowire.AppendTag(ek, 5, protowire.VarintType)
	ek = protowire.AppendVarint(ek, 32)
	b = protowire.AppendTag(b, fieldEntitledKeys, protowire.BytesType)
	b = protowire.AppendBytes(b, ek)

	d, err := Parse(b)
	require.NoError(t, err)

	require.NotNil(t, d.Algorithm)
	assert.Equal(t, "AESCTR", d.Algorithm.String())
	assert.Equal(t, [][]byte{kid}, d.KeyIDs)
	require.NotNil(t, d.Provider)
	assert.Equal(t, "widevine_test", *d.Provider)
	assert.Equal(t, []byte("movie-1"), d.ContentID)
	require.NotNil(t, d.ProtectionScheme)
	assert.Equal(t, "CBCS", SchemeName(*d.ProtectionScheme))
	assert.Nil(t, d.Type)
	assert.Nil(t, d.CryptoPeriodIndex)

	require.Len(t, d.EntitledKeys, 1)
	assert.Equal(t, []byte("k"), d.EntitledKeys[0].KeyID)
	require.NotNil(t, d.EntitledKeys[0].EntitlementKeySizeBytes)
	assert.EqualValues(t, 32, *d.EntitledKeys[0].EntitlementKeySizeBytes)
}

func TestSchemeName(t *testing.T) {
	assert.Equal(t, "Unspecified", SchemeName(0))
	assert.Equal(t, "CENC", SchemeName(1667591779))
	assert.Equal(t, "CBC1", SchemeName(1667392305))
	assert.Equal(t, "CENS", SchemeName(1667591795))
	assert.Equal(t, "CBCS", SchemeName(1667392371))
	assert.Equal(t, "Unknown: 5", SchemeName(5))
}

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "ENTITLED_KEY", EntitledKey.String())
	assert.Equal(t, "Unknown: 9", Type(9).String())
	assert.Equal(t, "UNENCRYPTED", Unencrypted.String())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte{0x12, 0x10, 0x01})
	assert.Error(t, err, "truncated bytes field")

	var b []byte
	b = protowire.AppendTag(b, fieldProvider, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	_, err = Parse(b)
	assert.Error(t, err, "wire type mismatch")
}
