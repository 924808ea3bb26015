package interfaces

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_JSON(t *testing.T) {
	tests := []struct {
		name    string
		ns      Namespace
		encoded string
	}{
		{"default", DefaultNamespace(), `null`},
		{"empty name", NamedNamespace(""), `""`},
		{"named", NamedNamespace("app2"), `"app2"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ns)
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, string(data))

			var decoded Namespace
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.True(t, tt.ns.Equal(decoded))
		})
	}
}

func TestNamespace_RejectsNonString(t *testing.T) {
	var ns Namespace
	assert.Error(t, json.Unmarshal([]byte(`42`), &ns))
	assert.Error(t, json.Unmarshal([]byte(`{"name":"x"}`), &ns))
}

func TestNamespace_DefaultIsNotEmptyName(t *testing.T) {
	assert.True(t, DefaultNamespace().IsDefault())
	assert.False(t, NamedNamespace("").IsDefault())
	assert.False(t, DefaultNamespace().Equal(NamedNamespace("")))

	var zero Namespace
	assert.True(t, zero.Equal(DefaultNamespace()))
}

func TestDelegateKeyFromHex(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)

	key, err := NewDelegateKeyFromHex(hexKey)
	require.NoError(t, err)
	assert.Equal(t, hexKey, key.String())

	prefixed, err := NewDelegateKeyFromHex("0x" + hexKey)
	require.NoError(t, err)
	assert.Equal(t, key, prefixed)

	_, err = NewDelegateKeyFromHex("abcd")
	assert.Error(t, err)

	_, err = NewCodeHashFromHex(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestOrigin_Base58(t *testing.T) {
	origin := Origin([]byte{1, 2, 3, 4, 5})

	parsed, err := NewOriginFromBase58(origin.String())
	require.NoError(t, err)
	assert.Equal(t, origin, parsed)

	_, err = NewOriginFromBase58("")
	assert.ErrorIs(t, err, ErrMissingOrigin)

	_, err = NewOriginFromBase58("0OIl")
	assert.Error(t, err)

	assert.ErrorIs(t, Origin(nil).Validate(), ErrMissingOrigin)
	assert.NoError(t, origin.Validate())
}

func TestNewStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("sqlite:///var/lib/registry.db?mode=rwc")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", loc.Scheme)
	assert.Equal(t, "/var/lib/registry.db", loc.Path)
	assert.Equal(t, "rwc", loc.GetParam("mode"))

	_, err = NewStorageBackendLocation("ftp://example.com/data")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}

func TestDelegateKey_JSONText(t *testing.T) {
	key := DelegateKey{0xab}
	encoded, err := json.Marshal(key)
	require.NoError(t, err)
	assert.Equal(t, `"ab`+strings.Repeat("00", 31)+`"`, string(encoded))

	var decoded DelegateKey
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, key, decoded)

	var hash CodeHash
	assert.Error(t, json.Unmarshal([]byte(`"abcd"`), &hash))
}
