package api

import (
	"strings"
	"testing"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey  = interfaces.DelegateKey{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01}
	testHash = interfaces.CodeHash{0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02}
	hexKey   = strings.Repeat("01", 32)
	hexHash  = strings.Repeat("02", 32)
)

func TestEncodeResponse_Golden(t *testing.T) {
	g := goldie.New(t)

	tests := []struct {
		golden string
		resp   Response
	}{
		{
			golden: "previous_key_present",
			resp: Response{PreviousKey: NewPreviousKey(interfaces.NamedNamespace("app"), &interfaces.MappingRecord{
				DelegateKey: testKey,
				CodeHash:    testHash,
			})},
		},
		{
			golden: "previous_key_absent",
			resp:   Response{PreviousKey: NewPreviousKey(interfaces.DefaultNamespace(), nil)},
		},
		{
			golden: "key_updated_default",
			resp:   Response{KeyUpdated: &KeyUpdated{Namespace: interfaces.DefaultNamespace()}},
		},
		{
			golden: "key_updated_empty_name",
			resp:   Response{KeyUpdated: &KeyUpdated{Namespace: interfaces.NamedNamespace("")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			encoded, err := EncodeResponse(tt.resp)
			require.NoError(t, err)
			g.Assert(t, tt.golden, encoded)

			decoded, err := DecodeResponse(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.resp, decoded)
		})
	}
}

func TestEncodeRequest_Golden(t *testing.T) {
	g := goldie.New(t)

	encoded, err := EncodeRequest(Request{SetCurrentKey: &SetCurrentKeyRequest{
		Namespace:   interfaces.NamedNamespace("app"),
		DelegateKey: testKey,
		CodeHash:    testHash,
	}})
	require.NoError(t, err)
	g.Assert(t, "set_current_key", encoded)

	encoded, err = EncodeRequest(Request{GetPreviousKey: &GetPreviousKeyRequest{}})
	require.NoError(t, err)
	g.Assert(t, "get_previous_key_default", encoded)
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"GetPreviousKey":{"namespace":null}}`))
	require.NoError(t, err)
	require.NotNil(t, req.GetPreviousKey)
	assert.Nil(t, req.SetCurrentKey)
	assert.True(t, req.GetPreviousKey.Namespace.IsDefault())

	req, err = DecodeRequest([]byte(`{"GetPreviousKey":{"namespace":""}}`))
	require.NoError(t, err)
	assert.Equal(t, interfaces.NamedNamespace(""), req.GetPreviousKey.Namespace)

	// A missing namespace is the default namespace
	req, err = DecodeRequest([]byte(`{"GetPreviousKey":{}}`))
	require.NoError(t, err)
	assert.True(t, req.GetPreviousKey.Namespace.IsDefault())

	req, err = DecodeRequest([]byte(`{"SetCurrentKey":{"namespace":"app","delegate_key":"0x` + hexKey + `","code_hash":"` + hexHash + `"}}`))
	require.NoError(t, err)
	require.NotNil(t, req.SetCurrentKey)
	assert.Equal(t, interfaces.NamedNamespace("app"), req.SetCurrentKey.Namespace)
	assert.Equal(t, interfaces.MappingRecord{DelegateKey: testKey, CodeHash: testHash}, req.SetCurrentKey.Record())

	// Trailing whitespace is not trailing data
	_, err = DecodeRequest([]byte("{\"GetPreviousKey\":{\"namespace\":\"x\"}}\n"))
	assert.NoError(t, err)
}

func TestDecodeRequest_Malformed(t *testing.T) {
	tests := map[string]string{
		"invalid json":        `{"GetPreviousKey":`,
		"empty":               ``,
		"null":                `null`,
		"array":               `[]`,
		"no variant":          `{}`,
		"two variants":        `{"GetPreviousKey":{"namespace":null},"SetCurrentKey":{"namespace":null,"delegate_key":"` + hexKey + `","code_hash":"` + hexHash + `"}}`,
		"unknown variant":     `{"DeleteKey":{"namespace":null}}`,
		"response variant":    `{"KeyUpdated":{"namespace":null}}`,
		"null body":           `{"GetPreviousKey":null}`,
		"unknown field":       `{"GetPreviousKey":{"namespace":null,"extra":1}}`,
		"namespace number":    `{"GetPreviousKey":{"namespace":5}}`,
		"missing key":         `{"SetCurrentKey":{"namespace":null,"code_hash":"` + hexHash + `"}}`,
		"missing hash":        `{"SetCurrentKey":{"namespace":null,"delegate_key":"` + hexKey + `"}}`,
		"short key":           `{"SetCurrentKey":{"namespace":null,"delegate_key":"abcd","code_hash":"` + hexHash + `"}}`,
		"non-hex hash":        `{"SetCurrentKey":{"namespace":null,"delegate_key":"` + hexKey + `","code_hash":"` + strings.Repeat("zz", 32) + `"}}`,
		"trailing data":       `{"GetPreviousKey":{"namespace":null}}{}`,
		"trailing garbage":    `{"GetPreviousKey":{"namespace":null}} x`,
		"lowercase variant":   `{"getPreviousKey":{"namespace":null}}`,
		"set unknown field":   `{"SetCurrentKey":{"namespace":null,"delegate_key":"` + hexKey + `","code_hash":"` + hexHash + `","history":[]}}`,
		"key of wrong type":   `{"SetCurrentKey":{"namespace":null,"delegate_key":1,"code_hash":"` + hexHash + `"}}`,
		"null delegate key":   `{"SetCurrentKey":{"namespace":null,"delegate_key":null,"code_hash":"` + hexHash + `"}}`,
		"nested object body":  `{"GetPreviousKey":{"namespace":{"name":"x"}}}`,
		"string top level":    `"GetPreviousKey"`,
		"body is a string":    `{"GetPreviousKey":"x"}`,
		"body is an array":    `{"SetCurrentKey":[]}`,
		"stray bracket":       `{"GetPreviousKey":{"namespace":null}}]`,
		"repeated variant":    `{"GetPreviousKey":{"namespace":"a"},"GetPreviousKey":{"namespace":"b"}}`,
		"repeated namespace":  `{"GetPreviousKey":{"namespace":"b","namespace":null}}`,
		"repeated both":       `{"GetPreviousKey":{"namespace":"a"},"GetPreviousKey":{"namespace":"b","namespace":null}}`,
		"namespace case fold": `{"GetPreviousKey":{"namespace":"a","Namespace":"b"}}`,
		"repeated key field":  `{"SetCurrentKey":{"namespace":null,"delegate_key":"` + hexKey + `","code_hash":"` + hexHash + `","delegate_key":"` + hexKey + `"}}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(input))
			assert.ErrorIs(t, err, interfaces.ErrMalformedRequest)
		})
	}
}

func TestDecodeRequest_ControlCharacterNamespace(t *testing.T) {
	// Caller strings are never interpreted
	req, err := DecodeRequest([]byte(`{"GetPreviousKey":{"namespace":"\u0000"}}`))
	require.NoError(t, err)
	name, named := req.GetPreviousKey.Namespace.Name()
	assert.True(t, named)
	assert.Equal(t, "\x00", name)
}

func TestEncode_RequiresOneVariant(t *testing.T) {
	_, err := EncodeRequest(Request{})
	assert.Error(t, err)

	_, err = EncodeResponse(Response{
		PreviousKey: NewPreviousKey(interfaces.DefaultNamespace(), nil),
		KeyUpdated:  &KeyUpdated{},
	})
	assert.Error(t, err)
}

func TestDecodeResponse_PartialRecord(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"PreviousKey":{"namespace":null,"delegate_key":"` + hexKey + `","code_hash":null}}`))
	assert.ErrorIs(t, err, interfaces.ErrMalformedRequest)
}

func TestPreviousKey_Record(t *testing.T) {
	absent := NewPreviousKey(interfaces.DefaultNamespace(), nil)
	_, ok := absent.Record()
	assert.False(t, ok)

	rec := interfaces.MappingRecord{DelegateKey: testKey, CodeHash: testHash}
	present := NewPreviousKey(interfaces.NamedNamespace("app"), &rec)
	got, ok := present.Record()
	assert.True(t, ok)
	assert.Equal(t, rec, got)

	// The response does not alias the caller's record
	rec.DelegateKey[0] = 0xff
	assert.Equal(t, testKey, *present.DelegateKey)
}
