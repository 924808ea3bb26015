package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// MaxRequestSize bounds the size of an encoded request accepted by the server.
const MaxRequestSize = 64 * 1024

const (
	VariantGetPreviousKey = "GetPreviousKey"
	VariantSetCurrentKey  = "SetCurrentKey"
	VariantPreviousKey    = "PreviousKey"
	VariantKeyUpdated     = "KeyUpdated"
)

// Request is the inbound message envelope. Exactly one variant is set.
type Request struct {
	GetPreviousKey *GetPreviousKeyRequest `json:"GetPreviousKey,omitempty"`
	SetCurrentKey  *SetCurrentKeyRequest  `json:"SetCurrentKey,omitempty"`
}

// GetPreviousKeyRequest asks for the mapping recorded in a namespace.
type GetPreviousKeyRequest struct {
	Namespace interfaces.Namespace `json:"namespace"`
}

// SetCurrentKeyRequest records the caller's current identity in a namespace.
type SetCurrentKeyRequest struct {
	Namespace   interfaces.Namespace   `json:"namespace"`
	DelegateKey interfaces.DelegateKey `json:"delegate_key"`
	CodeHash    interfaces.CodeHash    `json:"code_hash"`
}

// Record returns the mapping record carried by the request.
func (r *SetCurrentKeyRequest) Record() interfaces.MappingRecord {
	return interfaces.MappingRecord{DelegateKey: r.DelegateKey, CodeHash: r.CodeHash}
}

// Response is the outbound message envelope. Exactly one variant is set.
type Response struct {
	PreviousKey *PreviousKey `json:"PreviousKey,omitempty"`
	KeyUpdated  *KeyUpdated  `json:"KeyUpdated,omitempty"`
}

// PreviousKey carries the recorded mapping, if any.
// DelegateKey and CodeHash are both nil exactly when nothing was recorded.
type PreviousKey struct {
	Namespace   interfaces.Namespace    `json:"namespace"`
	DelegateKey *interfaces.DelegateKey `json:"delegate_key"`
	CodeHash    *interfaces.CodeHash    `json:"code_hash"`
}

// NewPreviousKey builds the response for a lookup; a nil record means absent.
func NewPreviousKey(ns interfaces.Namespace, record *interfaces.MappingRecord) *PreviousKey {
	resp := &PreviousKey{Namespace: ns}
	if record != nil {
		delegateKey := record.DelegateKey
		codeHash := record.CodeHash
		resp.DelegateKey = &delegateKey
		resp.CodeHash = &codeHash
	}
	return resp
}

// Record returns the mapping and true, or false if nothing was recorded.
func (p *PreviousKey) Record() (interfaces.MappingRecord, bool) {
	if p.DelegateKey == nil || p.CodeHash == nil {
		return interfaces.MappingRecord{}, false
	}
	return interfaces.MappingRecord{DelegateKey: *p.DelegateKey, CodeHash: *p.CodeHash}, true
}

// KeyUpdated acknowledges a SetCurrentKey.
type KeyUpdated struct {
	Namespace interfaces.Namespace `json:"namespace"`
}

// setCurrentKeyWire detects missing key fields, which the typed request cannot.
type setCurrentKeyWire struct {
	Namespace   interfaces.Namespace `json:"namespace"`
	DelegateKey *string              `json:"delegate_key"`
	CodeHash    *string              `json:"code_hash"`
}

// DecodeRequest strictly decodes an inbound message.
// Every decode failure wraps interfaces.ErrMalformedRequest.
func DecodeRequest(data []byte) (Request, error) {
	variant, body, err := decodeEnvelope(data)
	if err != nil {
		return Request{}, err
	}

	switch variant {
	case VariantGetPreviousKey:
		var req GetPreviousKeyRequest
		if err := decodeStrict(body, &req); err != nil {
			return Request{}, malformed("%s: %v", variant, err)
		}
		return Request{GetPreviousKey: &req}, nil

	case VariantSetCurrentKey:
		var wire setCurrentKeyWire
		if err := decodeStrict(body, &wire); err != nil {
			return Request{}, malformed("%s: %v", variant, err)
		}
		if wire.DelegateKey == nil {
			return Request{}, malformed("%s: missing delegate_key", variant)
		}
		if wire.CodeHash == nil {
			return Request{}, malformed("%s: missing code_hash", variant)
		}
		delegateKey, err := interfaces.NewDelegateKeyFromHex(*wire.DelegateKey)
		if err != nil {
			return Request{}, malformed("%s: %v", variant, err)
		}
		codeHash, err := interfaces.NewCodeHashFromHex(*wire.CodeHash)
		if err != nil {
			return Request{}, malformed("%s: %v", variant, err)
		}
		return Request{SetCurrentKey: &SetCurrentKeyRequest{
			Namespace:   wire.Namespace,
			DelegateKey: delegateKey,
			CodeHash:    codeHash,
		}}, nil

	default:
		return Request{}, malformed("unknown request variant %q", variant)
	}
}

// EncodeRequest encodes a request envelope.
func EncodeRequest(req Request) ([]byte, error) {
	if (req.GetPreviousKey == nil) == (req.SetCurrentKey == nil) {
		return nil, errors.New("request must set exactly one variant")
	}
	return json.Marshal(req)
}

// EncodeResponse encodes a response envelope.
func EncodeResponse(resp Response) ([]byte, error) {
	if (resp.PreviousKey == nil) == (resp.KeyUpdated == nil) {
		return nil, errors.New("response must set exactly one variant")
	}
	return json.Marshal(resp)
}

// DecodeResponse decodes a response envelope as returned by the server.
func DecodeResponse(data []byte) (Response, error) {
	variant, body, err := decodeEnvelope(data)
	if err != nil {
		return Response{}, err
	}

	switch variant {
	case VariantPreviousKey:
		var resp PreviousKey
		if err := decodeStrict(body, &resp); err != nil {
			return Response{}, malformed("%s: %v", variant, err)
		}
		if (resp.DelegateKey == nil) != (resp.CodeHash == nil) {
			return Response{}, malformed("%s: partial record", variant)
		}
		return Response{PreviousKey: &resp}, nil

	case VariantKeyUpdated:
		var resp KeyUpdated
		if err := decodeStrict(body, &resp); err != nil {
			return Response{}, malformed("%s: %v", variant, err)
		}
		return Response{KeyUpdated: &resp}, nil

	default:
		return Response{}, malformed("unknown response variant %q", variant)
	}
}

// decodeEnvelope splits an externally tagged message into its single variant name and body.
func decodeEnvelope(data []byte) (string, json.RawMessage, error) {
	keys, values, err := objectFields(data)
	if err != nil {
		return "", nil, malformed("%v", err)
	}
	if len(keys) != 1 {
		return "", nil, malformed("expected exactly one variant, got %d", len(keys))
	}

	variant, body := keys[0], values[0]
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return "", nil, malformed("%s: body must be an object", variant)
	}
	return variant, body, nil
}

// objectFields reads a single JSON object and returns its members in order.
// A repeated key is an error, compared case-insensitively as encoding/json
// matches field names, and so is anything after the object.
func objectFields(data []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, errors.New("message must be a JSON object")
	}

	var keys []string
	var values []json.RawMessage
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		folded := strings.ToLower(key)
		if _, dup := seen[folded]; dup {
			return nil, nil, fmt.Errorf("duplicate field %q", key)
		}
		seen[folded] = struct{}{}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, errors.New("trailing data after message")
	}
	return keys, values, nil
}

// decodeStrict decodes a variant body. Unknown and repeated fields are rejected.
func decodeStrict(data []byte, v any) error {
	if _, _, err := objectFields(data); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", interfaces.ErrMalformedRequest, fmt.Sprintf(format, args...))
}
