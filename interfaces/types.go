package interfaces

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Origin is the attested identity of the caller making a request.
// It is supplied by the host and trusted verbatim.
type Origin []byte

// ServerSelfOrigin is the origin under which the registry server records its
// own identity. Inbound requests claiming it are rejected, so only in-process
// callers reach its partition.
var ServerSelfOrigin = Origin("\x00delegate-upgrade-registry/self")

// IsReserved reports whether o is held back for in-process use.
func (o Origin) IsReserved() bool {
	return bytes.Equal(o, ServerSelfOrigin)
}

// NewOriginFromBase58 parses the textual form used by the host platform.
func NewOriginFromBase58(source string) (Origin, error) {
	if source == "" {
		return nil, ErrMissingOrigin
	}
	raw, err := base58.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 origin: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrMissingOrigin
	}
	return Origin(raw), nil
}

// String returns the base58 representation.
func (o Origin) String() string {
	return base58.Encode(o)
}

// Validate fails closed on an empty origin.
func (o Origin) Validate() error {
	if len(o) == 0 {
		return ErrMissingOrigin
	}
	return nil
}

// DelegateKey is a delegate's code-derived identity key.
type DelegateKey [32]byte

// CodeHash is the hash of a delegate's code.
type CodeHash [32]byte

func NewDelegateKeyFromHex(source string) (DelegateKey, error) {
	b, err := decodeHex32(source)
	if err != nil {
		return DelegateKey{}, fmt.Errorf("invalid delegate key: %w", err)
	}
	return DelegateKey(b), nil
}

func NewCodeHashFromHex(source string) (CodeHash, error) {
	b, err := decodeHex32(source)
	if err != nil {
		return CodeHash{}, fmt.Errorf("invalid code hash: %w", err)
	}
	return CodeHash(b), nil
}

func decodeHex32(source string) ([32]byte, error) {
	// Remove 0x prefix if present
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return [32]byte{}, errors.New("hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var out [32]byte
	copy(out[:], raw)
	return out, nil
}

// String returns hex representation.
func (k DelegateKey) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns the raw 32 bytes.
func (k DelegateKey) Bytes() []byte {
	return k[:]
}

// MarshalText encodes the key as lowercase hex.
func (k DelegateKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts 64 hex characters with an optional 0x prefix.
func (k *DelegateKey) UnmarshalText(text []byte) error {
	parsed, err := NewDelegateKeyFromHex(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// String returns hex representation.
func (h CodeHash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the raw 32 bytes.
func (h CodeHash) Bytes() []byte {
	return h[:]
}

func (h CodeHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *CodeHash) UnmarshalText(text []byte) error {
	parsed, err := NewCodeHashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Namespace is a caller-chosen partition within an origin.
// The zero value is the default namespace, which is distinct from every named one,
// including the empty string.
type Namespace struct {
	name  string
	named bool
}

// DefaultNamespace is used by callers with a single delegate.
func DefaultNamespace() Namespace {
	return Namespace{}
}

// NamedNamespace returns an explicit namespace. The empty string is a valid name.
func NamedNamespace(name string) Namespace {
	return Namespace{name: name, named: true}
}

// Name returns the namespace string and whether the namespace is named.
func (n Namespace) Name() (string, bool) {
	return n.name, n.named
}

// IsDefault reports whether this is the default namespace.
func (n Namespace) IsDefault() bool {
	return !n.named
}

// Equal compares namespaces by tag and name.
func (n Namespace) Equal(other Namespace) bool {
	return n.named == other.named && n.name == other.name
}

// String is for logging only, it is not an encoding.
func (n Namespace) String() string {
	if !n.named {
		return "<default>"
	}
	return fmt.Sprintf("%q", n.name)
}

// MarshalJSON encodes the default namespace as null and a named one as a string.
func (n Namespace) MarshalJSON() ([]byte, error) {
	if !n.named {
		return []byte("null"), nil
	}
	return json.Marshal(n.name)
}

// UnmarshalJSON accepts null or a string.
func (n *Namespace) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = DefaultNamespace()
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("namespace must be a string or null: %w", err)
	}
	*n = NamedNamespace(name)
	return nil
}

// PartitionKey is the derived storage key for an (origin, namespace) pair.
type PartitionKey [32]byte

// String returns hex representation.
func (k PartitionKey) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns the raw 32 bytes.
func (k PartitionKey) Bytes() []byte {
	return k[:]
}

// MappingRecord is the most recent known identity of a delegate.
type MappingRecord struct {
	DelegateKey DelegateKey
	CodeHash    CodeHash
}

// Equal compares two records.
func (r MappingRecord) Equal(other MappingRecord) bool {
	return r.DelegateKey == other.DelegateKey && r.CodeHash == other.CodeHash
}
