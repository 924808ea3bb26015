package migration

import (
	"fmt"
	"os"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"golang.org/x/crypto/blake2b"
)

// Version is one identity of a delegate's code.
type Version struct {
	Name        string
	DelegateKey interfaces.DelegateKey
	CodeHash    interfaces.CodeHash
}

// Record returns the mapping record for this version.
func (v Version) Record() interfaces.MappingRecord {
	return interfaces.MappingRecord{DelegateKey: v.DelegateKey, CodeHash: v.CodeHash}
}

// SameIdentity compares keys and ignores the name.
func (v Version) SameIdentity(other Version) bool {
	return v.Record().Equal(other.Record())
}

func (v Version) String() string {
	if v.Name != "" {
		return fmt.Sprintf("%s (%s)", v.Name, v.DelegateKey)
	}
	return v.DelegateKey.String()
}

// IdentityFromBinary derives the identity the host assigns to code:
// the code hash is BLAKE2b-256 of the code, the delegate key is BLAKE2b-256 of
// the code hash followed by the delegate parameters.
func IdentityFromBinary(code []byte, params []byte) Version {
	codeHash := blake2b.Sum256(code)

	keyInput := make([]byte, 0, len(codeHash)+len(params))
	keyInput = append(keyInput, codeHash[:]...)
	keyInput = append(keyInput, params...)

	return Version{
		DelegateKey: interfaces.DelegateKey(blake2b.Sum256(keyInput)),
		CodeHash:    interfaces.CodeHash(codeHash),
	}
}

// IdentityFromFile derives the identity of the code at path.
func IdentityFromFile(path string, params []byte) (Version, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Version{}, fmt.Errorf("could not read %s: %w", path, err)
	}
	return IdentityFromBinary(code, params), nil
}

// IdentityOfExecutable derives the identity of the running binary.
func IdentityOfExecutable(params []byte) (Version, error) {
	path, err := os.Executable()
	if err != nil {
		return Version{}, fmt.Errorf("could not locate executable: %w", err)
	}
	return IdentityFromFile(path, params)
}
