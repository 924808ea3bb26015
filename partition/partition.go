// Package partition derives storage partition keys from an attested origin and a namespace.
//
// The derivation is a pure function. The (origin, namespace) pair is ABI-encoded,
// which length-prefixes every dynamic field, and the encoding is hashed with
// Keccak-256. The namespace tag is encoded as its own boolean field, so the
// default namespace occupies a slot no caller-supplied string can reach.
package partition

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// Domain separates partition keys from any other keccak-derived value in the host store.
const Domain = "delegate-upgrade-registry/partition/v1"

var partitionArguments = func() abi.Arguments {
	bytesTy, _ := abi.NewType("bytes", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)
	stringTy, _ := abi.NewType("string", "", nil)

	return abi.Arguments{
		{Type: bytesTy},  // domain
		{Type: bytesTy},  // origin
		{Type: boolTy},   // named
		{Type: stringTy}, // namespace
	}
}()

// Derive computes the partition key for origin and ns.
// It fails closed on an empty origin.
func Derive(origin interfaces.Origin, ns interfaces.Namespace) (interfaces.PartitionKey, error) {
	if err := origin.Validate(); err != nil {
		return interfaces.PartitionKey{}, err
	}

	name, named := ns.Name()
	packed, err := partitionArguments.Pack([]byte(Domain), []byte(origin), named, name)
	if err != nil {
		return interfaces.PartitionKey{}, fmt.Errorf("could not encode partition: %w", err)
	}

	return interfaces.PartitionKey(crypto.Keccak256Hash(packed)), nil
}

// StorageKey returns the key handed to the host storage primitive.
func StorageKey(pk interfaces.PartitionKey) []byte {
	key := make([]byte, len(pk))
	copy(key, pk[:])
	return key
}
