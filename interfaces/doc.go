// Package interfaces defines core interfaces and types for the delegate upgrade
// registry, separating interface definitions from implementations.
//
// # Identity Types
//
// Origin: the attested caller identity, trusted verbatim from the host.
//
// Namespace: a tagged value, either the default namespace or a named one.
// The default namespace cannot be produced from any caller string.
//
// DelegateKey, CodeHash: 32-byte identity values recorded per partition.
//
// PartitionKey: the derived lookup key for an (origin, namespace) pair.
//
// # Storage Interfaces
//
// KVStore: the host's byte-keyed persistent storage primitive. A miss is
// reported as ErrKeyNotFound and is never a failure.
//
// MappingStore: the typed table from PartitionKey to MappingRecord.
//
// StorageBackendFactory: creates KVStore backends from location URIs and
// aggregates several of them into a redundant multi-backend.
//
// # Trust Boundary
//
// OriginAttester: the injected capability that supplies the origin of each
// request. Nothing in the registry re-verifies it.
package interfaces
