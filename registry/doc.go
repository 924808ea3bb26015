// Package registry implements the delegate upgrade registry: a mapping from an
// attested origin and a namespace to the delegate's most recently recorded
// identity key and code hash.
//
// A delegate whose code changes receives a new identity key from the host and
// can no longer reach the state persisted under its old one. Before upgrading
// it records its current key here; after upgrading it asks for the previous key
// and migrates its own state.
//
// The mapping lives in a MappingStore. KVMappingStore persists each record as
// an RLP list of two 32-byte strings under the partition key derived by
// package partition, so a caller can only reach partitions derived from its own
// attested origin.
//
// The registry never copies data, keeps only the latest record per partition
// and has no delete operation.
package registry
