// Package storage provides byte-keyed storage backends for the registry's mapping records.
//
// Every backend implements interfaces.KVStore: a key is an opaque byte string
// (the partition key) and a value is an opaque byte string (the encoded mapping
// record). A miss is reported as interfaces.ErrKeyNotFound and is never
// conflated with a backend failure.
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://
//   - file:///var/lib/registry/
//   - sqlite:///var/lib/registry/registry.db
//   - s3://bucket-name/prefix/?region=us-west-2
//   - ipfs://ipfs.example.com:5001/?root=/registry
//   - vault://vault.example.com:8200/secret/registry?token=...&tls=true
//
// # Multi-Backend
//
// MultiStorageBackend writes to every backend and fails the write unless all of
// them accepted it. Reads come from the first backend that holds the key. A read that finds nothing is a miss only if
// every backend answered with a miss.
//
//	factory := storage.NewStorageBackendFactory(logger)
//	locations := []interfaces.StorageBackendLocation{fileLoc, s3Loc}
//	kv, err := factory.CreateMultiBackend(locations)
package storage
