package interfaces

import (
	"context"
	"net/http"
)

// OriginAttester extracts the attested origin of an inbound request.
// Implementations are provided by the host; the registry performs no verification of its own.
type OriginAttester interface {
	// AttestedOrigin returns the origin or ErrMissingOrigin.
	AttestedOrigin(r *http.Request) (Origin, error)
}

// MappingStore is a durable table from partition key to mapping record.
type MappingStore interface {
	// Get returns the record and true, or false if the partition was never written.
	Get(ctx context.Context, partition PartitionKey) (MappingRecord, bool, error)

	// Put unconditionally overwrites the record for partition.
	Put(ctx context.Context, partition PartitionKey, record MappingRecord) error
}
