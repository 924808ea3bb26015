package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/ruteri/delegate-upgrade-registry/partition"
)

// storedRecord is the persisted form of a mapping record: an RLP list of two
// 32-byte strings. Decoding rejects any other shape.
type storedRecord struct {
	DelegateKey [32]byte
	CodeHash    [32]byte
}

// EncodeRecord returns the stored encoding of rec.
func EncodeRecord(rec interfaces.MappingRecord) ([]byte, error) {
	return rlp.EncodeToBytes(&storedRecord{
		DelegateKey: rec.DelegateKey,
		CodeHash:    rec.CodeHash,
	})
}

// DecodeRecord parses a stored value. Anything that is not exactly one
// complete record yields ErrCorruptRecord.
func DecodeRecord(data []byte) (interfaces.MappingRecord, error) {
	var stored storedRecord
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return interfaces.MappingRecord{}, fmt.Errorf("%w: %v", interfaces.ErrCorruptRecord, err)
	}
	return interfaces.MappingRecord{
		DelegateKey: stored.DelegateKey,
		CodeHash:    stored.CodeHash,
	}, nil
}

// KVMappingStore implements interfaces.MappingStore over the host storage primitive.
type KVMappingStore struct {
	kv  interfaces.KVStore
	log *slog.Logger
}

func NewMappingStore(kv interfaces.KVStore, log *slog.Logger) *KVMappingStore {
	if log == nil {
		log = slog.Default()
	}
	return &KVMappingStore{kv: kv, log: log}
}

// Get returns the record for pk. A backend miss is reported as ok=false with a
// nil error; every other backend error wraps ErrStorageFailure.
func (s *KVMappingStore) Get(ctx context.Context, pk interfaces.PartitionKey) (interfaces.MappingRecord, bool, error) {
	data, err := s.kv.Get(ctx, partition.StorageKey(pk))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return interfaces.MappingRecord{}, false, nil
	}
	if err != nil {
		return interfaces.MappingRecord{}, false, fmt.Errorf("%w: %s: %w", interfaces.ErrStorageFailure, s.kv.Name(), err)
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		s.log.Error("Stored mapping record does not decode",
			slog.String("partition", pk.String()),
			slog.Int("size", len(data)),
			"err", err)
		return interfaces.MappingRecord{}, false, err
	}
	return rec, true, nil
}

// Put overwrites the record for pk.
func (s *KVMappingStore) Put(ctx context.Context, pk interfaces.PartitionKey, rec interfaces.MappingRecord) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("could not encode mapping record: %w", err)
	}

	if err := s.kv.Put(ctx, partition.StorageKey(pk), data); err != nil {
		return fmt.Errorf("%w: %s: %w", interfaces.ErrStorageFailure, s.kv.Name(), err)
	}
	return nil
}
