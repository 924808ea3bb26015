package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
	"github.com/ruteri/delegate-upgrade-registry/partition"
	"github.com/ruteri/delegate-upgrade-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKVStore implements interfaces.KVStore for testing
type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKVStore) Put(ctx context.Context, key []byte, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockKVStore) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockKVStore) Name() string {
	return "mock"
}

func (m *MockKVStore) LocationURI() string {
	return "mock:"
}

func TestRecordEncoding(t *testing.T) {
	rec := interfaces.MappingRecord{
		DelegateKey: interfaces.DelegateKey{0x00, 0x01},
		CodeHash:    interfaces.CodeHash{0xff},
	}

	encoded, err := EncodeRecord(rec)
	require.NoError(t, err)
	// list header + two (header + 32 bytes) strings
	assert.Len(t, encoded, 2+2*33)

	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeRecord_RejectsPartialRecords(t *testing.T) {
	key := make([]byte, 32)
	short := make([]byte, 31)

	onlyKey, err := rlp.EncodeToBytes([][]byte{key})
	require.NoError(t, err)
	shortHash, err := rlp.EncodeToBytes([][]byte{key, short})
	require.NoError(t, err)
	extra, err := rlp.EncodeToBytes([][]byte{key, key, key})
	require.NoError(t, err)
	valid, err := rlp.EncodeToBytes([][]byte{key, key})
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":           {},
		"single key":      onlyKey,
		"short hash":      shortHash,
		"three elements":  extra,
		"trailing bytes":  append(append([]byte{}, valid...), 0x00),
		"raw 64 bytes":    make([]byte, 64),
		"truncated value": valid[:len(valid)-1],
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(data)
			assert.ErrorIs(t, err, interfaces.ErrCorruptRecord)
		})
	}
}

func TestMappingStore_AbsentIsNotZero(t *testing.T) {
	ctx := context.Background()
	store := NewMappingStore(storage.NewMemoryBackend(testLogger()), testLogger())
	pk := interfaces.PartitionKey{0x42}

	rec, ok, err := store.Get(ctx, pk)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, interfaces.MappingRecord{}, rec)

	// An all-zero record is still a present record
	require.NoError(t, store.Put(ctx, pk, interfaces.MappingRecord{}))
	rec, ok, err = store.Get(ctx, pk)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, interfaces.MappingRecord{}, rec)
}

func TestMappingStore_StorageFailure(t *testing.T) {
	ctx := context.Background()
	pk := interfaces.PartitionKey{0x01}
	backendErr := errors.New("connection reset")

	kv := &MockKVStore{}
	kv.On("Get", mock.Anything, partition.StorageKey(pk)).Return(nil, backendErr)
	kv.On("Put", mock.Anything, partition.StorageKey(pk), mock.Anything).Return(backendErr)

	store := NewMappingStore(kv, testLogger())

	_, ok, err := store.Get(ctx, pk)
	assert.False(t, ok)
	assert.ErrorIs(t, err, interfaces.ErrStorageFailure)
	assert.ErrorIs(t, err, backendErr)

	err = store.Put(ctx, pk, interfaces.MappingRecord{})
	assert.ErrorIs(t, err, interfaces.ErrStorageFailure)
	assert.ErrorIs(t, err, backendErr)

	kv.AssertExpectations(t)
}

func TestMappingStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryBackend(testLogger())
	store := NewMappingStore(kv, testLogger())
	pk := interfaces.PartitionKey{0x07}

	require.NoError(t, kv.Put(ctx, partition.StorageKey(pk), []byte{0xc1, 0x80}))

	_, ok, err := store.Get(ctx, pk)
	assert.False(t, ok)
	assert.ErrorIs(t, err, interfaces.ErrCorruptRecord)
}
