package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// ErrKeyNotFound is returned when a KV key has no record
var ErrKeyNotFound = fmt.Errorf("key not found")

// KeyValuePair is the stored KV record
type KeyValuePair struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KVStorage is a small badgerhold-backed key/value store for runtime
// settings.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a badgerhold-backed KV store
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{db: db, logger: logger}
}

// Get retrieves a value by key
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var pair KeyValuePair
	if err := s.db.Store().Get(key, &pair); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return pair.Value, nil
}

// Set inserts or updates a key/value pair
func (s *KVStorage) Set(ctx context.Context, key, value string) error {
	pair := KeyValuePair{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.Store().Upsert(key, &pair); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key/value pair
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	if err := s.db.Store().Delete(key, &KeyValuePair{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// GetAll returns every stored pair
func (s *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	var pairs []KeyValuePair
	if err := s.db.Store().Find(&pairs, nil); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		result[pair.Key] = pair.Value
	}
	return result, nil
}
