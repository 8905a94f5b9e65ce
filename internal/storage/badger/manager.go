package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager bundles the badger-backed stores behind one connection
type Manager struct {
	db   *BadgerDB
	jobs interfaces.JobStorage
	kv   interfaces.KeyValueStorage
}

// NewManager opens the database and wires the stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:   db,
		jobs: NewJobStorage(db, logger),
		kv:   NewKVStorage(db, logger),
	}, nil
}

// NewInMemoryManager wires the stores over an in-memory database. Test use.
func NewInMemoryManager(logger arbor.ILogger) (interfaces.StorageManager, error) {
	db, err := NewInMemoryDB(logger)
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:   db,
		jobs: NewJobStorage(db, logger),
		kv:   NewKVStorage(db, logger),
	}, nil
}

// JobStorage returns the job store
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

// KVStorage returns the key/value store
func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
