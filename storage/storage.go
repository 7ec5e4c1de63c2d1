package storage

import (
	"sync"

	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/projector"
)

// Backend represents a storage backend
type Backend interface {
	// Store persists one record
	Store(record *projector.Record) error
	// Close releases the backend's resources
	Close() error
}

// Manager fans one record out to every configured backend
type Manager struct {
	backends []Backend
	mutex    sync.RWMutex
}

// NewManager creates a storage manager over the given backends
func NewManager(backends []Backend) *Manager {
	return &Manager{
		backends: backends,
	}
}

// Store writes the record to all backends. A failing backend does not
// prevent the others from being attempted; the first error is returned
// and the caller logs it with connection context.
func (m *Manager) Store(record *projector.Record) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Store(record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all backends
func (m *Manager) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, backend := range m.backends {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close storage backend: %v", err)
		}
	}
}

// AddBackend adds a backend to the manager
func (m *Manager) AddBackend(backend Backend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.backends = append(m.backends, backend)
}
