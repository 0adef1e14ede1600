package storage

import (
	"context"
	"sync"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
)

// Memory keeps stores in process. Stores are immutable, so they are shared
// rather than copied.
type Memory struct {
	mu     sync.RWMutex
	stores map[enrollment.Identity]*enrollment.Store
}

func NewMemory() *Memory {
	return &Memory{stores: make(map[enrollment.Identity]*enrollment.Store)}
}

func (m *Memory) Save(_ context.Context, id enrollment.Identity, store *enrollment.Store) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}
	if err := store.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[id] = store
	return nil
}

func (m *Memory) Load(_ context.Context, id enrollment.Identity) (*enrollment.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	store, ok := m.stores[id]
	if !ok {
		return nil, failure.ErrNoEnrollment
	}
	return store, nil
}

func (m *Memory) Delete(_ context.Context, id enrollment.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
	return nil
}
