package storage

import (
	"sync"
	"sync/atomic"

	"github.com/saiset-co/sai-request/types"
)

// MemoryStore keeps values for the life of the process.
type MemoryStore struct {
	logger types.Logger
	data   map[string]string
	mu     sync.RWMutex
	state  atomic.Value
}

func NewMemoryStore(logger types.Logger) *MemoryStore {
	store := &MemoryStore{
		logger: logger,
		data:   make(map[string]string),
	}

	store.state.Store(StateStopped)
	return store
}

func (m *MemoryStore) Start() error {
	if !m.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

func (m *MemoryStore) Stop() error {
	if !m.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServerNotRunning
	}
	return nil
}

func (m *MemoryStore) IsRunning() bool {
	return m.state.Load().(State) == StateRunning
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return value, ok
}

func (m *MemoryStore) Set(key, value string) error {
	if key == "" {
		return types.ErrStorageKeyEmpty
	}

	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}
