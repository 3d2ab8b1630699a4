package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

type MemoryState int32

const (
	MemoryStateStopped MemoryState = iota
	MemoryStateStarting
	MemoryStateRunning
	MemoryStateStopping
)

// MemoryCache keeps entries until they are overwritten. Expired entries are
// skipped on read and stay in the map.
type MemoryCache struct {
	logger types.Logger
	clock  types.Clock
	data   map[string]*types.CacheEntry
	hits   uint64
	misses uint64
	mu     sync.RWMutex
	state  atomic.Value
}

func NewMemoryCache(logger types.Logger, clock types.Clock) *MemoryCache {
	if clock == nil {
		clock = types.SystemClock{}
	}

	cache := &MemoryCache{
		logger: logger,
		clock:  clock,
		data:   make(map[string]*types.CacheEntry),
	}

	cache.state.Store(MemoryStateStopped)

	return cache
}

func (m *MemoryCache) Get(identity string) ([]byte, bool) {
	m.mu.RLock()
	entry, exists := m.data[identity]
	m.mu.RUnlock()

	if !exists || entry.Expired(m.clock.Now()) {
		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&m.hits, 1)
	return utils.CopyBytes(entry.Payload), true
}

func (m *MemoryCache) Set(identity string, payload []byte, ttl time.Duration) error {
	if identity == "" {
		m.logger.Error("Attempted to set cache entry with empty identity")
		return types.ErrCacheKeyEmpty
	}

	entry := &types.CacheEntry{
		Identity: identity,
		Payload:  utils.CopyBytes(payload),
		TTL:      ttl,
		StoredAt: m.clock.Now(),
	}

	m.mu.Lock()
	m.data[identity] = entry
	m.mu.Unlock()

	return nil
}

func (m *MemoryCache) Delete(identity string) error {
	m.mu.Lock()
	delete(m.data, identity)
	m.mu.Unlock()

	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

func (m *MemoryCache) Start() error {
	if !m.transitionState(MemoryStateStopped, MemoryStateStarting) {
		return types.ErrServerAlreadyRunning
	}

	m.setState(MemoryStateRunning)
	m.logger.Debug("Memory cache started")

	return nil
}

func (m *MemoryCache) Stop() error {
	if !m.transitionState(MemoryStateRunning, MemoryStateStopping) {
		return types.ErrServerNotRunning
	}

	defer m.setState(MemoryStateStopped)

	m.mu.Lock()
	size := len(m.data)
	m.data = make(map[string]*types.CacheEntry)
	m.mu.Unlock()

	m.logger.Debug("Memory cache stopped",
		zap.Int("entries", size),
		zap.Uint64("hits", atomic.LoadUint64(&m.hits)),
		zap.Uint64("misses", atomic.LoadUint64(&m.misses)),
	)

	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return m.getState() == MemoryStateRunning
}

func (m *MemoryCache) getState() MemoryState {
	return m.state.Load().(MemoryState)
}

func (m *MemoryCache) setState(newState MemoryState) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *MemoryCache) transitionState(from, to MemoryState) bool {
	return m.state.CompareAndSwap(from, to)
}
