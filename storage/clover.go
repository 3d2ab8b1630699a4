package storage

import (
	"sync"
	"sync/atomic"

	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

const cloverCollection = "kv"

// CloverStore keeps each key as a {key, value} document in one collection.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
	path   string
	mu     sync.Mutex
	state  atomic.Value
}

func NewCloverStore(logger types.Logger, config *types.StorageConfig) (*CloverStore, error) {
	if config.Path == "" {
		return nil, types.Errorf(types.ErrStorageOpenFailed, "clover storage requires a path")
	}

	db, err := clover.Open(config.Path)
	if err != nil {
		return nil, types.Errorf(types.ErrStorageOpenFailed, "clover: %v", err)
	}

	exists, err := db.HasCollection(cloverCollection)
	if err != nil {
		_ = db.Close()
		return nil, types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		if err = db.CreateCollection(cloverCollection); err != nil {
			_ = db.Close()
			return nil, types.WrapError(err, "failed to create collection")
		}
	}

	store := &CloverStore{
		db:     db,
		logger: logger,
		path:   config.Path,
	}

	store.state.Store(StateStopped)
	return store, nil
}

func (c *CloverStore) Start() error {
	if !c.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}

	c.logger.Debug("Clover storage started", zap.String("path", c.path))
	return nil
}

func (c *CloverStore) Stop() error {
	if !c.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer c.state.Store(StateStopped)

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close clover storage")
	}

	c.logger.Debug("Clover storage stopped")
	return nil
}

func (c *CloverStore) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

func (c *CloverStore) Get(key string) (string, bool) {
	docs, err := c.query(key).FindAll()
	if err != nil {
		c.logger.Error("Failed to read storage key", zap.String("key", key), zap.Error(err))
		return "", false
	}

	if len(docs) == 0 {
		return "", false
	}

	value, ok := docs[0].Get("value").(string)
	return value, ok
}

func (c *CloverStore) Set(key, value string) error {
	if key == "" {
		return types.ErrStorageKeyEmpty
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	count, err := c.query(key).Count()
	if err != nil {
		return types.WrapError(err, "failed to count storage documents")
	}

	if count > 0 {
		if err = c.query(key).Update(map[string]interface{}{"value": value}); err != nil {
			return types.WrapError(err, "failed to update storage key")
		}
		return nil
	}

	doc := clover.NewDocument()
	doc.Set("key", key)
	doc.Set("value", value)

	if err = c.db.Insert(cloverCollection, doc); err != nil {
		return types.WrapError(err, "failed to insert storage key")
	}

	return nil
}

func (c *CloverStore) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.query(key).Delete(); err != nil {
		return types.WrapError(err, "failed to remove storage key")
	}

	return nil
}

func (c *CloverStore) query(key string) *clover.Query {
	return c.db.Query(cloverCollection).Where(clover.Field("key").Eq(key))
}
