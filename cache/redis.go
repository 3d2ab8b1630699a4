package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

type RedisConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	Password           string        `json:"password"`
	DB                 int           `json:"db"`
	PoolSize           int           `json:"pool_size"`
	MinIdleConnections int           `json:"min_idle_connections"`
	DialTimeout        time.Duration `json:"dial_timeout"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout"`
	KeyPrefix          string        `json:"key_prefix"`
}

// RedisCache stores entries as JSON without a Redis expiry so that the age
// check stays with the reader, same as the in-memory backend.
type RedisCache struct {
	ctx     context.Context
	logger  types.Logger
	clock   types.Clock
	config  *RedisConfig
	client  *redis.Client
	started int32
}

func NewRedisCache(ctx context.Context, logger types.Logger, clock types.Clock, config *types.CacheConfig) (*RedisCache, error) {
	var redisConfig = &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeout:        5 * time.Second,
		ReadTimeout:        3 * time.Second,
		WriteTimeout:       3 * time.Second,
		KeyPrefix:          "sai-request",
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, redisConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis cache config")
		}
	}

	if clock == nil {
		clock = types.SystemClock{}
	}

	cache := &RedisCache{
		ctx:    ctx,
		logger: logger,
		clock:  clock,
		config: redisConfig,
	}

	cache.initRedisClient()

	if err := cache.ping(); err != nil {
		_ = cache.client.Close()
		return nil, types.Errorf(types.ErrCacheConnectionFailed, "%v", err)
	}

	return cache, nil
}

func (r *RedisCache) Get(identity string) ([]byte, bool) {
	if identity == "" {
		return nil, false
	}

	fullKey := r.buildFullKey(identity)

	result, err := r.client.Get(r.ctx, fullKey).Bytes()
	if err != nil {
		if !types.IsError(err, redis.Nil) {
			r.logger.Error("Failed to get cache entry", zap.String("identity", identity), zap.Error(err))
		}
		return nil, false
	}

	var entry types.CacheEntry
	if err = utils.Unmarshal(result, &entry); err != nil {
		r.logger.Error("Failed to unmarshal cache entry", zap.String("identity", identity), zap.Error(err))
		return nil, false
	}

	if entry.Expired(r.clock.Now()) {
		return nil, false
	}

	return entry.Payload, true
}

func (r *RedisCache) Set(identity string, payload []byte, ttl time.Duration) error {
	if identity == "" {
		return types.ErrCacheKeyEmpty
	}

	data, err := utils.Marshal(&types.CacheEntry{
		Identity: identity,
		Payload:  payload,
		TTL:      ttl,
		StoredAt: r.clock.Now(),
	})
	if err != nil {
		return types.WrapError(err, "failed to marshal cache entry")
	}

	if err = r.client.Set(r.ctx, r.buildFullKey(identity), data, 0).Err(); err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "set: %v", err)
	}

	return nil
}

func (r *RedisCache) Delete(identity string) error {
	if err := r.client.Del(r.ctx, r.buildFullKey(identity)).Err(); err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "delete: %v", err)
	}
	return nil
}

func (r *RedisCache) Len() int {
	var count int
	iter := r.client.Scan(r.ctx, 0, r.buildFullKey("*"), 100).Iterator()
	for iter.Next(r.ctx) {
		count++
	}

	if err := iter.Err(); err != nil {
		r.logger.Error("Failed to scan cache keys", zap.Error(err))
	}

	return count
}

func (r *RedisCache) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	r.logger.Debug("Redis cache started", zap.String("host", r.config.Host), zap.Int("port", r.config.Port))

	return nil
}

func (r *RedisCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis client", zap.Error(err))
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Debug("Redis cache closed")
	return nil
}

func (r *RedisCache) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *RedisCache) initRedisClient() {
	addr := fmt.Sprintf("%s:%d", r.config.Host, r.config.Port)

	r.client = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     r.config.Password,
		DB:           r.config.DB,
		PoolSize:     r.config.PoolSize,
		MinIdleConns: r.config.MinIdleConnections,
		DialTimeout:  r.config.DialTimeout,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
	})
}

func (r *RedisCache) ping() error {
	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) buildFullKey(key string) string {
	if r.config.KeyPrefix != "" {
		return r.config.KeyPrefix + ":" + key
	}
	return key
}
