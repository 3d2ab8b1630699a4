package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/types"
)

var customCacheCreators = make(map[string]types.CacheManagerCreator)

func RegisterCacheManager(cacheManagerName string, creator types.CacheManagerCreator) {
	customCacheCreators[cacheManagerName] = creator
}

func NewCacheManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, clock types.Clock) (types.CacheManager, error) {
	cacheConfig := config.GetConfig().Cache

	if cacheConfig == nil || !cacheConfig.Enabled {
		return nil, types.ErrCacheIsDisabled
	}

	cacheManagerName := cacheConfig.Type

	var impl types.CacheManager
	var err error

	switch cacheManagerName {
	case "memory", "":
		impl = NewMemoryCache(logger, clock)
	case "redis":
		impl, err = NewRedisCache(ctx, logger, clock, cacheConfig)
	default:
		if creator, exists := customCacheCreators[cacheManagerName]; exists {
			impl, err = creator(cacheConfig.Config)
		} else {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", cacheManagerName)
		}
	}

	if err != nil {
		return nil, err
	}

	logger.Debug("Cache manager initialized", zap.String("type", cacheManagerName))

	return newInstrumentedCacheManager(logger, metrics, impl), nil
}

type instrumentedCacheManager struct {
	impl    types.CacheManager
	logger  types.Logger
	metrics types.MetricsManager
}

func newInstrumentedCacheManager(logger types.Logger, metrics types.MetricsManager, impl types.CacheManager) types.CacheManager {
	return &instrumentedCacheManager{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}
}

func (icm *instrumentedCacheManager) Get(identity string) ([]byte, bool) {
	start := time.Now()
	value, exists := icm.impl.Get(identity)
	duration := time.Since(start)

	result := "miss"
	if exists {
		result = "hit"
	}

	icm.recordMetric("get", result, duration)
	return value, exists
}

func (icm *instrumentedCacheManager) Set(identity string, payload []byte, ttl time.Duration) error {
	start := time.Now()
	err := icm.impl.Set(identity, payload, ttl)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("set", result, duration)
	return err
}

func (icm *instrumentedCacheManager) Delete(identity string) error {
	start := time.Now()
	err := icm.impl.Delete(identity)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("delete", result, duration)
	return err
}

func (icm *instrumentedCacheManager) Len() int {
	return icm.impl.Len()
}

func (icm *instrumentedCacheManager) Start() error {
	start := time.Now()
	err := icm.impl.Start()
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("start", result, duration)

	return err
}

func (icm *instrumentedCacheManager) Stop() error {
	return icm.impl.Stop()
}

func (icm *instrumentedCacheManager) IsRunning() bool {
	return icm.impl.IsRunning()
}

func (icm *instrumentedCacheManager) recordMetric(operation, result string, duration time.Duration) {
	if icm.metrics == nil {
		return
	}

	icm.metrics.Counter(metrics.CacheOperationsTotal, map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()

	icm.metrics.Histogram(metrics.CacheOperationDuration, nil,
		map[string]string{"operation": operation},
	).Observe(duration.Seconds())
}
