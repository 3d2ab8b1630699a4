package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

var customStorageCreators = make(map[string]types.StorageManagerCreator)

func RegisterStorageManager(storageType string, creator types.StorageManagerCreator) {
	customStorageCreators[storageType] = creator
}

func NewManager(_ context.Context, config types.ConfigManager, logger types.Logger) (types.StorageManager, error) {
	storageConfig := config.GetConfig().Storage
	if storageConfig == nil {
		storageConfig = &types.StorageConfig{Type: "memory"}
	}

	var impl types.StorageManager
	var err error

	switch storageConfig.Type {
	case "memory", "":
		impl = NewMemoryStore(logger)
	case "clover":
		impl, err = NewCloverStore(logger, storageConfig)
	case "sqlite":
		impl, err = NewSQLiteStore(logger, storageConfig)
	default:
		if creator, exists := customStorageCreators[storageConfig.Type]; exists {
			impl, err = creator(storageConfig.Config)
		} else {
			return nil, types.Errorf(types.ErrStorageTypeUnknown, "type: %s", storageConfig.Type)
		}
	}

	if err != nil {
		return nil, err
	}

	logger.Debug("Storage manager initialized", zap.String("type", storageConfig.Type))

	return impl, nil
}
