package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-request/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() (*Loader, error) {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, *map[string]interface{}, error) {
	if configPath == "" {
		return nil, nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil, types.Errorf(types.ErrConfigInvalidPath, "file not found: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, nil, types.WrapError(err, "failed to read config file")
	}

	return l.LoadFromBytes(data)
}

// LoadStatic validates a config built in code. Nil sections take defaults.
func (l *Loader) LoadStatic(config *types.ServiceConfig) (*types.ServiceConfig, *map[string]interface{}, error) {
	merged := *config
	defaults := l.Defaults()

	if merged.Logger == nil {
		merged.Logger = defaults.Logger
	}
	if merged.Client == nil {
		merged.Client = defaults.Client
	}
	if merged.Cache == nil {
		merged.Cache = defaults.Cache
	}
	if merged.Storage == nil {
		merged.Storage = defaults.Storage
	}
	if merged.Metrics == nil {
		merged.Metrics = defaults.Metrics
	}
	if merged.Notify == nil {
		merged.Notify = defaults.Notify
	}
	if merged.Guard == nil {
		merged.Guard = defaults.Guard
	}

	if err := l.validator.Struct(&merged); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	rawData, err := l.rawView(&merged)
	if err != nil {
		return nil, nil, err
	}

	return &merged, rawData, nil
}

// LoadFromBytes parses YAML over the defaults and validates the result.
func (l *Loader) LoadFromBytes(data []byte) (*types.ServiceConfig, *map[string]interface{}, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigParseFailed, "failed to parse YAML config: %v", err)
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	rawData, err := l.rawView(config)
	if err != nil {
		return nil, nil, err
	}

	return config, rawData, nil
}

func (l *Loader) rawView(config *types.ServiceConfig) (*map[string]interface{}, error) {
	rawData := make(map[string]interface{})

	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, types.WrapError(err, "failed to marshal merged config")
	}
	if err = yaml.Unmarshal(data, &rawData); err != nil {
		return nil, types.WrapError(err, "failed to build raw config")
	}

	return &rawData, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Client: &types.ClientConfig{
			Timeout:                   types.DefaultTimeout,
			RetryCount:                types.DefaultRetryCount,
			RetryDelay:                types.DefaultRetryDelay,
			CacheTime:                 types.DefaultCacheTime,
			UnauthorizedRedirectDelay: types.DefaultRedirectDelay,
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          false,
				FailureThreshold: 5,
				RecoveryTimeout:  30 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Cache: &types.CacheConfig{
			Enabled: true,
			Type:    "memory",
		},
		Storage: &types.StorageConfig{
			Type: "memory",
		},
		Metrics: &types.MetricsConfig{
			Enabled: false,
			Type:    "memory",
		},
		Notify: &types.NotifyConfig{
			WebSocket: &types.WebSocketNotifyConfig{
				Enabled:   false,
				WriteWait: 10 * time.Second,
				QueueSize: 64,
			},
		},
		Guard: &types.GuardConfig{
			HomePath:         "/",
			LoginPath:        "/login",
			ForbiddenPath:    "/403",
			ServerErrorPath:  "/500",
			AllowList:        []string{"/login", "/register", "/forget-password", "/404", "/403", "/500"},
			UserInfoURL:      "/api/user/info",
			PermissionsURL:   "/api/user/permissions",
			LoginURL:         "/api/login",
			LogoutURL:        "/api/logout",
			ApplicationTitle: "Admin",
		},
	}
}
