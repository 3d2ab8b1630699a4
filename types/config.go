package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name    string         `yaml:"name" json:"name" validate:"required"`
	Version string         `yaml:"version" json:"version" validate:"required"`
	Logger  *LoggerConfig  `yaml:"logger" json:"logger"`
	Client  *ClientConfig  `yaml:"client" json:"client" validate:"required"`
	Cache   *CacheConfig   `yaml:"cache" json:"cache"`
	Storage *StorageConfig `yaml:"storage" json:"storage"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
	Notify  *NotifyConfig  `yaml:"notify" json:"notify"`
	Guard   *GuardConfig   `yaml:"guard" json:"guard"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type ClientConfig struct {
	BaseURL                   string                `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Timeout                   time.Duration         `yaml:"timeout" json:"timeout" validate:"min=0"`
	RetryCount                int                   `yaml:"retry_count" json:"retry_count" validate:"min=0"`
	RetryDelay                time.Duration         `yaml:"retry_delay" json:"retry_delay" validate:"min=0"`
	CacheTime                 time.Duration         `yaml:"cache_time" json:"cache_time" validate:"min=0"`
	ClientInfo                string                `yaml:"client_info" json:"client_info"`
	UnauthorizedRedirectDelay time.Duration         `yaml:"unauthorized_redirect_delay" json:"unauthorized_redirect_delay" validate:"min=0"`
	CircuitBreaker            *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"min=0"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests" validate:"min=0"`
}

type CacheConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{} `yaml:"config" json:"config"`
}

type StorageConfig struct {
	Type   string      `yaml:"type" json:"type" validate:"required"`
	Path   string      `yaml:"path" json:"path"`
	Config interface{} `yaml:"config" json:"config"`
}

type MetricsConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Type    string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{}       `yaml:"config" json:"config"`
	Prefix  string            `yaml:"prefix" json:"prefix"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

type NotifyConfig struct {
	WebSocket *WebSocketNotifyConfig `yaml:"websocket" json:"websocket"`
}

type WebSocketNotifyConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	URL       string        `yaml:"url" json:"url" validate:"required_if=Enabled true"`
	WriteWait time.Duration `yaml:"write_wait" json:"write_wait"`
	QueueSize int           `yaml:"queue_size" json:"queue_size" validate:"min=0"`
}

type GuardConfig struct {
	HomePath         string   `yaml:"home_path" json:"home_path"`
	LoginPath        string   `yaml:"login_path" json:"login_path"`
	ForbiddenPath    string   `yaml:"forbidden_path" json:"forbidden_path"`
	ServerErrorPath  string   `yaml:"server_error_path" json:"server_error_path"`
	AllowList        []string `yaml:"allow_list" json:"allow_list"`
	UserInfoURL      string   `yaml:"user_info_url" json:"user_info_url"`
	PermissionsURL   string   `yaml:"permissions_url" json:"permissions_url"`
	LoginURL         string   `yaml:"login_url" json:"login_url"`
	LogoutURL        string   `yaml:"logout_url" json:"logout_url"`
	ApplicationTitle string   `yaml:"application_title" json:"application_title"`
}
