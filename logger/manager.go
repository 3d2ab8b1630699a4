package logger

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saiset-co/sai-request/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// Manager owns the root logger. Components receive children from Named so
// every entry names the part of the request path that wrote it.
type Manager struct {
	logger *ZapWrapper
	state  atomic.Value
}

var customLoggerCreators = make(map[string]types.LoggerCreator)

func RegisterLogger(loggerName string, creator types.LoggerCreator) {
	customLoggerCreators[loggerName] = creator
}

func NewManager(_ context.Context, config types.ConfigManager) (*Manager, error) {
	cfg := config.GetConfig()
	if cfg.Logger == nil {
		return nil, types.ErrLoggerConfigInvalid
	}

	logger, err := createLogger(cfg.Logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	if cfg.Name != "" {
		logger = &ZapWrapper{Logger: logger.Logger.With(zap.String("service", cfg.Name)), level: logger.level}
	}

	manager := &Manager{logger: logger}

	manager.state.Store(StateStopped)

	return manager, nil
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	m.setState(StateRunning)
	return nil
}

// Stop flushes buffered entries. Sync errors on terminals are ignored.
func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}
	defer m.setState(StateStopped)

	if err := m.logger.Sync(); err != nil && !isTerminalSyncError(err) {
		return types.WrapError(err, "failed to flush logger")
	}

	return nil
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

// Named returns a component logger sharing the root level.
func (m *Manager) Named(component string) types.Logger {
	return m.logger.Named(component)
}

func (m *Manager) With(fields ...zap.Field) types.Logger {
	return m.logger.With(fields...)
}

func (m *Manager) SetLevel(level string) {
	m.logger.SetLevel(level)
}

func (m *Manager) Level() zapcore.Level {
	return m.logger.Level()
}

func (m *Manager) Error(msg string, fields ...zap.Field) {
	m.logger.Error(msg, fields...)
}

func (m *Manager) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	m.logger.ErrorWithErrStack(msg, err, fields...)
}

func (m *Manager) Warn(msg string, fields ...zap.Field) {
	m.logger.Warn(msg, fields...)
}

func (m *Manager) Info(msg string, fields ...zap.Field) {
	m.logger.Info(msg, fields...)
}

func (m *Manager) Debug(msg string, fields ...zap.Field) {
	m.logger.Debug(msg, fields...)
}

func (m *Manager) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	m.logger.Log(lvl, msg, fields...)
}

func (m *Manager) getState() State {
	return m.state.Load().(State)
}

func (m *Manager) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

func createLogger(loggerConfig *types.LoggerConfig) (*ZapWrapper, error) {
	loggerName := "default"
	if loggerConfig.Type != "" {
		loggerName = loggerConfig.Type
	}

	switch loggerName {
	case "default":
		return NewDefaultLogger(loggerConfig)
	default:
		creator, exists := customLoggerCreators[loggerName]
		if !exists {
			return nil, types.Errorf(types.ErrLoggerTypeUnknown, "logger type: %s", loggerName)
		}

		custom, err := creator(loggerConfig.Config)
		if err != nil {
			return nil, err
		}

		if wrapper, ok := custom.(*ZapWrapper); ok {
			return wrapper, nil
		}
		return nil, types.Errorf(types.ErrLoggerTypeUnknown, "logger %s is not zap backed", loggerName)
	}
}

func isTerminalSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "inappropriate ioctl") ||
		strings.Contains(msg, "bad file descriptor")
}
