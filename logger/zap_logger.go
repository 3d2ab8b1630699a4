package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

type ZapLoggerConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

func NewDefaultLogger(config *types.LoggerConfig) (*ZapWrapper, error) {
	lConfig := &ZapLoggerConfig{
		Format:     "console",
		Output:     "stdout",
		File:       "",
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     10,
		Compress:   false,
		Level:      config.Level,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, lConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal logger config")
		}
	}

	level := zap.NewAtomicLevelAt(parseLogLevel(lConfig.Level))

	logger, err := buildZapLogger(lConfig, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	l := &ZapWrapper{Logger: logger, level: level}

	l.Debug("Logger initialized",
		zap.String("level", lConfig.Level),
		zap.String("format", lConfig.Format),
		zap.String("output", lConfig.Output),
	)

	return l, nil
}

func buildZapLogger(config *ZapLoggerConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapConfig zap.Config
	if config.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeCaller = ideCallerEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig.DisableStacktrace = true
	zapConfig.Level = level

	switch config.Output {
	case "stderr":
		zapConfig.OutputPaths = []string{"stderr"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	case "file":
		if config.File != "" {
			err := ensureLogDir(config.File)
			if err != nil {
				return nil, err
			}
			zapConfig.OutputPaths = []string{config.File}
			zapConfig.ErrorOutputPaths = []string{config.File}
		} else {
			zapConfig.OutputPaths = []string{"stdout"}
			zapConfig.ErrorOutputPaths = []string{"stderr"}
		}
	default:
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}

	return logger, nil
}

func ideCallerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("%s:%d", caller.File, caller.Line))
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func ensureLogDir(logFile string) error {
	if logFile == "" {
		return types.ErrLogFileIsEmpty
	}

	dir := filepath.Dir(logFile)
	if dir == "." {
		return types.ErrLogFileWrongFormat
	}

	err := os.MkdirAll(dir, 0755)

	return types.WrapError(err, "access denied to log directory")
}

// ZapWrapper is the logger handed to every component. Children created with
// Named or With share the parent's level.
type ZapWrapper struct {
	Logger *zap.Logger
	level  zap.AtomicLevel
}

func NewZapWrapper(logger *zap.Logger) types.Logger {
	return &ZapWrapper{Logger: logger, level: zap.NewAtomicLevelAt(logger.Level())}
}

// NewNop returns a logger that discards everything.
func NewNop() types.Logger {
	return &ZapWrapper{Logger: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// Named returns a child logger tagged with the component name.
func (z *ZapWrapper) Named(component string) types.Logger {
	return &ZapWrapper{Logger: z.Logger.Named(component), level: z.level}
}

// With returns a child logger that adds fields to every entry.
func (z *ZapWrapper) With(fields ...zap.Field) types.Logger {
	return &ZapWrapper{Logger: z.Logger.With(fields...), level: z.level}
}

// SetLevel changes the level of this logger and all of its children.
func (z *ZapWrapper) SetLevel(level string) {
	z.level.SetLevel(parseLogLevel(level))
}

func (z *ZapWrapper) Level() zapcore.Level {
	return z.level.Level()
}

func (z *ZapWrapper) Sync() error {
	return z.Logger.Sync()
}

func (z *ZapWrapper) Error(msg string, fields ...zap.Field) {
	z.Logger.WithOptions(zap.AddCallerSkip(2)).Error(msg, fields...)
}

func (z *ZapWrapper) Warn(msg string, fields ...zap.Field) {
	z.Logger.WithOptions(zap.AddCallerSkip(2)).Warn(msg, fields...)
}

func (z *ZapWrapper) Info(msg string, fields ...zap.Field) {
	z.Logger.WithOptions(zap.AddCallerSkip(2)).Info(msg, fields...)
}

func (z *ZapWrapper) Debug(msg string, fields ...zap.Field) {
	z.Logger.WithOptions(zap.AddCallerSkip(2)).Debug(msg, fields...)
}

func (z *ZapWrapper) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	z.Logger.WithOptions(zap.AddCallerSkip(2)).Log(lvl, msg, fields...)
}

// ErrorWithErrStack logs err with its request failure fields and, when err
// carries one, the trimmed stack trace as a "stack" field.
func (z *ZapWrapper) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	if err == nil {
		z.Error(msg, fields...)
		return
	}

	allFields := With(Failure(err), fields)
	if frames := stackFrames(err); len(frames) > 0 {
		allFields = append(allFields, zap.Strings("stack", frames))
	}

	z.Logger.WithOptions(zap.AddCallerSkip(2)).Error(msg, allFields...)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackFrames returns the first recorded stack in the chain without error
// helper and runtime frames.
func stackFrames(err error) []string {
	var tracer stackTracer
	if !errors.As(err, &tracer) {
		return nil
	}

	trace := strings.TrimPrefix(fmt.Sprintf("%+v", tracer.StackTrace()), "\n")
	lines := strings.Split(trace, "\n")
	frames := make([]string, 0, len(lines)/2)
	for i := 0; i+1 < len(lines); i += 2 {
		fn := strings.TrimSpace(lines[i])
		location := strings.TrimSpace(lines[i+1])
		if fn == "" || skipFrame(fn, location) {
			continue
		}
		frames = append(frames, fn+" "+location)
	}

	return frames
}

func skipFrame(fn, location string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.Contains(location, "types/errors.go:") ||
		strings.Contains(location, "asm_amd64.s:")
}
