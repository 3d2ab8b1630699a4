package notify

import (
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

// LoggerNotifier writes notices to the structured log.
type LoggerNotifier struct {
	logger types.Logger
}

func NewLoggerNotifier(logger types.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (l *LoggerNotifier) Notify(severity types.Severity, text string) {
	fields := []zap.Field{zap.String("severity", string(severity)), zap.String("text", text)}

	switch severity {
	case types.SeverityError:
		l.logger.Error("Notice", fields...)
	case types.SeverityWarning:
		l.logger.Warn("Notice", fields...)
	default:
		l.logger.Info("Notice", fields...)
	}
}
