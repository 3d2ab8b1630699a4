package notify

import (
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

// Fanout delivers each notice to every sink. A panicking sink is logged and
// skipped.
type Fanout struct {
	logger types.Logger
	sinks  []types.Notifier
}

func NewFanout(logger types.Logger, sinks ...types.Notifier) *Fanout {
	filtered := make([]types.Notifier, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}

	return &Fanout{logger: logger, sinks: filtered}
}

func (f *Fanout) Notify(severity types.Severity, text string) {
	for _, sink := range f.sinks {
		f.deliver(sink, severity, text)
	}
}

func (f *Fanout) deliver(sink types.Notifier, severity types.Severity, text string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Notice sink panicked", zap.Any("panic", r))
		}
	}()

	sink.Notify(severity, text)
}
