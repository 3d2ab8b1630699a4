package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// WebSocketNotifier pushes notices as JSON text frames to a remote console.
// Notify never blocks; a full queue drops the notice.
type WebSocketNotifier struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       types.Logger
	metrics      types.MetricsManager
	config       *types.WebSocketNotifyConfig
	conn         *websocket.Conn
	connMu       sync.Mutex
	send         chan *types.Notice
	done         chan struct{}
	state        atomic.Value
	pingInterval time.Duration
}

func NewWebSocketNotifier(ctx context.Context, logger types.Logger, metrics types.MetricsManager, config *types.WebSocketNotifyConfig) *WebSocketNotifier {
	wsConfig := *config
	if wsConfig.WriteWait <= 0 {
		wsConfig.WriteWait = 10 * time.Second
	}
	if wsConfig.QueueSize <= 0 {
		wsConfig.QueueSize = 64
	}

	notifierCtx, cancel := context.WithCancel(ctx)

	notifier := &WebSocketNotifier{
		ctx:          notifierCtx,
		cancel:       cancel,
		logger:       logger,
		metrics:      metrics,
		config:       &wsConfig,
		send:         make(chan *types.Notice, wsConfig.QueueSize),
		done:         make(chan struct{}),
		pingInterval: 54 * time.Second,
	}

	notifier.state.Store(StateStopped)

	return notifier
}

func (w *WebSocketNotifier) Start() error {
	if !w.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	if err := w.connect(); err != nil {
		w.setState(StateStopped)
		return types.WrapError(err, "failed to establish notice connection")
	}

	go w.writePump()

	w.setState(StateRunning)
	w.logger.Debug("WebSocket notifier started", zap.String("url", w.config.URL))
	return nil
}

func (w *WebSocketNotifier) Stop() error {
	if !w.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer w.setState(StateStopped)

	w.cancel()

	select {
	case <-w.done:
	case <-time.After(w.config.WriteWait):
		w.logger.Warn("WebSocket notifier stop timeout")
	}

	w.connMu.Lock()
	defer w.connMu.Unlock()

	if w.conn != nil {
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err := w.conn.Close()
		w.conn = nil
		if err != nil {
			return types.WrapError(err, "failed to close notice connection")
		}
	}

	return nil
}

func (w *WebSocketNotifier) IsRunning() bool {
	return w.getState() == StateRunning
}

func (w *WebSocketNotifier) Notify(severity types.Severity, text string) {
	if !w.IsRunning() {
		w.recordMetric("not_running")
		return
	}

	notice := &types.Notice{
		Severity:  severity,
		Text:      text,
		Timestamp: time.Now(),
		ID:        uuid.NewString(),
	}

	select {
	case w.send <- notice:
		w.recordMetric("queued")
	default:
		w.logger.Warn("Notice queue is full, dropping notice", zap.String("text", text))
		w.recordMetric("dropped")
	}
}

func (w *WebSocketNotifier) getState() State {
	return w.state.Load().(State)
}

func (w *WebSocketNotifier) setState(newState State) bool {
	currentState := w.getState()
	return w.state.CompareAndSwap(currentState, newState)
}

func (w *WebSocketNotifier) transitionState(from, to State) bool {
	return w.state.CompareAndSwap(from, to)
}

func (w *WebSocketNotifier) connect() error {
	dialCtx, cancel := context.WithTimeout(w.ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, w.config.URL, nil)
	if err != nil {
		return types.WrapError(err, "failed to dial websocket server")
	}

	w.connMu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.conn = conn
	w.connMu.Unlock()

	return nil
}

func (w *WebSocketNotifier) writePump() {
	ticker := time.NewTicker(w.pingInterval)
	defer func() {
		ticker.Stop()
		close(w.done)
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case notice := <-w.send:
			data, err := utils.Marshal(notice)
			if err != nil {
				w.logger.Error("Failed to marshal notice", zap.Error(err))
				continue
			}

			if err = w.write(websocket.TextMessage, data); err != nil {
				w.logger.Error("Failed to send notice", zap.Error(err))
				w.recordMetric("error")
				w.reconnect()
				continue
			}
			w.recordMetric("sent")
		case <-ticker.C:
			if err := w.write(websocket.PingMessage, nil); err != nil {
				w.logger.Debug("Ping failed", zap.Error(err))
				w.reconnect()
			}
		}
	}
}

func (w *WebSocketNotifier) write(messageType int, data []byte) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	if w.conn == nil {
		return types.ErrNotifierNotRunning
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteWait))
	return w.conn.WriteMessage(messageType, data)
}

func (w *WebSocketNotifier) reconnect() {
	if w.ctx.Err() != nil {
		return
	}

	if err := w.connect(); err != nil {
		w.logger.Warn("Notice connection lost", zap.Error(err))
	}
}

func (w *WebSocketNotifier) recordMetric(result string) {
	if w.metrics == nil {
		return
	}

	w.metrics.Counter(metrics.NoticesTotal, map[string]string{
		"sink":   "websocket",
		"result": result,
	}).Inc()
}
