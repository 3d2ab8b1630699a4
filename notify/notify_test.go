package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

type panickingSink struct{}

func (panickingSink) Notify(types.Severity, string) { panic("sink exploded") }

func TestFanoutDeliversToEverySink(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()

	fanout := NewFanout(logger.NewNop(), first, nil, panickingSink{}, second)
	fanout.Notify(types.SeverityError, "Server error, please try again later")

	require.Equal(t, 1, first.Len())
	require.Equal(t, 1, second.Len())
	assert.Equal(t, types.SeverityError, second.Notices()[0].Severity)
	assert.Equal(t, "Server error, please try again later", second.Notices()[0].Text)
}

func TestRecorderReset(t *testing.T) {
	r := NewRecorder()
	r.Notify(types.SeverityInfo, "one")
	r.Reset()
	assert.Zero(t, r.Len())
}

func TestLoggerNotifierDoesNotPanic(t *testing.T) {
	n := NewLoggerNotifier(logger.NewNop())
	assert.NotPanics(t, func() {
		n.Notify(types.SeverityWarning, "Request failed")
		n.Notify(types.SeverityError, "Request failed")
		n.Notify(types.SeveritySuccess, "Saved")
	})
}

func TestWebSocketNotifierSendsNotices(t *testing.T) {
	received := make(chan []byte, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data

		// Drain until the client closes.
		for {
			if _, _, err = conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	n := NewWebSocketNotifier(context.Background(), logger.NewNop(), nil, &types.WebSocketNotifyConfig{
		Enabled:   true,
		URL:       "ws" + strings.TrimPrefix(server.URL, "http"),
		WriteWait: time.Second,
		QueueSize: 4,
	})

	n.Notify(types.SeverityInfo, "dropped before start")

	require.NoError(t, n.Start())
	n.Notify(types.SeverityWarning, "Network connection error, please check your network settings")

	select {
	case data := <-received:
		var notice types.Notice
		require.NoError(t, utils.Unmarshal(data, &notice))
		assert.Equal(t, types.SeverityWarning, notice.Severity)
		assert.Equal(t, "Network connection error, please check your network settings", notice.Text)
		assert.NotEmpty(t, notice.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("notice was not delivered")
	}

	require.NoError(t, n.Stop())
	assert.False(t, n.IsRunning())
}

func TestWebSocketNotifierStartFailsWithoutServer(t *testing.T) {
	n := NewWebSocketNotifier(context.Background(), logger.NewNop(), nil, &types.WebSocketNotifyConfig{
		URL: "ws://127.0.0.1:1/notices",
	})

	assert.Error(t, n.Start())
	assert.False(t, n.IsRunning())
}
