package service

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zapcore"

	"github.com/saiset-co/sai-request/client"
	"github.com/saiset-co/sai-request/guard"
	"github.com/saiset-co/sai-request/notify"
	"github.com/saiset-co/sai-request/types"
)

func startBackend(t *testing.T) (string, *atomic.Int32) {
	t.Helper()

	var ordersCalls atomic.Int32

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")

		authorized := string(ctx.Request.Header.Peek("Authorization")) == "Bearer t-42"

		switch string(ctx.Path()) {
		case "/api/login":
			if string(ctx.QueryArgs().Peek("password")) != "secret" {
				ctx.SetBodyString(`{"code":400,"message":"wrong password"}`)
				return
			}
			ctx.SetBodyString(`{"code":200,"data":{"token":"t-42"}}`)
		case "/api/user/info":
			if !authorized {
				ctx.SetBodyString(`{"code":401}`)
				return
			}
			ctx.SetBodyString(`{"code":200,"data":{"id":42,"username":"carol"}}`)
		case "/api/user/permissions":
			ctx.SetBodyString(`{"code":200,"data":["orders:read"]}`)
		case "/api/orders":
			ordersCalls.Add(1)
			ctx.SetBodyString(`{"code":200,"data":[{"id":1}]}`)
		case "/api/logout":
			ctx.SetBodyString(`{"code":200}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}}

	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return "http://" + ln.Addr().String(), &ordersCalls
}

func testConfig(baseURL string) *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "console",
		Version: "1.0.0",
		Logger:  &types.LoggerConfig{Level: "error"},
		Client: &types.ClientConfig{
			BaseURL:    baseURL,
			Timeout:    2 * time.Second,
			RetryCount: 1,
			RetryDelay: 10 * time.Millisecond,
			CacheTime:  time.Minute,
		},
		Metrics: &types.MetricsConfig{Enabled: true, Type: "memory"},
	}
}

func TestServiceEndToEnd(t *testing.T) {
	baseURL, ordersCalls := startBackend(t)
	notices := notify.NewRecorder()

	svc, err := NewServiceFromConfig(context.Background(), testConfig(baseURL), Host{Notifier: notices})
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	defer func() { assert.NoError(t, svc.Stop()) }()

	assert.True(t, svc.IsRunning())

	ctx := context.Background()
	decision := svc.Guard().BeforeEach(ctx, guard.Route{Path: "/orders"})
	assert.Equal(t, "/login?redirect=%2Forders", decision.Path)

	ok, err := svc.Session().Login(ctx, "carol", "wrong")
	assert.False(t, ok)
	assert.ErrorIs(t, err, types.ErrApplication)
	require.Len(t, notices.Notices(), 1)
	assert.Equal(t, "wrong password", notices.Notices()[0].Text)

	ok, err = svc.Session().Login(ctx, "carol", "secret")
	require.NoError(t, err)
	require.True(t, ok)

	decision = svc.Guard().BeforeEach(ctx, guard.Route{
		Path: "/orders",
		Meta: guard.Meta{Title: "Orders", RequiredPermissions: []string{"orders:read"}},
	})
	assert.Equal(t, guard.Proceed, decision.Kind)
	assert.Equal(t, "Orders - Admin", decision.Title)

	for i := 0; i < 3; i++ {
		result := svc.Client().Get(ctx, "/api/orders", nil, client.WithCache(0))
		require.True(t, result.OK())
	}
	assert.Equal(t, int32(1), ordersCalls.Load())

	hits := svc.Metrics().Counter("client_cache_total", map[string]string{"result": "hit"}).Get()
	assert.Equal(t, float64(2), hits)

	svc.Session().Logout(ctx)
	assert.Equal(t, guard.StateUnauthenticated, svc.Guard().State())
}

func TestServiceLifecycle(t *testing.T) {
	svc, err := NewServiceFromConfig(context.Background(), testConfig(""), Host{})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Stop(), types.ErrServiceIsNotRunning)
	require.NoError(t, svc.Start())
	assert.ErrorIs(t, svc.Start(), types.ErrServiceIsRunning)
	require.NoError(t, svc.Stop())

	select {
	case <-svc.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after stop")
	}
	assert.False(t, svc.Client().IsRunning())
}

func TestServiceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: console
version: 2.0.0
logger:
  level: error
client:
  base_url: http://127.0.0.1:1
  retry_count: 0
storage:
  type: sqlite
  path: `+filepath.Join(t.TempDir(), "session.db")+`
cache:
  enabled: false
`), 0o600))

	svc, err := NewService(context.Background(), path, Host{})
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Equal(t, zapcore.ErrorLevel, svc.log.Level())
	svc.SetLogLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, svc.log.Level())

	require.NoError(t, svc.Session().SetToken("persisted"))
	assert.Equal(t, "persisted", svc.Session().Token())

	result := svc.Client().Get(context.Background(), "/api/orders", nil, client.WithCache(0))
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, types.ErrNetworkFailure)
}

func TestNewServiceRejectsMissingFile(t *testing.T) {
	_, err := NewService(context.Background(), "", Host{})
	assert.ErrorIs(t, err, types.ErrConfigInvalidPath)

	_, err = NewService(context.Background(), filepath.Join(t.TempDir(), "nope.yml"), Host{})
	assert.Error(t, err)
}
