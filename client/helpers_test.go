package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-request/cache"
	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/notify"
	"github.com/saiset-co/sai-request/storage"
	"github.com/saiset-co/sai-request/types"
)

type respondFunc func(ctx context.Context, call int, desc *types.RequestDescriptor) (*types.Envelope, error)

type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	seen    []*types.RequestDescriptor
	respond respondFunc
}

func (f *fakeTransport) Issue(ctx context.Context, desc *types.RequestDescriptor) (*types.Envelope, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.seen = append(f.seen, desc)
	f.mu.Unlock()

	return f.respond(ctx, call, desc)
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) Last() *types.RequestDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return nil
	}
	return f.seen[len(f.seen)-1]
}

func respondOK(data string) respondFunc {
	return func(context.Context, int, *types.RequestDescriptor) (*types.Envelope, error) {
		return &types.Envelope{Code: types.CodeSuccess, Data: []byte(data)}, nil
	}
}

// blockUntilCancelled answers the first call only once its context ends.
func blockUntilCancelled(data string) respondFunc {
	return func(ctx context.Context, call int, _ *types.RequestDescriptor) (*types.Envelope, error) {
		if call == 1 {
			<-ctx.Done()
			return nil, types.NewCancelledError(context.Cause(ctx))
		}
		return &types.Envelope{Code: types.CodeSuccess, Data: []byte(data)}, nil
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeIndicator struct {
	mu    sync.Mutex
	shows int
	hides int
}

func (f *fakeIndicator) Show() {
	f.mu.Lock()
	f.shows++
	f.mu.Unlock()
}

func (f *fakeIndicator) Hide() {
	f.mu.Lock()
	f.hides++
	f.mu.Unlock()
}

func (f *fakeIndicator) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shows, f.hides
}

type fakeNavigator struct {
	mu        sync.Mutex
	current   string
	redirects []string
}

func (n *fakeNavigator) Navigate(path string, _ bool) {
	n.mu.Lock()
	n.current = path
	n.mu.Unlock()
}

func (n *fakeNavigator) RedirectToLogin(returnPath string) {
	n.mu.Lock()
	n.redirects = append(n.redirects, returnPath)
	n.mu.Unlock()
}

func (n *fakeNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *fakeNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

type fixture struct {
	client    *Client
	transport *fakeTransport
	cache     *cache.MemoryCache
	clock     *fakeClock
	storage   *storage.MemoryStore
	notices   *notify.Recorder
	navigator *fakeNavigator
	indicator *fakeIndicator
	metrics   *metrics.MemoryMetrics
}

func newFixture(t *testing.T, respond respondFunc) *fixture {
	t.Helper()

	log := logger.NewNop()
	clock := newFakeClock()

	mm, err := metrics.NewMemoryMetrics(context.Background(), log, &types.MetricsConfig{Enabled: true, Type: "memory"})
	require.NoError(t, err)
	require.NoError(t, mm.Start())
	t.Cleanup(func() { _ = mm.Stop() })

	f := &fixture{
		transport: &fakeTransport{respond: respond},
		cache:     cache.NewMemoryCache(log, clock),
		clock:     clock,
		storage:   storage.NewMemoryStore(log),
		notices:   notify.NewRecorder(),
		navigator: &fakeNavigator{current: "/orders"},
		indicator: &fakeIndicator{},
		metrics:   mm,
	}

	f.client = NewClient(log, &types.ClientConfig{
		Timeout:                   time.Second,
		RetryCount:                types.DefaultRetryCount,
		RetryDelay:                time.Millisecond,
		CacheTime:                 time.Minute,
		ClientInfo:                "sai-request/test",
		UnauthorizedRedirectDelay: 50 * time.Millisecond,
	}, Dependencies{
		Metrics:   mm,
		Transport: f.transport,
		Cache:     f.cache,
		Storage:   f.storage,
		Notifier:  f.notices,
		Navigator: f.navigator,
		Loading:   f.indicator,
	})

	require.NoError(t, f.client.Start())
	t.Cleanup(func() { _ = f.client.Stop() })

	return f
}
