package guard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-request/client"
	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/notify"
	"github.com/saiset-co/sai-request/storage"
	"github.com/saiset-co/sai-request/types"
)

type stubRequester struct {
	mu        sync.Mutex
	responses map[string]*types.Result
	calls     []string
}

func (s *stubRequester) Do(_ context.Context, desc *types.RequestDescriptor) *types.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, desc.URL)
	if result, ok := s.responses[desc.URL]; ok {
		return result
	}
	return &types.Result{Outcome: types.OutcomeFailed, Err: types.NewApplicationError(404, "")}
}

func (s *stubRequester) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type progressRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (p *progressRecorder) SetLoading(loading bool) {
	p.mu.Lock()
	p.events = append(p.events, loading)
	p.mu.Unlock()
}

func (p *progressRecorder) Events() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.events...)
}

type navRecorder struct {
	path    string
	replace bool
}

func (n *navRecorder) Navigate(path string, replace bool) {
	n.path = path
	n.replace = replace
}

func (n *navRecorder) RedirectToLogin(returnPath string) {
	n.path = LoginPath(PathLogin, returnPath)
}

func (n *navRecorder) CurrentPath() string { return n.path }

func success(data string) *types.Result {
	return &types.Result{Outcome: types.OutcomeSuccess, Data: []byte(data)}
}

type guardFixture struct {
	guard     *Guard
	session   *Session
	requester *stubRequester
	store     *storage.MemoryStore
	notices   *notify.Recorder
	progress  *progressRecorder
}

func newGuardFixture(t *testing.T, responses map[string]*types.Result) *guardFixture {
	t.Helper()

	log := logger.NewNop()
	f := &guardFixture{
		requester: &stubRequester{responses: responses},
		store:     storage.NewMemoryStore(log),
		notices:   notify.NewRecorder(),
		progress:  &progressRecorder{},
	}

	f.session = NewSession(log, f.requester, f.store, Endpoints{
		UserInfo:    "/api/user/info",
		Permissions: "/api/user/permissions",
		Login:       "/api/login",
		Logout:      "/api/logout",
	})
	f.guard = New(log, f.session, f.notices, f.progress, &types.GuardConfig{ApplicationTitle: "Admin"})

	return f
}

func assertProgressBracketed(t *testing.T, p *progressRecorder) {
	t.Helper()
	assert.Equal(t, []bool{true, false}, p.Events())
}

func TestNoTokenRedirectsToLogin(t *testing.T) {
	f := newGuardFixture(t, nil)

	decision := f.guard.BeforeEach(context.Background(), Route{Path: "/dashboard"})

	assert.Equal(t, Redirect, decision.Kind)
	assert.Equal(t, "/login?redirect=%2Fdashboard", decision.Path)
	assert.Equal(t, StateUnauthenticated, f.guard.State())
	assert.Empty(t, f.requester.Calls())
	assertProgressBracketed(t, f.progress)
}

func TestNoTokenAllowListed(t *testing.T) {
	f := newGuardFixture(t, nil)

	for _, path := range DefaultAllowList {
		decision := f.guard.BeforeEach(context.Background(), Route{Path: path})
		assert.Equal(t, Proceed, decision.Kind, path)
	}

	decision := f.guard.BeforeEach(context.Background(), Route{Path: "/register?invite=x"})
	assert.Equal(t, Proceed, decision.Kind)
}

func TestHydrationThenForbidden(t *testing.T) {
	f := newGuardFixture(t, map[string]*types.Result{
		"/api/user/info":        success(`{"id":1,"username":"alice"}`),
		"/api/user/permissions": success(`["read"]`),
	})
	require.NoError(t, f.session.SetToken("abc"))
	assert.Equal(t, StateAuthenticatedNoIdentity, f.guard.State())

	decision := f.guard.BeforeEach(context.Background(), Route{
		Path: "/admin",
		Meta: Meta{Title: "Admin panel", RequiredPermissions: []string{"write", "admin"}},
	})

	assert.Equal(t, Redirect, decision.Kind)
	assert.Equal(t, PathForbidden, decision.Path)
	assert.Equal(t, "Admin panel - Admin", decision.Title)
	assert.Equal(t, StateAuthenticatedReady, f.guard.State())
	assert.Equal(t, []string{"/api/user/info", "/api/user/permissions"}, f.requester.Calls())
	assertProgressBracketed(t, f.progress)
}

func TestHydrationThenProceedWithReplace(t *testing.T) {
	f := newGuardFixture(t, map[string]*types.Result{
		"/api/user/info":        success(`{"id":1}`),
		"/api/user/permissions": success(`["read","write"]`),
	})
	require.NoError(t, f.session.SetToken("abc"))

	decision := f.guard.BeforeEach(context.Background(), Route{
		Path: "/orders",
		Meta: Meta{RequiredPermissions: []string{"write", "admin"}},
	})
	assert.Equal(t, Proceed, decision.Kind)
	assert.True(t, decision.Replace)
	assert.Equal(t, "/orders", decision.Path)

	decision = f.guard.BeforeEach(context.Background(), Route{Path: "/reports"})
	assert.Equal(t, Proceed, decision.Kind)
	assert.False(t, decision.Replace)
	assert.Len(t, f.requester.Calls(), 2, "hydration runs once")
}

func TestHydrationFailureLogsOut(t *testing.T) {
	f := newGuardFixture(t, map[string]*types.Result{
		"/api/user/info": success(`{"id":1}`),
		"/api/user/permissions": {
			Outcome: types.OutcomeFailed,
			Err:     types.NewNetworkError(0, "", errors.New("connection reset")),
		},
	})
	require.NoError(t, f.session.SetToken("abc"))

	decision := f.guard.BeforeEach(context.Background(), Route{Path: "/dashboard"})

	assert.Equal(t, Redirect, decision.Kind)
	assert.Equal(t, "/login?redirect=%2Fdashboard", decision.Path)
	assert.Equal(t, "", f.session.Token())
	assert.False(t, f.session.HasUserInfo())
	assert.Empty(t, f.session.Permissions())

	notices := f.notices.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, MessageVerificationFailed, notices[0].Text)
	assertProgressBracketed(t, f.progress)
}

func TestCancelledHydrationAborts(t *testing.T) {
	f := newGuardFixture(t, map[string]*types.Result{
		"/api/user/info": {Outcome: types.OutcomeCancelled, Err: types.NewCancelledError(types.ErrRequestSuperseded)},
	})
	require.NoError(t, f.session.SetToken("abc"))

	decision := f.guard.BeforeEach(context.Background(), Route{Path: "/dashboard"})

	assert.Equal(t, Abort, decision.Kind)
	assert.Equal(t, "abc", f.session.Token(), "a cancelled transition keeps the session")
	assert.Equal(t, 0, f.notices.Len())
}

func TestAuthenticatedLoginRedirectsHome(t *testing.T) {
	f := newGuardFixture(t, nil)
	require.NoError(t, f.session.SetToken("abc"))

	decision := f.guard.BeforeEach(context.Background(), Route{Path: PathLogin})

	assert.Equal(t, Redirect, decision.Kind)
	assert.Equal(t, PathHome, decision.Path)
	assert.Empty(t, f.requester.Calls())
}

func TestPanicRoutesToServerError(t *testing.T) {
	f := newGuardFixture(t, nil)
	f.guard.session = nil

	decision := f.guard.BeforeEach(context.Background(), Route{Path: "/dashboard"})

	assert.Equal(t, Redirect, decision.Kind)
	assert.Equal(t, PathServerError, decision.Path)
	assertProgressBracketed(t, f.progress)
}

func TestResolveNavigates(t *testing.T) {
	f := newGuardFixture(t, nil)
	nav := &navRecorder{}

	decision := f.guard.Resolve(context.Background(), nav, Route{Path: "/settings"})

	assert.Equal(t, Redirect, decision.Kind)
	assert.Equal(t, "/login?redirect=%2Fsettings", nav.path)
}

func TestLoginPath(t *testing.T) {
	assert.Equal(t, "/login", LoginPath("", ""))
	assert.Equal(t, "/login?redirect=%2Forders%3Fpage%3D2", LoginPath("/login", "/orders?page=2"))
	assert.Equal(t, "/auth?tenant=a&redirect=%2Fx", LoginPath("/auth?tenant=a", "/x"))
}

type pathTransport struct {
	mu        sync.Mutex
	envelopes map[string]*types.Envelope
	headers   []map[string]string
}

func (p *pathTransport) Issue(_ context.Context, desc *types.RequestDescriptor) (*types.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.headers = append(p.headers, desc.Options.Headers)
	if envelope, ok := p.envelopes[desc.URL]; ok {
		return envelope, nil
	}
	return &types.Envelope{Code: types.CodeNotFound}, nil
}

func TestGuardOverRequestClient(t *testing.T) {
	log := logger.NewNop()
	store := storage.NewMemoryStore(log)
	notices := notify.NewRecorder()

	transport := &pathTransport{envelopes: map[string]*types.Envelope{
		"/api/login":            {Code: types.CodeSuccess, Data: []byte(`{"token":"t-1"}`)},
		"/api/user/info":        {Code: types.CodeSuccess, Data: []byte(`{"id":9,"username":"bob"}`)},
		"/api/user/permissions": {Code: types.CodeSuccess, Data: []byte(`["orders:read"]`)},
		"/api/logout":           {Code: types.CodeSuccess},
	}}

	c := client.NewClient(log, nil, client.Dependencies{
		Transport: transport,
		Storage:   store,
		Notifier:  notices,
	})
	require.NoError(t, c.Start())
	defer c.Stop()

	session := NewSession(log, c, store, Endpoints{
		UserInfo:    "/api/user/info",
		Permissions: "/api/user/permissions",
		Login:       "/api/login",
		Logout:      "/api/logout",
	})
	g := New(log, session, notices, nil, nil)

	loggedIn, err := session.Login(context.Background(), "bob", "secret")
	require.NoError(t, err)
	require.True(t, loggedIn)

	decision := g.BeforeEach(context.Background(), Route{Path: "/orders", Meta: Meta{RequiredPermissions: []string{"orders:read"}}})
	assert.Equal(t, Proceed, decision.Kind)
	assert.Equal(t, 9, session.UserInfo().ID)

	transport.mu.Lock()
	assert.Equal(t, "Bearer t-1", transport.headers[len(transport.headers)-1]["Authorization"])
	transport.mu.Unlock()

	session.Logout(context.Background())
	assert.Equal(t, StateUnauthenticated, g.State())
	assert.Equal(t, 0, notices.Len())
}
