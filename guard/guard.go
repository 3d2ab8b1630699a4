package guard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

const MessageVerificationFailed = "Verification failed, please sign in again"

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticatedNoIdentity
	StateAuthenticatedReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedNoIdentity:
		return "authenticated_no_identity"
	case StateAuthenticatedReady:
		return "authenticated_ready"
	default:
		return "unknown"
	}
}

type DecisionKind int

const (
	Proceed DecisionKind = iota
	Redirect
	// Abort keeps the current page. Used when the transition was cancelled
	// while hydrating.
	Abort
)

type Decision struct {
	Kind    DecisionKind
	Path    string
	Replace bool
	Title   string
}

type Guard struct {
	logger    types.Logger
	session   *Session
	notifier  types.Notifier
	progress  types.ProgressIndicator
	config    types.GuardConfig
	allowList map[string]struct{}

	// mu serializes transitions so hydration runs once.
	mu sync.Mutex
}

func New(logger types.Logger, session *Session, notifier types.Notifier, progress types.ProgressIndicator, config *types.GuardConfig) *Guard {
	cfg := types.GuardConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.HomePath == "" {
		cfg.HomePath = PathHome
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = PathLogin
	}
	if cfg.ForbiddenPath == "" {
		cfg.ForbiddenPath = PathForbidden
	}
	if cfg.ServerErrorPath == "" {
		cfg.ServerErrorPath = PathServerError
	}
	if len(cfg.AllowList) == 0 {
		cfg.AllowList = DefaultAllowList
	}

	allow := make(map[string]struct{}, len(cfg.AllowList))
	for _, path := range cfg.AllowList {
		allow[path] = struct{}{}
	}

	return &Guard{
		logger:    logger,
		session:   session,
		notifier:  notifier,
		progress:  progress,
		config:    cfg,
		allowList: allow,
	}
}

func (g *Guard) State() State {
	switch {
	case g.session.Token() == "":
		return StateUnauthenticated
	case !g.session.HasUserInfo():
		return StateAuthenticatedNoIdentity
	default:
		return StateAuthenticatedReady
	}
}

// BeforeEach decides the outcome of a transition to the target route. The
// progress toggle is switched off exactly once, whatever happens.
func (g *Guard) BeforeEach(ctx context.Context, to Route) (decision Decision) {
	g.setProgress(true)
	defer g.setProgress(false)

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Navigation guard failed",
				zap.String("path", to.Path),
				zap.Any("panic", r))
			decision = Decision{Kind: Redirect, Path: g.config.ServerErrorPath}
		}
	}()

	g.mu.Lock()
	defer g.mu.Unlock()

	decision = g.evaluate(ctx, to)
	decision.Title = g.title(to)

	g.logger.Debug("Navigation decided",
		zap.String("path", to.Path),
		zap.Int("kind", int(decision.Kind)),
		zap.String("target", decision.Path))

	return decision
}

// Resolve runs BeforeEach and applies a redirect through nav.
func (g *Guard) Resolve(ctx context.Context, nav types.Navigator, to Route) Decision {
	decision := g.BeforeEach(ctx, to)
	if decision.Kind == Redirect && nav != nil {
		nav.Navigate(decision.Path, decision.Replace)
	}
	return decision
}

func (g *Guard) evaluate(ctx context.Context, to Route) Decision {
	path := routePath(to.Path)

	switch g.State() {
	case StateUnauthenticated:
		if _, ok := g.allowList[path]; ok {
			return Decision{Kind: Proceed, Path: to.Path}
		}
		return Decision{Kind: Redirect, Path: LoginPath(g.config.LoginPath, to.Path)}

	case StateAuthenticatedReady:
		if path == g.config.LoginPath {
			return Decision{Kind: Redirect, Path: g.config.HomePath}
		}
		return g.authorize(to)

	default:
		if path == g.config.LoginPath {
			return Decision{Kind: Redirect, Path: g.config.HomePath}
		}

		if err := g.session.Hydrate(ctx); err != nil {
			if types.IsCancelled(err) {
				return Decision{Kind: Abort}
			}

			g.logger.Warn("Identity hydration failed", zap.String("path", to.Path), zap.Error(err))
			g.session.Clear()
			if g.notifier != nil {
				g.notifier.Notify(types.SeverityError, MessageVerificationFailed)
			}
			return Decision{Kind: Redirect, Path: LoginPath(g.config.LoginPath, to.Path)}
		}

		decision := g.authorize(to)
		if decision.Kind == Proceed {
			decision.Replace = true
		}
		return decision
	}
}

func (g *Guard) authorize(to Route) Decision {
	if g.session.HasPermissions(to.Meta.RequiredPermissions) {
		return Decision{Kind: Proceed, Path: to.Path}
	}
	return Decision{Kind: Redirect, Path: g.config.ForbiddenPath}
}

func (g *Guard) title(to Route) string {
	if to.Meta.Title == "" {
		return ""
	}
	if g.config.ApplicationTitle == "" {
		return to.Meta.Title
	}
	return fmt.Sprintf("%s - %s", to.Meta.Title, g.config.ApplicationTitle)
}

func (g *Guard) setProgress(loading bool) {
	if g.progress != nil {
		g.progress.SetLoading(loading)
	}
}
