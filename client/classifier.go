package client

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

const (
	MessageSessionExpired = "Session expired, please sign in again"
	MessageForbidden      = "You do not have permission to perform this action"
	MessageServerError    = "Server error, please try again later"
	MessageNotFound       = "Requested resource does not exist"
	MessageBadRequest     = "Invalid request parameters"
	MessageRequestFailed  = "Request failed"
	MessageNetworkError   = "Network connection error, please check your network settings"
)

// Effect is a side effect bound to an application code.
type Effect func(c *Classifier)

// Rule is one row of the classification table.
type Rule struct {
	Severity            types.Severity
	Fallback            string
	PreferServerMessage bool
	Effect              Effect
}

type ClassifierDeps struct {
	Logger        types.Logger
	Notifier      types.Notifier
	Storage       types.StorageManager
	Navigator     types.Navigator
	RedirectDelay time.Duration
}

type Classifier struct {
	deps     ClassifierDeps
	mu       sync.Mutex
	rules    map[int]Rule
	fallback Rule
	timers   map[*time.Timer]struct{}
}

func NewClassifier(deps ClassifierDeps) *Classifier {
	if deps.RedirectDelay <= 0 {
		deps.RedirectDelay = types.DefaultRedirectDelay
	}

	return &Classifier{
		deps: deps,
		rules: map[int]Rule{
			types.CodeUnauthorized: {Severity: types.SeverityError, Fallback: MessageSessionExpired, Effect: expireSession},
			types.CodeForbidden:    {Severity: types.SeverityError, Fallback: MessageForbidden},
			types.CodeServerError:  {Severity: types.SeverityError, Fallback: MessageServerError},
			types.CodeNotFound:     {Severity: types.SeverityError, Fallback: MessageNotFound},
			types.CodeBadRequest:   {Severity: types.SeverityError, Fallback: MessageBadRequest, PreferServerMessage: true},
		},
		fallback: Rule{Severity: types.SeverityError, Fallback: MessageRequestFailed, PreferServerMessage: true},
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Register adds or replaces the rule for code.
func (c *Classifier) Register(code int, rule Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[code] = rule
}

// Classify applies the rule for code and returns the notice text it chose.
// With ErrorModeNone the notice is suppressed but the effect still runs.
func (c *Classifier) Classify(code int, message string, mode types.ErrorMessageMode) string {
	c.mu.Lock()
	rule, ok := c.rules[code]
	if !ok {
		rule = c.fallback
	}
	c.mu.Unlock()

	text := rule.Fallback
	if rule.PreferServerMessage && message != "" {
		text = message
	}

	if mode != types.ErrorModeNone {
		c.notify(rule.Severity, text)
	}

	if rule.Effect != nil {
		rule.Effect(c)
	}

	return text
}

// ClassifyError routes a settled pipeline failure. Cancellation is silent.
func (c *Classifier) ClassifyError(err error, mode types.ErrorMessageMode) {
	reqErr, ok := types.AsRequestError(err)
	if !ok {
		c.Classify(0, "", mode)
		return
	}

	switch reqErr.Kind {
	case types.KindCancelled:
		return
	case types.KindNetwork:
		// A status means the server answered; report it like any other status.
		if reqErr.Code != 0 {
			c.Classify(reqErr.Code, reqErr.Message, mode)
			return
		}
		if mode != types.ErrorModeNone {
			c.notify(types.SeverityError, MessageNetworkError)
		}
	default:
		c.Classify(reqErr.Code, reqErr.Message, mode)
	}
}

// Stop drops pending redirects.
func (c *Classifier) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for timer := range c.timers {
		timer.Stop()
		delete(c.timers, timer)
	}
}

func (c *Classifier) notify(severity types.Severity, text string) {
	if c.deps.Notifier == nil {
		return
	}
	c.deps.Notifier.Notify(severity, text)
}

func (c *Classifier) schedule(delay time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		_, pending := c.timers[timer]
		delete(c.timers, timer)
		c.mu.Unlock()

		if pending {
			fn()
		}
	})
	c.timers[timer] = struct{}{}
}

func expireSession(c *Classifier) {
	if c.deps.Storage != nil {
		if err := c.deps.Storage.Remove(types.TokenKey); err != nil && c.deps.Logger != nil {
			c.deps.Logger.Warn("Failed to clear session token", zap.Error(err))
		}
	}

	nav := c.deps.Navigator
	if nav == nil {
		return
	}

	c.schedule(c.deps.RedirectDelay, func() {
		nav.RedirectToLogin(nav.CurrentPath())
	})
}
