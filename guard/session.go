package guard

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/client"
	"github.com/saiset-co/sai-request/types"
)

// Requester is the slice of the request pipeline the session needs.
type Requester interface {
	Do(ctx context.Context, desc *types.RequestDescriptor) *types.Result
}

type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

type loginData struct {
	Token string `json:"token"`
}

type Endpoints struct {
	UserInfo    string
	Permissions string
	Login       string
	Logout      string
}

// Session holds the token and the lazily hydrated identity. The token is
// persisted; user info and permissions live in memory and are cleared
// together.
type Session struct {
	logger    types.Logger
	requester Requester
	storage   types.StorageManager
	endpoints Endpoints

	mu          sync.RWMutex
	userInfo    *UserInfo
	permissions []string
}

func NewSession(logger types.Logger, requester Requester, storage types.StorageManager, endpoints Endpoints) *Session {
	return &Session{
		logger:    logger,
		requester: requester,
		storage:   storage,
		endpoints: endpoints,
	}
}

func (s *Session) Token() string {
	token, ok := s.storage.Get(types.TokenKey)
	if !ok {
		return ""
	}
	return token
}

func (s *Session) SetToken(token string) error {
	return s.storage.Set(types.TokenKey, token)
}

func (s *Session) HasUserInfo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userInfo != nil
}

func (s *Session) UserInfo() *UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userInfo == nil {
		return nil
	}
	info := *s.userInfo
	return &info
}

func (s *Session) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.permissions...)
}

// HasPermissions reports whether the user holds any of required. An empty
// requirement always passes.
func (s *Session) HasPermissions(required []string) bool {
	if len(required) == 0 {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, want := range required {
		for _, have := range s.permissions {
			if want == have {
				return true
			}
		}
	}

	return false
}

// Hydrate fetches user info and then permissions. Nothing is stored unless
// both calls succeed.
func (s *Session) Hydrate(ctx context.Context) error {
	info, err := fetch[UserInfo](ctx, s.requester, s.endpoints.UserInfo)
	if err != nil {
		return hydrationError("user info", err)
	}

	permissions, err := fetch[[]string](ctx, s.requester, s.endpoints.Permissions)
	if err != nil {
		return hydrationError("permissions", err)
	}

	s.mu.Lock()
	s.userInfo = info
	s.permissions = append([]string(nil), (*permissions)...)
	s.mu.Unlock()

	s.logger.Debug("Session hydrated",
		zap.Int("user_id", info.ID),
		zap.Strings("permissions", *permissions))

	return nil
}

// Login exchanges credentials for a token and persists it.
func (s *Session) Login(ctx context.Context, username, password string) (bool, error) {
	result := s.requester.Do(ctx, &types.RequestDescriptor{
		Method: http.MethodGet,
		URL:    s.endpoints.Login,
		Query:  map[string]interface{}{"username": username, "password": password},
	})

	data, err := client.Decode[loginData](result)
	if err != nil {
		return false, err
	}
	if data.Token == "" {
		return false, nil
	}

	if err = s.SetToken(data.Token); err != nil {
		return false, types.WrapError(err, "failed to persist token")
	}

	return true, nil
}

// Logout notifies the backend and always clears the local session.
func (s *Session) Logout(ctx context.Context) {
	if s.Token() != "" {
		result := s.requester.Do(ctx, &types.RequestDescriptor{
			Method:  http.MethodGet,
			URL:     s.endpoints.Logout,
			Options: types.RequestOptions{ErrorMessageMode: types.ErrorModeNone, RetryCount: types.Int(0)},
		})
		if !result.OK() && !types.IsCancelled(result.Err) {
			s.logger.Warn("Logout request failed", zap.Error(result.Err))
		}
	}

	s.Clear()
}

// Clear drops the identity and the persisted token.
func (s *Session) Clear() {
	s.Reset()
	if err := s.storage.Remove(types.TokenKey); err != nil {
		s.logger.Warn("Failed to remove token", zap.Error(err))
	}
}

// Reset clears user info and permissions. The token is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.userInfo = nil
	s.permissions = nil
	s.mu.Unlock()
}

func fetch[T any](ctx context.Context, requester Requester, endpoint string) (*T, error) {
	result := requester.Do(ctx, &types.RequestDescriptor{
		Method:  http.MethodGet,
		URL:     endpoint,
		Options: types.RequestOptions{ErrorMessageMode: types.ErrorModeNone},
	})
	return client.Decode[T](result)
}

func hydrationError(stage string, err error) error {
	if types.IsCancelled(err) {
		return err
	}
	return &types.RequestError{
		Kind:    types.KindHydration,
		Message: "failed to load " + stage,
		Err:     err,
	}
}
