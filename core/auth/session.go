package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

type LogoutReason string

const (
	LogoutUser    LogoutReason = "user"    // explicit logout
	LogoutExpired LogoutReason = "expired" // the API answered 401
	LogoutRemote  LogoutReason = "remote"  // another process logged out
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type LogoutEvent struct {
	Reason LogoutReason
	User   User // zero if no user was logged in
}

// Session is the single read path to the authenticated identity.
// Every request reads the token through it; logouts are propagated to subscribers.
type Session struct {
	id     string
	store  Store
	logger core.Logger

	mu      sync.Mutex
	subs    map[int]func(LogoutEvent)
	nextSub int
}

func NewSession(store Store, logger core.Logger) *Session {
	if logger == nil {
		logger = core.NopLogger
	}
	return &Session{
		id:     uuid.NewString(),
		store:  store,
		logger: logger,
		subs:   make(map[int]func(LogoutEvent)),
	}
}

// Token returns the stored token or "" if there is none.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading token")
	}
	return token, nil
}

// User returns the stored user. ok is false when nobody is logged in.
func (s *Session) User(ctx context.Context) (usr User, ok bool, err error) {
	raw, err := s.store.Get(ctx, KeyUser)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return User{}, false, nil
		}
		return User{}, false, errors.Wrap(err, "reading user")
	}
	if err := json.Unmarshal([]byte(raw), &usr); err != nil {
		return User{}, false, errors.Wrap(err, "decoding user")
	}
	return usr, true, nil
}

func (s *Session) Authenticated(ctx context.Context) bool {
	token, err := s.Token(ctx)
	return err == nil && ValidateToken(token) == nil
}

func (s *Session) SetCredentials(ctx context.Context, token string, usr User) error {
	b, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding user")
	}
	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return errors.Wrap(err, "storing token")
	}
	return errors.Wrap(s.store.Set(ctx, KeyUser, string(b)), "storing user")
}

// Logout clears token and user then notifies all subscribers.
func (s *Session) Logout(ctx context.Context, reason LogoutReason) error {
	usr, _, _ := s.User(ctx)
	if err := s.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return errors.Wrap(err, "clearing credentials")
	}
	if bc, ok := s.store.(Broadcaster); ok && reason != LogoutRemote {
		if err := bc.PublishLogout(ctx, s.id+"|"+string(reason)); err != nil {
			s.logger.Warn(fmt.Sprintf("broadcasting logout: %v", err), err)
		}
	}
	s.notify(LogoutEvent{Reason: reason, User: usr})
	return nil
}

// Subscribe registers fn to be called on every logout. Call the returned func to unsubscribe.
func (s *Session) Subscribe(fn func(LogoutEvent)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(evt LogoutEvent) {
	s.mu.Lock()
	subs := make([]func(LogoutEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// Watch listens for logouts made by other processes sharing the store.
// It is a no-op for stores that are not shared.
func (s *Session) Watch(ctx context.Context) (stop func() error, err error) {
	bc, ok := s.store.(Broadcaster)
	if !ok {
		return func() error { return nil }, nil
	}
	return bc.SubscribeLogout(ctx, func(msg string) {
		if strings.HasPrefix(msg, s.id+"|") {
			return // our own
		}
		s.notify(LogoutEvent{Reason: LogoutRemote})
	})
}

func (s *Session) Theme(ctx context.Context) string {
	theme, err := s.store.Get(ctx, KeyTheme)
	if err != nil || (theme != ThemeLight && theme != ThemeDark) {
		return ThemeLight
	}
	return theme
}

func (s *Session) SetTheme(ctx context.Context, theme string) error {
	theme = core.CleanString(theme, true /* lower */)
	if theme != ThemeLight && theme != ThemeDark {
		return core.NewValidationError(errors.Errorf("thème inconnu: %q", theme), core.FieldError{Field: "theme", Error: "light ou dark"})
	}
	return s.store.Set(ctx, KeyTheme, theme)
}

// Draft decodes the draft stored under key into v. found is false when there is no (valid) draft.
func (s *Session) Draft(ctx context.Context, key string, v interface{}) (found bool, err error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn(fmt.Sprintf("dropping corrupted draft %q: %v", key, err))
		_ = s.store.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func (s *Session) SaveDraft(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	return s.store.Set(ctx, key, string(b))
}

func (s *Session) ClearDraft(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}
