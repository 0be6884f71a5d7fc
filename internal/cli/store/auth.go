package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/appdeck-dev/appdeck/internal/cli/auth"
	"github.com/appdeck-dev/appdeck/internal/cli/client"
	"github.com/appdeck-dev/appdeck/internal/cli/schema"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated. Please run 'appdeck login' first")
	ErrSessionExpired   = errors.New("session expired. Please run 'appdeck login' again")
	ErrInvalidAuthReply = errors.New("invalid authentication response")
)

// AuthState is an immutable snapshot of the auth store
type AuthState struct {
	User            *client.User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// Session returns the identity part of the snapshot
func (s AuthState) Session() auth.Session {
	return auth.Session{User: s.User, Token: s.Token, IsAuthenticated: s.IsAuthenticated}
}

// AuthStore holds the client's session. Mutations replace the snapshot
// under the lock; listeners run after the lock is released.
type AuthStore struct {
	mu        sync.RWMutex
	state     AuthState
	api       *client.Client
	storage   auth.Storage
	logger    zerolog.Logger
	listeners listeners[AuthState]
}

// NewAuthStore creates an anonymous store. Call Hydrate to restore a
// persisted session.
func NewAuthStore(api *client.Client, storage auth.Storage, log zerolog.Logger) *AuthStore {
	return &AuthStore{
		api:     api,
		storage: storage,
		logger:  log.With().Str("store", "auth").Logger(),
	}
}

// Hydrate seeds the store from durable storage. An unreadable record is
// discarded and the store stays anonymous.
func (s *AuthStore) Hydrate() error {
	session, err := auth.LoadSession(s.storage)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Discarding unreadable persisted session")
		if delErr := auth.ClearSession(s.storage); delErr != nil {
			return fmt.Errorf("failed to clear persisted session: %w", delErr)
		}
		return nil
	}

	s.set(func(AuthState) AuthState {
		return AuthState{User: session.User, Token: session.Token, IsAuthenticated: session.IsAuthenticated}
	})
	s.logger.Debug().Bool("authenticated", session.IsAuthenticated).Msg("Session restored")
	return nil
}

// State returns the current snapshot
func (s *AuthStore) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the current token or ""
func (s *AuthStore) Token() string {
	return s.State().Token
}

// Subscribe registers fn to receive every new snapshot and returns a func
// that unsubscribes it.
func (s *AuthStore) Subscribe(fn func(AuthState)) func() {
	return s.listeners.add(fn)
}

// Interceptor returns a request interceptor adding the current token as a
// bearer Authorization header.
func (s *AuthStore) Interceptor() client.RequestInterceptor {
	return client.BearerToken(s.Token)
}

// Login validates req, authenticates against the API and persists the session
func (s *AuthStore) Login(ctx context.Context, req client.LoginRequest) (*client.User, error) {
	if err := schema.Validate(req); err != nil {
		s.setError(err)
		return nil, err
	}

	s.startLoading()
	resp, err := s.api.Login(ctx, req)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	user, err := s.authenticate(resp)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Logged in")
	return user, nil
}

// Register validates req, creates the account and persists the session
func (s *AuthStore) Register(ctx context.Context, req client.RegisterRequest) (*client.User, error) {
	if err := schema.Validate(req); err != nil {
		s.setError(err)
		return nil, err
	}

	s.startLoading()
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	user, err := s.authenticate(resp)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Registered")
	return user, nil
}

// authenticate moves the store to the authenticated state and persists it
func (s *AuthStore) authenticate(resp *client.AuthResponse) (*client.User, error) {
	if resp.Token == "" {
		err := fmt.Errorf("%w: missing token", ErrInvalidAuthReply)
		s.setError(err)
		return nil, err
	}
	if err := schema.Validate(resp.User); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidAuthReply, err)
		s.setError(err)
		return nil, err
	}

	user := resp.User
	next := AuthState{User: &user, Token: resp.Token, IsAuthenticated: true}

	// Persist before publishing so memory never runs ahead of storage
	if err := auth.SaveSession(s.storage, next.Session()); err != nil {
		err = fmt.Errorf("failed to save session: %w", err)
		s.setError(err)
		return nil, err
	}

	s.set(func(AuthState) AuthState { return next })
	return &user, nil
}

// Logout ends the session. Local state and durable storage are cleared
// even when the remote call fails; that failure is returned afterwards.
func (s *AuthStore) Logout(ctx context.Context) error {
	s.startLoading()

	var remoteErr error
	if s.Token() != "" {
		remoteErr = s.api.Logout(ctx)
	}

	s.set(func(AuthState) AuthState { return AuthState{} })

	if err := auth.ClearSession(s.storage); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear persisted session")
		clearErr := fmt.Errorf("failed to clear session: %w", err)
		if remoteErr != nil {
			return errors.Join(clearErr, fmt.Errorf("remote logout failed: %w", remoteErr))
		}
		return clearErr
	}

	if remoteErr != nil {
		s.logger.Warn().Err(remoteErr).Msg("Remote logout failed; local session cleared")
		return fmt.Errorf("remote logout failed: %w", remoteErr)
	}

	s.logger.Info().Msg("Logged out")
	return nil
}

// GetProfile refreshes the user from the API. It does nothing without a
// token. A 401 resets the store to anonymous and clears storage; that case
// is handled here and returns (nil, nil).
func (s *AuthStore) GetProfile(ctx context.Context) (*client.User, error) {
	token := s.Token()
	if token == "" {
		return nil, nil
	}

	s.startLoading()
	user, err := s.api.Me(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.Invalidate()
			return nil, nil
		}
		s.setError(err)
		return nil, err
	}
	if err := schema.Validate(*user); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidAuthReply, err)
		s.setError(err)
		return nil, err
	}

	return s.replaceUser(token, user)
}

// UpdateProfile validates and applies a partial update to the current user
func (s *AuthStore) UpdateProfile(ctx context.Context, req client.UpdateUserRequest) (*client.User, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if err := schema.Validate(req); err != nil {
		s.setError(err)
		return nil, err
	}

	s.startLoading()
	user, err := s.api.UpdateMe(ctx, req)
	if err != nil {
		s.setError(err)
		return nil, err
	}
	return s.replaceUser(token, user)
}

// ForgotPassword asks the API to send a reset token
func (s *AuthStore) ForgotPassword(ctx context.Context, req client.ForgotPasswordRequest) (string, error) {
	if err := schema.Validate(req); err != nil {
		s.setError(err)
		return "", err
	}

	s.startLoading()
	msg, err := s.api.ForgotPassword(ctx, req)
	if err != nil {
		s.setError(err)
		return "", err
	}
	s.finishLoading()
	return msg, nil
}

// ResetPassword sets a new password with a reset token
func (s *AuthStore) ResetPassword(ctx context.Context, req client.ResetPasswordRequest) (string, error) {
	if err := schema.Validate(req); err != nil {
		s.setError(err)
		return "", err
	}

	s.startLoading()
	msg, err := s.api.ResetPassword(ctx, req)
	if err != nil {
		s.setError(err)
		return "", err
	}
	s.finishLoading()
	return msg, nil
}

// replaceUser stores a refreshed profile unless the session changed while
// the request was in flight.
func (s *AuthStore) replaceUser(token string, user *client.User) (*client.User, error) {
	stale := false
	next := s.set(func(cur AuthState) AuthState {
		cur.IsLoading = false
		if cur.Token != token {
			stale = true
			return cur
		}
		u := *user
		cur.User = &u
		cur.Error = ""
		return cur
	})
	if stale {
		s.logger.Debug().Msg("Dropping profile for a superseded session")
		return user, nil
	}

	if err := auth.SaveSession(s.storage, next.Session()); err != nil {
		return user, fmt.Errorf("failed to save session: %w", err)
	}
	return user, nil
}

// Invalidate drops a session the API has rejected: state resets to
// anonymous, storage is cleared and Error records the expiry.
func (s *AuthStore) Invalidate() {
	s.set(func(AuthState) AuthState {
		return AuthState{Error: ErrSessionExpired.Error()}
	})
	if err := auth.ClearSession(s.storage); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear persisted session")
	}
	s.logger.Warn().Msg("Session rejected by the API; logged out locally")
}

func (s *AuthStore) startLoading() {
	s.set(func(cur AuthState) AuthState {
		cur.IsLoading = true
		cur.Error = ""
		return cur
	})
}

func (s *AuthStore) finishLoading() {
	s.set(func(cur AuthState) AuthState {
		cur.IsLoading = false
		return cur
	})
}

func (s *AuthStore) setError(err error) {
	s.set(func(cur AuthState) AuthState {
		cur.IsLoading = false
		cur.Error = err.Error()
		return cur
	})
}

// set replaces the snapshot with fn(current) and notifies listeners
func (s *AuthStore) set(fn func(AuthState) AuthState) AuthState {
	s.mu.Lock()
	s.state = fn(s.state)
	next := s.state
	s.mu.Unlock()

	s.listeners.notify(next)
	return next
}
