// Package app assembles the client: configuration, logging, the API client
// with its interceptors, persisted storage, the stores and the router.
// Commands receive an *App instead of reaching for globals.
package app

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/appdeck-dev/appdeck/internal/cli/auth"
	"github.com/appdeck-dev/appdeck/internal/cli/client"
	"github.com/appdeck-dev/appdeck/internal/cli/config"
	"github.com/appdeck-dev/appdeck/internal/cli/router"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
	"github.com/appdeck-dev/appdeck/internal/logger"
)

// App is the context object shared by every command
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	API     *client.Client
	Storage auth.Storage
	Auth    *store.AuthStore
	UI      *store.UIStore
	Router  *router.Router

	closers []io.Closer
}

// Options overrides parts of the assembly, mainly for tests
type Options struct {
	// Storage replaces the backend selected by the config
	Storage auth.Storage
	// LogWriter receives diagnostics; defaults to stderr
	LogWriter io.Writer
	// HTTPClient replaces the default API transport
	HTTPClient *http.Client
}

// New builds an App from cfg and restores persisted state
func New(cfg *config.Config, opts Options) (*App, error) {
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, w)

	a := &App{
		Config: cfg,
		Logger: log,
		Router: router.Default(),
	}

	a.Storage = opts.Storage
	if a.Storage == nil {
		storage, err := NewStorage(cfg)
		if err != nil {
			return nil, err
		}
		a.Storage = storage
		if c, ok := storage.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	a.API = client.New(cfg.API.BaseURL)
	if opts.HTTPClient != nil {
		a.API.SetHTTPClient(opts.HTTPClient)
	} else {
		a.API.SetHTTPClient(&http.Client{Timeout: cfg.API.Timeout})
	}

	a.Auth = store.NewAuthStore(a.API, a.Storage, log)
	a.UI = store.NewUIStore(a.Storage, log)

	// Order matters: the token is attached before the request is logged
	a.API.AddRequestInterceptor(a.Auth.Interceptor())
	a.API.AddRequestInterceptor(client.LogRequests(log))
	a.API.AddResponseInterceptor(client.LogResponses(log))
	a.API.AddErrorInterceptor(client.LogErrors(log))

	if err := a.Auth.Hydrate(); err != nil {
		return nil, err
	}
	if err := a.UI.Hydrate(); err != nil {
		log.Warn().Err(err).Msg("Failed to restore UI preferences")
	}

	a.Auth.Subscribe(a.notifySessionExpiry)

	return a, nil
}

// NewStorage opens the storage backend named by cfg
func NewStorage(cfg *config.Config) (auth.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendKeyring:
		return auth.NewKeyringStorage(auth.DefaultKeyringService, cfg.Scope()), nil
	case config.BackendFile:
		path := cfg.Storage.StatePath
		if path == "" {
			p, err := auth.DefaultStatePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return auth.NewFileStorage(path), nil
	case config.BackendRedis:
		r := cfg.Storage.Redis
		prefix := r.Prefix
		if prefix == "" {
			prefix = "appdeck"
		}
		return auth.NewRedisStorage(r.Addr, r.Password, r.DB, prefix+":"+cfg.Scope()), nil
	case config.BackendMemory:
		return auth.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Navigate resolves path against the router with the current auth state
func (a *App) Navigate(path string) router.Navigation {
	return a.Router.Navigate(path, router.AuthContext{
		IsAuthenticated: a.Auth.State().IsAuthenticated,
	})
}

// RequireAuth returns store.ErrNotAuthenticated for anonymous sessions
func (a *App) RequireAuth() error {
	if !a.Auth.State().IsAuthenticated {
		return store.ErrNotAuthenticated
	}
	return nil
}

// CheckSession handles err from an authenticated API call. A 401 means the
// server no longer accepts the token, so the local session is dropped.
func (a *App) CheckSession(err error) error {
	if err == nil || !client.IsUnauthorized(err) {
		return err
	}
	if a.Auth.State().IsAuthenticated {
		a.Auth.Invalidate()
	}
	return fmt.Errorf("%w: %w", store.ErrSessionExpired, err)
}

// Close stops timers and releases storage connections
func (a *App) Close() error {
	a.UI.Close()
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) notifySessionExpiry(s store.AuthState) {
	if s.Error != store.ErrSessionExpired.Error() {
		return
	}
	a.UI.AddNotification(store.Notification{
		Type:    store.NotificationWarning,
		Title:   "Session expired",
		Message: "Please run 'appdeck login' again",
	})
}
