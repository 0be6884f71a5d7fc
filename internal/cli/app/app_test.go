package app

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdeck-dev/appdeck/internal/cli/auth"
	"github.com/appdeck-dev/appdeck/internal/cli/client"
	cliconfig "github.com/appdeck-dev/appdeck/internal/cli/config"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
	"github.com/appdeck-dev/appdeck/internal/config"
	"github.com/appdeck-dev/appdeck/internal/server"
)

func newBackend(t *testing.T) string {
	t.Helper()

	srv, err := server.New(&config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "appdeck.sqlite")},
		Auth:     config.AuthConfig{TokenTTL: time.Hour, ResetTTL: time.Hour},
	}, zerolog.Nop(), "test")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL + "/api"
}

func newTestApp(t *testing.T, baseURL string, storage auth.Storage) *App {
	t.Helper()

	cfg := cliconfig.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Storage.Backend = cliconfig.BackendMemory

	a, err := New(cfg, Options{Storage: storage, LogWriter: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewStorage(t *testing.T) {
	cfg := cliconfig.DefaultConfig()

	cfg.Storage.Backend = cliconfig.BackendMemory
	s, err := NewStorage(cfg)
	require.NoError(t, err)
	assert.IsType(t, &auth.MemoryStorage{}, s)

	cfg.Storage.Backend = cliconfig.BackendFile
	cfg.Storage.StatePath = filepath.Join(t.TempDir(), "state.json")
	s, err = NewStorage(cfg)
	require.NoError(t, err)
	require.IsType(t, &auth.FileStorage{}, s)
	assert.Equal(t, cfg.Storage.StatePath, s.(*auth.FileStorage).Path())

	cfg.Storage.Backend = cliconfig.BackendKeyring
	s, err = NewStorage(cfg)
	require.NoError(t, err)
	assert.IsType(t, &auth.KeyringStorage{}, s)

	cfg.Storage.Backend = cliconfig.BackendRedis
	s, err = NewStorage(cfg)
	require.NoError(t, err)
	require.IsType(t, &auth.RedisStorage{}, s)
	require.NoError(t, s.(*auth.RedisStorage).Close())

	cfg.Storage.Backend = "floppy"
	_, err = NewStorage(cfg)
	assert.Error(t, err)
}

func TestNewStorage_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := cliconfig.DefaultConfig()
	cfg.Storage.Backend = cliconfig.BackendRedis
	cfg.Storage.Redis.Addr = mr.Addr()
	require.NoError(t, cfg.Validate())

	a, err := New(cfg, Options{LogWriter: io.Discard})
	require.NoError(t, err)
	require.NoError(t, a.UI.SetTheme(store.ThemeDark))
	require.NoError(t, a.Close())

	// Keys are scoped by the API host
	assert.True(t, mr.Exists("appdeck:localhost:8000:"+store.UIKey))

	b, err := New(cfg, Options{LogWriter: io.Discard})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, store.ThemeDark, b.UI.State().Theme)
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	baseURL := newBackend(t)
	storage := auth.NewMemoryStorage()
	ctx := context.Background()

	a := newTestApp(t, baseURL, storage)
	assert.Equal(t, "/login?redirect=%2Fdashboard", a.Navigate("/dashboard").Redirect)
	assert.ErrorIs(t, a.RequireAuth(), store.ErrNotAuthenticated)

	user, err := a.Auth.Register(ctx, client.RegisterRequest{
		Name:                 "Ada Lovelace",
		Email:                "ada@example.com",
		Password:             "Password123",
		PasswordConfirmation: "Password123",
	})
	require.NoError(t, err)
	assert.Equal(t, client.RoleAdmin, user.Role)

	// A second App over the same storage picks the session up and the
	// bearer interceptor authenticates its calls
	b := newTestApp(t, baseURL, storage)
	require.NoError(t, b.RequireAuth())
	assert.Empty(t, b.Navigate("/dashboard/users").Redirect)

	page, err := b.API.ListUsers(ctx, client.ListUsersParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Meta.TotalItems)
}

func TestApp_CheckSession(t *testing.T) {
	baseURL := newBackend(t)
	ctx := context.Background()

	a := newTestApp(t, baseURL, auth.NewMemoryStorage())
	_, err := a.Auth.Register(ctx, client.RegisterRequest{
		Name:                 "Ada Lovelace",
		Email:                "ada@example.com",
		Password:             "Password123",
		PasswordConfirmation: "Password123",
	})
	require.NoError(t, err)

	var notified []store.Notification
	a.UI.OnNotification(func(n store.Notification) { notified = append(notified, n) })

	// Revoke the token on the server with a second App sharing nothing but it
	other := newTestApp(t, baseURL, auth.NewMemoryStorage())
	other.API.AddRequestInterceptor(client.BearerToken(a.Auth.Token))
	require.NoError(t, other.API.Logout(ctx))

	_, err = a.API.ListUsers(ctx, client.ListUsersParams{})
	require.True(t, client.IsUnauthorized(err))

	err = a.CheckSession(err)
	assert.ErrorIs(t, err, store.ErrSessionExpired)
	assert.False(t, a.Auth.State().IsAuthenticated)

	require.Len(t, notified, 1)
	assert.Equal(t, store.NotificationWarning, notified[0].Type)
	assert.Equal(t, "Session expired", notified[0].Title)

	// Anything else passes through untouched
	plain := errors.New("boom")
	assert.Same(t, plain, a.CheckSession(plain))
	assert.NoError(t, a.CheckSession(nil))
}
