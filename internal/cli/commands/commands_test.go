package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/app"
	"github.com/appdeck-dev/appdeck/internal/cli/auth"
	cliconfig "github.com/appdeck-dev/appdeck/internal/cli/config"
	"github.com/appdeck-dev/appdeck/internal/cli/prompt"
	"github.com/appdeck-dev/appdeck/internal/cli/schema"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
	"github.com/appdeck-dev/appdeck/internal/config"
	"github.com/appdeck-dev/appdeck/internal/models"
	"github.com/appdeck-dev/appdeck/internal/server"
)

const testPassword = "Password123"

// testEnv runs commands against a real API server. Storage is shared so
// consecutive runs behave like separate CLI invocations on one machine.
type testEnv struct {
	t       *testing.T
	srv     *server.Server
	baseURL string
	storage *auth.MemoryStorage

	// Stubs used by the next run
	confirm   bool
	selection string
	opened    []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "appdeck.sqlite")},
		Auth:     config.AuthConfig{TokenTTL: time.Hour, ResetTTL: time.Hour},
		Logging:  config.LoggingConfig{Level: "error", Format: "json"},
	}
	srv, err := server.New(cfg, zerolog.Nop(), "test")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	return &testEnv{
		t:       t,
		srv:     srv,
		baseURL: ts.URL + "/api",
		storage: auth.NewMemoryStorage(),
	}
}

// run executes one CLI invocation and returns stdout and the printed
// notifications.
func (e *testEnv) run(args ...string) (string, string, error) {
	e.t.Helper()

	cfg := cliconfig.DefaultConfig()
	cfg.API.BaseURL = e.baseURL
	cfg.Storage.Backend = cliconfig.BackendMemory
	cfg.Log.Level = "disabled"

	rt := NewRuntime(func() (*app.App, error) {
		return app.New(cfg, app.Options{Storage: e.storage, LogWriter: io.Discard})
	})
	rt.ReadPassword = func(string) (string, error) { return "", prompt.ErrNotInteractive }
	rt.Confirm = func(string) (bool, error) { return e.confirm, nil }
	rt.Select = func(string, []prompt.Option, string) (string, error) { return e.selection, nil }
	rt.OpenBrowser = func(url string) error {
		e.opened = append(e.opened, url)
		return nil
	}
	rt.Getenv = func(string) string { return "" }

	var notices bytes.Buffer
	rt.Notices = &notices
	defer rt.Close()

	root := &cobra.Command{Use: "appdeck", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewLoginCmd(rt),
		NewRegisterCmd(rt),
		NewLogoutCmd(rt),
		NewWhoamiCmd(rt),
		NewProfileCmd(rt),
		NewPasswordCmd(rt),
		NewUsersCmd(rt),
		NewOpenCmd(rt),
		NewUICmd(rt),
	)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), notices.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, _, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("appdeck %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *testEnv) registerAdmin() {
	e.t.Helper()
	e.mustRun("register", "--name", "Ada Lovelace", "--email", "ada@example.com", "--password", testPassword)
}

func (e *testEnv) session() auth.Session {
	e.t.Helper()
	s, err := auth.LoadSession(e.storage)
	if err != nil {
		e.t.Fatalf("failed to load session: %v", err)
	}
	return s
}

var idPattern = regexp.MustCompile(`ID:\s+(\S+)`)

func userID(t *testing.T, out string) string {
	t.Helper()
	m := idPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no user ID in output:\n%s", out)
	}
	return m[1]
}

func TestRegisterWhoamiLogout(t *testing.T) {
	env := newTestEnv(t)

	out, notices, err := env.run("register", "--name", "Ada Lovelace", "--email", "ada@example.com", "--password", testPassword)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !strings.Contains(out, "User: Ada Lovelace (ada@example.com)") {
		t.Errorf("unexpected register output:\n%s", out)
	}
	if !strings.Contains(notices, "✓ Account created") {
		t.Errorf("expected success notification, got %q", notices)
	}

	s := env.session()
	if !s.IsAuthenticated || s.Token == "" {
		t.Fatalf("expected a persisted session, got %+v", s)
	}

	out = env.mustRun("whoami")
	if !strings.Contains(out, "ada@example.com") || !strings.Contains(out, "Role: admin") {
		t.Errorf("unexpected whoami output:\n%s", out)
	}

	out = env.mustRun("logout")
	if !strings.Contains(out, "✓ Logged out") {
		t.Errorf("unexpected logout output:\n%s", out)
	}
	if env.session().IsAuthenticated {
		t.Error("session should be cleared after logout")
	}

	if _, _, err := env.run("whoami"); !errors.Is(err, store.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}

	out = env.mustRun("logout")
	if !strings.Contains(out, "Not logged in.") {
		t.Errorf("unexpected second logout output:\n%s", out)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()
	env.mustRun("logout")

	out := env.mustRun("login", "--email", "ada@example.com", "--password", testPassword)
	if !strings.Contains(out, "Logging in to "+env.baseURL) {
		t.Errorf("unexpected login output:\n%s", out)
	}
	if !env.session().IsAuthenticated {
		t.Error("expected a persisted session")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()
	env.mustRun("logout")

	_, _, err := env.run("login", "--email", "ada@example.com", "--password", "Wrong1234")
	if err == nil || !strings.Contains(err.Error(), "Invalid email or password") {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if env.session().IsAuthenticated {
		t.Error("failed login must not persist a session")
	}
}

func TestLogin_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("login", "--email", "not-an-email", "--password", "x")
	var vErr *schema.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, ok := vErr.Messages()["email"]; !ok {
		t.Errorf("expected an email message, got %v", vErr.Messages())
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.run("login"); err == nil || !strings.Contains(err.Error(), "email is required") {
		t.Errorf("expected missing email error, got %v", err)
	}

	_, _, err := env.run("login", "--email", "ada@example.com")
	if err == nil || !strings.Contains(err.Error(), "non-interactive mode") {
		t.Errorf("expected non-interactive password error, got %v", err)
	}
}

func TestWhoami_RevokedSession(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()

	// Revoke the stored token behind the CLI's back
	req, _ := http.NewRequest(http.MethodPost, env.baseURL+"/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+env.session().Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout request failed: %v", err)
	}
	resp.Body.Close()

	_, notices, err := env.run("whoami")
	if !errors.Is(err, store.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if !strings.Contains(notices, "! Session expired") {
		t.Errorf("expected session expired notification, got %q", notices)
	}
	if env.session().IsAuthenticated {
		t.Error("expired session should be cleared")
	}
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()

	out := env.mustRun("profile", "update", "--name", "Ada King")
	if !strings.Contains(out, "Ada King") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := env.session().User.Name; got != "Ada King" {
		t.Errorf("persisted user name = %q, want Ada King", got)
	}

	if _, _, err := env.run("profile", "update"); err == nil {
		t.Error("expected an error when no field is given")
	}
}

func TestPasswordForgotAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()
	env.mustRun("logout")

	var token string
	env.srv.SetResetNotifier(func(_ models.User, tok string) { token = tok })

	env.mustRun("password", "forgot", "--email", "ada@example.com")
	if token == "" {
		t.Fatal("expected a reset token to be issued")
	}

	env.mustRun("password", "reset", "--token", token, "--password", "NewPassword1")
	env.mustRun("login", "--email", "ada@example.com", "--password", "NewPassword1")
}

func TestUsersCommands(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()

	out := env.mustRun("users", "create", "--name", "Bob Builder", "--email", "bob@example.com", "--password", testPassword)
	bobID := userID(t, out)

	out = env.mustRun("users", "ls")
	for _, want := range []string{"ada@example.com", "bob@example.com", "Page 1 of 1 (2 users)"} {
		if !strings.Contains(out, want) {
			t.Errorf("users ls output missing %q:\n%s", want, out)
		}
	}

	out = env.mustRun("users", "ls", "--search", "bob")
	if strings.Contains(out, "ada@example.com") || !strings.Contains(out, "bob@example.com") {
		t.Errorf("search should only match bob:\n%s", out)
	}

	out = env.mustRun("users", "ls", "--role", "guest")
	if !strings.Contains(out, "No users found.") {
		t.Errorf("expected empty result:\n%s", out)
	}

	out = env.mustRun("users", "get", bobID)
	if !strings.Contains(out, "Bob Builder") {
		t.Errorf("unexpected get output:\n%s", out)
	}

	out = env.mustRun("users", "update", bobID, "--role", "guest")
	if !strings.Contains(out, "guest") {
		t.Errorf("unexpected update output:\n%s", out)
	}

	env.confirm = false
	out = env.mustRun("users", "delete", bobID)
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("expected abort:\n%s", out)
	}

	out = env.mustRun("users", "delete", bobID, "--yes")
	if !strings.Contains(out, "deleted") {
		t.Errorf("unexpected delete output:\n%s", out)
	}

	if _, _, err := env.run("users", "get", bobID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestUsersCommands_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()

	_, _, err := env.run("users", "create", "--name", "B", "--email", "bob", "--password", "short")
	var vErr *schema.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	for _, field := range []string{"name", "email", "password"} {
		if _, ok := vErr.Messages()[field]; !ok {
			t.Errorf("expected a message for %s, got %v", field, vErr.Messages())
		}
	}

	if _, _, err := env.run("users", "update", "some-id"); err == nil || !strings.Contains(err.Error(), "nothing to update") {
		t.Errorf("expected nothing to update error, got %v", err)
	}

	if _, _, err := env.run("users", "ls", "--page-size", "7"); err == nil || !strings.Contains(err.Error(), "invalid page size") {
		t.Errorf("expected invalid page size error, got %v", err)
	}
}

func TestUsersCommands_RequireLogin(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.run("users", "ls"); !errors.Is(err, store.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestUsersCommands_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin()
	env.mustRun("logout")
	env.mustRun("register", "--name", "Bob Builder", "--email", "bob@example.com", "--password", testPassword)

	_, _, err := env.run("users", "create", "--name", "Carol", "--email", "carol@example.com", "--password", testPassword)
	if err == nil {
		t.Fatal("non-admin should not create users")
	}
	if !env.session().IsAuthenticated {
		t.Error("a 403 must not end the session")
	}
}

func TestOpen(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("open", "/dashboard/users")
	if !strings.Contains(out, "→ Redirected to /login?redirect=%2Fdashboard%2Fusers") {
		t.Errorf("expected redirect to login:\n%s", out)
	}
	if !strings.Contains(out, "Page: Sign in (login)") {
		t.Errorf("expected login page:\n%s", out)
	}

	out = env.mustRun("open", "/nowhere")
	if !strings.Contains(out, "No page at /nowhere") {
		t.Errorf("expected not found:\n%s", out)
	}

	env.registerAdmin()

	out = env.mustRun("open", "/login")
	if !strings.Contains(out, "→ Redirected to /dashboard") {
		t.Errorf("signed-in users should leave the login page:\n%s", out)
	}

	env.mustRun("open", "/dashboard/users", "--browser")
	if len(env.opened) != 1 || env.opened[0] != cliconfig.DefaultWebURL+"/dashboard/users" {
		t.Errorf("unexpected browser URLs: %v", env.opened)
	}
}

func TestUICommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("ui", "show")
	if !strings.Contains(out, "Theme:   system") || !strings.Contains(out, "Sidebar: open") {
		t.Errorf("unexpected defaults:\n%s", out)
	}

	env.mustRun("ui", "theme", "dark")
	env.mustRun("ui", "sidebar", "toggle")

	out = env.mustRun("ui", "show")
	if !strings.Contains(out, "Theme:   dark") || !strings.Contains(out, "Sidebar: closed") {
		t.Errorf("preferences were not persisted:\n%s", out)
	}

	env.selection = "light"
	out = env.mustRun("ui", "theme")
	if !strings.Contains(out, "Theme set to light") {
		t.Errorf("expected selected theme:\n%s", out)
	}

	if _, _, err := env.run("ui", "theme", "neon"); err == nil {
		t.Error("expected an error for an unknown theme")
	}
	if _, _, err := env.run("ui", "sidebar", "sideways"); err == nil {
		t.Error("expected an error for an unknown sidebar state")
	}
}
