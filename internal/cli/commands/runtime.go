package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/appdeck-dev/appdeck/internal/cli/app"
	"github.com/appdeck-dev/appdeck/internal/cli/config"
	"github.com/appdeck-dev/appdeck/internal/cli/prompt"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
)

// Runtime is handed to every command. The App is built on first use so
// commands that don't need it (init, version) never touch storage.
type Runtime struct {
	newApp func() (*app.App, error)
	app    *app.App

	// Prompts, replaceable in tests
	ReadPassword func(label string) (string, error)
	Select       func(label string, options []prompt.Option, current string) (string, error)
	Confirm      func(label string) (bool, error)
	OpenBrowser  func(url string) error

	// Getenv reads credentials from the environment
	Getenv func(string) string

	// Notifications are printed here as they are raised
	Notices io.Writer
}

// NewRuntime returns a Runtime that builds its App with newApp
func NewRuntime(newApp func() (*app.App, error)) *Runtime {
	return &Runtime{
		newApp:       newApp,
		ReadPassword: prompt.Password,
		Select:       prompt.Select,
		Confirm:      prompt.Confirm,
		OpenBrowser:  openBrowser,
		Getenv:       os.Getenv,
		Notices:      os.Stderr,
	}
}

// DefaultRuntime builds the App from the configuration resolved for the
// working directory.
func DefaultRuntime() *Runtime {
	return NewRuntime(func() (*app.App, error) {
		cfg, err := config.ResolveFromCurrentDir()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return app.New(cfg, app.Options{})
	})
}

// App returns the shared App, building it on the first call
func (r *Runtime) App() (*app.App, error) {
	if r.app != nil {
		return r.app, nil
	}
	a, err := r.newApp()
	if err != nil {
		return nil, err
	}
	a.UI.OnNotification(r.printNotification)
	r.app = a
	return a, nil
}

// Close releases the App if one was built
func (r *Runtime) Close() error {
	if r.app == nil {
		return nil
	}
	return r.app.Close()
}

func (r *Runtime) printNotification(n store.Notification) {
	if r.Notices == nil {
		return
	}
	prefix := map[store.NotificationType]string{
		store.NotificationSuccess: "✓",
		store.NotificationError:   "✗",
		store.NotificationWarning: "!",
		store.NotificationInfo:    "i",
	}[n.Type]

	if n.Message != "" {
		fmt.Fprintf(r.Notices, "%s %s: %s\n", prefix, n.Title, n.Message)
		return
	}
	fmt.Fprintf(r.Notices, "%s %s\n", prefix, n.Title)
}
