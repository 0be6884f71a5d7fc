package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/client"
	"github.com/appdeck-dev/appdeck/internal/cli/prompt"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
)

// NewLoginCmd creates the login command
func NewLoginCmd(rt *Runtime) *cobra.Command {
	var email, password string
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the appdeck API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check for environment variables (useful for CI/CD)
			if email == "" {
				email = rt.Getenv("APPDECK_EMAIL")
			}
			if password == "" {
				password = rt.Getenv("APPDECK_PASSWORD")
			}

			if email == "" {
				return fmt.Errorf("email is required (use --email flag or APPDECK_EMAIL env var)")
			}

			a, err := rt.App()
			if err != nil {
				return err
			}

			// Prompt for password if not provided via flag or env var
			if password == "" {
				password, err = rt.ReadPassword("Password")
				if errors.Is(err, prompt.ErrNotInteractive) {
					return fmt.Errorf("password is required in non-interactive mode (use --password flag or APPDECK_PASSWORD env var)")
				}
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logging in to %s...\n", a.Config.API.BaseURL)

			user, err := a.Auth.Login(cmd.Context(), client.LoginRequest{
				Email:      strings.TrimSpace(email),
				Password:   password,
				RememberMe: remember,
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			a.UI.AddNotification(store.Notification{Type: store.NotificationSuccess, Title: "Login successful"})
			printUserSummary(out, user)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set APPDECK_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set APPDECK_PASSWORD, will prompt if not provided)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Ask the server for a long-lived session")

	return cmd
}

// NewRegisterCmd creates the register command
func NewRegisterCmd(rt *Runtime) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			confirmation := password
			if password == "" {
				password, err = rt.ReadPassword("Password")
				if err != nil {
					return err
				}
				confirmation, err = rt.ReadPassword("Confirm password")
				if err != nil {
					return err
				}
			}

			user, err := a.Auth.Register(cmd.Context(), client.RegisterRequest{
				Name:                 strings.TrimSpace(name),
				Email:                strings.TrimSpace(email),
				Password:             password,
				PasswordConfirmation: confirmation,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			a.UI.AddNotification(store.Notification{Type: store.NotificationSuccess, Title: "Account created"})
			printUserSummary(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt twice if not provided)")

	return cmd
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			if !a.Auth.State().IsAuthenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}

			err = a.Auth.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			if err != nil {
				// The local session is gone either way
				a.UI.AddNotification(store.Notification{
					Type:    store.NotificationWarning,
					Title:   "Server did not confirm logout",
					Message: err.Error(),
				})
			}
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			if err := a.RequireAuth(); err != nil {
				return err
			}

			user, err := a.Auth.GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				// 401: the store has already logged out locally
				return store.ErrSessionExpired
			}

			printUserSummary(cmd.OutOrStdout(), user)
			return nil
		},
	}
}
