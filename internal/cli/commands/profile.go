package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/client"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
)

// NewProfileCmd creates the profile command group
func NewProfileCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View or update your profile",
	}
	cmd.AddCommand(newProfileUpdateCmd(rt))
	return cmd
}

func newProfileUpdateCmd(rt *Runtime) *cobra.Command {
	var name, email, avatar string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your name, email or avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.UpdateUserRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			if cmd.Flags().Changed("avatar") {
				req.Avatar = &avatar
			}
			if req.Name == nil && req.Email == nil && req.Avatar == nil {
				return fmt.Errorf("nothing to update (use --name, --email or --avatar)")
			}

			a, err := rt.App()
			if err != nil {
				return err
			}

			user, err := a.Auth.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return a.CheckSession(err)
			}

			a.UI.AddNotification(store.Notification{Type: store.NotificationSuccess, Title: "Profile updated"})
			printUserDetail(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")

	return cmd
}

// NewPasswordCmd creates the password command group
func NewPasswordCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}
	cmd.AddCommand(newPasswordForgotCmd(rt), newPasswordResetCmd(rt))
	return cmd
}

func newPasswordForgotCmd(rt *Runtime) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Request a password reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			msg, err := a.Auth.ForgotPassword(cmd.Context(), client.ForgotPasswordRequest{Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	return cmd
}

func newPasswordResetCmd(rt *Runtime) *cobra.Command {
	var token, password string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			confirmation := password
			if password == "" {
				password, err = rt.ReadPassword("New password")
				if err != nil {
					return err
				}
				confirmation, err = rt.ReadPassword("Confirm password")
				if err != nil {
					return err
				}
			}

			msg, err := a.Auth.ResetPassword(cmd.Context(), client.ResetPasswordRequest{
				Token:                token,
				Password:             password,
				PasswordConfirmation: confirmation,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Reset token")
	cmd.Flags().StringVar(&password, "password", "", "New password (will prompt twice if not provided)")
	return cmd
}
