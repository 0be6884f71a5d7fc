package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/app"
	"github.com/appdeck-dev/appdeck/internal/cli/client"
	"github.com/appdeck-dev/appdeck/internal/cli/schema"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
	"github.com/appdeck-dev/appdeck/internal/listing"
)

// NewUsersCmd creates the users command group
func NewUsersCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		newUsersListCmd(rt),
		newUsersGetCmd(rt),
		newUsersCreateCmd(rt),
		newUsersUpdateCmd(rt),
		newUsersDeleteCmd(rt),
	)
	return cmd
}

// authedApp returns the App after checking the user is signed in. The
// check goes through the router so the CLI honours the same guard as the
// users page.
func authedApp(rt *Runtime, path string) (*app.App, error) {
	a, err := rt.App()
	if err != nil {
		return nil, err
	}
	if nav := a.Navigate(path); nav.Redirect != "" {
		return nil, store.ErrNotAuthenticated
	}
	return a, nil
}

const usersPath = "/dashboard/users"

func newUsersListCmd(rt *Runtime) *cobra.Command {
	var params client.ListUsersParams

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !listing.ValidPageSize(params.PageSize) {
				return fmt.Errorf("invalid page size %d (expected 5, 10, 20 or 50)", params.PageSize)
			}

			a, err := authedApp(rt, usersPath)
			if err != nil {
				return err
			}

			page, err := a.API.ListUsers(cmd.Context(), params)
			if err != nil {
				return a.CheckSession(err)
			}

			printUserTable(cmd.OutOrStdout(), page)
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.PageSize, "page-size", listing.DefaultPageSize, "Users per page (5, 10, 20 or 50)")
	cmd.Flags().StringVar(&params.Search, "search", "", "Filter by name or email")
	cmd.Flags().StringVar(&params.Role, "role", "", "Filter by role (admin, user, guest)")
	cmd.Flags().StringVar(&params.Sort, "sort", "createdAt", "Sort by name, email, role, createdAt or updatedAt")
	cmd.Flags().StringVar(&params.Order, "order", listing.OrderDesc, "Sort order (asc or desc)")

	return cmd
}

func printUserTable(out io.Writer, page *client.UserPage) {
	if len(page.Data) == 0 {
		fmt.Fprintln(out, "No users found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tCREATED AT")
	fmt.Fprintln(w, "──\t────\t─────\t────\t──────────")

	for _, u := range page.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			u.ID,
			u.Name,
			u.Email,
			u.Role,
			formatTime(u.CreatedAt),
		)
	}

	w.Flush()

	m := page.Meta
	fmt.Fprintf(out, "\nPage %d of %d (%d users)\n", m.CurrentPage, max(m.TotalPages, 1), m.TotalItems)
}

func newUsersGetCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := authedApp(rt, usersPath)
			if err != nil {
				return err
			}

			user, err := a.API.GetUser(cmd.Context(), args[0])
			if err != nil {
				return a.CheckSession(err)
			}

			printUserDetail(cmd.OutOrStdout(), user)
			return nil
		},
	}
}

func newUsersCreateCmd(rt *Runtime) *cobra.Command {
	var req client.CreateUserRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := authedApp(rt, usersPath)
			if err != nil {
				return err
			}

			req.Role = client.Role(role)
			if req.Password == "" {
				if req.Password, err = rt.ReadPassword("Password"); err != nil {
					return err
				}
				if req.PasswordConfirmation, err = rt.ReadPassword("Confirm password"); err != nil {
					return err
				}
			} else if req.PasswordConfirmation == "" {
				req.PasswordConfirmation = req.Password
			}

			if err := schema.Validate(req); err != nil {
				return err
			}

			user, err := a.API.CreateUser(cmd.Context(), req)
			if err != nil {
				return a.CheckSession(err)
			}

			a.UI.AddNotification(store.Notification{Type: store.NotificationSuccess, Title: "User created", Message: user.Email})
			printUserDetail(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", string(client.RoleUser), "Role (admin, user, guest)")
	cmd.Flags().StringVar(&req.Avatar, "avatar", "", "Avatar URL")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password (will prompt if not provided)")

	return cmd
}

func newUsersUpdateCmd(rt *Runtime) *cobra.Command {
	var name, email, role, avatar string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.UpdateUserRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			if cmd.Flags().Changed("role") {
				r := client.Role(role)
				req.Role = &r
			}
			if cmd.Flags().Changed("avatar") {
				req.Avatar = &avatar
			}
			if req == (client.UpdateUserRequest{}) {
				return fmt.Errorf("nothing to update (use --name, --email, --role or --avatar)")
			}
			if err := schema.Validate(req); err != nil {
				return err
			}

			a, err := authedApp(rt, usersPath)
			if err != nil {
				return err
			}

			user, err := a.API.UpdateUser(cmd.Context(), args[0], req)
			if err != nil {
				return a.CheckSession(err)
			}

			a.UI.AddNotification(store.Notification{Type: store.NotificationSuccess, Title: "User updated", Message: user.Email})
			printUserDetail(cmd.OutOrStdout(), user)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&role, "role", "", "New role (admin, user, guest)")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")

	return cmd
}

func newUsersDeleteCmd(rt *Runtime) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a user (admin only)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			a, err := authedApp(rt, usersPath)
			if err != nil {
				return err
			}

			if !yes {
				ok, err := rt.Confirm(fmt.Sprintf("Delete user %s", id))
				if err != nil {
					return fmt.Errorf("%w (use --yes to skip confirmation)", err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := a.API.DeleteUser(cmd.Context(), id); err != nil {
				return a.CheckSession(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ User %s deleted\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
