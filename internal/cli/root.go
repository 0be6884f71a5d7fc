package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/commands"
	"github.com/appdeck-dev/appdeck/internal/cli/schema"
)

// NewRootCmd builds the command tree around rt
func NewRootCmd(rt *commands.Runtime, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "appdeck",
		Short: "appdeck - Sign in and manage users from the terminal",
		Long: `appdeck CLI - A terminal client for the appdeck API.

Sessions and display preferences are stored locally (keyring by default)
so they survive between invocations, like a browser tab that remembers you.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "appdeck version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(rt))
	rootCmd.AddCommand(commands.NewRegisterCmd(rt))
	rootCmd.AddCommand(commands.NewLogoutCmd(rt))
	rootCmd.AddCommand(commands.NewWhoamiCmd(rt))
	rootCmd.AddCommand(commands.NewProfileCmd(rt))
	rootCmd.AddCommand(commands.NewPasswordCmd(rt))
	rootCmd.AddCommand(commands.NewUsersCmd(rt))
	rootCmd.AddCommand(commands.NewOpenCmd(rt))
	rootCmd.AddCommand(commands.NewUICmd(rt))

	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	rt := commands.DefaultRuntime()
	defer rt.Close()

	if err := NewRootCmd(rt, version).Execute(); err != nil {
		printError(os.Stderr, err)
		return err
	}
	return nil
}

func printError(w io.Writer, err error) {
	var vErr *schema.ValidationError
	if !errors.As(err, &vErr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(w, "Error: invalid input")
	msgs := vErr.Messages()
	fields := make([]string, 0, len(msgs))
	for f := range msgs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, msgs[f])
	}
}
