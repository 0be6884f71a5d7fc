package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/config"
)

type initOptions struct {
	storage string
	webURL  string
	force   bool
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init [api-base-url]",
		Short: "Create an appdeck.yaml in the current directory",
		Long: `Create an appdeck.yaml in the current directory.

The API base URL defaults to ` + config.DefaultAPIBaseURL + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			return runInit(cmd, dir, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.storage, "storage", config.BackendKeyring, "Where to keep the session (keyring, file, redis, memory)")
	cmd.Flags().StringVar(&opts.webURL, "web-url", "", "Web application URL used by 'appdeck open --browser'")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing appdeck.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, args []string, opts *initOptions) error {
	out := cmd.OutOrStdout()
	configPath := filepath.Join(dir, config.ConfigFileName)

	cfg := config.DefaultConfig()
	exists := false
	if _, err := os.Stat(configPath); err == nil {
		if !opts.force {
			existing, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load existing config: %w", err)
			}
			cfg = existing
		}
		exists = true
	}

	if len(args) == 1 {
		cfg.API.BaseURL = args[0]
	}
	if cmd.Flags().Changed("storage") || !exists || opts.force {
		cfg.Storage.Backend = opts.storage
	}
	if opts.webURL != "" {
		cfg.WebURL = opts.webURL
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if exists {
		fmt.Fprintf(out, "✓ Updated ./%s\n", config.ConfigFileName)
	} else {
		fmt.Fprintf(out, "✓ Created ./%s\n", config.ConfigFileName)
	}
	fmt.Fprintf(out, "  API:     %s\n", cfg.API.BaseURL)
	fmt.Fprintf(out, "  Storage: %s\n", cfg.Storage.Backend)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'appdeck register' to create an account (the first one becomes admin)")
	fmt.Fprintln(out, "  2. Or run 'appdeck login' if you already have one")

	return nil
}
