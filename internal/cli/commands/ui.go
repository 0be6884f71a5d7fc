package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appdeck-dev/appdeck/internal/cli/prompt"
	"github.com/appdeck-dev/appdeck/internal/cli/store"
)

// NewUICmd creates the ui command group for display preferences
func NewUICmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Manage display preferences",
	}
	cmd.AddCommand(newUIThemeCmd(rt), newUISidebarCmd(rt), newUIShowCmd(rt))
	return cmd
}

func newUIThemeCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system]",
		Short:     "Set the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "system"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				options := make([]prompt.Option, 0, len(store.Themes))
				for _, t := range store.Themes {
					options = append(options, prompt.Option{Label: string(t), Value: string(t)})
				}
				name, err = rt.Select("Select theme", options, string(a.UI.State().Theme))
				if err != nil {
					return err
				}
			}

			theme, err := store.ParseTheme(name)
			if err != nil {
				return err
			}
			if err := a.UI.SetTheme(theme); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Theme set to %s\n", theme)
			return nil
		},
	}
}

func newUISidebarCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "sidebar [open|closed|toggle]",
		Short:     "Show or hide the sidebar",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"open", "closed", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			action := "toggle"
			if len(args) == 1 {
				action = args[0]
			}

			var open bool
			switch action {
			case "open":
				a.UI.SetSidebarOpen(true)
				open = true
			case "closed", "close":
				a.UI.SetSidebarOpen(false)
			case "toggle":
				open = a.UI.ToggleSidebar()
			default:
				return fmt.Errorf("invalid sidebar state %q (expected open, closed or toggle)", action)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Sidebar %s\n", sidebarLabel(open))
			return nil
		},
	}
}

func newUIShowCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}

			s := a.UI.State()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Theme:   %s\n", s.Theme)
			fmt.Fprintf(out, "Sidebar: %s\n", sidebarLabel(s.SidebarOpen))
			return nil
		},
	}
}

func sidebarLabel(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
