package commands

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// NewOpenCmd creates the open command. It resolves a path through the
// route guard and reports which page the user ends up on.
func NewOpenCmd(rt *Runtime) *cobra.Command {
	var browser bool

	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Resolve an application path and optionally open it in the browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "/dashboard"
			if len(args) == 1 {
				target = args[0]
			}

			a, err := rt.App()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			nav := a.Navigate(target)
			final := target
			switch {
			case nav.Redirect != "":
				fmt.Fprintf(out, "→ Redirected to %s\n", nav.Redirect)
				final = nav.Redirect
				nav = a.Navigate(nav.Redirect)
			case nav.NotFound:
				fmt.Fprintf(out, "✗ No page at %s\n", target)
			}
			fmt.Fprintf(out, "Page: %s (%s)\n", nav.Route.Title, nav.Route.Page)

			if !browser {
				return nil
			}

			pageURL := strings.TrimRight(a.Config.WebURL, "/") + final
			fmt.Fprintf(out, "Opening %s...\n", pageURL)
			if err := rt.OpenBrowser(pageURL); err != nil {
				return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, pageURL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&browser, "browser", "b", false, "Open the resolved page in the web application")
	return cmd
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
