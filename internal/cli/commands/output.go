package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/appdeck-dev/appdeck/internal/cli/client"
)

func printUserSummary(w io.Writer, user *client.User) {
	fmt.Fprintf(w, "  User: %s (%s)\n", user.Name, user.Email)
	fmt.Fprintf(w, "  Role: %s\n", user.Role)
}

func printUserDetail(w io.Writer, user *client.User) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", user.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", user.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", user.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", user.Role)
	if user.Avatar != "" {
		fmt.Fprintf(tw, "Avatar:\t%s\n", user.Avatar)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", formatTime(user.CreatedAt))
	fmt.Fprintf(tw, "Updated:\t%s\n", formatTime(user.UpdatedAt))
	tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
