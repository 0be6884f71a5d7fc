// Package prompt wraps the interactive terminal prompts used by commands.
package prompt

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal
var ErrNotInteractive = errors.New("stdin is not a terminal")

// Option is one selectable entry
type Option struct {
	Label string
	Value string
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Select shows an interactive list and returns the chosen value. The cursor
// starts on the entry whose value equals current, if any.
func Select(label string, options []Option, current string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("nothing to select")
	}
	if !IsInteractive() {
		return "", ErrNotInteractive
	}

	cursor := 0
	for i, o := range options {
		if o.Value == current {
			cursor = i
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
		Size:      10,
		CursorPos: cursor,
	}

	index, _, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}

	return options[index].Value, nil
}

// Confirm asks a yes/no question; anything but yes is a refusal
func Confirm(label string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNotInteractive
	}

	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// Password reads a password without echoing it
func Password(label string) (string, error) {
	if !IsInteractive() {
		return "", ErrNotInteractive
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
