package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cmalf/cryptobar/internal/update"
)

// ErrorMessage represents a structured, actionable error to present to users.
type ErrorMessage struct {
	Problem string   // one-line problem statement
	Causes  []string // possible causes
	Actions []string // actionable steps to resolve
	Hints   []string // optional hints (e.g., commands to try)
}

// Format renders the error using the color theme. It does not include ANSI
// codes when colors are disabled.
func (e ErrorMessage) Format(c *ColorConfig) string {
	var b strings.Builder
	b.WriteString(c.Error("✗ "))
	b.WriteString(c.Header("Error"))
	b.WriteString("\n")
	if e.Problem != "" {
		fmt.Fprintf(&b, "  %s: %s\n", c.Label("Problem"), e.Problem)
	}
	writeList := func(title, bullet string, items []string, style func(string) string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "  %s:\n", c.Label(title))
		for _, it := range items {
			fmt.Fprintf(&b, "   %s %s\n", bullet, style(it))
		}
	}
	plain := func(s string) string { return s }
	writeList("Possible causes", "•", e.Causes, plain)
	writeList("Try", "→", e.Actions, plain)
	writeList("Hints", "·", e.Hints, c.Description)
	return b.String()
}

// PrintError writes the structured error to w.
func PrintError(w io.Writer, c *ColorConfig, e ErrorMessage) {
	fmt.Fprintln(w, e.Format(c))
}

// ErrorForUpdate explains an update pipeline failure in user terms.
func ErrorForUpdate(err error, appPath string) ErrorMessage {
	var stepErr *update.InstallStepError
	switch {
	case errors.Is(err, update.ErrUpdateInProgress):
		return ErrorMessage{
			Problem: "Another update is already in progress",
			Actions: []string{"Wait for the running update to finish, then try again"},
		}
	case errors.Is(err, update.ErrFetchFailed):
		return ErrorMessage{
			Problem: "Could not check for updates",
			Causes: []string{
				"No network connection",
				"GitHub API rate limit reached",
				"The repository has no published release",
			},
			Actions: []string{"Check your internet connection", "Try again later"},
			Hints:   []string{"cryptobar doctor"},
		}
	case errors.Is(err, update.ErrAssetNotFound):
		return ErrorMessage{
			Problem: "The latest release has no installer (.dmg)",
			Actions: []string{"Download the update manually from the release page"},
		}
	case errors.Is(err, update.ErrDownloadFailed):
		return ErrorMessage{
			Problem: "Downloading the update failed",
			Causes:  []string{"Connection interrupted", "Not enough free disk space"},
			Actions: []string{"Try again later"},
			Hints:   []string{"cryptobar doctor"},
		}
	case errors.As(err, &stepErr):
		msg := ErrorMessage{
			Problem: fmt.Sprintf("Installing the update failed at step %q", stepErr.Step),
			Actions: []string{"Try again later"},
		}
		if stepErr.TimedOut {
			msg.Problem = fmt.Sprintf("Install step %q timed out", stepErr.Step)
			msg.Hints = []string{"Raise timeouts.step in config.yaml"}
		}
		if stepErr.Step == update.StepRemove || stepErr.Step == update.StepCopy {
			msg.Causes = []string{"No write permission for " + appPath}
		}
		return msg
	case errors.Is(err, update.ErrRelaunchFailed):
		return ErrorMessage{
			Problem: "The update was installed but the app could not be relaunched",
			Actions: []string{"Open " + appPath + " manually"},
		}
	default:
		return ErrorMessage{Problem: err.Error()}
	}
}
