// Package ui provides formatted output utilities for the CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Color functions for consistent styling.
var (
	Green  = color.New(color.FgGreen).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Blue   = color.New(color.FgBlue).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc() // Dimmed text (more readable than gray)
	Bold   = color.New(color.Bold).SprintFunc()
)

// Output is the destination for UI output.
// Defaults to os.Stdout but can be overridden for testing.
var Output io.Writer = os.Stdout

// Now is the clock used for job ages. Tests replace it.
var Now = time.Now

// StatusBadge returns a colored engine state indicator with label.
func StatusBadge(state string) string {
	switch state {
	case "ready":
		return Green("● Ready")
	case "starting":
		return Yellow("◐ Starting")
	case "stopped":
		return Red("○ Engine Stopped")
	default:
		return Red("○ Not Running")
	}
}

// JobBadge returns a colored job status indicator.
func JobBadge(status string) string {
	switch status {
	case "running":
		return Green("● running")
	case "pending":
		return Yellow("○ pending")
	default:
		return Dim(status)
	}
}

// DaemonStatus contains daemon information for display.
type DaemonStatus struct {
	State  string
	PID    int
	Jobs   int
	Listen string
	Logs   string
}

// PrintStatus prints daemon status in a formatted style.
func PrintStatus(s DaemonStatus) {
	fmt.Fprintf(Output, "%s %s\n", Bold("Engine:"), StatusBadge(s.State))

	if s.PID > 0 {
		fmt.Fprintf(Output, "%s %d\n", Bold("Engine PID:"), s.PID)
	}
	if s.Listen != "" {
		fmt.Fprintf(Output, "%s %s\n", Bold("Listening:"), Blue(s.Listen))
	}
	if s.State != "" {
		fmt.Fprintf(Output, "%s %d\n", Bold("Jobs:"), s.Jobs)
	}

	fmt.Fprintf(Output, "%s %s\n", Bold("Logs:"), s.Logs)
}

// JobInfo represents a job in flight for display.
type JobInfo struct {
	Filename      string
	Status        string
	MaxVariations int
	MaxVisits     int
	SubmittedAt   time.Time
}

// PrintJobList prints the jobs in flight with formatting.
func PrintJobList(jobs []JobInfo) {
	if len(jobs) == 0 {
		fmt.Fprintln(Output, "No jobs in progress.")
		return
	}

	fmt.Fprintln(Output, Bold("Jobs:"))
	for _, j := range jobs {
		fmt.Fprintf(Output, "  %s %s %s\n",
			JobBadge(j.Status),
			Cyan(j.Filename),
			Dim(fmt.Sprintf("(variations %d, visits %d, %s)", j.MaxVariations, j.MaxVisits, FormatAge(j.SubmittedAt))),
		)
	}
}

// FormatAge formats how long ago t was, rounded to the second.
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "just now"
	}
	age := Now().Sub(t).Round(time.Second)
	if age <= 0 {
		return "just now"
	}
	return age.String() + " ago"
}

// PrintSuccess prints a success message with green checkmark.
func PrintSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", Green("✓"), message)
}

// PrintError prints an error message with red X.
func PrintError(message string) {
	fmt.Fprintf(Output, "%s %s\n", Red("✗"), message)
}

// PrintWarning prints a warning message with yellow exclamation.
func PrintWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", Yellow("⚠"), message)
}

// PrintInfo prints an info message with blue dot.
func PrintInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", Blue("•"), message)
}
