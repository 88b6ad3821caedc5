package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"timer-tracker/internal/protocol"
)

// formatDuration renders milliseconds as "Xh Ym Zs", dropping leading zero units.
func formatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// elapsed is the running time for active timers and the final duration otherwise.
func elapsed(t protocol.Timer) int64 {
	switch {
	case t.IsActive && t.Progress != nil:
		return *t.Progress
	case !t.IsActive && t.Duration != nil:
		return *t.Duration
	}
	return 0
}

func printTable(w io.Writer, title string, timers []protocol.Timer) {
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "%-15s%-40s%s\n", "ID", "Description", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, t := range timers {
		fmt.Fprintf(w, "%-15d%-40s%s\n", t.ID, shorten(t.Description, 35), formatDuration(elapsed(t)))
	}
}

func printTimer(w io.Writer, t protocol.Timer) {
	fmt.Fprintf(w, "Timer ID: %d\n", t.ID)
	fmt.Fprintf(w, "Description: %s\n", t.Description)
	status := "Completed"
	if t.IsActive {
		status = "Active"
	}
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "Start time: %s\n", formatTime(t.Start))
	if t.End != nil {
		fmt.Fprintf(w, "End time: %s\n", formatTime(*t.End))
		fmt.Fprintf(w, "Duration: %s\n", formatDuration(elapsed(t)))
	} else if t.IsActive {
		fmt.Fprintf(w, "Current duration: %s\n", formatDuration(elapsed(t)))
	}
}
