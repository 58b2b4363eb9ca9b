package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/elicit/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// statusColor picks the color of a status. Project statuses reuse the
// topic names, so one table covers both.
func statusColor(status string) string {
	switch storage.TopicStatus(status) {
	case storage.TopicOngoing:
		return colorCyan
	case storage.TopicCompleted:
		return colorGreen
	case storage.TopicSystemInterrupted, storage.TopicUserInterrupted:
		return colorYellow
	case storage.TopicFailed:
		return colorRed
	}
	return ""
}

// statusLabel renders status padded to width, colored by statusColor.
func statusLabel(status string, width int) string {
	text := fmt.Sprintf("%-*s", width, status)
	if c := statusColor(status); c != "" {
		return colorize(c, text)
	}
	return text
}

func notice(w io.Writer, color, mark, format string, args ...any) {
	fmt.Fprintln(w, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	notice(os.Stderr, colorGreen, "✓", format, args...)
}

func printError(format string, args ...any) {
	notice(os.Stderr, colorRed, "✗", format, args...)
}

func printWarning(format string, args ...any) {
	notice(os.Stderr, colorYellow, "⚠", format, args...)
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}
