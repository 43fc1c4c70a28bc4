package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/kalambet/crowtreasure/internal/treasure"
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

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// cardMarkdown renders a treasure as a markdown card.
func cardMarkdown(t treasure.Treasure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", t.Name)
	fmt.Fprintf(&b, "**%s** · `%s` · %s\n\n", t.Type.Label(), t.Color, t.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s\n\n", t.Description)
	fmt.Fprintf(&b, "> 乌鸦：%s\n\n", t.CrowCommentary)
	thought := "「" + t.Content + "」"
	if t.Emotion != "" {
		thought += " · " + t.Emotion
	}
	fmt.Fprintf(&b, "*%s*\n\n", thought)
	fmt.Fprintf(&b, "id: `%s`\n", t.ID)
	return b.String()
}

// printCard writes the card to w, styled for the terminal unless colour is off.
func printCard(w io.Writer, t treasure.Treasure) error {
	md := cardMarkdown(t)

	style := glamour.WithAutoStyle()
	if noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// listLine is the one-line summary used by `list`.
func listLine(t treasure.Treasure) string {
	return fmt.Sprintf("%s  %s  %-4s %s",
		colorize(colorCyan, t.ID),
		t.CreatedAt.Local().Format("2006-01-02"),
		t.Type.Label(),
		colorize(colorBold, t.Name),
	)
}
