package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/brunobiangulo/fingraph"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#005f87", Dark: "#5fafff"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#5fd75f"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#af5f00", Dark: "#ffaf00"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#af0000", Dark: "#ff5f5f"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6c6c6c", Dark: "#8a8a8a"}

	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	successStyle     = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle        = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle        = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle       = lipgloss.NewStyle().Foreground(colorMuted)
	borderStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
)

// useColor follows the NO_COLOR convention and falls back to TTY detection.
func useColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// newReporter picks the styled reporter on a terminal and plain lines
// everywhere else.
func newReporter(w io.Writer, plain bool) fingraph.Reporter {
	if plain || !useColor() {
		return fingraph.NewTextReporter(w)
	}
	return &styledReporter{w: w}
}

// styledReporter renders progress with lipgloss.
type styledReporter struct {
	w io.Writer
}

func (r *styledReporter) RunStarted(info fingraph.RunInfo) {
	title := fmt.Sprintf("fingraph: %d documents in %s", info.Documents, info.Dir)
	if info.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(r.w, headerStyle.Render(title))
	fmt.Fprintln(r.w, mutedStyle.Render(fmt.Sprintf("model %s, %s between documents, run %s", info.Model, info.Delay, info.RunID)))
}

func (r *styledReporter) DocumentStarted(index, total int, path string) {
	fmt.Fprintf(r.w, "%s %s\n", mutedStyle.Render(fmt.Sprintf("[%d/%d]", index, total)), filepath.Base(path))
}

func (r *styledReporter) DocumentFinished(_, _ int, res fingraph.DocumentResult) {
	line := fingraph.DescribeResult(res)
	switch {
	case res.Status == fingraph.StatusSkipped:
		line = mutedStyle.Render("  - " + line)
	case res.Succeeded() && res.Clients == 0:
		line = warnStyle.Render("  ! " + line)
	case res.Succeeded():
		line = successStyle.Render("  ✓ " + line)
	default:
		line = failStyle.Render("  ✗ " + line)
	}
	fmt.Fprintln(r.w, line)
}

func (r *styledReporter) Sleeping(d time.Duration) {
	fmt.Fprintln(r.w, mutedStyle.Render(fmt.Sprintf("  sleeping %s", d)))
}

func (r *styledReporter) RunFinished(s *fingraph.Summary) {
	style := successStyle
	if s.Failed > 0 || s.Canceled {
		style = warnStyle
	}
	fmt.Fprintln(r.w, style.Bold(true).Render(fingraph.SummaryLine(s)))
	if s.RunID != "" {
		fmt.Fprintln(r.w, mutedStyle.Render("details: fingraph history --run "+s.RunID))
	}
}
