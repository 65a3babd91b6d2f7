package fingraph

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID     string
	Dir       string
	Documents int
	Model     string
	Delay     time.Duration
	DryRun    bool
}

// Reporter receives human-facing progress. Structured logs go through slog
// independently.
type Reporter interface {
	RunStarted(info RunInfo)
	DocumentStarted(index, total int, path string)
	DocumentFinished(index, total int, res DocumentResult)
	Sleeping(d time.Duration)
	RunFinished(s *Summary)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) RunStarted(RunInfo) {}
func (NopReporter) DocumentStarted(int, int, string) {}
func (NopReporter) DocumentFinished(int, int, DocumentResult) {}
func (NopReporter) Sleeping(time.Duration) {}
func (NopReporter) RunFinished(*Summary) {}

// TextReporter writes plain progress lines to w.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter creates a TextReporter.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) RunStarted(info RunInfo) {
	mode := ""
	if info.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(r.w, "Found %d documents in %s%s\n", info.Documents, info.Dir, mode)
	fmt.Fprintf(r.w, "Model: %s, delay between documents: %s\n", info.Model, info.Delay)
}

func (r *TextReporter) DocumentStarted(index, total int, path string) {
	fmt.Fprintf(r.w, "[%d/%d] %s\n", index, total, filepath.Base(path))
}

func (r *TextReporter) DocumentFinished(_, _ int, res DocumentResult) {
	fmt.Fprintf(r.w, "      %s\n", DescribeResult(res))
}

func (r *TextReporter) Sleeping(d time.Duration) {
	fmt.Fprintf(r.w, "      sleeping %s\n", d)
}

func (r *TextReporter) RunFinished(s *Summary) {
	fmt.Fprintln(r.w, strings.Repeat("=", 60))
	fmt.Fprintln(r.w, SummaryLine(s))
}

// DescribeResult is the one-line outcome of a document.
func DescribeResult(res DocumentResult) string {
	switch {
	case res.Status == StatusSkipped:
		return "skipped (" + res.Reason + ")"
	case res.Succeeded():
		verb := "graph updated"
		if res.Status == StatusPlanned {
			verb = "planned"
		}
		return fmt.Sprintf("%s: %d clients, %d nodes, %d edges in %s",
			verb, res.Clients, res.Stats.Nodes, res.Stats.Edges, res.Elapsed.Round(time.Millisecond))
	default:
		msg := fmt.Sprintf("failed at %s (%s)", res.Stage, res.Reason)
		if res.Err != nil {
			msg += ": " + res.Err.Error()
		}
		return msg
	}
}

// SummaryLine is the final one-line tally.
func SummaryLine(s *Summary) string {
	line := fmt.Sprintf("Complete: %d succeeded, %d failed, %d skipped of %d in %s",
		s.Succeeded, s.Failed, s.Skipped, s.Total, s.Elapsed.Round(time.Second))
	if s.Canceled {
		line += " (canceled)"
	}
	return line
}
