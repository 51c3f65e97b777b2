package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/tliops/kbsync/internal/guard"
	"github.com/tliops/kbsync/internal/reconcile"
)

// Renderer writes human-facing command output.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// NewRenderer creates a renderer with the given styles.
func NewRenderer(out io.Writer, styles Styles) *Renderer {
	return &Renderer{out: out, styles: styles}
}

// RunSummary prints the outcome of a sync run.
func (r *Renderer) RunSummary(report *reconcile.Report) {
	s := r.styles

	fmt.Fprintln(r.out, s.Header.Render("Sync complete"))
	r.line("Roots", fmt.Sprintf("%v", report.Roots))
	r.line("Files seen", fmt.Sprintf("%d", report.FilesSeen))
	r.line("Indexed", fmt.Sprintf("%d", report.DocsIndexed))
	r.line("Unchanged", fmt.Sprintf("%d", report.DocsUnchanged))
	r.line("Deleted", fmt.Sprintf("%d", report.DocsDeleted))
	if report.Vanished > 0 {
		r.line("Vanished", fmt.Sprintf("%d", report.Vanished))
	}
	if report.DocsEmpty > 0 {
		r.line("No content", fmt.Sprintf("%d", report.DocsEmpty))
	}
	r.line("Duration", report.Duration.Round(10*time.Millisecond).String())

	if report.GuardVeto != "" {
		fmt.Fprintln(r.out, s.Warning.Render(fmt.Sprintf("deletions vetoed (%d vanished): %s",
			report.Vanished, report.GuardVeto)))
	}
	if report.Failures > 0 {
		fmt.Fprintln(r.out, s.Error.Render(fmt.Sprintf("%d documents failed: %s",
			report.Failures, report.LastError)))
	} else if report.GuardVeto == "" {
		fmt.Fprintln(r.out, s.Success.Render("ok"))
	}
}

// CheckResults prints pre-flight check outcomes.
func (r *Renderer) CheckResults(results []guard.CheckResult) {
	s := r.styles
	for _, result := range results {
		line := result.Summary()
		switch result.Status {
		case guard.StatusFail:
			fmt.Fprintln(r.out, s.Error.Render(line))
		case guard.StatusWarn:
			fmt.Fprintln(r.out, s.Warning.Render(line))
		default:
			fmt.Fprintln(r.out, s.Success.Render(line))
		}
	}
}

func (r *Renderer) line(label, value string) {
	fmt.Fprintf(r.out, "  %s %s\n",
		r.styles.Label.Render(label+":"), r.styles.Value.Render(value))
}
