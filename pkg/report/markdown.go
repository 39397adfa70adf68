package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// MarkdownReporter generates human-readable Markdown reports.
type MarkdownReporter struct{}

// NewMarkdownReporter creates a Markdown reporter.
func NewMarkdownReporter() *MarkdownReporter {
	return &MarkdownReporter{}
}

// GenerateReport renders run as Markdown: an overview, one
// table per group and the run statistics.
func (r *MarkdownReporter) GenerateReport(run *Run) ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", run.Program)
	fmt.Fprintf(&sb, "**Run ID:** %s\n\n", run.ID)
	fmt.Fprintf(&sb, "**Started:** %s\n\n", run.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Result:** %s (exit code %d)\n\n",
		verdict(run), run.ExitCode)

	for _, g := range run.Groups {
		name := g.Name
		if name == "" {
			name = "(no group)"
		}
		fmt.Fprintf(&sb, "## %s\n\n", name)
		if g.Skipped {
			sb.WriteString("*Group skipped by selection.*\n\n")
		}
		if len(g.Tests) == 0 {
			continue
		}
		sb.WriteString("| Test | Outcome | Duration | Detail |\n")
		sb.WriteString("|------|---------|----------|--------|\n")
		for _, t := range g.Tests {
			detail := t.Message
			if t.Location != nil {
				detail = fmt.Sprintf("%s at %s", detail, t.Location)
			}
			fmt.Fprintf(&sb, "| %s | %s | %v | %s |\n",
				t.Name, strings.ToUpper(t.Outcome), t.Duration,
				strings.TrimSpace(detail))
		}
		sb.WriteString("\n")
	}

	c := run.Counts()
	sb.WriteString("## Statistics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	fmt.Fprintf(&sb, "| Total Tests | %d |\n", c.Total)
	fmt.Fprintf(&sb, "| Passed | %d |\n", c.Passed)
	fmt.Fprintf(&sb, "| Failed | %d |\n", c.Failed)
	fmt.Fprintf(&sb, "| Skipped | %d |\n", c.Skipped)
	fmt.Fprintf(&sb, "| Duration | %v |\n", run.Duration)

	return []byte(sb.String()), nil
}

// WriteReport writes a Markdown report to the specified
// writer.
func (r *MarkdownReporter) WriteReport(w io.Writer, run *Run) error {
	return writeReport(r, w, run)
}

// Extension returns ".md".
func (r *MarkdownReporter) Extension() string { return ".md" }

func verdict(run *Run) string {
	switch {
	case run.Skipped:
		return "SKIP"
	case run.Passed:
		return "PASS"
	default:
		return "FAIL"
	}
}
