package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"digital.vasic.cctests/pkg/exitcode"
)

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// WriteTable renders the summary as a table on w. Colour styles
// reflect the overall result when colour is true.
func WriteTable(w io.Writer, s *Summary, colour bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("cctests run " + s.RunID)

	t.AppendHeader(table.Row{
		"Program", "Result", "Exit", "Duration", "Detail",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Program", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, r := range s.Results {
		t.AppendRow(table.Row{
			r.Program,
			r.Verdict,
			r.ExitCode,
			formatDuration(r.Duration),
			r.Error,
		})
	}

	if colour {
		switch {
		case s.ExitCode != exitcode.Success:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		case s.Count(VerdictSkip) > 0:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	} else {
		t.SetStyle(table.StyleLight)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		exitcode.Describe(s.ExitCode),
		s.ExitCode,
		formatDuration(s.Duration),
		fmt.Sprintf("%d pass, %d fail, %d skip, %d error",
			s.Count(VerdictPass), s.Count(VerdictFail),
			s.Count(VerdictSkip), s.Count(VerdictError)),
	})

	t.Render()
}
