package report

import "io"

// Reporter defines the interface for rendering run reports.
type Reporter interface {
	// GenerateReport renders the report of a run.
	GenerateReport(run *Run) ([]byte, error)

	// WriteReport writes the report of a run to w.
	WriteReport(w io.Writer, run *Run) error

	// Extension is the file extension of generated reports,
	// including the dot.
	Extension() string
}

func writeReport(r Reporter, w io.Writer, run *Run) error {
	data, err := r.GenerateReport(run)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
