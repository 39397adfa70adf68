package report

import (
	"encoding/json"
	"io"
)

// JSONReporter generates JSON reports.
type JSONReporter struct {
	pretty bool
}

// NewJSONReporter creates a new JSON reporter. When pretty is
// true, output is indented for readability.
func NewJSONReporter(pretty bool) *JSONReporter {
	return &JSONReporter{pretty: pretty}
}

// jsonReport wraps a run with its tallies.
type jsonReport struct {
	*Run
	Counts Counts `json:"counts"`
}

// GenerateReport creates a JSON report for a run.
func (r *JSONReporter) GenerateReport(run *Run) ([]byte, error) {
	doc := jsonReport{Run: run, Counts: run.Counts()}
	if r.pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// WriteReport writes a JSON report to the specified writer.
func (r *JSONReporter) WriteReport(w io.Writer, run *Run) error {
	return writeReport(r, w, run)
}

// Extension returns ".json".
func (r *JSONReporter) Extension() string { return ".json" }
