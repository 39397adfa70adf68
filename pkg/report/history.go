package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// HistoryFile is the name of the run history log inside a
// report directory.
const HistoryFile = "history.jsonl"

// HistoricalEntry represents a single program run in the
// historical log.
type HistoricalEntry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Program   string    `json:"program"`
	ExitCode  int       `json:"exit_code"`
	Duration  string    `json:"duration"`
	Counts    Counts    `json:"counts"`
}

// AppendToHistory adds an entry for run to the historical log
// stored at historyPath. Each entry is a single JSON line.
func AppendToHistory(historyPath string, run *Run) error {
	entry := HistoricalEntry{
		Timestamp: run.EndTime,
		RunID:     run.ID,
		Program:   run.Program,
		ExitCode:  run.ExitCode,
		Duration:  run.Duration.String(),
		Counts:    run.Counts(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf(
			"failed to marshal history entry: %w", err,
		)
	}

	file, err := os.OpenFile(
		historyPath,
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0644,
	)
	if err != nil {
		return fmt.Errorf(
			"failed to open history file: %w", err,
		)
	}
	defer func() { _ = file.Close() }()

	_, err = fmt.Fprintln(file, string(data))
	return err
}

// LoadHistory reads every entry of the historical log.
func LoadHistory(historyPath string) ([]HistoricalEntry, error) {
	data, err := os.ReadFile(historyPath)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to read history file: %w", err,
		)
	}

	var entries []HistoricalEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e HistoricalEntry
		if err := dec.Decode(&e); err != nil {
			return entries, fmt.Errorf(
				"failed to decode history entry: %w", err,
			)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
