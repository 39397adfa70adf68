package monitor

import (
	"sync"
	"time"
)

// Test states shown on the dashboard.
const (
	StatePassed  = "passed"
	StateFailed  = "failed"
	StateSkipped = "skipped"
)

// DashboardData provides a real-time snapshot of program
// execution state.
type DashboardData struct {
	mu        sync.RWMutex
	RunID     string               `json:"run_id"`
	Program   string               `json:"program"`
	StartTime time.Time            `json:"start_time"`
	Status    string               `json:"status"` // running, passed, failed, skipped, error
	Tests     map[string]TestState `json:"tests"`
	Summary   DashboardSummary     `json:"summary"`
}

// TestState represents the last known state of a test.
type TestState struct {
	Group    string        `json:"group"`
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Outcome  EventType     `json:"outcome"`
	Duration time.Duration `json:"duration,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// DashboardSummary holds aggregate stats for the dashboard.
type DashboardSummary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	PassRate float64 `json:"pass_rate"`
	Elapsed  string  `json:"elapsed"`
}

// NewDashboardData creates a new dashboard data instance.
func NewDashboardData(runID string) *DashboardData {
	return &DashboardData{
		RunID:     runID,
		StartTime: time.Now(),
		Status:    "running",
		Tests:     make(map[string]TestState),
	}
}

// TestKey is the dashboard key of a test.
func TestKey(group, test string) string {
	return group + "/" + test
}

// UpdateFromEvent updates dashboard state from an event.
func (d *DashboardData) UpdateFromEvent(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case event.Type == EventEnterProgram:
		d.Program = event.Program
		d.Status = "running"
	case event.Type == EventSkipProgram:
		d.Program = event.Program
		d.Status = StateSkipped
	case event.Type == EventFatal:
		d.Status = "error"
	case event.Type == EventExitProgram:
		if event.ExitCode == 0 {
			d.Status = StatePassed
		} else {
			d.Status = StateFailed
		}
	case event.Type.IsTest():
		state := TestState{
			Group:    event.Group,
			Name:     event.Test,
			Outcome:  event.Type,
			Duration: event.Duration,
			Message:  event.Message,
		}
		switch {
		case event.Type == EventSkippedTest:
			state.Status = StateSkipped
		case event.Type.Passed():
			state.Status = StatePassed
		default:
			state.Status = StateFailed
		}
		d.Tests[TestKey(event.Group, event.Test)] = state
	}

	d.recalcSummary()
}

func (d *DashboardData) recalcSummary() {
	s := DashboardSummary{}
	for _, t := range d.Tests {
		s.Total++
		switch t.Status {
		case StatePassed:
			s.Passed++
		case StateFailed:
			s.Failed++
		case StateSkipped:
			s.Skipped++
		}
	}
	if completed := s.Passed + s.Failed; completed > 0 {
		s.PassRate = float64(s.Passed) / float64(completed) * 100
	}
	s.Elapsed = time.Since(d.StartTime).Round(time.Millisecond).String()
	d.Summary = s
}

// Snapshot returns a copy of the current dashboard state.
func (d *DashboardData) Snapshot() *DashboardData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := &DashboardData{
		RunID:     d.RunID,
		Program:   d.Program,
		StartTime: d.StartTime,
		Status:    d.Status,
		Summary:   d.Summary,
		Tests:     make(map[string]TestState, len(d.Tests)),
	}
	for k, v := range d.Tests {
		snap.Tests[k] = v
	}
	return snap
}

// BuildDashboardData creates a DashboardData snapshot from an
// EventCollector by replaying all collected events.
func BuildDashboardData(
	runID string, collector *EventCollector,
) *DashboardData {
	data := NewDashboardData(runID)
	for _, event := range collector.Events() {
		data.UpdateFromEvent(event)
	}
	return data
}
