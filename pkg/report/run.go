// Package report records the outcome of a test program run and
// renders it as JSON and Markdown.
package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"digital.vasic.cctests/pkg/condition"
)

// Run is the complete record of one test program execution.
type Run struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Program is the test program name.
	Program string `json:"program"`

	// Skipped is true when the program filter rejected the
	// program.
	Skipped bool `json:"skipped"`

	// Passed mirrors the driver's all-passed flag.
	Passed bool `json:"passed"`

	// ExitCode is the code the program exited with.
	ExitCode int `json:"exit_code"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Groups []*GroupRecord `json:"groups"`
}

// GroupRecord is the record of one group bracket.
type GroupRecord struct {
	Name    string       `json:"name"`
	Skipped bool         `json:"skipped"`
	Passed  bool         `json:"passed"`
	Tests   []TestRecord `json:"tests"`
}

// TestRecord is the record of one test.
type TestRecord struct {
	Name     string              `json:"name"`
	Outcome  string              `json:"outcome"`
	Passed   bool                `json:"passed"`
	Kind     string              `json:"kind,omitempty"`
	Message  string              `json:"message,omitempty"`
	Location *condition.Location `json:"location,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// Counts tallies the tests of a run.
type Counts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Counts returns the test tallies of the run. Tests whose
// outcome is "skipped" count as skipped rather than passed.
func (r *Run) Counts() Counts {
	var c Counts
	for _, g := range r.Groups {
		for _, t := range g.Tests {
			c.Total++
			switch {
			case t.Outcome == OutcomeSkipped:
				c.Skipped++
			case t.Passed:
				c.Passed++
			default:
				c.Failed++
			}
		}
	}
	return c
}

// OutcomeSkipped is the outcome label of skipped tests.
const OutcomeSkipped = "skipped"

// Recorder accumulates a Run while the driver executes. It is
// safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	run     *Run
	current *GroupRecord
}

// NewRecorder creates a Recorder with a fresh run ID.
func NewRecorder() *Recorder {
	return &Recorder{
		run: &Run{
			ID:     uuid.NewString(),
			Passed: true,
			Groups: make([]*GroupRecord, 0),
		},
	}
}

// Start records the program name and start time.
func (r *Recorder) Start(program string, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Program = program
	r.run.Skipped = skipped
	r.run.StartTime = time.Now()
}

// BeginGroup opens a group record.
func (r *Recorder) BeginGroup(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &GroupRecord{
		Name:    name,
		Skipped: !enabled,
		Passed:  true,
		Tests:   make([]TestRecord, 0),
	}
	r.run.Groups = append(r.run.Groups, r.current)
}

// AddTest appends a test to the open group. Tests recorded
// outside a group are attached to an unnamed group.
func (r *Recorder) AddTest(t TestRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		r.current = &GroupRecord{Passed: true}
		r.run.Groups = append(r.run.Groups, r.current)
	}
	r.current.Tests = append(r.current.Tests, t)
	if !t.Passed {
		r.current.Passed = false
		r.run.Passed = false
	}
}

// EndGroup closes the open group.
func (r *Recorder) EndGroup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

// Finish records the exit code and end time and returns the
// completed run.
func (r *Recorder) Finish(exitCode int) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	r.run.ExitCode = exitCode
	r.run.EndTime = time.Now()
	if r.run.StartTime.IsZero() {
		r.run.StartTime = r.run.EndTime
	}
	r.run.Duration = r.run.EndTime.Sub(r.run.StartTime)
	return r.run
}

// Run returns the run recorded so far.
func (r *Recorder) Run() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}
