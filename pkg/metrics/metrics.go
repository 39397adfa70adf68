// Package metrics records test driver outcomes.
package metrics

import "time"

// Recorder defines the interface for recording driver metrics.
type Recorder interface {
	// RecordTest records the outcome of one test.
	RecordTest(program, group, outcome string, duration time.Duration)
	// RecordGroup records a finished group.
	RecordGroup(program, group string, passed, skipped bool)
	// RecordProgram records the exit code of a program.
	RecordProgram(program string, exitCode int)
}

// NoopMetrics is a no-op implementation of Recorder useful for
// testing or when metrics collection is disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordTest(_, _, _ string, _ time.Duration) {}
func (NoopMetrics) RecordGroup(_, _ string, _, _ bool)         {}
func (NoopMetrics) RecordProgram(_ string, _ int)              {}
