// Package monitor collects driver lifecycle events and serves
// them live over HTTP.
package monitor

import "time"

// EventType names a lifecycle event. The values double as the
// "event" field of the driver's log records.
type EventType string

const (
	EventEnterProgram     EventType = "enter_program"
	EventSkipProgram      EventType = "skip_program"
	EventBeginGroup       EventType = "begin_group"
	EventSkipGroup        EventType = "skip_group"
	EventEndGroup         EventType = "end_group"
	EventSuccessfulTest   EventType = "successful_test"
	EventSkippedTest      EventType = "skipped_test"
	EventExpectedFailure  EventType = "expected_failure"
	EventUnexpectedSignal EventType = "unexpected_signal"
	EventUnreachable      EventType = "unreachable"
	EventExceptionRaised  EventType = "exception_raised"
	EventExitProgram      EventType = "exit_program"
	EventFatal            EventType = "fatal"
)

// IsTest reports whether the event closes a test.
func (t EventType) IsTest() bool {
	switch t {
	case EventSuccessfulTest, EventSkippedTest, EventExpectedFailure,
		EventUnexpectedSignal, EventUnreachable, EventExceptionRaised:
		return true
	}
	return false
}

// Passed reports whether a test event counts as a pass.
func (t EventType) Passed() bool {
	switch t {
	case EventSuccessfulTest, EventSkippedTest, EventExpectedFailure:
		return true
	}
	return false
}

// Event represents a lifecycle event during program execution.
type Event struct {
	Type      EventType     `json:"type"`
	Program   string        `json:"program"`
	Group     string        `json:"group,omitempty"`
	Test      string        `json:"test,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	ExitCode  int           `json:"exit_code,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
