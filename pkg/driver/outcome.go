package driver

import (
	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/monitor"
)

// Outcome is the classification of the condition a test body
// terminated with.
type Outcome int

const (
	// Failed covers every failure kind without a more specific
	// outcome, including kinds the driver does not know.
	Failed Outcome = iota
	Skipped
	Succeeded
	ExpectedFailure
	UnexpectedSignal
	Unreachable
)

var outcomeNames = [...]string{
	Failed:           "failed",
	Skipped:          "skipped",
	Succeeded:        "succeeded",
	ExpectedFailure:  "expected_failure",
	UnexpectedSignal: "unexpected_signal",
	Unreachable:      "unreachable",
}

// String returns the outcome label used in metrics and reports.
func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Passed reports whether the outcome leaves the aggregate
// flags untouched.
func (o Outcome) Passed() bool {
	switch o {
	case Skipped, Succeeded, ExpectedFailure:
		return true
	}
	return false
}

// Event returns the lifecycle event logged for the outcome.
func (o Outcome) Event() monitor.EventType {
	switch o {
	case Skipped:
		return monitor.EventSkippedTest
	case Succeeded:
		return monitor.EventSuccessfulTest
	case ExpectedFailure:
		return monitor.EventExpectedFailure
	case UnexpectedSignal:
		return monitor.EventUnexpectedSignal
	case Unreachable:
		return monitor.EventUnreachable
	default:
		return monitor.EventExceptionRaised
	}
}

// Classify maps the condition a protected body terminated with
// to an outcome. The checks run in a fixed order and the first
// match wins; nil means the body completed normally.
func Classify(c condition.Condition) Outcome {
	switch {
	case c == nil:
		return Succeeded
	case condition.Is(c, condition.KindSkipped):
		return Skipped
	case condition.Is(c, condition.KindSuccess):
		return Succeeded
	case condition.Is(c, condition.KindExpectedFailure):
		return ExpectedFailure
	case condition.Is(c, condition.KindSignal):
		return UnexpectedSignal
	case condition.Is(c, condition.KindUnreachable):
		return Unreachable
	default:
		return Failed
	}
}
