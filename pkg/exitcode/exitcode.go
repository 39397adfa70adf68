// Package exitcode defines the process exit codes of test
// programs, following the Automake test-harness protocol.
//
// * Success (0): every test passed
// * Failure (1): at least one test failed
// * Skip (77): the program was skipped as a whole
// * HardError (99): the driver could not run the program
package exitcode

const (
	Success   = 0
	Failure   = 1
	Skip      = 77
	HardError = 99
)

// Describe returns the harness verdict for code: PASS, FAIL,
// SKIP or ERROR.
func Describe(code int) string {
	switch code {
	case Success:
		return "PASS"
	case Skip:
		return "SKIP"
	case HardError:
		return "ERROR"
	default:
		return "FAIL"
	}
}

// Combine folds the exit code of one more program into an
// aggregate code. A hard error dominates a failure, which
// dominates success; skips do not change the aggregate.
func Combine(agg, code int) int {
	switch {
	case agg == HardError || code == HardError:
		return HardError
	case code == Skip || code == Success:
		return agg
	default:
		return Failure
	}
}
