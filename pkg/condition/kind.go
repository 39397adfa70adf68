// Package condition provides the outcome model of the test
// driver: a single-parent hierarchy of condition kinds with
// ancestor testing, the conditions themselves, and a protected
// region that captures whatever a test body raises.
package condition

import (
	"fmt"
	"sync"
)

// Kind identifies a node in the condition hierarchy. Every kind
// except Base has exactly one parent.
type Kind int

// Built-in kinds. The order of declaration is the order of the
// entries in the kind table.
const (
	Base Kind = iota
	KindSuccess
	KindSkipped
	KindExpectedFailure
	KindRetry
	KindFailure
	KindAssertion
	KindUnreachable
	KindSignal
	KindSignal1
	KindSignal2
	KindSignal3
	KindRuntimeError
	KindRegexError
	KindRegexCompilationError
	KindProcessError
	KindAbnormalTermination
	KindChildFailureExitStatus
	KindWrappedError
	KindPanic

	builtinKinds
)

// none marks the parent slot of the hierarchy root.
const none Kind = -1

type kindInfo struct {
	name    string
	parent  Kind
	message string
}

var (
	kindsMu sync.RWMutex
	kinds   = []kindInfo{
		Base:                  {"base", none, "condition"},
		KindSuccess:           {"success", Base, "success"},
		KindSkipped:           {"skipped", Base, "test skipped"},
		KindExpectedFailure:   {"expected_failure", Base, "expected failure"},
		KindRetry:             {"retry", Base, "retry requested"},
		KindFailure:           {"failure", Base, "test failure"},
		KindAssertion:         {"assertion", KindFailure, "assertion failed"},
		KindUnreachable:       {"unreachable", KindFailure, "unreachable code executed"},
		KindSignal:            {"signal", Base, "signal"},
		KindSignal1:           {"signal_1", KindSignal, "signal 1"},
		KindSignal2:           {"signal_2", KindSignal, "signal 2"},
		KindSignal3:           {"signal_3", KindSignal, "signal 3"},
		KindRuntimeError:      {"runtime_error", Base, "runtime error"},
		KindRegexError:        {"regex_error", KindRuntimeError, "regular expression error"},
		KindRegexCompilationError: {
			"regex_compilation_error", KindRegexError,
			"regular expression compilation error",
		},
		KindProcessError: {
			"process_error", KindRuntimeError, "child process error",
		},
		KindAbnormalTermination: {
			"abnormal_termination", KindProcessError,
			"child process terminated abnormally",
		},
		KindChildFailureExitStatus: {
			"child_failure_exit_status", KindProcessError,
			"child process exited with failure status",
		},
		KindWrappedError: {"wrapped_error", KindRuntimeError, "error"},
		KindPanic:        {"panic", KindRuntimeError, "panic"},
	}
)

// RegisterKind adds a new kind below parent and returns its
// identity. It panics if parent is not a known kind, which is
// a programming error caught at package initialisation.
func RegisterKind(name string, parent Kind, message string) Kind {
	kindsMu.Lock()
	defer kindsMu.Unlock()

	if parent < 0 || int(parent) >= len(kinds) {
		panic(fmt.Sprintf(
			"condition: register %q: unknown parent kind %d",
			name, parent,
		))
	}
	kinds = append(kinds, kindInfo{
		name:    name,
		parent:  parent,
		message: message,
	})
	return Kind(len(kinds) - 1)
}

func (k Kind) info() (kindInfo, bool) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	if k < 0 || int(k) >= len(kinds) {
		return kindInfo{}, false
	}
	return kinds[k], true
}

// String returns the kind name.
func (k Kind) String() string {
	if ki, ok := k.info(); ok {
		return ki.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message returns the static human-readable message of the
// kind.
func (k Kind) Message() string {
	ki, _ := k.info()
	return ki.message
}

// Parent returns the parent of k. The second result is false
// for Base and for unknown kinds.
func (k Kind) Parent() (Kind, bool) {
	ki, ok := k.info()
	if !ok || ki.parent == none {
		return none, false
	}
	return ki.parent, true
}

// Descends reports whether k equals ancestor or has it among
// its ancestors.
func (k Kind) Descends(ancestor Kind) bool {
	kindsMu.RLock()
	defer kindsMu.RUnlock()

	for cur := k; cur >= 0 && int(cur) < len(kinds); {
		if cur == ancestor {
			return true
		}
		cur = kinds[cur].parent
	}
	return false
}

// Depth returns the number of edges between k and Base, or -1
// for unknown kinds.
func (k Kind) Depth() int {
	kindsMu.RLock()
	defer kindsMu.RUnlock()

	if k < 0 || int(k) >= len(kinds) {
		return -1
	}
	d := 0
	for cur := kinds[k].parent; cur != none; cur = kinds[cur].parent {
		d++
	}
	return d
}
