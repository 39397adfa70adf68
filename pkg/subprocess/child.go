// Package subprocess runs callbacks in isolated child
// processes and folds their exit status back into conditions.
//
// A running Go program cannot fork, so a child is the current
// executable started again with EnvChild naming the callback to
// run. Callbacks are registered by name during initialisation
// and the program's entry point (main or TestMain) calls
// RunChildIfRequested before doing anything else. Only the exit
// status crosses the process boundary.
package subprocess

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/exitcode"
	"digital.vasic.cctests/pkg/logging"
)

// EnvChild is the variable carrying the name of the child
// callback to run.
const EnvChild = "CCTESTS_SUBPROCESS"

// ChildFunc is the body run in a child process. A nil return
// exits the child with exitcode.Success; any other outcome
// exits it with exitcode.Failure.
type ChildFunc func(r *condition.Region) error

var (
	registryMu sync.RWMutex
	children   = make(map[string]ChildFunc)

	// exit terminates the child; replaced in tests.
	exit = os.Exit

	childLogger logging.Logger = logging.NewConsoleLoggerTo(os.Stderr, false)
)

// Register makes fn runnable as the child named name. It
// panics on an empty or duplicate name.
func Register(name string, fn ChildFunc) {
	if name == "" || fn == nil {
		panic("subprocess: Register with empty name or nil func")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := children[name]; dup {
		panic(fmt.Sprintf("subprocess: child %q registered twice", name))
	}
	children[name] = fn
}

// Registered returns the sorted names of all registered
// children.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupChild(name string) (ChildFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := children[name]
	return fn, ok
}

// RunChildIfRequested returns false when the process is not a
// child. Otherwise it runs the requested callback and exits
// the process without returning.
func RunChildIfRequested() bool {
	name, ok := os.LookupEnv(EnvChild)
	if !ok {
		return false
	}
	exit(runChild(name))
	return true
}

// runChild runs the named callback in a protected region and
// returns the exit code for the child.
func runChild(name string) int {
	fn, ok := lookupChild(name)
	if !ok {
		childLogger.Error("unknown child",
			logging.StringField("child", name))
		return exitcode.Failure
	}

	c := condition.Protect(func(r *condition.Region) error {
		return fn(r)
	})
	if condition.Is(c, condition.KindSuccess) {
		return exitcode.Success
	}
	fields := append([]logging.Field{
		logging.StringField("child", name),
		logging.ErrorField(c),
	}, logging.ConditionFields(c)...)
	childLogger.Error("child failed", fields...)
	return exitcode.Failure
}
