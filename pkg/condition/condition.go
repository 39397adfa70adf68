package condition

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"syscall"
)

// MaxMessageLength bounds the decoded message carried by regex
// error conditions, in runes.
const MaxMessageLength = 1024

// Condition is the exceptional result of a protected region.
// Every condition is an error and belongs to exactly one kind.
type Condition interface {
	error

	// Kind returns the kind of this condition.
	Kind() Kind
}

// Location identifies a point in the source of a test program.
type Location struct {
	File string `json:"file"`
	Func string `json:"func"`
	Line int    `json:"line"`
}

// String renders the location as file:line (func).
func (l Location) String() string {
	return fmt.Sprintf("%s:%d (%s)", l.File, l.Line, l.Func)
}

// Located is implemented by conditions that know where they
// were raised.
type Located interface {
	Where() Location
}

// Is reports whether c is of kind k or of a kind descending
// from k. A nil condition is of no kind.
func Is(c Condition, k Kind) bool {
	if c == nil {
		return false
	}
	return c.Kind().Descends(k)
}

// Of extracts the condition carried by err, if any.
func Of(err error) (Condition, bool) {
	var c Condition
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// KindOf classifies an arbitrary error. A nil error is a
// success and plain errors are wrapped errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	if c, ok := Of(err); ok {
		return c.Kind()
	}
	return KindWrappedError
}

// singleton is a payload-free condition. Exactly one instance
// exists per kind, so they compare by identity.
type singleton struct {
	kind Kind
}

func (s *singleton) Kind() Kind { return s.kind }

func (s *singleton) Error() string { return s.kind.Message() }

var (
	success         = &singleton{kind: KindSuccess}
	skipped         = &singleton{kind: KindSkipped}
	expectedFailure = &singleton{kind: KindExpectedFailure}
	retry           = &singleton{kind: KindRetry}
	signal          = &singleton{kind: KindSignal}
	signal1         = &singleton{kind: KindSignal1}
	signal2         = &singleton{kind: KindSignal2}
	signal3         = &singleton{kind: KindSignal3}
)

// Success returns the success singleton.
func Success() Condition { return success }

// Skipped returns the skipped singleton.
func Skipped() Condition { return skipped }

// ExpectedFailure returns the expected-failure singleton.
func ExpectedFailure() Condition { return expectedFailure }

// Signal returns the generic signal singleton.
func Signal() Condition { return signal }

// Signal1 returns the signal_1 singleton.
func Signal1() Condition { return signal1 }

// Signal2 returns the signal_2 singleton.
func Signal2() Condition { return signal2 }

// Signal3 returns the signal_3 singleton.
func Signal3() Condition { return signal3 }

// Assertion is raised when an asserted expression is false.
type Assertion struct {
	Expr string
	Location
}

// NewAssertion creates an assertion failure for expr at loc.
func NewAssertion(expr string, loc Location) *Assertion {
	return &Assertion{Expr: expr, Location: loc}
}

func (a *Assertion) Kind() Kind { return KindAssertion }

func (a *Assertion) Where() Location { return a.Location }

func (a *Assertion) Error() string {
	return fmt.Sprintf(
		"%s: %s: %s", a.Location, KindAssertion.Message(), a.Expr,
	)
}

// Unreachable is raised when control reaches code that was
// declared unreachable.
type Unreachable struct {
	Location
}

// NewUnreachable creates an unreachable failure at loc.
func NewUnreachable(loc Location) *Unreachable {
	return &Unreachable{Location: loc}
}

func (u *Unreachable) Kind() Kind { return KindUnreachable }

func (u *Unreachable) Where() Location { return u.Location }

func (u *Unreachable) Error() string {
	return fmt.Sprintf("%s: %s", u.Location, KindUnreachable.Message())
}

// RegexError carries the error code and decoded message of a
// failed regular expression operation.
type RegexError struct {
	Code    syntax.ErrorCode
	Message string
}

// NewRegexError creates a regex error for code, decoding the
// message the way the regexp/syntax package renders it for expr.
func NewRegexError(code syntax.ErrorCode, expr string) *RegexError {
	se := &syntax.Error{Code: code, Expr: expr}
	return &RegexError{
		Code:    code,
		Message: truncate(se.Error(), MaxMessageLength),
	}
}

func (r *RegexError) Kind() Kind { return KindRegexError }

func (r *RegexError) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind().Message(), r.Message)
}

// RegexCompilationError is the regex error of a pattern that
// failed to compile.
type RegexCompilationError struct {
	RegexError
}

// NewRegexCompilationError creates the condition for a pattern
// expr rejected with code.
func NewRegexCompilationError(
	code syntax.ErrorCode,
	expr string,
) *RegexCompilationError {
	return &RegexCompilationError{RegexError: *NewRegexError(code, expr)}
}

func (r *RegexCompilationError) Kind() Kind {
	return KindRegexCompilationError
}

func (r *RegexCompilationError) Error() string {
	return fmt.Sprintf(
		"%s: %s", KindRegexCompilationError.Message(), r.Message,
	)
}

// AbnormalTermination is raised in the parent when a child
// process did not terminate by a normal exit.
type AbnormalTermination struct {
	Pid    int
	Signal syscall.Signal
}

// NewAbnormalTermination creates the condition for a child
// killed by sig.
func NewAbnormalTermination(
	pid int,
	sig syscall.Signal,
) *AbnormalTermination {
	return &AbnormalTermination{Pid: pid, Signal: sig}
}

func (a *AbnormalTermination) Kind() Kind {
	return KindAbnormalTermination
}

func (a *AbnormalTermination) Error() string {
	return fmt.Sprintf(
		"%s: pid %d, signal %q",
		KindAbnormalTermination.Message(), a.Pid, a.Signal.String(),
	)
}

// ChildFailureExitStatus is raised in the parent when a child
// process exited with a non-zero status.
type ChildFailureExitStatus struct {
	Pid    int
	Status int
}

// NewChildFailureExitStatus creates the condition for a child
// that exited with status.
func NewChildFailureExitStatus(
	pid, status int,
) *ChildFailureExitStatus {
	return &ChildFailureExitStatus{Pid: pid, Status: status}
}

func (c *ChildFailureExitStatus) Kind() Kind {
	return KindChildFailureExitStatus
}

func (c *ChildFailureExitStatus) Error() string {
	return fmt.Sprintf(
		"%s: pid %d, status %d",
		KindChildFailureExitStatus.Message(), c.Pid, c.Status,
	)
}

// WrappedError adapts a plain Go error into the hierarchy.
type WrappedError struct {
	Err error
}

// Wrap returns err as a condition. Errors already carrying a
// condition are returned unwrapped; nil stays nil.
func Wrap(err error) Condition {
	if err == nil {
		return nil
	}
	if c, ok := Of(err); ok {
		return c
	}
	return &WrappedError{Err: err}
}

func (w *WrappedError) Kind() Kind { return KindWrappedError }

func (w *WrappedError) Error() string { return w.Err.Error() }

func (w *WrappedError) Unwrap() error { return w.Err }

// Panic carries a panic value that was not a condition.
type Panic struct {
	Value any
}

func (p *Panic) Kind() Kind { return KindPanic }

func (p *Panic) Error() string {
	return fmt.Sprintf("%s: %v", KindPanic.Message(), p.Value)
}

// Unwrap exposes the panic value when it is an error.
func (p *Panic) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
