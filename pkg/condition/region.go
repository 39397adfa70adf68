package condition

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrRetryLimit is wrapped into the condition returned by
// ProtectRetry when the body keeps requesting a retry.
var ErrRetryLimit = errors.New("retry limit reached")

// Region is the handle a protected body uses to register
// handlers. Handlers run in reverse registration order when
// the region exits, whatever the exit path.
type Region struct {
	handlers []handler
}

type handler struct {
	fn      func()
	onError bool
}

// OnExit registers fn to run on every exit from the region.
func (r *Region) OnExit(fn func()) {
	r.handlers = append(r.handlers, handler{fn: fn})
}

// OnError registers fn to run only when the region exits with
// something other than success.
func (r *Region) OnError(fn func()) {
	r.handlers = append(r.handlers, handler{fn: fn, onError: true})
}

// Protect runs body inside a protected region and returns the
// condition it terminated with. A nil return is Success; a
// returned or raised condition is returned as is; plain errors
// and foreign panics are wrapped. Registered handlers have run
// by the time Protect returns.
func Protect(body func(r *Region) error) (c Condition) {
	r := &Region{}
	defer func() {
		if v := recover(); v != nil {
			c = fromPanic(v)
		}
		c = r.unwind(c)
	}()

	if err := body(r); err != nil {
		return Wrap(err)
	}
	return Success()
}

// ProtectRetry runs body in a protected region and enters it
// again for as long as it raises the retry condition. Attempts
// are numbered from 1. A non-positive max means no limit.
func ProtectRetry(
	max int,
	body func(r *Region, attempt int) error,
) Condition {
	for attempt := 1; max <= 0 || attempt <= max; attempt++ {
		c := Protect(func(r *Region) error {
			return body(r, attempt)
		})
		if !Is(c, KindRetry) {
			return c
		}
	}
	return Wrap(fmt.Errorf("%w after %d attempts", ErrRetryLimit, max))
}

func (r *Region) unwind(c Condition) Condition {
	failed := c != nil && !Is(c, KindSuccess)
	for i := len(r.handlers) - 1; i >= 0; i-- {
		h := r.handlers[i]
		if h.onError && !failed {
			continue
		}
		if hc := runHandler(h.fn); hc != nil && !failed {
			c = hc
			failed = true
		}
	}
	r.handlers = nil
	return c
}

func runHandler(fn func()) (c Condition) {
	defer func() {
		if v := recover(); v != nil {
			c = fromPanic(v)
		}
	}()
	fn()
	return nil
}

func fromPanic(v any) Condition {
	switch val := v.(type) {
	case Condition:
		return val
	case error:
		if c, ok := Of(val); ok {
			return c
		}
	}
	return &Panic{Value: v}
}

// Raise terminates the enclosing protected region with c.
func Raise(c Condition) {
	if c == nil {
		c = &Panic{Value: "raise of nil condition"}
	}
	panic(c)
}

// Check raises err as a condition when it is not nil.
func Check(err error) {
	if err != nil {
		Raise(Wrap(err))
	}
}

// Assert raises an assertion condition located at the caller
// when ok is false.
func Assert(ok bool, expr string) {
	if !ok {
		Raise(NewAssertion(expr, Here(1)))
	}
}

// NotReached raises an unreachable condition located at the
// caller.
func NotReached() {
	Raise(NewUnreachable(Here(1)))
}

// Skip ends the enclosing test as skipped.
func Skip() { Raise(skipped) }

// ExpectFailure ends the enclosing test as an expected failure.
func ExpectFailure() { Raise(expectedFailure) }

// Retry asks the enclosing ProtectRetry to run its body again.
func Retry() { Raise(retry) }

// Here returns the location of the caller skip frames above
// the function calling Here.
func Here(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{File: "???", Func: "???"}
	}
	loc := Location{File: file, Line: line, Func: "???"}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Func = fn.Name()
	}
	return loc
}
