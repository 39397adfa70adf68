package condition

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Hierarchy(t *testing.T) {
	tests := []struct {
		kind     Kind
		ancestor Kind
		want     bool
	}{
		{KindAssertion, KindFailure, true},
		{KindAssertion, Base, true},
		{KindUnreachable, KindFailure, true},
		{KindSignal2, KindSignal, true},
		{KindRegexCompilationError, KindRegexError, true},
		{KindRegexCompilationError, KindRuntimeError, true},
		{KindAbnormalTermination, KindProcessError, true},
		{KindChildFailureExitStatus, KindRuntimeError, true},
		{KindSkipped, KindFailure, false},
		{KindSuccess, KindFailure, false},
		{KindFailure, KindAssertion, false},
		{KindSignal1, KindSignal2, false},
		{Kind(1000), Base, false},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s/%s", tt.kind, tt.ancestor)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Descends(tt.ancestor))
		})
	}
}

func TestKind_Parent(t *testing.T) {
	p, ok := KindAssertion.Parent()
	require.True(t, ok)
	assert.Equal(t, KindFailure, p)

	_, ok = Base.Parent()
	assert.False(t, ok)

	_, ok = Kind(-5).Parent()
	assert.False(t, ok)
}

func TestKind_Depth(t *testing.T) {
	assert.Equal(t, 0, Base.Depth())
	assert.Equal(t, 1, KindFailure.Depth())
	assert.Equal(t, 2, KindAssertion.Depth())
	assert.Equal(t, 3, KindRegexCompilationError.Depth())
	assert.Equal(t, -1, Kind(9999).Depth())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "assertion", KindAssertion.String())
	assert.Equal(t, "signal_3", KindSignal3.String())
	assert.Equal(t, "kind(4242)", Kind(4242).String())
}

func TestRegisterKind(t *testing.T) {
	timeout := RegisterKind("timeout", KindFailure, "test timed out")

	assert.True(t, timeout.Descends(KindFailure))
	assert.True(t, timeout.Descends(Base))
	assert.False(t, timeout.Descends(KindAssertion))
	assert.Equal(t, "timeout", timeout.String())
	assert.Equal(t, "test timed out", timeout.Message())

	nested := RegisterKind("slow_timeout", timeout, "")
	assert.True(t, nested.Descends(KindFailure))
	assert.Equal(t, 3, nested.Depth())
}

func TestRegisterKind_UnknownParent(t *testing.T) {
	assert.Panics(t, func() {
		RegisterKind("orphan", Kind(100000), "")
	})
}

func TestSingletons_Identity(t *testing.T) {
	assert.Same(t, Success(), Success())
	assert.Same(t, Skipped(), Skipped())
	assert.Same(t, ExpectedFailure(), ExpectedFailure())
	assert.Same(t, Signal(), Signal())
	assert.Same(t, Signal1(), Signal1())
	assert.Same(t, Signal2(), Signal2())
	assert.Same(t, Signal3(), Signal3())

	assert.True(t, Is(Signal1(), KindSignal))
	assert.False(t, Is(Signal1(), KindFailure))
	assert.Equal(t, "test skipped", Skipped().Error())
}

func TestIs_Nil(t *testing.T) {
	assert.False(t, Is(nil, Base))
}

func TestNewAssertion(t *testing.T) {
	loc := Location{File: "a_test.go", Func: "pkg.TestA", Line: 12}
	c := NewAssertion("x == 1", loc)

	assert.True(t, Is(c, KindFailure))
	assert.True(t, Is(c, KindAssertion))
	assert.False(t, Is(c, KindSuccess))
	assert.Equal(t, loc, c.Where())
	assert.Contains(t, c.Error(), "x == 1")
	assert.Contains(t, c.Error(), "a_test.go:12")

	other := NewAssertion("x == 1", loc)
	assert.NotSame(t, c, other)
}

func TestNewUnreachable(t *testing.T) {
	loc := Location{File: "b.go", Func: "pkg.f", Line: 7}
	c := NewUnreachable(loc)

	assert.True(t, Is(c, KindFailure))
	assert.True(t, Is(c, KindUnreachable))
	assert.False(t, Is(c, KindAssertion))
	assert.False(t, Is(c, KindSuccess))
	assert.Equal(t, loc, c.Where())
}

func TestNewRegexCompilationError(t *testing.T) {
	c := NewRegexCompilationError(syntax.ErrMissingBracket, "[a")

	assert.True(t, Is(c, KindRuntimeError))
	assert.True(t, Is(c, KindRegexError))
	assert.False(t, Is(c, KindFailure))
	assert.False(t, Is(c, KindSuccess))
	assert.Equal(t, syntax.ErrMissingBracket, c.Code)
	assert.Contains(t, c.Message, "missing closing ]")
	assert.Contains(t, c.Message, "[a")
}

func TestNewRegexError(t *testing.T) {
	c := NewRegexError(syntax.ErrInternalError, "a(b")

	assert.Equal(t, KindRegexError, c.Kind())
	assert.True(t, Is(c, KindRuntimeError))
	assert.False(t, Is(c, KindRegexCompilationError))
	assert.Equal(t, syntax.ErrInternalError, c.Code)
	assert.Contains(t, c.Error(), "regular expression error")
	assert.Contains(t, c.Message, "a(b")

	var rc Condition = NewRegexCompilationError(syntax.ErrMissingParen, "a(b")
	compiled := rc.(*RegexCompilationError)
	assert.Equal(t, syntax.ErrMissingParen, compiled.RegexError.Code)
	assert.Contains(t, rc.Error(), "compilation error")
}

func TestNewRegexCompilationError_BoundedMessage(t *testing.T) {
	expr := strings.Repeat("x", 5000)
	c := NewRegexCompilationError(syntax.ErrMissingParen, expr)
	assert.Len(t, []rune(c.Message), MaxMessageLength)
}

func TestProcessConditions(t *testing.T) {
	abn := NewAbnormalTermination(42, syscall.SIGKILL)
	assert.True(t, Is(abn, KindProcessError))
	assert.Contains(t, abn.Error(), "pid 42")

	exit := NewChildFailureExitStatus(43, 1)
	assert.True(t, Is(exit, KindChildFailureExitStatus))
	assert.False(t, Is(exit, KindAbnormalTermination))
	assert.Contains(t, exit.Error(), "status 1")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	plain := errors.New("boom")
	c := Wrap(plain)
	require.NotNil(t, c)
	assert.Equal(t, KindWrappedError, c.Kind())
	assert.ErrorIs(t, c, plain)

	inner := NewUnreachable(Location{})
	wrapped := fmt.Errorf("context: %w", inner)
	assert.Same(t, inner, Wrap(wrapped))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSuccess, KindOf(nil))
	assert.Equal(t, KindWrappedError, KindOf(errors.New("x")))
	assert.Equal(t, KindSkipped, KindOf(Skipped()))
	assert.Equal(t,
		KindAssertion,
		KindOf(fmt.Errorf("a: %w", NewAssertion("e", Location{}))),
	)
}
