package driver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/env"
	"digital.vasic.cctests/pkg/exitcode"
	"digital.vasic.cctests/pkg/logging"
	"digital.vasic.cctests/pkg/metrics"
	"digital.vasic.cctests/pkg/monitor"
	"digital.vasic.cctests/pkg/report"
)

type testDriver struct {
	*Driver
	logs  *bytes.Buffer
	codes []int
}

func newTestDriver(
	t *testing.T, vars map[string]string, opts ...Option,
) *testDriver {
	t.Helper()
	td := &testDriver{logs: &bytes.Buffer{}}
	base := []Option{
		WithEnv(env.NewMapLoader(vars)),
		WithLogger(logging.NewJSONLoggerTo(td.logs, logging.LevelDebug, true)),
		WithExit(func(code int) { td.codes = append(td.codes, code) }),
	}
	td.Driver = New(append(base, opts...)...)
	return td
}

// events returns the "event" field of every log record.
func (td *testDriver) events(t *testing.T) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(td.logs.Bytes()))
	for sc.Scan() {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if ev, ok := entry.Fields["event"].(string); ok {
			out = append(out, ev)
		}
	}
	return out
}

func pass(*condition.Region) error { return nil }

func failAssert(*condition.Region) error {
	condition.Assert(1+1 == 3, "1+1 == 3")
	return nil
}

func TestClassify(t *testing.T) {
	custom := condition.RegisterKind("driver_test_custom", condition.Base, "custom")
	skipChild := condition.RegisterKind("driver_test_skip_child", condition.KindSkipped, "")

	tests := []struct {
		name string
		c    condition.Condition
		want Outcome
	}{
		{"normal completion", nil, Succeeded},
		{"success", condition.Success(), Succeeded},
		{"skipped", condition.Skipped(), Skipped},
		{"expected failure", condition.ExpectedFailure(), ExpectedFailure},
		{"signal", condition.Signal(), UnexpectedSignal},
		{"signal 2", condition.Signal2(), UnexpectedSignal},
		{"unreachable", condition.NewUnreachable(condition.Here(0)), Unreachable},
		{"assertion", condition.NewAssertion("x", condition.Here(0)), Failed},
		{"wrapped error", condition.Wrap(errors.New("boom")), Failed},
		{"panic", &condition.Panic{Value: "boom"}, Failed},
		{"unknown kind", testCondition{custom}, Failed},
		{"skipped descendant", testCondition{skipChild}, Skipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.c))
		})
	}
}

type testCondition struct{ kind condition.Kind }

func (c testCondition) Kind() condition.Kind { return c.kind }
func (c testCondition) Error() string        { return c.kind.String() }

func TestOutcome_Passed(t *testing.T) {
	for _, o := range []Outcome{Skipped, Succeeded, ExpectedFailure} {
		assert.True(t, o.Passed(), o.String())
	}
	for _, o := range []Outcome{Failed, UnexpectedSignal, Unreachable} {
		assert.False(t, o.Passed(), o.String())
	}
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestDriver_PassingProgram(t *testing.T) {
	d := newTestDriver(t, nil)

	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g1"))
	assert.True(t, d.RunEnabled())
	assert.Equal(t, Succeeded, d.Run("t1", pass))
	require.NoError(t, d.EndGroup())

	assert.Equal(t, exitcode.Success, d.Final())
	assert.Equal(t, []int{exitcode.Success}, d.codes)
	assert.True(t, d.LatestTestPassed())
	assert.True(t, d.LatestGroupPassed())
	assert.Equal(t, "prog", d.ProgramName())
}

func TestDriver_FailingAssertion(t *testing.T) {
	d := newTestDriver(t, nil)

	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g1"))
	assert.Equal(t, Failed, d.Run("t1", failAssert))
	assert.False(t, d.LatestTestPassed())
	assert.False(t, d.LatestGroupPassed())
	require.NoError(t, d.EndGroup())

	assert.False(t, d.LatestGroupPassed())
	assert.Equal(t, exitcode.Failure, d.Final())
	assert.Equal(t, []int{exitcode.Failure}, d.codes)
}

func TestDriver_ProgramFilterSkips(t *testing.T) {
	d := newTestDriver(t, map[string]string{env.VarFile: "^other$"})

	err := d.Init("prog")
	require.ErrorIs(t, err, ErrProgramSkipped)
	assert.Equal(t, []int{exitcode.Skip}, d.codes)

	assert.ErrorIs(t, d.BeginGroup("g1"), ErrTerminated)
	assert.Equal(t, exitcode.Skip, d.Final())
	assert.Equal(t, []int{exitcode.Skip}, d.codes)
	assert.Equal(t, []string{"skip_program"}, d.events(t))
}

func TestDriver_GroupFilterSkipsBodies(t *testing.T) {
	d := newTestDriver(t, map[string]string{env.VarGroup: "^other$"})
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g1"))
	assert.False(t, d.RunEnabled())

	called := false
	outcome := d.Run("t1", func(*condition.Region) error {
		called = true
		return nil
	})

	assert.Equal(t, Skipped, outcome)
	assert.False(t, called)
	assert.True(t, d.LatestTestPassed())
	require.NoError(t, d.EndGroup())
	assert.Equal(t, exitcode.Success, d.Final())
}

func TestDriver_TestFilter(t *testing.T) {
	d := newTestDriver(t, map[string]string{env.VarName: "^keep"})
	require.NoError(t, d.Init("prog"))

	var ran []string
	body := func(name string) Body {
		return func(*condition.Region) error {
			ran = append(ran, name)
			return nil
		}
	}
	require.NoError(t, d.Group("g", func() {
		d.Run("keep_me", body("keep_me"))
		d.Run("drop_me", body("drop_me"))
		d.Run("also_dropped", failAssert)
	}))

	assert.Equal(t, []string{"keep_me"}, ran)
	assert.Equal(t, exitcode.Success, d.Final())
}

func TestDriver_MalformedFilterIsFatal(t *testing.T) {
	var handled condition.Condition
	d := newTestDriver(t,
		map[string]string{env.VarGroup: "("},
		WithFatalHandler(func(c condition.Condition) { handled = c }),
	)

	err := d.Init("prog")
	require.Error(t, err)
	c, ok := condition.Of(err)
	require.True(t, ok)
	assert.True(t, condition.Is(c, condition.KindRegexCompilationError))
	assert.True(t, condition.Is(c, condition.KindRuntimeError))
	assert.Same(t, c, handled)
	assert.Equal(t, []int{exitcode.HardError}, d.codes)
	assert.Equal(t, []string{"fatal"}, d.events(t))
}

func TestDriver_FatalHandlersRunInReverse(t *testing.T) {
	var order []int
	d := newTestDriver(t, nil,
		WithFatalHandler(func(condition.Condition) { order = append(order, 1) }),
		WithFatalHandler(func(condition.Condition) { panic("handler broke") }),
		WithFatalHandler(func(condition.Condition) { order = append(order, 3) }),
	)
	require.NoError(t, d.Init("prog"))

	d.Fatal(condition.NewChildFailureExitStatus(42, 3))

	assert.Equal(t, []int{3, 1}, order)
	assert.Equal(t, []int{exitcode.HardError}, d.codes)
	assert.False(t, d.AllPassed())
}

func TestDriver_InitIdempotent(t *testing.T) {
	d := newTestDriver(t, nil)
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Init("other"))
	assert.Equal(t, "prog", d.ProgramName())
	assert.Equal(t, []string{"enter_program"}, d.events(t))
}

func TestDriver_Aggregation(t *testing.T) {
	d := newTestDriver(t, nil)
	require.NoError(t, d.Init("prog"))

	require.NoError(t, d.Group("g1", func() {
		d.Run("a", pass)
		d.Run("b", pass)
	}))
	assert.True(t, d.LatestGroupPassed())
	assert.True(t, d.AllPassed())

	require.NoError(t, d.Group("g2", func() {
		d.Run("a", failAssert)
		d.Run("b", pass)
	}))
	assert.False(t, d.LatestGroupPassed())
	assert.True(t, d.LatestTestPassed())
	assert.False(t, d.AllPassed())

	require.NoError(t, d.Group("g3", func() {
		d.Run("a", pass)
	}))
	assert.True(t, d.LatestGroupPassed())
	assert.False(t, d.AllPassed())
	assert.Equal(t, exitcode.Failure, d.Final())
}

func TestDriver_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		body   Body
		want   Outcome
		event  string
		passed bool
	}{
		{"return nil", pass, Succeeded, "successful_test", true},
		{"skip", func(*condition.Region) error {
			condition.Skip()
			return nil
		}, Skipped, "skipped_test", true},
		{"expected failure", func(*condition.Region) error {
			condition.ExpectFailure()
			return nil
		}, ExpectedFailure, "expected_failure", true},
		{"signal", func(*condition.Region) error {
			condition.Raise(condition.Signal1())
			return nil
		}, UnexpectedSignal, "unexpected_signal", false},
		{"unreachable", func(*condition.Region) error {
			condition.NotReached()
			return nil
		}, Unreachable, "unreachable", false},
		{"returned error", func(*condition.Region) error {
			return errors.New("boom")
		}, Failed, "exception_raised", false},
		{"foreign panic", func(*condition.Region) error {
			var m map[string]int
			m["x"] = 1
			return nil
		}, Failed, "exception_raised", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDriver(t, nil)
			require.NoError(t, d.Init("prog"))
			require.NoError(t, d.BeginGroup("g"))

			assert.Equal(t, tt.want, d.Run("t", tt.body))
			assert.Equal(t, tt.passed, d.LatestTestPassed())
			assert.Equal(t, tt.passed, d.AllPassed())

			events := d.events(t)
			assert.Equal(t, tt.event, events[len(events)-1])
		})
	}
}

func TestDriver_HandlersRunBeforeRunReturns(t *testing.T) {
	d := newTestDriver(t, nil)
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g"))

	var trace []string
	d.Run("ok", func(r *condition.Region) error {
		r.OnExit(func() { trace = append(trace, "exit-ok") })
		r.OnError(func() { trace = append(trace, "error-ok") })
		return nil
	})
	d.Run("bad", func(r *condition.Region) error {
		r.OnExit(func() { trace = append(trace, "exit-bad") })
		r.OnError(func() { trace = append(trace, "error-bad") })
		condition.Assert(false, "false")
		return nil
	})

	assert.Equal(t, []string{"exit-ok", "error-bad", "exit-bad"}, trace)
}

func TestDriver_LogProtocol(t *testing.T) {
	d := newTestDriver(t, map[string]string{env.VarGroup: "^g1$"})
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Group("g1", func() {
		d.Run("a", pass)
		d.Run("b", failAssert)
	}))
	require.NoError(t, d.Group("g2", func() {
		d.Run("c", pass)
	}))
	d.Final()

	assert.Equal(t, []string{
		"enter_program",
		"begin_group",
		"successful_test",
		"exception_raised",
		"end_group",
		"skip_group",
		"skipped_test",
		"end_group",
		"exit_program",
	}, d.events(t))
}

func TestDriver_FailureLogCarriesLocation(t *testing.T) {
	d := newTestDriver(t, nil)
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g"))
	d.Run("t", failAssert)

	var last logging.LogEntry
	sc := bufio.NewScanner(bytes.NewReader(d.logs.Bytes()))
	for sc.Scan() {
		require.NoError(t, json.Unmarshal(sc.Bytes(), &last))
	}
	assert.Equal(t, "ERROR", last.Level)
	assert.Equal(t, "prog", last.Fields["program"])
	assert.Equal(t, "g", last.Fields["group"])
	assert.Equal(t, "t", last.Fields["test"])
	assert.Equal(t, "assertion", last.Fields["kind"])
	assert.Equal(t, "1+1 == 3", last.Fields["expr"])
	assert.Contains(t, last.Fields["file"], "driver_test.go")
	assert.Contains(t, last.Fields["func"], "failAssert")
}

func TestDriver_Misuse(t *testing.T) {
	d := newTestDriver(t, nil)
	assert.ErrorIs(t, d.BeginGroup("g"), ErrNotInitialized)

	require.NoError(t, d.Init("prog"))
	assert.ErrorIs(t, d.EndGroup(), ErrNoGroup)

	assert.Equal(t, Failed, d.Run("orphan", pass))
	assert.False(t, d.AllPassed())

	require.NoError(t, d.BeginGroup("g"))
	assert.ErrorIs(t, d.BeginGroup("h"), ErrGroupOpen)
	name, ok := d.CurrentGroup()
	assert.True(t, ok)
	assert.Equal(t, "g", name)
}

func TestDriver_FinalClosesOpenGroup(t *testing.T) {
	d := newTestDriver(t, nil)
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g"))
	d.Run("t", pass)

	assert.Equal(t, exitcode.Success, d.Final())
	_, open := d.CurrentGroup()
	assert.False(t, open)
	assert.Contains(t, d.events(t), "end_group")
}

func TestDriver_FinalBeforeInit(t *testing.T) {
	d := newTestDriver(t, nil)
	assert.Equal(t, exitcode.HardError, d.Final())
	assert.Equal(t, []int{exitcode.HardError}, d.codes)
}

func TestDriver_CurrentTest(t *testing.T) {
	d := newTestDriver(t, nil)
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.BeginGroup("g"))

	var inside string
	d.RunFunc("current", func() { inside, _ = d.CurrentTest() })

	assert.Equal(t, "current", inside)
	_, running := d.CurrentTest()
	assert.False(t, running)
}

func TestDriver_Metrics(t *testing.T) {
	m := metrics.NewPrometheusMetrics()
	d := newTestDriver(t, nil, WithMetrics(m))
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Group("g", func() {
		d.Run("a", pass)
		d.Run("b", failAssert)
	}))
	d.Final()

	n, err := testutil.GatherAndCount(m.Registry(), "cctests_tests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(m.Registry(), "cctests_programs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDriver_Collector(t *testing.T) {
	c := monitor.NewEventCollector()
	d := newTestDriver(t, nil, WithCollector(c))
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Group("g", func() {
		d.Run("a", pass)
		d.Run("b", failAssert)
	}))
	d.Final()

	stats := c.Stats()
	assert.Equal(t, 1, stats.Programs)
	assert.Equal(t, 2, stats.Tests)
	assert.Equal(t, 1, stats.Failed)

	events := c.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "prog", events[0].Program)
	assert.Equal(t, monitor.EventExitProgram, events[len(events)-1].Type)
	assert.Equal(t, exitcode.Failure, events[len(events)-1].ExitCode)
}

func TestDriver_ReportDir(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, map[string]string{env.VarReportDir: dir})
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Group("g", func() {
		d.Run("a", pass)
		d.Run("b", failAssert)
	}))
	d.Final()

	assert.FileExists(t, filepath.Join(dir, "latest.json"))
	assert.FileExists(t, filepath.Join(dir, "latest.md"))

	entries, err := report.LoadHistory(filepath.Join(dir, report.HistoryFile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prog", entries[0].Program)
	assert.Equal(t, exitcode.Failure, entries[0].ExitCode)
	assert.Equal(t, 2, entries[0].Counts.Total)
}

func TestDriver_ReportDirTeesLog(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, map[string]string{env.VarReportDir: dir})
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Group("g", func() {
		d.Run("a", pass)
		d.Run("b", failAssert)
	}))
	d.Final()

	want := []string{
		"enter_program", "begin_group", "successful_test",
		"exception_raised", "end_group", "exit_program",
	}
	assert.Equal(t, want, d.events(t))

	data, err := os.ReadFile(logging.ProgramLogPath(dir, "prog"))
	require.NoError(t, err)
	var fileEvents []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		assert.Equal(t, "prog", entry.Fields["program"])
		if ev, ok := entry.Fields["event"].(string); ok {
			fileEvents = append(fileEvents, ev)
		}
	}
	assert.Equal(t, want, fileEvents)
}

func TestDriver_ReportDirLogUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	d := newTestDriver(t, nil, WithReportDir(blocker))
	require.NoError(t, d.Init("prog"))
	d.Final()

	assert.Contains(t, d.logs.String(), "failed to open program log")
	assert.Equal(t, []int{exitcode.Success}, d.codes)
}

func TestDriver_Recorder(t *testing.T) {
	rec := report.NewRecorder()
	d := newTestDriver(t, nil, WithRecorder(rec))
	require.NoError(t, d.Init("prog"))
	require.NoError(t, d.Group("g", func() {
		d.Run("b", failAssert)
	}))
	d.Final()

	run := rec.Run()
	require.Len(t, run.Groups, 1)
	test := run.Groups[0].Tests[0]
	assert.Equal(t, "failed", test.Outcome)
	assert.Equal(t, "assertion", test.Kind)
	require.NotNil(t, test.Location)
	assert.Contains(t, test.Location.File, "driver_test.go")
}

func TestNew_LoggerFromEnvironment(t *testing.T) {
	d := New(
		WithEnv(env.NewMapLoader(map[string]string{env.VarLogFormat: "json"})),
		WithExit(func(int) {}),
	)
	_, ok := d.logger.(*logging.JSONLogger)
	assert.True(t, ok)

	d = New(
		WithEnv(env.NewMapLoader(map[string]string{env.VarLogFormat: "xml"})),
		WithExit(func(int) {}),
	)
	_, ok = d.logger.(*logging.ConsoleLogger)
	assert.True(t, ok)
}
