// Package driver sequences a test program: program entry,
// group brackets, protected test runs and the final exit code.
//
// A Driver is used from a single goroutine. Every lifecycle
// transition is logged as exactly one record carrying an
// "event" field.
package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/env"
	"digital.vasic.cctests/pkg/exitcode"
	"digital.vasic.cctests/pkg/filter"
	"digital.vasic.cctests/pkg/logging"
	"digital.vasic.cctests/pkg/metrics"
	"digital.vasic.cctests/pkg/monitor"
	"digital.vasic.cctests/pkg/report"
)

// Sentinel errors returned when the driver is misused or the
// program terminates early.
var (
	// ErrProgramSkipped is returned by Init when the program
	// filter rejects the program. The exit function has been
	// called with exitcode.Skip.
	ErrProgramSkipped = errors.New("program skipped by selection")

	ErrNotInitialized = errors.New("driver not initialized")
	ErrGroupOpen      = errors.New("group already open")
	ErrNoGroup        = errors.New("no group open")
	ErrTerminated     = errors.New("program already terminated")
)

// Body is a test body. It runs inside a protected region; a
// nil return is a success.
type Body func(r *condition.Region) error

type groupState struct {
	name    string
	passed  bool
	enabled bool
	started time.Time
}

// successLogger is implemented by loggers that highlight
// positive outcomes.
type successLogger interface {
	Success(msg string, fields ...logging.Field)
}

// Driver holds the state of one test program run.
type Driver struct {
	logger        logging.Logger
	env           env.Loader
	metrics       metrics.Recorder
	collector     *monitor.EventCollector
	recorder      *report.Recorder
	reportDir     string
	logFile       *logging.JSONLogger
	exit          func(code int)
	fatalHandlers []func(c condition.Condition)

	initialized bool
	terminated  bool
	exitCode    int
	program     string
	allPassed   bool
	filters     *filter.Set
	group       *groupState
	test        string

	latestGroupPassed bool
	latestTestPassed  bool
}

// New creates a driver configured by opts.
func New(opts ...Option) *Driver {
	d := &Driver{
		metrics: metrics.NoopMetrics{},
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.env == nil {
		d.env = env.NewLoader()
	}
	if d.logger == nil {
		l, err := logging.New(
			d.env.Get(env.VarLogFormat),
			env.GetBool(d.env, env.VarVerbose),
			nil,
		)
		if err != nil {
			l = logging.NewConsoleLoggerTo(os.Stderr, false)
			l.Warn("falling back to console logging",
				logging.ErrorField(err))
		}
		d.logger = l
	}
	return d
}

// Init enters the program. It compiles the selection filters
// and checks the program filter against program. Calling Init
// again is a no-op. With a report directory configured, every
// record is also written as JSON Lines to the program's log
// file there.
//
// A malformed selection pattern is fatal: the fatal handlers
// run, the process exits with exitcode.HardError and the
// compilation condition is returned. A program rejected by the
// program filter exits with exitcode.Skip and ErrProgramSkipped
// is returned.
func (d *Driver) Init(program string) error {
	if d.initialized {
		return nil
	}
	d.initialized = true
	d.program = program
	d.allPassed = true

	if d.reportDir == "" {
		d.reportDir = d.env.Get(env.VarReportDir)
	}
	if d.reportDir != "" {
		d.teeLog(logging.ProgramLogPath(d.reportDir, program))
	}
	d.logger = d.logger.WithFields(logging.StringField("program", program))
	if d.recorder == nil && d.reportDir != "" {
		d.recorder = report.NewRecorder()
	}

	set, err := filter.CompileSet(env.ReadSelection(d.env))
	if err != nil {
		c, ok := condition.Of(err)
		if !ok {
			c = condition.Wrap(err)
		}
		d.Fatal(c)
		return c
	}
	d.filters = set

	if !set.Program.Matches(program) {
		d.logger.Info("skip program",
			logging.StringField("event", string(monitor.EventSkipProgram)),
			logging.StringField("filter", set.Program.String()))
		d.emit(monitor.Event{Type: monitor.EventSkipProgram})
		if d.recorder != nil {
			d.recorder.Start(program, true)
		}
		d.terminate(exitcode.Skip)
		return ErrProgramSkipped
	}

	d.logger.Info("enter program",
		logging.StringField("event", string(monitor.EventEnterProgram)))
	d.emit(monitor.Event{Type: monitor.EventEnterProgram})
	if d.recorder != nil {
		d.recorder.Start(program, false)
	}
	return nil
}

// BeginGroup opens a group bracket. Tests in the group run
// only when the group filter matches name.
func (d *Driver) BeginGroup(name string) error {
	if d.terminated {
		return ErrTerminated
	}
	if !d.initialized || d.filters == nil {
		return ErrNotInitialized
	}
	if d.group != nil {
		return fmt.Errorf("%w: %s", ErrGroupOpen, d.group.name)
	}

	d.group = &groupState{
		name:    name,
		passed:  true,
		enabled: d.filters.Group.Matches(name),
		started: time.Now(),
	}
	d.latestGroupPassed = true

	if d.group.enabled {
		d.logger.Info("begin group",
			logging.StringField("event", string(monitor.EventBeginGroup)),
			logging.StringField("group", name))
		d.emit(monitor.Event{Type: monitor.EventBeginGroup, Group: name})
	} else {
		d.logger.Info("skip group",
			logging.StringField("event", string(monitor.EventSkipGroup)),
			logging.StringField("group", name))
		d.emit(monitor.Event{Type: monitor.EventSkipGroup, Group: name})
	}
	if d.recorder != nil {
		d.recorder.BeginGroup(name, d.group.enabled)
	}
	return nil
}

// EndGroup closes the open group bracket.
func (d *Driver) EndGroup() error {
	if d.group == nil {
		return ErrNoGroup
	}
	g := d.group
	d.group = nil
	d.latestGroupPassed = g.passed

	d.logger.Info("end group",
		logging.StringField("event", string(monitor.EventEndGroup)),
		logging.StringField("group", g.name),
		logging.BoolField("passed", g.passed))
	d.emit(monitor.Event{
		Type:     monitor.EventEndGroup,
		Group:    g.name,
		Duration: time.Since(g.started),
	})
	d.metrics.RecordGroup(d.program, g.name, g.passed, !g.enabled)
	if d.recorder != nil {
		d.recorder.EndGroup()
	}
	return nil
}

// Group runs fn inside a group bracket named name.
func (d *Driver) Group(name string, fn func()) error {
	if err := d.BeginGroup(name); err != nil {
		return err
	}
	fn()
	return d.EndGroup()
}

// Run runs one test. The body is skipped without being called
// when the enclosing group is disabled or the test filter does
// not match name; otherwise it runs in a protected region and
// the condition it ends with is classified. A failing outcome
// clears the group and program pass flags. Calling Run outside
// a group is reported as a failure.
func (d *Driver) Run(name string, body Body) Outcome {
	if d.group == nil {
		d.logger.Error("test run outside a group",
			logging.StringField("event", string(monitor.EventExceptionRaised)),
			logging.StringField("test", name),
			logging.ErrorField(ErrNoGroup))
		d.allPassed = false
		d.latestTestPassed = false
		d.emit(monitor.Event{
			Type:    monitor.EventExceptionRaised,
			Test:    name,
			Message: ErrNoGroup.Error(),
		})
		return Failed
	}

	d.test = name
	defer func() { d.test = "" }()

	if !d.group.enabled || !d.filters.Test.Matches(name) {
		d.record(name, Skipped, nil, 0)
		return Skipped
	}

	start := time.Now()
	c := condition.Protect(body)
	outcome := Classify(c)
	d.record(name, outcome, c, time.Since(start))
	return outcome
}

// RunFunc runs fn as a test body that cannot return an error.
func (d *Driver) RunFunc(name string, fn func()) Outcome {
	return d.Run(name, func(*condition.Region) error {
		fn()
		return nil
	})
}

func (d *Driver) record(
	name string,
	outcome Outcome,
	c condition.Condition,
	elapsed time.Duration,
) {
	passed := outcome.Passed()
	d.latestTestPassed = passed
	if !passed {
		d.group.passed = false
		d.latestGroupPassed = false
		d.allPassed = false
	}

	fields := []logging.Field{
		logging.StringField("event", string(outcome.Event())),
		logging.StringField("group", d.group.name),
		logging.StringField("test", name),
	}
	var message string
	if !passed {
		fields = append(fields, logging.ConditionFields(c)...)
		if c != nil {
			message = c.Error()
		}
	}

	switch outcome {
	case Skipped:
		d.logger.Info("skipped test", fields...)
	case Succeeded:
		if s, ok := d.logger.(successLogger); ok {
			s.Success("successful test", fields...)
		} else {
			d.logger.Info("successful test", fields...)
		}
	case ExpectedFailure:
		d.logger.Info("expected failure", fields...)
	case UnexpectedSignal:
		d.logger.Error("unexpected signal", fields...)
	case Unreachable:
		d.logger.Error("unreachable code reached", fields...)
	default:
		d.logger.Error("exception raised: "+message, fields...)
	}

	d.metrics.RecordTest(d.program, d.group.name, outcome.String(), elapsed)
	d.emit(monitor.Event{
		Type:     outcome.Event(),
		Group:    d.group.name,
		Test:     name,
		Kind:     kindName(c),
		Message:  message,
		Duration: elapsed,
	})
	if d.recorder != nil {
		rec := report.TestRecord{
			Name:     name,
			Outcome:  outcome.String(),
			Passed:   passed,
			Kind:     kindName(c),
			Message:  message,
			Duration: elapsed,
		}
		if l, ok := c.(condition.Located); ok && !passed {
			loc := l.Where()
			rec.Location = &loc
		}
		d.recorder.AddTest(rec)
	}
}

// Final leaves the program and exits with exitcode.Success if
// every test passed and exitcode.Failure otherwise. A group
// still open is closed first. The exit code is also returned
// for exit functions that return; once the program has
// terminated, Final only returns the code it exited with.
func (d *Driver) Final() int {
	if d.terminated {
		return d.exitCode
	}
	if !d.initialized {
		d.logger.Error("final called before init",
			logging.StringField("event", string(monitor.EventFatal)),
			logging.ErrorField(ErrNotInitialized))
		d.terminate(exitcode.HardError)
		return exitcode.HardError
	}
	if d.group != nil {
		d.logger.Warn("group left open at exit",
			logging.StringField("group", d.group.name))
		_ = d.EndGroup()
	}

	code := exitcode.Success
	if !d.allPassed {
		code = exitcode.Failure
	}
	d.logger.Info("exit program",
		logging.StringField("event", string(monitor.EventExitProgram)),
		logging.IntField("code", code),
		logging.StringField("result", exitcode.Describe(code)))
	d.emit(monitor.Event{Type: monitor.EventExitProgram, ExitCode: code})
	d.terminate(code)
	return code
}

// Fatal terminates the program with exitcode.HardError after
// running the fatal handlers. It is used for conditions raised
// outside any test, such as a failed child process during
// setup.
func (d *Driver) Fatal(c condition.Condition) {
	for i := len(d.fatalHandlers) - 1; i >= 0; i-- {
		fn := d.fatalHandlers[i]
		if hc := condition.Protect(func(*condition.Region) error {
			fn(c)
			return nil
		}); !condition.Is(hc, condition.KindSuccess) {
			d.logger.Warn("fatal handler failed", logging.ErrorField(hc))
		}
	}

	fields := append([]logging.Field{
		logging.StringField("event", string(monitor.EventFatal)),
		logging.ErrorField(c),
	}, logging.ConditionFields(c)...)
	d.logger.Error("fatal error", fields...)
	d.emit(monitor.Event{
		Type:    monitor.EventFatal,
		Kind:    kindName(c),
		Message: errorText(c),
	})
	d.allPassed = false
	d.terminate(exitcode.HardError)
}

func (d *Driver) terminate(code int) {
	if d.terminated {
		return
	}
	d.terminated = true
	d.exitCode = code
	d.metrics.RecordProgram(d.program, code)
	d.saveReport(code)
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
	d.exit(code)
}

// teeLog adds a JSON Lines copy of every record at path. A file
// that cannot be opened leaves logging on the original logger.
func (d *Driver) teeLog(path string) {
	level := logging.LevelInfo
	verbose := env.GetBool(d.env, env.VarVerbose)
	if verbose {
		level = logging.LevelDebug
	}
	file, err := logging.NewJSONLogger(logging.LoggerConfig{
		OutputPath: path,
		Level:      level,
		Verbose:    verbose,
	})
	if err != nil {
		d.logger.Warn("failed to open program log", logging.ErrorField(err))
		return
	}
	d.logFile = file
	d.logger = logging.NewMultiLogger(d.logger, file)
}

func (d *Driver) saveReport(code int) {
	if d.recorder == nil {
		return
	}
	run := d.recorder.Finish(code)
	if d.reportDir == "" {
		return
	}
	paths, err := report.Save(run, d.reportDir,
		report.NewJSONReporter(true), report.NewMarkdownReporter())
	if err != nil {
		d.logger.Warn("failed to save report", logging.ErrorField(err))
		return
	}
	history := filepath.Join(d.reportDir, report.HistoryFile)
	if err := report.AppendToHistory(history, run); err != nil {
		d.logger.Warn("failed to append run history", logging.ErrorField(err))
	}
	d.logger.Debug("report saved",
		logging.StringField("run_id", run.ID),
		logging.LogField("paths", paths))
}

func (d *Driver) emit(e monitor.Event) {
	if d.collector == nil {
		return
	}
	e.Program = d.program
	d.collector.Emit(e)
}

// ProgramName returns the name given to Init.
func (d *Driver) ProgramName() string { return d.program }

// AllPassed reports whether every test run so far passed.
func (d *Driver) AllPassed() bool { return d.allPassed }

// RunEnabled reports whether tests in the open group execute.
func (d *Driver) RunEnabled() bool {
	return d.group != nil && d.group.enabled
}

// CurrentGroup returns the name of the open group.
func (d *Driver) CurrentGroup() (string, bool) {
	if d.group == nil {
		return "", false
	}
	return d.group.name, true
}

// CurrentTest returns the name of the running test.
func (d *Driver) CurrentTest() (string, bool) {
	return d.test, d.test != ""
}

// LatestGroupPassed returns the pass flag of the open group,
// or of the last closed group when none is open.
func (d *Driver) LatestGroupPassed() bool { return d.latestGroupPassed }

// LatestTestPassed returns the pass flag of the last test run.
func (d *Driver) LatestTestPassed() bool { return d.latestTestPassed }

func kindName(c condition.Condition) string {
	if c == nil {
		return ""
	}
	return c.Kind().String()
}

func errorText(c condition.Condition) string {
	if c == nil {
		return ""
	}
	return c.Error()
}
