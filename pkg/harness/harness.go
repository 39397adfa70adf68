// Package harness runs test programs and interprets their exit
// codes the way an Automake test harness does.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"digital.vasic.cctests/pkg/env"
	"digital.vasic.cctests/pkg/exitcode"
	"digital.vasic.cctests/pkg/logging"
	"digital.vasic.cctests/pkg/metrics"
	"digital.vasic.cctests/pkg/monitor"
)

// Verdicts of a program run.
const (
	VerdictPass  = "PASS"
	VerdictFail  = "FAIL"
	VerdictSkip  = "SKIP"
	VerdictError = "ERROR"
)

// Result is the outcome of one program run.
type Result struct {
	Program  string        `json:"program"`
	Path     string        `json:"path"`
	Verdict  string        `json:"verdict"`
	ExitCode int           `json:"exit_code"`
	Signal   string        `json:"signal,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Code returns the exit code the result contributes to the
// harness: the program's own code, or exitcode.HardError when
// the program could not run to completion.
func (r *Result) Code() int {
	if r.Verdict == VerdictError {
		return exitcode.HardError
	}
	return r.ExitCode
}

// Summary aggregates the results of one harness run.
type Summary struct {
	RunID     string        `json:"run_id"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	ExitCode  int           `json:"exit_code"`
	Results   []*Result     `json:"results"`
}

// Count returns the number of results with the given verdict.
func (s *Summary) Count(verdict string) int {
	n := 0
	for _, r := range s.Results {
		if r.Verdict == verdict {
			n++
		}
	}
	return n
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger used by the harness.
func WithLogger(l logging.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithTimeout sets the default per-program timeout. Zero
// disables it.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.timeout = d
	}
}

// WithParallel sets how many programs run at once.
func WithParallel(n int) Option {
	return func(h *Harness) {
		h.parallel = n
	}
}

// WithSelection sets the selection passed to every program.
// Unset fields are left to the inherited environment.
func WithSelection(sel env.Selection) Option {
	return func(h *Harness) {
		h.selection = sel
	}
}

// WithEnv adds variables to every program's environment.
func WithEnv(vars map[string]string) Option {
	return func(h *Harness) {
		for k, v := range vars {
			h.env[k] = v
		}
	}
}

// WithReportDir asks every program to save its run report in
// dir.
func WithReportDir(dir string) Option {
	return func(h *Harness) {
		h.reportDir = dir
	}
}

// WithMetrics sets the recorder program exit codes are
// reported to.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// WithCollector publishes program start and exit events to c.
func WithCollector(c *monitor.EventCollector) Option {
	return func(h *Harness) {
		h.collector = c
	}
}

// Harness runs test programs.
type Harness struct {
	collector *monitor.EventCollector
	logger    logging.Logger
	timeout   time.Duration
	parallel  int
	selection env.Selection
	env       map[string]string
	reportDir string
	metrics   metrics.Recorder
}

// New creates a Harness with the supplied options.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:   logging.NullLogger{},
		timeout:  10 * time.Minute,
		parallel: 1,
		env:      make(map[string]string),
		metrics:  metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.parallel < 1 {
		h.parallel = 1
	}
	return h
}

// Run runs programs, at most the configured number at a time,
// and returns their results in input order. The summary exit
// code combines the program codes: a hard error dominates a
// failure, which dominates success, and skips are neutral.
func (h *Harness) Run(ctx context.Context, programs []Program) *Summary {
	s := &Summary{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		Results:   make([]*Result, len(programs)),
	}
	h.logger.Info("harness started",
		logging.StringField("run_id", s.RunID),
		logging.IntField("programs", len(programs)),
		logging.IntField("parallel", h.parallel))

	sem := make(chan struct{}, h.parallel)
	var wg sync.WaitGroup
	for i, p := range programs {
		wg.Add(1)
		go func(idx int, p Program) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				s.Results[idx] = &Result{
					Program:  p.DisplayName(),
					Path:     p.Path,
					Verdict:  VerdictError,
					ExitCode: exitcode.HardError,
					Error:    ctx.Err().Error(),
				}
				return
			}
			s.Results[idx] = h.runProgram(ctx, p)
		}(i, p)
	}
	wg.Wait()

	s.ExitCode = exitcode.Success
	for _, r := range s.Results {
		s.ExitCode = exitcode.Combine(s.ExitCode, r.Code())
	}
	s.Duration = time.Since(s.StartTime)

	h.logger.Info("harness finished",
		logging.StringField("run_id", s.RunID),
		logging.IntField("code", s.ExitCode),
		logging.StringField("result", exitcode.Describe(s.ExitCode)))
	return s
}

// environ builds the environment of a program.
func (h *Harness) environ(p Program) []string {
	extra := make(map[string]string, len(h.env)+len(p.Env)+1)
	for k, v := range h.env {
		extra[k] = v
	}
	for k, v := range p.Env {
		extra[k] = v
	}
	if h.reportDir != "" {
		extra[env.VarReportDir] = h.reportDir
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return append(out, h.selection.Environ()...)
}

func (h *Harness) runProgram(ctx context.Context, p Program) *Result {
	r := &Result{Program: p.DisplayName(), Path: p.Path}

	timeout := h.timeout
	if p.Timeout > 0 {
		timeout = p.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	extra := h.environ(p)
	cmd := exec.CommandContext(runCtx, p.Path, p.Args...)
	cmd.WaitDelay = 2 * time.Second
	cmd.Env = append(os.Environ(), extra...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	h.logger.Debug("starting program",
		logging.StringField("program", r.Program),
		logging.LogField("env", env.RedactEnviron(extra)))

	h.emit(monitor.Event{Type: monitor.EventEnterProgram, Program: r.Program})
	start := time.Now()
	err := cmd.Run()
	r.Duration = time.Since(start)
	r.Output = output.String()

	switch {
	case runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		r.Verdict = VerdictError
		r.ExitCode = exitcode.HardError
		r.TimedOut = true
		r.Error = fmt.Sprintf("timed out after %s", timeout)
	case cmd.ProcessState == nil:
		r.Verdict = VerdictError
		r.ExitCode = exitcode.HardError
		r.Error = err.Error()
	default:
		ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
		if ok && ws.Signaled() {
			r.Verdict = VerdictError
			r.ExitCode = cmd.ProcessState.ExitCode()
			r.Signal = ws.Signal().String()
			r.Error = "killed by signal " + r.Signal
			break
		}
		r.ExitCode = cmd.ProcessState.ExitCode()
		r.Verdict = exitcode.Describe(r.ExitCode)
	}

	h.metrics.RecordProgram(r.Program, r.Code())
	h.emit(monitor.Event{
		Type:     monitor.EventExitProgram,
		Program:  r.Program,
		ExitCode: r.Code(),
		Duration: r.Duration,
		Message:  r.Error,
	})
	fields := []logging.Field{
		logging.StringField("program", r.Program),
		logging.StringField("verdict", r.Verdict),
		logging.IntField("exit_code", r.ExitCode),
		logging.StringField("duration", r.Duration.String()),
	}
	switch r.Verdict {
	case VerdictError:
		h.logger.Error("program errored",
			append(fields, logging.StringField("error", r.Error))...)
	case VerdictFail:
		h.logger.Warn("program failed", fields...)
	default:
		h.logger.Info("program finished", fields...)
	}
	return r
}

func (h *Harness) emit(e monitor.Event) {
	if h.collector != nil {
		h.collector.Emit(e)
	}
}
