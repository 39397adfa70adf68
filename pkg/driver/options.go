package driver

import (
	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/env"
	"digital.vasic.cctests/pkg/logging"
	"digital.vasic.cctests/pkg/metrics"
	"digital.vasic.cctests/pkg/monitor"
	"digital.vasic.cctests/pkg/report"
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger lifecycle records are written to.
// Without it the driver builds one from cctests_log_format and
// cctests_verbose.
func WithLogger(logger logging.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithEnv sets the loader the selection variables are read
// from.
func WithEnv(loader env.Loader) Option {
	return func(d *Driver) {
		d.env = loader
	}
}

// WithMetrics sets the recorder test, group and program
// outcomes are reported to.
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithCollector publishes every lifecycle event to c.
func WithCollector(c *monitor.EventCollector) Option {
	return func(d *Driver) {
		d.collector = c
	}
}

// WithRecorder feeds every outcome to r.
func WithRecorder(r *report.Recorder) Option {
	return func(d *Driver) {
		d.recorder = r
	}
}

// WithReportDir sets the directory run reports are saved to
// when the program terminates. It overrides cctests_report_dir.
func WithReportDir(dir string) Option {
	return func(d *Driver) {
		d.reportDir = dir
	}
}

// WithExit replaces the function used to terminate the
// process. Tests use it to observe exit codes.
func WithExit(exit func(code int)) Option {
	return func(d *Driver) {
		d.exit = exit
	}
}

// WithFatalHandler adds a handler run before the driver exits
// with a hard error.
func WithFatalHandler(fn func(c condition.Condition)) Option {
	return func(d *Driver) {
		d.fatalHandlers = append(d.fatalHandlers, fn)
	}
}
