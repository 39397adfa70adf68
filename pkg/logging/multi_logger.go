package logging

import (
	"errors"
	"path/filepath"
	"strings"
)

// MultiLogger tees every record to several sinks, typically the
// console for the person running the program and a JSON Lines
// file kept next to the run reports.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger creates a logger writing to every non-nil sink.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{sinks: make([]Logger, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, s := range m.sinks {
		fn(s)
	}
}

func (m *MultiLogger) Info(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Info(msg, fields...) })
}

// Success highlights msg on sinks that support it and logs it
// at info level on the others.
func (m *MultiLogger) Success(msg string, fields ...Field) {
	m.each(func(l Logger) {
		if s, ok := l.(interface {
			Success(string, ...Field)
		}); ok {
			s.Success(msg, fields...)
			return
		}
		l.Info(msg, fields...)
	})
}

func (m *MultiLogger) Warn(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Warn(msg, fields...) })
}

func (m *MultiLogger) Error(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Error(msg, fields...) })
}

func (m *MultiLogger) Debug(msg string, fields ...Field) {
	m.each(func(l Logger) { l.Debug(msg, fields...) })
}

// WithFields derives every sink with fields attached.
func (m *MultiLogger) WithFields(fields ...Field) Logger {
	derived := make([]Logger, len(m.sinks))
	for i, s := range m.sinks {
		derived[i] = s.WithFields(fields...)
	}
	return &MultiLogger{sinks: derived}
}

// Close closes every sink and joins their errors.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProgramLogPath returns the JSON Lines log file of program in
// dir. Path separators in the name are replaced so every
// program gets its own file in dir.
func ProgramLogPath(dir, program string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, program)
	if name == "" {
		name = "program"
	}
	return filepath.Join(dir, name+".log")
}
