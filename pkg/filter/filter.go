// Package filter implements the selection filters that decide
// which test programs, groups and tests are executed.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"regexp/syntax"

	"digital.vasic.cctests/pkg/condition"
	"digital.vasic.cctests/pkg/env"
)

// MatchAll is the pattern used when no pattern is configured.
const MatchAll = ".*"

// Filter is an immutable compiled selection pattern.
type Filter struct {
	source string
	re     *regexp.Regexp
}

// Compile compiles source into a Filter. A nil or empty source
// selects MatchAll. A malformed pattern yields a
// *condition.RegexCompilationError.
func Compile(source *string) (*Filter, error) {
	pattern := MatchAll
	if source != nil && *source != "" {
		pattern = *source
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, compilationError(err, pattern)
	}
	return &Filter{source: pattern, re: re}, nil
}

// MustCompile is like Compile but panics on a malformed
// pattern.
func MustCompile(pattern string) *Filter {
	f, err := Compile(&pattern)
	if err != nil {
		panic(err)
	}
	return f
}

func compilationError(err error, pattern string) error {
	var se *syntax.Error
	if errors.As(err, &se) {
		return condition.NewRegexCompilationError(se.Code, se.Expr)
	}
	return condition.NewRegexCompilationError(
		syntax.ErrInternalError, pattern,
	)
}

// Matches reports whether name contains a match of the
// pattern. Matching is unanchored; anchor the pattern to
// select whole names.
func (f *Filter) Matches(name string) bool {
	return f.re.MatchString(name)
}

// String returns the pattern the filter was compiled from.
func (f *Filter) String() string { return f.source }

// Set groups the three independent selection filters.
type Set struct {
	Program *Filter
	Group   *Filter
	Test    *Filter
}

// CompileSet compiles the three filters of sel. The first
// malformed pattern aborts compilation.
func CompileSet(sel env.Selection) (*Set, error) {
	program, err := Compile(sel.File)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.VarFile, err)
	}
	group, err := Compile(sel.Group)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.VarGroup, err)
	}
	test, err := Compile(sel.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.VarName, err)
	}
	return &Set{Program: program, Group: group, Test: test}, nil
}
