// Package diag implements Hemlock's diagnostic sink: the accumulate-and-
// continue error/warning model. No pass ever short-circuits
// on a diagnostic — registration, validation, and generation each run to
// exhaustion so the user sees every problem in one invocation.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Severity distinguishes errors (which fail the build) from warnings
// (which do not).
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Diagnostic is one reported problem, formatted as
// "path:line: error|warning: message".
type Diagnostic struct {
	File     string
	Line     int
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
}

// Sink accumulates diagnostics across the registration, validation, and
// generation passes of a single compilation unit.
type Sink struct {
	File         string
	Diagnostics  []Diagnostic
	ErrorCount   int
	WarningCount int
}

func NewSink(file string) *Sink {
	return &Sink{File: file}
}

// Errorf records an error-severity diagnostic at line and increments ErrorCount.
func (s *Sink) Errorf(line int, format string, args ...interface{}) {
	s.add(Error, line, fmt.Sprintf(format, args...))
}

// Warnf records a warning-severity diagnostic at line and increments WarningCount.
func (s *Sink) Warnf(line int, format string, args ...interface{}) {
	s.add(Warning, line, fmt.Sprintf(format, args...))
}

func (s *Sink) add(sev Severity, line int, msg string) {
	d := Diagnostic{File: s.File, Line: line, Severity: sev, Message: msg}
	s.Diagnostics = append(s.Diagnostics, d)
	if sev == Error {
		s.ErrorCount++
	} else {
		s.WarningCount++
	}
}

// Failed reports whether the driver should return nonzero: failure iff
// any errors occurred, warnings never fail a build.
func (s *Sink) Failed() bool { return s.ErrorCount > 0 }

// WriteTo writes every diagnostic, one per line, to w. Labels are
// colorized (red for error, yellow for warning) only when w is a
// terminal.
func (s *Sink) WriteTo(w io.Writer) {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = term.IsTerminal(int(f.Fd()))
	}
	errLabel := color.New(color.FgRed).SprintFunc()
	warnLabel := color.New(color.FgYellow).SprintFunc()
	for _, d := range s.Diagnostics {
		label := d.Severity.String()
		if colorize {
			if d.Severity == Error {
				label = errLabel(label)
			} else {
				label = warnLabel(label)
			}
		}
		fmt.Fprintf(w, "%s:%d: %s: %s\n", d.File, d.Line, label, d.Message)
	}
}
