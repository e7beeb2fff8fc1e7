package diag_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hemlock-lang/hemlock/internal/diag"
)

func TestErrorfIncrementsErrorCountAndFails(t *testing.T) {
	s := diag.NewSink("main.hml")
	s.Errorf(10, "cannot assign to constant %q", "x")
	assert.True(t, s.Failed())
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 0, s.WarningCount)
	assert.Equal(t, diag.Error, s.Diagnostics[0].Severity)
}

func TestWarnfDoesNotFail(t *testing.T) {
	s := diag.NewSink("main.hml")
	s.Warnf(3, "missing return on a path")
	assert.False(t, s.Failed())
	assert.Equal(t, 1, s.WarningCount)
}

func TestWriteToNonTerminalSkipsColor(t *testing.T) {
	s := diag.NewSink("main.hml")
	s.Errorf(7, "type mismatch")
	s.Warnf(8, "unused variable")

	var buf bytes.Buffer
	s.WriteTo(&buf)
	out := buf.String()

	assert.Contains(t, out, "main.hml:7: error: type mismatch")
	assert.Contains(t, out, "main.hml:8: warning: unused variable")
	assert.False(t, strings.Contains(out, "\x1b["), "expected no ANSI escape codes when writing to a non-terminal: %q", out)
}

func TestDiagnosticStringFormat(t *testing.T) {
	d := diag.Diagnostic{File: "a.hml", Line: 4, Severity: diag.Error, Message: "boom"}
	assert.Equal(t, "a.hml:4: error: boom", d.String())
}

func TestAccumulatesAcrossMultiplePasses(t *testing.T) {
	s := diag.NewSink("main.hml")
	s.Errorf(1, "first pass error")
	s.Errorf(2, "second pass error")
	s.Warnf(3, "third pass warning")
	assert.Len(t, s.Diagnostics, 3)
	assert.Equal(t, 2, s.ErrorCount)
	assert.Equal(t, 1, s.WarningCount)
	assert.True(t, s.Failed())
}
