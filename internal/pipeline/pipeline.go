// Package pipeline wires the registry, type checker, escape analyzer, and
// code generator into the single entry point the host driver calls:
// Compile(program) -> (C source text, diagnostics).
package pipeline

import (
	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/codegen"
	"github.com/hemlock-lang/hemlock/internal/cprint"
	"github.com/hemlock-lang/hemlock/internal/diag"
	"github.com/hemlock-lang/hemlock/internal/module"
	"github.com/hemlock-lang/hemlock/internal/typecheck"
)

// Options configures one compilation. All configuration is carried
// explicitly, never through package-level flags.
type Options struct {
	// ModulePrefix namespaces every emitted C symbol so multiple compiled
	// modules can be linked together without name collisions. The main
	// compilation unit uses "_main_"; imported modules get "_mod<n>_".
	ModulePrefix string
	// Modules resolves import paths to compiled modules. Nil when the
	// program imports nothing (resolution is the driver's concern).
	Modules module.Cache
	// WarnImplicitAny enables the optional implicit-any diagnostic.
	WarnImplicitAny bool
	// DisableOptimizations turns off constant folding, constant-condition
	// elimination, concat fusion, unboxing, and the typed fast paths.
	DisableOptimizations bool
}

// Output is the result of a successful-enough compilation: CSource must
// still be checked against Diagnostics.Failed() before being treated as
// usable, since generation proceeds even in the presence of earlier errors
// so the caller sees every problem in one pass.
type Output struct {
	CSource     string
	Diagnostics *diag.Sink
}

// Compile runs the full registration -> inference/validation -> escape
// analysis -> code generation pipeline over prog and returns the emitted C
// source alongside every diagnostic raised along the way. The caller
// decides whether to use CSource based on Diagnostics.Failed().
func Compile(prog *ast.Program, opts Options) *Output {
	sink := diag.NewSink(prog.File)

	checker := typecheck.New(sink, typecheck.Options{WarnImplicitAny: opts.WarnImplicitAny})
	info := checker.Check(prog)

	prefix := opts.ModulePrefix
	if prefix == "" {
		prefix = "_main_"
	}
	decls := codegen.LowerModule(info.Registry, info.ExprTypes, prog, prefix, opts.Modules, !opts.DisableOptimizations)

	return &Output{
		CSource:     cprint.Program(decls),
		Diagnostics: sink,
	}
}
