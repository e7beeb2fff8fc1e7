// Package typecheck implements Hemlock's two-pass type checker: pass 1
// registers every top-level signature/shape (register.go), pass 2 infers a
// CheckedType for every expression (infer.go) and validates assignments,
// calls, operators, and built-in method shapes (infer.go, assign.go,
// builtins.go).
package typecheck

import (
	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/diag"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// Info is the output of the checker: a CheckedType for every expression
// node plus the populated declaration registry, handed to the escape
// analyzer and code generator.
type Info struct {
	ExprTypes map[ast.Expr]types.CheckedType
	Registry  *types.Registry
}

// TypeOf returns the inferred type of e, or Any if e was never visited
// (e.g. a node only reachable on an error path).
func (ti *Info) TypeOf(e ast.Expr) types.CheckedType {
	if t, ok := ti.ExprTypes[e]; ok {
		return t
	}
	return types.Simple(types.Any)
}

// Options configures optional, opt-in diagnostics.
type Options struct {
	// WarnImplicitAny enables the "identifier 'x' has unknown type" warning
	// for identifiers that resolve to Any only because they
	// were never declared in scope.
	WarnImplicitAny bool
}

// Checker runs both passes over a Program and produces an Info plus
// accumulated diagnostics.
type Checker struct {
	opts Options
	sink *diag.Sink
	reg  *types.Registry
	env  *types.Env
	info *Info

	// currentFunc tracks the signature being checked, for return-type
	// validation and bare-return-vs-missing-return tracking.
	currentFunc *types.FuncSig
	sawReturn   bool
}

// New creates a Checker that reports into sink using opts.
func New(sink *diag.Sink, opts Options) *Checker {
	return &Checker{
		opts: opts,
		sink: sink,
		reg:  types.NewRegistry(),
		env:  types.NewEnv(),
		info: &Info{ExprTypes: make(map[ast.Expr]types.CheckedType)},
	}
}

// Check runs pass 1 (registration) then pass 2 (inference + validation)
// over prog and returns the resulting Info. Diagnostics accumulate in the
// Sink passed to New; Check itself never returns an error — callers check
// sink.Failed() after the call.
func (c *Checker) Check(prog *ast.Program) *Info {
	c.registerPass(prog)
	c.info.Registry = c.reg

	for _, s := range prog.Statements {
		c.checkStmt(s)
	}
	return c.info
}
