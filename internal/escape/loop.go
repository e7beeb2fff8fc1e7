package escape

import (
	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// LoopFastPath describes a classic-for loop whose counter has been proven
// unboxable and whose condition/post steps are simple enough for the code
// generator to lower straight to a native C `for` loop instead of boxed
// HmlValue arithmetic on every iteration.
type LoopFastPath struct {
	Counter   string
	Native    types.Kind
	Ascending bool // true for i++/++i/i = i + 1, false for i--/--i/i = i - 1
	Step      int64
}

// ClassifyForLoop reports whether f qualifies for the unboxed-loop fast
// path given the unbox table produced by Analyze. The condition must be a
// simple comparison of the counter against a loop-invariant bound, and the
// post-step must be an increment or decrement by one.
func ClassifyForLoop(f *ast.ForStmt, table *types.UnboxTable) (LoopFastPath, bool) {
	let, ok := f.Init.(*ast.LetStmt)
	if !ok {
		return LoopFastPath{}, false
	}
	info, ok := table.Lookup(let.Name)
	if !ok || info.Kind != types.LoopCounter {
		return LoopFastPath{}, false
	}
	if !simpleCounterCondition(f.Cond, let.Name) {
		return LoopFastPath{}, false
	}
	step, ascending, ok := simpleCounterStep(f.Post, let.Name)
	if !ok {
		return LoopFastPath{}, false
	}
	return LoopFastPath{Counter: let.Name, Native: info.Native, Ascending: ascending, Step: step}, true
}

// simpleCounterCondition reports whether cond is `counter OP bound` for a
// comparison operator and a bound expression that does not itself reference
// counter (so the bound is safe to hoist as a loop-invariant evaluation).
func simpleCounterCondition(cond ast.Expr, counter string) bool {
	bin, ok := cond.(*ast.BinaryExpr)
	if !ok {
		return false
	}
	switch bin.Op {
	case "<", "<=", ">", ">=", "!=":
	default:
		return false
	}
	left, ok := bin.Left.(*ast.IdentExpr)
	if !ok || left.Name != counter {
		return false
	}
	switch r := bin.Right.(type) {
	case *ast.NumberExpr:
		return !r.IsFloat
	case *ast.IdentExpr:
		return r.Name != counter
	case *ast.GetPropertyExpr:
		return !references(r, counter)
	}
	return false
}

// simpleCounterStep recognizes counter++/counter-- (prefix or postfix) and
// counter = counter + 1 / counter = counter - 1, returning the step's
// magnitude (always 1) and direction. A step by any other literal is not
// recognized, so such a loop keeps the boxed lowering.
func simpleCounterStep(post ast.Stmt, counter string) (int64, bool, bool) {
	es, ok := post.(*ast.ExprStmt)
	if !ok {
		return 0, false, false
	}
	switch x := es.X.(type) {
	case *ast.IncDecExpr:
		id, ok := x.Operand.(*ast.IdentExpr)
		if !ok || id.Name != counter {
			return 0, false, false
		}
		return 1, x.Op == "++", true
	case *ast.AssignExpr:
		id, ok := x.Target.(*ast.IdentExpr)
		if !ok || id.Name != counter {
			return 0, false, false
		}
		bin, ok := x.Value.(*ast.BinaryExpr)
		if !ok {
			return 0, false, false
		}
		left, ok := bin.Left.(*ast.IdentExpr)
		if !ok || left.Name != counter {
			return 0, false, false
		}
		lit, ok := bin.Right.(*ast.NumberExpr)
		if !ok || lit.IsFloat || lit.Literal != "1" {
			return 0, false, false
		}
		switch bin.Op {
		case "+":
			return 1, true, true
		case "-":
			return 1, false, true
		}
	}
	return 0, false, false
}

func references(e ast.Expr, name string) bool {
	found := false
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if found || e == nil {
			return
		}
		switch x := e.(type) {
		case *ast.IdentExpr:
			if x.Name == name {
				found = true
			}
		case *ast.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *ast.UnaryExpr:
			walk(x.Operand)
		case *ast.CallExpr:
			walk(x.Func)
			for _, a := range x.Args {
				walk(a)
			}
		case *ast.IndexExpr:
			walk(x.Object)
			walk(x.Index)
		case *ast.GetPropertyExpr:
			walk(x.Object)
		}
	}
	walk(e)
	return found
}
