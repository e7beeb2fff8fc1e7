package escape

import "github.com/hemlock-lang/hemlock/ast"

// TailCallInfo records that every self-recursive call to funcName inside
// its own body occurs in tail position, so the code generator can rewrite
// the function into a loop over its parameters instead of emitting a real
// C call.
type TailCallInfo struct {
	FuncName    string
	ParamNames  []string
	SelfRecurses bool
	// TailCalls holds every tail-position self-call found, so the code
	// generator can lower each one to a parameter reassignment plus a goto
	// to the function's entry label.
	TailCalls []*ast.CallExpr
}

// AnalyzeTailCalls walks body looking for self-recursive calls to funcName
// in tail position (the last statement reachable on a control path, via a
// bare `return f(...)`  through if/else and switch branches). A body
// containing a while, for, try, or defer anywhere is disqualified outright:
// the loop rewrite collapses every virtual call into one C frame, which
// would merge per-call defer stacks and exception scopes that real
// recursion keeps separate. Otherwise, if any call to funcName is found
// OUTSIDE tail position, or if a tail-position call has an argument count
// mismatch, the function is reported as not convertible (SelfRecurses is
// still true, but TailCalls is nil).
func AnalyzeTailCalls(funcName string, paramNames []string, body []ast.Stmt) *TailCallInfo {
	info := &TailCallInfo{FuncName: funcName, ParamNames: paramNames}

	if hasLoopTryOrDefer(body) {
		return info
	}

	if callsSelfNonTail(funcName, body, true) {
		info.SelfRecurses = true
		return info
	}

	tail := collectTailCalls(funcName, len(paramNames), body)
	if tail == nil {
		return info
	}
	info.SelfRecurses = len(tail) > 0
	info.TailCalls = tail
	return info
}

// hasLoopTryOrDefer reports whether any statement in the body, at any
// nesting depth, is a while, for, for-in, try, or defer. Nested function
// literals are separate bodies with their own frames and are not scanned.
func hasLoopTryOrDefer(stmts []ast.Stmt) bool {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.WhileStmt, *ast.ForStmt, *ast.ForInStmt, *ast.TryStmt, *ast.DeferStmt:
			return true
		case *ast.IfStmt:
			if hasLoopTryOrDefer(st.Then) || hasLoopTryOrDefer(st.Else) {
				return true
			}
		case *ast.BlockStmt:
			if hasLoopTryOrDefer(st.Body) {
				return true
			}
		case *ast.SwitchStmt:
			for _, cs := range st.Cases {
				if hasLoopTryOrDefer(cs.Body) {
					return true
				}
			}
		}
	}
	return false
}

// collectTailCalls returns every self-call found in tail position, or nil
// if any such call has the wrong arity (which disqualifies the whole
// function from the loop rewrite, since the generator can't reconcile a
// mismatched parameter list).
func collectTailCalls(funcName string, arity int, stmts []ast.Stmt) []*ast.CallExpr {
	if len(stmts) == 0 {
		return nil
	}
	last := stmts[len(stmts)-1]
	switch st := last.(type) {
	case *ast.ReturnStmt:
		if st.Value == nil {
			return nil
		}
		call, ok := st.Value.(*ast.CallExpr)
		if !ok {
			return nil
		}
		id, ok := call.Func.(*ast.IdentExpr)
		if !ok || id.Name != funcName {
			return nil
		}
		if len(call.Args) != arity {
			return []*ast.CallExpr{nil} // signal disqualification via a nil sentinel, filtered below
		}
		return []*ast.CallExpr{call}
	case *ast.IfStmt:
		var calls []*ast.CallExpr
		calls = append(calls, collectTailCalls(funcName, arity, st.Then)...)
		if st.Else != nil {
			calls = append(calls, collectTailCalls(funcName, arity, st.Else)...)
		}
		return dedupNilSentinel(calls)
	case *ast.SwitchStmt:
		var calls []*ast.CallExpr
		for _, cs := range st.Cases {
			calls = append(calls, collectTailCalls(funcName, arity, cs.Body)...)
		}
		return dedupNilSentinel(calls)
	case *ast.BlockStmt:
		return collectTailCalls(funcName, arity, st.Body)
	}
	return nil
}

// dedupNilSentinel propagates a disqualifying nil sentinel (arity
// mismatch) up as a whole-function nil, otherwise strips stray nils.
func dedupNilSentinel(calls []*ast.CallExpr) []*ast.CallExpr {
	for _, c := range calls {
		if c == nil {
			return nil
		}
	}
	return calls
}

// callsSelfNonTail reports whether funcName is called anywhere in stmts
// OTHER than the tail position handled by collectTailCalls. atTail marks
// whether the current statement list's last entry is itself in tail
// position (and so should be skipped here, since collectTailCalls handles it).
func callsSelfNonTail(funcName string, stmts []ast.Stmt, atTail bool) bool {
	for i, s := range stmts {
		isTailStmt := atTail && i == len(stmts)-1
		if exprCallsSelfNonTail(funcName, s, isTailStmt) {
			return true
		}
	}
	return false
}

func exprCallsSelfNonTail(funcName string, s ast.Stmt, isTailStmt bool) bool {
	switch st := s.(type) {
	case *ast.ReturnStmt:
		if st.Value == nil {
			return false
		}
		if isTailStmt {
			if call, ok := st.Value.(*ast.CallExpr); ok {
				if id, ok := call.Func.(*ast.IdentExpr); ok && id.Name == funcName {
					return exprContainsSelfCall(funcName, call.Args)
				}
			}
		}
		return containsSelfCall(funcName, st.Value)
	case *ast.ExprStmt:
		return containsSelfCall(funcName, st.X)
	case *ast.LetStmt:
		return st.Value != nil && containsSelfCall(funcName, st.Value)
	case *ast.ConstStmt:
		return containsSelfCall(funcName, st.Value)
	case *ast.IfStmt:
		if containsSelfCall(funcName, st.Cond) {
			return true
		}
		return callsSelfNonTail(funcName, st.Then, isTailStmt) || callsSelfNonTail(funcName, st.Else, isTailStmt)
	case *ast.BlockStmt:
		return callsSelfNonTail(funcName, st.Body, isTailStmt)
	case *ast.SwitchStmt:
		if containsSelfCall(funcName, st.Subject) {
			return true
		}
		for _, cs := range st.Cases {
			if callsSelfNonTail(funcName, cs.Body, isTailStmt) {
				return true
			}
		}
		return false
	case *ast.ThrowStmt:
		return containsSelfCall(funcName, st.Value)
	}
	// while/for/try/defer never reach here: hasLoopTryOrDefer rejected the
	// whole body before this walk runs.
	return false
}

func exprContainsSelfCall(funcName string, exprs []ast.Expr) bool {
	for _, e := range exprs {
		if containsSelfCall(funcName, e) {
			return true
		}
	}
	return false
}

func containsSelfCall(funcName string, e ast.Expr) bool {
	found := false
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if found || e == nil {
			return
		}
		if call, ok := e.(*ast.CallExpr); ok {
			if id, ok := call.Func.(*ast.IdentExpr); ok && id.Name == funcName {
				found = true
				return
			}
		}
		switch x := e.(type) {
		case *ast.CallExpr:
			walk(x.Func)
			for _, a := range x.Args {
				walk(a)
			}
		case *ast.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *ast.UnaryExpr:
			walk(x.Operand)
		case *ast.TernaryExpr:
			walk(x.Cond)
			walk(x.Then)
			walk(x.Else)
		case *ast.AssignExpr:
			walk(x.Value)
		case *ast.IndexExpr:
			walk(x.Object)
			walk(x.Index)
		case *ast.GetPropertyExpr:
			walk(x.Object)
		case *ast.ArrayLiteralExpr:
			for _, el := range x.Elements {
				walk(el)
			}
		case *ast.ObjectLiteralExpr:
			for _, f := range x.Fields {
				walk(f.Value)
			}
		case *ast.FunctionExpr:
			// A reference to funcName inside a nested closure is a capture,
			// not a direct recursive call site of the enclosing function.
		case *ast.IncDecExpr:
			walk(x.Operand)
		}
	}
	walk(e)
	return found
}
