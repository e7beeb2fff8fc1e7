// Package escape implements the unboxing promotion analysis: which local
// scalar variables can live in a native C slot instead of a heap-allocated,
// reference-counted HmlValue. A variable is only a candidate if it matches
// one of three syntactic patterns (typed-let, for-loop counter, while-loop
// accumulator) and is never disqualified by one of five escape hazards
// (captured by a closure, passed as a call argument, stored into a
// container, returned, or used as the container of an index expression).
package escape

import (
	"math"
	"strconv"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// Analyze walks one function body and returns the table of variables safe
// to unbox, keyed by name.
func Analyze(body []ast.Stmt, declared map[string]types.CheckedType) *types.UnboxTable {
	a := &analyzer{
		declared: declared,
		escaped:  make(map[string]bool),
		native:   make(map[string]types.Kind),
	}
	a.collectCandidates(body)
	a.walkStmts(body, false)

	table := types.NewUnboxTable()
	for name, kind := range a.candidates {
		if a.escaped[name] {
			continue
		}
		native, ok := a.native[name]
		if !ok {
			continue
		}
		table.Mark(name, native, kind)
	}
	return table
}

type analyzer struct {
	declared   map[string]types.CheckedType
	candidates map[string]types.UnboxKind
	escaped    map[string]bool
	native     map[string]types.Kind

	// locals tracks which names are declared within the function currently
	// being walked, so a reference to a name NOT in this set inside a
	// nested FunctionExpr is a free variable -> capture.
	locals map[string]bool
}

func (a *analyzer) candidate(name string, native types.Kind, kind types.UnboxKind) {
	if a.candidates == nil {
		a.candidates = make(map[string]types.UnboxKind)
	}
	a.candidates[name] = kind
	a.native[name] = native
}

// collectCandidates finds the three promotion shapes of the unboxing
// analysis: an explicitly-typed `let` with a native scalar type, a
// classic-for loop's integer counter, and a while-loop's numeric
// accumulator (a variable reassigned by simple arithmetic on every
// iteration and never reassigned to a non-numeric value).
func (a *analyzer) collectCandidates(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.LetStmt:
			if st.Type != nil && st.Value != nil && unboxableExpr(st.Value) {
				if t, ok := a.declared[st.Name]; ok && t.IsUnboxable() {
					a.candidate(st.Name, t.Kind, types.TypedVar)
				}
			}
		case *ast.ForStmt:
			a.collectForCounter(st)
			a.collectCandidates(st.Body)
		case *ast.WhileStmt:
			a.collectAccumulator(st)
			a.collectCandidates(st.Body)
		case *ast.IfStmt:
			a.collectCandidates(st.Then)
			a.collectCandidates(st.Else)
		case *ast.BlockStmt:
			a.collectCandidates(st.Body)
		case *ast.ForInStmt:
			a.collectCandidates(st.Body)
		case *ast.TryStmt:
			a.collectCandidates(st.Body)
			if st.Catch != nil {
				a.collectCandidates(st.Catch.Body)
			}
			a.collectCandidates(st.Finally)
		case *ast.SwitchStmt:
			for _, cs := range st.Cases {
				a.collectCandidates(cs.Body)
			}
		}
	}
}

// collectForCounter recognizes `for (let i = 0; i < n; i++) { ... }` and
// marks i as a LoopCounter candidate. An annotated counter uses its
// declared integer kind; an unannotated one initialized from an integer
// literal defaults to I32, widening to I64 when the initial value exceeds
// the I32 range.
func (a *analyzer) collectForCounter(f *ast.ForStmt) {
	let, ok := f.Init.(*ast.LetStmt)
	if !ok {
		return
	}
	if t, ok := a.declared[let.Name]; ok && t.IsUnboxable() && t.IsInteger() {
		a.candidate(let.Name, t.Kind, types.LoopCounter)
		return
	}
	lit, ok := let.Value.(*ast.NumberExpr)
	if !ok || lit.IsFloat {
		return
	}
	v, err := strconv.ParseInt(lit.Literal, 10, 64)
	if err != nil {
		return
	}
	kind := types.I32
	if v > math.MaxInt32 || v < math.MinInt32 {
		kind = types.I64
	}
	a.candidate(let.Name, kind, types.LoopCounter)
}

// unboxableExpr reports whether e has a shape a native slot can hold
// directly: scalar literals, identifiers, and unary/binary/ternary
// arithmetic over such operands. Calls, container and property reads,
// string/array/object literals, and closures all produce values that need
// a boxed representation.
func unboxableExpr(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.NumberExpr, *ast.BoolExpr, *ast.RuneExpr, *ast.IdentExpr:
		return true
	case *ast.UnaryExpr:
		return unboxableExpr(x.Operand)
	case *ast.BinaryExpr:
		switch x.Op {
		case "+", "-", "*", "/", "%",
			"&", "|", "^", "<<", ">>",
			"<", "<=", ">", ">=", "==", "!=", "&&", "||":
			return unboxableExpr(x.Left) && unboxableExpr(x.Right)
		}
		return false
	case *ast.TernaryExpr:
		return unboxableExpr(x.Cond) && unboxableExpr(x.Then) && unboxableExpr(x.Else)
	case *ast.IncDecExpr:
		return unboxableExpr(x.Operand)
	}
	return false
}

// collectAccumulator recognizes the while-loop-accumulator pattern: a
// numeric local reassigned by simple arithmetic (x = x OP expr, or x++/--)
// inside the loop body and never reassigned to a non-numeric value
// elsewhere in the body.
func (a *analyzer) collectAccumulator(w *ast.WhileStmt) {
	for _, s := range w.Body {
		es, ok := s.(*ast.ExprStmt)
		if !ok {
			continue
		}
		switch ex := es.X.(type) {
		case *ast.AssignExpr:
			id, ok := ex.Target.(*ast.IdentExpr)
			if !ok {
				continue
			}
			if bin, ok := ex.Value.(*ast.BinaryExpr); ok {
				if left, ok := bin.Left.(*ast.IdentExpr); ok && left.Name == id.Name {
					if t, ok := a.declared[id.Name]; ok && t.IsUnboxable() && t.IsNumeric() {
						a.candidate(id.Name, t.Kind, types.Accumulator)
					}
				}
			}
		case *ast.IncDecExpr:
			if id, ok := ex.Operand.(*ast.IdentExpr); ok {
				if t, ok := a.declared[id.Name]; ok && t.IsUnboxable() && t.IsNumeric() {
					a.candidate(id.Name, t.Kind, types.Accumulator)
				}
			}
		}
	}
}

// walkStmts walks each statement in order. inClosure reports whether the
// walker is currently inside a nested FunctionExpr, where a free-variable reference disqualifies the name from
// unboxing in the enclosing function's frame.
func (a *analyzer) walkStmts(stmts []ast.Stmt, inClosure bool) {
	for _, s := range stmts {
		a.walkStmt(s, inClosure)
	}
}

func (a *analyzer) walkStmt(s ast.Stmt, inClosure bool) {
	switch st := s.(type) {
	case *ast.LetStmt:
		if st.Value != nil {
			a.walkExpr(st.Value, inClosure)
		}
	case *ast.ConstStmt:
		a.walkExpr(st.Value, inClosure)
	case *ast.ExprStmt:
		a.walkExpr(st.X, inClosure)
	case *ast.IfStmt:
		a.walkExpr(st.Cond, inClosure)
		a.walkStmts(st.Then, inClosure)
		a.walkStmts(st.Else, inClosure)
	case *ast.WhileStmt:
		a.walkExpr(st.Cond, inClosure)
		a.walkStmts(st.Body, inClosure)
	case *ast.ForStmt:
		if st.Init != nil {
			a.walkStmt(st.Init, inClosure)
		}
		if st.Cond != nil {
			a.walkExpr(st.Cond, inClosure)
		}
		if st.Post != nil {
			a.walkStmt(st.Post, inClosure)
		}
		a.walkStmts(st.Body, inClosure)
	case *ast.ForInStmt:
		a.walkExpr(st.Iterable, inClosure)
		a.walkStmts(st.Body, inClosure)
	case *ast.BlockStmt:
		a.walkStmts(st.Body, inClosure)
	case *ast.ReturnStmt:
		if st.Value != nil {
			if id, ok := st.Value.(*ast.IdentExpr); ok {
				a.escaped[id.Name] = true // disqualifier 4: returned
			}
			a.walkExpr(st.Value, inClosure)
		}
	case *ast.TryStmt:
		a.walkStmts(st.Body, inClosure)
		if st.Catch != nil {
			a.walkStmts(st.Catch.Body, inClosure)
		}
		a.walkStmts(st.Finally, inClosure)
	case *ast.ThrowStmt:
		a.walkExpr(st.Value, inClosure)
	case *ast.SwitchStmt:
		a.walkExpr(st.Subject, inClosure)
		for _, cs := range st.Cases {
			for _, v := range cs.Values {
				a.walkExpr(v, inClosure)
			}
			a.walkStmts(cs.Body, inClosure)
		}
	case *ast.DeferStmt:
		a.walkExpr(st.Call, inClosure)
	}
}

func (a *analyzer) walkExpr(e ast.Expr, inClosure bool) {
	switch x := e.(type) {
	case *ast.BinaryExpr:
		a.walkExpr(x.Left, inClosure)
		a.walkExpr(x.Right, inClosure)
	case *ast.UnaryExpr:
		a.walkExpr(x.Operand, inClosure)
	case *ast.TernaryExpr:
		a.walkExpr(x.Cond, inClosure)
		a.walkExpr(x.Then, inClosure)
		a.walkExpr(x.Else, inClosure)
	case *ast.CallExpr:
		for _, arg := range x.Args {
			if id, ok := arg.(*ast.IdentExpr); ok {
				a.escaped[id.Name] = true // disqualifier 2: passed as arg
			}
			a.walkExpr(arg, inClosure)
		}
		a.walkExpr(x.Func, inClosure)
	case *ast.AssignExpr:
		if id, ok := x.Target.(*ast.IdentExpr); ok && !unboxableExpr(x.Value) {
			// A later assignment of a boxed-shaped value revokes the
			// native slot; the variable needs the uniform representation
			// for the rest of its lifetime.
			a.escaped[id.Name] = true
		}
		a.walkExpr(x.Value, inClosure)
	case *ast.IndexExpr:
		if id, ok := x.Object.(*ast.IdentExpr); ok {
			a.escaped[id.Name] = true // disqualifier 5: indexed-into as container
		}
		a.walkExpr(x.Object, inClosure)
		a.walkExpr(x.Index, inClosure)
	case *ast.IndexAssignExpr:
		if id, ok := x.Object.(*ast.IdentExpr); ok {
			a.escaped[id.Name] = true
		}
		if id, ok := x.Value.(*ast.IdentExpr); ok {
			a.escaped[id.Name] = true // disqualifier 3: stored into container
		}
		a.walkExpr(x.Object, inClosure)
		a.walkExpr(x.Index, inClosure)
		a.walkExpr(x.Value, inClosure)
	case *ast.GetPropertyExpr:
		a.walkExpr(x.Object, inClosure)
	case *ast.SetPropertyExpr:
		if id, ok := x.Value.(*ast.IdentExpr); ok {
			a.escaped[id.Name] = true
		}
		a.walkExpr(x.Object, inClosure)
		a.walkExpr(x.Value, inClosure)
	case *ast.ArrayLiteralExpr:
		for _, el := range x.Elements {
			if id, ok := el.(*ast.IdentExpr); ok {
				a.escaped[id.Name] = true // disqualifier 3: stored into container
			}
			a.walkExpr(el, inClosure)
		}
	case *ast.ObjectLiteralExpr:
		for _, f := range x.Fields {
			if id, ok := f.Value.(*ast.IdentExpr); ok {
				a.escaped[id.Name] = true
			}
			a.walkExpr(f.Value, inClosure)
		}
	case *ast.FunctionExpr:
		a.walkClosureBody(x.Body)
	case *ast.AwaitExpr:
		a.walkExpr(x.X, inClosure)
	case *ast.StringInterpolationExpr:
		for _, p := range x.Parts {
			if p.Expr != nil {
				a.walkExpr(p.Expr, inClosure)
			}
		}
	case *ast.OptionalChainExpr:
		a.walkExpr(x.Object, inClosure)
		for _, arg := range x.Call {
			a.walkExpr(arg, inClosure)
		}
	case *ast.NullCoalesceExpr:
		a.walkExpr(x.Left, inClosure)
		a.walkExpr(x.Right, inClosure)
	case *ast.IncDecExpr:
		a.walkExpr(x.Operand, inClosure)
	}
}

// walkClosureBody marks every free IdentExpr referenced inside a nested
// function literal as captured (disqualifier 1), then recurses with
// inClosure so that nested closures-within-closures are handled the same way.
func (a *analyzer) walkClosureBody(body []ast.Stmt) {
	bound := make(map[string]bool)
	var collectBound func([]ast.Stmt)
	collectBound = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch st := s.(type) {
			case *ast.LetStmt:
				bound[st.Name] = true
			case *ast.ConstStmt:
				bound[st.Name] = true
			case *ast.ForStmt:
				if let, ok := st.Init.(*ast.LetStmt); ok {
					bound[let.Name] = true
				}
				collectBound(st.Body)
			case *ast.ForInStmt:
				bound[st.KeyVar] = true
				if st.ValueVar != "" {
					bound[st.ValueVar] = true
				}
				collectBound(st.Body)
			case *ast.WhileStmt:
				collectBound(st.Body)
			case *ast.IfStmt:
				collectBound(st.Then)
				collectBound(st.Else)
			case *ast.BlockStmt:
				collectBound(st.Body)
			}
		}
	}
	collectBound(body)

	var mark func(ast.Node)
	var markExpr func(ast.Expr)
	markExpr = func(e ast.Expr) {
		switch x := e.(type) {
		case *ast.IdentExpr:
			if !bound[x.Name] {
				a.escaped[x.Name] = true
			}
		case *ast.BinaryExpr:
			markExpr(x.Left)
			markExpr(x.Right)
		case *ast.UnaryExpr:
			markExpr(x.Operand)
		case *ast.TernaryExpr:
			markExpr(x.Cond)
			markExpr(x.Then)
			markExpr(x.Else)
		case *ast.CallExpr:
			markExpr(x.Func)
			for _, arg := range x.Args {
				markExpr(arg)
			}
		case *ast.AssignExpr:
			markExpr(x.Target)
			markExpr(x.Value)
		case *ast.IndexExpr:
			markExpr(x.Object)
			markExpr(x.Index)
		case *ast.GetPropertyExpr:
			markExpr(x.Object)
		case *ast.ArrayLiteralExpr:
			for _, el := range x.Elements {
				markExpr(el)
			}
		case *ast.ObjectLiteralExpr:
			for _, f := range x.Fields {
				markExpr(f.Value)
			}
		case *ast.FunctionExpr:
			a.walkClosureBody(x.Body)
		case *ast.IncDecExpr:
			markExpr(x.Operand)
		}
	}
	mark = func(n ast.Node) {
		if s, ok := n.(ast.Stmt); ok {
			switch st := s.(type) {
			case *ast.LetStmt:
				if st.Value != nil {
					markExpr(st.Value)
				}
			case *ast.ExprStmt:
				markExpr(st.X)
			case *ast.ReturnStmt:
				if st.Value != nil {
					markExpr(st.Value)
				}
			case *ast.IfStmt:
				markExpr(st.Cond)
				for _, b := range st.Then {
					mark(b)
				}
				for _, b := range st.Else {
					mark(b)
				}
			case *ast.WhileStmt:
				markExpr(st.Cond)
				for _, b := range st.Body {
					mark(b)
				}
			case *ast.ForStmt:
				for _, b := range st.Body {
					mark(b)
				}
			case *ast.BlockStmt:
				for _, b := range st.Body {
					mark(b)
				}
			}
		}
	}
	for _, s := range body {
		mark(s)
	}
}
