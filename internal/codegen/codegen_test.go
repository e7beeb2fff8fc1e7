package codegen_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/codegen"
	"github.com/hemlock-lang/hemlock/internal/cprint"
	"github.com/hemlock-lang/hemlock/internal/diag"
	"github.com/hemlock-lang/hemlock/internal/typecheck"
	"github.com/hemlock-lang/hemlock/internal/types"
)

func printStmts(stmts []codegen.CStmt) string {
	w := cprint.NewWriter()
	cprint.Stmts(w, stmts)
	return w.String()
}

func TestPrintSimpleBinaryExpr(t *testing.T) {
	expr := &codegen.CBinary{Op: "+", Left: &codegen.CIntLit{Value: "1"}, Right: &codegen.CIntLit{Value: "2"}}
	got := cprint.Expr(expr)
	want := "(1 + 2)"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Expr mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintIfElse(t *testing.T) {
	w := cprint.NewWriter()
	cprint.Stmt(w, &codegen.CIf{
		Cond: &codegen.CIdent{Name: "cond"},
		Then: []codegen.CStmt{&codegen.CReturn{Value: &codegen.CIntLit{Value: "1"}}},
		Else: []codegen.CStmt{&codegen.CReturn{Value: &codegen.CIntLit{Value: "0"}}},
	})
	got := w.String()
	assert.Contains(t, got, "if (cond) {")
	assert.Contains(t, got, "return 1;")
	assert.Contains(t, got, "} else {")
	assert.Contains(t, got, "return 0;")
}

func TestLowerTailRecursiveFunctionEmitsGotoLoop(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	fn := &ast.FuncDecl{
		Name:   "fact",
		Params: []ast.Param{{Name: "n", Type: i32}, {Name: "acc", Type: i32}},
		Return: i32,
		Body: []ast.Stmt{
			&ast.IfStmt{
				Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
				Then: []ast.Stmt{&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "acc"}}},
			},
			&ast.ReturnStmt{Value: &ast.CallExpr{
				Func: &ast.IdentExpr{Name: "fact"},
				Args: []ast.Expr{
					&ast.BinaryExpr{Op: "-", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
					&ast.BinaryExpr{Op: "*", Left: &ast.IdentExpr{Name: "acc"}, Right: &ast.IdentExpr{Name: "n"}},
				},
			}},
		},
	}
	prog := &ast.Program{File: "t.hml", Statements: []ast.Stmt{fn}}

	sink := diag.NewSink("t.hml")
	checker := typecheck.New(sink, typecheck.Options{})
	info := checker.Check(prog)
	require.False(t, sink.Failed())

	decls := codegen.LowerModule(info.Registry, info.ExprTypes, prog, "m_", nil, true)
	out := cprint.Program(decls)

	assert.Contains(t, out, "goto", "expected a goto in the tail-call loop rewrite, got:\n%s", out)
	// the recursive return site reassigns parameters rather than calling
	assert.Contains(t, out, "(n = ")
	assert.Contains(t, out, "(acc = ")
	assert.NotContains(t, out, "return m_fact(")
}

func TestDeferDisablesTailCallLoopRewrite(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	fn := &ast.FuncDecl{
		Name:   "f",
		Params: []ast.Param{{Name: "n", Type: i32}, {Name: "acc", Type: i32}},
		Return: i32,
		Body: []ast.Stmt{
			&ast.DeferStmt{Call: &ast.CallExpr{Func: &ast.IdentExpr{Name: "cleanup"}}},
			&ast.IfStmt{
				Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
				Then: []ast.Stmt{&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "acc"}}},
			},
			&ast.ReturnStmt{Value: &ast.CallExpr{
				Func: &ast.IdentExpr{Name: "f"},
				Args: []ast.Expr{
					&ast.BinaryExpr{Op: "-", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
					&ast.BinaryExpr{Op: "*", Left: &ast.IdentExpr{Name: "acc"}, Right: &ast.IdentExpr{Name: "n"}},
				},
			}},
		},
	}
	prog := &ast.Program{File: "t.hml", Statements: []ast.Stmt{
		fn,
		&ast.ExternFnStmt{Name: "cleanup", Return: i32},
	}}
	sink := diag.NewSink("t.hml")
	checker := typecheck.New(sink, typecheck.Options{})
	info := checker.Check(prog)
	require.False(t, sink.Failed())

	decls := codegen.LowerModule(info.Registry, info.ExprTypes, prog, "m_", nil, true)
	out := cprint.Program(decls)

	// each recursive call keeps its own frame so its deferred calls flush
	// on that call's own return, not all at once at the base case
	assert.Contains(t, out, "return m_f(")
	assert.Contains(t, out, "hml_defer_execute_all()")
	assert.NotContains(t, out, "goto")
}

func TestLowerForLoopCounterFastPath(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	fn := &ast.FuncDecl{
		Name:   "sumTo",
		Params: []ast.Param{{Name: "n", Type: i32}},
		Return: i32,
		Body: []ast.Stmt{
			&ast.LetStmt{Name: "total", Type: i32, Value: &ast.NumberExpr{Literal: "0"}},
			&ast.ForStmt{
				Init: &ast.LetStmt{Name: "i", Type: i32, Value: &ast.NumberExpr{Literal: "0"}},
				Cond: &ast.BinaryExpr{Op: "<", Left: &ast.IdentExpr{Name: "i"}, Right: &ast.IdentExpr{Name: "n"}},
				Post: &ast.ExprStmt{X: &ast.IncDecExpr{Op: "++", Operand: &ast.IdentExpr{Name: "i"}}},
				Body: []ast.Stmt{
					&ast.ExprStmt{X: &ast.AssignExpr{
						Target: &ast.IdentExpr{Name: "total"},
						Value:  &ast.BinaryExpr{Op: "+", Left: &ast.IdentExpr{Name: "total"}, Right: &ast.IdentExpr{Name: "i"}},
					}},
				},
			},
			&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "total"}},
		},
	}
	prog := &ast.Program{File: "t.hml", Statements: []ast.Stmt{fn}}
	sink := diag.NewSink("t.hml")
	checker := typecheck.New(sink, typecheck.Options{})
	info := checker.Check(prog)
	require.False(t, sink.Failed())

	decls := codegen.LowerModule(info.Registry, info.ExprTypes, prog, "m_", nil, true)
	out := cprint.Program(decls)

	assert.Contains(t, out, "int32_t i = 0")
	assert.Contains(t, out, "for (")
	// the bound is an identifier, so it is hoisted and evaluated once
	assert.Contains(t, out, "= hml_to_i32(n);")
}

func TestConstantFoldingOfIntegerLiterals(t *testing.T) {
	lowered := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.BinaryExpr{
		Op: "+", Left: &ast.NumberExpr{Literal: "2"}, Right: &ast.NumberExpr{Literal: "3"},
	})
	require.True(t, lowered.Native)
	got := cprint.Expr(lowered.Expr)
	assert.Equal(t, "5", got)
}

func TestConstantFoldingOfUnaryLiterals(t *testing.T) {
	neg := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.UnaryExpr{Op: "-", Operand: &ast.NumberExpr{Literal: "7"}})
	require.True(t, neg.Native)
	assert.Equal(t, "-7", cprint.Expr(neg.Expr))

	not := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.UnaryExpr{Op: "!", Operand: &ast.BoolExpr{Value: true}})
	require.True(t, not.Native)
	assert.Equal(t, "false", cprint.Expr(not.Expr))
}

func TestNumberLiteralPromotesToI64PastInt32Range(t *testing.T) {
	withinRange := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.NumberExpr{Literal: "2147483647"})
	require.True(t, withinRange.Native)
	assert.Equal(t, types.I32, withinRange.Kind)

	pastRange := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.NumberExpr{Literal: "2147483648"})
	require.True(t, pastRange.Native)
	assert.Equal(t, types.I64, pastRange.Kind)

	belowRange := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.NumberExpr{Literal: "-2147483649"})
	require.True(t, belowRange.Native)
	assert.Equal(t, types.I64, belowRange.Kind)
}

func TestConstantFoldingDivisionByZeroFallsThroughToRuntime(t *testing.T) {
	lowered := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.BinaryExpr{
		Op: "/", Left: &ast.NumberExpr{Literal: "4"}, Right: &ast.NumberExpr{Literal: "0"},
	})
	got := cprint.Expr(codegen.Box(lowered))
	assert.Contains(t, got, "hml_binary_op(HML_OP_DIV, ")
}

func TestBinaryCascadeForUnknownOperands(t *testing.T) {
	lowered := codegen.LowerExpr(codegen.NewContext(nil, "m_"), &ast.BinaryExpr{
		Op: "+", Left: &ast.IdentExpr{Name: "a"}, Right: &ast.IdentExpr{Name: "b"},
	})
	got := cprint.Expr(codegen.Box(lowered))
	assert.Contains(t, got, "hml_both_i32(a, b) ? hml_i32_add(a, b)")
	assert.Contains(t, got, "hml_both_i64(a, b) ? hml_i64_add(a, b)")
	assert.Contains(t, got, "hml_binary_op(HML_OP_ADD, a, b)")
}

func TestStaticI32OperandsCallIntrinsicDirectly(t *testing.T) {
	left := &ast.IdentExpr{Name: "a"}
	right := &ast.IdentExpr{Name: "b"}
	c := codegen.NewContext(nil, "m_")
	c.SetExprTypes(map[ast.Expr]types.CheckedType{
		left:  types.Simple(types.I32),
		right: types.Simple(types.I32),
	})
	lowered := codegen.LowerExpr(c, &ast.BinaryExpr{Op: "<", Left: left, Right: right})
	got := cprint.Expr(codegen.Box(lowered))
	assert.Equal(t, "hml_i32_lt(a, b)", got)
}

func TestShortCircuitAndLowersAsBranch(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	out := printStmts(codegen.LowerStmt(c, &ast.LetStmt{
		Name:  "ok",
		Value: &ast.BinaryExpr{Op: "&&", Left: &ast.IdentExpr{Name: "a"}, Right: &ast.IdentExpr{Name: "b"}},
	}))
	assert.Contains(t, out, "if (hml_to_bool(a)) {")
	assert.Contains(t, out, "hml_to_bool(b)")
	assert.Contains(t, out, "= false);")
	// the right operand must not be evaluated before the branch
	assert.NotContains(t, out, "hml_to_bool(b));\nif")
}

func TestStringConcatChainFusesToConcat4(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	chain := &ast.BinaryExpr{
		Op: "+",
		Left: &ast.BinaryExpr{
			Op:    "+",
			Left:  &ast.BinaryExpr{Op: "+", Left: &ast.StringExpr{Value: "a"}, Right: &ast.IdentExpr{Name: "b"}},
			Right: &ast.StringExpr{Value: "c"},
		},
		Right: &ast.IdentExpr{Name: "d"},
	}
	lowered := codegen.LowerExpr(c, chain)
	got := cprint.Expr(codegen.Box(lowered))
	assert.Contains(t, got, "hml_string_concat4(")
	assert.NotContains(t, got, "hml_string_concat(")
}

func TestInPlaceStringAppendAssign(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	assign := &ast.AssignExpr{
		Target: &ast.IdentExpr{Name: "s"},
		Value: &ast.BinaryExpr{
			Op: "+", Left: &ast.IdentExpr{Name: "s"}, Right: &ast.StringExpr{Value: "tail"},
		},
	}
	lowered := codegen.LowerExpr(c, assign)
	got := cprint.Expr(codegen.Box(lowered))
	assert.Contains(t, got, "hml_string_append_inplace((&s),")
}

func TestPostfixIncOnBoxedIdentReturnsOldValue(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	stmts := codegen.LowerStmt(c, &ast.ExprStmt{X: &ast.IncDecExpr{Op: "++", Operand: &ast.IdentExpr{Name: "x"}}})
	out := printStmts(stmts)
	// old value saved before the mutation
	assert.Contains(t, out, "HmlValue _hml_t1 = x;")
	assert.Contains(t, out, "hml_i32_add(x, hml_val_i32(1))")
	assert.Contains(t, out, "hml_binary_op(HML_OP_ADD, x, hml_val_i32(1))")
}

func TestSwitchLowersToLabelChainWithFallthrough(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	sw := &ast.SwitchStmt{
		Subject: &ast.IdentExpr{Name: "v"},
		Cases: []ast.SwitchCase{
			{Values: []ast.Expr{&ast.NumberExpr{Literal: "1"}}, Body: []ast.Stmt{&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "a"}, Value: &ast.NumberExpr{Literal: "1"}}}}},
			{Values: nil, Body: []ast.Stmt{&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "a"}, Value: &ast.NumberExpr{Literal: "2"}}}}},
		},
	}
	out := printStmts(codegen.LowerStmt(c, sw))
	assert.Contains(t, out, "hml_binary_op(HML_OP_EQ, ")
	assert.Contains(t, out, "goto _hml_L")
	assert.NotContains(t, out, "switch (")
	// labels for both case bodies plus the end label
	assert.GreaterOrEqual(t, strings.Count(out, ":;"), 3)
}

func TestBreakInsideSwitchJumpsToEndLabel(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	sw := &ast.SwitchStmt{
		Subject: &ast.IdentExpr{Name: "v"},
		Cases: []ast.SwitchCase{
			{Values: []ast.Expr{&ast.NumberExpr{Literal: "1"}}, Body: []ast.Stmt{&ast.BreakStmt{}}},
		},
	}
	out := printStmts(codegen.LowerStmt(c, sw))
	assert.NotContains(t, out, "break;")
	assert.GreaterOrEqual(t, strings.Count(out, "goto "), 2)
}

func TestWhileLowersToCanonicalShape(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	loop := &ast.WhileStmt{
		Cond: &ast.IdentExpr{Name: "keep"},
		Body: []ast.Stmt{&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "x"}, Value: &ast.NumberExpr{Literal: "1"}}}},
	}
	out := printStmts(codegen.LowerStmt(c, loop))
	assert.Contains(t, out, "while (1) {")
	assert.Contains(t, out, "break;")
	// boxed condition temporary released before the branch decides
	assert.Contains(t, out, "hml_release_if_needed(")
}

func TestConstantConditionEliminatesUntakenBranch(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	ifStmt := &ast.IfStmt{
		Cond: &ast.BoolExpr{Value: true},
		Then: []ast.Stmt{&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "a"}, Value: &ast.NumberExpr{Literal: "1"}}}},
		Else: []ast.Stmt{&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "a"}, Value: &ast.NumberExpr{Literal: "2"}}}},
	}
	out := printStmts(codegen.LowerStmt(c, ifStmt))
	assert.NotContains(t, out, "if (")
	assert.Contains(t, out, "hml_val_i32(1)")
	assert.NotContains(t, out, "hml_val_i32(2)")
}

func TestDeferCapturesCalleeAtDeferTime(t *testing.T) {
	reg := types.NewRegistry()
	reg.RegisterFunction(&types.FuncSig{Name: "cleanup"})
	c := codegen.NewContext(reg, "m_")
	out := printStmts(codegen.LowerStmt(c, &ast.DeferStmt{
		Call: &ast.CallExpr{Func: &ast.IdentExpr{Name: "cleanup"}},
	}))
	assert.Contains(t, out, "hml_defer_push_call(hml_val_function(m_cleanup, 0, 0));")
	assert.NotContains(t, out, "m_cleanup()")
}

func TestNullCoalesceEvaluatesLeftOnce(t *testing.T) {
	reg := types.NewRegistry()
	reg.RegisterFunction(&types.FuncSig{Name: "f"})
	c := codegen.NewContext(reg, "m_")
	out := printStmts(codegen.LowerStmt(c, &ast.LetStmt{
		Name: "x",
		Value: &ast.NullCoalesceExpr{
			Left:  &ast.CallExpr{Func: &ast.IdentExpr{Name: "f"}},
			Right: &ast.NumberExpr{Literal: "0"},
		},
	}))
	assert.Equal(t, 1, strings.Count(out, "m_f()"))
	assert.Contains(t, out, "hml_is_null(_hml_t1)")
}

func TestBuiltinLengthPropertyDispatchesOnTag(t *testing.T) {
	c := codegen.NewContext(nil, "m_")
	out := printStmts(codegen.LowerStmt(c, &ast.LetStmt{
		Name:  "n",
		Value: &ast.GetPropertyExpr{Object: &ast.IdentExpr{Name: "v"}, Name: "length"},
	}))
	assert.Contains(t, out, "v.type == HML_VAL_STRING")
	assert.Contains(t, out, "hml_string_length(v)")
	assert.Contains(t, out, "hml_array_length(v)")
	assert.Contains(t, out, `hml_object_get_field_required(v, "length")`)
}
