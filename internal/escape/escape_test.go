package escape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/escape"
	"github.com/hemlock-lang/hemlock/internal/types"
)

func TestTypedLetUnboxes(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	body := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: i32, Value: &ast.NumberExpr{Literal: "1"}},
		&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "x"}, Value: &ast.NumberExpr{Literal: "2"}}},
	}
	declared := map[string]types.CheckedType{"x": types.Simple(types.I32)}
	table := escape.Analyze(body, declared)
	info, ok := table.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, types.TypedVar, info.Kind)
	assert.Equal(t, types.I32, info.Native)
}

func TestForLoopCounterUnboxes(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	forStmt := &ast.ForStmt{
		Init: &ast.LetStmt{Name: "i", Type: i32, Value: &ast.NumberExpr{Literal: "0"}},
		Cond: &ast.BinaryExpr{Op: "<", Left: &ast.IdentExpr{Name: "i"}, Right: &ast.NumberExpr{Literal: "10"}},
		Post: &ast.ExprStmt{X: &ast.IncDecExpr{Op: "++", Operand: &ast.IdentExpr{Name: "i"}, Prefix: false}},
		Body: nil,
	}
	declared := map[string]types.CheckedType{"i": types.Simple(types.I32)}
	table := escape.Analyze([]ast.Stmt{forStmt}, declared)
	info, ok := table.Lookup("i")
	require.True(t, ok)
	assert.Equal(t, types.LoopCounter, info.Kind)

	fp, ok := escape.ClassifyForLoop(forStmt, table)
	require.True(t, ok)
	assert.Equal(t, "i", fp.Counter)
	assert.True(t, fp.Ascending)
}

func TestClosureCaptureDisqualifiesUnboxing(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	body := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: i32, Value: &ast.NumberExpr{Literal: "1"}},
		&ast.LetStmt{Name: "f", Value: &ast.FunctionExpr{
			Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "x"}}},
		}},
	}
	declared := map[string]types.CheckedType{"x": types.Simple(types.I32)}
	table := escape.Analyze(body, declared)
	assert.False(t, table.IsUnboxed("x"))
}

func TestReturnedVariableDisqualifiesUnboxing(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	body := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: i32, Value: &ast.NumberExpr{Literal: "1"}},
		&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "x"}},
	}
	declared := map[string]types.CheckedType{"x": types.Simple(types.I32)}
	table := escape.Analyze(body, declared)
	assert.False(t, table.IsUnboxed("x"))
}

func TestNonUnboxableInitDisqualifiesTypedLet(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	body := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: i32, Value: &ast.CallExpr{Func: &ast.IdentExpr{Name: "f"}}},
	}
	declared := map[string]types.CheckedType{"x": types.Simple(types.I32)}
	table := escape.Analyze(body, declared)
	assert.False(t, table.IsUnboxed("x"))
}

func TestNonUnboxableReassignmentDisqualifiesTypedLet(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	body := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: i32, Value: &ast.NumberExpr{Literal: "1"}},
		&ast.ExprStmt{X: &ast.AssignExpr{
			Target: &ast.IdentExpr{Name: "x"},
			Value:  &ast.CallExpr{Func: &ast.IdentExpr{Name: "f"}},
		}},
	}
	declared := map[string]types.CheckedType{"x": types.Simple(types.I32)}
	table := escape.Analyze(body, declared)
	assert.False(t, table.IsUnboxed("x"))
}

func TestSelfTailRecursionDetected(t *testing.T) {
	body := []ast.Stmt{
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
	}
	info := escape.AnalyzeTailCalls("fact", []string{"n", "acc"}, body)
	require.True(t, info.SelfRecurses)
	require.Len(t, info.TailCalls, 1)
}

func TestDeferInBodyDisqualifiesTailRewrite(t *testing.T) {
	body := []ast.Stmt{
		&ast.DeferStmt{Call: &ast.CallExpr{Func: &ast.IdentExpr{Name: "cleanup"}}},
		&ast.IfStmt{
			Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
			Then: []ast.Stmt{&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "acc"}}},
		},
		&ast.ReturnStmt{Value: &ast.CallExpr{
			Func: &ast.IdentExpr{Name: "fact"},
			Args: []ast.Expr{&ast.IdentExpr{Name: "n"}, &ast.IdentExpr{Name: "acc"}},
		}},
	}
	info := escape.AnalyzeTailCalls("fact", []string{"n", "acc"}, body)
	assert.Nil(t, info.TailCalls)
}

func TestLoopInBodyDisqualifiesTailRewrite(t *testing.T) {
	body := []ast.Stmt{
		&ast.WhileStmt{
			Cond: &ast.BoolExpr{Value: true},
			Body: []ast.Stmt{&ast.BreakStmt{}},
		},
		&ast.ReturnStmt{Value: &ast.CallExpr{
			Func: &ast.IdentExpr{Name: "fact"},
			Args: []ast.Expr{&ast.IdentExpr{Name: "n"}},
		}},
	}
	info := escape.AnalyzeTailCalls("fact", []string{"n"}, body)
	assert.Nil(t, info.TailCalls)
}

func TestNonTailSelfCallDisqualifies(t *testing.T) {
	body := []ast.Stmt{
		&ast.LetStmt{Name: "y", Value: &ast.CallExpr{Func: &ast.IdentExpr{Name: "fact"}, Args: []ast.Expr{&ast.IdentExpr{Name: "n"}}}},
		&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "y"}},
	}
	info := escape.AnalyzeTailCalls("fact", []string{"n"}, body)
	assert.Nil(t, info.TailCalls)
}
