package typecheck_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/diag"
	"github.com/hemlock-lang/hemlock/internal/typecheck"
	"github.com/hemlock-lang/hemlock/internal/types"
)

func run(t *testing.T, stmts []ast.Stmt) (*typecheck.Info, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink("test.hml")
	c := typecheck.New(sink, typecheck.Options{})
	info := c.Check(&ast.Program{Statements: stmts, File: "test.hml"})
	return info, sink
}

func TestConstReassignmentFails(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.ConstStmt{Name: "x", Value: &ast.NumberExpr{Literal: "1"}},
		&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "x"}, Value: &ast.NumberExpr{Literal: "2"}}},
	}
	_, sink := run(t, stmts)
	require.True(t, sink.Failed())
	assert.Contains(t, sink.Diagnostics[0].Message, "cannot assign to constant")
}

func TestArithmeticCommonWidening(t *testing.T) {
	i32 := &ast.NumberExpr{Literal: "1"}
	f64 := &ast.NumberExpr{Literal: "1.5", IsFloat: true}
	add := &ast.BinaryExpr{Op: "+", Left: i32, Right: f64}
	stmts := []ast.Stmt{&ast.ExprStmt{X: add}}
	info, sink := run(t, stmts)
	assert.False(t, sink.Failed())
	assert.Equal(t, types.F64, info.TypeOf(add).Kind)
}

func TestDivisionAlwaysF64(t *testing.T) {
	div := &ast.BinaryExpr{Op: "/", Left: &ast.NumberExpr{Literal: "4"}, Right: &ast.NumberExpr{Literal: "2"}}
	info, sink := run(t, []ast.Stmt{&ast.ExprStmt{X: div}})
	assert.False(t, sink.Failed())
	assert.Equal(t, types.F64, info.TypeOf(div).Kind)
}

func TestIntegerLiteralPromotesToI64PastInt32Range(t *testing.T) {
	withinRange := &ast.NumberExpr{Literal: "2147483647"}
	pastRange := &ast.NumberExpr{Literal: "2147483648"}
	info, sink := run(t, []ast.Stmt{
		&ast.ExprStmt{X: withinRange},
		&ast.ExprStmt{X: pastRange},
	})
	assert.False(t, sink.Failed())
	assert.Equal(t, types.I32, info.TypeOf(withinRange).Kind)
	assert.Equal(t, types.I64, info.TypeOf(pastRange).Kind)
}

func TestBitwiseResultTakesLeftOperandType(t *testing.T) {
	i32AndI64 := &ast.BinaryExpr{Op: "&", Left: &ast.NumberExpr{Literal: "1"}, Right: &ast.NumberExpr{Literal: "4294967296"}}
	i64AndI32 := &ast.BinaryExpr{Op: "&", Left: &ast.NumberExpr{Literal: "4294967296"}, Right: &ast.NumberExpr{Literal: "1"}}
	info, sink := run(t, []ast.Stmt{
		&ast.ExprStmt{X: i32AndI64},
		&ast.ExprStmt{X: i64AndI32},
	})
	assert.False(t, sink.Failed())
	assert.Equal(t, types.I32, info.TypeOf(i32AndI64).Kind)
	assert.Equal(t, types.I64, info.TypeOf(i64AndI32).Kind)
}

func TestArrayLiteralElementTypeFromFirstElement(t *testing.T) {
	lit := &ast.ArrayLiteralExpr{Elements: []ast.Expr{
		&ast.NumberExpr{Literal: "1"},
		&ast.NumberExpr{Literal: "3.5", IsFloat: true},
	}}
	info, sink := run(t, []ast.Stmt{&ast.ExprStmt{X: lit}})
	assert.False(t, sink.Failed())
	got := info.TypeOf(lit)
	require.Equal(t, types.Array, got.Kind)
	require.NotNil(t, got.Element)
	assert.Equal(t, types.I32, got.Element.Kind)
}

func TestBitwiseRequiresIntegerOperands(t *testing.T) {
	bad := &ast.BinaryExpr{Op: "&", Left: &ast.StringExpr{Value: "x"}, Right: &ast.NumberExpr{Literal: "1"}}
	_, sink := run(t, []ast.Stmt{&ast.ExprStmt{X: bad}})
	require.True(t, sink.Failed())
	assert.Contains(t, sink.Diagnostics[0].Message, "bitwise operator")
}

func TestFunctionCallArityMismatch(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	stmts := []ast.Stmt{
		&ast.FuncDecl{
			Name:   "add",
			Params: []ast.Param{{Name: "a", Type: i32}, {Name: "b", Type: i32}},
			Return: i32,
			Body:   []ast.Stmt{&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.IdentExpr{Name: "a"}, Right: &ast.IdentExpr{Name: "b"}}}},
		},
		&ast.ExprStmt{X: &ast.CallExpr{Func: &ast.IdentExpr{Name: "add"}, Args: []ast.Expr{&ast.NumberExpr{Literal: "1"}}}},
	}
	_, sink := run(t, stmts)
	require.True(t, sink.Failed())
	assert.Contains(t, sink.Diagnostics[0].Message, "expects")
}

func TestMissingReturnWarns(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	stmts := []ast.Stmt{
		&ast.FuncDecl{
			Name:   "f",
			Return: i32,
			Body:   []ast.Stmt{&ast.ExprStmt{X: &ast.NumberExpr{Literal: "1"}}},
		},
	}
	_, sink := run(t, stmts)
	assert.False(t, sink.Failed())
	assert.Equal(t, 1, sink.WarningCount)
}

func TestStringMethodArgShapeMismatch(t *testing.T) {
	str := ast.PrimitiveType{Name: "string"}
	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "s", Type: str, Value: &ast.StringExpr{Value: "x"}},
		&ast.ExprStmt{X: &ast.CallExpr{
			Func: &ast.GetPropertyExpr{Object: &ast.IdentExpr{Name: "s"}, Name: "repeat"},
			Args: []ast.Expr{&ast.StringExpr{Value: "nope"}},
		}},
	}
	_, sink := run(t, stmts)
	require.True(t, sink.Failed())
	assert.Contains(t, sink.Diagnostics[0].Message, "repeat")
}

func TestArrayPushRequiresAtLeastOneArgument(t *testing.T) {
	arr := ast.ArrayType{Element: ast.PrimitiveType{Name: "i32"}}
	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "xs", Type: arr, Value: &ast.ArrayLiteralExpr{}},
		&ast.ExprStmt{X: &ast.CallExpr{
			Func: &ast.GetPropertyExpr{Object: &ast.IdentExpr{Name: "xs"}, Name: "push"},
		}},
	}
	_, sink := run(t, stmts)
	require.True(t, sink.Failed())
	assert.Contains(t, sink.Diagnostics[0].Message, "at least 1")
}

func TestNullOnlyAssignableToNullable(t *testing.T) {
	okLet := &ast.LetStmt{Name: "a", Type: ast.PrimitiveType{Name: "i32", Nullable: true}, Value: &ast.NullExpr{}}
	_, sink := run(t, []ast.Stmt{okLet})
	assert.False(t, sink.Failed())

	badLet := &ast.LetStmt{Name: "b", Type: ast.PrimitiveType{Name: "i32"}, Value: &ast.NullExpr{}}
	_, sink2 := run(t, []ast.Stmt{badLet})
	assert.True(t, sink2.Failed())
}

func TestInvalidUTF8StringLiteralIsError(t *testing.T) {
	bad := &ast.StringExpr{Value: string([]byte{0xC3})}
	_, sink := run(t, []ast.Stmt{&ast.ExprStmt{X: bad}})
	require.True(t, sink.Failed())
	assert.Contains(t, sink.Diagnostics[0].Message, "invalid UTF-8")
}

func TestForwardReferenceResolvesViaRegistration(t *testing.T) {
	i32 := ast.PrimitiveType{Name: "i32"}
	stmts := []ast.Stmt{
		&ast.FuncDecl{
			Name:   "caller",
			Return: i32,
			Body: []ast.Stmt{
				&ast.ReturnStmt{Value: &ast.CallExpr{Func: &ast.IdentExpr{Name: "callee"}, Args: []ast.Expr{&ast.NumberExpr{Literal: "1"}}}},
			},
		},
		&ast.FuncDecl{
			Name:   "callee",
			Params: []ast.Param{{Name: "x", Type: i32}},
			Return: i32,
			Body:   []ast.Stmt{&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "x"}}},
		},
	}
	_, sink := run(t, stmts)
	assert.False(t, sink.Failed())
}
