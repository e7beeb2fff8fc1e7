// Command hemlockc is a thin demonstration driver for the hemlock core: it
// builds a small, hand-constructed AST in place of a real lexer/parser
// (which is a separate, out-of-scope collaborator), runs it through the
// compilation pipeline, and prints the emitted C source or the
// accumulated diagnostics. It exists to exercise the library end to end,
// not as a production CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/pipeline"
)

func main() {
	prog := sampleProgram()
	out := pipeline.Compile(prog, pipeline.Options{ModulePrefix: "demo_", WarnImplicitAny: true})

	if len(out.Diagnostics.Diagnostics) > 0 {
		out.Diagnostics.WriteTo(os.Stderr)
	}
	if out.Diagnostics.Failed() {
		fmt.Fprintln(os.Stderr, color.RedString("compilation failed"))
		os.Exit(1)
	}
	fmt.Print(out.CSource)
}

// sampleProgram builds the tail-recursive factorial example referenced in
// the core's test suite: a classic accumulator-passing candidate for both
// the typed-intrinsic and tail-call-to-loop rewrites.
func sampleProgram() *ast.Program {
	i32 := ast.PrimitiveType{Name: "i32"}
	return &ast.Program{
		File: "demo.hml",
		Statements: []ast.Stmt{
			&ast.FuncDecl{
				Name: "factorial",
				Params: []ast.Param{
					{Name: "n", Type: i32},
					{Name: "acc", Type: i32},
				},
				Return: i32,
				Body: []ast.Stmt{
					&ast.IfStmt{
						Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
						Then: []ast.Stmt{
							&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "acc"}},
						},
					},
					&ast.ReturnStmt{
						Value: &ast.CallExpr{
							Func: &ast.IdentExpr{Name: "factorial"},
							Args: []ast.Expr{
								&ast.BinaryExpr{Op: "-", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
								&ast.BinaryExpr{Op: "*", Left: &ast.IdentExpr{Name: "acc"}, Right: &ast.IdentExpr{Name: "n"}},
							},
						},
					},
				},
			},
		},
	}
}
