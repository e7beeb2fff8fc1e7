package codegen

import (
	"fmt"
	"strconv"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
)

// LowerEnum lowers an enum declaration to one module global holding an
// object literal whose fields are the variants: with no
// explicit values the k-th variant is k-1, an explicit integer literal
// overrides the counter, and the counter resumes from value+1 after it.
// The global itself is declared by LowerModule's pre-scan; this emits the
// init-time construction statement.
func LowerEnum(c *Context, e *ast.EnumStmt) CStmt {
	args := []CExpr{
		&CStringLit{Value: e.Name},
		&CIntLit{Value: fmt.Sprintf("%d", len(e.Variants))},
	}
	next := 0
	for _, v := range e.Variants {
		value := next
		if v.Value != nil {
			if lit, ok := v.Value.(*ast.NumberExpr); ok && !lit.IsFloat {
				if parsed, err := strconv.Atoi(lit.Literal); err == nil {
					value = parsed
				}
			}
		}
		next = value + 1
		args = append(args,
			&CStringLit{Value: v.Name},
			fnCall(runtimeabi.FnValI32, &CIntLit{Value: fmt.Sprintf("%d", value)}),
		)
	}
	return &CExprStmt{X: &CAssign{
		Target: &CIdent{Name: c.Mangle(e.Name)},
		Value:  &CCall{Func: &CIdent{Name: runtimeabi.FnValObject}, Args: args},
		Op:     "=",
	}}
}
