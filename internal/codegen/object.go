package codegen

import (
	"fmt"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
)

// LowerObjectDef lowers a `define object` declaration to a runtime
// type-registration call, executed once from the module's init function:
// the type name, the field count, and per field its name,
// its HML_VAL_* kind tag, its optional flag, and its default-value
// expression (null when the declaration gives none). Objects remain a
// dynamically-shaped HmlValue at runtime; the registration is what backs
// hml_validate_object_type and default-field construction.
func LowerObjectDef(c *Context, o *ast.DefineObjectStmt) CStmt {
	args := []CExpr{
		&CStringLit{Value: o.Name},
		&CIntLit{Value: fmt.Sprintf("%d", len(o.Fields))},
	}
	for _, f := range o.Fields {
		optional := "0"
		if f.Optional {
			optional = "1"
		}
		var def CExpr
		if f.Default != nil {
			def = Box(LowerExpr(c, f.Default))
		} else {
			def = fnCall(runtimeabi.FnValNull)
		}
		args = append(args,
			&CStringLit{Value: f.Name},
			&CIdent{Name: runtimeabi.ValTag(resolveDeclaredType(f.Type).Kind)},
			&CIntLit{Value: optional},
			def,
		)
	}
	return &CExprStmt{X: &CCall{Func: &CIdent{Name: runtimeabi.FnRegisterObjectType}, Args: args}}
}
