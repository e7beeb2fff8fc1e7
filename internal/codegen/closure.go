package codegen

import (
	"fmt"
	"sort"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/escape"
	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// lowerClosureLiteral lowers one function-expression to the runtime
// constructor call it evaluates to. Three cases:
//  1. no free variables: hml_val_function carrying the function pointer
//     and arity metadata, no environment;
//  2. free variables: an indexed heap environment is allocated with
//     hml_closure_env_new, each capture stored by slot with
//     hml_closure_env_set, and the closure bound to it with
//     hml_val_function_with_env (the _rest variants when a rest parameter
//     exists);
//  3. a self-referential closure (the `let f = fn(){...f...}` pattern):
//     the closure's own slot can't be filled until the enclosing `let`
//     has bound the closure's final value, so it holds null at allocation
//     and is patched with hml_closure_env_set right after the binding.
//
// The closure's implementation function is generated here too (added to
// the context's running closure-decl list for LowerModule to place after
// the top-level functions) since free-variable analysis, naming, and body
// lowering all need to happen while the capturing scope is known.
func lowerClosureLiteral(c *Context, x *ast.FunctionExpr) CExpr {
	name := c.NewAnonName()
	captures := freeVariables(x.Body, paramNamesOf(x.Params), c.CaptureEnv())

	c.AddClosureDecl(closureFunc(c, name, x, captures))

	argc := &CIntLit{Value: fmt.Sprintf("%d", len(x.Params))}
	required := &CIntLit{Value: fmt.Sprintf("%d", requiredCount(x.Params))}

	if len(captures) == 0 {
		ctor := runtimeabi.FnValFunction
		if x.HasRest {
			ctor = runtimeabi.FnValFunctionRest
		}
		return fnCall(ctor, &CIdent{Name: name}, argc, required)
	}

	envVar := c.NewTemp()
	c.AddPrelude(&CVarDecl{
		Type: ValueType, Name: envVar,
		Init: fnCall(runtimeabi.FnClosureEnvNew, &CIntLit{Value: fmt.Sprintf("%d", len(captures))}),
	})
	for i, cap := range captures {
		slot := &CIntLit{Value: fmt.Sprintf("%d", i)}
		if x.Name != "" && cap.Name == x.Name {
			// Case 3: this slot holds the closure's own eventual value,
			// which doesn't exist yet; store null now and patch it in once
			// the enclosing `let` has a name to assign from.
			c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnClosureEnvSet,
				&CIdent{Name: envVar}, slot, fnCall(runtimeabi.FnValNull))})
			c.SetSelfPatch(envVar, i, x.Name)
			continue
		}
		c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnClosureEnvSet,
			&CIdent{Name: envVar}, slot, Box(LowerExpr(c, &ast.IdentExpr{Name: cap.Name})))})
	}

	ctor := runtimeabi.FnValFunctionWithEnv
	if x.HasRest {
		ctor = runtimeabi.FnValFunctionWithEnvRest
	}
	return fnCall(ctor, &CIdent{Name: name}, argc, required, &CIdent{Name: envVar})
}

func requiredCount(params []ast.Param) int {
	n := 0
	for _, p := range params {
		if !p.Optional {
			n++
		}
	}
	return n
}

func paramNamesOf(params []ast.Param) map[string]bool {
	m := make(map[string]bool, len(params))
	for _, p := range params {
		m[p.Name] = true
	}
	return m
}

// closureFunc generates the closure's implementation function: its body
// reads every captured value out of the environment at entry, binding each
// as a local under its source name, then runs the function body. Generated
// eagerly while the capture scope is still at hand, emitted after the
// top-level functions.
func closureFunc(c *Context, name string, fn *ast.FunctionExpr, captures []ClosureCapture) *CFuncDecl {
	const envParam = "_hml_env"
	params := []CParam{{Type: ValueType, Name: envParam}}
	for _, p := range fn.Params {
		params = append(params, CParam{Type: ValueType, Name: sanitizeCName(p.Name)})
	}

	var prelude []CStmt
	captureIndex := make(map[string]int, len(captures))
	for i, cap := range captures {
		captureIndex[cap.Name] = i
		prelude = append(prelude, &CVarDecl{
			Type: ValueType, Name: sanitizeCName(cap.Name),
			Init: fnCall(runtimeabi.FnClosureEnvGet, &CIdent{Name: envParam}, &CIntLit{Value: fmt.Sprintf("%d", i)}),
		})
	}

	scope := make(map[string]types.CheckedType, len(fn.Params)+len(captures))
	for _, p := range fn.Params {
		scope[p.Name] = resolveDeclaredType(p.Type)
	}
	for _, cap := range captures {
		scope[cap.Name] = cap.Type
	}
	collectLocalDeclaredTypes(fn.Body, scope)

	unbox := escape.Analyze(fn.Body, scope)
	prevUnbox := c.unbox
	c.SetUnboxTable(unbox)
	defer c.SetUnboxTable(prevUnbox)

	prevFn := c.EnterFunc(name)
	prevScope := c.SetLocalScope(scope)
	restoreFrame := c.EnterFuncFrame(bodyHasDefer(fn.Body), false)
	restoreClosure := c.EnterClosure(envParam, captureIndex)
	body := append(prelude, LowerBlock(c, fn.Body)...)
	restoreClosure()
	restoreFrame()
	c.SetLocalScope(prevScope)
	c.ExitFunc(prevFn)

	return &CFuncDecl{ReturnType: ValueType, Name: name, Params: params, Body: body, Static: true}
}

// freeVariables collects every identifier referenced in body that is
// neither a parameter nor locally declared, intersected with the names
// visible in scope (the capturing function's own params/locals plus every
// top-level function name; a referenced top-level function is captured
// like any other visible name).
func freeVariables(body []ast.Stmt, params map[string]bool, scope map[string]types.CheckedType) []ClosureCapture {
	bound := make(map[string]bool, len(params))
	for p := range params {
		bound[p] = true
	}
	free := make(map[string]bool)

	var walkStmts func([]ast.Stmt)
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch x := e.(type) {
		case *ast.IdentExpr:
			if !bound[x.Name] {
				if _, ok := scope[x.Name]; ok {
					free[x.Name] = true
				}
			}
		case *ast.BinaryExpr:
			walkExpr(x.Left)
			walkExpr(x.Right)
		case *ast.UnaryExpr:
			walkExpr(x.Operand)
		case *ast.TernaryExpr:
			walkExpr(x.Cond)
			walkExpr(x.Then)
			walkExpr(x.Else)
		case *ast.CallExpr:
			walkExpr(x.Func)
			for _, a := range x.Args {
				walkExpr(a)
			}
		case *ast.AssignExpr:
			walkExpr(x.Target)
			walkExpr(x.Value)
		case *ast.IndexExpr:
			walkExpr(x.Object)
			walkExpr(x.Index)
		case *ast.IndexAssignExpr:
			walkExpr(x.Object)
			walkExpr(x.Index)
			walkExpr(x.Value)
		case *ast.GetPropertyExpr:
			walkExpr(x.Object)
		case *ast.SetPropertyExpr:
			walkExpr(x.Object)
			walkExpr(x.Value)
		case *ast.ArrayLiteralExpr:
			for _, el := range x.Elements {
				walkExpr(el)
			}
		case *ast.ObjectLiteralExpr:
			for _, f := range x.Fields {
				walkExpr(f.Value)
			}
		case *ast.StringInterpolationExpr:
			for _, p := range x.Parts {
				if p.Expr != nil {
					walkExpr(p.Expr)
				}
			}
		case *ast.OptionalChainExpr:
			walkExpr(x.Object)
			for _, a := range x.Call {
				walkExpr(a)
			}
		case *ast.NullCoalesceExpr:
			walkExpr(x.Left)
			walkExpr(x.Right)
		case *ast.AwaitExpr:
			walkExpr(x.X)
		case *ast.FunctionExpr:
			inner := make(map[string]bool)
			for k := range bound {
				inner[k] = true
			}
			for _, p := range x.Params {
				inner[p.Name] = true
			}
			saved := bound
			bound = inner
			walkStmts(x.Body)
			bound = saved
		case *ast.IncDecExpr:
			walkExpr(x.Operand)
		}
	}
	walkStmts = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch st := s.(type) {
			case *ast.LetStmt:
				if st.Value != nil {
					walkExpr(st.Value)
				}
				bound[st.Name] = true
			case *ast.ConstStmt:
				walkExpr(st.Value)
				bound[st.Name] = true
			case *ast.ExprStmt:
				walkExpr(st.X)
			case *ast.ReturnStmt:
				if st.Value != nil {
					walkExpr(st.Value)
				}
			case *ast.IfStmt:
				walkExpr(st.Cond)
				walkStmts(st.Then)
				walkStmts(st.Else)
			case *ast.WhileStmt:
				walkExpr(st.Cond)
				walkStmts(st.Body)
			case *ast.ForStmt:
				if st.Init != nil {
					walkStmts([]ast.Stmt{st.Init})
				}
				if st.Cond != nil {
					walkExpr(st.Cond)
				}
				if st.Post != nil {
					walkStmts([]ast.Stmt{st.Post})
				}
				walkStmts(st.Body)
			case *ast.ForInStmt:
				walkExpr(st.Iterable)
				bound[st.KeyVar] = true
				if st.ValueVar != "" {
					bound[st.ValueVar] = true
				}
				walkStmts(st.Body)
			case *ast.BlockStmt:
				walkStmts(st.Body)
			case *ast.ThrowStmt:
				walkExpr(st.Value)
			case *ast.TryStmt:
				walkStmts(st.Body)
				if st.Catch != nil {
					bound[st.Catch.ErrVar] = true
					walkStmts(st.Catch.Body)
				}
				walkStmts(st.Finally)
			case *ast.SwitchStmt:
				walkExpr(st.Subject)
				for _, cs := range st.Cases {
					for _, v := range cs.Values {
						walkExpr(v)
					}
					walkStmts(cs.Body)
				}
			case *ast.DeferStmt:
				walkExpr(st.Call)
			}
		}
	}
	walkStmts(body)

	// Sorted for deterministic slot assignment across runs.
	names := make([]string, 0, len(free))
	for name := range free {
		names = append(names, name)
	}
	sort.Strings(names)

	captures := make([]ClosureCapture, 0, len(names))
	for _, name := range names {
		captures = append(captures, ClosureCapture{Name: name, Type: scope[name]})
	}
	return captures
}

// funcProto builds the forward declaration for a CFuncDecl, so its body may
// appear anywhere in the file relative to its call sites.
func funcProto(f *CFuncDecl) *CFuncProto {
	paramTypes := make([]string, len(f.Params))
	for i, p := range f.Params {
		paramTypes[i] = p.Type
	}
	return &CFuncProto{ReturnType: f.ReturnType, Name: f.Name, ParamTypes: paramTypes, Static: f.Static}
}
