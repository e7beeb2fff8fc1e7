package codegen

import (
	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/escape"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// LowerFunc lowers one top-level function declaration to a CFuncDecl,
// first running the escape analyzer over its body to build the unbox
// table this function's statement/expression lowering consults, and the
// tail-call analyzer to decide whether the body becomes a real function
// or a loop.
func LowerFunc(c *Context, f *ast.FuncDecl, sig *types.FuncSig) *CFuncDecl {
	declared := make(map[string]types.CheckedType, len(f.Params))
	for i, p := range f.Params {
		if i < len(sig.ParamTypes) {
			declared[p.Name] = sig.ParamTypes[i]
		}
	}
	collectLocalDeclaredTypes(f.Body, declared)

	unbox := escape.Analyze(f.Body, declared)
	prevUnbox := c.unbox
	c.SetUnboxTable(unbox)
	defer c.SetUnboxTable(prevUnbox)

	prevFn := c.EnterFunc(c.Mangle(f.Name))
	defer c.ExitFunc(prevFn)

	prevScope := c.SetLocalScope(declared)
	defer c.SetLocalScope(prevScope)

	isVoid := sig.Return.Kind == types.Void
	restoreFrame := c.EnterFuncFrame(bodyHasDefer(f.Body), isVoid)
	defer restoreFrame()

	params := make([]CParam, len(f.Params))
	paramNames := make([]string, len(f.Params))
	for i, p := range f.Params {
		paramNames[i] = p.Name
		params[i] = CParam{Type: c.CType(p.Name, declared[p.Name]), Name: sanitizeCName(p.Name)}
	}
	retType := ValueType
	if isVoid {
		retType = "void"
	}

	tail := escape.AnalyzeTailCalls(f.Name, paramNames, f.Body)
	if tail.TailCalls != nil {
		return lowerTailRecursiveFunc(c, f, params, retType, paramNames)
	}

	body := LowerBlock(c, f.Body)
	return &CFuncDecl{ReturnType: retType, Name: c.Mangle(f.Name), Params: params, Body: body}
}

// lowerTailRecursiveFunc rewrites a self-tail-recursive function into a
// single C function containing a labeled loop: every tail-position
// self-call becomes a parameter reassignment plus `goto` back to the top,
// eliminating the call/return overhead and unbounded stack growth a
// literal translation would have.
func lowerTailRecursiveFunc(c *Context, f *ast.FuncDecl, params []CParam, retType string, paramNames []string) *CFuncDecl {
	label := c.NewLabel()
	restore := c.EnterTailLoop(f.Name, label, paramNames)
	defer restore()

	body := append([]CStmt{&CLabel{Name: label}}, LowerBlock(c, f.Body)...)
	return &CFuncDecl{ReturnType: retType, Name: c.Mangle(f.Name), Params: params, Body: body}
}

// bodyHasDefer reports whether any statement in the function body (at any
// nesting depth short of a nested function literal) pushes a runtime
// defer, which obliges every exit path to run the defer stack.
func bodyHasDefer(stmts []ast.Stmt) bool {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.DeferStmt:
			return true
		case *ast.IfStmt:
			if bodyHasDefer(st.Then) || bodyHasDefer(st.Else) {
				return true
			}
		case *ast.WhileStmt:
			if bodyHasDefer(st.Body) {
				return true
			}
		case *ast.ForStmt:
			if bodyHasDefer(st.Body) {
				return true
			}
		case *ast.ForInStmt:
			if bodyHasDefer(st.Body) {
				return true
			}
		case *ast.BlockStmt:
			if bodyHasDefer(st.Body) {
				return true
			}
		case *ast.TryStmt:
			if bodyHasDefer(st.Body) || bodyHasDefer(st.Finally) {
				return true
			}
			if st.Catch != nil && bodyHasDefer(st.Catch.Body) {
				return true
			}
		case *ast.SwitchStmt:
			for _, cs := range st.Cases {
				if bodyHasDefer(cs.Body) {
					return true
				}
			}
		}
	}
	return false
}

// collectLocalDeclaredTypes walks the body recording every binding the
// function introduces: annotated lets carry their resolved type, unannotated
// ones record Unknown (the entry still marks the name as function-local for
// identifier resolution and closure capture analysis).
func collectLocalDeclaredTypes(stmts []ast.Stmt, out map[string]types.CheckedType) {
	record := func(name string, t ast.Type) {
		if t != nil {
			out[name] = resolveDeclaredType(t)
		} else if _, seen := out[name]; !seen {
			out[name] = types.Simple(types.Unknown)
		}
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.LetStmt:
			record(st.Name, st.Type)
		case *ast.ConstStmt:
			record(st.Name, st.Type)
		case *ast.IfStmt:
			collectLocalDeclaredTypes(st.Then, out)
			collectLocalDeclaredTypes(st.Else, out)
		case *ast.WhileStmt:
			collectLocalDeclaredTypes(st.Body, out)
		case *ast.ForStmt:
			if let, ok := st.Init.(*ast.LetStmt); ok {
				record(let.Name, let.Type)
			}
			collectLocalDeclaredTypes(st.Body, out)
		case *ast.ForInStmt:
			record(st.KeyVar, nil)
			if st.ValueVar != "" {
				record(st.ValueVar, nil)
			}
			collectLocalDeclaredTypes(st.Body, out)
		case *ast.BlockStmt:
			collectLocalDeclaredTypes(st.Body, out)
		case *ast.TryStmt:
			collectLocalDeclaredTypes(st.Body, out)
			if st.Catch != nil {
				record(st.Catch.ErrVar, nil)
				collectLocalDeclaredTypes(st.Catch.Body, out)
			}
			collectLocalDeclaredTypes(st.Finally, out)
		case *ast.SwitchStmt:
			for _, cs := range st.Cases {
				collectLocalDeclaredTypes(cs.Body, out)
			}
		}
	}
}

var primitiveKindsLocal = map[string]types.Kind{
	"i8": types.I8, "i16": types.I16, "i32": types.I32, "i64": types.I64,
	"u8": types.U8, "u16": types.U16, "u32": types.U32, "u64": types.U64,
	"f32": types.F32, "f64": types.F64, "bool": types.Bool,
	"string": types.String, "rune": types.Rune, "void": types.Void,
	"any": types.Any,
}

// resolveDeclaredType mirrors the type checker's annotation resolution for
// the shapes the code generator needs directly: native scalar kinds for
// unboxing, custom/array shapes for the declared-type guard calls.
func resolveDeclaredType(t ast.Type) types.CheckedType {
	switch n := t.(type) {
	case ast.PrimitiveType:
		if k, ok := primitiveKindsLocal[n.Name]; ok {
			return types.CheckedType{Kind: k, Nullable: n.Nullable}
		}
	case ast.ArrayType:
		elem := resolveDeclaredType(n.Element)
		ct := types.ArrayOf(&elem)
		ct.Nullable = n.Nullable
		return ct
	case ast.NamedType:
		ct := types.CustomNamed(n.Name)
		ct.Nullable = n.Nullable
		return ct
	case ast.ObjectType:
		return types.CheckedType{Kind: types.Object, Nullable: n.Nullable}
	case ast.BufferType:
		return types.CheckedType{Kind: types.Buffer, Nullable: n.Nullable}
	case ast.PtrType:
		return types.CheckedType{Kind: types.Ptr, Nullable: n.Nullable}
	case ast.FunctionType:
		params := make([]types.CheckedType, len(n.Params))
		for i, p := range n.Params {
			params[i] = resolveDeclaredType(p)
		}
		ct := types.FuncType(params, resolveDeclaredType(n.Return), n.HasRest)
		ct.Nullable = n.Nullable
		return ct
	}
	return types.Simple(types.Any)
}
