package codegen

import (
	"fmt"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/module"
	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// LowerModule lowers an entire checked program to the final ordered
// declaration list cprint.Program will render: a forward declaration for
// every function (top-level and closure alike) so call order in the
// source never constrains C declaration order, then the module-level
// globals, the top-level function bodies, every closure body collected
// along the way, and one init function that performs the module's
// one-time setup in source order: imported-module initialization, object
// type registration, enum constants, and the top-level statement stream.
func LowerModule(reg *types.Registry, exprTypes map[ast.Expr]types.CheckedType, prog *ast.Program, modulePrefix string, cache module.Cache, optimize bool) []CDecl {
	c := NewContext(reg, modulePrefix)
	c.Optimize = optimize
	c.SetExprTypes(exprTypes)

	outerEnv := make(map[string]types.CheckedType)
	for name, sig := range reg.Functions {
		outerEnv[name] = funcSigType(sig)
	}
	c.SetOuterEnv(outerEnv)

	var globalDecls []CDecl
	var funcDecls []CDecl
	var initBody []CStmt
	initedModules := make(map[string]bool)

	// Pre-scan so a top-level statement may reference a module variable
	// declared later in the file (the init stream still runs in source
	// order; only name resolution needs the full set up front).
	for _, s := range prog.Statements {
		stmt := s
		if exp, ok := stmt.(*ast.ExportStmt); ok {
			stmt = exp.Decl
		}
		switch st := stmt.(type) {
		case *ast.LetStmt:
			c.MarkGlobal(st.Name)
			globalDecls = append(globalDecls, &CGlobalVarDecl{Type: ValueType, Name: c.Mangle(st.Name)})
		case *ast.ConstStmt:
			c.MarkGlobal(st.Name)
			globalDecls = append(globalDecls, &CGlobalVarDecl{Type: ValueType, Name: c.Mangle(st.Name)})
		case *ast.ImportFfiStmt:
			c.MarkGlobal(st.Name)
			globalDecls = append(globalDecls, &CGlobalVarDecl{Type: ValueType, Name: c.Mangle(st.Name)})
		case *ast.EnumStmt:
			c.MarkGlobal(st.Name)
			globalDecls = append(globalDecls, &CGlobalVarDecl{Type: ValueType, Name: c.Mangle(st.Name)})
		case *ast.ImportStmt:
			if st.Kind == ast.ImportNamespace {
				c.MarkGlobal(st.Alias)
				globalDecls = append(globalDecls, &CGlobalVarDecl{Type: ValueType, Name: c.Mangle(st.Alias)})
			}
		}
	}

	for _, s := range prog.Statements {
		stmt := s
		if exp, ok := stmt.(*ast.ExportStmt); ok {
			stmt = exp.Decl
		}
		switch st := stmt.(type) {
		case *ast.FuncDecl:
			sig, ok := reg.LookupFunction(st.Name)
			if !ok {
				continue
			}
			funcDecls = append(funcDecls, LowerFunc(c, st, sig))
		case *ast.DefineObjectStmt:
			c.PushPrelude()
			regStmt := LowerObjectDef(c, st)
			initBody = append(initBody, c.PopPrelude()...)
			initBody = append(initBody, regStmt)
		case *ast.EnumStmt:
			initBody = append(initBody, LowerEnum(c, st))
		case *ast.ImportStmt:
			initBody = append(initBody, lowerImport(c, st, cache, initedModules)...)
		case *ast.ImportFfiStmt:
			initBody = append(initBody, lowerImportFfi(c, st))
		case *ast.ExternFnStmt:
			// no C definition: the runtime/FFI layer provides the symbol.
		default:
			// stmt, not s: an exported let/const lowers as its inner
			// declaration, against the already-mangled global.
			exitTopLevel := c.EnterTopLevel()
			initBody = append(initBody, LowerStmt(c, stmt)...)
			exitTopLevel()
		}
	}

	closureDecls := c.TakeClosureDecls()

	initBody = append(initBody, &CReturn{})
	initFunc := &CFuncDecl{
		ReturnType: "void",
		Name:       modulePrefix + runtimeabi.ModuleInitSuffix,
		Body:       initBody,
	}

	var protos []CDecl
	for _, d := range funcDecls {
		if f, ok := d.(*CFuncDecl); ok {
			protos = append(protos, funcProto(f))
		}
	}
	for _, d := range closureDecls {
		if f, ok := d.(*CFuncDecl); ok {
			protos = append(protos, funcProto(f))
		}
	}
	protos = append(protos, funcProto(initFunc))

	var decls []CDecl
	decls = append(decls, protos...)
	decls = append(decls, globalDecls...)
	decls = append(decls, funcDecls...)
	decls = append(decls, closureDecls...)
	decls = append(decls, initFunc)

	return decls
}

// lowerImport resolves the target through the module cache (which memoizes
// compilation, so a doubly-imported path compiles once) and binds the
// imported names in one of three forms: a namespace object
// carrying every export, a star import binding each export by its own
// name, or a named list with optional aliasing. The imported module's init
// function runs before this module's remaining init statements, once per
// module.
func lowerImport(c *Context, st *ast.ImportStmt, cache module.Cache, inited map[string]bool) []CStmt {
	if cache == nil {
		return nil
	}
	mod, err := cache.Resolve(st.Path)
	if err != nil || mod == nil {
		// Resolution failures were already reported as diagnostics by the
		// driver; emit nothing for the unresolvable binding.
		return nil
	}

	var out []CStmt
	if !inited[mod.Prefix] {
		inited[mod.Prefix] = true
		out = append(out, &CExprStmt{X: fnCall(mod.Prefix + runtimeabi.ModuleInitSuffix)})
	}

	switch st.Kind {
	case ast.ImportNamespace:
		c.MarkGlobal(st.Alias)
		ns := &CIdent{Name: c.Mangle(st.Alias)}
		out = append(out, &CExprStmt{X: &CAssign{
			Target: ns,
			Value:  fnCall(runtimeabi.FnValObject, &CStringLit{Value: ""}, &CIntLit{Value: "0"}),
			Op:     "=",
		}})
		for _, exp := range mod.Exports {
			out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnObjectSetField,
				ns, &CStringLit{Value: exp.Name}, &CIdent{Name: mod.Prefix + exp.Name})})
		}
	case ast.ImportStar:
		for _, exp := range mod.Exports {
			c.BindImport(exp.Name, mod.Prefix+exp.Name)
		}
	case ast.ImportNamed:
		for _, n := range st.Names {
			local := n.Name
			if n.Alias != "" {
				local = n.Alias
			}
			c.BindImport(local, mod.Prefix+n.Name)
		}
	}
	return out
}

// lowerImportFfi binds a foreign function loaded at init time: the global
// holds a callable closure value wrapping the dlopen'd symbol, with
// parameter and return marshalling described by HML_FFI_* tags.
func lowerImportFfi(c *Context, st *ast.ImportFfiStmt) CStmt {
	args := []CExpr{
		&CStringLit{Value: st.LibraryPath},
		&CStringLit{Value: st.Name},
		&CIdent{Name: runtimeabi.FfiTag(resolveDeclaredType(st.Return).Kind)},
		&CIntLit{Value: fmt.Sprintf("%d", len(st.Params))},
	}
	for _, p := range st.Params {
		args = append(args, &CIdent{Name: runtimeabi.FfiTag(resolveDeclaredType(p).Kind)})
	}
	return &CExprStmt{X: &CAssign{
		Target: &CIdent{Name: c.Mangle(st.Name)},
		Value:  &CCall{Func: &CIdent{Name: runtimeabi.FnFfiLoad}, Args: args},
		Op:     "=",
	}}
}

func funcSigType(sig *types.FuncSig) types.CheckedType {
	ret := sig.Return
	return types.CheckedType{Kind: types.Function, Params: append([]types.CheckedType(nil), sig.ParamTypes...), Return: &ret, HasRest: sig.HasRest}
}
