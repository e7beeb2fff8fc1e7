package typecheck

import (
	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// registerPass is pass 1: every top-level function signature, object
// definition, and enum is registered before any body is type-checked, so
// forward references resolve.
func (c *Checker) registerPass(prog *ast.Program) {
	for _, s := range prog.Statements {
		c.registerStmt(s)
	}
}

func (c *Checker) registerStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.FuncDecl:
		c.registerFunc(st)
	case *ast.ExternFnStmt:
		c.registerExternFn(st)
	case *ast.ImportFfiStmt:
		c.registerImportFfi(st)
	case *ast.DefineObjectStmt:
		c.registerObject(st)
	case *ast.EnumStmt:
		c.registerEnum(st)
	case *ast.ExportStmt:
		c.registerStmt(st.Decl)
	}
}

func (c *Checker) registerFunc(f *ast.FuncDecl) {
	sig := &types.FuncSig{
		Name:         f.Name,
		ParamNames:   make([]string, len(f.Params)),
		ParamTypes:   make([]types.CheckedType, len(f.Params)),
		Optional:     make([]bool, len(f.Params)),
		Return:       resolveType(f.Return),
		HasRest:      f.HasRest,
		IsAsync:      f.IsAsync,
		DeclaredLine: f.Line(),
	}
	required := 0
	for i, p := range f.Params {
		sig.ParamNames[i] = p.Name
		sig.ParamTypes[i] = resolveType(p.Type)
		sig.Optional[i] = p.Optional
		if !p.Optional {
			required++
		}
	}
	sig.NumRequired = required
	c.reg.RegisterFunction(sig)
}

func (c *Checker) registerExternFn(f *ast.ExternFnStmt) {
	sig := &types.FuncSig{
		Name:         f.Name,
		ParamTypes:   make([]types.CheckedType, len(f.Params)),
		Optional:     make([]bool, len(f.Params)),
		Return:       resolveType(f.Return),
		HasRest:      f.HasRest,
		DeclaredLine: f.Line(),
	}
	for i, p := range f.Params {
		sig.ParamTypes[i] = resolveType(p.Type)
	}
	sig.NumRequired = len(f.Params)
	c.reg.RegisterFunction(sig)
}

// registerImportFfi records a foreign function's signature so calls to it
// type-check like any other registered function; marshalling is codegen's
// concern.
func (c *Checker) registerImportFfi(f *ast.ImportFfiStmt) {
	sig := &types.FuncSig{
		Name:         f.Name,
		ParamTypes:   make([]types.CheckedType, len(f.Params)),
		Optional:     make([]bool, len(f.Params)),
		Return:       resolveType(f.Return),
		DeclaredLine: f.Line(),
	}
	for i, p := range f.Params {
		sig.ParamTypes[i] = resolveType(p)
	}
	sig.NumRequired = len(f.Params)
	c.reg.RegisterFunction(sig)
}

func (c *Checker) registerObject(o *ast.DefineObjectStmt) {
	def := &types.ObjectDef{Name: o.Name}
	for _, f := range o.Fields {
		def.Fields = append(def.Fields, types.ObjectField{
			Name:     f.Name,
			Type:     resolveType(f.Type),
			Optional: f.Optional,
		})
	}
	c.reg.RegisterObject(def)
}

func (c *Checker) registerEnum(e *ast.EnumStmt) {
	def := &types.EnumDef{Name: e.Name}
	for _, v := range e.Variants {
		def.Variants = append(def.Variants, v.Name)
	}
	c.reg.RegisterEnum(def)
}
