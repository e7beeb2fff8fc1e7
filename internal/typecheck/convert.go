package typecheck

import (
	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/types"
)

var primitiveKinds = map[string]types.Kind{
	"i8": types.I8, "i16": types.I16, "i32": types.I32, "i64": types.I64,
	"u8": types.U8, "u16": types.U16, "u32": types.U32, "u64": types.U64,
	"f32": types.F32, "f64": types.F64,
	"bool": types.Bool, "string": types.String, "rune": types.Rune,
	"void": types.Void, "any": types.Any,
}

// resolveType converts a surface ast.Type annotation into the analyzer's
// internal CheckedType. An untyped/inferred annotation maps to Unknown.
func resolveType(t ast.Type) types.CheckedType {
	if t == nil {
		return types.Simple(types.Unknown)
	}
	switch n := t.(type) {
	case ast.PrimitiveType:
		k, ok := primitiveKinds[n.Name]
		if !ok {
			k = types.Any
		}
		ct := types.Simple(k)
		ct.Nullable = n.Nullable
		return ct
	case ast.ArrayType:
		elem := resolveType(n.Element)
		ct := types.ArrayOf(&elem)
		ct.Nullable = n.Nullable
		return ct
	case ast.NamedType:
		ct := types.CustomNamed(n.Name)
		ct.Nullable = n.Nullable
		return ct
	case ast.ObjectType:
		ct := types.Simple(types.Object)
		ct.Nullable = n.Nullable
		return ct
	case ast.PtrType:
		ct := types.Simple(types.Ptr)
		ct.Nullable = n.Nullable
		return ct
	case ast.BufferType:
		ct := types.Simple(types.Buffer)
		ct.Nullable = n.Nullable
		return ct
	case ast.FunctionType:
		params := make([]types.CheckedType, len(n.Params))
		for i, p := range n.Params {
			params[i] = resolveType(p)
		}
		ret := resolveType(n.Return)
		ct := types.FuncType(params, ret, n.HasRest)
		ct.Nullable = n.Nullable
		return ct
	case ast.InferredType:
		return types.Simple(types.Unknown)
	default:
		return types.Simple(types.Any)
	}
}
