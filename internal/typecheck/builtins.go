package typecheck

import "github.com/hemlock-lang/hemlock/internal/types"

// builtinReturn is the call-inference fallback for the built-in
// functions: typeof -> String, len -> I32, i32(x) -> I32, spawn -> Task.
func builtinReturn(name string) (types.CheckedType, bool) {
	switch name {
	case "typeof":
		return types.Simple(types.String), true
	case "len":
		return types.Simple(types.I32), true
	case "i8", "i16", "i32":
		return types.Simple(types.I32), true
	case "i64":
		return types.Simple(types.I64), true
	case "u8", "u16", "u32":
		return types.Simple(types.U32), true
	case "u64":
		return types.Simple(types.U64), true
	case "f32":
		return types.Simple(types.F32), true
	case "f64":
		return types.Simple(types.F64), true
	case "spawn":
		return types.Simple(types.Task), true
	case "print", "puts":
		return types.Simple(types.Void), true
	}
	return types.CheckedType{}, false
}

// MethodSig describes one built-in Array/String method's expected arg
// shape for the validator.
type MethodSig struct {
	MinArgs, MaxArgs int // MaxArgs < 0 means unbounded
	// ArgKind classifies expected arg #i: "int", "string", "elem", "fn", "array", "any".
	ArgKinds []string
	Return   func(recv types.CheckedType) types.CheckedType
}

var arrayMethods = map[string]MethodSig{
	"push":         {MinArgs: 1, MaxArgs: -1, ArgKinds: []string{"elem"}, Return: func(r types.CheckedType) types.CheckedType { return r }},
	"unshift":      {MinArgs: 1, MaxArgs: -1, ArgKinds: []string{"elem"}, Return: func(r types.CheckedType) types.CheckedType { return r }},
	"insert":       {MinArgs: 2, MaxArgs: 2, ArgKinds: []string{"int", "elem"}, Return: func(r types.CheckedType) types.CheckedType { return types.Simple(types.Void) }},
	"pop":          {MinArgs: 0, MaxArgs: 0, Return: elementReturn},
	"shift":        {MinArgs: 0, MaxArgs: 0, Return: elementReturn},
	"first":        {MinArgs: 0, MaxArgs: 0, Return: elementReturn},
	"last":         {MinArgs: 0, MaxArgs: 0, Return: elementReturn},
	"clear":        {MinArgs: 0, MaxArgs: 0, Return: voidReturn},
	"reverse":      {MinArgs: 0, MaxArgs: 0, Return: func(r types.CheckedType) types.CheckedType { return r }},
	"remove":       {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"int"}, Return: voidReturn},
	"slice":        {MinArgs: 0, MaxArgs: 2, ArgKinds: []string{"int", "int"}, Return: func(r types.CheckedType) types.CheckedType { return r }},
	"join":         {MinArgs: 0, MaxArgs: 1, ArgKinds: []string{"string"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.String) }},
	"map":          {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"fn"}, Return: func(types.CheckedType) types.CheckedType { return types.ArrayOf(nil) }},
	"filter":       {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"fn"}, Return: func(r types.CheckedType) types.CheckedType { return r }},
	"reduce":       {MinArgs: 1, MaxArgs: 2, ArgKinds: []string{"fn", "any"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Any) }},
	"contains":     {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"any"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Bool) }},
	"find":         {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"any"}, Return: elementReturn},
	"concat":       {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"array"}, Return: func(r types.CheckedType) types.CheckedType { return r }},
}

var stringMethods = map[string]MethodSig{
	"substr":       {MinArgs: 1, MaxArgs: 2, ArgKinds: []string{"int", "int"}, Return: stringReturn},
	"slice":        {MinArgs: 1, MaxArgs: 2, ArgKinds: []string{"int", "int"}, Return: stringReturn},
	"char_at":      {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"int"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Rune) }},
	"byte_at":      {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"int"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.U8) }},
	"find":         {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"string"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.I32) }},
	"contains":     {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"string"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Bool) }},
	"starts_with":  {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"string"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Bool) }},
	"ends_with":    {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"string"}, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Bool) }},
	"split":        {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"string"}, Return: func(types.CheckedType) types.CheckedType { return types.ArrayOf(strPtr()) }},
	"replace":      {MinArgs: 2, MaxArgs: 2, ArgKinds: []string{"string", "string"}, Return: stringReturn},
	"replace_all":  {MinArgs: 2, MaxArgs: 2, ArgKinds: []string{"string", "string"}, Return: stringReturn},
	"repeat":       {MinArgs: 1, MaxArgs: 1, ArgKinds: []string{"int"}, Return: stringReturn},
	"trim":         {MinArgs: 0, MaxArgs: 0, Return: stringReturn},
	"to_upper":     {MinArgs: 0, MaxArgs: 0, Return: stringReturn},
	"to_lower":     {MinArgs: 0, MaxArgs: 0, Return: stringReturn},
	"chars":        {MinArgs: 0, MaxArgs: 0, Return: func(types.CheckedType) types.CheckedType { return types.ArrayOf(runePtr()) }},
	"bytes":        {MinArgs: 0, MaxArgs: 0, Return: func(types.CheckedType) types.CheckedType { return types.ArrayOf(u8Ptr()) }},
	"to_bytes":     {MinArgs: 0, MaxArgs: 0, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Buffer) }},
	"deserialize":  {MinArgs: 0, MaxArgs: 0, Return: func(types.CheckedType) types.CheckedType { return types.Simple(types.Any) }},
}

func elementReturn(r types.CheckedType) types.CheckedType {
	if r.Kind == types.Array && r.Element != nil {
		return *r.Element
	}
	return types.Simple(types.Any)
}

func voidReturn(types.CheckedType) types.CheckedType  { return types.Simple(types.Void) }
func stringReturn(types.CheckedType) types.CheckedType { return types.Simple(types.String) }

func strPtr() *types.CheckedType  { t := types.Simple(types.String); return &t }
func runePtr() *types.CheckedType { t := types.Simple(types.Rune); return &t }
func u8Ptr() *types.CheckedType   { t := types.Simple(types.U8); return &t }
