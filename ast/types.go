package ast

// Type is the surface-syntax type annotation AST (distinct from the
// analyzer's internal types.CheckedType, which is derived from it).
type Type interface {
	typ()
}

// PrimitiveType covers every fixed-width numeric kind plus bool/string/rune/void/any.
type PrimitiveType struct {
	Name     string // "i8".."u64","f32","f64","bool","string","rune","void","any"
	Nullable bool
}

func (PrimitiveType) typ() {}

type ArrayType struct {
	Element  Type
	Nullable bool
}

func (ArrayType) typ() {}

// NamedType refers to a user-defined object or enum by name.
type NamedType struct {
	Name     string
	Nullable bool
}

func (NamedType) typ() {}

// ObjectType is the anonymous/generic "object" type with no declared shape.
type ObjectType struct {
	Nullable bool
}

func (ObjectType) typ() {}

type PtrType struct {
	Pointee  Type
	Nullable bool
}

func (PtrType) typ() {}

type BufferType struct {
	Nullable bool
}

func (BufferType) typ() {}

type FunctionType struct {
	Params   []Type
	HasRest  bool
	Return   Type
	Nullable bool
}

func (FunctionType) typ() {}

// InferredType stands for a missing annotation; the checker infers it.
type InferredType struct{}

func (InferredType) typ() {}
