// Package types implements the analyzer's internal semantic type system
// (CheckedType), distinct from the surface ast.Type annotations it is
// derived from.
package types

import "fmt"

// Kind enumerates every CheckedType variant.
type Kind int

const (
	Unknown Kind = iota
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool
	String
	Rune
	Null
	Ptr
	Buffer
	Array
	Object
	Custom
	Function
	Task
	Channel
	File
	Enum
	Void
	Any
	Numeric // abstract: accepts any concrete numeric width
	Integer // abstract: accepts any concrete integer width
)

var kindNames = map[Kind]string{
	Unknown: "unknown", I8: "i8", I16: "i16", I32: "i32", I64: "i64",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	F32: "f32", F64: "f64", Bool: "bool", String: "string", Rune: "rune",
	Null: "null", Ptr: "ptr", Buffer: "buffer", Array: "array", Object: "object",
	Custom: "custom", Function: "function", Task: "task", Channel: "channel",
	File: "file", Enum: "enum", Void: "void", Any: "any",
	Numeric: "numeric", Integer: "integer",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "?"
}

// CheckedType is the analyzer's semantic type for a single expression,
// variable, or signature component.
type CheckedType struct {
	Kind     Kind
	Nullable bool

	// TypeName names a Custom object or Enum.
	TypeName string

	// Element is the element type of an Array.
	Element *CheckedType

	// Function-only fields.
	Params   []CheckedType
	Return   *CheckedType
	HasRest  bool
}

// String renders a human-readable type name used in diagnostics.
func (t CheckedType) String() string {
	s := t.Kind.String()
	switch t.Kind {
	case Custom, Enum:
		if t.TypeName != "" {
			s = t.TypeName
		}
	case Array:
		if t.Element != nil {
			s = fmt.Sprintf("%s[]", t.Element.String())
		} else {
			s = "array"
		}
	case Function:
		s = "function"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// --- Constructors ---

func Simple(k Kind) CheckedType { return CheckedType{Kind: k} }

func NullableOf(t CheckedType) CheckedType {
	t.Nullable = true
	return t
}

func ArrayOf(elem *CheckedType) CheckedType {
	return CheckedType{Kind: Array, Element: elem}
}

func CustomNamed(name string) CheckedType {
	return CheckedType{Kind: Custom, TypeName: name}
}

func EnumNamed(name string) CheckedType {
	return CheckedType{Kind: Enum, TypeName: name}
}

func FuncType(params []CheckedType, ret CheckedType, hasRest bool) CheckedType {
	r := ret
	return CheckedType{Kind: Function, Params: params, Return: &r, HasRest: hasRest}
}

// --- Predicates ---

// IsIntegerKind reports whether k is a concrete or abstract integer width.
func IsIntegerKind(k Kind) bool {
	switch k {
	case I8, I16, I32, I64, U8, U16, U32, U64, Integer:
		return true
	}
	return false
}

// IsFloatKind reports whether k is a concrete floating-point width.
func IsFloatKind(k Kind) bool {
	return k == F32 || k == F64
}

// IsNumericKind reports whether k is any numeric (integer or float) kind.
func IsNumericKind(k Kind) bool {
	return IsIntegerKind(k) || IsFloatKind(k) || k == Numeric
}

func (t CheckedType) IsInteger() bool { return IsIntegerKind(t.Kind) }
func (t CheckedType) IsFloat() bool   { return IsFloatKind(t.Kind) }
func (t CheckedType) IsNumeric() bool { return IsNumericKind(t.Kind) }

// IsPermissive reports whether t is one of the two permissive escape
// hatches used during inference.
func (t CheckedType) IsPermissive() bool {
	return t.Kind == Unknown || t.Kind == Any
}

// IsUnboxable reports whether t's kind can ever back a native (unboxed) slot.
func (t CheckedType) IsUnboxable() bool {
	switch t.Kind {
	case I8, I16, I32, I64, U8, U16, U32, U64, F32, F64, Bool:
		return true
	}
	return false
}

// Equals reports structural equality (used by assignability rule 3 and
// custom-type matching, rule 9).
func Equals(a, b CheckedType) bool {
	if a.Kind != b.Kind || a.Nullable != b.Nullable {
		return false
	}
	switch a.Kind {
	case Custom, Enum:
		return a.TypeName == b.TypeName
	case Array:
		if a.Element == nil || b.Element == nil {
			return a.Element == b.Element
		}
		return Equals(*a.Element, *b.Element)
	case Function:
		if len(a.Params) != len(b.Params) || a.HasRest != b.HasRest {
			return false
		}
		for i := range a.Params {
			if !Equals(a.Params[i], b.Params[i]) {
				return false
			}
		}
		if (a.Return == nil) != (b.Return == nil) {
			return false
		}
		if a.Return != nil && !Equals(*a.Return, *b.Return) {
			return false
		}
		return true
	}
	return true
}

// numericRank orders numeric kinds for widening in Common. Larger wins;
// any float outranks any integer.
var numericRank = map[Kind]int{
	I8: 1, U8: 1, I16: 2, U16: 2, I32: 3, U32: 3,
	I64: 4, U64: 4, Integer: 4,
	F32: 5, F64: 6, Numeric: 6,
}

// Common merges two operand types for arithmetic, ternary, and
// null-coalesce inference: permissive sides defer, numeric widths widen
// (floats dominate), string dominates scalars, anything else is Any.
func Common(a, b CheckedType) CheckedType {
	if a.IsPermissive() {
		return b
	}
	if b.IsPermissive() {
		return a
	}
	if Equals(a, b) {
		return a
	}
	if a.IsNumeric() && b.IsNumeric() {
		ra, oka := numericRank[a.Kind]
		rb, okb := numericRank[b.Kind]
		if oka && okb {
			if ra >= rb {
				return a
			}
			return b
		}
		return Simple(F64)
	}
	if a.Kind == String || b.Kind == String {
		return Simple(String)
	}
	return Simple(Any)
}
