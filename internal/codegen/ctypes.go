package codegen

import "github.com/hemlock-lang/hemlock/internal/types"

// ValueType is the boxed, reference-counted runtime representation every
// Hemlock value has by default.
const ValueType = "HmlValue"

// NativeCType returns the unboxed C type backing an unboxed variable of
// kind k, matching the widths the runtime's typed fast-path functions
// operate on.
func NativeCType(k types.Kind) string {
	switch k {
	case types.I8:
		return "int8_t"
	case types.I16:
		return "int16_t"
	case types.I32:
		return "int32_t"
	case types.I64:
		return "int64_t"
	case types.U8:
		return "uint8_t"
	case types.U16:
		return "uint16_t"
	case types.U32:
		return "uint32_t"
	case types.U64:
		return "uint64_t"
	case types.F32:
		return "float"
	case types.F64:
		return "double"
	case types.Bool:
		return "bool"
	}
	return ValueType
}

// CType returns the C type a surface CheckedType is represented as: its
// native type if it was promoted to an unboxed slot by the escape
// analyzer, otherwise the generic boxed HmlValue.
func (c *Context) CType(name string, t types.CheckedType) string {
	if native, ok := c.UnboxedKind(name); ok {
		return NativeCType(native)
	}
	return ValueType
}
