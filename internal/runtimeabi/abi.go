// Package runtimeabi names the fixed C runtime library contract that
// generated code is emitted against. Nothing here executes; it is the
// single source of truth for the symbol names the code generator prints,
// so a renamed runtime function only needs to change in one place.
package runtimeabi

import "github.com/hemlock-lang/hemlock/internal/types"

// Value construction and lifetime.
const (
	FnValI32    = "hml_val_i32"
	FnValI64    = "hml_val_i64"
	FnValU32    = "hml_val_u32"
	FnValU64    = "hml_val_u64"
	FnValF32    = "hml_val_f32"
	FnValF64    = "hml_val_f64"
	FnValBool   = "hml_val_bool"
	FnValString = "hml_val_string"
	FnValRune   = "hml_val_rune"
	FnValNull   = "hml_val_null"
	FnValArray  = "hml_val_array"
	FnValObject = "hml_val_object"

	FnRetain          = "hml_retain"
	FnRelease         = "hml_release"
	FnRetainIfNeeded  = "hml_retain_if_needed"
	FnReleaseIfNeeded = "hml_release_if_needed"
)

// Coercions, predicates, and declared-type enforcement.
const (
	FnToI32              = "hml_to_i32"
	FnToI64              = "hml_to_i64"
	FnToF64              = "hml_to_f64"
	FnToBool             = "hml_to_bool"
	FnToString           = "hml_to_string"
	FnIsNull             = "hml_is_null"
	FnTypeOf             = "hml_typeof"
	FnConvertToType      = "hml_convert_to_type"
	FnValidateObjectType = "hml_validate_object_type"
	FnValidateTypedArray = "hml_validate_typed_array"
	FnRuntimeError       = "hml_runtime_error"
)

// Generic boxed arithmetic: hml_binary_op(OP, l, r) / hml_unary_op(OP, v)
// dispatch on the operand tags at runtime. The HML_OP_* names are the
// runtime's operator enum.
const (
	FnBinaryOp = "hml_binary_op"
	FnUnaryOp  = "hml_unary_op"

	OpAdd    = "HML_OP_ADD"
	OpSub    = "HML_OP_SUB"
	OpMul    = "HML_OP_MUL"
	OpDiv    = "HML_OP_DIV"
	OpMod    = "HML_OP_MOD"
	OpLt     = "HML_OP_LT"
	OpLe     = "HML_OP_LE"
	OpGt     = "HML_OP_GT"
	OpGe     = "HML_OP_GE"
	OpEq     = "HML_OP_EQ"
	OpNe     = "HML_OP_NE"
	OpBitAnd = "HML_OP_BIT_AND"
	OpBitOr  = "HML_OP_BIT_OR"
	OpBitXor = "HML_OP_BIT_XOR"
	OpLshift = "HML_OP_LSHIFT"
	OpRshift = "HML_OP_RSHIFT"
	OpNeg    = "HML_OP_NEG"
	OpNot    = "HML_OP_NOT"
	OpBitNot = "HML_OP_BIT_NOT"
)

// Typed fast-path predicates and intrinsics. When both operands of a
// binary operator are statically inferred (or dynamically proven via
// hml_both_i32/hml_both_i64) to be the same integer width, the generated
// code calls the width-specific intrinsic instead of the generic
// hml_binary_op dispatch.
const (
	FnBothI32 = "hml_both_i32"
	FnBothI64 = "hml_both_i64"
)

// I32Intrinsics and I64Intrinsics map a surface operator to its typed
// fast-path runtime function. `/` is deliberately absent: division always
// produces F64 and takes the generic path.
var I32Intrinsics = map[string]string{
	"+": "hml_i32_add", "-": "hml_i32_sub", "*": "hml_i32_mul", "%": "hml_i32_mod",
	"<": "hml_i32_lt", "<=": "hml_i32_le", ">": "hml_i32_gt", ">=": "hml_i32_ge",
	"==": "hml_i32_eq", "!=": "hml_i32_ne",
	"&": "hml_i32_bit_and", "|": "hml_i32_bit_or", "^": "hml_i32_bit_xor",
	"<<": "hml_i32_lshift", ">>": "hml_i32_rshift",
}

var I64Intrinsics = map[string]string{
	"+": "hml_i64_add", "-": "hml_i64_sub", "*": "hml_i64_mul", "%": "hml_i64_mod",
	"<": "hml_i64_lt", "<=": "hml_i64_le", ">": "hml_i64_gt", ">=": "hml_i64_ge",
	"==": "hml_i64_eq", "!=": "hml_i64_ne",
	"&": "hml_i64_bit_and", "|": "hml_i64_bit_or", "^": "hml_i64_bit_xor",
	"<<": "hml_i64_lshift", ">>": "hml_i64_rshift",
}

// BinaryOpName maps a surface operator to its HML_OP_* enum constant for
// the generic hml_binary_op path.
var BinaryOpName = map[string]string{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe, "==": OpEq, "!=": OpNe,
	"&": OpBitAnd, "|": OpBitOr, "^": OpBitXor, "<<": OpLshift, ">>": OpRshift,
}

// Container operations.
const (
	FnArrayPush       = "hml_array_push"
	FnArrayGet        = "hml_array_get"
	FnArraySet        = "hml_array_set"
	FnArrayLength     = "hml_array_length"
	FnArrayGetI32Fast = "hml_array_get_i32_fast"
	FnArraySetI32Fast = "hml_array_set_i32_fast"

	FnObjectSetField         = "hml_object_set_field"
	FnObjectGetField         = "hml_object_get_field"
	FnObjectGetFieldRequired = "hml_object_get_field_required"
	FnObjectKeyAt            = "hml_object_key_at"
	FnObjectValueAt          = "hml_object_value_at"
	FnObjectNumFields        = "hml_object_num_fields"

	FnStringConcat        = "hml_string_concat"
	FnStringConcat3       = "hml_string_concat3"
	FnStringConcat4       = "hml_string_concat4"
	FnStringConcat5       = "hml_string_concat5"
	FnStringAppendInplace = "hml_string_append_inplace"
	FnStringLength        = "hml_string_length"
	FnStringByteLength    = "hml_string_byte_length"
	FnStringIndex         = "hml_string_index"
	FnStringRuneAt        = "hml_string_rune_at"
	FnStringCharCount     = "hml_string_char_count"

	FnBufferGet      = "hml_buffer_get"
	FnBufferSet      = "hml_buffer_set"
	FnBufferCapacity = "hml_buffer_capacity"

	FnPtrIndex = "hml_ptr_index"

	FnSocketFd      = "hml_socket_fd"
	FnSocketAddress = "hml_socket_address"
	FnSocketPort    = "hml_socket_port"
	FnSocketClosed  = "hml_socket_closed"

	FnPrint = "hml_print"

	// FnCallMethod is the generic fallback for the built-in Array/String
	// methods that have no dedicated runtime symbol of their own: the
	// runtime looks the method up by name and applies it.
	FnCallMethod = "hml_call_method"
)

// Control flow: setjmp-based exceptions, the runtime defer stack, and the
// task primitives behind spawn/await.
const (
	FnThrow             = "hml_throw"
	FnExceptionPush     = "hml_exception_push"
	FnExceptionPop      = "hml_exception_pop"
	FnExceptionGetValue = "hml_exception_get_value"

	FnDeferPushCall         = "hml_defer_push_call"
	FnDeferPushCallWithArgs = "hml_defer_push_call_with_args"
	FnDeferExecuteAll       = "hml_defer_execute_all"

	FnSpawn = "hml_spawn"
	FnJoin  = "hml_join"
)

// Closures: a function pointer plus an indexed heap environment shared by
// reference.
const (
	FnClosureEnvNew = "hml_closure_env_new"
	FnClosureEnvSet = "hml_closure_env_set"
	FnClosureEnvGet = "hml_closure_env_get"

	FnValFunction            = "hml_val_function"
	FnValFunctionRest        = "hml_val_function_rest"
	FnValFunctionWithEnv     = "hml_val_function_with_env"
	FnValFunctionWithEnvRest = "hml_val_function_with_env_rest"

	FnCallFunction = "hml_call_function"
)

// Module and FFI initialization.
const (
	// ModuleInitSuffix: every compiled module emits "<prefix>init", called
	// once by the host before any of the module's exports are used.
	ModuleInitSuffix = "init"

	FnRegisterObjectType = "hml_register_object_type"
	FnFfiLoad            = "hml_ffi_load"
)

// Runtime type tags, the `.type` field values of a tagged HmlValue.
const (
	TagI32    = "HML_VAL_I32"
	TagI64    = "HML_VAL_I64"
	TagF64    = "HML_VAL_F64"
	TagBool   = "HML_VAL_BOOL"
	TagString = "HML_VAL_STRING"
	TagRune   = "HML_VAL_RUNE"
	TagNull   = "HML_VAL_NULL"
	TagArray  = "HML_VAL_ARRAY"
	TagObject = "HML_VAL_OBJECT"
	TagBuffer = "HML_VAL_BUFFER"
	TagPtr    = "HML_VAL_PTR"
	TagSocket = "HML_VAL_SOCKET"
)

// ValTag maps a semantic kind to the runtime's HML_VAL_* type tag, used
// by object-shape registration and declared-type validation calls. Narrow
// integer widths share the I32 tag (the runtime stores them widened; the
// declared width only matters for FFI marshalling, see FfiTag).
func ValTag(k types.Kind) string {
	switch k {
	case types.I8, types.I16, types.I32, types.U8, types.U16, types.Rune, types.Integer:
		if k == types.Rune {
			return TagRune
		}
		return TagI32
	case types.I64, types.U32, types.U64:
		return TagI64
	case types.F32, types.F64, types.Numeric:
		return TagF64
	case types.Bool:
		return TagBool
	case types.String:
		return TagString
	case types.Null:
		return TagNull
	case types.Array:
		return TagArray
	case types.Object, types.Custom, types.Enum:
		return TagObject
	case types.Buffer:
		return TagBuffer
	case types.Ptr:
		return TagPtr
	}
	return TagNull
}

// FfiTag maps a semantic kind to the runtime's HML_FFI_* marshalling tag
// for extern/FFI signatures. Anything without a natural C scalar shape
// marshals as HML_FFI_VOID, the contract's stated default.
func FfiTag(k types.Kind) string {
	switch k {
	case types.I8:
		return "HML_FFI_I8"
	case types.I16:
		return "HML_FFI_I16"
	case types.I32, types.Rune, types.Integer:
		return "HML_FFI_I32"
	case types.I64:
		return "HML_FFI_I64"
	case types.U8:
		return "HML_FFI_U8"
	case types.U16:
		return "HML_FFI_U16"
	case types.U32:
		return "HML_FFI_U32"
	case types.U64:
		return "HML_FFI_U64"
	case types.F32:
		return "HML_FFI_F32"
	case types.F64, types.Numeric:
		return "HML_FFI_F64"
	case types.Bool:
		return "HML_FFI_BOOL"
	case types.String:
		return "HML_FFI_STRING"
	case types.Ptr, types.Buffer:
		return "HML_FFI_PTR"
	}
	return "HML_FFI_VOID"
}
