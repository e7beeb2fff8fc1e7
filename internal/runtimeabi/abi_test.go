package runtimeabi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
	"github.com/hemlock-lang/hemlock/internal/types"
)

func TestValTagMapping(t *testing.T) {
	assert.Equal(t, "HML_VAL_I32", runtimeabi.ValTag(types.I32))
	assert.Equal(t, "HML_VAL_I32", runtimeabi.ValTag(types.I8))
	assert.Equal(t, "HML_VAL_I64", runtimeabi.ValTag(types.I64))
	assert.Equal(t, "HML_VAL_F64", runtimeabi.ValTag(types.F32))
	assert.Equal(t, "HML_VAL_RUNE", runtimeabi.ValTag(types.Rune))
	assert.Equal(t, "HML_VAL_STRING", runtimeabi.ValTag(types.String))
	assert.Equal(t, "HML_VAL_OBJECT", runtimeabi.ValTag(types.Custom))
}

func TestFfiTagDefaultsToVoid(t *testing.T) {
	assert.Equal(t, "HML_FFI_I32", runtimeabi.FfiTag(types.I32))
	assert.Equal(t, "HML_FFI_STRING", runtimeabi.FfiTag(types.String))
	assert.Equal(t, "HML_FFI_PTR", runtimeabi.FfiTag(types.Buffer))
	assert.Equal(t, "HML_FFI_VOID", runtimeabi.FfiTag(types.Void))
	assert.Equal(t, "HML_FFI_VOID", runtimeabi.FfiTag(types.Array))
}

func TestIntrinsicTableCoversComparisonAndBitOps(t *testing.T) {
	for _, op := range []string{"+", "-", "*", "%", "<", "<=", ">", ">=", "==", "!=", "&", "|", "^", "<<", ">>"} {
		assert.Contains(t, runtimeabi.I32Intrinsics, op)
		assert.Contains(t, runtimeabi.I64Intrinsics, op)
		assert.Contains(t, runtimeabi.BinaryOpName, op)
	}
	// division is always F64 and deliberately has no typed intrinsic
	assert.NotContains(t, runtimeabi.I32Intrinsics, "/")
	assert.Contains(t, runtimeabi.BinaryOpName, "/")
}
