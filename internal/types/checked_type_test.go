package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hemlock-lang/hemlock/internal/types"
)

func TestCommonPermissivePassthrough(t *testing.T) {
	i32 := types.Simple(types.I32)
	any := types.Simple(types.Any)
	assert.Equal(t, i32, types.Common(any, i32))
	assert.Equal(t, i32, types.Common(i32, any))
}

func TestCommonNumericWidening(t *testing.T) {
	i32 := types.Simple(types.I32)
	f64 := types.Simple(types.F64)
	assert.Equal(t, f64, types.Common(i32, f64))
	assert.Equal(t, f64, types.Common(f64, i32))
}

func TestCommonStringDominance(t *testing.T) {
	str := types.Simple(types.String)
	i32 := types.Simple(types.I32)
	assert.Equal(t, str, types.Common(str, i32))
}

func TestCommonElseAny(t *testing.T) {
	b := types.Simple(types.Bool)
	o := types.Simple(types.Object)
	assert.Equal(t, types.Simple(types.Any), types.Common(b, o))
}

func TestEqualsArrayRecurses(t *testing.T) {
	i32 := types.Simple(types.I32)
	a := types.ArrayOf(&i32)
	f64 := types.Simple(types.F64)
	b := types.ArrayOf(&f64)
	assert.True(t, types.Equals(a, a))
	assert.False(t, types.Equals(a, b))
}

func TestEnvBalancedPushPopPanics(t *testing.T) {
	env := types.NewEnv()
	assert.Equal(t, 1, env.Depth())
	env.Push()
	assert.Equal(t, 2, env.Depth())
	env.Pop()
	assert.Equal(t, 1, env.Depth())
	assert.Panics(t, func() {
		env.Pop()
		env.Pop()
	})
}

func TestEnvShadowingMostRecentWins(t *testing.T) {
	env := types.NewEnv()
	env.Bind("x", types.Simple(types.I32), false, 1)
	env.Push()
	env.Bind("x", types.Simple(types.String), false, 2)
	got, ok := env.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, types.String, got.Type.Kind)
	env.Pop()
	got, ok = env.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, types.I32, got.Type.Kind)
}

func TestRegistryFieldType(t *testing.T) {
	reg := types.NewRegistry()
	reg.RegisterObject(&types.ObjectDef{
		Name: "Point",
		Fields: []types.ObjectField{
			{Name: "x", Type: types.Simple(types.I32)},
			{Name: "y", Type: types.Simple(types.I32), Optional: true},
		},
	})
	ft, optional, ok := reg.FieldType("Point", "y")
	assert.True(t, ok)
	assert.True(t, optional)
	assert.Equal(t, types.I32, ft.Kind)

	_, _, ok = reg.FieldType("Point", "z")
	assert.False(t, ok)
}
