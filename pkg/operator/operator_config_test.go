package operator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spiral/internal/engineconfig"
	"spiral/pkg/ir"
)

func TestNewRegistryFromConfigMemoisesPureCalls(t *testing.T) {
	calls := 0
	op := &Operator{
		Namespace:  "math",
		Name:       "slow",
		ParamTypes: []*ir.Type{ir.Int()},
		ReturnType: ir.Int(),
		Pure:       true,
		Impl: func(args []*ir.Value) (*ir.Value, error) {
			calls++
			return ir.NewInt(args[0].Int * 2), nil
		},
	}

	r := NewRegistryFromConfig(engineconfig.Default(engineconfig.WithOperatorMemoCapacity(4)))
	require.NoError(t, r.Register(op))

	_, err := r.Call("math", "slow", []*ir.Value{ir.NewInt(21)})
	require.NoError(t, err)
	_, err = r.Call("math", "slow", []*ir.Value{ir.NewInt(21)})
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}

func TestNewRegistryFromConfigZeroCapacityDisablesMemo(t *testing.T) {
	r := NewRegistryFromConfig(engineconfig.Default(engineconfig.WithOperatorMemoCapacity(0)))
	require.Nil(t, r.memo)
}
