package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

func addOp() *Operator {
	return &Operator{
		Namespace:  "math",
		Name:       "add",
		ParamTypes: []*ir.Type{ir.Int(), ir.Int()},
		ReturnType: ir.Int(),
		Pure:       true,
		Impl: func(args []*ir.Value) (*ir.Value, error) {
			return ir.NewInt(args[0].Int + args[1].Int), nil
		},
	}
}

func TestRegisterAndCall(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(addOp()))

	v, err := r.Call("math", "add", []*ir.Value{ir.NewInt(2), ir.NewInt(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(addOp()))
	err := r.Register(addOp())
	assert.ErrorIs(t, err, errs.ErrDuplicateOperator)
}

func TestCallUnknownOperator(t *testing.T) {
	r := NewRegistry(0)
	_, err := r.Call("math", "missing", nil)
	assert.ErrorIs(t, err, errs.ErrUnknownOperator)
}

func TestCallArityMismatchReturnsErrorValue(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(addOp()))

	v, err := r.Call("math", "add", []*ir.Value{ir.NewInt(1)})
	require.NoError(t, err)
	require.True(t, v.IsError())
	assert.Equal(t, ir.ErrArityError, v.Error.Code)
}

func TestCheckCallTypeMismatch(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(addOp()))

	_, err := r.CheckCall("math", "add", []*ir.Type{ir.Int(), ir.Str()})
	assert.Error(t, err)
}

func TestCheckCallArityMismatch(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(addOp()))

	_, err := r.CheckCall("math", "add", []*ir.Type{ir.Int()})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrArityMismatch)
	assert.NotErrorIs(t, err, errs.ErrStepBudgetExceeded)
}

func TestPureOperatorIsMemoised(t *testing.T) {
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
	r := NewRegistry(4)
	require.NoError(t, r.Register(op))

	_, err := r.Call("math", "slow", []*ir.Value{ir.NewInt(21)})
	require.NoError(t, err)
	_, err = r.Call("math", "slow", []*ir.Value{ir.NewInt(21)})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestImpureOperatorNotMemoised(t *testing.T) {
	calls := 0
	op := &Operator{
		Namespace:  "io",
		Name:       "counter",
		ParamTypes: nil,
		ReturnType: ir.Int(),
		Pure:       false,
		Impl: func(args []*ir.Value) (*ir.Value, error) {
			calls++
			return ir.NewInt(int64(calls)), nil
		},
	}
	r := NewRegistry(4)
	require.NoError(t, r.Register(op))

	v1, _ := r.Call("io", "counter", nil)
	v2, _ := r.Call("io", "counter", nil)
	assert.NotEqual(t, v1.Int, v2.Int)
}
