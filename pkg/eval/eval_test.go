package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiral/pkg/effect"
	"spiral/pkg/env"
	"spiral/pkg/ir"
	"spiral/pkg/operator"
)

func newOps(t *testing.T) *operator.Registry {
	t.Helper()
	ops := operator.NewRegistry(16)
	must := func(err error) {
		t.Helper()
		require.NoError(t, err)
	}
	must(ops.Register(&operator.Operator{
		Namespace: "math", Name: "add", Pure: true,
		ParamTypes: []*ir.Type{ir.Int(), ir.Int()}, ReturnType: ir.Int(),
		Impl: func(args []*ir.Value) (*ir.Value, error) { return ir.NewInt(args[0].Int + args[1].Int), nil },
	}))
	must(ops.Register(&operator.Operator{
		Namespace: "math", Name: "sub", Pure: true,
		ParamTypes: []*ir.Type{ir.Int(), ir.Int()}, ReturnType: ir.Int(),
		Impl: func(args []*ir.Value) (*ir.Value, error) { return ir.NewInt(args[0].Int - args[1].Int), nil },
	}))
	must(ops.Register(&operator.Operator{
		Namespace: "math", Name: "mul", Pure: true,
		ParamTypes: []*ir.Type{ir.Int(), ir.Int()}, ReturnType: ir.Int(),
		Impl: func(args []*ir.Value) (*ir.Value, error) { return ir.NewInt(args[0].Int * args[1].Int), nil },
	}))
	must(ops.Register(&operator.Operator{
		Namespace: "cmp", Name: "lte", Pure: true,
		ParamTypes: []*ir.Type{ir.Int(), ir.Int()}, ReturnType: ir.Bool(),
		Impl: func(args []*ir.Value) (*ir.Value, error) { return ir.NewBool(args[0].Int <= args[1].Int), nil },
	}))
	must(ops.Register(&operator.Operator{
		Namespace: "cmp", Name: "gt", Pure: true,
		ParamTypes: []*ir.Type{ir.Int(), ir.Int()}, ReturnType: ir.Bool(),
		Impl: func(args []*ir.Value) (*ir.Value, error) { return ir.NewBool(args[0].Int > args[1].Int), nil },
	}))
	return ops
}

func intLit(v int64) *ir.Expr {
	return &ir.Expr{Kind: ir.EKLiteral, Lit: &ir.LiteralData{Type: ir.Int(), Int: v}}
}

func variable(name string) *ir.Expr {
	return &ir.Expr{Kind: ir.EKVariable, Variable: &ir.VariableData{Name: name}}
}

func opCall(ns, name string, args ...*ir.Expr) *ir.Expr {
	return &ir.Expr{Kind: ir.EKOpCall, OpCall: &ir.OpCallData{Namespace: ns, Name: name, Args: args}}
}

func TestEvalAIRArithmetic(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	// (2 + 3) * 4
	e := opCall("math", "mul", opCall("math", "add", intLit(2), intLit(3)), intLit(4))
	v, err := ev.Eval(e, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(20), v.Int)
}

func TestEvalIfRequiresBool(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	e := &ir.Expr{Kind: ir.EKIf, If: &ir.IfData{Cond: intLit(1), Then: intLit(1), Else: intLit(0)}}
	v, err := ev.Eval(e, env.Empty())
	require.NoError(t, err)
	require.True(t, v.IsError())
	assert.Equal(t, ir.ErrTypeError, v.Error.Code)
}

func TestEvalLetBindsValue(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	e := &ir.Expr{Kind: ir.EKLet, Let: &ir.LetData{
		Var: "x", Value: intLit(10),
		Body: opCall("math", "add", variable("x"), intLit(5)),
	}}
	v, err := ev.Eval(e, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(15), v.Int)
}

func TestEvalUnboundVariable(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	v, err := ev.Eval(variable("ghost"), env.Empty())
	require.NoError(t, err)
	require.True(t, v.IsError())
	assert.Equal(t, ir.ErrUnboundIdentifier, v.Error.Code)
}

// factorial via fix: fix(λself. λn. if n <= 1 then 1 else n * self(n - 1))
func factorialViaFix() *ir.Expr {
	selfApply := func(arg *ir.Expr) *ir.Expr {
		return &ir.Expr{Kind: ir.EKApply, Apply: &ir.ApplyData{Fn: variable("self"), Args: []*ir.Expr{arg}}}
	}
	body := &ir.Expr{Kind: ir.EKIf, If: &ir.IfData{
		Cond: opCall("cmp", "lte", variable("n"), intLit(1)),
		Then: intLit(1),
		Else: opCall("math", "mul", variable("n"), selfApply(opCall("math", "sub", variable("n"), intLit(1)))),
	}}
	inner := &ir.Expr{Kind: ir.EKLambda, Lambda: &ir.LambdaData{Params: []ir.ClosureParam{{Name: "n"}}, Body: body}}
	outer := &ir.Expr{Kind: ir.EKLambda, Lambda: &ir.LambdaData{Params: []ir.ClosureParam{{Name: "self"}}, Body: inner}}
	return &ir.Expr{Kind: ir.EKFix, Fix: &ir.FixData{Fn: outer}}
}

func TestEvalFixRecursiveFactorial(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 100000)

	fact := factorialViaFix()
	apply := &ir.Expr{Kind: ir.EKApply, Apply: &ir.ApplyData{Fn: fact, Args: []*ir.Expr{intLit(6)}}}

	v, err := ev.Eval(apply, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(720), v.Int)
}

func TestEvalApplyArityMismatch(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	lam := &ir.Expr{Kind: ir.EKLambda, Lambda: &ir.LambdaData{
		Params: []ir.ClosureParam{{Name: "x"}}, Body: variable("x"),
	}}
	apply := &ir.Expr{Kind: ir.EKApply, Apply: &ir.ApplyData{Fn: lam, Args: []*ir.Expr{intLit(1), intLit(2)}}}

	v, err := ev.Eval(apply, env.Empty())
	require.NoError(t, err)
	require.True(t, v.IsError())
	assert.Equal(t, ir.ErrArityError, v.Error.Code)
}

func TestEvalOptionalParamDefaultEvaluatesInClosureEnv(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	// let base = 100 in λ(x = base). x  applied with no args
	lam := &ir.Expr{Kind: ir.EKLambda, Lambda: &ir.LambdaData{
		Params: []ir.ClosureParam{{Name: "x", Optional: true, Default: variable("base")}},
		Body:   variable("x"),
	}}
	let := &ir.Expr{Kind: ir.EKLet, Let: &ir.LetData{
		Var: "base", Value: intLit(100),
		Body: &ir.Expr{Kind: ir.EKApply, Apply: &ir.ApplyData{Fn: lam}},
	}}

	v, err := ev.Eval(let, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(100), v.Int)
}

func TestEvalWhileLoopCountdown(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 100000)

	// i := ref(5); while (deref(i) > 0) { i := deref(i) - 1 }; deref(i)
	refInit := &ir.Expr{Kind: ir.EKRefNew, RefNew: &ir.RefNewData{Init: intLit(5)}}
	derefI := &ir.Expr{Kind: ir.EKRefDeref, RefDeref: &ir.RefDerefData{Ref: variable("i")}}
	whileExpr := &ir.Expr{Kind: ir.EKWhile, Loop: &ir.LoopData{
		Cond: opCall("cmp", "gt", derefI, intLit(0)),
		Body: &ir.Expr{Kind: ir.EKAssign, Assign: &ir.AssignData{
			Target: variable("i"),
			Value:  opCall("math", "sub", derefI, intLit(1)),
		}},
	}}
	seq := &ir.Expr{Kind: ir.EKSeq, Seq: &ir.SeqData{First: whileExpr, Second: derefI}}
	let := &ir.Expr{Kind: ir.EKLet, Let: &ir.LetData{Var: "i", Value: refInit, Body: seq}}

	v, err := ev.Eval(let, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int)
}

func TestEvalTryCatchesError(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	e := &ir.Expr{Kind: ir.EKTry, Try: &ir.TryData{
		Body:     variable("ghost"),
		CatchVar: "err",
		Catch:    intLit(-1),
	}}
	v, err := ev.Eval(e, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v.Int)
}

func TestEvalTryFallbackOverridesSuccess(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 1000)

	e := &ir.Expr{Kind: ir.EKTry, Try: &ir.TryData{
		Body:     intLit(1),
		CatchVar: "err",
		Catch:    intLit(-1),
		Fallback: intLit(99),
	}}
	v, err := ev.Eval(e, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(99), v.Int)
}

func TestEvalEffectRecordsOrderedLog(t *testing.T) {
	ops := newOps(t)
	effs := effect.NewRegistry()
	require.NoError(t, effect.RegisterStdlib(effs, effect.NewInputQueue([]string{"a", "b"}), effect.NewStateStore(), &effect.LogicalClock{}, nil))
	ev := NewEvaluator(ops, effs, nil, 1000)

	readEffect := &ir.Expr{Kind: ir.EKEffect, Effect: &ir.EffectData{Name: "io:readLine"}}
	seq := &ir.Expr{Kind: ir.EKSeq, Seq: &ir.SeqData{First: readEffect, Second: readEffect}}

	v, err := ev.Eval(seq, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, "b", v.Str)
	require.Len(t, ev.EffectLog(), 2)
	assert.Equal(t, "a", ev.EffectLog()[0].Result.Str)
	assert.Equal(t, "b", ev.EffectLog()[1].Result.Str)
}

func TestStepBudgetExceeded(t *testing.T) {
	ops := newOps(t)
	ev := NewEvaluator(ops, effect.NewRegistry(), nil, 2)

	// add(1, 2) spends three steps: the call and its two operands.
	e := opCall("math", "add", intLit(1), intLit(2))
	_, err := ev.Eval(e, env.Empty())
	require.Error(t, err)
}
