package pir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiral/pkg/async/primitive"
	"spiral/pkg/async/scheduler"
	"spiral/pkg/effect"
	"spiral/pkg/env"
	"spiral/pkg/eval"
	"spiral/pkg/ir"
	"spiral/pkg/operator"
)

func newExecutor(t *testing.T, sched scheduler.Scheduler, nodes map[string]*ir.Node) *Executor {
	t.Helper()
	return newExecutorWithStore(t, sched, primitive.NewStore(), nodes)
}

func newExecutorWithStore(t *testing.T, sched scheduler.Scheduler, store *primitive.Store, nodes map[string]*ir.Node) *Executor {
	t.Helper()
	ops := operator.NewRegistry(0)
	effs := effect.NewRegistry()
	exprEval := eval.NewEvaluator(ops, effs, nil, 100000)
	return NewExecutor(ops, effs, exprEval, 100000, sched, store, nodes)
}

func litExpr(v int64) *ir.Expr {
	return &ir.Expr{Kind: ir.EKLiteral, Lit: &ir.LiteralData{Type: ir.Int(), Int: v}}
}

// childReturning builds a single-block node that assigns v and returns it.
func childReturning(v int64) *ir.Node {
	return &ir.Node{
		ID: "child", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID:           "entry",
			Instructions: []*ir.Instruction{{Kind: ir.IKAssign, Target: "v", AssignExpr: litExpr(v)}},
			Terminator:   &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "v"},
		}},
		Entry: "entry",
	}
}

func TestSpawnAwaitReturnsChildResult(t *testing.T) {
	sched := scheduler.New(scheduler.Eager, 0)
	nodes := map[string]*ir.Node{"child": childReturning(99)}
	x := newExecutor(t, sched, nodes)

	main := &ir.Node{
		ID: "main", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKSpawn, Target: "fut", SpawnNodeID: "child"},
				{Kind: ir.IKAwait, Target: "result", AwaitFuture: "fut"},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "result"},
		}},
		Entry: "entry",
	}

	v, err := x.Run("main", main, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, int64(99), v.Int)
}

func TestChannelRendezvousBetweenSpawnedTasks(t *testing.T) {
	sched := scheduler.New(scheduler.Eager, 0)
	store := primitive.NewStore()
	ch := store.Create("c1", ir.ChanSPSC, 0)

	producer := &ir.Node{
		ID: "producer", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKAssign, Target: "v", AssignExpr: litExpr(42)},
				{Kind: ir.IKChannelOp, ChanOpKind: ir.ChanOpSend, ChanVar: "ch", ChanValue: "v"},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn},
		}},
		Entry: "entry",
	}
	nodes := map[string]*ir.Node{"producer": producer}
	x := newExecutorWithStore(t, sched, store, nodes)

	chanVal := ir.NewChannel(&ir.ChannelHandle{ID: "c1", Kind: ir.ChanSPSC})
	rho := env.Empty().ExtendEnv("ch", chanVal)

	main := &ir.Node{
		ID: "main", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKSpawn, Target: "fut", SpawnNodeID: "producer"},
				{Kind: ir.IKChannelOp, Target: "got", ChanOpKind: ir.ChanOpRecv, ChanVar: "ch"},
				{Kind: ir.IKAwait, Target: "_done", AwaitFuture: "fut"},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "got"},
		}},
		Entry: "entry",
	}

	v, err := x.Run("main", main, ir.Env(rho))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)
	assert.False(t, ch.IsClosed())
}

func TestForkJoinAwaitsAllBranchesInParallel(t *testing.T) {
	sched := scheduler.New(scheduler.Eager, 0)
	x := newExecutor(t, sched, nil)

	branchA := &ir.Block{
		ID:           "branchA",
		Instructions: []*ir.Instruction{{Kind: ir.IKAssign, Target: "a", AssignExpr: litExpr(1)}},
		Terminator:   &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "a"},
	}
	branchB := &ir.Block{
		ID:           "branchB",
		Instructions: []*ir.Instruction{{Kind: ir.IKAssign, Target: "b", AssignExpr: litExpr(2)}},
		Terminator:   &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "b"},
	}
	entry := &ir.Block{
		ID: "entry",
		Terminator: &ir.Terminator{
			Kind: ir.TKFork,
			ForkBranches: []ir.ForkBranch{
				{Block: "branchA", TaskID: "ta"},
				{Block: "branchB", TaskID: "tb"},
			},
			ForkContinuation: "after",
		},
	}
	after := &ir.Block{
		ID:         "after",
		Terminator: &ir.Terminator{Kind: ir.TKReturn},
	}
	main := &ir.Node{
		ID: "main", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{entry, branchA, branchB, after},
		Entry:  "entry",
	}

	v, err := x.Run("main", main, env.Empty())
	require.NoError(t, err)
	assert.Equal(t, ir.VVoid, v.Kind)
	assert.True(t, sched.IsComplete("ta"))
	assert.True(t, sched.IsComplete("tb"))
}

func TestSelectReturnsFirstReadyFuture(t *testing.T) {
	sched := scheduler.New(scheduler.Eager, 0)
	nodes := map[string]*ir.Node{
		"fast": childReturning(1),
		"slow": childReturning(2),
	}
	x := newExecutor(t, sched, nodes)

	main := &ir.Node{
		ID: "main", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKSpawn, Target: "f1", SpawnNodeID: "fast"},
				{Kind: ir.IKSpawn, Target: "f2", SpawnNodeID: "slow"},
				{Kind: ir.IKSelect, Target: "result", SelectFutures: []string{"f1", "f2"}},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "result"},
		}},
		Entry: "entry",
	}

	v, err := x.Run("main", main, env.Empty())
	require.NoError(t, err)
	require.Equal(t, ir.VSelectResult, v.Kind)
	assert.Contains(t, []int{0, 1}, v.Select.Index)
}

func TestSelectTimesOutWhenNoFutureResolves(t *testing.T) {
	sched := scheduler.New(scheduler.Eager, 0)
	store := primitive.NewStore()
	store.Create("never", ir.ChanSPSC, 0)

	blocked := &ir.Node{
		ID: "blocked", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKChannelOp, Target: "got", ChanOpKind: ir.ChanOpRecv, ChanVar: "ch"},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "got"},
		}},
		Entry: "entry",
	}
	nodes := map[string]*ir.Node{"blocked": blocked}
	x := newExecutorWithStore(t, sched, store, nodes)

	chanVal := ir.NewChannel(&ir.ChannelHandle{ID: "never", Kind: ir.ChanSPSC})
	rho := ir.Env(env.Empty().ExtendEnv("ch", chanVal))

	main := &ir.Node{
		ID: "main", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKSpawn, Target: "f1", SpawnNodeID: "blocked"},
				{Kind: ir.IKSelect, Target: "result", SelectFutures: []string{"f1"}, SelectTimeoutMs: 20},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "result"},
		}},
		Entry: "entry",
	}

	v, err := x.Run("main", main, rho)
	require.NoError(t, err)
	require.Equal(t, ir.VSelectResult, v.Kind)
	assert.Equal(t, -1, v.Select.Index)
	assert.Nil(t, v.Select.Value)
}

func TestAwaitOfNonFutureIsTypeError(t *testing.T) {
	sched := scheduler.New(scheduler.Eager, 0)
	x := newExecutor(t, sched, nil)

	main := &ir.Node{
		ID: "main", Kind: ir.NodeBlockGraph,
		Blocks: []*ir.Block{{
			ID: "entry",
			Instructions: []*ir.Instruction{
				{Kind: ir.IKAssign, Target: "notFuture", AssignExpr: litExpr(1)},
				{Kind: ir.IKAwait, Target: "x", AwaitFuture: "notFuture"},
			},
			Terminator: &ir.Terminator{Kind: ir.TKReturn, ReturnVar: "x"},
		}},
		Entry: "entry",
	}
	v, err := x.Run("main", main, env.Empty())
	require.NoError(t, err)
	require.True(t, v.IsError())
	assert.Equal(t, ir.ErrTypeError, v.Error.Code)
}
