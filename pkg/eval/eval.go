// Package eval implements the big-step expression evaluator (§4.4),
// grounded on the teacher's NodeExecutor/NodeContext dispatch
// (backend/pkg/engine/node_executor.go): one context object threaded
// through a kind-keyed dispatch, here closed over ExprKind instead of a
// node type string, carrying step-budget and effect-log state instead of
// template-resolution state.
package eval

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"spiral/internal/engineconfig"
	"spiral/internal/obslog"
	"spiral/pkg/async/primitive"
	"spiral/pkg/async/scheduler"
	"spiral/pkg/effect"
	"spiral/pkg/env"
	"spiral/pkg/errs"
	"spiral/pkg/ir"
	"spiral/pkg/operator"
)

// EffectLogEntry records one synchronous effect invocation in call order
// (§4.4: "records the effect in an ordered log").
type EffectLogEntry struct {
	Seq    int
	Name   string
	Args   []*ir.Value
	Result *ir.Value
}

// Evaluator holds everything a single evaluation session needs: the
// operator/effect registries (immutable once constructed, §3
// Lifecycles), the definition table, a step counter bounded by MaxSteps,
// and the ordered effect log.
//
// A single Evaluator is shared across every concurrently-running task
// once it's embedded in a pkg/async/pir.Executor (each spawned task's
// closure calls back into the same Eval), so steps/effectLog are guarded
// by mu the same way pkg/async/scheduler guards its task table and
// pkg/async/primitive.EffectLog guards its entries — this is not a
// single-threaded-only type.
type Evaluator struct {
	Operators *operator.Registry
	Effects   *effect.Registry
	Defs      *env.DefTable

	MaxSteps int

	// Scheduler, Channels, and RunNode back the PIR expression forms
	// (EKParallel/EKSpawn/EKAwait/EKChanNew/EKSend/EKRecv/EKSelect/EKRace,
	// §3). Nil unless the caller wires them (pkg/async/pir does, for a
	// PIR document); an evaluator built for AIR/CIR/EIR never reaches
	// these cases, since the validator already rejects such layers
	// containing them. RunNode resolves a node id to its value, running
	// a fresh instance of that node's body each call (an expression node
	// through Eval itself, a block-graph node through whatever
	// BlockEvaluator the caller closes over) — injected rather than
	// imported directly, since pkg/cfg already imports pkg/eval and a
	// direct reverse import would cycle.
	Scheduler scheduler.Scheduler
	Channels  *primitive.Store
	RunNode   func(nodeID string, rho ir.Env) (*ir.Value, error)

	// Logger receives a warning when a session exhausts its step budget.
	// Nil (the zero value) means silent, matching obslog.Nop()'s effect
	// without requiring every caller to construct one.
	Logger *obslog.Logger

	taskSeq atomic.Int64

	mu        sync.Mutex
	steps     int
	effectLog []EffectLogEntry
}

func NewEvaluator(ops *operator.Registry, effs *effect.Registry, defs *env.DefTable, maxSteps int) *Evaluator {
	return &Evaluator{Operators: ops, Effects: effs, Defs: defs, MaxSteps: maxSteps}
}

// NewEvaluatorFromConfig builds an Evaluator from cfg's MaxSteps limit
// (§10.3) and attaches logger for step-budget warnings (§10.1); a nil
// logger behaves like obslog.Nop().
func NewEvaluatorFromConfig(ops *operator.Registry, effs *effect.Registry, defs *env.DefTable, cfg *engineconfig.Config, logger *obslog.Logger) *Evaluator {
	ev := NewEvaluator(ops, effs, defs, cfg.MaxSteps)
	ev.Logger = logger
	return ev
}

// Steps reports how many evaluation steps have been spent so far (§12
// step-budget telemetry).
func (ev *Evaluator) Steps() int {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.steps
}

// EffectLog returns a snapshot of the effect invocations recorded so far,
// in call order.
func (ev *Evaluator) EffectLog() []EffectLogEntry {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make([]EffectLogEntry, len(ev.effectLog))
	copy(out, ev.effectLog)
	return out
}

func (ev *Evaluator) tick() error {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.steps++
	if ev.MaxSteps > 0 && ev.steps > ev.MaxSteps {
		if ev.Logger != nil {
			ev.Logger.Warn().Int("steps", ev.steps).Int("max_steps", ev.MaxSteps).Msg("step budget exceeded")
		}
		return errs.ErrStepBudgetExceeded
	}
	return nil
}

// appendEffectLog records one effect invocation under mu (§4.4, §5: the
// concurrent effect log stays append-consistent under the Eager and
// BreadthFirst disciplines' real goroutines).
func (ev *Evaluator) appendEffectLog(name string, args []*ir.Value, result *ir.Value) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.effectLog = append(ev.effectLog, EffectLogEntry{
		Seq: len(ev.effectLog), Name: name, Args: args, Result: result,
	})
}

func (ev *Evaluator) newTaskID() string {
	return "expr-task#" + strconv.FormatInt(ev.taskSeq.Add(1), 10)
}

// Eval realises the big-step judgement ρ ⊢ e ⇓ v as a dispatch on
// expression kind (§4.4).
func (ev *Evaluator) Eval(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if err := ev.tick(); err != nil {
		return nil, err
	}
	if e == nil {
		return ir.NewVoid(), nil
	}

	switch e.Kind {
	case ir.EKLiteral:
		return ev.evalLiteral(e, rho)
	case ir.EKVariable:
		return ev.evalVariable(e, rho)
	case ir.EKDefRef:
		return ev.evalDefRef(e, rho)
	case ir.EKIf:
		return ev.evalIf(e, rho)
	case ir.EKLet:
		return ev.evalLet(e, rho)
	case ir.EKOpCall:
		return ev.evalOpCall(e, rho)
	case ir.EKLambda:
		return ev.evalLambda(e, rho)
	case ir.EKApply:
		return ev.evalApply(e, rho)
	case ir.EKFix:
		return ev.evalFix(e, rho)
	case ir.EKSeq:
		return ev.evalSeq(e, rho)
	case ir.EKAssign:
		return ev.evalAssign(e, rho)
	case ir.EKWhile:
		return ev.evalWhile(e, rho)
	case ir.EKFor:
		return ev.evalFor(e, rho)
	case ir.EKIter:
		return ev.evalIter(e, rho)
	case ir.EKEffect:
		return ev.evalEffect(e, rho)
	case ir.EKRefNew:
		return ev.evalRefNew(e, rho)
	case ir.EKRefDeref:
		return ev.evalRefDeref(e, rho)
	case ir.EKTry:
		return ev.evalTry(e, rho)
	case ir.EKParallel:
		return ev.evalParallel(e, rho)
	case ir.EKSpawn:
		return ev.evalSpawn(e, rho)
	case ir.EKAwait:
		return ev.evalAwait(e, rho)
	case ir.EKChanNew:
		return ev.evalChanNew(e, rho)
	case ir.EKSend:
		return ev.evalSend(e, rho)
	case ir.EKRecv:
		return ev.evalRecv(e, rho)
	case ir.EKSelect:
		return ev.evalSelect(e, rho)
	case ir.EKRace:
		return ev.evalRace(e, rho)
	default:
		return ir.NewError(ir.ErrTypeError, "expression kind not supported by the synchronous evaluator", nil), nil
	}
}

// requireAsync reports a clear, IR-level error when a PIR expression form
// is reached without the async wiring pkg/async/pir supplies (a document
// at the PIR layer should never be evaluated this way; this guards a
// wiring mistake, not a validator gap).
func (ev *Evaluator) requireAsync() *ir.Value {
	if ev.Scheduler == nil || ev.Channels == nil {
		return ir.NewError(ir.ErrTypeError, "PIR expression requires an async-capable evaluator", nil)
	}
	return nil
}

func (ev *Evaluator) evalLiteral(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	lit := e.Lit
	switch lit.Type.Tag {
	case ir.TBool:
		return ir.NewBool(lit.Bool), nil
	case ir.TInt:
		return ir.NewInt(lit.Int), nil
	case ir.TFloat:
		return ir.NewFloat(lit.Float), nil
	case ir.TString:
		return ir.NewString(lit.Str), nil
	case ir.TVoid:
		return ir.NewVoid(), nil
	case ir.TList:
		items := make([]*ir.Value, len(lit.Items))
		for i, it := range lit.Items {
			v, err := ev.Eval(it, rho)
			if err != nil {
				return nil, err
			}
			if v.IsError() {
				return v, nil
			}
			items[i] = v
		}
		return ir.NewList(items), nil
	case ir.TSet:
		items := make([]*ir.Value, len(lit.Items))
		for i, it := range lit.Items {
			v, err := ev.Eval(it, rho)
			if err != nil {
				return nil, err
			}
			if v.IsError() {
				return v, nil
			}
			items[i] = v
		}
		return ir.NewSet(items), nil
	case ir.TMap:
		entries := make([]ir.MapEntry, len(lit.Pairs))
		for i, p := range lit.Pairs {
			k, err := ev.Eval(p.Key, rho)
			if err != nil {
				return nil, err
			}
			if k.IsError() {
				return k, nil
			}
			v, err := ev.Eval(p.Value, rho)
			if err != nil {
				return nil, err
			}
			if v.IsError() {
				return v, nil
			}
			entries[i] = ir.MapEntry{Key: k, Value: v}
		}
		return ir.NewMap(entries), nil
	case ir.TOption:
		if len(lit.Items) == 0 {
			return ir.NewOption(nil), nil
		}
		inner, err := ev.Eval(lit.Items[0], rho)
		if err != nil {
			return nil, err
		}
		return ir.NewOption(inner), nil
	default:
		return ir.NewError(ir.ErrTypeError, "literal has an unsupported type tag", nil), nil
	}
}

func (ev *Evaluator) evalVariable(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	v, ok := rho.Lookup(e.Variable.Name)
	if !ok {
		return ir.NewError(ir.ErrUnboundIdentifier, "unbound identifier: "+e.Variable.Name, nil), nil
	}
	return v, nil
}

func (ev *Evaluator) evalDefRef(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	def, ok := ev.Defs.Lookup(e.DefRef.Namespace, e.DefRef.Name)
	if !ok {
		return ir.NewError(ir.ErrUnknownDefinition, "unknown definition: "+e.DefRef.Namespace+":"+e.DefRef.Name, nil), nil
	}
	closure := &ir.Closure{Params: def.Params, Body: def.Body, Env: env.Empty()}
	return ir.NewClosure(closure), nil
}

func (ev *Evaluator) evalIf(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	cond, err := ev.Eval(e.If.Cond, rho)
	if err != nil {
		return nil, err
	}
	if cond.IsError() {
		return cond, nil
	}
	if cond.Kind != ir.VBool {
		return ir.NewError(ir.ErrTypeError, "if condition must be bool", nil), nil
	}
	if cond.Bool {
		return ev.Eval(e.If.Then, rho)
	}
	return ev.Eval(e.If.Else, rho)
}

func (ev *Evaluator) evalLet(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	v, err := ev.Eval(e.Let.Value, rho)
	if err != nil {
		return nil, err
	}
	if v.IsError() {
		return v, nil
	}
	return ev.Eval(e.Let.Body, rho.Extend(e.Let.Var, v))
}

func (ev *Evaluator) evalOpCall(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	args := make([]*ir.Value, len(e.OpCall.Args))
	for i, a := range e.OpCall.Args {
		v, err := ev.Eval(a, rho)
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return v, nil // short-circuit: an error operand propagates untouched
		}
		args[i] = v
	}
	return ev.Operators.Call(e.OpCall.Namespace, e.OpCall.Name, args)
}

func (ev *Evaluator) evalLambda(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	return ir.NewClosure(&ir.Closure{Params: e.Lambda.Params, Body: e.Lambda.Body, Env: rho}), nil
}

func (ev *Evaluator) evalFix(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	fn, err := ev.Eval(e.Fix.Fn, rho)
	if err != nil {
		return nil, err
	}
	if fn.IsError() {
		return fn, nil
	}
	if fn.Kind != ir.VClosure || len(fn.Closure.Params) != 1 {
		return ir.NewError(ir.ErrTypeError, "fix requires a one-parameter closure", nil), nil
	}
	c := fn.Closure
	// Y-combinator-style call-by-value recursion (§4.4): x is bound, in
	// the closure's captured environment, to the value the body itself
	// evaluates to, so in fix(λself. λn. … self(…) …) self names the
	// resulting closure. The placeholder is filled in once that value
	// exists.
	self := &ir.Value{}
	v, err := ev.Eval(c.Body, c.Env.Extend(c.Params[0].Name, self))
	if err != nil {
		return nil, err
	}
	*self = *v
	return v, nil
}
