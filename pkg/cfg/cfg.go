// Package cfg implements the LIR block-graph executor (§4.5): a
// single-threaded walk over a node's basic blocks, running each
// instruction in declared order and dispatching the block's terminator to
// find the next block (or a terminating value).
//
// Grounded on the teacher's DAGExecutor.Execute
// (backend/pkg/engine/dag_executor.go): that loop advances wave-by-wave
// over a topologically sorted DAG, tracking a current position and
// detecting loop-edge jumps back to an earlier wave. This executor keeps
// the same "advance, detect a jump, continue" shape but flattens it to
// block-by-block SSA execution with explicit jump/branch/fork
// terminators instead of wave indices and loop-edge tables.
package cfg

import (
	"sync"

	"spiral/internal/engineconfig"
	"spiral/pkg/effect"
	"spiral/pkg/errs"
	"spiral/pkg/eval"
	"spiral/pkg/ir"
	"spiral/pkg/operator"
)

// Executor runs block-graph nodes. ExprEval supplies the expression
// evaluator for IKAssign's full sub-expression and IKCall's application
// semantics (arity, optional-parameter defaults); Operators and Effects
// back IKOp and IKEffect directly against the variable table.
//
// pkg/async/pir embeds one Executor (Base) and calls ExecInstr/
// ExecTerminator/Tick from every concurrently-running task's goroutine
// under the Eager/BreadthFirst disciplines, so steps and visited are
// guarded by mu rather than assuming single-threaded use.
type Executor struct {
	Operators *operator.Registry
	Effects   *effect.Registry
	ExprEval  *eval.Evaluator

	MaxSteps int

	mu      sync.Mutex
	steps   int
	visited map[string]int
}

func NewExecutor(ops *operator.Registry, effs *effect.Registry, exprEval *eval.Evaluator, maxSteps int) *Executor {
	return &Executor{Operators: ops, Effects: effs, ExprEval: exprEval, MaxSteps: maxSteps}
}

// NewExecutorFromConfig builds an Executor from conf's MaxSteps limit
// (§10.3), the block-graph counterpart of eval.NewEvaluatorFromConfig.
func NewExecutorFromConfig(ops *operator.Registry, effs *effect.Registry, exprEval *eval.Evaluator, conf *engineconfig.Config) *Executor {
	return NewExecutor(ops, effs, exprEval, conf.MaxSteps)
}

// Steps reports how many instructions and terminators have executed.
func (x *Executor) Steps() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.steps
}

func (x *Executor) tick() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.steps++
	if x.MaxSteps > 0 && x.steps > x.MaxSteps {
		return errs.ErrStepBudgetExceeded
	}
	return nil
}

// markVisited records one more visit to blockID under mu — Run's own
// per-call bookkeeping, guarded since pkg/async/pir never calls Run
// directly but a single Executor's visited map would otherwise be
// unsafe to share if it ever were.
func (x *Executor) markVisited(blockID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.visited == nil {
		x.visited = make(map[string]int)
	}
	x.visited[blockID]++
}

// Run executes n starting at its entry block, threading the variable
// table rho forward as instructions bind new names, and returns the
// value published by a return or exit terminator. Run's signature is
// exactly eval.BlockEvaluator, so a Program can dispatch NodeBlockGraph
// nodes straight to it.
func (x *Executor) Run(n *ir.Node, rho ir.Env) (*ir.Value, error) {
	current := n.Entry
	previous := ""

	for {
		block := n.BlockByID(current)
		if block == nil {
			return ir.NewError(ir.ErrTypeError, "unknown block: "+current, nil), nil
		}
		x.markVisited(current)

		for _, instr := range block.Instructions {
			if err := x.tick(); err != nil {
				return nil, err
			}
			newRho, result, err := x.execInstr(instr, rho, previous)
			if err != nil {
				return nil, err
			}
			rho = newRho
			if result != nil && result.IsError() {
				return result, nil
			}
		}

		if err := x.tick(); err != nil {
			return nil, err
		}
		next, result, done, err := x.execTerminator(block.Terminator, rho)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
		previous = current
		current = next
	}
}

// execInstr runs one instruction, returning the (possibly extended)
// environment and, for an op/call/effect result that happens to be an
// error value, that value for the caller to treat as a short-circuiting
// terminating value.
func (x *Executor) execInstr(instr *ir.Instruction, rho ir.Env, previous string) (ir.Env, *ir.Value, error) {
	switch instr.Kind {
	case ir.IKAssign:
		v, err := x.ExprEval.Eval(instr.AssignExpr, rho)
		if err != nil {
			return rho, nil, err
		}
		if v.IsError() {
			return rho, v, nil
		}
		return x.bind(rho, instr.Target, v), nil, nil

	case ir.IKOp:
		args, err := lookupAll(rho, instr.OpOperands)
		if err != nil {
			return rho, err, nil
		}
		result, callErr := x.Operators.Call(instr.OpNamespace, instr.OpName, args)
		if callErr != nil {
			return rho, nil, callErr
		}
		if result.IsError() {
			return rho, result, nil
		}
		return x.bind(rho, instr.Target, result), nil, nil

	case ir.IKCall:
		apply := &ir.Expr{Kind: ir.EKApply, Apply: &ir.ApplyData{
			Fn:   &ir.Expr{Kind: ir.EKVariable, Variable: &ir.VariableData{Name: instr.CalleeVar}},
			Args: variableRefs(instr.CallArgs),
		}}
		result, err := x.ExprEval.Eval(apply, rho)
		if err != nil {
			return rho, nil, err
		}
		if result.IsError() {
			return rho, result, nil
		}
		return x.bind(rho, instr.Target, result), nil, nil

	case ir.IKPhi:
		result, err := resolvePhi(instr, rho, previous)
		if err != nil {
			return rho, err, nil
		}
		return x.bind(rho, instr.Target, result), nil, nil

	case ir.IKEffect:
		args, err := lookupAll(rho, instr.EffectOperands)
		if err != nil {
			return rho, err, nil
		}
		namespace, name := eval.SplitEffectName(instr.EffectName)
		result, callErr := x.Effects.Call(namespace, name, args)
		if callErr != nil {
			return rho, nil, callErr
		}
		if result.IsError() {
			return rho, result, nil
		}
		return x.bind(rho, instr.Target, result), nil, nil

	case ir.IKAssignRef:
		refVal, ok := rho.Lookup(instr.RefVar)
		if !ok {
			return rho, ir.NewError(ir.ErrUnboundIdentifier, "unbound ref: "+instr.RefVar, nil), nil
		}
		if refVal.Kind != ir.VRef {
			return rho, ir.NewError(ir.ErrTypeError, "assignRef target must be a ref", nil), nil
		}
		val, ok := rho.Lookup(instr.RefValue)
		if !ok {
			return rho, ir.NewError(ir.ErrUnboundIdentifier, "unbound value: "+instr.RefValue, nil), nil
		}
		refVal.Cell.Value = val
		return rho, nil, nil

	default:
		return rho, ir.NewError(ir.ErrTypeError, "instruction kind not supported by the LIR executor", nil), nil
	}
}

// resolvePhi selects the source whose predecessor equals previous;
// failing that, the first source whose variable is already bound (§4.5's
// intentional fallback for a first visit to the entry block or a
// permissive non-SSA program).
func resolvePhi(instr *ir.Instruction, rho ir.Env, previous string) (*ir.Value, *ir.Value) {
	for _, src := range instr.PhiSources {
		if src.Predecessor == previous {
			if v, ok := rho.Lookup(src.Var); ok {
				return v, nil
			}
		}
	}
	for _, src := range instr.PhiSources {
		if v, ok := rho.Lookup(src.Var); ok {
			return v, nil
		}
	}
	return nil, ir.NewError(ir.ErrUnboundIdentifier, "no phi source is bound", nil)
}

// ExecInstr runs a single LIR instruction. Exported so pkg/async/pir's
// block walk can delegate every non-PIR instruction kind here instead of
// duplicating the dispatch.
func (x *Executor) ExecInstr(instr *ir.Instruction, rho ir.Env, previous string) (ir.Env, *ir.Value, error) {
	return x.execInstr(instr, rho, previous)
}

// ExecTerminator dispatches a single non-PIR terminator. Exported for the
// same reason as ExecInstr.
func (x *Executor) ExecTerminator(t *ir.Terminator, rho ir.Env) (next string, result *ir.Value, done bool, err error) {
	return x.execTerminator(t, rho)
}

// Tick advances and checks the shared step budget. Exported so
// pkg/async/pir's block walk counts PIR-only instructions and
// terminators against the same ceiling.
func (x *Executor) Tick() error { return x.tick() }

// Bind extends rho with target bound to v, a no-op when target is empty
// (an unused result). Exported for pkg/async/pir's PIR-only instruction
// handling.
func Bind(rho ir.Env, target string, v *ir.Value) ir.Env {
	if target == "" {
		return rho
	}
	return rho.Extend(target, v)
}

func (x *Executor) bind(rho ir.Env, target string, v *ir.Value) ir.Env {
	if target == "" {
		return rho
	}
	return rho.Extend(target, v)
}

func lookupAll(rho ir.Env, names []string) ([]*ir.Value, *ir.Value) {
	out := make([]*ir.Value, len(names))
	for i, name := range names {
		v, ok := rho.Lookup(name)
		if !ok {
			return nil, ir.NewError(ir.ErrUnboundIdentifier, "unbound operand: "+name, nil)
		}
		out[i] = v
	}
	return out, nil
}

func variableRefs(names []string) []*ir.Expr {
	out := make([]*ir.Expr, len(names))
	for i, name := range names {
		out[i] = &ir.Expr{Kind: ir.EKVariable, Variable: &ir.VariableData{Name: name}}
	}
	return out
}

// execTerminator dispatches t, returning either the next block id or a
// terminating value (§4.5: branch requires bool, return/exit publish
// their optional operand, absent meaning void).
func (x *Executor) execTerminator(t *ir.Terminator, rho ir.Env) (next string, result *ir.Value, done bool, err error) {
	switch t.Kind {
	case ir.TKJump:
		return t.To, nil, false, nil

	case ir.TKBranch:
		cond, ok := rho.Lookup(t.Cond)
		if !ok {
			return "", ir.NewError(ir.ErrUnboundIdentifier, "unbound branch condition: "+t.Cond, nil), true, nil
		}
		if cond.Kind != ir.VBool {
			return "", ir.NewError(ir.ErrTypeError, "branch condition must be bool", nil), true, nil
		}
		if cond.Bool {
			return t.Then, nil, false, nil
		}
		return t.Else, nil, false, nil

	case ir.TKReturn:
		if t.ReturnVar == "" {
			return "", ir.NewVoid(), true, nil
		}
		v, ok := rho.Lookup(t.ReturnVar)
		if !ok {
			return "", ir.NewError(ir.ErrUnboundIdentifier, "unbound return operand: "+t.ReturnVar, nil), true, nil
		}
		return "", v, true, nil

	case ir.TKExit:
		if t.ExitCodeVar == "" {
			return "", ir.NewVoid(), true, nil
		}
		v, ok := rho.Lookup(t.ExitCodeVar)
		if !ok {
			return "", ir.NewError(ir.ErrUnboundIdentifier, "unbound exit code: "+t.ExitCodeVar, nil), true, nil
		}
		return "", v, true, nil

	default:
		return "", ir.NewError(ir.ErrTypeError, "terminator kind not supported by the LIR executor (PIR terminators are handled by pkg/async/pir)", nil), true, nil
	}
}
