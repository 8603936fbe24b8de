package eval

import "spiral/pkg/ir"

// evalSeq evaluates First for its effects then returns Second's value
// (§4.4 EIR forms).
func (ev *Evaluator) evalSeq(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	first, err := ev.Eval(e.Seq.First, rho)
	if err != nil {
		return nil, err
	}
	if first.IsError() {
		return first, nil
	}
	return ev.Eval(e.Seq.Second, rho)
}

// evalAssign requires Target to evaluate to a ref and writes Value into
// its cell (§4.4: "assign writes the value to a reference cell").
func (ev *Evaluator) evalAssign(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	target, err := ev.Eval(e.Assign.Target, rho)
	if err != nil {
		return nil, err
	}
	if target.IsError() {
		return target, nil
	}
	if target.Kind != ir.VRef {
		return ir.NewError(ir.ErrTypeError, "assignment target must be a ref", nil), nil
	}
	val, err := ev.Eval(e.Assign.Value, rho)
	if err != nil {
		return nil, err
	}
	if val.IsError() {
		return val, nil
	}
	target.Cell.Value = val
	return ir.NewVoid(), nil
}

// evalWhile runs the standard while denotation to completion, ending in
// void (§4.4, and SPEC_FULL.md §13.3's resolution of the "loops return
// void as a placeholder" open question: this executes the full
// denotation, not a stub).
func (ev *Evaluator) evalWhile(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	for {
		cond, err := ev.Eval(e.Loop.Cond, rho)
		if err != nil {
			return nil, err
		}
		if cond.IsError() {
			return cond, nil
		}
		if cond.Kind != ir.VBool {
			return ir.NewError(ir.ErrTypeError, "while condition must be bool", nil), nil
		}
		if !cond.Bool {
			return ir.NewVoid(), nil
		}
		if body, err := ev.Eval(e.Loop.Body, rho); err != nil {
			return nil, err
		} else if body.IsError() {
			return body, nil
		}
	}
}

// evalFor runs for(init; cond; update) body to completion, ending in
// void.
func (ev *Evaluator) evalFor(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if e.Loop.Init != nil {
		v, err := ev.Eval(e.Loop.Init, rho)
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return v, nil
		}
	}
	for {
		cond, err := ev.Eval(e.Loop.Cond, rho)
		if err != nil {
			return nil, err
		}
		if cond.IsError() {
			return cond, nil
		}
		if cond.Kind != ir.VBool {
			return ir.NewError(ir.ErrTypeError, "for condition must be bool", nil), nil
		}
		if !cond.Bool {
			return ir.NewVoid(), nil
		}
		if body, err := ev.Eval(e.Loop.Body, rho); err != nil {
			return nil, err
		} else if body.IsError() {
			return body, nil
		}
		if e.Loop.Update != nil {
			if v, err := ev.Eval(e.Loop.Update, rho); err != nil {
				return nil, err
			} else if v.IsError() {
				return v, nil
			}
		}
	}
}

// evalIter binds Var to each element of Collection in turn and evaluates
// Body, ending in void.
func (ev *Evaluator) evalIter(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	coll, err := ev.Eval(e.Loop.Collection, rho)
	if err != nil {
		return nil, err
	}
	if coll.IsError() {
		return coll, nil
	}

	var items []*ir.Value
	switch coll.Kind {
	case ir.VList:
		items = coll.Items
	case ir.VSet:
		items = coll.SetItems()
	default:
		return ir.NewError(ir.ErrTypeError, "iter requires a list or set", nil), nil
	}

	for _, item := range items {
		if body, err := ev.Eval(e.Loop.Body, rho.Extend(e.Loop.Var, item)); err != nil {
			return nil, err
		} else if body.IsError() {
			return body, nil
		}
	}
	return ir.NewVoid(), nil
}

// evalEffect dispatches through the effect registry and records the
// call in the ordered effect log (§4.4).
func (ev *Evaluator) evalEffect(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	args := make([]*ir.Value, len(e.Effect.Args))
	for i, a := range e.Effect.Args {
		v, err := ev.Eval(a, rho)
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return v, nil
		}
		args[i] = v
	}

	namespace, name := splitEffectName(e.Effect.Name)
	result, err := ev.Effects.Call(namespace, name, args)
	if err != nil {
		return nil, err
	}

	ev.appendEffectLog(e.Effect.Name, args, result)
	return result, nil
}

// splitEffectName splits a "namespace:name" effect name; an unqualified
// name is treated as belonging to the empty namespace.
func splitEffectName(qualified string) (namespace, name string) {
	return SplitEffectName(qualified)
}

// SplitEffectName splits a "namespace:name" effect name; an unqualified
// name is treated as belonging to the empty namespace. Exported so
// pkg/cfg's effect instruction can reuse the same parsing rule instead of
// duplicating it.
func SplitEffectName(qualified string) (namespace, name string) {
	for i := 0; i < len(qualified); i++ {
		if qualified[i] == ':' {
			return qualified[:i], qualified[i+1:]
		}
	}
	return "", qualified
}

func (ev *Evaluator) evalRefNew(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	init, err := ev.Eval(e.RefNew.Init, rho)
	if err != nil {
		return nil, err
	}
	if init.IsError() {
		return init, nil
	}
	return ir.NewRef(init), nil
}

func (ev *Evaluator) evalRefDeref(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	ref, err := ev.Eval(e.RefDeref.Ref, rho)
	if err != nil {
		return nil, err
	}
	if ref.IsError() {
		return ref, nil
	}
	if ref.Kind != ir.VRef {
		return ir.NewError(ir.ErrTypeError, "dereference requires a ref", nil), nil
	}
	return ref.Cell.Value, nil
}

// evalTry evaluates Body; on an error value it binds CatchVar and
// evaluates Catch; otherwise, if Fallback is present, Fallback's value
// is returned instead of Body's (§4.4).
func (ev *Evaluator) evalTry(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	body, err := ev.Eval(e.Try.Body, rho)
	if err != nil {
		return nil, err
	}
	if body.IsError() {
		return ev.Eval(e.Try.Catch, rho.Extend(e.Try.CatchVar, body))
	}
	if e.Try.Fallback != nil {
		return ev.Eval(e.Try.Fallback, rho)
	}
	return body, nil
}
