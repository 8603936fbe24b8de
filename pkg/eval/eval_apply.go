package eval

import "spiral/pkg/ir"

// evalApply requires a closure, evaluates arguments, checks arity
// (min=required, max=all), and for an omitted optional parameter
// evaluates its declared default in the *closure's captured environment*
// or binds the undefined sentinel (§4.4).
func (ev *Evaluator) evalApply(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	fnVal, err := ev.Eval(e.Apply.Fn, rho)
	if err != nil {
		return nil, err
	}
	if fnVal.IsError() {
		return fnVal, nil
	}
	if fnVal.Kind != ir.VClosure {
		return ir.NewError(ir.ErrTypeError, "function application requires a closure", nil), nil
	}
	c := fnVal.Closure

	args := make([]*ir.Value, len(e.Apply.Args))
	for i, a := range e.Apply.Args {
		v, aerr := ev.Eval(a, rho)
		if aerr != nil {
			return nil, aerr
		}
		if v.IsError() {
			return v, nil
		}
		args[i] = v
	}

	required := 0
	for _, p := range c.Params {
		if !p.Optional {
			required++
		}
	}
	if len(args) < required || len(args) > len(c.Params) {
		return ir.NewError(ir.ErrArityError, "argument count does not match parameter count", nil), nil
	}

	callEnv := c.Env
	for i, p := range c.Params {
		if i < len(args) {
			callEnv = callEnv.Extend(p.Name, args[i])
			continue
		}
		if p.Default != nil {
			dv, derr := ev.Eval(p.Default, c.Env)
			if derr != nil {
				return nil, derr
			}
			callEnv = callEnv.Extend(p.Name, dv)
		} else {
			callEnv = callEnv.Extend(p.Name, ir.Undefined())
		}
	}

	return ev.Eval(c.Body, callEnv)
}
