// Package effect implements the namespaced effect table (§4.2). Same
// shape as pkg/operator's registry — grounded on the same
// backend/pkg/executor/registry.go pattern — except every entry carries
// pure-flag=false by contract: effects are never memoised and their
// ordering against other effect calls is observable (§4.2, §4.4).
package effect

import (
	"fmt"
	"sync"

	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

// Impl is a native effect implementation. Unlike operator.Impl it may
// consult and mutate host-side state (an input queue, an output sink)
// between calls, which is exactly why effects are never memoised.
type Impl func(args []*ir.Value) (*ir.Value, error)

// Effect is one registered entry: namespace, name, parameter types,
// return type, and implementation. There is no Pure field — every effect
// is impure by contract (§4.2).
type Effect struct {
	Namespace  string
	Name       string
	ParamTypes []*ir.Type
	ReturnType *ir.Type
	Impl       Impl
}

func (e *Effect) QualifiedName() string { return e.Namespace + ":" + e.Name }

// Registry is the namespaced effect table.
type Registry struct {
	mu   sync.RWMutex
	effs map[string]*Effect
}

func NewRegistry() *Registry {
	return &Registry{effs: make(map[string]*Effect)}
}

// Register adds an effect, rejecting duplicates under the same qualified
// name.
func (r *Registry) Register(e *Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := e.QualifiedName()
	if _, exists := r.effs[key]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateEffect, key)
	}
	r.effs[key] = e
	return nil
}

func (r *Registry) Lookup(namespace, name string) (*Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.effs[namespace+":"+name]
	return e, ok
}

// CheckCall validates arity and argument types, returning the declared
// return type on success.
func (r *Registry) CheckCall(namespace, name string, argTypes []*ir.Type) (*ir.Type, error) {
	e, ok := r.Lookup(namespace, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", errs.ErrUnknownEffect, namespace, name)
	}
	if len(argTypes) != len(e.ParamTypes) {
		return nil, fmt.Errorf("%w: effect %s expects %d argument(s), got %d", errs.ErrArityMismatch, e.QualifiedName(), len(e.ParamTypes), len(argTypes))
	}
	for i, pt := range e.ParamTypes {
		if !pt.Equal(argTypes[i]) {
			return nil, fmt.Errorf("effect %s: argument %d: expected %s, got %s", e.QualifiedName(), i, pt, argTypes[i])
		}
	}
	return e.ReturnType, nil
}

// Call invokes the effect's implementation directly — never memoised,
// never reordered by the registry (§4.2).
func (r *Registry) Call(namespace, name string, args []*ir.Value) (*ir.Value, error) {
	e, ok := r.Lookup(namespace, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", errs.ErrUnknownEffect, namespace, name)
	}
	if len(args) != len(e.ParamTypes) {
		return ir.NewError(ir.ErrArityError, fmt.Sprintf("%s expects %d argument(s), got %d", e.QualifiedName(), len(e.ParamTypes), len(args)), nil), nil
	}
	return e.Impl(args)
}
