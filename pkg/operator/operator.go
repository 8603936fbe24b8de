// Package operator implements the namespaced operator table (§4.1).
// Grounded on backend/pkg/executor/registry.go: an RWMutex-guarded map
// keyed by a qualified name, with Register/Lookup/duplicate-rejection
// shaped the same way the teacher's executor Registry is.
package operator

import (
	"fmt"
	"sync"

	"spiral/internal/engineconfig"
	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

// Impl is a native operator implementation. It receives already-evaluated
// value operands (arity already checked by the caller) and either returns
// a value — possibly an error value — or a Go error (§4.1). Call passes
// such a Go error through to its caller unchanged; it does not convert it
// to an ir.Value error.
type Impl func(args []*ir.Value) (*ir.Value, error)

// Operator is one registered entry: namespace, name, parameter types,
// return type, purity, and implementation (§4.1).
type Operator struct {
	Namespace  string
	Name       string
	ParamTypes []*ir.Type
	ReturnType *ir.Type
	Pure       bool
	Impl       Impl
}

func (o *Operator) QualifiedName() string { return o.Namespace + ":" + o.Name }

// Registry is the namespaced operator table.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]*Operator
	memo  *MemoCache // nil when memoisation is disabled
}

// NewRegistry creates an empty registry. Pass a positive memoCapacity to
// enable memoisation of pure-operator calls (§4.1: "Pure operators may be
// reordered or memoised by callers"); 0 disables it.
func NewRegistry(memoCapacity int) *Registry {
	r := &Registry{ops: make(map[string]*Operator)}
	if memoCapacity > 0 {
		r.memo = NewMemoCache(memoCapacity)
	}
	return r
}

// NewRegistryFromConfig builds a Registry using cfg's
// OperatorMemoCapacity (§10.3).
func NewRegistryFromConfig(cfg *engineconfig.Config) *Registry {
	return NewRegistry(cfg.OperatorMemoCapacity)
}

// Register adds an operator, rejecting duplicates under the same
// qualified name.
func (r *Registry) Register(op *Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := op.QualifiedName()
	if _, exists := r.ops[key]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateOperator, key)
	}
	r.ops[key] = op
	return nil
}

// Lookup retrieves an operator by (namespace, name).
func (r *Registry) Lookup(namespace, name string) (*Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[namespace+":"+name]
	return op, ok
}

// CheckCall validates arity and the structural type of each argument
// against the operator's declared parameter types, returning its declared
// return type on success (§4.1).
func (r *Registry) CheckCall(namespace, name string, argTypes []*ir.Type) (*ir.Type, error) {
	op, ok := r.Lookup(namespace, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", errs.ErrUnknownOperator, namespace, name)
	}
	if len(argTypes) != len(op.ParamTypes) {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", errs.ErrArityMismatch, op.QualifiedName(), len(op.ParamTypes), len(argTypes))
	}
	for i, pt := range op.ParamTypes {
		if !pt.Equal(argTypes[i]) {
			return nil, fmt.Errorf("operator %s: argument %d: expected %s, got %s", op.QualifiedName(), i, pt, argTypes[i])
		}
	}
	return op.ReturnType, nil
}

// Call checks arity then applies the implementation. It does not test
// operands for error values; the evaluator short-circuits on an
// error-valued operand before it reaches Call (§4.4). Call re-checks arity
// as a defensive boundary between a validated document and the registry;
// argument types are compared only by CheckCall.
func (r *Registry) Call(namespace, name string, args []*ir.Value) (*ir.Value, error) {
	op, ok := r.Lookup(namespace, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", errs.ErrUnknownOperator, namespace, name)
	}
	if len(args) != len(op.ParamTypes) {
		return ir.NewError(ir.ErrArityError, fmt.Sprintf("%s expects %d argument(s), got %d", op.QualifiedName(), len(op.ParamTypes), len(args)), nil), nil
	}

	if op.Pure && r.memo != nil {
		key := memoKey(op.QualifiedName(), args)
		if cached, ok := r.memo.Get(key); ok {
			return cached, nil
		}
		v, err := op.Impl(args)
		if err != nil {
			return nil, err
		}
		r.memo.Put(key, v)
		return v, nil
	}

	return op.Impl(args)
}

func memoKey(qualified string, args []*ir.Value) string {
	key := qualified
	for _, a := range args {
		key += "|" + ir.Hash(a)
	}
	return key
}
