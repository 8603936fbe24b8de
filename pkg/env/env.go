// Package env implements the persistent name→value and name→type
// environments used by the evaluator, plus the document-wide definition
// table (§3 Environments). Grounded on the teacher's mutex-guarded
// Get/Set accessor pairs (backend/pkg/engine/execution_state.go), adapted
// from a single mutable state holder to the spec's persistent,
// copy-on-extend environment: extend pushes a single-entry frame and
// never mutates an existing one, so a closure's captured Environment
// stays valid no matter what happens to the environment it was captured
// from (§9 DESIGN NOTES).
package env

import "spiral/pkg/ir"

// Environment is a linked-frame persistent name→value map. Lookup walks
// frames from the newest binding to the oldest; Extend pushes one new
// frame and returns it, leaving the receiver untouched. This is the
// "linked-frame stack" alternative spec.md §9 explicitly permits in place
// of copy-on-extend hash maps.
type Environment struct {
	name   string
	value  *ir.Value
	parent *Environment
}

// Empty returns the environment with no bindings.
func Empty() *Environment { return nil }

// Lookup implements ir.Env.
func (e *Environment) Lookup(name string) (*ir.Value, bool) {
	for f := e; f != nil; f = f.parent {
		if f.name == name {
			return f.value, true
		}
	}
	return nil, false
}

// Extend implements ir.Env: it returns a new environment with name bound
// to v, sharing every prior binding with the receiver.
func (e *Environment) Extend(name string, v *ir.Value) ir.Env {
	return &Environment{name: name, value: v, parent: e}
}

// ExtendEnv is a typed convenience wrapper returning *Environment instead
// of the ir.Env interface, for callers that need to chain further.
func (e *Environment) ExtendEnv(name string, v *ir.Value) *Environment {
	return &Environment{name: name, value: v, parent: e}
}

var _ ir.Env = (*Environment)(nil)

// TypeEnv is the name→type analogue of Environment, used by the validator
// when checking operator-call argument types against declared parameter
// types in a lexical scope (e.g. lambda parameters).
type TypeEnv struct {
	name   string
	typ    *ir.Type
	parent *TypeEnv
}

func EmptyTypeEnv() *TypeEnv { return nil }

func (e *TypeEnv) Lookup(name string) (*ir.Type, bool) {
	for f := e; f != nil; f = f.parent {
		if f.name == name {
			return f.typ, true
		}
	}
	return nil, false
}

func (e *TypeEnv) Extend(name string, t *ir.Type) *TypeEnv {
	return &TypeEnv{name: name, typ: t, parent: e}
}

// DefTable is the document-wide table of AIR definitions, keyed by
// "namespace:name". It is built once per document and treated as
// immutable for the lifetime of the evaluation (§3 Lifecycles).
type DefTable struct {
	defs map[string]*ir.Definition
}

func NewDefTable(defs []ir.Definition) *DefTable {
	t := &DefTable{defs: make(map[string]*ir.Definition, len(defs))}
	for i := range defs {
		t.defs[defs[i].QualifiedName()] = &defs[i]
	}
	return t
}

func (t *DefTable) Lookup(namespace, name string) (*ir.Definition, bool) {
	if t == nil {
		return nil, false
	}
	d, ok := t.defs[namespace+":"+name]
	return d, ok
}
