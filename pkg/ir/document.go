package ir

// Definition is an AIR-level named, namespaced function definition (§3).
type Definition struct {
	Namespace string
	Name      string
	Params    []ClosureParam
	Result    *Type
	Body      *Expr
}

// QualifiedName returns "namespace:name", the key definitions and
// operators alike are looked up by.
func (d *Definition) QualifiedName() string { return d.Namespace + ":" + d.Name }

// FunctionSig is an optional documented signature entry; it is descriptive
// only and does not gate evaluation (operator/effect calls are checked by
// the operator/effect registries, not by this table).
type FunctionSig struct {
	Namespace string
	Name      string
	Params    []Param
	Result    *Type
}

// Document is a parsed, not-yet-validated IR document (§3, §6). Layer is
// inferred from Version's major component by the validator.
type Document struct {
	Version      string
	Capabilities []string
	FunctionSigs []FunctionSig
	Defs         []Definition
	Nodes        []*Node
	Result       string
}

// NodeMap indexes a document's nodes by id for O(1) lookup.
func (d *Document) NodeMap() map[string]*Node {
	m := make(map[string]*Node, len(d.Nodes))
	for _, n := range d.Nodes {
		m[n.ID] = n
	}
	return m
}

// DefMap indexes a document's AIR definitions by qualified name.
func (d *Document) DefMap() map[string]*Definition {
	m := make(map[string]*Definition, len(d.Defs))
	for i := range d.Defs {
		m[d.Defs[i].QualifiedName()] = &d.Defs[i]
	}
	return m
}

// HasCapability reports whether the document declares the named
// capability tag (§6): "async", "parallel", "channels", "hybrid".
func (d *Document) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}
