package validate

import "spiral/pkg/ir"

// edge is one reference-graph edge, with insideLambda recording whether
// the occurrence that produced it was lexically nested inside a Lambda
// body at the point it was found. A cycle is permitted only when the
// edge that closes it was found inside a lambda (§3 Invariant 5): that is
// the only way recursion arises in a direct-style language without
// explicit fix.
type edge struct {
	to           string
	insideLambda bool
}

// checkAcyclicity builds two reference graphs and depth-first-searches
// each for cycles that never pass through a lambda:
//
//   - a definition graph, edges via EKDefRef between AIR-level
//     definitions (a def calling another by qualified name);
//   - a node graph, edges via any EKVariable use that is *free* — not
//     shadowed by an enclosing let/lambda binding within the same node —
//     whose name matches another node's id, plus any EKSpawn/spawn
//     instruction naming a node to run as a task body.
//
// The node-graph reading is what Invariant 5 means by "the reference
// graph of expression nodes, excluding lambda parameters and let-bound
// names": one node's expression can read another node's result simply by
// using its id as a variable, the way the source's node graph threads
// values between nodes; telling a genuine cross-node reference apart
// from an ordinary lexically-bound local requires exactly the scope
// tracking this walk performs.
func (c *collector) checkAcyclicity(doc *ir.Document) {
	defGraph := make(map[string][]edge, len(doc.Defs))
	for _, d := range doc.Defs {
		var edges []edge
		if d.Body != nil {
			collectDefRefEdges(d.Body, false, &edges)
		}
		defGraph[d.QualifiedName()] = edges
	}
	c.checkGraphAcyclic(defGraph, "definition")

	nodeIDs := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodeIDs[n.ID] = true
	}

	nodeGraph := make(map[string][]edge, len(doc.Nodes))
	for _, n := range doc.Nodes {
		var edges []edge
		if n.Expr != nil {
			collectNodeRefEdges(n.Expr, nil, false, nodeIDs, &edges)
		}
		for _, b := range n.Blocks {
			for _, instr := range b.Instructions {
				switch instr.Kind {
				case ir.IKSpawn:
					if instr.SpawnNodeID != "" {
						edges = append(edges, edge{to: instr.SpawnNodeID, insideLambda: false})
					}
				case ir.IKAssign:
					if instr.AssignExpr != nil {
						collectNodeRefEdges(instr.AssignExpr, nil, false, nodeIDs, &edges)
					}
				}
			}
		}
		nodeGraph[n.ID] = edges
	}
	c.checkGraphAcyclic(nodeGraph, "node")
}

type dfsColor uint8

const (
	white dfsColor = iota
	gray
	black
)

func (c *collector) checkGraphAcyclic(graph map[string][]edge, kind string) {
	colors := make(map[string]dfsColor, len(graph))
	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = gray
		for _, e := range graph[name] {
			switch colors[e.to] {
			case gray:
				if !e.insideLambda {
					c.add("/", "cyclic %s reference through %q (not guarded by a lambda)", kind, e.to)
				}
			case white:
				if _, ok := graph[e.to]; ok {
					visit(e.to)
				}
			}
		}
		colors[name] = black
		return true
	}
	for name := range graph {
		if colors[name] == white {
			visit(name)
		}
	}
}

// collectDefRefEdges walks e recording one edge per EKDefRef encountered,
// namespace-qualified to match Definition.QualifiedName.
func collectDefRefEdges(e *ir.Expr, insideLambda bool, out *[]edge) {
	if e == nil {
		return
	}
	if e.Kind == ir.EKDefRef && e.DefRef != nil {
		*out = append(*out, edge{to: e.DefRef.Namespace + ":" + e.DefRef.Name, insideLambda: insideLambda})
	}
	if e.Kind == ir.EKLambda {
		insideLambda = true
	}
	for _, child := range exprChildren(e) {
		collectDefRefEdges(child, insideLambda, out)
	}
}

// collectNodeRefEdges walks e tracking the set of names bound by an
// enclosing let or lambda; an EKVariable whose name is unbound and
// matches a document node id is a genuine cross-node reference edge.
func collectNodeRefEdges(e *ir.Expr, bound map[string]bool, insideLambda bool, nodeIDs map[string]bool, out *[]edge) {
	if e == nil {
		return
	}
	if e.Kind == ir.EKVariable && e.Variable != nil {
		name := e.Variable.Name
		if !bound[name] && nodeIDs[name] {
			*out = append(*out, edge{to: name, insideLambda: insideLambda})
		}
	}

	switch e.Kind {
	case ir.EKLet:
		if e.Let != nil {
			collectNodeRefEdges(e.Let.Value, bound, insideLambda, nodeIDs, out)
			inner := extendBound(bound, e.Let.Var)
			collectNodeRefEdges(e.Let.Body, inner, insideLambda, nodeIDs, out)
		}
		return
	case ir.EKLambda:
		if e.Lambda != nil {
			inner := bound
			for _, p := range e.Lambda.Params {
				inner = extendBound(inner, p.Name)
				if p.Default != nil {
					collectNodeRefEdges(p.Default, inner, insideLambda, nodeIDs, out)
				}
			}
			collectNodeRefEdges(e.Lambda.Body, inner, true, nodeIDs, out)
		}
		return
	case ir.EKIter:
		if e.Loop != nil {
			collectNodeRefEdges(e.Loop.Collection, bound, insideLambda, nodeIDs, out)
			inner := extendBound(bound, e.Loop.Var)
			collectNodeRefEdges(e.Loop.Body, inner, insideLambda, nodeIDs, out)
		}
		return
	case ir.EKTry:
		if e.Try != nil {
			collectNodeRefEdges(e.Try.Body, bound, insideLambda, nodeIDs, out)
			inner := extendBound(bound, e.Try.CatchVar)
			collectNodeRefEdges(e.Try.Catch, inner, insideLambda, nodeIDs, out)
			if e.Try.Fallback != nil {
				collectNodeRefEdges(e.Try.Fallback, bound, insideLambda, nodeIDs, out)
			}
		}
		return
	}

	for _, child := range exprChildren(e) {
		collectNodeRefEdges(child, bound, insideLambda, nodeIDs, out)
	}
}

func extendBound(bound map[string]bool, name string) map[string]bool {
	out := make(map[string]bool, len(bound)+1)
	for k := range bound {
		out[k] = true
	}
	out[name] = true
	return out
}

// exprChildren delegates to ir.Expr.Children, shared with pkg/eval's
// node-dependency walk.
func exprChildren(e *ir.Expr) []*ir.Expr {
	return e.Children()
}
