package validate

import (
	"fmt"
	"regexp"

	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	versionRe    = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)
)

type collector struct {
	errs errs.ValidationErrors
}

func (c *collector) add(path, format string, args ...any) {
	c.errs = append(c.errs, &errs.ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validate checks doc against the structural rules for l (§4.3), returning
// the document unchanged when valid or a non-empty diagnostic list
// otherwise.
func Validate(doc *ir.Document, l Layer) (*ir.Document, errs.ValidationErrors) {
	c := &collector{}

	c.checkStructural(doc)
	c.checkVersion(doc, l)
	c.checkDefinitions(doc, l)
	c.checkNodes(doc, l)
	c.checkAcyclicity(doc)
	c.checkResult(doc)

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return doc, nil
}

func (c *collector) checkVersion(doc *ir.Document, l Layer) {
	m := versionRe.FindStringSubmatch(doc.Version)
	if m == nil {
		c.add("/version", "version %q does not match <major>.<minor>.<patch>", doc.Version)
		return
	}
	var major int
	fmt.Sscanf(m[1], "%d", &major)
	if major != l.RequiredMajor() {
		c.add("/version", "%s documents require major version %d, got %d", l, l.RequiredMajor(), major)
	}
}

func (c *collector) checkDefinitions(doc *ir.Document, l Layer) {
	allowed := allowedKinds(l)
	for i, d := range doc.Defs {
		path := fmt.Sprintf("/defs/%d", i)
		if !identifierRe.MatchString(d.Namespace) {
			c.add(path+"/namespace", "namespace %q is not a valid identifier", d.Namespace)
		}
		if !identifierRe.MatchString(d.Name) {
			c.add(path+"/name", "name %q is not a valid identifier", d.Name)
		}
		for j, p := range d.Params {
			if !identifierRe.MatchString(p.Name) {
				c.add(fmt.Sprintf("%s/params/%d", path, j), "parameter name %q is not a valid identifier", p.Name)
			}
		}
		if d.Result == nil {
			c.add(path+"/result", "definition %s:%s has no result type", d.Namespace, d.Name)
		} else {
			c.checkType(path+"/result", d.Result)
		}
		if d.Body == nil {
			c.add(path+"/body", "definition %s:%s has no body", d.Namespace, d.Name)
		} else {
			c.checkExpr(path+"/body", d.Body, allowed, l)
		}
	}
}

func (c *collector) checkType(path string, t *ir.Type) {
	if t == nil {
		c.add(path, "missing type")
		return
	}
	switch t.Tag {
	case ir.TList, ir.TSet, ir.TOption, ir.TRef, ir.TFuture, ir.TTask:
		if t.Elem == nil {
			c.add(path, "%s requires an element type", t.Tag)
		} else {
			c.checkType(path+"/elem", t.Elem)
		}
	case ir.TMap:
		if t.MapKey == nil || t.MapValue == nil {
			c.add(path, "map requires key and value types")
		} else {
			c.checkType(path+"/key", t.MapKey)
			c.checkType(path+"/value", t.MapValue)
		}
	case ir.TOpaque:
		if t.Name == "" {
			c.add(path, "opaque type requires a name")
		}
	case ir.TFn, ir.TAsync:
		if t.Result == nil {
			c.add(path, "%s requires a result type", t.Tag)
		} else {
			c.checkType(path+"/result", t.Result)
		}
		for i, p := range t.Params {
			if p.Type == nil {
				c.add(fmt.Sprintf("%s/params/%d", path, i), "parameter has no type")
			} else {
				c.checkType(fmt.Sprintf("%s/params/%d", path, i), p.Type)
			}
		}
	case ir.TChannel:
		if t.Elem == nil {
			c.add(path, "channel requires an element type")
		} else {
			c.checkType(path+"/elem", t.Elem)
		}
	case ir.TBool, ir.TInt, ir.TFloat, ir.TString, ir.TVoid:
		// no children
	default:
		c.add(path, "unknown type tag %v", t.Tag)
	}
}

// checkExpr verifies e's kind is permitted at layer l, that its required
// fields are present, and recurses into children.
func (c *collector) checkExpr(path string, e *ir.Expr, allowed map[ir.ExprKind]bool, l Layer) {
	if e == nil {
		c.add(path, "missing expression")
		return
	}
	if !allowed[e.Kind] {
		c.add(path, "expression kind %d is not permitted in %s", e.Kind, l)
		return
	}

	switch e.Kind {
	case ir.EKLiteral:
		if e.Lit == nil {
			c.add(path, "literal expression has no literal data")
			return
		}
		for i, it := range e.Lit.Items {
			c.checkExpr(fmt.Sprintf("%s/items/%d", path, i), it, allowed, l)
		}
		for i, p := range e.Lit.Pairs {
			c.checkExpr(fmt.Sprintf("%s/pairs/%d/key", path, i), p.Key, allowed, l)
			c.checkExpr(fmt.Sprintf("%s/pairs/%d/value", path, i), p.Value, allowed, l)
		}
	case ir.EKVariable:
		if e.Variable == nil || e.Variable.Name == "" {
			c.add(path, "variable expression has no name")
		}
	case ir.EKDefRef:
		if e.DefRef == nil || e.DefRef.Name == "" {
			c.add(path, "definition reference has no name")
		}
	case ir.EKIf:
		if e.If == nil || e.If.Cond == nil || e.If.Then == nil || e.If.Else == nil {
			c.add(path, "if expression is missing cond/then/else")
			return
		}
		c.checkExpr(path+"/cond", e.If.Cond, allowed, l)
		c.checkExpr(path+"/then", e.If.Then, allowed, l)
		c.checkExpr(path+"/else", e.If.Else, allowed, l)
	case ir.EKLet:
		if e.Let == nil || e.Let.Value == nil || e.Let.Body == nil {
			c.add(path, "let expression is missing value/body")
			return
		}
		if !identifierRe.MatchString(e.Let.Var) {
			c.add(path+"/var", "let variable %q is not a valid identifier", e.Let.Var)
		}
		c.checkExpr(path+"/value", e.Let.Value, allowed, l)
		c.checkExpr(path+"/body", e.Let.Body, allowed, l)
	case ir.EKOpCall:
		if e.OpCall == nil {
			c.add(path, "operator call has no data")
			return
		}
		for i, a := range e.OpCall.Args {
			c.checkExpr(fmt.Sprintf("%s/args/%d", path, i), a, allowed, l)
		}
	case ir.EKLambda:
		if e.Lambda == nil || e.Lambda.Body == nil {
			c.add(path, "lambda is missing a body")
			return
		}
		for i, p := range e.Lambda.Params {
			if !identifierRe.MatchString(p.Name) {
				c.add(fmt.Sprintf("%s/params/%d", path, i), "parameter name %q is not a valid identifier", p.Name)
			}
		}
		c.checkExpr(path+"/body", e.Lambda.Body, allowed, l)
	case ir.EKApply:
		if e.Apply == nil || e.Apply.Fn == nil {
			c.add(path, "function application has no callee")
			return
		}
		c.checkExpr(path+"/fn", e.Apply.Fn, allowed, l)
		for i, a := range e.Apply.Args {
			c.checkExpr(fmt.Sprintf("%s/args/%d", path, i), a, allowed, l)
		}
	case ir.EKFix:
		if e.Fix == nil || e.Fix.Fn == nil {
			c.add(path, "fix has no function operand")
			return
		}
		c.checkExpr(path+"/fn", e.Fix.Fn, allowed, l)
	case ir.EKSeq:
		if e.Seq == nil || e.Seq.First == nil || e.Seq.Second == nil {
			c.add(path, "sequence is missing an operand")
			return
		}
		c.checkExpr(path+"/first", e.Seq.First, allowed, l)
		c.checkExpr(path+"/second", e.Seq.Second, allowed, l)
	case ir.EKAssign:
		if e.Assign == nil || e.Assign.Target == nil || e.Assign.Value == nil {
			c.add(path, "assignment is missing target/value")
			return
		}
		c.checkExpr(path+"/target", e.Assign.Target, allowed, l)
		c.checkExpr(path+"/value", e.Assign.Value, allowed, l)
	case ir.EKWhile:
		if e.Loop == nil || e.Loop.Cond == nil || e.Loop.Body == nil {
			c.add(path, "while is missing cond/body")
			return
		}
		c.checkExpr(path+"/cond", e.Loop.Cond, allowed, l)
		c.checkExpr(path+"/body", e.Loop.Body, allowed, l)
	case ir.EKFor:
		if e.Loop == nil || e.Loop.Cond == nil || e.Loop.Body == nil {
			c.add(path, "for is missing cond/body")
			return
		}
		if e.Loop.Init != nil {
			c.checkExpr(path+"/init", e.Loop.Init, allowed, l)
		}
		c.checkExpr(path+"/cond", e.Loop.Cond, allowed, l)
		if e.Loop.Update != nil {
			c.checkExpr(path+"/update", e.Loop.Update, allowed, l)
		}
		c.checkExpr(path+"/body", e.Loop.Body, allowed, l)
	case ir.EKIter:
		if e.Loop == nil || e.Loop.Collection == nil || e.Loop.Body == nil {
			c.add(path, "iter is missing collection/body")
			return
		}
		if !identifierRe.MatchString(e.Loop.Var) {
			c.add(path+"/var", "iter variable %q is not a valid identifier", e.Loop.Var)
		}
		c.checkExpr(path+"/collection", e.Loop.Collection, allowed, l)
		c.checkExpr(path+"/body", e.Loop.Body, allowed, l)
	case ir.EKEffect:
		if e.Effect == nil || e.Effect.Name == "" {
			c.add(path, "effect invocation has no name")
			return
		}
		for i, a := range e.Effect.Args {
			c.checkExpr(fmt.Sprintf("%s/args/%d", path, i), a, allowed, l)
		}
	case ir.EKRefNew:
		if e.RefNew == nil || e.RefNew.Init == nil {
			c.add(path, "ref creation has no initial value")
			return
		}
		c.checkExpr(path+"/init", e.RefNew.Init, allowed, l)
	case ir.EKRefDeref:
		if e.RefDeref == nil || e.RefDeref.Ref == nil {
			c.add(path, "ref dereference has no operand")
			return
		}
		c.checkExpr(path+"/ref", e.RefDeref.Ref, allowed, l)
	case ir.EKTry:
		if e.Try == nil || e.Try.Body == nil || e.Try.Catch == nil {
			c.add(path, "try is missing body/catch")
			return
		}
		c.checkExpr(path+"/body", e.Try.Body, allowed, l)
		c.checkExpr(path+"/catch", e.Try.Catch, allowed, l)
		if e.Try.Fallback != nil {
			c.checkExpr(path+"/fallback", e.Try.Fallback, allowed, l)
		}
	case ir.EKParallel:
		if e.Parallel == nil || len(e.Parallel.Exprs) == 0 {
			c.add(path, "parallel composition has no operands")
			return
		}
		for i, x := range e.Parallel.Exprs {
			c.checkExpr(fmt.Sprintf("%s/exprs/%d", path, i), x, allowed, l)
		}
	case ir.EKSpawn:
		if e.Spawn == nil || e.Spawn.NodeID == "" {
			c.add(path, "spawn has no target node id")
		}
	case ir.EKAwait:
		if e.Await == nil || e.Await.Future == nil {
			c.add(path, "await has no future operand")
			return
		}
		c.checkExpr(path+"/future", e.Await.Future, allowed, l)
		if e.Await.TimeoutMs != nil {
			c.checkExpr(path+"/timeoutMs", e.Await.TimeoutMs, allowed, l)
		}
		if e.Await.Fallback != nil {
			c.checkExpr(path+"/fallback", e.Await.Fallback, allowed, l)
		}
	case ir.EKChanNew:
		if e.ChanNew == nil || e.ChanNew.Elem == nil {
			c.add(path, "channel creation has no element type")
			return
		}
		c.checkType(path+"/elem", e.ChanNew.Elem)
		if e.ChanNew.Capacity != nil {
			c.checkExpr(path+"/capacity", e.ChanNew.Capacity, allowed, l)
		}
	case ir.EKSend:
		if e.Send == nil || e.Send.Channel == nil || e.Send.Value == nil {
			c.add(path, "send is missing channel/value")
			return
		}
		c.checkExpr(path+"/channel", e.Send.Channel, allowed, l)
		c.checkExpr(path+"/value", e.Send.Value, allowed, l)
	case ir.EKRecv:
		if e.Recv == nil || e.Recv.Channel == nil {
			c.add(path, "recv has no channel operand")
			return
		}
		c.checkExpr(path+"/channel", e.Recv.Channel, allowed, l)
	case ir.EKSelect:
		if e.Select == nil || len(e.Select.Futures) == 0 {
			c.add(path, "select has no futures")
			return
		}
		for i, f := range e.Select.Futures {
			c.checkExpr(fmt.Sprintf("%s/futures/%d", path, i), f, allowed, l)
		}
		if e.Select.TimeoutMs != nil {
			c.checkExpr(path+"/timeoutMs", e.Select.TimeoutMs, allowed, l)
		}
	case ir.EKRace:
		if e.Race == nil || len(e.Race.Tasks) == 0 {
			c.add(path, "race has no tasks")
			return
		}
		for i, t := range e.Race.Tasks {
			c.checkExpr(fmt.Sprintf("%s/tasks/%d", path, i), t, allowed, l)
		}
	}
}
