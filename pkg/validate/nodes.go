package validate

import (
	"fmt"

	"spiral/pkg/ir"
)

func (c *collector) checkNodes(doc *ir.Document, l Layer) {
	allowed := allowedKinds(l)
	seen := make(map[string]bool, len(doc.Nodes))

	for i, n := range doc.Nodes {
		path := fmt.Sprintf("/nodes/%d", i)
		if n.ID == "" {
			c.add(path+"/id", "node has no id")
		} else if !identifierRe.MatchString(n.ID) {
			c.add(path+"/id", "node id %q is not a valid identifier", n.ID)
		} else if seen[n.ID] {
			c.add(path+"/id", "duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		hasExpr := n.Expr != nil
		hasBlocks := len(n.Blocks) > 0
		switch {
		case hasExpr && hasBlocks:
			c.add(path, "node %q is both an expression node and a block node", n.ID)
		case !hasExpr && !hasBlocks:
			c.add(path, "node %q is neither an expression node nor a block node", n.ID)
		case hasExpr:
			c.checkExpr(path+"/expr", n.Expr, allowed, l)
		case hasBlocks:
			c.checkBlockNode(path, n, allowed, l)
		}
	}
}

func (c *collector) checkBlockNode(path string, n *ir.Node, allowed map[ir.ExprKind]bool, l Layer) {
	blockIDs := make(map[string]bool, len(n.Blocks))
	for _, b := range n.Blocks {
		blockIDs[b.ID] = true
	}

	if n.Entry == "" || !blockIDs[n.Entry] {
		c.add(path+"/entry", "entry block %q does not exist in node %q", n.Entry, n.ID)
	}

	for bi, b := range n.Blocks {
		bpath := fmt.Sprintf("%s/blocks/%d", path, bi)
		for ii, instr := range b.Instructions {
			switch instr.Kind {
			case ir.IKPhi:
				for si, src := range instr.PhiSources {
					if !blockIDs[src.Predecessor] {
						c.add(fmt.Sprintf("%s/instructions/%d/phi/%d", bpath, ii, si),
							"phi predecessor block %q does not exist in node %q", src.Predecessor, n.ID)
					}
				}
			case ir.IKAssign:
				if instr.AssignExpr != nil {
					c.checkExpr(fmt.Sprintf("%s/instructions/%d/expr", bpath, ii), instr.AssignExpr, allowed, l)
				}
			}
		}
		if b.Terminator == nil {
			c.add(bpath+"/terminator", "block %q has no terminator", b.ID)
			continue
		}
		c.checkTerminator(bpath+"/terminator", b.Terminator, blockIDs, n.ID)
	}
}

func (c *collector) checkTerminator(path string, t *ir.Terminator, blockIDs map[string]bool, nodeID string) {
	switch t.Kind {
	case ir.TKJump:
		if !blockIDs[t.To] {
			c.add(path, "jump target %q does not exist in node %q", t.To, nodeID)
		}
	case ir.TKBranch:
		if !blockIDs[t.Then] {
			c.add(path+"/then", "branch target %q does not exist in node %q", t.Then, nodeID)
		}
		if !blockIDs[t.Else] {
			c.add(path+"/else", "branch target %q does not exist in node %q", t.Else, nodeID)
		}
	case ir.TKFork:
		for i, br := range t.ForkBranches {
			if !blockIDs[br.Block] {
				c.add(fmt.Sprintf("%s/forkBranches/%d", path, i), "fork branch block %q does not exist in node %q", br.Block, nodeID)
			}
		}
		if t.ForkContinuation != "" && !blockIDs[t.ForkContinuation] {
			c.add(path+"/forkContinuation", "fork continuation %q does not exist in node %q", t.ForkContinuation, nodeID)
		}
	case ir.TKJoin:
		if t.JoinContinuation != "" && !blockIDs[t.JoinContinuation] {
			c.add(path+"/joinContinuation", "join continuation %q does not exist in node %q", t.JoinContinuation, nodeID)
		}
	case ir.TKSuspend:
		if !blockIDs[t.ResumeBlock] {
			c.add(path+"/resumeBlock", "suspend resume block %q does not exist in node %q", t.ResumeBlock, nodeID)
		}
	case ir.TKReturn, ir.TKExit:
		// no block target to check
	}
}

func (c *collector) checkResult(doc *ir.Document) {
	if doc.Result == "" {
		c.add("/result", "document has no result node id")
		return
	}
	for _, n := range doc.Nodes {
		if n.ID == doc.Result {
			return
		}
	}
	c.add("/result", "result node id %q does not exist", doc.Result)
}
