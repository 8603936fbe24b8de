// Package validate implements the per-layer structural validator (§4.3).
// Grounded on backend/pkg/builder/validation.go's per-kind required-field
// checks, generalized from fmt.Errorf returns to a path-carrying
// errs.ValidationErrors list, and on backend/pkg/engine/dag_utils.go's
// graph-building style for the acyclicity pass.
package validate

import "spiral/pkg/ir"

// Layer is the IR dialect a document is validated against. Each layer is
// cumulative: CIR permits every AIR form plus its own, EIR permits every
// CIR form plus its own, and so on (§4.3: "CIR forms... are rejected in
// AIR" is the one explicit instance of this rule; the rest generalizes
// it).
type Layer int

const (
	AIR Layer = iota
	CIR
	EIR
	LIR
	PIR
)

func (l Layer) String() string {
	switch l {
	case AIR:
		return "AIR"
	case CIR:
		return "CIR"
	case EIR:
		return "EIR"
	case LIR:
		return "LIR"
	case PIR:
		return "PIR"
	default:
		return "unknown"
	}
}

// RequiredMajor returns the version major a document at this layer must
// declare: 1.x for AIR/CIR/EIR/LIR, 2.x for PIR (§6).
func (l Layer) RequiredMajor() int {
	if l == PIR {
		return 2
	}
	return 1
}

var airKinds = map[ir.ExprKind]bool{
	ir.EKLiteral: true, ir.EKVariable: true, ir.EKDefRef: true,
	ir.EKIf: true, ir.EKLet: true, ir.EKOpCall: true,
}

var cirOnly = map[ir.ExprKind]bool{
	ir.EKLambda: true, ir.EKApply: true, ir.EKFix: true,
}

var eirOnly = map[ir.ExprKind]bool{
	ir.EKSeq: true, ir.EKAssign: true, ir.EKWhile: true, ir.EKFor: true,
	ir.EKIter: true, ir.EKEffect: true, ir.EKRefNew: true, ir.EKRefDeref: true,
	ir.EKTry: true,
}

var pirOnly = map[ir.ExprKind]bool{
	ir.EKParallel: true, ir.EKSpawn: true, ir.EKAwait: true, ir.EKChanNew: true,
	ir.EKSend: true, ir.EKRecv: true, ir.EKSelect: true, ir.EKRace: true,
}

// allowedKinds returns the full set of expression kinds permitted at l.
func allowedKinds(l Layer) map[ir.ExprKind]bool {
	out := make(map[ir.ExprKind]bool, len(airKinds)+len(cirOnly)+len(eirOnly)+len(pirOnly))
	for k := range airKinds {
		out[k] = true
	}
	if l == AIR {
		return out
	}
	for k := range cirOnly {
		out[k] = true
	}
	if l == CIR {
		return out
	}
	for k := range eirOnly {
		out[k] = true
	}
	if l == EIR || l == LIR {
		return out
	}
	for k := range pirOnly {
		out[k] = true
	}
	return out
}
