package ir

// ExprKind is the closed set of expression forms across AIR/CIR/EIR/PIR
// (§3). A validated AIR document never contains a CIR-or-later kind; the
// validator enforces that per layer (§4.3).
type ExprKind uint8

const (
	EKLiteral ExprKind = iota
	EKVariable
	EKDefRef
	EKIf
	EKLet
	EKOpCall

	// CIR
	EKLambda
	EKApply
	EKFix

	// EIR
	EKSeq
	EKAssign
	EKWhile
	EKFor
	EKIter
	EKEffect
	EKRefNew
	EKRefDeref
	EKTry

	// PIR
	EKParallel
	EKSpawn
	EKAwait
	EKChanNew
	EKSend
	EKRecv
	EKSelect
	EKRace
)

// LiteralData: a literal value together with the type tag it was written
// against. Collection literals recursively hold element expressions.
type LiteralData struct {
	Type  *Type
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Items []*Expr // list/set literal elements
	Pairs []LitPair // map literal pairs
}

type LitPair struct {
	Key   *Expr
	Value *Expr
}

type VariableData struct {
	Name string
}

type DefRefData struct {
	Namespace string
	Name      string
}

type IfData struct {
	Cond, Then, Else *Expr
}

type LetData struct {
	Var   string
	Value *Expr
	Body  *Expr
}

type OpCallData struct {
	Namespace string
	Name      string
	Args      []*Expr
}

type LambdaData struct {
	Params []ClosureParam
	Body   *Expr
}

type ApplyData struct {
	Fn   *Expr
	Args []*Expr
}

type FixData struct {
	Fn *Expr // must evaluate to a one-parameter closure
}

type SeqData struct {
	First, Second *Expr
}

type AssignData struct {
	Target *Expr // must evaluate to a ref
	Value  *Expr
}

// LoopData is the payload shared by while/for/iter, which have the same
// struct shape but differ in denotation; the Expr's Kind (EKWhile, EKFor,
// EKIter) tells them apart.
type LoopData struct {
	// while
	Cond *Expr
	// for(init; cond; update)
	Init, Update *Expr
	// iter(var in collection)
	Var        string
	Collection *Expr

	Body *Expr
}

type EffectData struct {
	Name string
	Args []*Expr
}

type RefNewData struct {
	Init *Expr
}

type RefDerefData struct {
	Ref *Expr
}

type TryData struct {
	Body     *Expr
	CatchVar string
	Catch    *Expr
	Fallback *Expr // optional
}

type ParallelData struct {
	Exprs []*Expr
}

type SpawnData struct {
	// NodeID names the hybrid node (expression or block) to run as the
	// spawned task's body, executed under a freshly seeded runtime state.
	NodeID string
}

type AwaitData struct {
	Future     *Expr
	TimeoutMs  *Expr // optional
	Fallback   *Expr // optional
}

type ChanNewData struct {
	Kind     ChannelKind
	Elem     *Type
	Capacity *Expr
}

type SendData struct {
	Channel *Expr
	Value   *Expr
}

type RecvData struct {
	Channel *Expr
}

type SelectData struct {
	Futures   []*Expr
	TimeoutMs *Expr // optional
}

type RaceData struct {
	Tasks []*Expr
}

// Expr is the closed sum of expression forms. Only the field matching Kind
// is populated.
type Expr struct {
	ID   string
	Kind ExprKind
	Type *Type // optional type annotation carried on the hybrid expression node

	Lit      *LiteralData
	Variable *VariableData
	DefRef   *DefRefData
	If       *IfData
	Let      *LetData
	OpCall   *OpCallData
	Lambda   *LambdaData
	Apply    *ApplyData
	Fix      *FixData
	Seq      *SeqData
	Assign   *AssignData
	Loop     *LoopData
	Effect   *EffectData
	RefNew   *RefNewData
	RefDeref *RefDerefData
	Try      *TryData
	Parallel *ParallelData
	Spawn    *SpawnData
	Await    *AwaitData
	ChanNew  *ChanNewData
	Send     *SendData
	Recv     *RecvData
	Select   *SelectData
	Race     *RaceData
}

// Children returns every direct sub-expression of e, generically across
// kinds. Shared by the validator's graph walks and the evaluator's
// node-dependency walk, both of which need to enumerate an expression's
// operands without a kind-specific switch of their own.
func (e *Expr) Children() []*Expr {
	var out []*Expr
	switch e.Kind {
	case EKLiteral:
		if e.Lit != nil {
			out = append(out, e.Lit.Items...)
			for _, p := range e.Lit.Pairs {
				out = append(out, p.Key, p.Value)
			}
		}
	case EKIf:
		if e.If != nil {
			out = append(out, e.If.Cond, e.If.Then, e.If.Else)
		}
	case EKLet:
		if e.Let != nil {
			out = append(out, e.Let.Value, e.Let.Body)
		}
	case EKOpCall:
		if e.OpCall != nil {
			out = append(out, e.OpCall.Args...)
		}
	case EKLambda:
		if e.Lambda != nil {
			out = append(out, e.Lambda.Body)
			for _, p := range e.Lambda.Params {
				if p.Default != nil {
					out = append(out, p.Default)
				}
			}
		}
	case EKApply:
		if e.Apply != nil {
			out = append(out, e.Apply.Fn)
			out = append(out, e.Apply.Args...)
		}
	case EKFix:
		if e.Fix != nil {
			out = append(out, e.Fix.Fn)
		}
	case EKSeq:
		if e.Seq != nil {
			out = append(out, e.Seq.First, e.Seq.Second)
		}
	case EKAssign:
		if e.Assign != nil {
			out = append(out, e.Assign.Target, e.Assign.Value)
		}
	case EKWhile:
		if e.Loop != nil {
			out = append(out, e.Loop.Cond, e.Loop.Body)
		}
	case EKFor:
		if e.Loop != nil {
			if e.Loop.Init != nil {
				out = append(out, e.Loop.Init)
			}
			out = append(out, e.Loop.Cond)
			if e.Loop.Update != nil {
				out = append(out, e.Loop.Update)
			}
			out = append(out, e.Loop.Body)
		}
	case EKIter:
		if e.Loop != nil {
			out = append(out, e.Loop.Collection, e.Loop.Body)
		}
	case EKEffect:
		if e.Effect != nil {
			out = append(out, e.Effect.Args...)
		}
	case EKRefNew:
		if e.RefNew != nil {
			out = append(out, e.RefNew.Init)
		}
	case EKRefDeref:
		if e.RefDeref != nil {
			out = append(out, e.RefDeref.Ref)
		}
	case EKTry:
		if e.Try != nil {
			out = append(out, e.Try.Body, e.Try.Catch)
			if e.Try.Fallback != nil {
				out = append(out, e.Try.Fallback)
			}
		}
	case EKParallel:
		if e.Parallel != nil {
			out = append(out, e.Parallel.Exprs...)
		}
	case EKAwait:
		if e.Await != nil {
			out = append(out, e.Await.Future)
			if e.Await.TimeoutMs != nil {
				out = append(out, e.Await.TimeoutMs)
			}
			if e.Await.Fallback != nil {
				out = append(out, e.Await.Fallback)
			}
		}
	case EKChanNew:
		if e.ChanNew != nil && e.ChanNew.Capacity != nil {
			out = append(out, e.ChanNew.Capacity)
		}
	case EKSend:
		if e.Send != nil {
			out = append(out, e.Send.Channel, e.Send.Value)
		}
	case EKRecv:
		if e.Recv != nil {
			out = append(out, e.Recv.Channel)
		}
	case EKSelect:
		if e.Select != nil {
			out = append(out, e.Select.Futures...)
			if e.Select.TimeoutMs != nil {
				out = append(out, e.Select.TimeoutMs)
			}
		}
	case EKRace:
		if e.Race != nil {
			out = append(out, e.Race.Tasks...)
		}
	}

	filtered := out[:0]
	for _, child := range out {
		if child != nil {
			filtered = append(filtered, child)
		}
	}
	return filtered
}
