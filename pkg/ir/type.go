// Package ir defines the type/value/expression universe shared by the
// AIR, CIR, EIR, LIR and PIR dialects: a closed set of tagged sum types
// matched by a Kind/Tag field rather than dispatched through interfaces,
// mirroring the dynamic "kind" dispatch of the layers this package
// implements (see DESIGN.md, pkg/ir).
package ir

import "strings"

// TypeTag is the closed set of type constructors across all five layers.
type TypeTag uint8

const (
	TBool TypeTag = iota
	TInt
	TFloat
	TString
	TVoid
	TList
	TSet
	TOption
	TRef
	TFuture
	TTask
	TMap
	TOpaque
	TFn
	TAsync
	TChannel
)

var typeTagNames = map[TypeTag]string{
	TBool: "bool", TInt: "int", TFloat: "float", TString: "string", TVoid: "void",
	TList: "list", TSet: "set", TOption: "option", TRef: "ref", TFuture: "future",
	TTask: "task", TMap: "map", TOpaque: "opaque", TFn: "fn", TAsync: "async", TChannel: "channel",
}

func (t TypeTag) String() string {
	if s, ok := typeTagNames[t]; ok {
		return s
	}
	return "unknown"
}

// ChannelKind is carried on channel types/values but, per spec.md's Open
// Question resolution, is informational only (see SPEC_FULL.md §13.2).
type ChannelKind uint8

const (
	ChanSPSC ChannelKind = iota
	ChanMPSC
	ChanMPMC
	ChanBroadcast
)

// Param is one parameter slot of an arrow type: a type plus whether the
// parameter may be omitted at the call site.
type Param struct {
	Type     *Type
	Optional bool
}

// Type is the closed sum of IR types. Only the fields relevant to Tag are
// populated; see the constructors below for the canonical way to build one.
type Type struct {
	Tag TypeTag

	Elem *Type // list<T>, set<T>, option<T>, ref<T>, future<T>, task<T>, channel<kind,T>

	MapKey   *Type // map<K,V>
	MapValue *Type

	Name string // opaque(name)

	Params []Param // fn/async parameter list
	Result *Type   // fn/async result type

	ChanKind ChannelKind
}

func Bool() *Type   { return &Type{Tag: TBool} }
func Int() *Type    { return &Type{Tag: TInt} }
func Float() *Type  { return &Type{Tag: TFloat} }
func Str() *Type    { return &Type{Tag: TString} }
func Void() *Type   { return &Type{Tag: TVoid} }
func List(e *Type) *Type   { return &Type{Tag: TList, Elem: e} }
func Set(e *Type) *Type    { return &Type{Tag: TSet, Elem: e} }
func Option(e *Type) *Type { return &Type{Tag: TOption, Elem: e} }
func Ref(e *Type) *Type    { return &Type{Tag: TRef, Elem: e} }
func Future(e *Type) *Type { return &Type{Tag: TFuture, Elem: e} }
func Task(e *Type) *Type   { return &Type{Tag: TTask, Elem: e} }
func Map(k, v *Type) *Type { return &Type{Tag: TMap, MapKey: k, MapValue: v} }
func Opaque(name string) *Type { return &Type{Tag: TOpaque, Name: name} }
func Fn(params []Param, result *Type) *Type {
	return &Type{Tag: TFn, Params: params, Result: result}
}
func Async(params []Param, result *Type) *Type {
	return &Type{Tag: TAsync, Params: params, Result: Future(result)}
}
func Channel(kind ChannelKind, elem *Type) *Type {
	return &Type{Tag: TChannel, Elem: elem, ChanKind: kind}
}

// Equal implements structural, recursive type equality (§3). Named opaque
// types compare by name only; channel kind is not part of equality since
// it is informational (SPEC_FULL.md §13.2).
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Tag != other.Tag {
		return false
	}
	switch t.Tag {
	case TBool, TInt, TFloat, TString, TVoid:
		return true
	case TList, TSet, TOption, TRef, TFuture, TTask, TChannel:
		return t.Elem.Equal(other.Elem)
	case TMap:
		return t.MapKey.Equal(other.MapKey) && t.MapValue.Equal(other.MapValue)
	case TOpaque:
		return t.Name == other.Name
	case TFn, TAsync:
		if len(t.Params) != len(other.Params) {
			return false
		}
		for i := range t.Params {
			if t.Params[i].Optional != other.Params[i].Optional {
				return false
			}
			if !t.Params[i].Type.Equal(other.Params[i].Type) {
				return false
			}
		}
		return t.Result.Equal(other.Result)
	}
	return false
}

// String renders a type the way a diagnostic message would reference it.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Tag {
	case TBool, TInt, TFloat, TString, TVoid:
		return t.Tag.String()
	case TList, TSet, TOption, TRef, TFuture, TTask:
		return t.Tag.String() + "<" + t.Elem.String() + ">"
	case TMap:
		return "map<" + t.MapKey.String() + "," + t.MapValue.String() + ">"
	case TOpaque:
		return "opaque(" + t.Name + ")"
	case TChannel:
		return "channel<" + t.Elem.String() + ">"
	case TFn, TAsync:
		var b strings.Builder
		if t.Tag == TAsync {
			b.WriteString("async(")
		} else {
			b.WriteString("fn(")
		}
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(p.Type.String())
			if p.Optional {
				b.WriteString("?")
			}
		}
		b.WriteString(")->")
		b.WriteString(t.Result.String())
		return b.String()
	}
	return "?"
}
