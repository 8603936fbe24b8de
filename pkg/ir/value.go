package ir

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// ValueKind is the closed set of runtime value forms.
type ValueKind uint8

const (
	VBool ValueKind = iota
	VInt
	VFloat
	VString
	VVoid
	VList
	VSet
	VMap
	VOption
	VRef
	VClosure
	VError
	VFuture
	VChannel
	VTask
	VSelectResult
)

var identitySeq atomic.Int64

func nextIdentity() string {
	return "id" + strconv.FormatInt(identitySeq.Add(1), 10)
}

// MapEntry is one key/value pair of a VMap value.
type MapEntry struct {
	Key   *Value
	Value *Value
}

// ClosureParam is one formal parameter of a lambda: a name, whether it may
// be omitted, and the default expression to evaluate (in the closure's
// captured environment) when it is.
type ClosureParam struct {
	Name     string
	Optional bool
	Default  *Expr // nil when no default is declared
}

// Closure is a first-class function value: a parameter list, a reference
// to its body expression, and a snapshot of the environment it closed
// over. The capture must be a live reference to a persistent environment
// (see DESIGN NOTES in spec.md), never a deep copy.
type Closure struct {
	Params []ClosureParam
	Body   *Expr
	Env    Env
}

// RefCell holds exactly one mutable value.
type RefCell struct {
	Value *Value
}

// ErrorValue is the first-class error payload (§3, §7).
type ErrorValue struct {
	Code     ErrorCode
	Message  string
	Metadata map[string]*Value
}

// FutureStatus is the closed set of future lifecycle states.
type FutureStatus uint8

const (
	FuturePending FutureStatus = iota
	FutureReady
	FutureError
)

// FutureValue is a handle to a value a task will eventually produce.
type FutureValue struct {
	TaskID string
	Status FutureStatus
	Result *Value // populated once Status != FuturePending
}

// ChannelHandle references an entry in a channel store; it carries no
// state of its own.
type ChannelHandle struct {
	ID   string
	Kind ChannelKind
	Elem *Type
}

// TaskHandle references an entry in the scheduler's task table.
type TaskHandle struct {
	ID string
}

// SelectResult pairs the index of the future that won a select with its
// value; Index == -1 denotes a timeout.
type SelectResult struct {
	Index int
	Value *Value
}

// Value is the closed sum of runtime values. Only the fields relevant to
// Kind are populated.
type Value struct {
	Kind ValueKind

	Bool  bool
	Int   int64
	Float float64
	Str   string

	Items []*Value // VList

	setItems map[string]*Value  // VSet: hash -> representative
	setOrder []string           // insertion order for deterministic iteration
	mapItems map[string]MapEntry // VMap: hash(key) -> entry
	mapOrder []string

	Option *Value // VOption: nil means none

	Cell *RefCell // VRef

	Closure *Closure // VClosure

	Error *ErrorValue // VError

	FutureVal *FutureValue // VFuture

	Channel *ChannelHandle // VChannel

	Task *TaskHandle // VTask

	Select *SelectResult // VSelectResult

	identity string // fresh token assigned by the constructors, for complex-value hashing
}

func NewBool(b bool) *Value    { return &Value{Kind: VBool, Bool: b} }
func NewInt(i int64) *Value    { return &Value{Kind: VInt, Int: i} }
func NewFloat(f float64) *Value { return &Value{Kind: VFloat, Float: f} }
func NewString(s string) *Value { return &Value{Kind: VString, Str: s} }
func NewVoid() *Value          { return &Value{Kind: VVoid} }

func NewList(items []*Value) *Value {
	return &Value{Kind: VList, Items: items, identity: nextIdentity()}
}

// NewSet builds a set value from items, deduplicating by Hash.
func NewSet(items []*Value) *Value {
	v := &Value{Kind: VSet, setItems: make(map[string]*Value), identity: nextIdentity()}
	for _, it := range items {
		v.SetAdd(it)
	}
	return v
}

func (v *Value) SetAdd(item *Value) {
	h := Hash(item)
	if _, ok := v.setItems[h]; !ok {
		v.setOrder = append(v.setOrder, h)
	}
	v.setItems[h] = item
}

func (v *Value) SetContains(item *Value) bool {
	_, ok := v.setItems[Hash(item)]
	return ok
}

func (v *Value) SetItems() []*Value {
	out := make([]*Value, 0, len(v.setOrder))
	for _, h := range v.setOrder {
		out = append(out, v.setItems[h])
	}
	return out
}

func (v *Value) SetLen() int { return len(v.setItems) }

// NewMap builds a map value from entries, deduplicating by key hash
// (last write wins, matching ordinary map-literal semantics).
func NewMap(entries []MapEntry) *Value {
	v := &Value{Kind: VMap, mapItems: make(map[string]MapEntry), identity: nextIdentity()}
	for _, e := range entries {
		v.MapSet(e.Key, e.Value)
	}
	return v
}

func (v *Value) MapSet(key, val *Value) {
	h := Hash(key)
	if _, ok := v.mapItems[h]; !ok {
		v.mapOrder = append(v.mapOrder, h)
	}
	v.mapItems[h] = MapEntry{Key: key, Value: val}
}

func (v *Value) MapGet(key *Value) (*Value, bool) {
	e, ok := v.mapItems[Hash(key)]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (v *Value) MapEntries() []MapEntry {
	out := make([]MapEntry, 0, len(v.mapOrder))
	for _, h := range v.mapOrder {
		out = append(out, v.mapItems[h])
	}
	return out
}

func (v *Value) MapLen() int { return len(v.mapItems) }

// NewOption builds option<T>; pass nil for none.
func NewOption(inner *Value) *Value {
	return &Value{Kind: VOption, Option: inner, identity: nextIdentity()}
}

func (v *Value) IsNone() bool { return v.Kind == VOption && v.Option == nil }

// Undefined is the sentinel bound to an omitted optional parameter with no
// declared default (§4.4, function application).
func Undefined() *Value { return NewOption(nil) }

func NewRef(init *Value) *Value {
	return &Value{Kind: VRef, Cell: &RefCell{Value: init}, identity: nextIdentity()}
}

func NewClosure(c *Closure) *Value {
	return &Value{Kind: VClosure, Closure: c, identity: nextIdentity()}
}

func NewError(code ErrorCode, message string, metadata map[string]*Value) *Value {
	return &Value{Kind: VError, Error: &ErrorValue{Code: code, Message: message, Metadata: metadata}, identity: nextIdentity()}
}

func NewFuture(taskID string) *Value {
	return &Value{Kind: VFuture, FutureVal: &FutureValue{TaskID: taskID, Status: FuturePending}, identity: nextIdentity()}
}

func NewChannel(handle *ChannelHandle) *Value {
	return &Value{Kind: VChannel, Channel: handle, identity: nextIdentity()}
}

func NewTask(handle *TaskHandle) *Value {
	return &Value{Kind: VTask, Task: handle, identity: nextIdentity()}
}

func NewSelectResult(index int, val *Value) *Value {
	return &Value{Kind: VSelectResult, Select: &SelectResult{Index: index, Value: val}, identity: nextIdentity()}
}

// IsError reports whether v is an error value — the short-circuit test
// used throughout the evaluator (§4.4).
func (v *Value) IsError() bool { return v != nil && v.Kind == VError }

func (v *Value) String() string {
	switch v.Kind {
	case VBool:
		return strconv.FormatBool(v.Bool)
	case VInt:
		return strconv.FormatInt(v.Int, 10)
	case VFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case VString:
		return v.Str
	case VVoid:
		return "void"
	case VError:
		return fmt.Sprintf("error(%s): %s", v.Error.Code, v.Error.Message)
	case VOption:
		if v.IsNone() {
			return "none"
		}
		return "some(" + v.Option.String() + ")"
	default:
		return fmt.Sprintf("<%v>", v.Kind)
	}
}
