package effect

import (
	"sync"

	"spiral/pkg/ir"
)

// InputQueue is the replaceable source readLine/readInt pop from (§4.2).
// An external driver seeds it with pre-supplied inputs so an interactive
// document evaluates deterministically under test.
type InputQueue struct {
	mu     sync.Mutex
	values []string
}

func NewInputQueue(values []string) *InputQueue {
	q := &InputQueue{values: make([]string, len(values))}
	copy(q.values, values)
	return q
}

// Pop returns the next queued input, or "" when exhausted.
func (q *InputQueue) Pop() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.values) == 0 {
		return ""
	}
	v := q.values[0]
	q.values = q.values[1:]
	return v
}

// StateStore backs getState/setState: a simple shared key-value map, the
// way the teacher's execution state holds per-run variables
// (backend/pkg/engine/execution_state.go) rather than a database.
type StateStore struct {
	mu   sync.RWMutex
	vars map[string]*ir.Value
}

func NewStateStore() *StateStore {
	return &StateStore{vars: make(map[string]*ir.Value)}
}

func (s *StateStore) Get(key string) (*ir.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

func (s *StateStore) Set(key string, v *ir.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[key] = v
}

// Clock abstracts sleep so tests never actually block; the default
// advances a logical counter instead of calling time.Sleep.
type Clock interface {
	Sleep(ms int64)
}

// LogicalClock records requested sleeps without blocking, for
// deterministic tests that assert on accumulated virtual time.
type LogicalClock struct {
	mu      sync.Mutex
	Elapsed int64
}

func (c *LogicalClock) Sleep(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Elapsed += ms
}

// RandomSource abstracts random so it can be seeded deterministically in
// tests (§8: evaluation must be reproducible given the same inputs).
type RandomSource interface {
	Int63() int64
}

// RegisterStdlib installs the io namespace's readLine/readInt/random/
// sleep/getState/setState effects (§4.2's named default set) into r,
// backed by q, store, clock and rnd. Each is registered with pure=false
// implicitly (the effect.Registry type carries no Pure field at all).
func RegisterStdlib(r *Registry, q *InputQueue, store *StateStore, clock Clock, rnd RandomSource) error {
	regs := []*Effect{
		{
			Namespace: "io", Name: "readLine",
			ParamTypes: nil, ReturnType: ir.Str(),
			Impl: func(args []*ir.Value) (*ir.Value, error) {
				return ir.NewString(q.Pop()), nil
			},
		},
		{
			Namespace: "io", Name: "readInt",
			ParamTypes: nil, ReturnType: ir.Int(),
			Impl: func(args []*ir.Value) (*ir.Value, error) {
				s := q.Pop()
				if s == "" {
					return ir.NewInt(0), nil
				}
				var n int64
				var neg bool
				for i, c := range s {
					if i == 0 && c == '-' {
						neg = true
						continue
					}
					if c < '0' || c > '9' {
						return ir.NewInt(0), nil
					}
					n = n*10 + int64(c-'0')
				}
				if neg {
					n = -n
				}
				return ir.NewInt(n), nil
			},
		},
		{
			Namespace: "io", Name: "random",
			ParamTypes: nil, ReturnType: ir.Float(),
			Impl: func(args []*ir.Value) (*ir.Value, error) {
				if rnd == nil {
					return ir.NewFloat(0), nil
				}
				return ir.NewFloat(float64(rnd.Int63()%1_000_000) / 1_000_000), nil
			},
		},
		{
			Namespace: "io", Name: "sleep",
			ParamTypes: []*ir.Type{ir.Int()}, ReturnType: ir.Void(),
			Impl: func(args []*ir.Value) (*ir.Value, error) {
				if clock != nil {
					clock.Sleep(args[0].Int)
				}
				return ir.NewVoid(), nil
			},
		},
		{
			Namespace: "io", Name: "getState",
			ParamTypes: []*ir.Type{ir.Str()}, ReturnType: ir.Option(ir.Opaque("any")),
			Impl: func(args []*ir.Value) (*ir.Value, error) {
				v, ok := store.Get(args[0].Str)
				if !ok {
					return ir.NewOption(nil), nil
				}
				return ir.NewOption(v), nil
			},
		},
		{
			Namespace: "io", Name: "setState",
			ParamTypes: []*ir.Type{ir.Str(), ir.Opaque("any")}, ReturnType: ir.Void(),
			Impl: func(args []*ir.Value) (*ir.Value, error) {
				store.Set(args[0].Str, args[1])
				return ir.NewVoid(), nil
			},
		},
	}
	for _, e := range regs {
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}
