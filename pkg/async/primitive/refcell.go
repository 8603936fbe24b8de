package primitive

import "spiral/pkg/ir"

// RefCell is a mutex-guarded single slot (§4.7): Read/Write/Modify are
// atomic with respect to each other. UnsafeRead/UnsafeWrite bypass the
// guard for callers that already serialize their own access.
type RefCell struct {
	lock *Mutex
	val  *ir.Value
}

func NewRefCell(init *ir.Value) *RefCell {
	return &RefCell{lock: NewMutex(), val: init}
}

func (c *RefCell) Read() *ir.Value {
	c.lock.Acquire()
	defer c.lock.Release()
	return c.val
}

func (c *RefCell) Write(v *ir.Value) {
	c.lock.Acquire()
	defer c.lock.Release()
	c.val = v
}

// Modify atomically replaces the slot's contents with f's result applied
// to the current contents, returning the new value.
func (c *RefCell) Modify(f func(*ir.Value) *ir.Value) *ir.Value {
	c.lock.Acquire()
	defer c.lock.Release()
	c.val = f(c.val)
	return c.val
}

// UnsafeRead reads without acquiring the guard.
func (c *RefCell) UnsafeRead() *ir.Value { return c.val }

// UnsafeWrite writes without acquiring the guard.
func (c *RefCell) UnsafeWrite(v *ir.Value) { c.val = v }
