package primitive

import (
	"sync"

	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

// senderWaiter is a goroutine blocked in Send because the buffer was full
// and no receiver was waiting; its value moves into the buffer (or
// straight to a receiver) once room appears.
type senderWaiter struct {
	value *ir.Value
	done  chan error // nil error on success, ErrChannelClosed if rejected by Close
}

// receiverWaiter is a goroutine blocked in Recv because the channel was
// empty; it is woken with a delivered value or a closed-channel error.
type receiverWaiter struct {
	result chan recvOutcome
}

type recvOutcome struct {
	value *ir.Value
	err   error
}

// Channel is a bounded FIFO with rendezvous delivery (§4.7). Kind is
// carried only as an informational tag (spec.md's Open Question on
// kind-specific enforcement resolves to "none" — see SPEC_FULL.md §13);
// every kind shares these send/recv rules.
type Channel struct {
	mu   sync.Mutex
	kind ir.ChannelKind
	cap  int
	buf  []*ir.Value

	closed bool

	recvWaiters []*receiverWaiter
	sendWaiters []*senderWaiter
}

func NewChannel(kind ir.ChannelKind, capacity int) *Channel {
	return &Channel{kind: kind, cap: capacity}
}

func (c *Channel) Kind() ir.ChannelKind { return c.kind }

// Send delivers v, suspending the caller if the buffer is full and no
// receiver is waiting (§4.7).
func (c *Channel) Send(v *ir.Value) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errs.ErrChannelClosed
	}
	if len(c.recvWaiters) > 0 {
		w := c.recvWaiters[0]
		c.recvWaiters = c.recvWaiters[1:]
		c.mu.Unlock()
		w.result <- recvOutcome{value: v}
		return nil
	}
	if len(c.buf) < c.cap {
		c.buf = append(c.buf, v)
		c.mu.Unlock()
		return nil
	}
	w := &senderWaiter{value: v, done: make(chan error, 1)}
	c.sendWaiters = append(c.sendWaiters, w)
	c.mu.Unlock()
	return <-w.done
}

// TrySend performs Send's logic without suspending, reporting whether
// the value was accepted.
func (c *Channel) TrySend(v *ir.Value) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, errs.ErrChannelClosed
	}
	if len(c.recvWaiters) > 0 {
		w := c.recvWaiters[0]
		c.recvWaiters = c.recvWaiters[1:]
		c.mu.Unlock()
		w.result <- recvOutcome{value: v}
		c.mu.Lock()
		return true, nil
	}
	if len(c.buf) < c.cap {
		c.buf = append(c.buf, v)
		return true, nil
	}
	return false, nil
}

// Recv dequeues the head value, suspending the caller if the channel is
// empty and open (§4.7).
func (c *Channel) Recv() (*ir.Value, error) {
	c.mu.Lock()
	if v, ok := c.tryDequeueLocked(); ok {
		c.mu.Unlock()
		return v, nil
	}
	if c.closed {
		c.mu.Unlock()
		return nil, errs.ErrChannelClosed
	}
	w := &receiverWaiter{result: make(chan recvOutcome, 1)}
	c.recvWaiters = append(c.recvWaiters, w)
	c.mu.Unlock()
	out := <-w.result
	return out.value, out.err
}

// TryRecv performs Recv's logic without suspending, reporting whether a
// value was available.
func (c *Channel) TryRecv() (*ir.Value, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.tryDequeueLocked(); ok {
		return v, true, nil
	}
	if c.closed {
		return nil, false, errs.ErrChannelClosed
	}
	return nil, false, nil
}

// tryDequeueLocked returns the head value if one is available, either
// from the buffer or directly from a waiting sender (cap == 0
// rendezvous). When a buffered value is taken and a sender is waiting,
// that sender's value moves into the freed buffer slot and the sender
// is resumed. Must be called with c.mu held.
func (c *Channel) tryDequeueLocked() (*ir.Value, bool) {
	if len(c.buf) > 0 {
		v := c.buf[0]
		c.buf = c.buf[1:]
		if len(c.sendWaiters) > 0 {
			w := c.sendWaiters[0]
			c.sendWaiters = c.sendWaiters[1:]
			c.buf = append(c.buf, w.value)
			w.done <- nil
		}
		return v, true
	}
	if len(c.sendWaiters) > 0 {
		w := c.sendWaiters[0]
		c.sendWaiters = c.sendWaiters[1:]
		w.done <- nil
		return w.value, true
	}
	return nil, false
}

// Close idempotently marks the channel closed, rejecting every waiting
// sender and receiver with a channel-closed error (§4.7).
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	recvWaiters := c.recvWaiters
	sendWaiters := c.sendWaiters
	c.recvWaiters = nil
	c.sendWaiters = nil
	c.mu.Unlock()

	for _, w := range recvWaiters {
		w.result <- recvOutcome{err: errs.ErrChannelClosed}
	}
	for _, w := range sendWaiters {
		w.done <- errs.ErrChannelClosed
	}
}

func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Store is the mutex-guarded handle → Channel registry pir's channelOp
// instruction resolves against, mirroring the Hub's clients map.
type Store struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewStore() *Store {
	return &Store{channels: make(map[string]*Channel)}
}

func (s *Store) Create(id string, kind ir.ChannelKind, capacity int) *Channel {
	ch := NewChannel(kind, capacity)
	s.mu.Lock()
	s.channels[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *Store) Get(id string) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ch, ok
}
