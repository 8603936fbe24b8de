package primitive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

func TestChannelBufferedEnqueueThenRecv(t *testing.T) {
	ch := NewChannel(ir.ChanSPSC, 2)
	require.NoError(t, ch.Send(ir.NewInt(1)))
	require.NoError(t, ch.Send(ir.NewInt(2)))

	v1, err := ch.Recv()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1.Int)

	v2, err := ch.Recv()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.Int)
}

func TestChannelRendezvousDirectDelivery(t *testing.T) {
	ch := NewChannel(ir.ChanSPSC, 0)
	received := make(chan *ir.Value, 1)
	go func() {
		v, err := ch.Recv()
		require.NoError(t, err)
		received <- v
	}()

	time.Sleep(10 * time.Millisecond) // let the receiver start waiting
	require.NoError(t, ch.Send(ir.NewInt(42)))

	select {
	case v := <-received:
		assert.Equal(t, int64(42), v.Int)
	case <-time.After(time.Second):
		t.Fatal("rendezvous receiver never woke up")
	}
}

func TestChannelSendSuspendsWhenFullThenResumesOnRecv(t *testing.T) {
	ch := NewChannel(ir.ChanSPSC, 1)
	require.NoError(t, ch.Send(ir.NewInt(1))) // fills the buffer

	sent := make(chan error, 1)
	go func() {
		sent <- ch.Send(ir.NewInt(2)) // must suspend until a Recv frees a slot
	}()

	select {
	case <-sent:
		t.Fatal("second send returned before the buffer had room")
	case <-time.After(20 * time.Millisecond):
	}

	v, err := ch.Recv()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("suspended sender was never resumed")
	}

	v2, err := ch.Recv()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.Int)
}

func TestChannelTrySendAndTryRecv(t *testing.T) {
	ch := NewChannel(ir.ChanMPSC, 1)
	ok, err := ch.TrySend(ir.NewInt(7))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ch.TrySend(ir.NewInt(8))
	require.NoError(t, err)
	assert.False(t, ok, "buffer is full and no receiver waiting, try_send must fail without blocking")

	v, ok, err := ch.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int)

	_, ok, err = ch.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelSendOnClosedErrors(t *testing.T) {
	ch := NewChannel(ir.ChanSPSC, 1)
	ch.Close()
	err := ch.Send(ir.NewInt(1))
	require.ErrorIs(t, err, errs.ErrChannelClosed)
}

func TestChannelRecvOnClosedEmptyErrors(t *testing.T) {
	ch := NewChannel(ir.ChanSPSC, 1)
	ch.Close()
	_, err := ch.Recv()
	require.ErrorIs(t, err, errs.ErrChannelClosed)
}

func TestChannelCloseRejectsWaitingReceiver(t *testing.T) {
	ch := NewChannel(ir.ChanSPSC, 0)
	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Recv()
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	ch.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, errs.ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("waiting receiver was never rejected by close")
	}
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	ch := NewChannel(ir.ChanBroadcast, 0)
	ch.Close()
	ch.Close()
	assert.True(t, ch.IsClosed())
}

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore()
	ch := s.Create("c1", ir.ChanMPMC, 4)
	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Same(t, ch, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}
