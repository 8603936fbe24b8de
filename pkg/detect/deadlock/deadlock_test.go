package deadlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDeadlockFindsNoCycleWhenUncontended(t *testing.T) {
	d := NewDetector()
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t2", "lockB")

	assert.Empty(t, d.DetectDeadlock())
}

func TestDetectDeadlockFindsTwoTaskCycle(t *testing.T) {
	d := NewDetector()
	// t1 holds lockA, waits on lockB; t2 holds lockB, waits on lockA.
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquired("t2", "lockB")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquisition("t2", "lockA")

	cycles := d.DetectDeadlock()
	require.NotEmpty(t, cycles)
	assert.Contains(t, cycles[0].Tasks, "t1")
	assert.Contains(t, cycles[0].Tasks, "t2")
	assert.NotEmpty(t, cycles[0].Locks)
}

func TestDetectDeadlockReleaseBreaksCycle(t *testing.T) {
	d := NewDetector()
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquired("t2", "lockB")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquisition("t2", "lockA")
	require.NotEmpty(t, d.DetectDeadlock())

	d.TrackLockRelease("lockB")
	assert.Empty(t, d.DetectDeadlock())
}

func TestDetectDeadlockThreeTaskCycle(t *testing.T) {
	d := NewDetector()
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquired("t2", "lockB")
	d.TrackLockAcquired("t3", "lockC")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquisition("t2", "lockC")
	d.TrackLockAcquisition("t3", "lockA")

	cycles := d.DetectDeadlock()
	require.NotEmpty(t, cycles)
	assert.GreaterOrEqual(t, len(cycles[0].Tasks), 3)
}

func TestDetectDeadlockTimedReturnsOnceCycleFormed(t *testing.T) {
	d := NewDetector()
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t1", "lockB")

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.TrackLockAcquired("t2", "lockB")
		d.TrackLockAcquisition("t2", "lockA")
	}()

	cycles := d.DetectDeadlockTimed(500*time.Millisecond, 5*time.Millisecond)
	require.NotEmpty(t, cycles)
}

func TestDetectDeadlockTimedTimesOutWithoutCycle(t *testing.T) {
	d := NewDetector()
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t2", "lockB")

	cycles := d.DetectDeadlockTimed(30*time.Millisecond, 5*time.Millisecond)
	assert.Empty(t, cycles)
}
