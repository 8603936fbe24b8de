package primitive

import (
	"sync"
	"time"

	"spiral/pkg/ir"
)

// EffectLogEntry is one recorded effect invocation, carrying the task
// that performed it and its global sequence number (§4.7).
type EffectLogEntry struct {
	TaskID    string
	Seq       int
	Timestamp time.Time
	Name      string
	Args      []*ir.Value
	Result    *ir.Value
}

// EffectLog is the concurrent, append-only effect log every spawned
// task shares (§4.7). Grounded on the teacher's ObserverManager
// (copy-under-read-lock before exposing a reader's view, never handing
// out the live slice).
type EffectLog struct {
	mu      sync.RWMutex
	entries []EffectLogEntry
	nextSeq int
}

func NewEffectLog() *EffectLog { return &EffectLog{} }

// Append records one effect invocation, stamping it with the next
// global sequence number and the current time.
func (l *EffectLog) Append(taskID, name string, args []*ir.Value, result *ir.Value) EffectLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := EffectLogEntry{
		TaskID:    taskID,
		Seq:       l.nextSeq,
		Timestamp: time.Now(),
		Name:      name,
		Args:      args,
		Result:    result,
	}
	l.nextSeq++
	l.entries = append(l.entries, entry)
	return entry
}

// All returns every entry in sequence order.
func (l *EffectLog) All() []EffectLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]EffectLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForTask returns taskID's entries in sequence order.
func (l *EffectLog) ForTask(taskID string) []EffectLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []EffectLogEntry
	for _, e := range l.entries {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// DiscardTask removes every entry recorded by taskID, used on
// cancellation (§4.7) so a cancelled task's effects don't linger in the
// shared history.
func (l *EffectLog) DiscardTask(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.TaskID != taskID {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}
