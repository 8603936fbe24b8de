// Package race implements the race detector (§4.9): a location→accesses
// table plus happens-before tracking, queried on demand for conflicting
// pairs rather than flagging a race the instant it occurs.
//
// No direct teacher analogue — the teacher has no concurrent-access
// detector — so this is grounded on the *pattern* shared by
// internal/infrastructure/websocket/hub.go and
// backend/internal/application/observer/manager.go: a guarded indexed
// map with a derived view computed on demand. The table itself uses
// github.com/puzpuzpuz/xsync/v3's MapOf, promoting the teacher's own
// indirect dependency (go.mod) to direct use for the one concern in this
// codebase that is genuinely a hot, multi-writer concurrent map: many
// spawned tasks record accesses to the same location concurrently.
package race

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"spiral/pkg/ir"
)

// AccessKind distinguishes a read from a write (§4.9).
type AccessKind int

const (
	Read AccessKind = iota
	Write
)

// Access is one recorded touch of a location.
type Access struct {
	TaskID        string
	Kind          AccessKind
	Value         *ir.Value
	Timestamp     time.Time
	HappensBefore map[string]struct{} // task ids this access is ordered after
}

// Conflict reports a racing pair of accesses to the same location.
type Conflict struct {
	Location string
	A, B     Access
	Kind     string // "W-W", "W-R", or "R-W"
}

// String renders a one-line human-readable summary, the way the
// teacher's ValidationErrors.Error() renders a readable summary instead
// of forcing every caller to walk the struct.
func (c Conflict) String() string {
	return fmt.Sprintf("race at %q: %s between task %s and task %s", c.Location, c.Kind, c.A.TaskID, c.B.TaskID)
}

// Detector maintains per-location access history and per-task
// happens-before sets (§4.9).
type Detector struct {
	locations     *xsync.MapOf[string, []Access]
	happensBefore *xsync.MapOf[string, map[string]struct{}]
}

func NewDetector() *Detector {
	return &Detector{
		locations:     xsync.NewMapOf[string, []Access](),
		happensBefore: xsync.NewMapOf[string, map[string]struct{}](),
	}
}

func (d *Detector) hbSetFor(task string) map[string]struct{} {
	hb, _ := d.happensBefore.LoadOrStore(task, make(map[string]struct{}))
	return hb
}

// RecordAccess appends an access to location, stamping it with task's
// current happens-before set (a snapshot, so later sync points don't
// retroactively reorder already-recorded accesses).
func (d *Detector) RecordAccess(location, task string, kind AccessKind, value *ir.Value) {
	hb := d.hbSetFor(task)
	snapshot := make(map[string]struct{}, len(hb))
	for k := range hb {
		snapshot[k] = struct{}{}
	}
	access := Access{TaskID: task, Kind: kind, Value: value, Timestamp: time.Now(), HappensBefore: snapshot}
	d.locations.Compute(location, func(existing []Access, _ bool) ([]Access, bool) {
		return append(existing, access), false
	})
}

// RecordSyncPoint unions predecessors into task's happens-before set,
// transitively reflected in every access task records afterward (§4.9).
func (d *Detector) RecordSyncPoint(task string, predecessors ...string) {
	hb := d.hbSetFor(task)
	for _, p := range predecessors {
		hb[p] = struct{}{}
		if predHB, ok := d.happensBefore.Load(p); ok {
			for k := range predHB {
				hb[k] = struct{}{}
			}
		}
	}
}

// orderedBefore reports whether a happens before b: either a's task is
// in b's happens-before set, or vice versa (shared ancestor coverage is
// handled by RecordSyncPoint's transitive union at record time).
func orderedBefore(a, b Access) bool {
	if _, ok := b.HappensBefore[a.TaskID]; ok {
		return true
	}
	if _, ok := a.HappensBefore[b.TaskID]; ok {
		return true
	}
	return false
}

func conflictKind(a, b Access) (string, bool) {
	switch {
	case a.Kind == Write && b.Kind == Write:
		return "W-W", true
	case a.Kind == Write && b.Kind == Read:
		return "W-R", true
	case a.Kind == Read && b.Kind == Write:
		return "R-W", true
	default:
		return "", false // R-R ignored (§4.9)
	}
}

// DetectRaces returns every conflicting access pair across every
// location: different tasks, no happens-before ordering between them,
// and at least one write (§4.9).
func (d *Detector) DetectRaces() []Conflict {
	var out []Conflict
	d.locations.Range(func(location string, accesses []Access) bool {
		for i := 0; i < len(accesses); i++ {
			for j := i + 1; j < len(accesses); j++ {
				a, b := accesses[i], accesses[j]
				if a.TaskID == b.TaskID {
					continue
				}
				if orderedBefore(a, b) {
					continue
				}
				kind, conflicting := conflictKind(a, b)
				if !conflicting {
					continue
				}
				out = append(out, Conflict{Location: location, A: a, B: b, Kind: kind})
			}
		}
		return true
	})
	return out
}
