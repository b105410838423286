package plan

import "strings"

// Manual day statuses, encoded as a bracketed marker in day notes,
// e.g. "Long run felt great [DONE]".
const (
	StatusOpen   = "OPEN"
	StatusDone   = "DONE"
	StatusMissed = "MISSED"
)

// ActivityRef records where an activity lives and whether it is completed.
type ActivityRef struct {
	DayID     string
	Completed bool
}

// LockState is the derived set of immutable days and activities. It is
// recomputed from a fresh snapshot on every read and never cached across
// requests, because completion state can change between them.
type LockState struct {
	DayIDs     map[string]bool
	LockedDays map[string]bool
	Activities map[string]ActivityRef
}

// DayStatus extracts the manual status marker from day notes. Unmarked
// notes are OPEN.
func DayStatus(notes string) string {
	upper := strings.ToUpper(notes)
	switch {
	case strings.Contains(upper, "[DONE]"):
		return StatusDone
	case strings.Contains(upper, "[MISSED]"):
		return StatusMissed
	default:
		return StatusOpen
	}
}

// DayLocked reports whether a day is immutable: manually closed, or
// non-empty with every activity completed.
func DayLocked(d *DaySnapshot) bool {
	switch DayStatus(d.Notes) {
	case StatusDone, StatusMissed:
		return true
	}
	if len(d.Activities) == 0 {
		return false
	}
	for _, a := range d.Activities {
		if !a.Completed {
			return false
		}
	}
	return true
}

// BuildLockState derives the lock state from a snapshot. Pure function;
// callers must rebuild it whenever the snapshot changes.
func BuildLockState(s *Snapshot) *LockState {
	ls := &LockState{
		DayIDs:     make(map[string]bool),
		LockedDays: make(map[string]bool),
		Activities: make(map[string]ActivityRef),
	}
	for i := range s.Weeks {
		for j := range s.Weeks[i].Days {
			d := &s.Weeks[i].Days[j]
			ls.DayIDs[d.ID] = true
			if DayLocked(d) {
				ls.LockedDays[d.ID] = true
			}
			for _, a := range d.Activities {
				ls.Activities[a.ID] = ActivityRef{DayID: d.ID, Completed: a.Completed}
			}
		}
	}
	return ls
}

// Locked reports whether the given day id is in the locked set.
func (ls *LockState) Locked(dayID string) bool {
	return ls.LockedDays[dayID]
}

// ActivityLocked reports whether an activity is immutable: completed, or
// owned by a locked day. Unknown activity ids are not locked (referential
// checks happen elsewhere).
func (ls *LockState) ActivityLocked(activityID string) bool {
	ref, ok := ls.Activities[activityID]
	if !ok {
		return false
	}
	return ref.Completed || ls.LockedDays[ref.DayID]
}
