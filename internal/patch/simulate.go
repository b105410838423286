package patch

import (
	"fmt"

	"github.com/stridehq/stride/internal/plan"
)

// Simulate applies a change list to a deep copy of the snapshot and returns
// the hypothetical result. Changes whose referenced ids no longer resolve
// are skipped silently: simulation is a best-effort preview, not the
// authority. The applier is the strict counterpart.
func Simulate(s *plan.Snapshot, changes []Change) *plan.Snapshot {
	out := s.Clone()
	for i := range changes {
		simulateChange(out, &changes[i], i)
	}
	return out
}

func simulateChange(s *plan.Snapshot, c *Change, ordinal int) {
	switch c.Op {
	case OpMove:
		target := s.FindDay(c.Move.TargetDayID)
		if target == nil {
			return
		}
		a, ok := detachActivity(s, c.Move.ActivityID)
		if !ok {
			return
		}
		target.Activities = append(target.Activities, a)

	case OpEdit:
		_, a := s.FindActivity(c.Edit.ActivityID)
		if a == nil {
			return
		}
		ApplyFields(a, &c.Edit.Fields)

	case OpAdd:
		d := s.FindDay(c.Add.DayID)
		if d == nil {
			return
		}
		a := plan.ActivitySnapshot{
			// Placeholder id, deterministic per change position.
			ID:       fmt.Sprintf("sim-add-%d", ordinal),
			Type:     c.Add.Type,
			Title:    c.Add.Title,
			Priority: "MEDIUM",
		}
		ApplyFields(&a, &c.Add.Fields)
		d.Activities = append(d.Activities, a)

	case OpDelete:
		detachActivity(s, c.Delete.ActivityID)

	case OpExtend:
		// Week renumbering is an apply-time structural operation with no
		// day-level effect to score.

	case OpReanchor:
		simulateReanchor(s, c.Reanchor)
	}
}

// simulateReanchor executes the moves a reanchor resolves to on the
// working snapshot.
func simulateReanchor(s *plan.Snapshot, r *ReanchorWeekly) {
	for _, m := range ReanchorMoves(s, r) {
		target := s.FindDay(m.TargetDayID)
		if target == nil {
			continue
		}
		if a, ok := detachActivity(s, m.ActivityID); ok {
			target.Activities = append(target.Activities, a)
		}
	}
}

// ReanchorMove is one concrete relocation a reanchor resolves to.
type ReanchorMove struct {
	ActivityID  string
	TargetDayID string
}

// ReanchorMoves resolves a weekly reanchor against the snapshot: for every
// week at or after the start index, the first non-completed activity
// matching the subtype token moves to the target day-of-week. Weeks with
// no match, a missing target day or a locked target day are skipped
// without error. Locked source days are never raided.
func ReanchorMoves(s *plan.Snapshot, r *ReanchorWeekly) []ReanchorMove {
	start := 1
	if r.StartWeekIndex != nil {
		start = *r.StartWeekIndex
	}

	var moves []ReanchorMove
	for wi := range s.Weeks {
		w := &s.Weeks[wi]
		if w.Index < start {
			continue
		}

		var target *plan.DaySnapshot
		for di := range w.Days {
			if w.Days[di].DayOfWeek == r.TargetDayOfWeek {
				target = &w.Days[di]
				break
			}
		}
		if target == nil || plan.DayLocked(target) {
			continue
		}

	week:
		for di := range w.Days {
			d := &w.Days[di]
			if d.ID == target.ID || plan.DayLocked(d) {
				continue
			}
			if r.FromDayOfWeek != nil && d.DayOfWeek != *r.FromDayOfWeek {
				continue
			}
			for ai := range d.Activities {
				a := &d.Activities[ai]
				if a.Completed || !MatchesSubtype(r.Subtype, a) {
					continue
				}
				moves = append(moves, ReanchorMove{ActivityID: a.ID, TargetDayID: target.ID})
				break week
			}
		}
	}
	return moves
}

// detachActivity removes an activity from its day and returns it.
func detachActivity(s *plan.Snapshot, activityID string) (plan.ActivitySnapshot, bool) {
	for wi := range s.Weeks {
		for di := range s.Weeks[wi].Days {
			d := &s.Weeks[wi].Days[di]
			for ai := range d.Activities {
				if d.Activities[ai].ID == activityID {
					a := d.Activities[ai]
					d.Activities = append(d.Activities[:ai], d.Activities[ai+1:]...)
					return a, true
				}
			}
		}
	}
	return plan.ActivitySnapshot{}, false
}

// ApplyFields overwrites only the fields explicitly present in the change.
func ApplyFields(a *plan.ActivitySnapshot, f *ActivityFields) {
	if f.Type != nil {
		a.Type = *f.Type
	}
	if f.Subtype != nil {
		a.Subtype = *f.Subtype
	}
	if f.Title != nil {
		a.Title = *f.Title
	}
	if f.DurationMin != nil {
		v := *f.DurationMin
		a.DurationMin = &v
	}
	if f.DistanceKm != nil {
		v := *f.DistanceKm
		a.DistanceKm = &v
	}
	if f.Pace != nil {
		a.Pace = *f.Pace
	}
	if f.Effort != nil {
		a.Effort = *f.Effort
	}
	if f.Priority != nil {
		a.Priority = *f.Priority
	}
	if f.MustDo != nil {
		a.MustDo = *f.MustDo
	}
}
