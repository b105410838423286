package patch

import (
	"github.com/stridehq/stride/internal/plan"
)

// Shared fixture: a three-week plan with one manually missed day and one
// completed activity. Week layout per week N (ids use the wN- prefix):
//
//	Mon  wN-d1  rest activity            wN-rest
//	Tue  wN-d2  tempo run (40min)        wN-tempo
//	Wed  wN-d3  easy run (40min)         wN-easy
//	Thu  wN-d4  hill repeats (45min)     wN-hills
//	Fri  wN-d5  empty
//	Sat  wN-d6  long run (90min)         wN-long
//	Sun  wN-d7  easy run (30min)         wN-sun
//
// Week 1: Thursday is [MISSED] and the Sunday run is completed.
func fixtureSnapshot() *plan.Snapshot {
	s := &plan.Snapshot{
		ID:        "plan-1",
		Name:      "fixture plan",
		WeekCount: 3,
		Status:    "ACTIVE",
	}
	for n := 1; n <= 3; n++ {
		s.Weeks = append(s.Weeks, fixtureWeek(n))
	}
	s.Weeks[0].Days[3].Notes = "calf felt off [MISSED]"
	s.Weeks[0].Days[6].Activities[0].Completed = true
	return s
}

func fixtureWeek(n int) plan.WeekSnapshot {
	pre := weekPrefix(n)
	w := plan.WeekSnapshot{ID: pre[:2], Index: n}
	w.Days = []plan.DaySnapshot{
		fday(pre+"d1", 1, fact(pre+"rest", "REST", "", "Rest", 0)),
		fday(pre+"d2", 2, fact(pre+"tempo", "RUN", "tempo", "Tempo run", 40)),
		fday(pre+"d3", 3, fact(pre+"easy", "RUN", "", "Easy run", 40)),
		fday(pre+"d4", 4, fact(pre+"hills", "RUN", "", "Hill repeats", 45)),
		fday(pre+"d5", 5),
		fday(pre+"d6", 6, fact(pre+"long", "RUN", "lrl", "Long run", 90)),
		fday(pre+"d7", 7, fact(pre+"sun", "RUN", "", "Easy run", 30)),
	}
	return w
}

func weekPrefix(n int) string {
	return string([]byte{'w', byte('0' + n), '-'})
}

func fday(id string, dow int, acts ...plan.ActivitySnapshot) plan.DaySnapshot {
	return plan.DaySnapshot{ID: id, DayOfWeek: dow, Activities: acts}
}

func fact(id, typ, subtype, title string, duration float64) plan.ActivitySnapshot {
	a := plan.ActivitySnapshot{ID: id, Type: typ, Subtype: subtype, Title: title, Priority: "MEDIUM"}
	if duration > 0 {
		a.DurationMin = &duration
	}
	return a
}

func fixtureLocks() *plan.LockState {
	return plan.BuildLockState(fixtureSnapshot())
}

// Change constructors for tests.

func moveChange(activityID, targetDayID string) Change {
	return Change{Op: OpMove, Reason: "reschedule", Move: &MoveActivity{ActivityID: activityID, TargetDayID: targetDayID}}
}

func editChange(activityID string, f ActivityFields) Change {
	return Change{Op: OpEdit, Reason: "adjust", Edit: &EditActivity{ActivityID: activityID, Fields: f}}
}

func addChange(dayID, typ, title string, f ActivityFields) Change {
	return Change{Op: OpAdd, Reason: "add session", Add: &AddActivity{DayID: dayID, Type: typ, Title: title, Fields: f}}
}

func deleteChange(activityID string) Change {
	return Change{Op: OpDelete, Reason: "drop session", Delete: &DeleteActivity{ActivityID: activityID}}
}

func reanchorChange(subtype string, target int) Change {
	return Change{Op: OpReanchor, Reason: "weekly shift", Reanchor: &ReanchorWeekly{Subtype: subtype, TargetDayOfWeek: target}}
}

func baseProposal(changes ...Change) *Proposal {
	return &Proposal{
		CoachReply: "Here is the adjustment.",
		Summary:    "Adjusts the plan.",
		Confidence: ConfidenceHigh,
		Changes:    changes,
	}
}

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }
func boolp(b bool) *bool     { return &b }
func intp(n int) *int        { return &n }
