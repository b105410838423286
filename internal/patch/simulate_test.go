package patch

import (
	"testing"

	"github.com/stridehq/stride/internal/plan"
)

func findAct(t *testing.T, s *plan.Snapshot, id string) (*plan.DaySnapshot, *plan.ActivitySnapshot) {
	t.Helper()
	d, a := s.FindActivity(id)
	if a == nil {
		t.Fatalf("activity %s not found", id)
	}
	return d, a
}

func TestSimulate_Move(t *testing.T) {
	snap := fixtureSnapshot()
	out := Simulate(snap, []Change{moveChange("w2-long", "w2-d7")})

	d, _ := findAct(t, out, "w2-long")
	if d.ID != "w2-d7" {
		t.Errorf("w2-long on %s, want w2-d7", d.ID)
	}
	// Original snapshot untouched.
	d, _ = findAct(t, snap, "w2-long")
	if d.ID != "w2-d6" {
		t.Errorf("input snapshot mutated: w2-long on %s", d.ID)
	}
}

func TestSimulate_EditAppliesOnlyPresentFields(t *testing.T) {
	out := Simulate(fixtureSnapshot(), []Change{
		editChange("w2-hills", ActivityFields{DurationMin: f64(25), Priority: str("OPTIONAL")}),
	})
	_, a := findAct(t, out, "w2-hills")
	if *a.DurationMin != 25 || a.Priority != "OPTIONAL" {
		t.Errorf("edit not applied: %+v", a)
	}
	if a.Title != "Hill repeats" || a.Type != "RUN" {
		t.Errorf("absent fields must stay untouched: %+v", a)
	}
}

func TestSimulate_AddAndDelete(t *testing.T) {
	out := Simulate(fixtureSnapshot(), []Change{
		addChange("w3-d5", "RUN", "Shakeout jog", ActivityFields{DurationMin: f64(20)}),
		deleteChange("w3-sun"),
	})

	d := out.FindDay("w3-d5")
	if len(d.Activities) != 1 || d.Activities[0].Title != "Shakeout jog" {
		t.Errorf("add not applied: %+v", d.Activities)
	}
	if _, a := out.FindActivity("w3-sun"); a != nil {
		t.Error("delete not applied")
	}
}

func TestSimulate_MissingIDsSkipSilently(t *testing.T) {
	snap := fixtureSnapshot()
	out := Simulate(snap, []Change{
		moveChange("no-such-activity", "w2-d7"),
		moveChange("w2-long", "no-such-day"),
		editChange("gone", ActivityFields{DurationMin: f64(10)}),
		deleteChange("also-gone"),
		addChange("no-day", "RUN", "x", ActivityFields{}),
	})

	// Nothing resolved, so the result matches the input.
	if d, _ := findAct(t, out, "w2-long"); d.ID != "w2-d6" {
		t.Errorf("w2-long moved despite missing target day")
	}
	total := 0
	for wi := range out.Weeks {
		for di := range out.Weeks[wi].Days {
			total += len(out.Weeks[wi].Days[di].Activities)
		}
	}
	if total != 18 {
		t.Errorf("activity count = %d, want 18", total)
	}
}

func TestSimulate_SequentialChangesSeeEarlierOnes(t *testing.T) {
	out := Simulate(fixtureSnapshot(), []Change{
		moveChange("w2-long", "w2-d7"),
		moveChange("w2-long", "w2-d5"), // resolves against the moved position
	})
	d, _ := findAct(t, out, "w2-long")
	if d.ID != "w2-d5" {
		t.Errorf("w2-long on %s, want w2-d5", d.ID)
	}
}

func TestReanchorMoves_Resolution(t *testing.T) {
	snap := fixtureSnapshot()

	// Long run to Sunday across all weeks. Week 1's Sunday is closed by a
	// completed activity, so only weeks 2 and 3 resolve.
	moves := ReanchorMoves(snap, &ReanchorWeekly{Subtype: "lrl", TargetDayOfWeek: 7})
	if len(moves) != 2 {
		t.Fatalf("len(moves) = %d, want 2", len(moves))
	}
	want := []ReanchorMove{
		{ActivityID: "w2-long", TargetDayID: "w2-d7"},
		{ActivityID: "w3-long", TargetDayID: "w3-d7"},
	}
	for i, m := range moves {
		if m != want[i] {
			t.Errorf("moves[%d] = %+v, want %+v", i, m, want[i])
		}
	}
}

func TestReanchorMoves_StartWeekIndex(t *testing.T) {
	snap := fixtureSnapshot()
	moves := ReanchorMoves(snap, &ReanchorWeekly{Subtype: "lrl", TargetDayOfWeek: 7, StartWeekIndex: intp(3)})
	if len(moves) != 1 || moves[0].ActivityID != "w3-long" {
		t.Errorf("unexpected moves: %+v", moves)
	}
}

func TestReanchorMoves_FromDayOfWeek(t *testing.T) {
	snap := fixtureSnapshot()
	// Restrict the search to Tuesdays; the long run lives on Saturday, so
	// nothing matches.
	moves := ReanchorMoves(snap, &ReanchorWeekly{Subtype: "lrl", TargetDayOfWeek: 7, FromDayOfWeek: intp(2)})
	if len(moves) != 0 {
		t.Errorf("unexpected moves: %+v", moves)
	}
}

func TestReanchorMoves_SkipsLockedSourceDay(t *testing.T) {
	snap := fixtureSnapshot()
	// Week 1 Thursday (hills) is missed. Reanchoring hills to Friday must
	// skip week 1 and still resolve weeks 2 and 3.
	moves := ReanchorMoves(snap, &ReanchorWeekly{Subtype: "hills", TargetDayOfWeek: 5})
	if len(moves) != 2 {
		t.Fatalf("len(moves) = %d, want 2", len(moves))
	}
	if moves[0].ActivityID != "w2-hills" || moves[1].ActivityID != "w3-hills" {
		t.Errorf("unexpected moves: %+v", moves)
	}
}

func TestReanchorMoves_SkipsCompletedActivity(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Weeks[1].Days[5].Activities[0].Completed = true // w2-long done
	moves := ReanchorMoves(snap, &ReanchorWeekly{Subtype: "lrl", TargetDayOfWeek: 7})
	if len(moves) != 1 || moves[0].ActivityID != "w3-long" {
		t.Errorf("unexpected moves: %+v", moves)
	}
}

func TestSimulate_Reanchor(t *testing.T) {
	out := Simulate(fixtureSnapshot(), []Change{reanchorChange("lrl", 7)})
	if d, _ := findAct(t, out, "w2-long"); d.ID != "w2-d7" {
		t.Errorf("w2-long on %s, want w2-d7", d.ID)
	}
	if d, _ := findAct(t, out, "w1-long"); d.ID != "w1-d6" {
		t.Errorf("w1-long must stay put (locked Sunday), found on %s", d.ID)
	}
}

func TestMatchesSubtype(t *testing.T) {
	long := fact("a", "RUN", "lrl", "Long run", 90)
	tempo := fact("b", "RUN", "tempo", "Tempo run", 40)
	rest := fact("c", "REST", "", "Rest", 0)
	hills := fact("d", "RUN", "", "Hill repeats", 45)

	tests := []struct {
		token string
		a     *plan.ActivitySnapshot
		want  bool
	}{
		{"lrl", &long, true},
		{"long_run", &long, true},
		{"long", &tempo, false},
		{"tempo", &tempo, true},
		{"rest", &rest, true},
		{"hills", &hills, true},
		{"interval", &hills, false},
		{"", &long, false},
		{"run", &tempo, true}, // falls back to type equality
	}
	for _, tt := range tests {
		if got := MatchesSubtype(tt.token, tt.a); got != tt.want {
			t.Errorf("MatchesSubtype(%q, %s) = %v, want %v", tt.token, tt.a.ID, got, tt.want)
		}
	}
}
