package patch

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stridehq/stride/internal/plan"
)

// Scoring weights. Lower total = safer proposal.
const (
	costNoRestDay      = 25.0
	costPerExtraHard   = 15.0 // per hard day beyond two in a week
	costBackToBackHard = 10.0
	costHardNextToLong = 8.0
	costInjuryRampUp   = 18.0
	costRampCap        = 40.0
	rampThreshold      = 1.2 // week-over-week duration growth allowance
	costPerChange      = 0.6
)

// WeekMetrics holds the per-week training-load measurements used by the
// scorer, derived identically for before and after snapshots.
type WeekMetrics struct {
	WeekID      string  `json:"weekId"`
	Index       int     `json:"index"`
	RestDays    int     `json:"restDays"`
	HardDays    []int   `json:"hardDays"` // days-of-week with a hard session
	LongRunDay  int     `json:"longRunDay"` // 0 when the week has no long run
	DurationMin float64 `json:"durationMin"`
}

// WeekDelta pairs before/after metrics for a week the change set touched.
type WeekDelta struct {
	WeekID string      `json:"weekId"`
	Index  int         `json:"index"`
	Before WeekMetrics `json:"before"`
	After  WeekMetrics `json:"after"`
}

// Report is the scorer output: a heuristic risk score plus bounded
// diagnostics. It is advice for candidate selection, not a constraint
// solver verdict.
type Report struct {
	Score       float64     `json:"score"`
	Diagnostics []string    `json:"diagnostics"`
	Weeks       []WeekDelta `json:"weeks"`
}

// Score computes weekly-load risk for the simulated snapshot against the
// original. Only weeks whose metrics changed contribute week-level
// penalties; every change contributes a flat base cost.
func Score(before, after *plan.Snapshot, changes []Change, message string) *Report {
	beforeMetrics := snapshotMetrics(before)
	afterMetrics := snapshotMetrics(after)
	injury := InjuryLanguage(message)

	r := &Report{Score: costPerChange * float64(len(changes))}

	var weekIDs []string
	for id := range afterMetrics {
		weekIDs = append(weekIDs, id)
	}
	sort.Slice(weekIDs, func(i, j int) bool {
		return afterMetrics[weekIDs[i]].Index < afterMetrics[weekIDs[j]].Index
	})

	for _, id := range weekIDs {
		am := afterMetrics[id]
		bm, ok := beforeMetrics[id]
		if ok && metricsEqual(bm, am) {
			continue
		}

		r.Weeks = append(r.Weeks, WeekDelta{WeekID: id, Index: am.Index, Before: bm, After: am})
		r.scoreWeek(bm, am, injury)
		r.scoreRamp(afterMetrics, am)
	}

	if len(r.Diagnostics) > MaxDiagnostics {
		r.Diagnostics = r.Diagnostics[:MaxDiagnostics]
	}
	return r
}

func (r *Report) scoreWeek(before, after WeekMetrics, injury bool) {
	if after.RestDays == 0 {
		r.Score += costNoRestDay
		r.diag("week %d has no rest day", after.Index)
	}

	hard := len(after.HardDays)
	if hard > 2 {
		r.Score += costPerExtraHard * float64(hard-2)
		r.diag("week %d has %d hard days", after.Index, hard)
	}

	hardSet := make(map[int]bool, hard)
	for _, d := range after.HardDays {
		hardSet[d] = true
	}
	for _, d := range after.HardDays {
		if hardSet[d+1] {
			r.Score += costBackToBackHard
			r.diag("week %d has hard sessions on back-to-back days (%s, %s)", after.Index, dowName(d), dowName(d+1))
			break
		}
	}

	if lr := after.LongRunDay; lr != 0 {
		if hardSet[lr-1] {
			r.Score += costHardNextToLong
			r.diag("week %d has a hard session the day before the long run", after.Index)
		}
		if hardSet[lr+1] {
			r.Score += costHardNextToLong
			r.diag("week %d has a hard session the day after the long run", after.Index)
		}
	}

	if injury && hard > len(before.HardDays) {
		r.Score += costInjuryRampUp
		r.diag("week %d adds hard load despite injury context", after.Index)
	}

	if !sameDays(before.HardDays, after.HardDays) {
		if len(after.HardDays) == 0 {
			r.diag("week %d no longer has a hard session", after.Index)
		} else {
			r.diag("week %d hard sessions now fall on %s", after.Index, dowList(after.HardDays))
		}
	}
}

// scoreRamp penalizes week-over-week planned-duration growth beyond the
// ramp threshold, proportionally and capped.
func (r *Report) scoreRamp(after map[string]WeekMetrics, wm WeekMetrics) {
	var prev *WeekMetrics
	for id := range after {
		m := after[id]
		if m.Index == wm.Index-1 {
			prev = &m
			break
		}
	}
	if prev == nil || prev.DurationMin <= 0 {
		return
	}
	ratio := wm.DurationMin / prev.DurationMin
	if ratio <= rampThreshold {
		return
	}
	penalty := math.Min(costRampCap, (ratio-rampThreshold)*100)
	r.Score += penalty
	r.diag("week %d planned duration up %.0f%% over week %d", wm.Index, (ratio-1)*100, prev.Index)
}

func (r *Report) diag(format string, args ...interface{}) {
	if len(r.Diagnostics) >= MaxDiagnostics {
		return
	}
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}

// snapshotMetrics derives WeekMetrics for every week, keyed by week id.
func snapshotMetrics(s *plan.Snapshot) map[string]WeekMetrics {
	out := make(map[string]WeekMetrics, len(s.Weeks))
	for wi := range s.Weeks {
		w := &s.Weeks[wi]
		m := WeekMetrics{WeekID: w.ID, Index: w.Index}
		for di := range w.Days {
			d := &w.Days[di]
			rest := len(d.Activities) == 0
			hard := false
			for ai := range d.Activities {
				a := &d.Activities[ai]
				if a.Type == "REST" {
					rest = true
				}
				if IsHard(a) {
					hard = true
				}
				if IsLongRun(a) && m.LongRunDay == 0 {
					m.LongRunDay = d.DayOfWeek
				}
				if a.DurationMin != nil {
					m.DurationMin += *a.DurationMin
				}
			}
			if rest {
				m.RestDays++
			}
			if hard {
				m.HardDays = append(m.HardDays, d.DayOfWeek)
			}
		}
		sort.Ints(m.HardDays)
		out[w.ID] = m
	}
	return out
}

func metricsEqual(a, b WeekMetrics) bool {
	if a.RestDays != b.RestDays || a.LongRunDay != b.LongRunDay || a.DurationMin != b.DurationMin {
		return false
	}
	if len(a.HardDays) != len(b.HardDays) {
		return false
	}
	for i := range a.HardDays {
		if a.HardDays[i] != b.HardDays[i] {
			return false
		}
	}
	return true
}

func sameDays(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dowList(days []int) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = dowName(d)
	}
	return strings.Join(names, ", ")
}

var dowNames = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func dowName(d int) string {
	if d < 1 || d > 7 {
		return "?"
	}
	return dowNames[d]
}
