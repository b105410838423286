package coach

import (
	"fmt"
	"strings"

	"github.com/stridehq/stride/internal/plan"
)

// RenderContext produces the textual plan view injected into the advisor
// prompt. Day and activity ids appear verbatim so the advisor can
// reference them in changes; locked days are marked so a well-behaved
// advisor avoids them (the sanitizer enforces it either way).
func RenderContext(snap *plan.Snapshot, locks *plan.LockState) string {
	var w strings.Builder
	writePlanHeader(&w, snap)
	for wi := range snap.Weeks {
		writeWeek(&w, snap, &snap.Weeks[wi], locks)
	}
	return w.String()
}

func writePlanHeader(w *strings.Builder, snap *plan.Snapshot) {
	fmt.Fprintf(w, "# Plan: %s (%s)\n", snap.Name, snap.ID)
	fmt.Fprintf(w, "Race date: %s\n", snap.RaceDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Weeks: %d, status: %s\n\n", snap.WeekCount, snap.Status)
}

func writeWeek(w *strings.Builder, snap *plan.Snapshot, week *plan.WeekSnapshot, locks *plan.LockState) {
	fmt.Fprintf(w, "## Week %d (starts %s)\n", week.Index, snap.WeekStart(week).Format("2006-01-02"))
	for di := range week.Days {
		d := &week.Days[di]
		lock := ""
		if locks.Locked(d.ID) {
			lock = " [LOCKED]"
		}
		fmt.Fprintf(w, "- %s (%s)%s day=%s\n", dayName(d.DayOfWeek), plan.DayStatus(d.Notes), lock, d.ID)
		for ai := range d.Activities {
			a := &d.Activities[ai]
			fmt.Fprintf(w, "  - activity=%s %s %q priority=%s", a.ID, a.Type, a.Title, a.Priority)
			if a.Subtype != "" {
				fmt.Fprintf(w, " subtype=%s", a.Subtype)
			}
			if a.DurationMin != nil {
				fmt.Fprintf(w, " duration=%.0fmin", *a.DurationMin)
			}
			if a.DistanceKm != nil {
				fmt.Fprintf(w, " distance=%.1fkm", *a.DistanceKm)
			}
			if a.MustDo {
				w.WriteString(" must-do")
			}
			if a.Completed {
				w.WriteString(" completed")
			}
			w.WriteString("\n")
		}
	}
	w.WriteString("\n")
}

var dayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func dayName(dow int) string {
	if dow < 1 || dow > 7 {
		return "?"
	}
	return dayNames[dow]
}
