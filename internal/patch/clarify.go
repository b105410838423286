package patch

import (
	"github.com/stridehq/stride/internal/plan"
)

// Thresholds for treating a proposal as a major rewrite.
const (
	majorChangeCount      = 10
	majorSpreadChangeMin  = 6
	majorSpreadWeekCount  = 3
)

// genericClarificationPrompt is used when the advisor supplied no follow-up
// question of its own.
const genericClarificationPrompt = "This is a significant restructuring of your plan. Reply to confirm you want all of these changes applied."

// Clarify annotates the selected proposal with the clarification gate. A
// proposal is major when it contains a structural op, has ten or more
// changes, or spreads six or more changes across three or more weeks.
// Non-major proposals get any stale clarification flag cleared.
func Clarify(p *Proposal, snap *plan.Snapshot) {
	if !isMajor(p, snap) {
		p.RequiresClarification = false
		p.ClarificationPrompt = ""
		return
	}

	p.RequiresClarification = true
	if p.ClarificationPrompt == "" {
		if p.FollowUpQuestion != "" {
			p.ClarificationPrompt = p.FollowUpQuestion
		} else {
			p.ClarificationPrompt = genericClarificationPrompt
		}
	}
}

func isMajor(p *Proposal, snap *plan.Snapshot) bool {
	for i := range p.Changes {
		if p.Changes[i].Structural() {
			return true
		}
	}
	if len(p.Changes) >= majorChangeCount {
		return true
	}
	if len(p.Changes) >= majorSpreadChangeMin {
		touched := p.TouchedWeeks(snapshotResolver{snap})
		if len(touched) >= majorSpreadWeekCount {
			return true
		}
	}
	return false
}

// snapshotResolver adapts a plan snapshot to the WeekResolver interface.
type snapshotResolver struct {
	s *plan.Snapshot
}

func (r snapshotResolver) WeekIDForDay(dayID string) string {
	if w := r.s.WeekOf(dayID); w != nil {
		return w.ID
	}
	return ""
}

func (r snapshotResolver) WeekIDForActivity(activityID string) string {
	d, _ := r.s.FindActivity(activityID)
	if d == nil {
		return ""
	}
	return r.WeekIDForDay(d.ID)
}
