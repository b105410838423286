package patch

import (
	"fmt"

	"github.com/stridehq/stride/internal/plan"
)

// EmptySummary replaces the proposal summary when sanitization strips every
// change.
const EmptySummary = "No applicable changes: everything this proposal touches is already completed or closed."

// Sanitize returns a copy of the proposal with every change that touches a
// locked day or completed activity removed. Structural ops pass through;
// the simulator and applier skip locked days themselves when executing
// them. Sanitizing an already-sanitized proposal against the same lock
// state is a no-op.
func Sanitize(p *Proposal, ls *plan.LockState) *Proposal {
	out := p.Clone()
	kept := out.Changes[:0]
	removed := 0

	for i := range out.Changes {
		c := &out.Changes[i]
		if touchesLocked(c, ls) {
			removed++
			continue
		}
		kept = append(kept, *c)
	}
	out.Changes = kept

	if removed > 0 {
		out.AddRiskFlag(fmt.Sprintf("%d change(s) dropped: they touch completed or closed days", removed))
		if len(out.Changes) == 0 {
			out.Summary = EmptySummary
		}
	}
	return out
}

// touchesLocked reports whether a change references immutable state.
func touchesLocked(c *Change, ls *plan.LockState) bool {
	switch c.Op {
	case OpMove:
		return ls.ActivityLocked(c.Move.ActivityID) || ls.Locked(c.Move.TargetDayID)
	case OpEdit:
		return ls.ActivityLocked(c.Edit.ActivityID)
	case OpDelete:
		return ls.ActivityLocked(c.Delete.ActivityID)
	case OpAdd:
		return ls.Locked(c.Add.DayID)
	case OpExtend, OpReanchor:
		return false
	}
	return false
}
