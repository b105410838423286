// Package apply commits verified proposals to storage as a single
// all-or-nothing transaction.
package apply

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stridehq/stride/internal/models"
	"github.com/stridehq/stride/internal/patch"
	"github.com/stridehq/stride/internal/plan"
	"github.com/stridehq/stride/internal/token"
	"gorm.io/gorm"
)

// Apply failure classes. Callers map these to user-facing responses:
// fix your input (guardrail), try again (state changed, token), nothing to
// do (empty change set).
var (
	ErrPlanNotFound          = errors.New("apply: plan not found")
	ErrEmptyChangeSet        = errors.New("apply: no changes to apply")
	ErrStateChanged          = errors.New("apply: plan state changed, regenerate the proposal")
	ErrReferential           = errors.New("apply: change references a missing id")
	ErrLockViolation         = errors.New("apply: change touches a completed or closed day")
	ErrClarificationRequired = errors.New("apply: proposal requires clarification before applying")
	ErrBadChangeIndex        = errors.New("apply: change index out of range")
	ErrGuardrail             = errors.New("apply: proposal rejected by guardrail")
)

// Applier verifies and commits proposals.
type Applier struct {
	DB     *gorm.DB
	Signer *token.Signer
	Now    func() time.Time
	Log    *slog.Logger
}

// Options carries the caller's apply-time choices.
type Options struct {
	// ChangeIndexes optionally restricts the apply to a subset of the
	// proposal's changes, by position. Empty means all.
	ChangeIndexes []int
	// ClarificationResponse is the owner's answer to the clarification
	// prompt; required when the proposal demands clarification.
	ClarificationResponse string
}

// Result reports what a successful apply did.
type Result struct {
	AppliedCount  int
	ExtendedWeeks int
	Summary       string
}

// Apply verifies the caller-returned proposal against current plan state
// and commits it atomically. Token, freshness and schema checks run first;
// locks are recomputed from current storage and the proposal is
// re-sanitized and re-guardrailed against them, never against the state at
// generation time.
func (a *Applier) Apply(planID string, p *patch.Proposal, opts Options) (*Result, error) {
	if err := a.Signer.Verify(planID, p, a.now()); err != nil {
		return nil, err
	}
	if p.RequiresClarification && opts.ClarificationResponse == "" {
		return nil, ErrClarificationRequired
	}

	work, err := subset(p, opts.ChangeIndexes)
	if err != nil {
		return nil, err
	}
	if len(work.Changes) == 0 {
		return nil, ErrEmptyChangeSet
	}

	snap, err := plan.Load(a.DB, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
		}
		return nil, err
	}
	locks := plan.BuildLockState(snap)

	// Drift guard: if sanitizing against fresh locks removes anything, the
	// plan changed since generation and the caller must regenerate.
	preDigest, err := token.ContentDigest(planID, work)
	if err != nil {
		return nil, err
	}
	sanitized := patch.Sanitize(work, locks)
	postDigest, err := token.ContentDigest(planID, sanitized)
	if err != nil {
		return nil, err
	}
	if preDigest != postDigest {
		return nil, ErrStateChanged
	}

	if err := patch.Guardrail(sanitized, "", patch.MaxChangesApply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGuardrail, err)
	}

	res := &Result{}
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		return a.commit(tx, snap, locks, sanitized.Changes, res)
	})
	if err != nil {
		return nil, err
	}

	res.Summary = fmt.Sprintf("Applied %d change(s)", res.AppliedCount)
	if res.ExtendedWeeks > 0 {
		res.Summary += fmt.Sprintf(", added %d week(s)", res.ExtendedWeeks)
	}
	a.log().Info("proposal applied",
		"plan", planID,
		"patch", p.PatchID,
		"applied", res.AppliedCount,
		"extendedWeeks", res.ExtendedWeeks,
	)
	return res, nil
}

// commit executes the change list inside one transaction. It walks an
// evolving snapshot clone so later changes resolve ids consistently with
// earlier ones, and emits the matching row mutations. Unlike the
// simulator, any unresolved id aborts the whole transaction.
func (a *Applier) commit(tx *gorm.DB, snap *plan.Snapshot, locks *plan.LockState, changes []patch.Change, res *Result) error {
	work := snap.Clone()

	// extend_plan creates the new leading weeks and renumbers before any
	// other op, so day references in the same proposal resolve against
	// pre-existing ids only.
	for i := range changes {
		if changes[i].Op == patch.OpExtend {
			added, err := a.extendPlan(tx, work, changes[i].Extend)
			if err != nil {
				return err
			}
			res.ExtendedWeeks = added
			res.AppliedCount++
			break
		}
	}

	for i := range changes {
		c := &changes[i]
		if c.Op == patch.OpExtend {
			continue
		}
		if err := a.commitChange(tx, work, locks, c); err != nil {
			return err
		}
		res.AppliedCount++
	}
	return nil
}

func (a *Applier) commitChange(tx *gorm.DB, work *plan.Snapshot, locks *plan.LockState, c *patch.Change) error {
	switch c.Op {
	case patch.OpMove:
		day, act := work.FindActivity(c.Move.ActivityID)
		if act == nil {
			return fmt.Errorf("%w: activity %s", ErrReferential, c.Move.ActivityID)
		}
		target := work.FindDay(c.Move.TargetDayID)
		if target == nil {
			return fmt.Errorf("%w: day %s", ErrReferential, c.Move.TargetDayID)
		}
		if locks.ActivityLocked(act.ID) || locks.Locked(day.ID) || locks.Locked(target.ID) {
			return fmt.Errorf("%w: activity %s", ErrLockViolation, act.ID)
		}
		if err := tx.Model(&models.Activity{}).Where("id = ?", act.ID).
			Update("day_id", target.ID).Error; err != nil {
			return fmt.Errorf("apply: move %s: %w", act.ID, err)
		}
		moveInSnapshot(work, act.ID, target.ID)

	case patch.OpEdit:
		day, act := work.FindActivity(c.Edit.ActivityID)
		if act == nil {
			return fmt.Errorf("%w: activity %s", ErrReferential, c.Edit.ActivityID)
		}
		if locks.ActivityLocked(act.ID) || locks.Locked(day.ID) {
			return fmt.Errorf("%w: activity %s", ErrLockViolation, act.ID)
		}
		updates := fieldUpdates(&c.Edit.Fields)
		if err := tx.Model(&models.Activity{}).Where("id = ?", act.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("apply: edit %s: %w", act.ID, err)
		}
		patch.ApplyFields(act, &c.Edit.Fields)

	case patch.OpAdd:
		day := work.FindDay(c.Add.DayID)
		if day == nil {
			return fmt.Errorf("%w: day %s", ErrReferential, c.Add.DayID)
		}
		if locks.Locked(day.ID) {
			return fmt.Errorf("%w: day %s", ErrLockViolation, day.ID)
		}
		row := newActivityRow(day.ID, c.Add)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("apply: add activity on %s: %w", day.ID, err)
		}
		day.Activities = append(day.Activities, plan.ActivitySnapshot{
			ID:          row.ID,
			Type:        row.Type,
			Subtype:     row.Subtype,
			Title:       row.Title,
			DurationMin: row.DurationMin,
			DistanceKm:  row.DistanceKm,
			Pace:        row.Pace,
			Effort:      row.Effort,
			Priority:    row.Priority,
			MustDo:      row.MustDo,
		})

	case patch.OpDelete:
		day, act := work.FindActivity(c.Delete.ActivityID)
		if act == nil {
			return fmt.Errorf("%w: activity %s", ErrReferential, c.Delete.ActivityID)
		}
		if locks.ActivityLocked(act.ID) || locks.Locked(day.ID) {
			return fmt.Errorf("%w: activity %s", ErrLockViolation, act.ID)
		}
		result := tx.Delete(&models.Activity{}, "id = ?", act.ID)
		if result.Error != nil {
			return fmt.Errorf("apply: delete %s: %w", act.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: activity %s", ErrReferential, act.ID)
		}
		removeFromSnapshot(work, act.ID)

	case patch.OpReanchor:
		if err := a.commitReanchor(tx, work, c.Reanchor); err != nil {
			return err
		}

	default:
		return fmt.Errorf("apply: unknown op %q", c.Op)
	}
	return nil
}

// commitReanchor mirrors the simulator's reanchor semantics against
// storage: per week, the first matching non-completed activity moves to
// the target day; weeks with no match are skipped silently.
func (a *Applier) commitReanchor(tx *gorm.DB, work *plan.Snapshot, r *patch.ReanchorWeekly) error {
	moves := patch.ReanchorMoves(work, r)
	for _, m := range moves {
		if err := tx.Model(&models.Activity{}).Where("id = ?", m.ActivityID).
			Update("day_id", m.TargetDayID).Error; err != nil {
			return fmt.Errorf("apply: reanchor %s: %w", m.ActivityID, err)
		}
		moveInSnapshot(work, m.ActivityID, m.TargetDayID)
	}
	return nil
}

// extendPlan renumbers existing weeks upward and creates the new leading
// weeks (7 empty days each) so the plan starts on the Monday of the
// requested date. Returns the number of weeks added; a start date at or
// after the current first week adds none.
func (a *Applier) extendPlan(tx *gorm.DB, work *plan.Snapshot, e *patch.ExtendPlan) (int, error) {
	if len(work.Weeks) == 0 {
		return 0, fmt.Errorf("%w: plan has no weeks to extend", ErrReferential)
	}
	first := &work.Weeks[0]
	for i := range work.Weeks {
		if work.Weeks[i].Index < first.Index {
			first = &work.Weeks[i]
		}
	}
	earliest := plan.MondayOf(work.WeekStart(first))
	newStart := plan.MondayOf(e.NewStartDate)
	added := int(earliest.Sub(newStart) / (7 * 24 * time.Hour))
	if added <= 0 {
		return 0, nil
	}

	if err := tx.Model(&models.Week{}).Where("plan_id = ?", work.ID).
		UpdateColumn("idx", gorm.Expr("idx + ?", added)).Error; err != nil {
		return 0, fmt.Errorf("apply: renumber weeks: %w", err)
	}

	for i := 1; i <= added; i++ {
		start := newStart.AddDate(0, 0, 7*(i-1))
		end := start.AddDate(0, 0, 6)
		week := models.Week{
			ID:        uuid.NewString(),
			PlanID:    work.ID,
			Index:     i,
			StartDate: &start,
			EndDate:   &end,
		}
		if err := tx.Create(&week).Error; err != nil {
			return 0, fmt.Errorf("apply: create week %d: %w", i, err)
		}
		for dow := 1; dow <= 7; dow++ {
			day := models.Day{ID: uuid.NewString(), WeekID: week.ID, DayOfWeek: dow}
			if err := tx.Create(&day).Error; err != nil {
				return 0, fmt.Errorf("apply: create day %d of week %d: %w", dow, i, err)
			}
		}
	}

	if err := tx.Model(&models.Plan{}).Where("id = ?", work.ID).
		UpdateColumn("week_count", gorm.Expr("week_count + ?", added)).Error; err != nil {
		return 0, fmt.Errorf("apply: bump week count: %w", err)
	}

	// Keep the working snapshot consistent for later changes.
	for i := range work.Weeks {
		work.Weeks[i].Index += added
	}
	work.WeekCount += added
	return added, nil
}

// subset returns a proposal restricted to the requested change indexes, in
// their original order, rejecting out-of-range or duplicate indexes.
func subset(p *patch.Proposal, indexes []int) (*patch.Proposal, error) {
	if len(indexes) == 0 {
		return p.Clone(), nil
	}
	sorted := append([]int(nil), indexes...)
	sort.Ints(sorted)
	out := p.Clone()
	out.Changes = out.Changes[:0]
	seen := make(map[int]bool)
	for _, idx := range sorted {
		if idx < 0 || idx >= len(p.Changes) {
			return nil, fmt.Errorf("%w: %d", ErrBadChangeIndex, idx)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out.Changes = append(out.Changes, p.Changes[idx])
	}
	return out, nil
}

func newActivityRow(dayID string, add *patch.AddActivity) models.Activity {
	row := models.Activity{
		ID:       uuid.NewString(),
		DayID:    dayID,
		Type:     add.Type,
		Title:    add.Title,
		Priority: models.PriorityMedium,
	}
	f := &add.Fields
	if f.Subtype != nil {
		row.Subtype = *f.Subtype
	}
	if f.DurationMin != nil {
		v := *f.DurationMin
		row.DurationMin = &v
	}
	if f.DistanceKm != nil {
		v := *f.DistanceKm
		row.DistanceKm = &v
	}
	if f.Pace != nil {
		row.Pace = *f.Pace
	}
	if f.Effort != nil {
		row.Effort = *f.Effort
	}
	if f.Priority != nil {
		row.Priority = *f.Priority
	}
	if f.MustDo != nil {
		row.MustDo = *f.MustDo
	}
	return row
}

// fieldUpdates maps present change fields to column updates.
func fieldUpdates(f *patch.ActivityFields) map[string]interface{} {
	updates := make(map[string]interface{})
	if f.Type != nil {
		updates["type"] = *f.Type
	}
	if f.Subtype != nil {
		updates["subtype"] = *f.Subtype
	}
	if f.Title != nil {
		updates["title"] = *f.Title
	}
	if f.DurationMin != nil {
		updates["duration_min"] = *f.DurationMin
	}
	if f.DistanceKm != nil {
		updates["distance_km"] = *f.DistanceKm
	}
	if f.Pace != nil {
		updates["pace"] = *f.Pace
	}
	if f.Effort != nil {
		updates["effort"] = *f.Effort
	}
	if f.Priority != nil {
		updates["priority"] = *f.Priority
	}
	if f.MustDo != nil {
		updates["must_do"] = *f.MustDo
	}
	return updates
}

func moveInSnapshot(s *plan.Snapshot, activityID, targetDayID string) {
	target := s.FindDay(targetDayID)
	if target == nil {
		return
	}
	for wi := range s.Weeks {
		for di := range s.Weeks[wi].Days {
			d := &s.Weeks[wi].Days[di]
			for ai := range d.Activities {
				if d.Activities[ai].ID == activityID {
					act := d.Activities[ai]
					d.Activities = append(d.Activities[:ai], d.Activities[ai+1:]...)
					target.Activities = append(target.Activities, act)
					return
				}
			}
		}
	}
}

func removeFromSnapshot(s *plan.Snapshot, activityID string) {
	for wi := range s.Weeks {
		for di := range s.Weeks[wi].Days {
			d := &s.Weeks[wi].Days[di]
			for ai := range d.Activities {
				if d.Activities[ai].ID == activityID {
					d.Activities = append(d.Activities[:ai], d.Activities[ai+1:]...)
					return
				}
			}
		}
	}
}

func (a *Applier) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Applier) log() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}
