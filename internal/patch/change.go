// Package patch implements the proposal patch engine: parsing untrusted
// change sets, lock sanitization, guardrails, simulation, risk scoring,
// candidate selection and clarification gating.
package patch

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op identifies a change variant.
type Op string

// The closed set of change operations.
const (
	OpMove     Op = "move_activity"
	OpEdit     Op = "edit_activity"
	OpAdd      Op = "add_activity"
	OpDelete   Op = "delete_activity"
	OpExtend   Op = "extend_plan"
	OpReanchor Op = "reanchor_subtype_weekly"
)

// Change is one atomic edit instruction. Exactly one payload field is
// non-nil, matching Op.
type Change struct {
	Op     Op
	Reason string

	Move     *MoveActivity
	Edit     *EditActivity
	Add      *AddActivity
	Delete   *DeleteActivity
	Extend   *ExtendPlan
	Reanchor *ReanchorWeekly
}

// MoveActivity relocates an existing activity to another day.
type MoveActivity struct {
	ActivityID  string
	TargetDayID string
}

// ActivityFields is the partial field set carried by edit and add changes.
// Nil means "leave unchanged" for edits and "unset" for adds.
type ActivityFields struct {
	Type        *string
	Subtype     *string
	Title       *string
	DurationMin *float64
	DistanceKm  *float64
	Pace        *string
	Effort      *string
	Priority    *string
	MustDo      *bool
}

// EditActivity overwrites the explicitly-present fields of an activity.
type EditActivity struct {
	ActivityID string
	Fields     ActivityFields
}

// AddActivity creates a new activity on a day.
type AddActivity struct {
	DayID  string
	Type   string
	Title  string
	Fields ActivityFields
}

// DeleteActivity removes an activity.
type DeleteActivity struct {
	ActivityID string
}

// ExtendPlan prepends weeks so the plan starts on the Monday of
// NewStartDate. Apply-time-only structural operation.
type ExtendPlan struct {
	NewStartDate time.Time
}

// ReanchorWeekly moves the weekly occurrence of a subtype (long run, rest,
// tempo, ...) to a fixed day of week across every week at or after
// StartWeekIndex.
type ReanchorWeekly struct {
	Subtype         string
	TargetDayOfWeek int
	FromDayOfWeek   *int // nil: search the whole week
	StartWeekIndex  *int // nil: from week 1
}

// changeWire is the flat JSON shape of a change. Unknown extra fields are
// ignored; missing required fields for a recognized op reject the change.
type changeWire struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`

	ActivityID  string `json:"activityId,omitempty"`
	TargetDayID string `json:"targetDayId,omitempty"`
	DayID       string `json:"dayId,omitempty"`

	Type        *string  `json:"type,omitempty"`
	Subtype     *string  `json:"subtype,omitempty"`
	Title       *string  `json:"title,omitempty"`
	DurationMin *float64 `json:"durationMin,omitempty"`
	DistanceKm  *float64 `json:"distanceKm,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Pace        *string  `json:"pace,omitempty"`
	Effort      *string  `json:"effort,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	MustDo      *bool    `json:"mustDo,omitempty"`

	NewStartDate string `json:"newStartDate,omitempty"`

	TargetDayOfWeek int  `json:"targetDayOfWeek,omitempty"`
	FromDayOfWeek   *int `json:"fromDayOfWeek,omitempty"`
	StartWeekIndex  *int `json:"startWeekIndex,omitempty"`
}

// MarshalJSON flattens the change into its wire shape.
func (c Change) MarshalJSON() ([]byte, error) {
	w := changeWire{Op: string(c.Op), Reason: c.Reason}
	switch c.Op {
	case OpMove:
		w.ActivityID = c.Move.ActivityID
		w.TargetDayID = c.Move.TargetDayID
	case OpEdit:
		w.ActivityID = c.Edit.ActivityID
		fieldsToWire(&c.Edit.Fields, &w)
	case OpAdd:
		w.DayID = c.Add.DayID
		fieldsToWire(&c.Add.Fields, &w)
		w.Type = strPtr(c.Add.Type)
		w.Title = strPtr(c.Add.Title)
	case OpDelete:
		w.ActivityID = c.Delete.ActivityID
	case OpExtend:
		w.NewStartDate = c.Extend.NewStartDate.Format("2006-01-02")
	case OpReanchor:
		w.Subtype = strPtr(c.Reanchor.Subtype)
		w.TargetDayOfWeek = c.Reanchor.TargetDayOfWeek
		w.FromDayOfWeek = c.Reanchor.FromDayOfWeek
		w.StartWeekIndex = c.Reanchor.StartWeekIndex
	default:
		return nil, fmt.Errorf("patch: marshal unknown op %q", c.Op)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses a change through the same strict path as advisor
// output, so a caller-returned proposal gets no laxer treatment.
func (c *Change) UnmarshalJSON(data []byte) error {
	var w changeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("patch: change: %w", err)
	}
	parsed, err := parseChange(&w)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

func fieldsToWire(f *ActivityFields, w *changeWire) {
	w.Type = f.Type
	w.Subtype = f.Subtype
	w.Title = f.Title
	w.DurationMin = f.DurationMin
	w.DistanceKm = f.DistanceKm
	w.Pace = f.Pace
	w.Effort = f.Effort
	w.Priority = f.Priority
	w.MustDo = f.MustDo
}

// TargetActivityID returns the activity id a change operates on, or "" for
// structural and day-targeted ops.
func (c *Change) TargetActivityID() string {
	switch c.Op {
	case OpMove:
		return c.Move.ActivityID
	case OpEdit:
		return c.Edit.ActivityID
	case OpDelete:
		return c.Delete.ActivityID
	}
	return ""
}

// Structural reports whether the change rewrites plan structure rather than
// individual activities.
func (c *Change) Structural() bool {
	return c.Op == OpExtend || c.Op == OpReanchor
}

func strPtr(s string) *string { return &s }
