package patch

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field bounds for untrusted proposal input.
const (
	maxCoachReplyLen = 4000
	maxSummaryLen    = 1000
	maxReasonLen     = 500
	maxTitleLen      = 200
	maxIDLen         = 64
	maxFlagLen       = 200

	maxDurationMin = 600
	maxDistanceKm  = 200

	milesToKm = 1.60934
)

var validActivityTypes = map[string]bool{
	"RUN": true, "STRENGTH": true, "CROSS_TRAIN": true, "REST": true,
	"MOBILITY": true, "YOGA": true, "HIKE": true, "OTHER": true,
}

var validPriorities = map[string]bool{
	"KEY": true, "MEDIUM": true, "OPTIONAL": true,
}

var validConfidence = map[string]bool{
	ConfidenceLow: true, ConfidenceMedium: true, ConfidenceHigh: true,
}

var validUnits = map[string]bool{"km": true, "mi": true}

// proposalWire is the untrusted top-level shape. Changes stay raw so each
// one is parsed and positioned individually.
type proposalWire struct {
	CoachReply       string            `json:"coachReply"`
	Summary          string            `json:"summary"`
	Confidence       string            `json:"confidence"`
	RiskFlags        []string          `json:"riskFlags"`
	FollowUpQuestion string            `json:"followUpQuestion"`
	Changes          []json.RawMessage `json:"changes"`
}

// Parse converts an untrusted JSON blob into a typed Proposal. The result
// is all-valid or nil: any malformed change, out-of-range value or unknown
// op rejects the whole proposal. Process metadata (schema version, patch
// id, timestamps, token) is not read here; the pipeline stamps it.
func Parse(raw []byte, maxChanges int) (*Proposal, error) {
	var w proposalWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("patch: parse proposal: %w", err)
	}

	if err := requireString("coachReply", w.CoachReply, maxCoachReplyLen); err != nil {
		return nil, err
	}
	if err := requireString("summary", w.Summary, maxSummaryLen); err != nil {
		return nil, err
	}
	if !validConfidence[w.Confidence] {
		return nil, fmt.Errorf("patch: confidence %q is not one of low, medium, high", w.Confidence)
	}
	if w.FollowUpQuestion != "" && len(w.FollowUpQuestion) > maxSummaryLen {
		return nil, fmt.Errorf("patch: followUpQuestion exceeds %d characters", maxSummaryLen)
	}
	for i, f := range w.RiskFlags {
		if f == "" || len(f) > maxFlagLen {
			return nil, fmt.Errorf("patch: riskFlags[%d] is empty or exceeds %d characters", i, maxFlagLen)
		}
	}
	if len(w.Changes) > maxChanges {
		return nil, fmt.Errorf("patch: %d changes exceeds the maximum of %d", len(w.Changes), maxChanges)
	}

	p := &Proposal{
		CoachReply:       w.CoachReply,
		Summary:          w.Summary,
		Confidence:       w.Confidence,
		RiskFlags:        w.RiskFlags,
		FollowUpQuestion: w.FollowUpQuestion,
	}
	if len(p.RiskFlags) > MaxRiskFlags {
		p.RiskFlags = p.RiskFlags[:MaxRiskFlags]
	}

	for i, rawChange := range w.Changes {
		var cw changeWire
		if err := json.Unmarshal(rawChange, &cw); err != nil {
			return nil, fmt.Errorf("patch: changes[%d]: %w", i, err)
		}
		c, err := parseChange(&cw)
		if err != nil {
			return nil, fmt.Errorf("patch: changes[%d]: %w", i, err)
		}
		p.Changes = append(p.Changes, *c)
	}

	return p, nil
}

// parseChange validates a single wire change. Extra fields irrelevant to
// the op are ignored; missing required fields reject.
func parseChange(w *changeWire) (*Change, error) {
	if w.Reason == "" || len(w.Reason) > maxReasonLen {
		return nil, fmt.Errorf("reason is required and must be at most %d characters", maxReasonLen)
	}
	c := &Change{Op: Op(w.Op), Reason: w.Reason}

	switch c.Op {
	case OpMove:
		if err := requireID("activityId", w.ActivityID); err != nil {
			return nil, err
		}
		if err := requireID("targetDayId", w.TargetDayID); err != nil {
			return nil, err
		}
		c.Move = &MoveActivity{ActivityID: w.ActivityID, TargetDayID: w.TargetDayID}

	case OpEdit:
		if err := requireID("activityId", w.ActivityID); err != nil {
			return nil, err
		}
		fields, err := parseFields(w)
		if err != nil {
			return nil, err
		}
		if fieldsEmpty(fields) {
			return nil, fmt.Errorf("edit_activity has no fields to change")
		}
		c.Edit = &EditActivity{ActivityID: w.ActivityID, Fields: *fields}

	case OpAdd:
		if err := requireID("dayId", w.DayID); err != nil {
			return nil, err
		}
		if w.Type == nil || !validActivityTypes[*w.Type] {
			return nil, fmt.Errorf("add_activity type is missing or invalid")
		}
		if w.Title == nil || *w.Title == "" || len(*w.Title) > maxTitleLen {
			return nil, fmt.Errorf("add_activity title is required and must be at most %d characters", maxTitleLen)
		}
		fields, err := parseFields(w)
		if err != nil {
			return nil, err
		}
		add := &AddActivity{DayID: w.DayID, Type: *w.Type, Title: *w.Title, Fields: *fields}
		add.Fields.Type = nil
		add.Fields.Title = nil
		c.Add = add

	case OpDelete:
		if err := requireID("activityId", w.ActivityID); err != nil {
			return nil, err
		}
		c.Delete = &DeleteActivity{ActivityID: w.ActivityID}

	case OpExtend:
		if w.NewStartDate == "" {
			return nil, fmt.Errorf("extend_plan newStartDate is required")
		}
		d, err := time.Parse("2006-01-02", w.NewStartDate)
		if err != nil {
			return nil, fmt.Errorf("extend_plan newStartDate %q is not a valid date", w.NewStartDate)
		}
		c.Extend = &ExtendPlan{NewStartDate: d}

	case OpReanchor:
		if w.Subtype == nil || *w.Subtype == "" || len(*w.Subtype) > maxIDLen {
			return nil, fmt.Errorf("reanchor_subtype_weekly subtype is required")
		}
		if w.TargetDayOfWeek < 1 || w.TargetDayOfWeek > 7 {
			return nil, fmt.Errorf("reanchor_subtype_weekly targetDayOfWeek %d out of range 1-7", w.TargetDayOfWeek)
		}
		if w.FromDayOfWeek != nil && (*w.FromDayOfWeek < 1 || *w.FromDayOfWeek > 7) {
			return nil, fmt.Errorf("reanchor_subtype_weekly fromDayOfWeek %d out of range 1-7", *w.FromDayOfWeek)
		}
		if w.StartWeekIndex != nil && *w.StartWeekIndex < 1 {
			return nil, fmt.Errorf("reanchor_subtype_weekly startWeekIndex must be at least 1")
		}
		c.Reanchor = &ReanchorWeekly{
			Subtype:         *w.Subtype,
			TargetDayOfWeek: w.TargetDayOfWeek,
			FromDayOfWeek:   w.FromDayOfWeek,
			StartWeekIndex:  w.StartWeekIndex,
		}

	default:
		return nil, fmt.Errorf("unknown op %q", w.Op)
	}

	return c, nil
}

// parseFields validates the optional activity fields shared by edit and
// add. A "mi" unit converts the distance to kilometres.
func parseFields(w *changeWire) (*ActivityFields, error) {
	f := &ActivityFields{
		Type:        w.Type,
		Subtype:     w.Subtype,
		Title:       w.Title,
		DurationMin: w.DurationMin,
		DistanceKm:  w.DistanceKm,
		Pace:        w.Pace,
		Effort:      w.Effort,
		Priority:    w.Priority,
		MustDo:      w.MustDo,
	}

	if f.Type != nil && !validActivityTypes[*f.Type] {
		return nil, fmt.Errorf("type %q is not a valid activity type", *f.Type)
	}
	if f.Title != nil && (*f.Title == "" || len(*f.Title) > maxTitleLen) {
		return nil, fmt.Errorf("title must be 1-%d characters", maxTitleLen)
	}
	if f.Subtype != nil && len(*f.Subtype) > maxIDLen {
		return nil, fmt.Errorf("subtype exceeds %d characters", maxIDLen)
	}
	if f.DurationMin != nil && (*f.DurationMin < 0 || *f.DurationMin > maxDurationMin) {
		return nil, fmt.Errorf("durationMin %.1f out of range 0-%d", *f.DurationMin, maxDurationMin)
	}
	if f.Priority != nil && !validPriorities[*f.Priority] {
		return nil, fmt.Errorf("priority %q is not one of KEY, MEDIUM, OPTIONAL", *f.Priority)
	}

	if w.Unit != nil && !validUnits[*w.Unit] {
		return nil, fmt.Errorf("unit %q is not one of km, mi", *w.Unit)
	}
	if f.DistanceKm != nil {
		dist := *f.DistanceKm
		if w.Unit != nil && *w.Unit == "mi" {
			dist *= milesToKm
		}
		if dist < 0 || dist > maxDistanceKm {
			return nil, fmt.Errorf("distance %.1f km out of range 0-%d", dist, maxDistanceKm)
		}
		f.DistanceKm = &dist
	}

	return f, nil
}

func fieldsEmpty(f *ActivityFields) bool {
	return f.Type == nil && f.Subtype == nil && f.Title == nil &&
		f.DurationMin == nil && f.DistanceKm == nil && f.Pace == nil &&
		f.Effort == nil && f.Priority == nil && f.MustDo == nil
}

func requireString(name, v string, max int) error {
	if v == "" {
		return fmt.Errorf("patch: %s is required", name)
	}
	if len(v) > max {
		return fmt.Errorf("patch: %s exceeds %d characters", name, max)
	}
	return nil
}

func requireID(name, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(v) > maxIDLen {
		return fmt.Errorf("%s exceeds %d characters", name, maxIDLen)
	}
	return nil
}
