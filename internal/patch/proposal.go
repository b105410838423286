package patch

import "time"

// SchemaVersion is the proposal wire-format version. Apply rejects any
// other value.
const SchemaVersion = "stride.patch.v1"

// Change-count caps.
const (
	MaxChangesGenerate = 20 // advisor output cap
	MaxChangesApply    = 24 // caller-returned proposal cap
	MaxChangesInjury   = 8  // stricter cap under injury/illness language
)

// Proposal caps.
const (
	MaxRiskFlags   = 6
	MaxDiagnostics = 8
)

// Confidence levels.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Proposal modes.
const (
	ModeBalanced       = "balanced"
	ModeMinimalChanges = "minimal_changes"
	ModeInjuryCautious = "injury_cautious"
	ModeAggressive     = "aggressive"
)

// Proposal is a complete, self-contained bundle of changes plus narrative
// and process metadata. Proposals are never persisted; they round-trip
// through the caller in full and are re-verified on return.
type Proposal struct {
	SchemaVersion string    `json:"schemaVersion"`
	PatchID       string    `json:"patchId"`
	CreatedAt     time.Time `json:"createdAt"`
	Mode          string    `json:"mode"`

	CoachReply       string   `json:"coachReply"`
	Summary          string   `json:"summary"`
	Confidence       string   `json:"confidence"`
	RiskFlags        []string `json:"riskFlags,omitempty"`
	FollowUpQuestion string   `json:"followUpQuestion,omitempty"`

	Changes []Change `json:"changes"`

	RequiresClarification bool   `json:"requiresClarification"`
	ClarificationPrompt   string `json:"clarificationPrompt,omitempty"`

	ApplyToken string `json:"applyToken,omitempty"`
}

// Clone returns a copy of the proposal with an independent change list and
// risk-flag slice. Change payloads are treated as immutable and shared.
func (p *Proposal) Clone() *Proposal {
	out := *p
	out.Changes = make([]Change, len(p.Changes))
	copy(out.Changes, p.Changes)
	out.RiskFlags = append([]string(nil), p.RiskFlags...)
	return &out
}

// AddRiskFlag prepends a risk flag, deduplicating and keeping the list
// within MaxRiskFlags.
func (p *Proposal) AddRiskFlag(flag string) {
	for _, f := range p.RiskFlags {
		if f == flag {
			return
		}
	}
	p.RiskFlags = append([]string{flag}, p.RiskFlags...)
	if len(p.RiskFlags) > MaxRiskFlags {
		p.RiskFlags = p.RiskFlags[:MaxRiskFlags]
	}
}

// AppendRiskFlag appends a risk flag, deduplicating and keeping the list
// within MaxRiskFlags. Appended flags are dropped when the list is full.
func (p *Proposal) AppendRiskFlag(flag string) {
	for _, f := range p.RiskFlags {
		if f == flag {
			return
		}
	}
	if len(p.RiskFlags) >= MaxRiskFlags {
		return
	}
	p.RiskFlags = append(p.RiskFlags, flag)
}

// WeekResolver resolves day and activity ids to their owning week id.
type WeekResolver interface {
	WeekIDForDay(dayID string) string
	WeekIDForActivity(activityID string) string
}

// TouchedWeeks resolves the distinct set of week ids the change list
// touches. Structural ops contribute no week ids.
func (p *Proposal) TouchedWeeks(r WeekResolver) map[string]bool {
	touched := make(map[string]bool)
	add := func(id string) {
		if id != "" {
			touched[id] = true
		}
	}
	for i := range p.Changes {
		c := &p.Changes[i]
		switch c.Op {
		case OpMove:
			add(r.WeekIDForActivity(c.Move.ActivityID))
			add(r.WeekIDForDay(c.Move.TargetDayID))
		case OpEdit:
			add(r.WeekIDForActivity(c.Edit.ActivityID))
		case OpAdd:
			add(r.WeekIDForDay(c.Add.DayID))
		case OpDelete:
			add(r.WeekIDForActivity(c.Delete.ActivityID))
		}
	}
	return touched
}
