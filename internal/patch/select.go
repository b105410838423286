package patch

import (
	"strings"

	"github.com/stridehq/stride/internal/plan"
)

// minimalCap is the change-list length of the minimal candidate variant.
const minimalCap = 6

// Candidate pairs a proposal variant with its score report.
type Candidate struct {
	Proposal *Proposal
	Report   *Report
}

// Select builds up to three candidate variants of a sanitized,
// guardrail-passed proposal, scores each against the snapshot and returns
// the lowest-risk one. Ties keep the earlier candidate, so the proposal
// as-is wins against an equally-scored variant. Up to two of the winner's
// diagnostics are merged into its risk flags.
func Select(p *Proposal, snap *plan.Snapshot, message string) (*Proposal, *Report) {
	candidates := []*Proposal{p}

	if len(p.Changes) > minimalCap {
		candidates = append(candidates, minimalVariant(p))
	}
	if InjuryLanguage(message) {
		candidates = append(candidates, injuryCautiousVariant(p))
	}

	var best Candidate
	for _, cand := range candidates {
		after := Simulate(snap, cand.Changes)
		report := Score(snap, after, cand.Changes, message)
		if best.Proposal == nil || report.Score < best.Report.Score {
			best = Candidate{Proposal: cand, Report: report}
		}
	}

	for i, d := range best.Report.Diagnostics {
		if i >= 2 {
			break
		}
		best.Proposal.AppendRiskFlag(d)
	}
	return best.Proposal, best.Report
}

// ApplySafetyPolicy downgrades a high-confidence proposal and prepends a
// risk flag when the owner's message reports injury or illness. Runs
// before candidate selection so every variant inherits the downgrade.
func ApplySafetyPolicy(p *Proposal, message string) {
	if !InjuryLanguage(message) {
		return
	}
	if p.Confidence == ConfidenceHigh {
		p.Confidence = ConfidenceMedium
	}
	p.AddRiskFlag("Owner reported injury or illness; review this proposal carefully before applying")
}

// minimalVariant keeps only relocation-style ops (move, edit, reanchor) and
// truncates to minimalCap.
func minimalVariant(p *Proposal) *Proposal {
	out := p.Clone()
	out.Mode = ModeMinimalChanges
	kept := out.Changes[:0]
	for i := range out.Changes {
		switch out.Changes[i].Op {
		case OpMove, OpEdit, OpReanchor:
			kept = append(kept, out.Changes[i])
		}
		if len(kept) == minimalCap {
			break
		}
	}
	out.Changes = kept
	return out
}

// injuryCautiousVariant drops adds and edits that introduce a hard
// non-rest run, and caps confidence at medium.
func injuryCautiousVariant(p *Proposal) *Proposal {
	out := p.Clone()
	out.Mode = ModeInjuryCautious
	kept := out.Changes[:0]
	for i := range out.Changes {
		if introducesHardRun(&out.Changes[i]) {
			continue
		}
		kept = append(kept, out.Changes[i])
	}
	out.Changes = kept
	if out.Confidence == ConfidenceHigh {
		out.Confidence = ConfidenceMedium
	}
	return out
}

// introducesHardRun reports whether an add or edit would put a
// high-intensity run into the plan.
func introducesHardRun(c *Change) bool {
	switch c.Op {
	case OpAdd:
		return c.Add.Type == "RUN" && hardFields(c.Add.Title, &c.Add.Fields)
	case OpEdit:
		f := &c.Edit.Fields
		if f.Type != nil && *f.Type != "RUN" {
			return false
		}
		title := ""
		if f.Title != nil {
			title = *f.Title
		}
		return hardFields(title, f)
	}
	return false
}

func hardFields(title string, f *ActivityFields) bool {
	lower := strings.ToLower(title)
	for _, m := range hardTitleMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if f.Subtype != nil && qualitySubtypes[strings.ToLower(*f.Subtype)] {
		return true
	}
	if f.Priority != nil && *f.Priority == "KEY" {
		return true
	}
	return f.MustDo != nil && *f.MustDo
}
