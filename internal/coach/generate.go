// Package coach orchestrates the proposal generation pipeline: advisor
// call, parse, sanitize, guardrail, simulate/score/select, clarify and
// token issuance.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stridehq/stride/internal/patch"
	"github.com/stridehq/stride/internal/plan"
	"github.com/stridehq/stride/internal/token"
)

// Pipeline failure classes, matched by callers with errors.Is.
var (
	ErrAdvisor         = errors.New("coach: advisor call failed")
	ErrInvalidProposal = errors.New("coach: invalid proposal format")
	ErrGuardrail       = errors.New("coach: proposal rejected by guardrail")
)

// Advisor produces a raw candidate proposal from the owner's message and a
// textual plan context. The output is an untrusted blob; everything
// downstream assumes it may be malformed or unsafe.
type Advisor interface {
	Propose(ctx context.Context, message, planContext string) ([]byte, error)
}

// Generator runs the generation pipeline for one plan.
type Generator struct {
	Advisor Advisor
	Signer  *token.Signer
	Now     func() time.Time
	Log     *slog.Logger
}

// Result is a generated, signed proposal plus its score report.
type Result struct {
	Proposal *patch.Proposal
	Report   *patch.Report
}

// Generate produces a signed proposal for the snapshot from a free-text
// owner message. The returned proposal is complete and self-contained; it
// is never persisted server-side.
func (g *Generator) Generate(ctx context.Context, snap *plan.Snapshot, message string) (*Result, error) {
	locks := plan.BuildLockState(snap)

	raw, err := g.Advisor.Propose(ctx, message, RenderContext(snap, locks))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdvisor, err)
	}

	p, err := patch.Parse(raw, patch.MaxChangesGenerate)
	if err != nil {
		g.log().Warn("advisor proposal rejected by parser", "plan", snap.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	p.Mode = patch.ModeBalanced

	p = patch.Sanitize(p, locks)

	if err := patch.Guardrail(p, message, patch.MaxChangesGenerate); err != nil {
		g.log().Warn("proposal rejected by guardrail", "plan", snap.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrGuardrail, err)
	}

	patch.ApplySafetyPolicy(p, message)

	selected, report := patch.Select(p, snap, message)
	patch.Clarify(selected, snap)

	selected.SchemaVersion = patch.SchemaVersion
	selected.PatchID = uuid.NewString()
	selected.CreatedAt = g.now().UTC().Truncate(time.Second)

	tok, err := g.Signer.Issue(snap.ID, selected)
	if err != nil {
		return nil, err
	}
	selected.ApplyToken = tok

	g.log().Info("proposal generated",
		"plan", snap.ID,
		"patch", selected.PatchID,
		"changes", len(selected.Changes),
		"score", report.Score,
		"clarify", selected.RequiresClarification,
	)
	return &Result{Proposal: selected, Report: report}, nil
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Generator) log() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}
