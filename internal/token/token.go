// Package token issues and verifies apply tokens: deterministic
// fingerprints binding a proposal's full content to a plan at generation
// time. The token is the system's only defense against a client replaying
// a stale or hand-edited proposal.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stridehq/stride/internal/patch"
)

// ErrInvalid is wrapped by every verification failure. Callers match it
// with errors.Is and surface a "regenerate" response.
var ErrInvalid = errors.New("token: proposal is stale or tampered")

// clockSkew tolerates slightly future creation timestamps from clock
// drift between issuing and verifying hosts.
const clockSkew = 5 * time.Minute

// Signer issues and verifies apply tokens with an HMAC secret and a
// freshness window.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a Signer. ttl bounds how old a proposal may be at
// apply time.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// claims is the JWT payload. Field order is fixed so the encoded token is
// deterministic for identical content.
type claims struct {
	PlanID string `json:"plan"`
	Digest string `json:"digest"`
	jwt.RegisteredClaims
}

// Issue computes the apply token for a proposal scoped to a plan. The
// token is deterministic: identical proposal content yields a
// bit-identical token.
func (s *Signer) Issue(planID string, p *patch.Proposal) (string, error) {
	digest, err := ContentDigest(planID, p)
	if err != nil {
		return "", err
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PlanID: planID,
		Digest: digest,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       p.PatchID,
			IssuedAt: jwt.NewNumericDate(p.CreatedAt),
		},
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks a caller-returned proposal: schema version, patch-id
// shape, creation recency, and that the embedded token matches a fresh
// recomputation over the exact apply-time content bit-for-bit. Any
// mismatch is a hard rejection wrapping ErrInvalid.
func (s *Signer) Verify(planID string, p *patch.Proposal, now time.Time) error {
	if p.SchemaVersion != patch.SchemaVersion {
		return fmt.Errorf("%w: schema version %q, expected %q", ErrInvalid, p.SchemaVersion, patch.SchemaVersion)
	}
	if _, err := uuid.Parse(p.PatchID); err != nil {
		return fmt.Errorf("%w: patch id %q is not a valid id", ErrInvalid, p.PatchID)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: creation timestamp is missing", ErrInvalid)
	}
	age := now.Sub(p.CreatedAt)
	if age > s.ttl {
		return fmt.Errorf("%w: proposal is %s old, maximum is %s", ErrInvalid, age.Round(time.Minute), s.ttl)
	}
	if age < -clockSkew {
		return fmt.Errorf("%w: creation timestamp is in the future", ErrInvalid)
	}
	if p.ApplyToken == "" {
		return fmt.Errorf("%w: apply token is missing", ErrInvalid)
	}

	// Signature and claim structure.
	parsed, err := jwt.ParseWithClaims(p.ApplyToken, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: signature check failed", ErrInvalid)
	}

	// Bit-for-bit recomputation over the apply-time content.
	expected, err := s.Issue(planID, p)
	if err != nil {
		return err
	}
	if expected != p.ApplyToken {
		return fmt.Errorf("%w: content hash mismatch", ErrInvalid)
	}
	return nil
}

// tokenContent is the canonical encoding of every field the token signs.
// Adding a proposal field here invalidates previously issued tokens, which
// is the intent.
type tokenContent struct {
	SchemaVersion         string         `json:"schemaVersion"`
	PlanID                string         `json:"planId"`
	PatchID               string         `json:"patchId"`
	CreatedAt             int64          `json:"createdAt"`
	Mode                  string         `json:"mode"`
	RequiresClarification bool           `json:"requiresClarification"`
	ClarificationPrompt   string         `json:"clarificationPrompt"`
	CoachReply            string         `json:"coachReply"`
	Summary               string         `json:"summary"`
	Confidence            string         `json:"confidence"`
	RiskFlags             []string       `json:"riskFlags"`
	FollowUpQuestion      string         `json:"followUpQuestion"`
	Changes               []patch.Change `json:"changes"`
}

// ContentDigest computes the SHA-256 hex digest of the proposal's signed
// content scoped to a plan. The applier compares pre- and post-sanitize
// digests to detect concurrent plan drift.
func ContentDigest(planID string, p *patch.Proposal) (string, error) {
	content := tokenContent{
		SchemaVersion:         p.SchemaVersion,
		PlanID:                planID,
		PatchID:               p.PatchID,
		CreatedAt:             p.CreatedAt.Unix(),
		Mode:                  p.Mode,
		RequiresClarification: p.RequiresClarification,
		ClarificationPrompt:   p.ClarificationPrompt,
		CoachReply:            p.CoachReply,
		Summary:               p.Summary,
		Confidence:            p.Confidence,
		RiskFlags:             p.RiskFlags,
		FollowUpQuestion:      p.FollowUpQuestion,
		Changes:               p.Changes,
	}
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("token: encode content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
