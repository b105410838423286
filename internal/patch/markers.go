package patch

import (
	"strings"

	"github.com/stridehq/stride/internal/plan"
)

// qualitySubtypes is the fixed set of subtypes treated as high-intensity.
var qualitySubtypes = map[string]bool{
	"tempo": true, "intervals": true, "interval": true, "hills": true,
	"race": true, "vo2": true, "threshold": true, "speed": true,
	"fartlek": true,
}

// longRunSubtypes are explicit long-run subtype spellings.
var longRunSubtypes = map[string]bool{
	"lrl": true, "long_run": true, "longrun": true, "long-run": true, "long": true,
}

// hardTitleMarkers flag a high-intensity session by title.
var hardTitleMarkers = []string{"tempo", "hill", "interval", "race", "fartlek", "vo2", "threshold"}

// IsLongRun reports whether an activity is the week's long run, by explicit
// subtype or by title.
func IsLongRun(a *plan.ActivitySnapshot) bool {
	if longRunSubtypes[strings.ToLower(a.Subtype)] {
		return true
	}
	if a.Type != "RUN" {
		return false
	}
	return strings.Contains(strings.ToLower(a.Title), "long")
}

// IsHard reports whether an activity counts as high-intensity: KEY
// priority, must-do, a quality subtype, or a hard title marker. Rest and
// recovery types are never hard.
func IsHard(a *plan.ActivitySnapshot) bool {
	switch a.Type {
	case "REST", "MOBILITY", "YOGA":
		return false
	}
	if a.Priority == "KEY" || a.MustDo {
		return true
	}
	if qualitySubtypes[strings.ToLower(a.Subtype)] {
		return true
	}
	title := strings.ToLower(a.Title)
	for _, m := range hardTitleMarkers {
		if strings.Contains(title, m) {
			return true
		}
	}
	return false
}

// MatchesSubtype reports whether an activity matches a reanchor subtype
// token. The match is a normalized lexical heuristic over explicit
// subtype, type and title.
func MatchesSubtype(token string, a *plan.ActivitySnapshot) bool {
	tok := strings.ToLower(strings.TrimSpace(token))
	if tok == "" {
		return false
	}
	sub := strings.ToLower(a.Subtype)
	title := strings.ToLower(a.Title)

	if sub != "" && sub == tok {
		return true
	}

	switch tok {
	case "lrl", "long", "longrun", "long_run", "long-run":
		return IsLongRun(a)
	case "rest":
		return a.Type == "REST" || strings.Contains(title, "rest")
	case "tempo":
		return strings.Contains(title, "tempo") || strings.Contains(sub, "tempo")
	case "hill", "hills":
		return strings.Contains(title, "hill")
	case "interval", "intervals":
		return strings.Contains(title, "interval")
	}

	return strings.Contains(title, tok) || strings.EqualFold(a.Type, tok)
}
