package patch

import (
	"fmt"
	"strings"
)

// Guardrail checks the structural sanity of a sanitized change list.
// Checks run in order and the first failure short-circuits; any failure is
// fatal to the whole proposal. A nil return means the proposal passed.
func Guardrail(p *Proposal, message string, maxChanges int) error {
	if len(p.Changes) > maxChanges {
		return fmt.Errorf("patch: %d changes exceeds the maximum of %d", len(p.Changes), maxChanges)
	}

	extends := 0
	for i := range p.Changes {
		if p.Changes[i].Op == OpExtend {
			extends++
		}
	}
	if extends > 1 {
		return fmt.Errorf("patch: extend_plan may appear at most once, found %d", extends)
	}

	movePairs := make(map[string]bool)
	for i := range p.Changes {
		c := &p.Changes[i]
		if c.Op != OpMove {
			continue
		}
		key := c.Move.ActivityID + "\x00" + c.Move.TargetDayID
		if movePairs[key] {
			return fmt.Errorf("patch: duplicate move of activity %s to day %s", c.Move.ActivityID, c.Move.TargetDayID)
		}
		movePairs[key] = true
	}

	deleted := make(map[string]bool)
	for i := range p.Changes {
		if p.Changes[i].Op == OpDelete {
			deleted[p.Changes[i].Delete.ActivityID] = true
		}
	}
	for i := range p.Changes {
		c := &p.Changes[i]
		if c.Op == OpDelete {
			continue
		}
		if id := c.TargetActivityID(); id != "" && deleted[id] {
			return fmt.Errorf("patch: activity %s is both deleted and modified", id)
		}
	}

	if InjuryLanguage(message) && len(p.Changes) > MaxChangesInjury {
		return fmt.Errorf("patch: %d changes exceeds the injury-context maximum of %d", len(p.Changes), MaxChangesInjury)
	}

	return nil
}

// injuryMarkers are lowercase word prefixes signalling injury or illness in
// the owner's message.
var injuryMarkers = []string{
	"injur", "hurt", "pain", "ach", "sore", "strain", "sprain",
	"sick", "ill", "fever", "flu", "niggl", "tweak", "fatigue",
}

// InjuryLanguage reports whether a message carries injury or illness
// language. Prefix match per word, so "hurts", "aching" and "injured" all
// register.
func InjuryLanguage(message string) bool {
	for _, word := range strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		for _, marker := range injuryMarkers {
			if strings.HasPrefix(word, marker) {
				return true
			}
		}
	}
	return false
}
