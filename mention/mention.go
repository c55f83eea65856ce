// Package mention implements the `@`-mention parser (§4.3): extracting
// `@name` tokens from a message body and resolving them, in document
// order, to meeting participants.
package mention

import (
	"regexp"
	"strings"
	"unicode"
)

// Participant is the minimal view the parser needs of a meeting participant.
type Participant struct {
	ID       string
	Name     string
	RoleName string
}

// Mention is one resolved reference, in the order it first appeared.
type Mention struct {
	ParticipantID   string
	ParticipantName string
}

// tokenPattern matches a mention token: `@` followed by either a quoted
// name or a run of non-whitespace characters.
var tokenPattern = regexp.MustCompile(`@"([^"]*)"|@(\S+)`)

// Parse extracts the set of mentions in content, in document order. Each
// participant appears at most once; the first occurrence wins. The user is
// never a valid mention target — only entries in participants are matched.
func Parse(content string, participants []Participant) []Mention {
	matches := tokenPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(participants))
	var out []Mention

	for _, m := range matches {
		var raw string
		if m[1] != "" {
			raw = m[1] // quoted form: exact captured content
		} else {
			raw = m[2] // unquoted run of non-whitespace
		}
		if raw == "" {
			continue
		}

		p, ok := resolve(raw, participants)
		if !ok || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, Mention{ParticipantID: p.ID, ParticipantName: p.Name})
	}

	return out
}

// resolve matches a captured token against participant names first, then
// role names. A token is an exact match, or a prefix match where the
// matched name is immediately followed by a non-alphanumeric character
// (so "@Bob," matches participant name "Bob").
func resolve(raw string, participants []Participant) (Participant, bool) {
	for _, p := range participants {
		if matchesToken(raw, p.Name) {
			return p, true
		}
	}
	for _, p := range participants {
		if matchesToken(raw, p.RoleName) {
			return p, true
		}
	}
	return Participant{}, false
}

func matchesToken(raw, candidate string) bool {
	if candidate == "" {
		return false
	}
	if raw == candidate {
		return true
	}
	if !strings.HasPrefix(raw, candidate) {
		return false
	}
	rest := raw[len(candidate):]
	if rest == "" {
		return true
	}
	r := []rune(rest)[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
