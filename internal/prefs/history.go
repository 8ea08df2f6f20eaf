package prefs

import "strings"

// MaxHistory is the number of recent searches retained.
const MaxHistory = 5

// Push returns history with term at the front. An existing case-insensitive match
// is removed first, and the result is capped at MaxHistory. history is not modified.
func Push(history []string, term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return append([]string(nil), history...)
	}

	out := make([]string, 0, MaxHistory)
	out = append(out, term)
	for _, h := range history {
		if len(out) == MaxHistory {
			break
		}
		if strings.EqualFold(h, term) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Normalize trims entries, drops blanks and later case-insensitive duplicates,
// and caps the list at MaxHistory.
func Normalize(history []string) []string {
	out := make([]string, 0, MaxHistory)
	seen := make(map[string]bool, len(history))
	for _, h := range history {
		h = strings.TrimSpace(h)
		k := strings.ToLower(h)
		if h == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
		if len(out) == MaxHistory {
			break
		}
	}
	return out
}
