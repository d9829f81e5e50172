package meta

import (
	"os"
	"strings"
	"unicode"
)

const envMarker = "${env."

// expandEnvExpr substitutes every ${env.KEY} occurrence with the value of
// the KEY environment variable, empty when unset. Config documents use this
// to keep classifier tokens out of version control.
func expandEnvExpr(value string) string {
	if !strings.Contains(value, envMarker) {
		return value
	}
	var b strings.Builder
	rest := value
	for {
		head, tail, found := strings.Cut(rest, envMarker)
		b.WriteString(head)
		if !found {
			return b.String()
		}
		key, after, closed := strings.Cut(tail, "}")
		if !closed {
			// unterminated expression, keep it verbatim
			b.WriteString(envMarker)
			b.WriteString(tail)
			return b.String()
		}
		if !validEnvKey(key) {
			// keep the marker literal and rescan what follows it, so an
			// expression nested inside the bad key still expands
			b.WriteString(envMarker)
			rest = tail
			continue
		}
		b.WriteString(os.Getenv(key))
		rest = after
	}
}

func validEnvKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
