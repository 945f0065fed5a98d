// Package naming derives filesystem-safe, collision-free output names for
// team roster documents.
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/okian/roster/internal/domain/exporterr"
)

const (
	// Suffix is appended to every output name.
	Suffix = ".pdf"
	// MaxLen bounds the full output name, suffix included.
	MaxLen = 120
)

// Clean applies the character rules to s: whitespace runs become "_", bytes
// outside [A-Za-z0-9._-] are dropped, "_" runs collapse and leading or
// trailing "_" are trimmed. Clean is idempotent.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	inSpace := false

	write := func(r rune) {
		if r == '_' {
			if lastUnderscore {
				return
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				write('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if allowed(r) {
			write(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// Base returns the cleaned "{teamName}_{teamID}" stem, truncated so that the
// stem plus Suffix fits in MaxLen.
func Base(teamName, teamID string) (string, error) {
	if Clean(teamName) == "" && Clean(teamID) == "" {
		return "", fmt.Errorf("%w: name %q id %q", exporterr.ErrInvalidTeamIdentity, teamName, teamID)
	}
	base := Clean(teamName + "_" + teamID)
	return truncate(base, MaxLen-len(Suffix)), nil
}

// FileName is Base plus Suffix, without collision handling.
func FileName(teamName, teamID string) (string, error) {
	base, err := Base(teamName, teamID)
	if err != nil {
		return "", err
	}
	return base + Suffix, nil
}

// Reserve resolves a unique output name for the team against used, appending
// -1, -2, ... before the suffix on collision, and records the winner in used.
func Reserve(used *UsedSet, teamName, teamID string) (string, error) {
	base, err := Base(teamName, teamID)
	if err != nil {
		return "", err
	}

	used.mu.Lock()
	defer used.mu.Unlock()

	name := base + Suffix
	for n := 1; used.has(name); n++ {
		tag := "-" + strconv.Itoa(n)
		name = truncate(base, MaxLen-len(Suffix)-len(tag)) + tag + Suffix
	}
	used.add(name)
	return name, nil
}

// truncate cuts s to at most n bytes. Clean output is ASCII, so byte and rune
// boundaries coincide.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
