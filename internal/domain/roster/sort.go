package roster

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/roster/internal/domain/model"
)

// JerseyKey is the derived sort key of a Jersey_Num value. Numeric is false
// for empty, missing or non-numeric values, which sort after every number.
type JerseyKey struct {
	Number  uint64
	Numeric bool
}

// Less orders numeric keys ascending and non-numeric keys last.
func (k JerseyKey) Less(o JerseyKey) bool {
	if k.Numeric != o.Numeric {
		return k.Numeric
	}
	return k.Numeric && k.Number < o.Number
}

// ParseJersey extracts the leading integer of a trimmed jersey value, so "12B"
// sorts as 12. Values too large for uint64 saturate but stay numeric.
func ParseJersey(v string) JerseyKey {
	s := strings.TrimSpace(v)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return JerseyKey{}
	}
	n, err := strconv.ParseUint(s[:end], 10, 64)
	if err != nil {
		n = math.MaxUint64
	}
	return JerseyKey{Number: n, Numeric: true}
}

// SortAthletes returns a new slice ordered by jersey number then by Name using
// byte-wise comparison. Exact ties keep their input order. The input slice and
// the Jersey_Num display values are left untouched.
func SortAthletes(athletes []model.RosterRow) []model.RosterRow {
	type keyed struct {
		row    model.RosterRow
		jersey JerseyKey
		name   string
	}
	items := make([]keyed, len(athletes))
	for i, a := range athletes {
		items[i] = keyed{row: a, jersey: ParseJersey(model.Str(a.JerseyNum)), name: a.DisplayName()}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.jersey.Less(b.jersey):
			return -1
		case b.jersey.Less(a.jersey):
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	out := make([]model.RosterRow, len(items))
	for i := range items {
		out[i] = items[i].row
	}
	return out
}

// SortTeams applies SortAthletes to every team in place.
func SortTeams(teams []model.TeamRoster) {
	for i := range teams {
		teams[i].Athletes = SortAthletes(teams[i].Athletes)
	}
}
