// Package roster turns flat roster rows into per-team rosters and orders
// athletes for display.
//
// Rows are expected in (Team_ID, User_ID) ascending order, which is what the
// roster query returns. Aggregate does not depend on that order for grouping
// or coach selection; VerifyOrder exists so callers can detect a source that
// stopped honouring it.
package roster

import (
	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/internal/domain/model"
)

// Aggregate groups rows by Team_ID into TeamRoster records, in the order teams
// first appear. Athletes keep their input order; the coach is the coach row
// with the smallest User_ID. Rows with any other Usertype_ID are ignored.
//
// It fails with a *exporterr.MalformedRowError when a row lacks Team_ID or
// Team_Name.
func Aggregate(rows []model.RosterRow) ([]model.TeamRoster, error) {
	index := make(map[int64]int)
	teams := make([]model.TeamRoster, 0)

	for i := range rows {
		r := rows[i]
		if err := checkIdentity(i, r); err != nil {
			return nil, err
		}

		pos, ok := index[r.TeamID.V]
		if !ok {
			pos = len(teams)
			index[r.TeamID.V] = pos
			teams = append(teams, model.TeamRoster{
				TeamID:    r.TeamID.V,
				TeamName:  r.TeamName.V,
				Division:  r.Division,
				EventName: r.EventName,
			})
		}
		t := &teams[pos]

		switch {
		case r.IsAthlete():
			t.Athletes = append(t.Athletes, r)
		case r.IsCoach():
			if lowerCoach(r, t.Coach) {
				c := r
				t.Coach = &c
			}
		}
	}
	return teams, nil
}

func checkIdentity(i int, r model.RosterRow) error {
	if !r.TeamID.Valid {
		return &exporterr.MalformedRowError{Index: i, Field: "Team_ID"}
	}
	if !r.TeamName.Valid {
		return &exporterr.MalformedRowError{Index: i, Field: "Team_Name"}
	}
	return nil
}

// lowerCoach reports whether candidate should replace current. A coach row
// without a User_ID never displaces one that has it.
func lowerCoach(candidate model.RosterRow, current *model.RosterRow) bool {
	if current == nil {
		return true
	}
	if !candidate.UserID.Valid {
		return false
	}
	if !current.UserID.Valid {
		return true
	}
	return candidate.UserID.V < current.UserID.V
}
