// Package model contains domain models passed between layers.
package model

import (
	"database/sql"
	"strconv"
)

// Usertype_ID values carried by roster rows.
const (
	RoleAthlete int64 = 1
	RoleCoach   int64 = 2
)

// Columns lists the result-set columns in the order the roster query returns them.
var Columns = []string{
	"Event_ID", "Event_Name", "Team_Name", "Team_ID", "Division", "User_ID",
	"Name", "Usertype_ID", "Phone", "Email", "Profile_Pic", "Jersey_Num", "Birthday",
}

// RosterRow is one flat record joining event, team, division and person data.
// Every column except TeamName and TeamID may be absent.
type RosterRow struct {
	EventID    sql.Null[int64]
	EventName  sql.Null[string]
	TeamName   sql.Null[string]
	TeamID     sql.Null[int64]
	Division   sql.Null[string]
	UserID     sql.Null[int64]
	Name       sql.Null[string]
	UsertypeID sql.Null[int64]
	Phone      sql.Null[string]
	Email      sql.Null[string]
	ProfilePic sql.Null[string]
	JerseyNum  sql.Null[string]
	Birthday   sql.Null[string]
}

// IsAthlete reports whether the row describes an athlete.
func (r RosterRow) IsAthlete() bool {
	return r.UsertypeID.Valid && r.UsertypeID.V == RoleAthlete
}

// IsCoach reports whether the row describes a coach.
func (r RosterRow) IsCoach() bool {
	return r.UsertypeID.Valid && r.UsertypeID.V == RoleCoach
}

// DisplayName returns the person's name or an empty string.
func (r RosterRow) DisplayName() string {
	return Str(r.Name)
}

// TeamRoster is the aggregated per-team view used to render one document.
type TeamRoster struct {
	TeamID    int64
	TeamName  string
	Division  sql.Null[string]
	EventName sql.Null[string]
	Athletes  []RosterRow
	Coach     *RosterRow
}

// Empty reports whether the roster has no athletes.
func (t TeamRoster) Empty() bool {
	return len(t.Athletes) == 0
}

// TeamIDString formats the team id the way it appears in output names.
func (t TeamRoster) TeamIDString() string {
	return strconv.FormatInt(t.TeamID, 10)
}

// Str returns the value of n or "" when absent.
func Str(n sql.Null[string]) string {
	if !n.Valid {
		return ""
	}
	return n.V
}

// Some wraps v as a present optional value.
func Some[T any](v T) sql.Null[T] {
	return sql.Null[T]{V: v, Valid: true}
}
