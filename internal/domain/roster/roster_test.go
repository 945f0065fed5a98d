package roster_test

import (
	"errors"
	"testing"

	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func row(teamID int64, teamName string, userID int64, usertype int64, name, jersey string) model.RosterRow {
	r := model.RosterRow{
		EventID:    model.Some(int64(77)),
		EventName:  model.Some("Spring Classic"),
		TeamName:   model.Some(teamName),
		TeamID:     model.Some(teamID),
		Division:   model.Some("14U"),
		UserID:     model.Some(userID),
		Name:       model.Some(name),
		UsertypeID: model.Some(usertype),
	}
	if jersey != "" {
		r.JerseyNum = model.Some(jersey)
	}
	return r
}

func names(rows []model.RosterRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.DisplayName()
	}
	return out
}

func TestAggregate(t *testing.T) {
	Convey("Given rows for two teams", t, func() {
		rows := []model.RosterRow{
			row(1, "Tigers", 10, model.RoleAthlete, "Cat", "3"),
			row(1, "Tigers", 11, model.RoleCoach, "Coach Z", ""),
			row(1, "Tigers", 12, model.RoleAthlete, "Amy", "12"),
			row(1, "Tigers", 13, 5, "Parent", ""),
			row(2, "Lions", 20, model.RoleCoach, "Coach L", ""),
		}

		teams, err := roster.Aggregate(rows)

		Convey("Then one roster per team is produced in first-appearance order", func() {
			So(err, ShouldBeNil)
			So(len(teams), ShouldEqual, 2)
			So(teams[0].TeamID, ShouldEqual, int64(1))
			So(teams[0].TeamName, ShouldEqual, "Tigers")
			So(teams[1].TeamID, ShouldEqual, int64(2))
		})

		Convey("Then athletes keep input order and other user types are ignored", func() {
			So(names(teams[0].Athletes), ShouldResemble, []string{"Cat", "Amy"})
		})

		Convey("Then team metadata is copied from the first row", func() {
			So(model.Str(teams[0].Division), ShouldEqual, "14U")
			So(model.Str(teams[0].EventName), ShouldEqual, "Spring Classic")
		})

		Convey("Then a team with only a coach is valid but empty", func() {
			So(teams[1].Empty(), ShouldBeTrue)
			So(teams[1].Coach, ShouldNotBeNil)
			So(teams[1].Coach.DisplayName(), ShouldEqual, "Coach L")
		})
	})

	Convey("Given several coaches on one team", t, func() {
		rows := []model.RosterRow{
			row(2, "Y", 99, model.RoleCoach, "Coach B", ""),
			row(2, "Y", 10, model.RoleCoach, "Coach A", ""),
			row(2, "Y", 1, model.RoleAthlete, "P", "1"),
			row(2, "Y", 50, model.RoleCoach, "Coach C", ""),
		}

		teams, err := roster.Aggregate(rows)

		Convey("Then the coach with the lowest User_ID is selected", func() {
			So(err, ShouldBeNil)
			So(teams[0].Coach.DisplayName(), ShouldEqual, "Coach A")
			for _, r := range rows {
				if r.IsCoach() {
					So(teams[0].Coach.UserID.V, ShouldBeLessThanOrEqualTo, r.UserID.V)
				}
			}
		})
	})

	Convey("Given a team without coach rows", t, func() {
		teams, err := roster.Aggregate([]model.RosterRow{row(3, "Z", 1, model.RoleAthlete, "A", "")})

		Convey("Then the coach is empty and no error is returned", func() {
			So(err, ShouldBeNil)
			So(teams[0].Coach, ShouldBeNil)
		})
	})

	Convey("Given interleaved team rows", t, func() {
		rows := []model.RosterRow{
			row(1, "A", 1, model.RoleAthlete, "a1", ""),
			row(2, "B", 2, model.RoleAthlete, "b1", ""),
			row(1, "A", 3, model.RoleAthlete, "a2", ""),
		}

		teams, err := roster.Aggregate(rows)

		Convey("Then every row lands in exactly one roster for its team", func() {
			So(err, ShouldBeNil)
			So(len(teams), ShouldEqual, 2)
			total := 0
			for _, team := range teams {
				for _, a := range team.Athletes {
					So(a.TeamID.V, ShouldEqual, team.TeamID)
				}
				total += len(team.Athletes)
			}
			So(total, ShouldEqual, len(rows))
		})
	})

	Convey("Given a row missing its team identity", t, func() {
		bad := row(1, "A", 2, model.RoleAthlete, "x", "")
		bad.TeamName.Valid = false
		rows := []model.RosterRow{row(1, "A", 1, model.RoleAthlete, "ok", ""), bad}

		_, err := roster.Aggregate(rows)

		Convey("Then aggregation fails with a malformed row error", func() {
			So(errors.Is(err, exporterr.ErrMalformedRow), ShouldBeTrue)
			var mre *exporterr.MalformedRowError
			So(errors.As(err, &mre), ShouldBeTrue)
			So(mre.Index, ShouldEqual, 1)
			So(mre.Field, ShouldEqual, "Team_Name")
		})
	})

	Convey("Given no rows", t, func() {
		teams, err := roster.Aggregate(nil)

		Convey("Then no rosters are produced", func() {
			So(err, ShouldBeNil)
			So(teams, ShouldBeEmpty)
		})
	})
}

func TestVerifyOrder(t *testing.T) {
	Convey("Given rows ordered by team then user", t, func() {
		rows := []model.RosterRow{
			row(1, "A", 1, 1, "", ""),
			row(1, "A", 4, 1, "", ""),
			row(2, "B", 2, 1, "", ""),
		}

		Convey("Then the precondition holds", func() {
			So(roster.VerifyOrder(rows), ShouldBeNil)
		})
	})

	Convey("Given rows where a team goes backwards", t, func() {
		rows := []model.RosterRow{row(2, "B", 1, 1, "", ""), row(1, "A", 2, 1, "", "")}

		Convey("Then the violation is reported", func() {
			So(errors.Is(roster.VerifyOrder(rows), roster.ErrUnordered), ShouldBeTrue)
		})
	})

	Convey("Given rows where users go backwards inside a team", t, func() {
		rows := []model.RosterRow{row(1, "A", 9, 1, "", ""), row(1, "A", 2, 1, "", "")}

		Convey("Then the violation is reported", func() {
			So(errors.Is(roster.VerifyOrder(rows), roster.ErrUnordered), ShouldBeTrue)
		})
	})
}

func TestSortAthletes(t *testing.T) {
	Convey("Given jersey values 7, 12, blank and 3", t, func() {
		in := []model.RosterRow{
			row(1, "X", 1, 1, "Seven", "7"),
			row(1, "X", 2, 1, "Twelve", "12"),
			row(1, "X", 3, 1, "Blank", ""),
			row(1, "X", 4, 1, "Three", "3"),
		}

		out := roster.SortAthletes(in)

		Convey("Then numbers sort ascending and blanks last", func() {
			So(names(out), ShouldResemble, []string{"Three", "Seven", "Twelve", "Blank"})
		})

		Convey("Then the input slice is not reordered", func() {
			So(names(in), ShouldResemble, []string{"Seven", "Twelve", "Blank", "Three"})
		})
	})

	Convey("Given equal jersey numbers and blanks", t, func() {
		in := []model.RosterRow{
			row(1, "X", 3, 1, "Zed", "12"),
			row(1, "X", 4, 1, "Amy", "12"),
			row(1, "X", 2, 1, "Bob", ""),
			row(1, "X", 1, 1, "Cat", "3"),
			row(1, "X", 5, 1, "Al", "n/a"),
		}

		out := roster.SortAthletes(in)

		Convey("Then ties are broken by name byte-wise", func() {
			So(names(out), ShouldResemble, []string{"Cat", "Amy", "Zed", "Al", "Bob"})
		})
	})

	Convey("Given a jersey with a trailing letter", t, func() {
		in := []model.RosterRow{
			row(1, "X", 1, 1, "B", "12B"),
			row(1, "X", 2, 1, "A", " 9 "),
		}

		out := roster.SortAthletes(in)

		Convey("Then it sorts by its leading number and keeps its display value", func() {
			So(names(out), ShouldResemble, []string{"A", "B"})
			So(model.Str(out[1].JerseyNum), ShouldEqual, "12B")
			So(model.Str(out[0].JerseyNum), ShouldEqual, " 9 ")
		})
	})

	Convey("Given byte-wise name comparison", t, func() {
		in := []model.RosterRow{
			row(1, "X", 1, 1, "adam", ""),
			row(1, "X", 2, 1, "Zoe", ""),
		}

		Convey("Then upper case sorts before lower case", func() {
			So(names(roster.SortAthletes(in)), ShouldResemble, []string{"Zoe", "adam"})
		})
	})

	Convey("Given exact ties on both keys", t, func() {
		a := row(1, "X", 1, 1, "Sam", "4")
		b := row(1, "X", 2, 1, "Sam", "4")

		out := roster.SortAthletes([]model.RosterRow{a, b})

		Convey("Then input order is preserved", func() {
			So(out[0].UserID.V, ShouldEqual, int64(1))
			So(out[1].UserID.V, ShouldEqual, int64(2))
		})
	})
}

func TestParseJersey(t *testing.T) {
	Convey("Given jersey display values", t, func() {
		So(roster.ParseJersey("12B"), ShouldResemble, roster.JerseyKey{Number: 12, Numeric: true})
		So(roster.ParseJersey("  07 "), ShouldResemble, roster.JerseyKey{Number: 7, Numeric: true})
		So(roster.ParseJersey(""), ShouldResemble, roster.JerseyKey{})
		So(roster.ParseJersey("B12"), ShouldResemble, roster.JerseyKey{})
		So(roster.ParseJersey("-3"), ShouldResemble, roster.JerseyKey{})
		So(roster.ParseJersey("99999999999999999999999").Numeric, ShouldBeTrue)
	})

	Convey("Given numeric and non-numeric keys", t, func() {
		num := roster.ParseJersey("1000")
		blank := roster.ParseJersey("")

		So(num.Less(blank), ShouldBeTrue)
		So(blank.Less(num), ShouldBeFalse)
		So(blank.Less(blank), ShouldBeFalse)
	})
}
