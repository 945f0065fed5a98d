package roster

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/roster/internal/domain/model"
)

// ErrUnordered marks input that is not sorted by (Team_ID, User_ID).
var ErrUnordered = errors.New("roster rows not ordered by team and user")

// VerifyOrder checks the (Team_ID, User_ID) ascending precondition and returns
// the first offending position wrapped in ErrUnordered. Rows without a
// User_ID compare as lowest within their team.
func VerifyOrder(rows []model.RosterRow) error {
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if !prev.TeamID.Valid || !cur.TeamID.Valid {
			continue
		}
		if cur.TeamID.V < prev.TeamID.V {
			return fmt.Errorf("%w: row %d team %d after team %d", ErrUnordered, i, cur.TeamID.V, prev.TeamID.V)
		}
		if cur.TeamID.V == prev.TeamID.V && userKey(cur) < userKey(prev) {
			return fmt.Errorf("%w: row %d user %d after user %d", ErrUnordered, i, userKey(cur), userKey(prev))
		}
	}
	return nil
}

func userKey(r model.RosterRow) int64 {
	if !r.UserID.Valid {
		return math.MinInt64
	}
	return r.UserID.V
}
