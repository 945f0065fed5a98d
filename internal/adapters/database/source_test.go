package database_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/roster/internal/adapters/database"
	"github.com/okian/roster/internal/domain/exporterr"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeRows serves fixed values through the pgx.Rows interface.
type fakeRows struct {
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d values, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case sql.Scanner:
			if err := d.Scan(row[i]); err != nil {
				return err
			}
		case **string:
			if row[i] == nil {
				*d = nil
				continue
			}
			s := row[i].(string)
			*d = &s
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

// fakeDB answers queries from a script of results, one per call.
type fakeDB struct {
	mu      sync.Mutex
	results []func() (pgx.Rows, error)
	pings   []error
	calls   int
	args    [][]any
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, args)
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		return nil, errors.New("unexpected query")
	}
	return f.results[i]()
}

func (f *fakeDB) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.pings) {
		return nil
	}
	return f.pings[i]
}

func rowsOf(data ...[]any) func() (pgx.Rows, error) {
	return func() (pgx.Rows, error) { return &fakeRows{data: data}, nil }
}

func fails(err error) func() (pgx.Rows, error) {
	return func() (pgx.Rows, error) { return nil, err }
}

func rosterRow(teamID, userID, usertype int64, name any, jersey any) []any {
	return []any{
		int64(5), "Summer Classic", "Tigers 14U", teamID, nil,
		userID, name, usertype, nil, nil, nil, jersey, "2010-04-02",
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func TestFetchRoster(t *testing.T) {
	Convey("Given a roster source over a scripted database", t, func() {
		sleeps := &sleepRecorder{}
		db := &fakeDB{}
		src := database.NewSource(db, database.WithSleep(sleeps.sleep))
		ctx := context.Background()

		Convey("When the query returns rows", func() {
			db.results = append(db.results, rowsOf(
				rosterRow(10, 1, 1, "Amy Adams", "7"),
				rosterRow(10, 2, 2, nil, nil),
			))
			team := int64(10)
			rows, err := src.FetchRoster(ctx, 5, &team)

			Convey("Then every column is scanned with absent values kept absent", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].TeamID.V, ShouldEqual, int64(10))
				So(rows[0].TeamName.V, ShouldEqual, "Tigers 14U")
				So(rows[0].Name.V, ShouldEqual, "Amy Adams")
				So(rows[0].JerseyNum.V, ShouldEqual, "7")
				So(rows[0].Division.Valid, ShouldBeFalse)
				So(rows[1].IsCoach(), ShouldBeTrue)
				So(rows[1].Name.Valid, ShouldBeFalse)
				So(rows[1].JerseyNum.Valid, ShouldBeFalse)
			})

			Convey("Then the event and team filters are passed as arguments", func() {
				So(db.args[0][0], ShouldEqual, int64(5))
				So(*(db.args[0][1].(*int64)), ShouldEqual, int64(10))
			})
		})

		Convey("When transient failures precede a success", func() {
			db.results = append(db.results,
				fails(&pgconn.PgError{Code: "08006"}),
				fails(io.ErrUnexpectedEOF),
				rowsOf(rosterRow(10, 1, 1, "Amy", "1")),
			)
			rows, err := src.FetchRoster(ctx, 5, nil)

			Convey("Then the query is retried with exponential backoff", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(db.calls, ShouldEqual, 3)
				So(sleeps.delays, ShouldResemble, []time.Duration{750 * time.Millisecond, 1500 * time.Millisecond})
			})
		})

		Convey("When every attempt fails transiently", func() {
			for i := 0; i < 3; i++ {
				db.results = append(db.results, fails(&pgconn.PgError{Code: "57P01"}))
			}
			_, err := src.FetchRoster(ctx, 5, nil)

			Convey("Then the failure surfaces as a database error after three attempts", func() {
				So(errors.Is(err, exporterr.ErrTransientDB), ShouldBeTrue)
				So(exporterr.IsBatchFatal(err), ShouldBeTrue)
				So(db.calls, ShouldEqual, 3)
				So(sleeps.delays, ShouldHaveLength, 2)
			})
		})

		Convey("When the failure is not transient", func() {
			db.results = append(db.results, fails(&pgconn.PgError{Code: "42P01"}))
			_, err := src.FetchRoster(ctx, 5, nil)

			Convey("Then it is not retried", func() {
				So(errors.Is(err, exporterr.ErrTransientDB), ShouldBeTrue)
				So(db.calls, ShouldEqual, 1)
				So(sleeps.delays, ShouldBeEmpty)
			})
		})

		Convey("When iteration fails mid-stream", func() {
			db.results = append(db.results,
				func() (pgx.Rows, error) {
					return &fakeRows{data: [][]any{rosterRow(10, 1, 1, "Amy", "1")}, err: io.EOF}, nil
				},
				rowsOf(rosterRow(10, 1, 1, "Amy", "1")),
			)
			rows, err := src.FetchRoster(ctx, 5, nil)

			Convey("Then the whole query is retried", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(db.calls, ShouldEqual, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			db.results = append(db.results, fails(context.Canceled))
			_, err := src.FetchRoster(cctx, 5, nil)

			Convey("Then no retry is attempted", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(db.calls, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a source without a pool", t, func() {
		src := database.NewSource(nil)
		_, err := src.FetchRoster(context.Background(), 1, nil)
		So(errors.Is(err, database.ErrNoPool), ShouldBeTrue)
	})
}

func TestFetchPartnerLogo(t *testing.T) {
	Convey("Given a source with a custom asset host", t, func() {
		db := &fakeDB{}
		src := database.NewSource(db, database.WithAssetBaseURL("https://cdn.test"))
		ctx := context.Background()

		Convey("When the partner logo is a rooted path", func() {
			db.results = append(db.results, rowsOf([]any{"/logos/acme.png"}))
			logo, err := src.FetchPartnerLogo(ctx, 5)

			Convey("Then it resolves against the asset host", func() {
				So(err, ShouldBeNil)
				So(logo, ShouldEqual, "https://cdn.test/logos/acme.png")
			})
		})

		Convey("When the event has no partner", func() {
			db.results = append(db.results, rowsOf())
			logo, err := src.FetchPartnerLogo(ctx, 5)

			Convey("Then the logo is empty", func() {
				So(err, ShouldBeNil)
				So(logo, ShouldEqual, "")
			})
		})

		Convey("When the partner has no logo", func() {
			db.results = append(db.results, rowsOf([]any{nil}))
			logo, err := src.FetchPartnerLogo(ctx, 5)

			Convey("Then the logo is empty", func() {
				So(err, ShouldBeNil)
				So(logo, ShouldEqual, "")
			})
		})
	})
}

func TestPing(t *testing.T) {
	Convey("Given a database that refuses the first connection", t, func() {
		db := &fakeDB{pings: []error{&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, nil}}
		src := database.NewSource(db, database.WithSleep(func(context.Context, time.Duration) error { return nil }))

		Convey("Then ping succeeds on the second attempt", func() {
			So(src.Ping(context.Background()), ShouldBeNil)
			So(db.calls, ShouldEqual, 2)
		})
	})
}

func TestIsTransient(t *testing.T) {
	Convey("Given database errors", t, func() {
		So(database.IsTransient(nil), ShouldBeFalse)
		So(database.IsTransient(context.Canceled), ShouldBeFalse)
		So(database.IsTransient(context.DeadlineExceeded), ShouldBeTrue)
		So(database.IsTransient(&pgconn.PgError{Code: "08001"}), ShouldBeTrue)
		So(database.IsTransient(&pgconn.PgError{Code: "40001"}), ShouldBeTrue)
		So(database.IsTransient(&pgconn.PgError{Code: "40P01"}), ShouldBeTrue)
		So(database.IsTransient(&pgconn.PgError{Code: "53300"}), ShouldBeTrue)
		So(database.IsTransient(&pgconn.PgError{Code: "23505"}), ShouldBeFalse)
		So(database.IsTransient(fmt.Errorf("read: %w", io.EOF)), ShouldBeTrue)
		So(database.IsTransient(errors.New("syntax")), ShouldBeFalse)
	})
}
