package exporterr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/roster/internal/domain/exporterr"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMessages(t *testing.T) {
	Convey("Given wrapped pipeline errors", t, func() {
		cases := []struct {
			err  error
			msg  string
			kind string
		}{
			{fmt.Errorf("team 1: %w", exporterr.ErrEmptyRoster), exporterr.MsgEmptyRoster, "empty_roster"},
			{fmt.Errorf("query: %w", exporterr.ErrTransientDB), exporterr.MsgDBLost, "database"},
			{fmt.Errorf("logo: %w", exporterr.ErrMissingAsset), exporterr.MsgMissingLogo, "missing_asset"},
			{fmt.Errorf("write: %w", exporterr.ErrDiskFull), exporterr.MsgDiskFull, "disk_full"},
			{fmt.Errorf("exit 1: %w", exporterr.ErrRenderEngine), exporterr.MsgEngineFailed, "render_engine"},
			{errors.New("boom"), exporterr.MsgEngineFailed, "render_engine"},
		}

		Convey("Then each maps to its operator message and kind", func() {
			for _, c := range cases {
				So(exporterr.Message(c.err), ShouldEqual, c.msg)
				So(exporterr.Kind(c.err), ShouldEqual, c.kind)
			}
		})

		Convey("Then nil has no message", func() {
			So(exporterr.Message(nil), ShouldEqual, "")
		})
	})
}

func TestMalformedRowError(t *testing.T) {
	Convey("Given a malformed row error", t, func() {
		err := fmt.Errorf("aggregate: %w", &exporterr.MalformedRowError{Index: 4, Field: "Team_ID"})

		Convey("Then it unwraps to the sentinel and stays inspectable", func() {
			So(errors.Is(err, exporterr.ErrMalformedRow), ShouldBeTrue)
			var mre *exporterr.MalformedRowError
			So(errors.As(err, &mre), ShouldBeTrue)
			So(mre.Index, ShouldEqual, 4)
			So(mre.Field, ShouldEqual, "Team_ID")
			So(err.Error(), ShouldContainSubstring, "missing Team_ID")
		})
	})
}

func TestSeverity(t *testing.T) {
	Convey("Given the propagation policy", t, func() {
		So(exporterr.IsBatchFatal(exporterr.ErrDiskFull), ShouldBeTrue)
		So(exporterr.IsBatchFatal(exporterr.ErrTransientDB), ShouldBeTrue)
		So(exporterr.IsBatchFatal(&exporterr.MalformedRowError{}), ShouldBeTrue)
		So(exporterr.IsBatchFatal(exporterr.ErrEmptyRoster), ShouldBeFalse)
		So(exporterr.IsBatchFatal(exporterr.ErrRenderEngine), ShouldBeFalse)

		So(exporterr.SeverityOf(exporterr.ErrMissingAsset), ShouldEqual, exporterr.SeverityWarning)
		So(exporterr.SeverityOf(exporterr.ErrEmptyRoster), ShouldEqual, exporterr.SeverityJob)
		So(exporterr.SeverityOf(exporterr.ErrDiskFull), ShouldEqual, exporterr.SeverityBatch)
		So(exporterr.SeverityOf(nil), ShouldEqual, exporterr.Severity(""))
	})
}
