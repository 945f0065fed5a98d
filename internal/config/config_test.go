package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/roster/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should carry the export defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBConnectTimeout, convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.DBQueryTimeout, convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.DBRetries, convey.ShouldEqual, 3)
			convey.So(cfg.DBBackoffBase, convey.ShouldEqual, 750*time.Millisecond)
			convey.So(cfg.FirstPageRows, convey.ShouldEqual, 7)
			convey.So(cfg.NextPageRows, convey.ShouldEqual, 7)
			convey.So(cfg.AssetBaseURL, convey.ShouldEqual, "https://files.sportsthread.com")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then export is disabled until a license and database are set", func() {
			convey.So(cfg.ExportEnabled(), convey.ShouldBeFalse)
			cfg.LicenseKey = "KEY"
			convey.So(cfg.ExportEnabled(), convey.ShouldBeFalse)
			cfg.DatabaseURL = "postgres://u:p@localhost/db"
			convey.So(cfg.ExportEnabled(), convey.ShouldBeTrue)
			cfg.LicenseKey = "   "
			convey.So(cfg.ExportEnabled(), convey.ShouldBeFalse)
		})
	})
}

func TestConfig_DSN(t *testing.T) {
	convey.Convey("Given database settings", t, func() {
		cfg := config.New()

		convey.Convey("When only parts are set", func() {
			cfg.DBHost = "db.internal"
			cfg.DBUser = "export"
			cfg.DBPassword = "p@ss word"

			convey.Convey("Then a postgres URL is assembled with escaping", func() {
				dsn := cfg.DSN()
				convey.So(dsn, convey.ShouldStartWith, "postgres://export:")
				convey.So(dsn, convey.ShouldContainSubstring, "@db.internal:5432/sportsthreadprod")
				convey.So(dsn, convey.ShouldNotContainSubstring, "p@ss word")
			})
		})

		convey.Convey("When a URL is set", func() {
			cfg.DatabaseURL = "postgres://a@b/c"
			cfg.DBHost = "ignored"
			cfg.DBUser = "ignored"

			convey.Convey("Then it wins", func() {
				convey.So(cfg.DSN(), convey.ShouldEqual, "postgres://a@b/c")
			})
		})

		convey.Convey("When nothing is set", func() {
			convey.Convey("Then the DSN is empty", func() {
				convey.So(cfg.DSN(), convey.ShouldEqual, "")
			})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with several invalid fields", t, func() {
		cfg := config.New()
		cfg.Addr = ""
		cfg.LogFormat = "xml"
		cfg.DBRetries = 0
		cfg.RenderTimeout = 0
		cfg.AssetBaseURL = "files.example.com"

		err := cfg.Validate()

		convey.Convey("Then every problem is reported in one error", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			msg := err.Error()
			for _, want := range []string{"addr", "log_format", "db_retries", "render_timeout", "asset_base_url"} {
				convey.So(strings.Contains(msg, want), convey.ShouldBeTrue)
			}
		})
	})
}
