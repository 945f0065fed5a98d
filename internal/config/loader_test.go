package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/roster/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"ROSTER_CONFIG",
	"ROSTER_ADDR",
	"ROSTER_OUTPUT_DIR",
	"ROSTER_DATABASE_URL",
	"ROSTER_DB_RETRIES",
	"ROSTER_DB_QUERY_TIMEOUT",
	"ROSTER_RENDER_ARGS",
	"ROSTER_LOG_FORMAT",
	"ROSTER_LICENSE_KEY",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DBRetries, convey.ShouldEqual, 3)
				convey.So(cfg.RenderArgs, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROSTER_ADDR", ":8080")
			_ = os.Setenv("ROSTER_DATABASE_URL", "postgres://u@h/db")
			_ = os.Setenv("ROSTER_DB_QUERY_TIMEOUT", "90s")
			_ = os.Setenv("ROSTER_RENDER_ARGS", "--quiet,--page-size,A4")
			_ = os.Setenv("ROSTER_LICENSE_KEY", "abc")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://u@h/db")
				convey.So(cfg.DBQueryTimeout, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.RenderArgs, convey.ShouldResemble, []string{"--quiet", "--page-size", "A4"})
				convey.So(cfg.ExportEnabled(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := createTempConfigFile(t, `
# comments are fine
addr: ":9090"
output_dir: /tmp/rosters
db_retries: 5
db_backoff_base: 250ms
first_page_rows: 6
render_args: ["--quiet", "-", "-"]
`)
			_ = os.Setenv("ROSTER_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/rosters")
				convey.So(cfg.DBRetries, convey.ShouldEqual, 5)
				convey.So(cfg.DBBackoffBase, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.FirstPageRows, convey.ShouldEqual, 6)
				convey.So(cfg.NextPageRows, convey.ShouldEqual, 7)
				convey.So(cfg.RenderArgs, convey.ShouldResemble, []string{"--quiet", "-", "-"})
			})

			convey.Convey("And env still wins over the file", func() {
				_ = os.Setenv("ROSTER_DB_RETRIES", "2")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DBRetries, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("ROSTER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			cfg, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("ROSTER_DB_RETRIES", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loaded values fail validation", func() {
			_ = os.Setenv("ROSTER_LOG_FORMAT", "xml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation errors surface", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	convey.Convey("Given an explicit path", t, func() {
		clearConfigEnvVars()
		path := createTempConfigFile(t, "addr: \":7000\"\n")

		cfg, err := config.LoadFile(path)

		convey.Convey("Then the file layer is applied", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
		})
	})
}
