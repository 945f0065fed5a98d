package license_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/roster/internal/license"
	. "github.com/smartystreets/goconvey/convey"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFind(t *testing.T) {
	Convey("Given isolated lookup roots", t, func() {
		root := t.TempDir()
		f := license.Finder{
			WorkDir: filepath.Join(root, "work"),
			Home:    filepath.Join(root, "home"),
			AppData: filepath.Join(root, "appdata"),
		}

		Convey("When nothing is present", func() {
			_, _, err := f.Find()

			Convey("Then the key is not found", func() {
				So(errors.Is(err, license.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When every source holds a key", func() {
			keyFile := filepath.Join(root, "explicit.key")
			write(t, keyFile, "from-file\n")
			write(t, filepath.Join(f.WorkDir, ".license"), "from-local")
			write(t, filepath.Join(f.Home, ".config", "sportsthread", "license"), "from-home")
			f.File = keyFile
			f.Key = "  from-config  "

			Convey("Then the configured key wins", func() {
				key, src, err := f.Find()
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "from-config")
				So(src, ShouldEqual, license.SourceConfig)
			})

			Convey("Then the key file comes next", func() {
				f.Key = ""
				key, src, _ := f.Find()
				So(key, ShouldEqual, "from-file")
				So(src, ShouldEqual, license.SourceFile)
			})

			Convey("Then the working directory comes before platform paths", func() {
				f.Key, f.File = "", ""
				key, src, _ := f.Find()
				So(key, ShouldEqual, "from-local")
				So(src, ShouldEqual, license.SourceLocal)
			})
		})

		Convey("When only platform files exist", func() {
			write(t, filepath.Join(f.Home, "Library", "Application Support", "SportsThread", "license"), "mac")
			write(t, filepath.Join(f.AppData, "SportsThread", "license"), "win")

			Convey("Then they are read in platform order", func() {
				key, src, err := f.Find()
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "mac")
				So(src, ShouldEqual, license.SourcePlatform)
			})
		})

		Convey("When a key file is blank or a directory", func() {
			write(t, filepath.Join(f.WorkDir, ".license"), "   \n")
			So(os.MkdirAll(filepath.Join(f.AppData, "SportsThread", "license"), 0o755), ShouldBeNil)

			Convey("Then it is skipped", func() {
				_, _, err := f.Find()
				So(errors.Is(err, license.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Then Paths lists the consulted locations in order", func() {
			f.File = "/etc/roster/key"
			paths := f.Paths()
			So(paths[0], ShouldEqual, "/etc/roster/key")
			So(paths[1], ShouldEqual, filepath.Join(f.WorkDir, ".license"))
			So(paths[len(paths)-1], ShouldEqual, filepath.Join(f.AppData, "SportsThread", "license"))
		})
	})
}
