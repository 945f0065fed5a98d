package documents

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartystreets/goconvey/convey"
)

func TestValidName(t *testing.T) {
	convey.Convey("Given document names", t, func() {
		convey.So(ValidName("Tigers_1.pdf"), convey.ShouldBeNil)
		convey.So(ValidName("Tigers_1.PDF"), convey.ShouldBeNil)
		for _, bad := range []string{"", "notes.txt", ".Tigers_1.pdf.123.tmp", ".hidden.pdf", "../x.pdf", `a\b.pdf`, `a"b.pdf`} {
			convey.So(ValidName(bad), convey.ShouldEqual, ErrInvalidName)
		}
	})
}

func TestHandleDocument(t *testing.T) {
	convey.Convey("Given an output directory", t, func() {
		dir := t.TempDir()
		convey.So(os.WriteFile(filepath.Join(dir, "Tigers_1.pdf"), []byte("%PDF-1.4 tigers"), 0o600), convey.ShouldBeNil)
		convey.So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600), convey.ShouldBeNil)
		convey.So(os.Mkdir(filepath.Join(dir, "dir.pdf"), 0o750), convey.ShouldBeNil)

		r := chi.NewRouter()
		Register(r, NewHandler(dir))
		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		convey.Convey("A rendered document is served", func() {
			w := get("/documents/Tigers_1.pdf")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/pdf")
			convey.So(w.Header().Get("Content-Disposition"), convey.ShouldContainSubstring, "Tigers_1.pdf")
			convey.So(w.Body.String(), convey.ShouldEqual, "%PDF-1.4 tigers")
		})

		convey.Convey("Other files, directories and missing names are 404", func() {
			convey.So(get("/documents/notes.txt").Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(get("/documents/dir.pdf").Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(get("/documents/Bears_2.pdf").Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Convey("A missing directory is 404", func() {
			r := chi.NewRouter()
			Register(r, NewHandler(filepath.Join(dir, "absent")))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/Tigers_1.pdf", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}
