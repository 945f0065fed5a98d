// Package documents serves rendered roster documents from the output
// directory.
package documents

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrInvalidName is returned for names that are not plain document names.
var ErrInvalidName = errors.New("invalid document name")

// Handler serves *.pdf files from one directory. In-progress temporary
// files and anything outside the directory are never served.
type Handler struct {
	dir string
}

// NewHandler returns a Handler for dir.
func NewHandler(dir string) *Handler {
	return &Handler{dir: dir}
}

// Register attaches GET /documents/{name} to r.
func Register(r chi.Router, h *Handler) {
	r.Get("/documents/{name}", h.HandleDocument)
}

// HandleDocument handles GET /documents/{name}.
func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := ValidName(name); err != nil {
		http.NotFound(w, r)
		return
	}
	root, err := os.OpenRoot(h.dir)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// ValidName accepts bare, visible *.pdf file names.
func ValidName(name string) error {
	switch {
	case name == "", name != filepath.Base(name), strings.ContainsAny(name, `/\"`):
		return ErrInvalidName
	case strings.HasPrefix(name, "."):
		return ErrInvalidName
	case !strings.EqualFold(filepath.Ext(name), ".pdf"):
		return ErrInvalidName
	}
	return nil
}
