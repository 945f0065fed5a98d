// Package render writes roster documents to the output directory. HTML is
// produced from an embedded template and streamed through an Engine into a
// temporary file that is renamed into place only after a complete write.
package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"syscall"

	"github.com/okian/roster/internal/domain/exporterr"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// Result describes one written document.
type Result struct {
	Path     string
	Bytes    int64
	Warnings []error
}

// FileRenderer renders documents into one output directory.
type FileRenderer struct {
	engine          Engine
	tmpl            *Template
	outputDir       string
	firstPageRows   int
	nextPageRows    int
	assetBase       string
	partnerLogoPath string
	footerLogoPath  string
	logger          logger.Logger
}

// NewFileRenderer creates a renderer writing into outputDir.
func NewFileRenderer(engine Engine, outputDir string, opts ...Option) (*FileRenderer, error) {
	r := &FileRenderer{
		engine:        engine,
		outputDir:     outputDir,
		firstPageRows: DefaultFirstPageRows,
		nextPageRows:  DefaultNextPageRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("render")
	}
	tmpl, err := NewTemplate(r.firstPageRows, r.nextPageRows, r.assetBase)
	if err != nil {
		return nil, err
	}
	r.tmpl = tmpl
	return r, nil
}

// OutputDir returns the directory documents are written to.
func (r *FileRenderer) OutputDir() string { return r.outputDir }

// Render writes doc to target inside the output directory. On any error no
// file named target is created and the temporary file is removed. A missing
// logo is reported in Result.Warnings and the document is rendered without it.
func (r *FileRenderer) Render(ctx context.Context, doc Document, target string) (Result, error) {
	if target == "" || filepath.Base(target) != target || target == "." || target == ".." {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPath, target)
	}
	if doc.Roster.Empty() {
		return Result{}, exporterr.ErrEmptyRoster
	}
	warnings := r.resolveAssets(ctx, &doc)

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return Result{Warnings: warnings}, classifyWrite(err)
	}
	tmp, err := os.CreateTemp(r.outputDir, "."+target+".*.tmp")
	if err != nil {
		return Result{Warnings: warnings}, classifyWrite(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	out := &countingWriter{w: tmp}
	if err := r.stream(ctx, doc, out); err != nil {
		return Result{Warnings: warnings}, err
	}
	if err := tmp.Sync(); err != nil {
		return Result{Warnings: warnings}, classifyWrite(err)
	}
	if err := tmp.Close(); err != nil {
		return Result{Warnings: warnings}, classifyWrite(err)
	}
	path := filepath.Join(r.outputDir, target)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Result{Warnings: warnings}, classifyWrite(err)
	}
	committed = true

	metrics.RecordDocumentBytes(out.n)
	r.logger.Debug(ctx, "document written",
		logger.String("path", path),
		logger.Int64("bytes", out.n),
	)
	return Result{Path: path, Bytes: out.n, Warnings: warnings}, nil
}

// stream runs the template and the engine concurrently over a pipe so the
// document is never held in memory whole.
func (r *FileRenderer) stream(ctx context.Context, doc Document, out *countingWriter) error {
	pr, pw := io.Pipe()
	tmplErr := make(chan error, 1)
	go func() {
		err := r.tmpl.Execute(pw, doc)
		_ = pw.CloseWithError(err)
		tmplErr <- err
	}()

	convErr := r.engine.Convert(ctx, pr, out)
	// Unblock the template if the engine stopped reading early.
	_ = pr.Close()
	terr := <-tmplErr

	switch {
	case isDiskFull(out.err) || isDiskFull(convErr):
		return fmt.Errorf("%w: %w", exporterr.ErrDiskFull, errors.Join(out.err, convErr))
	case convErr != nil:
		if errors.Is(convErr, exporterr.ErrRenderEngine) || errors.Is(convErr, exporterr.ErrDiskFull) {
			return convErr
		}
		return fmt.Errorf("%w: %w", exporterr.ErrRenderEngine, convErr)
	case out.err != nil:
		return classifyWrite(out.err)
	case terr != nil && !errors.Is(terr, io.ErrClosedPipe):
		return fmt.Errorf("%w: template: %w", exporterr.ErrRenderEngine, terr)
	case out.n == 0:
		return fmt.Errorf("%w: %w", exporterr.ErrRenderEngine, ErrEmptyOutput)
	}
	return nil
}

// resolveAssets inlines local logo files into doc. A configured file that
// cannot be read produces an ErrMissingAsset warning.
func (r *FileRenderer) resolveAssets(ctx context.Context, doc *Document) []error {
	var warnings []error
	if r.partnerLogoPath != "" {
		uri, err := dataURI(r.partnerLogoPath)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: partner logo: %w", exporterr.ErrMissingAsset, err))
		} else {
			doc.PartnerLogo = uri
		}
	}
	if doc.FooterLogo == "" && r.footerLogoPath != "" {
		uri, err := dataURI(r.footerLogoPath)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: footer logo: %w", exporterr.ErrMissingAsset, err))
		} else {
			doc.FooterLogo = uri
		}
	}
	for _, w := range warnings {
		r.logger.Warn(ctx, "asset unavailable", logger.Int64("team_id", doc.Roster.TeamID), logger.Error(w))
	}
	return warnings
}

func dataURI(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%s: empty file", path)
	}
	typ := mime.TypeByExtension(filepath.Ext(path))
	if typ == "" {
		typ = http.DetectContentType(b)
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func isDiskFull(err error) bool {
	return err != nil && errors.Is(err, syscall.ENOSPC)
}

func classifyWrite(err error) error {
	if isDiskFull(err) {
		return fmt.Errorf("%w: %w", exporterr.ErrDiskFull, err)
	}
	return fmt.Errorf("write document: %w", err)
}

// countingWriter remembers the byte count and the first write error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
