// Package cli runs one export batch from the command line and reports
// progress as plain text.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	service "github.com/okian/roster/internal/app"
	"github.com/okian/roster/internal/domain/batch"
	"github.com/okian/roster/internal/domain/exporterr"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// Config holds the command line options.
type Config struct {
	EventID    int64
	TeamID     int64 // 0 exports every team
	OutputDir  string
	ConfigPath string
	Verbose    bool
}

// Request converts the options into a service request.
func (c Config) Request() service.Request {
	req := service.Request{EventID: c.EventID}
	if c.TeamID != 0 {
		id := c.TeamID
		req.TeamID = &id
	}
	return req
}

// Exporter runs one batch. *service.Service implements it.
type Exporter interface {
	Export(ctx context.Context, req service.Request, sinks ...batch.Sink) (batch.Summary, error)
}

// Progress writes one line per terminal job state, and per start when
// verbose.
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer, verbose bool) *Progress {
	return &Progress{w: w, verbose: verbose}
}

// Emit implements batch.Sink.
func (p *Progress) Emit(_ context.Context, e batch.Event) {
	var line string
	switch e.To {
	case batch.Rendering:
		if !p.verbose {
			return
		}
		line = fmt.Sprintf("  ..  %s: rendering %s", e.TeamName, e.Target)
	case batch.Done:
		line = fmt.Sprintf("  ok  %s: %s", e.TeamName, e.Target)
	case batch.Failed:
		line = fmt.Sprintf("  !!  %s: %s", e.TeamName, exporterr.Message(e.Err))
	default:
		return
	}
	for _, w := range e.Warnings {
		line += fmt.Sprintf(" (warning: %s)", exporterr.Message(w))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// Run exports one batch, printing progress and a summary to w. The returned
// code is ExitFailed when the batch could not start or was halted.
func Run(ctx context.Context, exp Exporter, cfg Config, w io.Writer) (batch.Summary, int) {
	req := cfg.Request()
	if err := req.Validate(); err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return batch.Summary{}, ExitUsage
	}
	fmt.Fprintf(w, "exporting event %d", cfg.EventID)
	if req.TeamID != nil {
		fmt.Fprintf(w, " team %d", *req.TeamID)
	}
	fmt.Fprintf(w, " to %s\n", cfg.OutputDir)

	sum, err := exp.Export(ctx, req, NewProgress(w, cfg.Verbose))
	if err != nil && !sum.Halted {
		fmt.Fprintf(w, "error: %s\n", describe(err))
		return sum, ExitFailed
	}
	PrintSummary(w, sum)
	if sum.Halted {
		return sum, ExitFailed
	}
	return sum, ExitOK
}

// PrintSummary writes the batch totals.
func PrintSummary(w io.Writer, sum batch.Summary) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d done, %d failed, %d not run",
		sum.Outcome(), sum.Done, sum.Total, sum.Failed, sum.NotRun)
	if !sum.FinishedAt.IsZero() && !sum.StartedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	}
	if sum.HaltReason != nil {
		fmt.Fprintf(&b, "\nhalted: %s", exporterr.Message(sum.HaltReason))
	}
	fmt.Fprintln(w, b.String())
}

func describe(err error) string {
	switch {
	case errors.Is(err, service.ErrExportDisabled):
		return "exporting is disabled: a license key and database credentials are required"
	case exporterr.Kind(err) == "render_engine":
		// unclassified errors print as-is
		return err.Error()
	default:
		return exporterr.Message(err)
	}
}

// ShowHelp writes usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Roster Export
=============

Renders one roster document per team of an event.

Usage:
  roster-export -event ID [options]

Options:
  -event int
        Event to export (required)
  -team int
        Export only this team
  -out string
        Output directory (overrides output_dir)
  -config string
        YAML config file (default $ROSTER_CONFIG)
  -verbose
        Print a line when each team starts rendering
  -help
        Show this help message

Interrupting with Ctrl-C lets documents already rendering finish and skips
the rest.
`)
}
