// Package exporterr defines the error kinds of the roster export pipeline and
// the wording shown to operators for each of them.
package exporterr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Components wrap these so callers can use errors.Is.
var (
	ErrMalformedRow        = errors.New("malformed roster row")
	ErrEmptyRoster         = errors.New("empty roster")
	ErrTransientDB         = errors.New("database unavailable")
	ErrMissingAsset        = errors.New("missing optional asset")
	ErrRenderEngine        = errors.New("render engine failure")
	ErrDiskFull            = errors.New("disk full")
	ErrInvalidTeamIdentity = errors.New("invalid team identity")
	ErrCancelled           = errors.New("batch cancelled")
)

// User-facing messages.
const (
	MsgEmptyRoster  = "This team has no athletes yet. Nothing to export."
	MsgDBLost       = "We lost connection to the database. Your finished PDFs are safe."
	MsgMissingLogo  = "Partner logo unavailable; continuing with default branding."
	MsgEngineFailed = "PDF engine failed on this team. Saved log for support."
	MsgDiskFull     = "Not enough disk space to save the PDF. Free up space and retry."
	MsgMalformedRow = "The roster data is incomplete (missing team name or id). Export stopped."
	MsgInvalidTeam  = "This team has no usable name or id for its file."
)

// MalformedRowError reports a row that violates the always-present column contract.
type MalformedRowError struct {
	Index int    // position of the row in the input sequence
	Field string // missing column name
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed roster row %d: missing %s", e.Index, e.Field)
}

// Unwrap exposes ErrMalformedRow.
func (e *MalformedRowError) Unwrap() error { return ErrMalformedRow }

// Severity classifies how far an error reaches.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityJob     Severity = "job"
	SeverityBatch   Severity = "batch"
)

// SeverityOf returns the propagation class of err.
func SeverityOf(err error) Severity {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingAsset):
		return SeverityWarning
	case IsBatchFatal(err):
		return SeverityBatch
	default:
		return SeverityJob
	}
}

// IsBatchFatal reports whether err must stop new jobs from starting.
func IsBatchFatal(err error) bool {
	return errors.Is(err, ErrMalformedRow) ||
		errors.Is(err, ErrTransientDB) ||
		errors.Is(err, ErrDiskFull)
}

// Kind returns a short stable label for err, used in logs, metrics and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRow):
		return "malformed_row"
	case errors.Is(err, ErrEmptyRoster):
		return "empty_roster"
	case errors.Is(err, ErrTransientDB):
		return "database"
	case errors.Is(err, ErrMissingAsset):
		return "missing_asset"
	case errors.Is(err, ErrDiskFull):
		return "disk_full"
	case errors.Is(err, ErrInvalidTeamIdentity):
		return "invalid_team_identity"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "render_engine"
	}
}

// Message maps err to the text shown to the operator. Unclassified failures
// are reported as engine failures, since rendering is the only open-ended step.
func Message(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "malformed_row":
		return MsgMalformedRow
	case "empty_roster":
		return MsgEmptyRoster
	case "database":
		return MsgDBLost
	case "missing_asset":
		return MsgMissingLogo
	case "disk_full":
		return MsgDiskFull
	case "invalid_team_identity":
		return MsgInvalidTeam
	case "cancelled":
		return "Export cancelled."
	default:
		return MsgEngineFailed
	}
}
