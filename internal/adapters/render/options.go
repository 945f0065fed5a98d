package render

import (
	"time"

	"github.com/okian/roster/pkg/logger"
)

// EngineOption configures a CommandEngine.
type EngineOption func(*CommandEngine)

// WithArgs replaces the default converter arguments.
func WithArgs(args ...string) EngineOption {
	return func(e *CommandEngine) {
		e.args = append([]string{}, args...)
	}
}

// WithTimeout bounds one conversion.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *CommandEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPageSize sets the paper size passed to the default arguments.
func WithPageSize(size string) EngineOption {
	return func(e *CommandEngine) {
		if size != "" {
			e.pageSize = size
		}
	}
}

// Option configures a FileRenderer.
type Option func(*FileRenderer)

// WithPageRows sets how many athletes fit on the first and following pages.
func WithPageRows(first, next int) Option {
	return func(r *FileRenderer) {
		r.firstPageRows = first
		r.nextPageRows = next
	}
}

// WithAssetBaseURL sets the host relative avatar paths resolve against.
func WithAssetBaseURL(base string) Option {
	return func(r *FileRenderer) {
		r.assetBase = base
	}
}

// WithPartnerLogoPath sets a local partner logo that takes precedence over
// the event's configured logo.
func WithPartnerLogoPath(path string) Option {
	return func(r *FileRenderer) {
		r.partnerLogoPath = path
	}
}

// WithFooterLogoPath sets the image shown under every page.
func WithFooterLogoPath(path string) Option {
	return func(r *FileRenderer) {
		r.footerLogoPath = path
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *FileRenderer) {
		if l != nil {
			r.logger = l
		}
	}
}
