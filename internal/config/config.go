// Package config defines service configuration structures and loading hooks.
//
// Values are layered by Load: defaults from New, then an optional YAML file
// named by ROSTER_CONFIG, then ROSTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// OutputDir is where roster documents are written.
	OutputDir string `koanf:"output_dir"`

	// DatabaseURL is a postgres connection string. When empty it is built
	// from the DB* parts below.
	DatabaseURL string `koanf:"database_url"`
	DBHost      string `koanf:"db_host"`
	DBPort      int    `koanf:"db_port"`
	DBUser      string `koanf:"db_user"`
	DBPassword  string `koanf:"db_password"`
	DBName      string `koanf:"db_name"`

	DBConnectTimeout time.Duration `koanf:"db_connect_timeout"`
	DBQueryTimeout   time.Duration `koanf:"db_query_timeout"`
	DBRetries        int           `koanf:"db_retries"`
	DBBackoffBase    time.Duration `koanf:"db_backoff_base"`

	// HistoryPath is the sqlite file holding run history.
	HistoryPath string `koanf:"history_path"`

	// LicenseKey enables exports. LicenseFile names a file holding the key.
	LicenseKey  string `koanf:"license_key"`
	LicenseFile string `koanf:"license_file"`

	// RenderCommand converts HTML on stdin to PDF on stdout.
	RenderCommand string        `koanf:"render_command"`
	RenderArgs    []string      `koanf:"render_args"`
	RenderTimeout time.Duration `koanf:"render_timeout"`
	PageSize      string        `koanf:"page_size"`

	PartnerLogoPath string `koanf:"partner_logo_path"`
	FooterLogoPath  string `koanf:"footer_logo_path"`
	AssetBaseURL    string `koanf:"asset_base_url"`

	// FirstPageRows and NextPageRows paginate the athlete table.
	FirstPageRows int `koanf:"first_page_rows"`
	NextPageRows  int `koanf:"next_page_rows"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		OutputDir:        "rosters",
		DBPort:           5432,
		DBName:           "sportsthreadprod",
		DBConnectTimeout: 30 * time.Second,
		DBQueryTimeout:   60 * time.Second,
		DBRetries:        3,
		DBBackoffBase:    750 * time.Millisecond,
		HistoryPath:      "roster-history.db",
		RenderCommand:    "wkhtmltopdf",
		RenderTimeout:    30 * time.Second,
		PageSize:         "Letter",
		AssetBaseURL:     "https://files.sportsthread.com",
		FirstPageRows:    7,
		NextPageRows:     7,
	}
}

// DSN returns DatabaseURL, or a postgres URL assembled from the DB* parts.
// It returns "" when neither is configured.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBHost == "" || c.DBUser == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// ExportEnabled reports whether both a license key and database credentials
// are present. The key must already be resolved into LicenseKey.
func (c *Config) ExportEnabled() bool {
	return strings.TrimSpace(c.LicenseKey) != "" && c.DSN() != ""
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}
	for name, d := range map[string]time.Duration{
		"db_connect_timeout": c.DBConnectTimeout,
		"db_query_timeout":   c.DBQueryTimeout,
		"db_backoff_base":    c.DBBackoffBase,
		"render_timeout":     c.RenderTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.DBRetries < 1 {
		errs = append(errs, errors.New("db_retries must be at least 1"))
	}
	if c.FirstPageRows < 1 || c.NextPageRows < 1 {
		errs = append(errs, errors.New("first_page_rows and next_page_rows must be at least 1"))
	}
	if c.RenderCommand == "" {
		errs = append(errs, errors.New("render_command must not be empty"))
	}
	if c.AssetBaseURL != "" {
		if u, err := url.Parse(c.AssetBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("asset_base_url %q must be an absolute URL", c.AssetBaseURL))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
