package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/okian/roster/internal/domain/exporterr"
)

// Engine defaults.
const (
	DefaultCommand  = "wkhtmltopdf"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = "Letter"

	stderrLimit = 4 << 10
)

// Engine converts an HTML stream into a PDF stream.
type Engine interface {
	Convert(ctx context.Context, html io.Reader, pdf io.Writer) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, html io.Reader, pdf io.Writer) error

// Convert calls f.
func (f EngineFunc) Convert(ctx context.Context, html io.Reader, pdf io.Writer) error {
	return f(ctx, html, pdf)
}

// CommandEngine pipes HTML through an external converter that reads stdin and
// writes the PDF to stdout.
type CommandEngine struct {
	command  string
	args     []string
	timeout  time.Duration
	pageSize string
}

// NewCommandEngine creates an engine running command. Without WithArgs it runs
// wkhtmltopdf-style arguments: --quiet --page-size <size> - -.
func NewCommandEngine(command string, opts ...EngineOption) *CommandEngine {
	e := &CommandEngine{
		command:  command,
		timeout:  DefaultTimeout,
		pageSize: DefaultPageSize,
	}
	if e.command == "" {
		e.command = DefaultCommand
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Args returns the argument list the engine passes to its command.
func (e *CommandEngine) Args() []string {
	if e.args != nil {
		return e.args
	}
	return []string{"--quiet", "--encoding", "utf-8", "--page-size", e.pageSize, "-", "-"}
}

// Convert runs the command once. A timeout or non-zero exit is a render
// engine failure; the tail of stderr is kept in the error for support.
func (e *CommandEngine) Convert(ctx context.Context, html io.Reader, pdf io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stderr tailBuffer
	cmd := exec.CommandContext(ctx, e.command, e.Args()...)
	cmd.Stdin = html
	cmd.Stdout = pdf
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %w", exporterr.ErrDiskFull, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s timed out after %s", exporterr.ErrRenderEngine, e.command, e.timeout)
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%w: %s: %w: %s", exporterr.ErrRenderEngine, e.command, err, msg)
	}
	return fmt.Errorf("%w: %s: %w", exporterr.ErrRenderEngine, e.command, err)
}

// tailBuffer keeps the last stderrLimit bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - stderrLimit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
