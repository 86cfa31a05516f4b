package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/notepress/notepress/pkg/interfaces"
)

var (
	ErrCommandRequired = errors.New("render: renderer command is required")
	// ErrRenderFailed wraps any failure signalled by the external tool, either
	// through its exit status or through its diagnostic stream.
	ErrRenderFailed = errors.New("render: external renderer failed")
)

// Config describes how the external rendering tool is invoked.
type Config struct {
	// Command is the renderer executable; Args are prepended before the
	// generated config file path.
	Command string
	Args    []string
	Timeout time.Duration
	// MaxOutput caps captured stdout/stderr bytes, since repository content
	// is semi-trusted input of unknown size.
	MaxOutput int
}

// Runner invokes the external renderer over a content directory and produces
// one HTML document per page in the output directory.
type Runner struct {
	cfg    Config
	logger interfaces.Logger
}

// NewRunner builds a Runner. A zero timeout defaults to 60s and a zero output
// cap to 1MiB.
func NewRunner(cfg Config, logger interfaces.Logger) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = 1 << 20
	}
	return &Runner{cfg: cfg, logger: logger}
}

// exportConfig is the generated configuration handed to the renderer. The
// include-all policy guarantees every page gets an output document, matched
// later by normalized name.
type exportConfig struct {
	InputDir        string `json:"inputDir"`
	OutputDir       string `json:"outputDir"`
	IncludeAllPages bool   `json:"includeAllPages"`
}

// Run renders the content directory into outputDir. It returns ErrRenderFailed
// (wrapped with diagnostics) when the tool exits abnormally or its stderr
// indicates an error.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string) error {
	if strings.TrimSpace(r.cfg.Command) == "" {
		return ErrCommandRequired
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("render: create output dir: %w", err)
	}

	cfgPath := filepath.Join(outputDir, ".export-config.json")
	payload, err := json.Marshal(exportConfig{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		IncludeAllPages: true,
	})
	if err != nil {
		return fmt.Errorf("render: encode export config: %w", err)
	}
	if err := os.WriteFile(cfgPath, payload, 0o644); err != nil {
		return fmt.Errorf("render: write export config: %w", err)
	}
	defer os.Remove(cfgPath)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, r.cfg.Args...), "--config", cfgPath)
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)

	stdout := newBoundedBuffer(r.cfg.MaxOutput)
	stderr := newBoundedBuffer(r.cfg.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if r.logger != nil {
		r.logger.Debug("render.run", "command", r.cfg.Command, "input", inputDir, "output", outputDir)
	}

	runErr := cmd.Run()
	diagnostics := stderr.String()

	if runErr != nil {
		return fmt.Errorf("%w: %v: %s", ErrRenderFailed, runErr, firstLines(diagnostics, 20))
	}
	if line, bad := errorLine(diagnostics); bad {
		return fmt.Errorf("%w: diagnostic output: %s", ErrRenderFailed, line)
	}
	return nil
}

// errorLine scans the diagnostic stream for a line signalling failure. Some
// export tools exit zero while still reporting fatal errors on stderr.
func errorLine(diagnostics string) (string, bool) {
	for _, line := range strings.Split(diagnostics, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "error") || strings.HasPrefix(lower, "fatal") || strings.Contains(lower, "panic:") {
			return trimmed, true
		}
	}
	return "", false
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// boundedBuffer keeps at most max bytes and silently drops the rest.
type boundedBuffer struct {
	buf bytes.Buffer
	max int
}

func newBoundedBuffer(max int) *boundedBuffer {
	return &boundedBuffer{max: max}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
