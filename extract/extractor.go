package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the lower-case file extensions Extract accepts.
var SupportedExtensions = []string{".pdf", ".txt", ".md"}

// Config controls external tools used by the Extractor.
type Config struct {
	// Pdftotext is the pdftotext binary name or path.
	Pdftotext string
}

// DefaultConfig returns a Config that finds pdftotext on PATH.
func DefaultConfig() Config {
	return Config{Pdftotext: "pdftotext"}
}

// Extractor reads the text of a document on disk.
// It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithConfig replaces the default tool configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extractor) {
		if cfg.Pdftotext != "" {
			e.cfg = cfg
		}
	}
}

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "text-extractor")
	if e.runner == nil {
		e.runner = execRunner{logger: e.logger}
	}
	return e
}

// Supported reports whether path has an extension Extract can read.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract returns the text content of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.pdfToText(ctx, path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: %s: %s", ErrConversionFailed, filepath.Base(path), msg)
	}
	// pdftotext separates pages with form feeds.
	text := strings.ReplaceAll(string(out), "\f", "\n")
	e.logger.Debug("extracted pdf text", "path", path, "pages", 1+strings.Count(string(out), "\f"), "bytes", len(text))
	return text, nil
}
