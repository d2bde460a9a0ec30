// Package upload stages input documents into a per-job directory.
//
// Staged files are renamed to a random name that keeps the original
// extension, so documents with the same name never collide. The original
// name travels with the returned core.Document for display.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/rankit/core"
)

const (
	// DefaultMaxFileSize is the largest document accepted, in bytes.
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB
)

// AllowedExtensions lists the accepted document extensions.
var AllowedExtensions = []string{".pdf", ".txt", ".md"}

// Stager copies documents into <dir>/<jobID>/.
type Stager struct {
	dir         string
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Stager.
type Option func(*Stager)

// WithMaxFileSize sets the size limit in bytes.
// Default is DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(s *Stager) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStager creates a stager rooted at dir, creating it if needed.
func NewStager(dir string, opts ...Option) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	s := &Stager{
		dir:         dir,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "upload")
	return s, nil
}

// Allowed reports whether name has an accepted extension.
func Allowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// StageFile copies the local file at path into the job's directory.
func (s *Stager) StageFile(ctx context.Context, jobID, path string) (core.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return core.Document{}, err
	}
	if info.IsDir() {
		return core.Document{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedType, path)
	}
	if info.Size() > s.maxFileSize {
		return core.Document{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), s.maxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return core.Document{}, err
	}
	defer f.Close()

	return s.Stage(ctx, jobID, filepath.Base(path), f)
}

// Stage writes the contents of r, named name, into the job's directory.
// A body over the size limit is rejected and nothing is left behind.
func (s *Stager) Stage(ctx context.Context, jobID, name string, r io.Reader) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	if !Allowed(name) {
		return core.Document{}, fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedType, name, strings.Join(AllowedExtensions, ", "))
	}
	jobDir, err := s.jobDir(jobID)
	if err != nil {
		return core.Document{}, err
	}
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return core.Document{}, fmt.Errorf("failed to create job directory: %w", err)
	}

	target := filepath.Join(jobDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return core.Document{}, err
	}

	// Read one byte past the limit to detect oversize bodies.
	written, err := io.Copy(out, io.LimitReader(r, s.maxFileSize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxFileSize {
		err = fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, s.maxFileSize)
	}
	if err != nil {
		os.Remove(target)
		return core.Document{}, err
	}

	s.logger.Debug("staged document", "job", jobID, "name", name, "path", target, "bytes", written)
	return core.Document{Path: target, Name: name}, nil
}

// Remove deletes the job's directory. A job that staged nothing is not an
// error. Its signature matches pipeline.CleanupFunc.
func (s *Stager) Remove(ctx context.Context, jobID string) error {
	jobDir, err := s.jobDir(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(jobDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staged documents: %w", err)
	}
	s.logger.Debug("removed staged documents", "job", jobID)
	return nil
}

func (s *Stager) jobDir(jobID string) (string, error) {
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return filepath.Join(s.dir, jobID), nil
}
