// Package storage is the file-backed blob store. Uploads are validated on
// ingest (type allow-list, magic bytes, streaming size cutoff, dimension
// rules) and written under subdirectories of a single base dir; results are
// served back through the /static mount.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxSize is the streaming upload cutoff.
	MaxSize = 5 * 1024 * 1024

	// MinWidth rejects images too narrow to carry readable text.
	MinWidth = 600

	// MaxPixels caps the total pixel area.
	MaxPixels = 3_000_000

	// MaxAspectRatio caps height/width for a single page.
	MaxAspectRatio = 3.0
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ValidationError marks an upload rejected at ingest. Surfaced as 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is an ingest validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Local stores blobs on the local filesystem. Swappable for a remote store
// behind the same method set.
type Local struct {
	baseDir string
}

// NewLocal creates the base directory if needed.
func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// BaseDir returns the storage root (static file serving mounts it).
func (l *Local) BaseDir() string { return l.baseDir }

// Save validates and writes an upload, returning its relative path.
// contentType and originalName come from the multipart headers; name is the
// target basename (a random hex name when empty).
func (l *Local) Save(r io.Reader, contentType, originalName, subdir, name string) (string, error) {
	if !allowedTypes[contentType] {
		return "", validationErrorf("unsupported file type: %s", contentType)
	}

	content, err := readWithLimit(r, MaxSize)
	if err != nil {
		return "", err
	}

	detected := sniffImageType(content)
	if detected == "" {
		return "", validationErrorf("not a valid image file")
	}
	if detected != contentType {
		return "", validationErrorf("file type mismatch: header %s, content %s", contentType, detected)
	}

	if err := validateDimensions(content); err != nil {
		return "", err
	}

	if name == "" {
		name = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".jpg"
	}

	relative := filepath.ToSlash(filepath.Join(subdir, name+ext))
	absolute := filepath.Join(l.baseDir, relative)
	if err := os.MkdirAll(filepath.Dir(absolute), 0o755); err != nil {
		return "", fmt.Errorf("failed to create subdir: %w", err)
	}
	if err := os.WriteFile(absolute, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return relative, nil
}

// SaveBytes writes pre-validated content (worker results) at the given
// relative path, creating parent directories.
func (l *Local) SaveBytes(relative string, content []byte) error {
	absolute := filepath.Join(l.baseDir, relative)
	if err := os.MkdirAll(filepath.Dir(absolute), 0o755); err != nil {
		return fmt.Errorf("failed to create subdir: %w", err)
	}
	if err := os.WriteFile(absolute, content, 0o644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// AbsolutePath resolves a relative blob path under the base dir.
func (l *Local) AbsolutePath(relative string) string {
	return filepath.Join(l.baseDir, relative)
}

// Exists reports whether a blob is present.
func (l *Local) Exists(relative string) bool {
	_, err := os.Stat(l.AbsolutePath(relative))
	return err == nil
}

// Delete removes a blob; reports whether anything was removed.
func (l *Local) Delete(relative string) bool {
	if err := os.Remove(l.AbsolutePath(relative)); err != nil {
		return false
	}
	return true
}

func readWithLimit(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > limit {
		return nil, validationErrorf("file too large: exceeds %d bytes", limit)
	}
	return buf.Bytes(), nil
}

func sniffImageType(content []byte) string {
	switch {
	case bytes.HasPrefix(content, []byte{0xff, 0xd8, 0xff}):
		return "image/jpeg"
	case bytes.HasPrefix(content, []byte("\x89PNG")):
		return "image/png"
	default:
		return ""
	}
}

func validateDimensions(content []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return validationErrorf("failed to decode image")
	}

	if cfg.Width < MinWidth {
		return validationErrorf("image too narrow: %dpx (min %dpx)", cfg.Width, MinWidth)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return validationErrorf("pixel area too large: %dx%d (max %d)", cfg.Width, cfg.Height, MaxPixels)
	}
	if float64(cfg.Height)/float64(cfg.Width) > MaxAspectRatio {
		return validationErrorf("aspect ratio too tall: %.2f (max %.1f)",
			float64(cfg.Height)/float64(cfg.Width), MaxAspectRatio)
	}
	return nil
}
