package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

// Sink persists or offers an encoded export to the user. It returns a short
// description of where the file went.
type Sink interface {
	Deliver(ctx context.Context, file domain.ExportFile) (string, error)
}

// FileSink writes exports into a directory.
type FileSink struct {
	dir string
}

// NewFileSink returns a sink that writes into dir, creating it on demand.
func NewFileSink(dir string) *FileSink {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "medallion-catalog-exports")
	}
	return &FileSink{dir: filepath.Clean(dir)}
}

// Dir returns the export directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Deliver writes the file through a temporary file and renames it into place so
// readers never observe a partial export.
func (s *FileSink) Deliver(ctx context.Context, file domain.ExportFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export directory: %w", err)
	}
	name := sanitizeFileName(file.Filename)
	tempFile, err := os.CreateTemp(s.dir, name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(file.Content); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("sync export file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	finalPath := filepath.Join(s.dir, name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("promote export file: %w", err)
	}
	cleanup = false
	return finalPath, nil
}

// ResponseSink serves the export as an HTTP attachment.
type ResponseSink struct {
	w http.ResponseWriter
}

// NewResponseSink wraps a response writer.
func NewResponseSink(w http.ResponseWriter) *ResponseSink {
	return &ResponseSink{w: w}
}

func (s *ResponseSink) Deliver(ctx context.Context, file domain.ExportFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := sanitizeFileName(file.Filename)
	contentType := file.MIMEType
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	s.w.Header().Set("Content-Type", contentType)
	s.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	s.w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	s.w.WriteHeader(http.StatusOK)
	if _, err := s.w.Write(file.Content); err != nil {
		return "", fmt.Errorf("write export response: %w", err)
	}
	return name, nil
}

var (
	// ErrBinaryClipboard is returned when a binary export is sent to the clipboard.
	ErrBinaryClipboard = errors.New("binary exports cannot be copied to the clipboard")
	// ErrClipboardUnavailable is returned when no clipboard utility is installed.
	ErrClipboardUnavailable = errors.New("clipboard is not available on this system")
)

// ClipboardSink places text exports on the system clipboard.
type ClipboardSink struct {
	write func(string) error
}

// NewClipboardSink returns a sink backed by the system clipboard.
func NewClipboardSink() *ClipboardSink {
	if clipboard.Unsupported {
		return &ClipboardSink{}
	}
	return &ClipboardSink{write: clipboard.WriteAll}
}

func (s *ClipboardSink) Deliver(ctx context.Context, file domain.ExportFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !isText(file.MIMEType) {
		return "", ErrBinaryClipboard
	}
	if s.write == nil {
		return "", ErrClipboardUnavailable
	}
	content := strings.TrimPrefix(string(file.Content), string(byteOrderMark))
	if err := s.write(content); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}
	return "clipboard", nil
}

func isText(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return strings.HasPrefix(mimeType, "text/") || strings.HasPrefix(mimeType, "application/json")
}

// sanitizeFileName keeps only the base name and replaces characters that are
// awkward in file systems and Content-Disposition headers.
func sanitizeFileName(value string) string {
	value = filepath.Base(strings.TrimSpace(value))
	if value == "." || value == string(filepath.Separator) {
		value = ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-.")
	if result == "" {
		return "export"
	}
	return result
}
