package export

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

func TestFileSinkWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(filepath.Join(dir, "exports"))
	file := domain.ExportFile{Filename: "../../etc/metrics list.csv", MIMEType: "text/csv", Content: []byte(`"a"`)}

	location, err := sink.Deliver(context.Background(), file)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if filepath.Dir(location) != sink.Dir() {
		t.Fatalf("export escaped the directory: %s", location)
	}
	if filepath.Base(location) != "metrics-list.csv" {
		t.Fatalf("unexpected file name %s", location)
	}
	content, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(content) != `"a"` {
		t.Fatalf("unexpected content %q", content)
	}
	entries, err := os.ReadDir(sink.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the promoted file, found %d entries", len(entries))
	}
}

func TestResponseSinkSetsAttachmentHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewResponseSink(rec)
	file := domain.ExportFile{Filename: "mappings.json", MIMEType: "application/json", Content: []byte("[]")}

	if _, err := sink.Deliver(context.Background(), file); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="mappings.json"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.String() != "[]" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestClipboardSinkRejectsBinary(t *testing.T) {
	var copied string
	sink := &ClipboardSink{write: func(s string) error { copied = s; return nil }}

	_, err := sink.Deliver(context.Background(), domain.ExportFile{MIMEType: domain.ExportFormatXLSX.MIMEType(), Content: []byte{1}})
	if !errors.Is(err, ErrBinaryClipboard) {
		t.Fatalf("expected ErrBinaryClipboard, got %v", err)
	}

	content := append(append([]byte{}, byteOrderMark...), []byte(`"a"`)...)
	if _, err := sink.Deliver(context.Background(), domain.ExportFile{MIMEType: "text/csv;charset=utf-8", Content: content}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if copied != `"a"` {
		t.Fatalf("expected BOM stripped clipboard text, got %q", copied)
	}

	if _, err := (&ClipboardSink{}).Deliver(context.Background(), domain.ExportFile{MIMEType: "text/csv"}); !errors.Is(err, ErrClipboardUnavailable) {
		t.Fatalf("expected ErrClipboardUnavailable, got %v", err)
	}
}

type failingSink struct{ err error }

func (s failingSink) Deliver(context.Context, domain.ExportFile) (string, error) {
	return "", s.err
}

func TestServiceDeliverReportsSinkFailure(t *testing.T) {
	sinkErr := errors.New("download blocked")
	service := NewService(failingSink{err: sinkErr})

	_, err := service.Deliver(context.Background(), domain.ExportFile{Filename: "x.csv"})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error to propagate, got %v", err)
	}
}

func TestServiceDeliverBuildsReceipt(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	service := NewService(NewFileSink(t.TempDir()), WithClock(func() time.Time { return fixed }))

	receipt, err := service.Deliver(context.Background(), domain.ExportFile{Filename: "x.csv", MIMEType: "text/csv", Content: []byte("abc"), Rows: 2})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if receipt.Rows != 2 || receipt.Bytes != 3 || !receipt.DeliveredAt.Equal(fixed) {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}
