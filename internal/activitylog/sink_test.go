package activitylog

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"github.com/google/uuid"
)

type testWriter struct {
	entries []Entry
	err     error
}

func (w *testWriter) Insert(_ context.Context, e Entry) error {
	w.entries = append(w.entries, e)
	return w.err
}

func TestRecordPersistsEntry(t *testing.T) {
	writer := &testWriter{}
	sink := NewSink(writer, logger.Discard())
	tenant := uuid.New()

	sink.Record(context.Background(), tenant, LevelInfo, EventReplySent, map[string]any{"subscriberId": "123"})

	if len(writer.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(writer.entries))
	}
	e := writer.entries[0]
	if e.TenantID != tenant || e.Event != EventReplySent || e.Level != LevelInfo {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Details["subscriberId"] != "123" {
		t.Fatalf("expected details to be kept, got %v", e.Details)
	}
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	writer := &testWriter{err: errors.New("db down")}
	sink := NewSink(writer, logger.NewWithWriter("production", &buf))

	sink.Record(context.Background(), uuid.New(), LevelError, EventReplyFailed, nil)

	if !strings.Contains(buf.String(), "database_error") {
		t.Fatalf("expected failure reported to process logger, got %s", buf.String())
	}
}

func TestRecordWithoutWriter(t *testing.T) {
	sink := NewSink(nil, logger.Discard())
	sink.Record(context.Background(), uuid.New(), LevelWarn, EventInvalidPayload, nil)
}
