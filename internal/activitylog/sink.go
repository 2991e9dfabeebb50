package activitylog

import (
	"context"

	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"github.com/google/uuid"
)

// Level is the severity stored with an entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event names written by the webhook flow.
const (
	EventWebhookReceived       = "webhook_received"
	EventInvalidPayload        = "invalid_payload"
	EventConfigIncomplete      = "config_incomplete"
	EventLeadAnalysisStarted   = "lead_analysis_started"
	EventLeadAnalysisCompleted = "lead_analysis_completed"
	EventLeadAnalysisFailed    = "lead_analysis_failed"
	EventReplySent             = "reply_sent"
	EventReplySkipped          = "reply_skipped"
	EventReplyFailed           = "reply_failed"
)

// Writer persists entries.
type Writer interface {
	Insert(ctx context.Context, e Entry) error
}

// Sink writes entries best-effort: failures go to the process logger and are
// never returned.
type Sink struct {
	writer Writer
	log    *logger.Logger
}

func NewSink(writer Writer, log *logger.Logger) *Sink {
	return &Sink{writer: writer, log: log}
}

// Record appends an entry for tenantID.
func (s *Sink) Record(ctx context.Context, tenantID uuid.UUID, level Level, event string, details map[string]any) {
	log := s.log.WithContext(ctx)
	switch level {
	case LevelError:
		log.Error("activity: "+event, "details", details)
	case LevelWarn:
		log.Warn("activity: "+event, "details", details)
	default:
		log.Info("activity: "+event, "details", details)
	}

	if s.writer == nil {
		return
	}
	err := s.writer.Insert(ctx, Entry{TenantID: tenantID, Level: level, Event: event, Details: details})
	if err != nil {
		log.DatabaseError("insert webhook log", err)
	}
}
