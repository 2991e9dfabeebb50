// Package webhook receives ManyChat Instagram DM events and runs the lead
// analysis and reply flow for the owning tenant.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/instadmio/instadm-appointment-setter/internal/activitylog"
	"github.com/instadmio/instadm-appointment-setter/internal/agent"
	"github.com/instadmio/instadm-appointment-setter/internal/agentconfig"
	"github.com/instadmio/instadm-appointment-setter/internal/manychat"
	"github.com/instadmio/instadm-appointment-setter/internal/memory"
	"github.com/instadmio/instadm-appointment-setter/internal/scraper"
	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"
	"github.com/instadmio/instadm-appointment-setter/platform/validator"

	"github.com/google/uuid"
)

const (
	StatusQueued  = "queued"
	StatusSuccess = "success"
	StatusError   = "error"

	messageQueued  = "Processing in background"
	messageNoReply = "no reply"
)

// ErrReplyGenerationFailed marks a chat-phase failure. It is the only
// processing failure visible to the caller.
var ErrReplyGenerationFailed = errors.New("reply generation failed")

// ConfigResolver produces the effective tenant configuration.
type ConfigResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (agentconfig.TenantConfig, error)
}

// SubscriberDirectory is the messaging platform's subscriber API.
type SubscriberDirectory interface {
	GetSubscriber(ctx context.Context, subscriberID string) (*manychat.Subscriber, error)
	SetCustomFields(ctx context.Context, subscriberID string, fields ...manychat.Field) error
	AddTag(ctx context.Context, subscriberID string, tagID int64) error
	RemoveTag(ctx context.Context, subscriberID string, tagID int64) error
	SendContent(ctx context.Context, subscriberID string, messages ...string) error
}

// Agent generates replies and scores leads.
type Agent interface {
	GenerateReply(ctx context.Context, tenantID, sessionID, message string, p memory.Participant) (string, error)
	ScoreLead(ctx context.Context, profile json.RawMessage) (string, error)
}

// ActivityRecorder is the best-effort event log.
type ActivityRecorder interface {
	Record(ctx context.Context, tenantID uuid.UUID, level activitylog.Level, event string, details map[string]any)
}

// DirectoryFactory binds a subscriber directory to a tenant's API key.
type DirectoryFactory func(apiKey string) SubscriberDirectory

// AgentFactory builds an agent for a tenant's credentials and prompt data.
type AgentFactory func(cfg agentconfig.TenantConfig) Agent

// Result is the body returned to the webhook caller.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServiceDeps groups the collaborators of Service.
type ServiceDeps struct {
	Resolver       ConfigResolver
	Scraper        scraper.Scraper
	NewDirectory   DirectoryFactory
	NewAgent       AgentFactory
	Activity       ActivityRecorder
	Validator      *validator.Validator
	Mode           string
	QualifiedTagID int64
	Log            *logger.Logger
}

// Service runs the per-event flow.
type Service struct {
	resolver       ConfigResolver
	scraper        scraper.Scraper
	newDirectory   DirectoryFactory
	newAgent       AgentFactory
	activity       ActivityRecorder
	val            *validator.Validator
	mode           string
	qualifiedTagID int64
	log            *logger.Logger

	// spawn runs detached work in async mode.
	spawn func(func())
}

func NewService(deps ServiceDeps) *Service {
	mode := deps.Mode
	if mode == "" {
		mode = config.WebhookModeAsync
	}
	val := deps.Validator
	if val == nil {
		val = validator.New()
	}
	return &Service{
		resolver:       deps.Resolver,
		scraper:        deps.Scraper,
		newDirectory:   deps.NewDirectory,
		newAgent:       deps.NewAgent,
		activity:       deps.Activity,
		val:            val,
		mode:           mode,
		qualifiedTagID: deps.QualifiedTagID,
		log:            deps.Log,
		spawn:          func(fn func()) { go fn() },
	}
}

// job is one validated event bound to its tenant configuration.
type job struct {
	tenantID uuid.UUID
	cfg      agentconfig.TenantConfig
	event    InboundEvent
}

// HandleEvent resolves configuration, validates the payload and either runs
// the flow inline (sync) or hands it to a detached goroutine (async).
func (s *Service) HandleEvent(ctx context.Context, tenantID uuid.UUID, body []byte) (Result, error) {
	ctx = context.WithValue(ctx, logger.TenantIDKey, tenantID.String())

	cfg, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		s.activity.Record(ctx, tenantID, activitylog.LevelError, activitylog.EventConfigIncomplete, map[string]any{
			"error": err.Error(),
		})
		return Result{}, err
	}

	event, err := ParseInboundEvent(body, s.val)
	if err != nil {
		s.activity.Record(ctx, tenantID, activitylog.LevelWarn, activitylog.EventInvalidPayload, map[string]any{
			"body": truncateBody(body),
		})
		return Result{}, err
	}

	s.activity.Record(ctx, tenantID, activitylog.LevelInfo, activitylog.EventWebhookReceived, map[string]any{
		"subscriberId": event.SubscriberID,
		"username":     event.Username,
		"firstName":    event.FirstName,
		"message":      event.Message,
		"mode":         s.mode,
	})

	j := job{tenantID: tenantID, cfg: cfg, event: event}

	if s.mode == config.WebhookModeSync {
		reply, err := s.process(ctx, j)
		if err != nil {
			return Result{}, err
		}
		if reply == "" {
			return Result{Status: StatusSuccess, Message: messageNoReply}, nil
		}
		return Result{Status: StatusSuccess, Reply: reply}, nil
	}

	bg := context.WithoutCancel(ctx)
	s.spawn(func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.WithContext(bg).Error("webhook: background processing panicked", "panic", r)
			}
		}()
		if _, err := s.process(bg, j); err != nil {
			s.log.WithContext(bg).Error("webhook: background processing failed", "error", err)
		}
	})
	return Result{Status: StatusQueued, Message: messageQueued}, nil
}

func (s *Service) process(ctx context.Context, j job) (string, error) {
	directory := s.newDirectory(j.cfg.MessagingAPIKey)
	convo := s.newAgent(j.cfg)

	s.analyzeLead(ctx, j, directory, convo)
	return s.reply(ctx, j, directory, convo)
}

// analyzeLead qualifies the lead once per subscriber. Every failure here is
// logged and absorbed.
func (s *Service) analyzeLead(ctx context.Context, j job, directory SubscriberDirectory, convo Agent) {
	ev := j.event
	log := s.log.WithContext(ctx)

	sub, err := directory.GetSubscriber(ctx, ev.SubscriberID)
	if err != nil {
		log.Warn("webhook: subscriber lookup failed, treating as not analyzed", "subscriberId", ev.SubscriberID, "error", err)
		sub = nil
	}
	if sub.AlreadyAnalyzed() {
		log.Debug("webhook: lead already analyzed", "subscriberId", ev.SubscriberID)
		return
	}
	if ev.Username == "" {
		return
	}

	s.activity.Record(ctx, j.tenantID, activitylog.LevelInfo, activitylog.EventLeadAnalysisStarted, map[string]any{
		"subscriberId": ev.SubscriberID,
		"username":     ev.Username,
	})

	profile, err := s.scraper.ScrapeProfile(ctx, ev.Username)
	if err != nil {
		s.analysisFailed(ctx, j, "scrape", err)
		return
	}
	if len(profile) == 0 {
		log.Info("webhook: no profile data, skipping analysis", "username", ev.Username)
		return
	}

	analysis, err := convo.ScoreLead(ctx, profile)
	if err != nil {
		s.analysisFailed(ctx, j, "score", err)
		return
	}

	qualified := agent.IsQualified(analysis)
	status := manychat.StatusUnqualified
	if qualified {
		status = manychat.StatusQualified
	}

	err = directory.SetCustomFields(ctx, ev.SubscriberID,
		manychat.Field{Name: manychat.FieldICPStatus, Value: status},
		manychat.Field{Name: manychat.FieldAnalysisRaw, Value: agent.Truncate(analysis, agent.MaxAnalysisChars)},
		manychat.Field{Name: manychat.FieldAnalysisComplete, Value: "true"},
	)
	if err != nil {
		s.analysisFailed(ctx, j, "write_fields", err)
		return
	}

	if s.qualifiedTagID != 0 {
		if qualified {
			err = directory.AddTag(ctx, ev.SubscriberID, s.qualifiedTagID)
		} else {
			err = directory.RemoveTag(ctx, ev.SubscriberID, s.qualifiedTagID)
		}
		if err != nil {
			log.Warn("webhook: qualified tag update failed", "subscriberId", ev.SubscriberID, "error", err)
		}
	}

	s.activity.Record(ctx, j.tenantID, activitylog.LevelInfo, activitylog.EventLeadAnalysisCompleted, map[string]any{
		"subscriberId": ev.SubscriberID,
		"username":     ev.Username,
		"icpStatus":    status,
	})
}

func (s *Service) analysisFailed(ctx context.Context, j job, stage string, err error) {
	s.activity.Record(ctx, j.tenantID, activitylog.LevelWarn, activitylog.EventLeadAnalysisFailed, map[string]any{
		"subscriberId": j.event.SubscriberID,
		"username":     j.event.Username,
		"stage":        stage,
		"error":        err.Error(),
	})
}

// reply generates and delivers the chat answer. Failures are returned
// wrapped in ErrReplyGenerationFailed.
func (s *Service) reply(ctx context.Context, j job, directory SubscriberDirectory, convo Agent) (string, error) {
	ev := j.event
	sessionID := ev.SessionID()

	reply, err := convo.GenerateReply(ctx, j.tenantID.String(), sessionID, ev.Message, memory.Participant{
		FirstName: ev.FirstName,
		Username:  ev.Username,
	})
	if err != nil {
		return "", s.replyFailed(ctx, j, "generate", err)
	}
	if reply == "" {
		s.activity.Record(ctx, j.tenantID, activitylog.LevelInfo, activitylog.EventReplySkipped, map[string]any{
			"subscriberId": ev.SubscriberID,
			"sessionId":    sessionID,
		})
		return "", nil
	}

	if err := directory.SendContent(ctx, ev.SubscriberID, reply); err != nil {
		return "", s.replyFailed(ctx, j, "deliver", err)
	}

	s.activity.Record(ctx, j.tenantID, activitylog.LevelInfo, activitylog.EventReplySent, map[string]any{
		"subscriberId": ev.SubscriberID,
		"sessionId":    sessionID,
		"reply":        reply,
	})
	return reply, nil
}

func (s *Service) replyFailed(ctx context.Context, j job, stage string, err error) error {
	s.activity.Record(ctx, j.tenantID, activitylog.LevelError, activitylog.EventReplyFailed, map[string]any{
		"subscriberId": j.event.SubscriberID,
		"stage":        stage,
		"error":        err.Error(),
	})
	return fmt.Errorf("%w: %s: %w", ErrReplyGenerationFailed, stage, err)
}

const maxLoggedBody = 2000

func truncateBody(body []byte) string {
	return agent.Truncate(string(body), maxLoggedBody)
}
