package agentconfig

import (
	"context"
	"errors"
	"maps"

	"github.com/instadmio/instadm-appointment-setter/platform/apperr"
	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"github.com/google/uuid"
)

const (
	// MissingChatAPIKey names the chat-completion credential in error details.
	MissingChatAPIKey = "chatApiKey"
	// MissingMessagingAPIKey names the messaging-platform credential in error details.
	MissingMessagingAPIKey = "messagingApiKey"

	reasonConfigurationIncomplete = "configuration_incomplete"
)

// DefaultPromptData is used when a tenant has not stored any prompt slots.
func DefaultPromptData() map[string]string {
	return map[string]string{
		"agent_name":      "InstaDM Agent",
		"agent_backstory": "You are a helpful assistant.",
	}
}

// TenantConfig is the effective configuration for one tenant.
type TenantConfig struct {
	TenantID        uuid.UUID
	PromptData      map[string]string
	ChatAPIKey      string
	MessagingAPIKey string
}

// Store is the read side of the agent_configs table.
type Store interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (Record, error)
}

// IncompleteDetails is attached to ConfigurationIncomplete errors.
type IncompleteDetails struct {
	Reason   string   `json:"reason"`
	Missing  []string `json:"missing"`
	OpenAI   bool     `json:"openai"`
	ManyChat bool     `json:"manychat"`
}

// Resolver merges platform defaults with the stored tenant record.
type Resolver struct {
	store    Store
	defaults config.CredentialDefaults
	log      *logger.Logger
}

// NewResolver creates a resolver. store may be nil, in which case only
// defaults are used.
func NewResolver(store Store, defaults config.CredentialDefaults, log *logger.Logger) *Resolver {
	return &Resolver{store: store, defaults: defaults, log: log}
}

// Resolve returns the effective configuration for tenantID. It is read on
// every call; nothing is cached.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID) (TenantConfig, error) {
	cfg := TenantConfig{
		TenantID:        tenantID,
		PromptData:      DefaultPromptData(),
		ChatAPIKey:      r.defaults.GetOpenAIAPIKey(),
		MessagingAPIKey: r.defaults.GetManyChatAPIKey(),
	}

	if r.store != nil {
		rec, err := r.store.GetByUserID(ctx, tenantID)
		switch {
		case err == nil:
			cfg = Merge(cfg, rec)
		case errors.Is(err, ErrNotFound):
		default:
			r.log.WithContext(ctx).Warn("agentconfig: lookup failed, using defaults", "tenantId", tenantID, "error", err)
		}
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		return cfg, apperr.Internal("Configuration incomplete").
			WithOp("agentconfig.Resolve").
			WithDetails(IncompleteDetails{
				Reason:   reasonConfigurationIncomplete,
				Missing:  missing,
				OpenAI:   cfg.ChatAPIKey != "",
				ManyChat: cfg.MessagingAPIKey != "",
			})
	}
	return cfg, nil
}

// Merge overlays the stored record onto base. Credentials override only when
// non-empty; prompt data replaces the base wholesale when present.
func Merge(base TenantConfig, rec Record) TenantConfig {
	out := base
	out.PromptData = maps.Clone(base.PromptData)
	if rec.PromptData != nil {
		out.PromptData = maps.Clone(rec.PromptData)
	}
	if rec.OpenAIKey != "" {
		out.ChatAPIKey = rec.OpenAIKey
	}
	if rec.ManyChatKey != "" {
		out.MessagingAPIKey = rec.ManyChatKey
	}
	return out
}

// Missing lists the credentials that are still empty.
func (c TenantConfig) Missing() []string {
	var missing []string
	if c.ChatAPIKey == "" {
		missing = append(missing, MissingChatAPIKey)
	}
	if c.MessagingAPIKey == "" {
		missing = append(missing, MissingMessagingAPIKey)
	}
	return missing
}
