// Package agent owns the conversational reply and lead scoring calls.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/instadmio/instadm-appointment-setter/internal/memory"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Agent answers one tenant's subscribers using that tenant's prompt data.
type Agent struct {
	llm        model.LLM
	memory     memory.Store
	promptData map[string]string
	log        *logger.Logger
}

// New creates an agent. llm carries the tenant's credential and model id.
func New(llm model.LLM, store memory.Store, promptData map[string]string, log *logger.Logger) *Agent {
	return &Agent{
		llm:        llm,
		memory:     store,
		promptData: maps.Clone(promptData),
		log:        log,
	}
}

// GenerateReply produces the next assistant message for sessionID. Memory
// problems never fail the reply; only the completion call can.
func (a *Agent) GenerateReply(ctx context.Context, tenantID, sessionID, message string, p memory.Participant) (string, error) {
	log := a.log.WithContext(ctx).With("tenantId", tenantID, "sessionId", sessionID)

	if err := a.memory.EnsureSession(ctx, sessionID, p); err != nil {
		log.Warn("agent: memory session unavailable", "error", err)
	}

	history, err := a.memory.History(ctx, sessionID)
	if err != nil {
		log.Info("agent: no history, creating thread", "error", err)
		if createErr := a.memory.CreateThread(ctx, sessionID); createErr != nil {
			log.Warn("agent: thread creation failed", "error", createErr)
		}
		history = nil
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, roleFor(m.Role)))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	reply, err := a.complete(ctx, &model.LLMRequest{
		Model:    a.llm.Name(),
		Contents: contents,
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(a.promptData), genai.RoleUser),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if reply == "" {
		return "", nil
	}

	if err := a.memory.Append(ctx, sessionID,
		memory.Message{Role: memory.RoleUser, Content: message},
		memory.Message{Role: memory.RoleAssistant, Content: reply},
	); err != nil {
		log.Warn("agent: failed to save memory", "error", err)
	}
	return reply, nil
}

// ScoreLead runs the qualification rubric over a scraped profile and returns
// the raw analysis text.
func (a *Agent) ScoreLead(ctx context.Context, profile json.RawMessage) (string, error) {
	if len(profile) == 0 {
		return "", errors.New("score lead: empty profile")
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, profile, "", "  "); err != nil {
		return "", fmt.Errorf("score lead: invalid profile JSON: %w", err)
	}

	analysis, err := a.complete(ctx, &model.LLMRequest{
		Model: a.llm.Name(),
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(BuildScoringPrompt(indented.String()), genai.RoleUser),
		},
	})
	if err != nil {
		return "", fmt.Errorf("score lead: %w", err)
	}
	return analysis, nil
}

func (a *Agent) complete(ctx context.Context, req *model.LLMRequest) (string, error) {
	var out strings.Builder
	for resp, err := range a.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				out.WriteString(part.Text)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// roleSystem has no genai constant; the chat provider maps it to a system message.
const roleSystem genai.Role = "system"

func roleFor(role string) genai.Role {
	switch role {
	case memory.RoleAssistant:
		return genai.RoleModel
	case memory.RoleSystem:
		return roleSystem
	default:
		return genai.RoleUser
	}
}
