// Package memory stores per-session conversation threads for the agent.
//
// A session is addressed by the Instagram handle when known, otherwise by
// the raw subscriber id. Threads are created lazily and only ever appended.
package memory

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrThreadNotFound is returned by History when the session has no thread.
var ErrThreadNotFound = errors.New("memory thread not found")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Participant describes the person behind a session.
type Participant struct {
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Store is a conversation memory backend.
type Store interface {
	// EnsureSession creates the user and thread for sessionID if absent.
	EnsureSession(ctx context.Context, sessionID string, p Participant) error
	// History returns the thread's messages oldest first.
	History(ctx context.Context, sessionID string) ([]Message, error)
	// CreateThread creates an empty thread for sessionID.
	CreateThread(ctx context.Context, sessionID string) error
	// Append adds messages to the end of the thread in order.
	Append(ctx context.Context, sessionID string, msgs ...Message) error
}

// NormalizeRole maps a stored role onto the chat roles the model accepts.
func NormalizeRole(roles ...string) string {
	for _, role := range roles {
		switch role {
		case RoleUser, RoleAssistant, RoleSystem:
			return role
		case "ai", "bot", "model":
			return RoleAssistant
		case "human":
			return RoleUser
		}
	}
	return RoleUser
}
