// Package agentconfig resolves the effective per-tenant agent configuration.
package agentconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("agent config not found")

// Record is a stored agent_configs row. Empty strings mean the column was
// null or blank.
type Record struct {
	UserID      uuid.UUID
	PromptData  map[string]string
	OpenAIKey   string
	ManyChatKey string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides data access for agent configurations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new agent config repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUserID loads the stored configuration for a tenant.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (Record, error) {
	var (
		rec         Record
		promptData  []byte
		openAIKey   *string
		manyChatKey *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, prompt_data, openai_key, manychat_key, created_at, updated_at
		FROM agent_configs
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &promptData, &openAIKey, &manyChatKey, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec.PromptData, err = decodePromptData(promptData)
	if err != nil {
		return Record{}, fmt.Errorf("decode prompt_data: %w", err)
	}
	if openAIKey != nil {
		rec.OpenAIKey = *openAIKey
	}
	if manyChatKey != nil {
		rec.ManyChatKey = *manyChatKey
	}
	return rec, nil
}

// decodePromptData accepts any JSON object; non-string values are kept in
// their JSON form so the prompt still sees them.
func decodePromptData(raw []byte) (map[string]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}
		if string(value) == "null" {
			continue
		}
		out[key] = string(value)
	}
	return out, nil
}
