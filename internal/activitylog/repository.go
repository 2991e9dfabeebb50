// Package activitylog records webhook processing events per tenant.
package activitylog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one webhook_logs row.
type Entry struct {
	TenantID uuid.UUID
	Level    Level
	Event    string
	Details  map[string]any
}

// Repository writes webhook_logs.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	var details []byte
	if e.Details != nil {
		encoded, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal log details: %w", err)
		}
		details = encoded
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_logs (user_id, level, event, details)
		VALUES ($1, $2, $3, $4)
	`, e.TenantID, string(e.Level), e.Event, details)
	return err
}
