package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/shared"
)

// AuthEventRepository records lifecycle transitions in the auth_events table.
type AuthEventRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuthEventRepository creates a new AuthEventRepository with the given database connection
func NewAuthEventRepository(db *sql.DB) *AuthEventRepository {
	return &AuthEventRepository{db: db, now: time.Now}
}

// RecordTransition inserts one transition with a generated ID.
func (r *AuthEventRepository) RecordTransition(ctx context.Context, from, to, detail string) error {
	query := `
		INSERT INTO auth_events (id, from_state, to_state, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, shared.GenerateID(), from, to, detail, r.now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to insert auth event: %v", shared.ErrStorage, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *AuthEventRepository) Recent(ctx context.Context, limit int) ([]models.AuthEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, from_state, to_state, detail, created_at
		FROM auth_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query auth events: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var events []models.AuthEvent
	for rows.Next() {
		var e models.AuthEvent
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan auth event: %v", shared.ErrStorage, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
