package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/shift-selector/pkg/db"
)

// AppendClaimEvent inserts a claim event
func (d *DB) AppendClaimEvent(ctx context.Context, event *db.ClaimEvent) error {
	at, err := time.Parse(time.RFC3339, event.At)
	if err != nil {
		return fmt.Errorf("invalid claim event time %q: %w", event.At, err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO claim_event (id, shift_id, user_id, action, at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.ShiftID, event.UserID, event.Action, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert claim event: %w", err)
	}
	return nil
}

// ListClaimEvents returns the events of one shift, oldest first
func (d *DB) ListClaimEvents(ctx context.Context, shiftID string) ([]db.ClaimEvent, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id::text, shift_id, user_id, action, at
		FROM claim_event
		WHERE UPPER(shift_id) = UPPER($1)
		ORDER BY at, id
	`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim events: %w", err)
	}
	defer rows.Close()

	var events []db.ClaimEvent
	for rows.Next() {
		var e db.ClaimEvent
		var at time.Time
		if err := rows.Scan(&e.ID, &e.ShiftID, &e.UserID, &e.Action, &at); err != nil {
			return nil, fmt.Errorf("failed to scan claim event: %w", err)
		}
		e.At = at.UTC().Format(time.RFC3339)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim events: %w", err)
	}

	return events, nil
}
