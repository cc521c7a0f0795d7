package db

import "context"

// ClaimJournal records claim events.
// The Sheets-backed SheetsJournal and postgres.DB implement this interface.
type ClaimJournal interface {
	AppendClaimEvent(ctx context.Context, event *ClaimEvent) error
	ListClaimEvents(ctx context.Context, shiftID string) ([]ClaimEvent, error)
}

// NopJournal discards every event
type NopJournal struct{}

func (NopJournal) AppendClaimEvent(ctx context.Context, event *ClaimEvent) error {
	return nil
}

func (NopJournal) ListClaimEvents(ctx context.Context, shiftID string) ([]ClaimEvent, error) {
	return nil, nil
}
