package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jakechorley/shift-selector/pkg/sheetssql"
)

// SheetsJournal stores claim events in a tab of a spreadsheet
type SheetsJournal struct {
	table *sheetssql.Table[ClaimEvent]
}

// NewSheetsJournal binds the journal to a tab, creating it with a header row if needed
func NewSheetsJournal(ctx context.Context, client sheetssql.SheetsClient, spreadsheetID, tab string) (*SheetsJournal, error) {
	table, err := sheetssql.NewTable[ClaimEvent](client, spreadsheetID, tab)
	if err != nil {
		return nil, err
	}
	if err := table.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare claim journal: %w", err)
	}
	return &SheetsJournal{table: table}, nil
}

// AppendClaimEvent appends one event row
func (j *SheetsJournal) AppendClaimEvent(ctx context.Context, event *ClaimEvent) error {
	if err := j.table.Insert(ctx, *event); err != nil {
		return fmt.Errorf("failed to append claim event: %w", err)
	}
	return nil
}

// ListClaimEvents returns the events of one shift in the order they were written
func (j *SheetsJournal) ListClaimEvents(ctx context.Context, shiftID string) ([]ClaimEvent, error) {
	events, err := j.table.Select(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim events: %w", err)
	}

	var matched []ClaimEvent
	for _, e := range events {
		if strings.EqualFold(e.ShiftID, shiftID) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
