package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/core/addressing"
	"github.com/jakechorley/shift-selector/pkg/core/directory"
	"github.com/jakechorley/shift-selector/pkg/core/model"
	"github.com/jakechorley/shift-selector/pkg/db"
)

var shiftIDPattern = regexp.MustCompile(`^[a-zA-Z]{1,2}[0-9]{1,2}$`)

// ValidateShiftID checks that the id is a one or two letter column followed by a one or two digit row
func ValidateShiftID(shiftID string) error {
	if shiftID == "" {
		return model.ErrMissingShiftID
	}
	if !shiftIDPattern.MatchString(shiftID) {
		return model.ErrInvalidShiftID
	}
	return nil
}

// Availability is the outcome of checking whether a shift cell can be claimed
type Availability int

const (
	Available Availability = iota
	AlreadyClaimed
	NotAShiftCell
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case AlreadyClaimed:
		return "already claimed"
	case NotAShiftCell:
		return "not a shift"
	default:
		return fmt.Sprintf("Availability(%d)", int(a))
	}
}

// SheetStore defines the spreadsheet operations the claim engine needs
type SheetStore interface {
	GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)
	GetCell(ctx context.Context, spreadsheetID, sheetRange string) (*model.ShiftCell, error)
	UpdateValues(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error
}

// RecountScheduler accepts shift count recomputations to run in the background
type RecountScheduler interface {
	Enqueue(target model.CountTarget) bool
}

// ClaimRecorder records claim transitions
type ClaimRecorder interface {
	AppendClaimEvent(ctx context.Context, event *db.ClaimEvent) error
}

// ClaimEngine claims and releases shifts in the schedule sheet
type ClaimEngine struct {
	store    SheetStore
	cfg      *config.Config
	palette  model.Palette
	recounts RecountScheduler
	journal  ClaimRecorder
	logger   *zap.Logger
	locks    *shiftLocks
	now      func() time.Time
}

// NewClaimEngine creates a claim engine. A nil journal records nothing.
func NewClaimEngine(store SheetStore, cfg *config.Config, recounts RecountScheduler, journal ClaimRecorder, logger *zap.Logger) (*ClaimEngine, error) {
	palette, err := model.NewPalette(cfg.Schedule.ClaimableColors)
	if err != nil {
		return nil, fmt.Errorf("invalid claimable colours: %w", err)
	}
	if journal == nil {
		journal = db.NopJournal{}
	}

	return &ClaimEngine{
		store:    store,
		cfg:      cfg,
		palette:  palette,
		recounts: recounts,
		journal:  journal,
		logger:   logger,
		locks:    newShiftLocks(),
		now:      time.Now,
	}, nil
}

func (e *ClaimEngine) cellRange(shiftID string) string {
	return addressing.SheetRange(e.cfg.Schedule.Tab, strings.ToUpper(shiftID))
}

// CheckClaimable reads the cell with its formatting and reports whether it can be claimed
func (e *ClaimEngine) CheckClaimable(ctx context.Context, shiftID string) (Availability, *model.ShiftCell, error) {
	if err := ValidateShiftID(shiftID); err != nil {
		return 0, nil, err
	}

	cell, err := e.store.GetCell(ctx, e.cfg.Schedule.SheetID, e.cellRange(shiftID))
	if err != nil {
		e.logger.Debug("Failed to read shift cell", zap.String("shift", shiftID), zap.Error(err))
		return 0, nil, fmt.Errorf("%w: %w", model.ErrLookup, err)
	}
	cell.ID = shiftID

	if cell.Claimed() {
		return AlreadyClaimed, cell, nil
	}
	if !e.palette.Contains(cell.Background) {
		return NotAShiftCell, cell, nil
	}
	return Available, cell, nil
}

// Claim writes the user's registration ID into an unclaimed shift cell
func (e *ClaimEngine) Claim(ctx context.Context, auth *AuthResult, shiftID string) error {
	if err := ValidateShiftID(shiftID); err != nil {
		return err
	}

	if err := e.claimCell(ctx, auth, shiftID); err != nil {
		return err
	}

	e.logger.Info("Shift claimed", zap.String("shift", shiftID), zap.String("user", auth.User.ID))
	e.afterWrite(ctx, auth, shiftID, model.ActionClaim)
	return nil
}

func (e *ClaimEngine) claimCell(ctx context.Context, auth *AuthResult, shiftID string) error {
	unlock := e.locks.Lock(shiftID)
	defer unlock()

	availability, _, err := e.CheckClaimable(ctx, shiftID)
	if err != nil {
		return err
	}
	switch availability {
	case AlreadyClaimed:
		return model.ErrAlreadyClaimed
	case NotAShiftCell:
		return model.ErrNotAShiftCell
	}

	if err := e.store.UpdateValues(ctx, e.cfg.Schedule.SheetID, e.cellRange(shiftID), [][]interface{}{{auth.User.ID}}); err != nil {
		e.logger.Error("Failed to claim shift", zap.String("shift", shiftID), zap.String("user", auth.User.ID), zap.Error(err))
		return fmt.Errorf("%w: %w", model.ErrWrite, err)
	}
	return nil
}

// Release clears a shift cell held by the user
func (e *ClaimEngine) Release(ctx context.Context, auth *AuthResult, shiftID string) error {
	if err := ValidateShiftID(shiftID); err != nil {
		return err
	}

	if err := e.releaseCell(ctx, auth, shiftID); err != nil {
		return err
	}

	e.logger.Info("Shift released", zap.String("shift", shiftID), zap.String("user", auth.User.ID))
	e.afterWrite(ctx, auth, shiftID, model.ActionRelease)
	return nil
}

func (e *ClaimEngine) releaseCell(ctx context.Context, auth *AuthResult, shiftID string) error {
	unlock := e.locks.Lock(shiftID)
	defer unlock()

	values, err := e.store.GetValues(ctx, e.cfg.Schedule.SheetID, e.cellRange(shiftID))
	if err != nil {
		e.logger.Debug("Failed to read shift cell", zap.String("shift", shiftID), zap.Error(err))
		return fmt.Errorf("%w: %w", model.ErrLookup, err)
	}

	if firstCell(values) != auth.User.ID {
		return model.ErrNotOwner
	}

	if err := e.store.UpdateValues(ctx, e.cfg.Schedule.SheetID, e.cellRange(shiftID), [][]interface{}{{""}}); err != nil {
		e.logger.Error("Failed to release shift", zap.String("shift", shiftID), zap.String("user", auth.User.ID), zap.Error(err))
		return fmt.Errorf("%w: %w", model.ErrWrite, err)
	}
	return nil
}

// afterWrite schedules the user's recount and journals the transition once the shift lock is released.
// Failures are logged only.
func (e *ClaimEngine) afterWrite(ctx context.Context, auth *AuthResult, shiftID string, action model.ClaimAction) {
	target, err := directory.CountTarget(auth.Directory, auth.User)
	if err != nil {
		e.logger.Error("Cannot locate shift count", zap.String("user", auth.User.ID), zap.Error(err))
	} else if e.recounts != nil && !e.recounts.Enqueue(target) {
		e.logger.Warn("Recount not scheduled", zap.String("user", auth.User.ID))
	}

	event := &db.ClaimEvent{
		ID:      uuid.New().String(),
		ShiftID: strings.ToUpper(shiftID),
		UserID:  auth.User.ID,
		Action:  string(action),
		At:      e.now().UTC().Format(time.RFC3339),
	}
	// Recorded even when the client has already gone away, but never for longer than a store call
	journalCtx, cancel := e.journalContext(ctx)
	defer cancel()
	if err := e.journal.AppendClaimEvent(journalCtx, event); err != nil {
		e.logger.Error("Failed to record claim event", zap.String("shift", shiftID), zap.String("action", event.Action), zap.Error(err))
	}
}

func (e *ClaimEngine) journalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if e.cfg.UpstreamTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
}

// firstCell returns the text of the top-left cell, or "" for an empty range
func firstCell(values [][]interface{}) string {
	if len(values) == 0 || len(values[0]) == 0 {
		return ""
	}
	return directory.CellString(values[0][0])
}

