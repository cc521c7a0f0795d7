package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/model"
	"github.com/jakechorley/shift-selector/pkg/db"
)

func newTestEngine(t *testing.T, grid *mockGrid) (*ClaimEngine, *mockRecounts, *mockJournal) {
	t.Helper()
	recounts := &mockRecounts{}
	journal := &mockJournal{}
	engine, err := NewClaimEngine(grid, testConfig(), recounts, journal, zap.NewNop())
	require.NoError(t, err)
	engine.now = func() time.Time { return time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC) }
	return engine, recounts, journal
}

func TestValidateShiftID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr error
	}{
		{"A1", nil},
		{"b4", nil},
		{"AB12", nil},
		{"Z99", nil},
		{"", model.ErrMissingShiftID},
		{"123", model.ErrInvalidShiftID},
		{"ABC12", model.ErrInvalidShiftID},
		{"A123", model.ErrInvalidShiftID},
		{"A", model.ErrInvalidShiftID},
		{"A1!", model.ErrInvalidShiftID},
		{"schedule!A1", model.ErrInvalidShiftID},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateShiftID(tt.id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewClaimEngine_InvalidPalette(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.ClaimableColors = []string{"#fff"}

	_, err := NewClaimEngine(newMockGrid(), cfg, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCheckClaimable(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	grid.shift("B3", "1-bob")
	grid.background["B4"] = grey
	engine, _, _ := newTestEngine(t, grid)
	ctx := context.Background()

	availability, cell, err := engine.CheckClaimable(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, Available, availability)
	assert.Equal(t, "B2", cell.ID)

	availability, cell, err = engine.CheckClaimable(ctx, "b3")
	require.NoError(t, err)
	assert.Equal(t, AlreadyClaimed, availability)
	assert.Equal(t, "1-bob", cell.Value)

	availability, _, err = engine.CheckClaimable(ctx, "B4")
	require.NoError(t, err)
	assert.Equal(t, NotAShiftCell, availability)

	// No explicit background
	availability, _, err = engine.CheckClaimable(ctx, "C9")
	require.NoError(t, err)
	assert.Equal(t, NotAShiftCell, availability)
}

func TestCheckClaimable_LookupFailure(t *testing.T) {
	grid := newMockGrid()
	grid.getErr = errors.New("googleapi: Error 400: Unable to parse range")
	engine, _, _ := newTestEngine(t, grid)

	_, _, err := engine.CheckClaimable(context.Background(), "B2")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLookup)
	assert.Equal(t, model.KindUpstreamRead, model.KindOf(err))
}

func TestClaim_Success(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	engine, recounts, journal := newTestEngine(t, grid)
	dir := testDirectory()

	err := engine.Claim(context.Background(), authFor(dir, "1-alice"), "b2")
	require.NoError(t, err)

	assert.Equal(t, "1-alice", grid.get("schedule", "B2"))

	require.Len(t, recounts.targets, 1)
	assert.Equal(t, model.CountTarget{UserID: "1-alice", Column: 7, Row: 1}, recounts.targets[0])

	require.Len(t, journal.events, 1)
	event := journal.events[0]
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "B2", event.ShiftID)
	assert.Equal(t, "1-alice", event.UserID)
	assert.Equal(t, "claim", event.Action)
	assert.Equal(t, "2025-01-05T10:00:00Z", event.At)
}

func TestClaim_AlreadyClaimed(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "1-bob")
	engine, recounts, journal := newTestEngine(t, grid)
	dir := testDirectory()

	err := engine.Claim(context.Background(), authFor(dir, "1-alice"), "B2")
	assert.ErrorIs(t, err, model.ErrAlreadyClaimed)
	assert.Equal(t, "1-bob", grid.get("schedule", "B2"))
	assert.Empty(t, grid.updates)
	assert.Empty(t, recounts.targets)
	assert.Empty(t, journal.events)
}

func TestClaim_NotAShift(t *testing.T) {
	grid := newMockGrid()
	grid.background["A1"] = grey
	engine, _, _ := newTestEngine(t, grid)

	err := engine.Claim(context.Background(), authFor(testDirectory(), "1-alice"), "A1")
	assert.ErrorIs(t, err, model.ErrNotAShiftCell)
	assert.Empty(t, grid.updates)
}

func TestClaim_InvalidID(t *testing.T) {
	grid := newMockGrid()
	grid.getErr = errors.New("store must not be called")
	engine, _, _ := newTestEngine(t, grid)

	err := engine.Claim(context.Background(), authFor(testDirectory(), "1-alice"), "ABC123")
	assert.ErrorIs(t, err, model.ErrInvalidShiftID)
}

func TestClaim_WriteFailure(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	grid.updateErr = errors.New("quota exceeded")
	engine, recounts, journal := newTestEngine(t, grid)

	err := engine.Claim(context.Background(), authFor(testDirectory(), "1-alice"), "B2")
	assert.ErrorIs(t, err, model.ErrWrite)
	assert.Equal(t, model.KindUpstreamWrite, model.KindOf(err))
	assert.Empty(t, recounts.targets)
	assert.Empty(t, journal.events)
}

func TestClaim_SideEffectFailuresAreNotSurfaced(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	engine, recounts, journal := newTestEngine(t, grid)
	recounts.reject = true
	journal.err = errors.New("journal unavailable")

	err := engine.Claim(context.Background(), authFor(testDirectory(), "1-alice"), "B2")
	require.NoError(t, err)
	assert.Equal(t, "1-alice", grid.get("schedule", "B2"))
}

func TestClaim_ConcurrentClaimsOnOneShift(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	engine, _, _ := newTestEngine(t, grid)
	dir := testDirectory()

	users := []string{"1-alice", "1-bob", "2-dave", "2-erin"}
	errs := make([]error, len(users))

	var wg sync.WaitGroup
	for i, id := range users {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = engine.Claim(context.Background(), authFor(dir, id), "B2")
		}()
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			assert.Equal(t, users[i], grid.get("schedule", "B2"))
			continue
		}
		assert.ErrorIs(t, err, model.ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, engine.locks.size())
}

func TestRelease_Success(t *testing.T) {
	grid := newMockGrid()
	grid.shift("C3", "1-alice")
	engine, recounts, journal := newTestEngine(t, grid)

	err := engine.Release(context.Background(), authFor(testDirectory(), "1-alice"), "C3")
	require.NoError(t, err)

	assert.Equal(t, "", grid.get("schedule", "C3"))
	require.Len(t, recounts.targets, 1)
	require.Len(t, journal.events, 1)
	assert.Equal(t, "release", journal.events[0].Action)
}

func TestRelease_NotOwner(t *testing.T) {
	grid := newMockGrid()
	grid.shift("C3", "1-bob")
	engine, recounts, _ := newTestEngine(t, grid)

	err := engine.Release(context.Background(), authFor(testDirectory(), "1-alice"), "C3")
	assert.ErrorIs(t, err, model.ErrNotOwner)
	assert.Equal(t, "1-bob", grid.get("schedule", "C3"))
	assert.Empty(t, grid.updates)
	assert.Empty(t, recounts.targets)
}

func TestRelease_EmptyCell(t *testing.T) {
	grid := newMockGrid()
	grid.shift("C3", "")
	engine, _, _ := newTestEngine(t, grid)

	err := engine.Release(context.Background(), authFor(testDirectory(), "1-alice"), "C3")
	assert.ErrorIs(t, err, model.ErrNotOwner)
}

func TestRelease_LookupFailure(t *testing.T) {
	grid := newMockGrid()
	grid.getErr = errors.New("backend unavailable")
	engine, _, _ := newTestEngine(t, grid)

	err := engine.Release(context.Background(), authFor(testDirectory(), "1-alice"), "C3")
	assert.ErrorIs(t, err, model.ErrLookup)
}

func TestClaimThenRelease_RestoresCount(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	grid.shift("D7", "1-alice")
	engine, recounts, _ := newTestEngine(t, grid)
	cfg := testConfig()
	ctx := context.Background()
	auth := authFor(testDirectory(), "1-alice")

	before, err := RecomputeShiftCount(ctx, grid, cfg, zap.NewNop(), model.CountTarget{UserID: "1-alice", Column: 7, Row: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, before)

	require.NoError(t, engine.Claim(ctx, auth, "B2"))
	afterClaim, err := RecomputeShiftCount(ctx, grid, cfg, zap.NewNop(), recounts.targets[0])
	require.NoError(t, err)
	assert.Equal(t, before+1, afterClaim)

	require.NoError(t, engine.Release(ctx, auth, "B2"))
	afterRelease, err := RecomputeShiftCount(ctx, grid, cfg, zap.NewNop(), recounts.targets[1])
	require.NoError(t, err)

	assert.Equal(t, before, afterRelease)
	assert.Equal(t, "", grid.get("schedule", "B2"))
	assert.Equal(t, "1", grid.get("users", "H2"))
}

func TestAvailabilityString(t *testing.T) {
	assert.Equal(t, "available", Available.String())
	assert.Equal(t, "already claimed", AlreadyClaimed.String())
	assert.Equal(t, "not a shift", NotAShiftCell.String())
}

type blockingJournal struct {
	locksHeld int
	ctxErr    error
	onAppend  func() int
}

func (j *blockingJournal) AppendClaimEvent(ctx context.Context, event *db.ClaimEvent) error {
	j.locksHeld = j.onAppend()
	<-ctx.Done()
	j.ctxErr = ctx.Err()
	return ctx.Err()
}

func TestClaim_SlowJournalIsBoundedAndUnlocked(t *testing.T) {
	grid := newMockGrid()
	grid.shift("B2", "")
	cfg := testConfig()
	cfg.UpstreamTimeout = 50 * time.Millisecond

	journal := &blockingJournal{}
	engine, err := NewClaimEngine(grid, cfg, &mockRecounts{}, journal, zap.NewNop())
	require.NoError(t, err)
	journal.onAppend = engine.locks.size

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- engine.Claim(ctx, authFor(testDirectory(), "1-alice"), "B2")
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("claim blocked on the journal")
	}

	assert.Equal(t, 0, journal.locksHeld)
	assert.ErrorIs(t, journal.ctxErr, context.DeadlineExceeded)
	assert.Equal(t, "1-alice", grid.get("schedule", "B2"))
}
