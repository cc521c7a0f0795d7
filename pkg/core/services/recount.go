package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/core/addressing"
	"github.com/jakechorley/shift-selector/pkg/core/directory"
	"github.com/jakechorley/shift-selector/pkg/core/model"
)

const defaultRecountConcurrency = 4

// CountStore defines the spreadsheet operations needed to recompute shift counts
type CountStore interface {
	GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)
	UpdateValues(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error
}

// CountShifts counts the cells of the table holding exactly the user's ID, ignoring surrounding spaces
func CountShifts(table [][]interface{}, userID string) int {
	if userID == "" {
		return 0
	}
	count := 0
	for _, row := range table {
		for _, cell := range row {
			if strings.TrimSpace(directory.CellString(cell)) == userID {
				count++
			}
		}
	}
	return count
}

// CountAll counts the shifts of every ID in a single pass over the table
func CountAll(table [][]interface{}) map[string]int {
	counts := make(map[string]int)
	for _, row := range table {
		for _, cell := range row {
			if v := strings.TrimSpace(directory.CellString(cell)); v != "" {
				counts[v]++
			}
		}
	}
	return counts
}

func readSchedule(ctx context.Context, store CountStore, cfg *config.Config) ([][]interface{}, error) {
	table, err := store.GetValues(ctx, cfg.Schedule.SheetID, addressing.SheetRange(cfg.Schedule.Tab, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}
	return table, nil
}

func writeCount(ctx context.Context, store CountStore, cfg *config.Config, target model.CountTarget, count int) error {
	cell := addressing.SheetRange(cfg.Directory.Tab, addressing.CellAddress(target.Column, target.Row))
	if err := store.UpdateValues(ctx, cfg.Directory.SheetID, cell, [][]interface{}{{count}}); err != nil {
		return fmt.Errorf("failed to write shift count for %s: %w", target.UserID, err)
	}
	return nil
}

// RecomputeShiftCount scans the whole schedule and writes the user's shift count into the directory
func RecomputeShiftCount(ctx context.Context, store CountStore, cfg *config.Config, logger *zap.Logger, target model.CountTarget) (int, error) {
	table, err := readSchedule(ctx, store, cfg)
	if err != nil {
		return 0, err
	}

	count := CountShifts(table, target.UserID)
	if err := writeCount(ctx, store, cfg, target, count); err != nil {
		return 0, err
	}

	logger.Debug("Shift count updated", zap.String("user", target.UserID), zap.Int("count", count))
	return count, nil
}

// RecountAll reads the schedule once and rewrites the shift count of every active user
func RecountAll(ctx context.Context, store CountStore, loader DirectoryLoader, cfg *config.Config, logger *zap.Logger) (map[string]int, error) {
	dir, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	col, err := directory.ShiftsColumn(dir)
	if err != nil {
		return nil, err
	}

	table, err := readSchedule(ctx, store, cfg)
	if err != nil {
		return nil, err
	}
	counts := CountAll(table)

	limit := cfg.Recount.Workers
	if limit <= 0 {
		limit = defaultRecountConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	written := make(map[string]int)

	for _, user := range dir.Users {
		if user.IsCanceled || user.ID == "" {
			continue
		}
		target := model.CountTarget{UserID: user.ID, Column: col, Row: user.RowIndex}
		count := counts[user.ID]

		g.Go(func() error {
			if err := writeCount(gctx, store, cfg, target, count); err != nil {
				return err
			}
			mu.Lock()
			written[target.UserID] = count
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return written, err
	}

	logger.Info("Shift counts reconciled", zap.Int("users", len(written)))
	return written, nil
}
