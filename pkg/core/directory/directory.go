// Package directory reads the users sheet into a snapshot keyed by credential
package directory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/core/addressing"
	"github.com/jakechorley/shift-selector/pkg/core/model"
)

// Header labels of the directory sheet
const (
	ColRegID     = "Reg ID"
	ColKey       = "Key"
	ColFirstName = "First name"
	ColLastName  = "Last name"
	ColCaptain   = "Teamcaptain"
	ColCanceled  = "Canceled"
	ColPassword  = "PWD"
	ColShifts    = "Shifts"
)

// Expected column names in the directory sheet
var requiredColumns = []string{
	ColRegID,
	ColKey,
	ColFirstName,
	ColLastName,
	ColCaptain,
	ColCanceled,
	ColPassword,
	ColShifts,
}

// SheetReader reads a range of cells
type SheetReader interface {
	GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)
}

// Loader produces a directory snapshot
type Loader interface {
	Load(ctx context.Context) (*model.Directory, error)
}

// Resolver fetches and parses the directory sheet on every call
type Resolver struct {
	reader SheetReader
	cfg    config.DirectoryConfig
	logger *zap.Logger
}

// NewResolver creates a resolver for the configured directory sheet
func NewResolver(reader SheetReader, cfg config.DirectoryConfig, logger *zap.Logger) *Resolver {
	return &Resolver{reader: reader, cfg: cfg, logger: logger}
}

// Load fetches the directory sheet and builds a snapshot
func (r *Resolver) Load(ctx context.Context) (*model.Directory, error) {
	values, err := r.reader.GetValues(ctx, r.cfg.SheetID, addressing.SheetRange(r.cfg.Tab, r.cfg.Range))
	if err != nil {
		return nil, fmt.Errorf("failed to get directory data: %w", err)
	}

	dir, err := Parse(values)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Directory loaded", zap.Int("users", len(dir.Users)))
	return dir, nil
}

// Parse converts raw sheet rows into a directory snapshot. Row 0 is the header.
// Every required label must be present in the header.
func Parse(raw [][]interface{}) (*model.Directory, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: directory sheet is empty", model.ErrConfiguration)
	}

	columns := make(map[string]int)
	for i, cell := range raw[0] {
		label := strings.TrimSpace(CellString(cell))
		if _, seen := columns[label]; label != "" && !seen {
			columns[label] = i
		}
	}

	var missing []string
	for _, label := range requiredColumns {
		if _, ok := columns[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns in header: %s",
			model.ErrConfiguration, strings.Join(missing, ", "))
	}

	getField := func(label string, row []interface{}) string {
		index := columns[label]
		if index >= len(row) {
			return ""
		}
		return strings.TrimSpace(CellString(row[index]))
	}

	users := make([]*model.UserRecord, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := raw[i]

		id := getField(ColRegID, row)
		key := getField(ColKey, row)
		// Skip blank rows
		if id == "" && key == "" {
			continue
		}

		users = append(users, &model.UserRecord{
			Key:        key,
			ID:         id,
			FirstName:  getField(ColFirstName, row),
			LastName:   getField(ColLastName, row),
			IsCaptain:  parseFlag(getField(ColCaptain, row)),
			IsCanceled: parseFlag(getField(ColCanceled, row)),
			Password:   getField(ColPassword, row),
			RowIndex:   i,
		})
	}

	return model.NewDirectory(users, columns), nil
}

// ShiftsColumn returns the zero-based column holding shift counts
func ShiftsColumn(dir *model.Directory) (int, error) {
	col, ok := dir.Columns[ColShifts]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q column", model.ErrConfiguration, ColShifts)
	}
	return col, nil
}

// CountTarget returns where the user's shift count is written
func CountTarget(dir *model.Directory, user *model.UserRecord) (model.CountTarget, error) {
	col, err := ShiftsColumn(dir)
	if err != nil {
		return model.CountTarget{}, err
	}
	return model.CountTarget{UserID: user.ID, Column: col, Row: user.RowIndex}, nil
}

// CellString renders a cell value returned by the Sheets API as text
func CellString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "x", "y", "yes", "ja", "j", "true", "1", "wahr":
		return true
	}
	return false
}
