package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/core/directory"
	"github.com/jakechorley/shift-selector/pkg/core/model"
	"github.com/jakechorley/shift-selector/pkg/db"
)

var (
	yellow = &model.Color{Red: 1, Green: 1, Blue: 0}
	grey   = &model.Color{Red: 0.8, Green: 0.8, Blue: 0.8}
)

func testConfig() *config.Config {
	return &config.Config{
		Directory: config.DirectoryConfig{SheetID: "dir-sheet", Tab: "users"},
		Schedule: config.ScheduleConfig{
			SheetID:         "schedule-sheet",
			Tab:             "schedule",
			ClaimableColors: []string{"#ffff00"},
		},
	}
}

// testDirectory has the Shifts count in column H
func testDirectory() *model.Directory {
	dir, err := directory.Parse([][]interface{}{
		{"Reg ID", "Key", "First name", "Last name", "Teamcaptain", "Canceled", "PWD", "Shifts"},
		{"1-alice", "key-alice", "Alice", "Archer", "x", "", "pw-alice", ""},
		{"1-bob", "key-bob", "Bob", "Baker", "", "", "pw-bob", ""},
		{"1-carol", "key-carol", "Carol", "Cook", "", "x", "pw-carol", ""},
		{"2-dave", "key-dave", "Dave", "Dyer", "yes", "", "pw-dave", ""},
		{"2-erin", "", "Erin", "Evans", "", "", "pw-erin", ""},
	})
	if err != nil {
		panic(err)
	}
	return dir
}

func authFor(dir *model.Directory, userID string) *AuthResult {
	return &AuthResult{User: dir.ByID[userID], Directory: dir}
}

type staticLoader struct {
	dir *model.Directory
	err error
}

func (l *staticLoader) Load(ctx context.Context) (*model.Directory, error) {
	return l.dir, l.err
}

// mockGrid is an in-memory spreadsheet keyed by tab and A1 address
type mockGrid struct {
	mu         sync.Mutex
	cells      map[string]map[string]string
	background map[string]*model.Color
	getErr     error
	updateErr  error
	updates    []string
}

func newMockGrid() *mockGrid {
	return &mockGrid{
		cells:      make(map[string]map[string]string),
		background: make(map[string]*model.Color),
	}
}

func (g *mockGrid) set(tab, addr, value string) {
	if g.cells[tab] == nil {
		g.cells[tab] = make(map[string]string)
	}
	g.cells[tab][addr] = value
}

func (g *mockGrid) get(tab, addr string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cells[tab][addr]
}

// shift marks a schedule cell as claimable
func (g *mockGrid) shift(addr string, value string) {
	g.background[addr] = yellow
	g.set("schedule", addr, value)
}

func splitRange(sheetRange string) (string, string) {
	tab, addr, found := strings.Cut(sheetRange, "!")
	if !found {
		return sheetRange, ""
	}
	return tab, strings.ToUpper(addr)
}

func parseA1(addr string) (col, row int) {
	i := 0
	col = 0
	for i < len(addr) && addr[i] >= 'A' && addr[i] <= 'Z' {
		col = col*26 + int(addr[i]-'A'+1)
		i++
	}
	row, _ = strconv.Atoi(addr[i:])
	return col - 1, row - 1
}

func (g *mockGrid) GetValues(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}

	tab, addr := splitRange(sheetRange)
	if addr != "" {
		v := g.cells[tab][addr]
		if v == "" {
			return nil, nil
		}
		return [][]interface{}{{v}}, nil
	}

	var table [][]interface{}
	for a, v := range g.cells[tab] {
		col, row := parseA1(a)
		for len(table) <= row {
			table = append(table, nil)
		}
		for len(table[row]) <= col {
			table[row] = append(table[row], "")
		}
		table[row][col] = v
	}
	return table, nil
}

func (g *mockGrid) GetCell(ctx context.Context, spreadsheetID, sheetRange string) (*model.ShiftCell, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	tab, addr := splitRange(sheetRange)
	if addr == "" {
		return nil, errors.New("range is not a cell")
	}
	return &model.ShiftCell{Value: g.cells[tab][addr], Background: g.background[addr]}, nil
}

func (g *mockGrid) UpdateValues(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	tab, addr := splitRange(sheetRange)
	g.set(tab, addr, directory.CellString(values[0][0]))
	g.updates = append(g.updates, sheetRange)
	return nil
}

type mockRecounts struct {
	mu      sync.Mutex
	targets []model.CountTarget
	reject  bool
}

func (m *mockRecounts) Enqueue(target model.CountTarget) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject {
		return false
	}
	m.targets = append(m.targets, target)
	return true
}

type mockJournal struct {
	mu     sync.Mutex
	events []db.ClaimEvent
	err    error
}

func (m *mockJournal) AppendClaimEvent(ctx context.Context, event *db.ClaimEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}
