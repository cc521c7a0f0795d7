package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UserRecord is one registered volunteer, read from a row of the directory sheet
type UserRecord struct {
	Key        string // Bearer credential
	ID         string // Registration ID, "{teamId}-{member}"
	FirstName  string
	LastName   string
	IsCaptain  bool
	IsCanceled bool
	Password   string
	RowIndex   int // Zero-based row in the directory table; the header is row 0
}

// TeamID returns the team part of the registration ID
func (u *UserRecord) TeamID() string {
	teamID, _, _ := strings.Cut(u.ID, "-")
	return teamID
}

// MemberName returns the part of the registration ID after the team prefix
func (u *UserRecord) MemberName() string {
	_, member, found := strings.Cut(u.ID, "-")
	if !found {
		return u.ID
	}
	return member
}

// Directory is a snapshot of the directory sheet
type Directory struct {
	Users   []*UserRecord          // Sheet order
	ByKey   map[string]*UserRecord // Keyed by credential token
	ByID    map[string]*UserRecord // Keyed by registration ID
	Columns map[string]int         // Header label -> zero-based column index
}

// NewDirectory indexes the given users
func NewDirectory(users []*UserRecord, columns map[string]int) *Directory {
	d := &Directory{
		Users:   users,
		ByKey:   make(map[string]*UserRecord, len(users)),
		ByID:    make(map[string]*UserRecord, len(users)),
		Columns: columns,
	}
	for _, u := range users {
		if u.Key != "" {
			d.ByKey[u.Key] = u
		}
		if u.ID != "" {
			d.ByID[u.ID] = u
		}
	}
	return d
}

// ShiftCell is a single schedule cell with the data needed to decide whether it can be claimed
type ShiftCell struct {
	ID         string
	Value      string
	Background *Color // nil when the cell has no explicit background
}

// Claimed reports whether somebody holds the shift
func (c *ShiftCell) Claimed() bool {
	return c.Value != ""
}

// Color is an RGB colour with channels in the 0..1 range, as used by the Sheets API
type Color struct {
	Red   float64
	Green float64
	Blue  float64
}

// Hex formats the colour as "#rrggbb"
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.Red), channel(c.Green), channel(c.Blue))
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// ParseHexColor parses "#rrggbb" (the leading "#" is optional)
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q: expected 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Color{
		Red:   float64((v>>16)&0xff) / 255,
		Green: float64((v>>8)&0xff) / 255,
		Blue:  float64(v&0xff) / 255,
	}, nil
}

// Palette is a set of colours compared by their hex form
type Palette map[string]struct{}

// NewPalette parses hex colours into a palette
func NewPalette(hexColors []string) (Palette, error) {
	p := make(Palette, len(hexColors))
	for _, h := range hexColors {
		c, err := ParseHexColor(h)
		if err != nil {
			return nil, err
		}
		p[c.Hex()] = struct{}{}
	}
	return p, nil
}

// Contains reports whether c is in the palette. A nil colour never matches.
func (p Palette) Contains(c *Color) bool {
	if c == nil {
		return false
	}
	_, ok := p[c.Hex()]
	return ok
}

// ClaimAction is the transition recorded in the claim journal
type ClaimAction string

const (
	ActionClaim   ClaimAction = "claim"
	ActionRelease ClaimAction = "release"
)

// CountTarget locates the directory cell holding a user's shift count
type CountTarget struct {
	UserID string
	Column int // Zero-based column of the shift count
	Row    int // Zero-based row of the user in the directory table
}
