// Package addressing converts zero-based grid positions into A1 notation
package addressing

import (
	"strconv"
	"strings"
)

const alphabetSize = 26

// ColumnLetters returns the spreadsheet column letters for a zero-based column index
// (0 -> "A", 25 -> "Z", 26 -> "AA", 702 -> "AAA"). Negative indexes yield "".
func ColumnLetters(col int) string {
	var letters []byte
	for n := col; n >= 0; n = n/alphabetSize - 1 {
		letters = append([]byte{byte('A' + n%alphabetSize)}, letters...)
	}
	return string(letters)
}

// CellAddress returns the A1 address of a zero-based (col, row) pair
func CellAddress(col, row int) string {
	return ColumnLetters(col) + strconv.Itoa(row+1)
}

// SheetRange prefixes an A1 range with its tab name, quoting the tab when needed
func SheetRange(tab, rng string) string {
	if tab == "" {
		return rng
	}
	if needsQuoting(tab) {
		tab = "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	}
	if rng == "" {
		return tab
	}
	return tab + "!" + rng
}

func needsQuoting(tab string) bool {
	for _, r := range tab {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return true
		}
	}
	return false
}
