package db

// ClaimEvent records one successful claim or release of a shift
type ClaimEvent struct {
	ID      string `ssql_header:"id"`
	ShiftID string `ssql_header:"shift_id"`
	UserID  string `ssql_header:"user_id"`
	Action  string `ssql_header:"action"`
	At      string `ssql_header:"at"` // RFC3339, UTC
}
