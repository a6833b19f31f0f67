package repository

import (
	"database/sql"
	"time"
)

// timeLayout is the canonical DATETIME representation used in every
// table.  All timestamps are written and compared as UTC strings in this
// layout so that the same queries run against MySQL in production and
// sqlite in tests; lexicographic order equals chronological order.
const timeLayout = "2006-01-02 15:04:05"

// fmtTime renders a timestamp in the canonical column format.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime converts a stored column value back into a UTC time.Time.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Some drivers hand back RFC3339 when the value was bound as
		// time.Time; accept it as a fallback.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// parseNullTime converts a nullable DATETIME column into *time.Time.
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
