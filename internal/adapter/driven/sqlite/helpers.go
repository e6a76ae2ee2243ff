package sqlite

import (
	"fmt"
	"time"
)

// scanner abstracts *sql.Row and *sql.Rows for shared scan functions.
type scanner interface {
	Scan(dest ...any) error
}

// parseTime parses the timestamp formats SQLite may hand back. An empty
// string maps to the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
