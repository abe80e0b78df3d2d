package canvas

import (
	"fmt"
	"strings"
	"time"
)

// ParseDueAt converts a Canvas due_at timestamp into an absolute UTC
// instant. Canvas emits RFC 3339 with a trailing "Z"; an explicit
// "+00:00" offset is accepted as the same thing. Absent due dates are a
// caller concern and never reach this function.
func ParseDueAt(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty due date")
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due date %q: %w", raw, err)
	}
	return t.UTC(), nil
}
