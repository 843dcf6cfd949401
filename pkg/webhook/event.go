// Package webhook delivers calendar change notifications to user-configured
// webhook endpoints.
package webhook

import "fmt"

// Change identifies the kind of calendar mutation an event describes.
type Change string

const (
	ChangeCreated Change = "created"
	ChangeUpdated Change = "updated"
)

// CalendarEvent is the payload published on the calendar event bus and
// forwarded to webhook endpoints.
type CalendarEvent struct {
	UserID   string `json:"user_id"`
	Change   Change `json:"change"`
	Summary  string `json:"summary"`
	StartsAt string `json:"starts_at,omitempty"`
	EndsAt   string `json:"ends_at,omitempty"`
}

// Validate checks that the event carries a user and a known change kind.
func (e CalendarEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("calendar event has no user_id")
	}
	switch e.Change {
	case ChangeCreated, ChangeUpdated:
		return nil
	default:
		return fmt.Errorf("unknown calendar change %q", e.Change)
	}
}
