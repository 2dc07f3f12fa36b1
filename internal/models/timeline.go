package models

import (
	"regexp"
	"time"
)

// DateLayout is the calendar-date wire format for the timeline.
const DateLayout = "2006-01-02"

var dateFormat = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// ValidDate reports whether raw is a YYYY-MM-DD calendar date.
func ValidDate(raw string) bool {
	if !dateFormat.MatchString(raw) {
		return false
	}
	_, err := time.Parse(DateLayout, raw)
	return err == nil
}

// Timeline is the singleton submission window. New submissions are only
// accepted while "today" falls inside [StartDate, EndDate].
type Timeline struct {
	ID        string    `db:"id" json:"id"`
	StartDate string    `db:"start_date" json:"startDate"`
	EndDate   string    `db:"end_date" json:"endDate"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether the given instant's calendar date falls
// inside the window, inclusive on both ends.
func (t Timeline) Contains(now time.Time) bool {
	day := now.Format(DateLayout)
	return day >= t.StartDate && day <= t.EndDate
}
