package primitives

import (
	"fmt"
	"time"
)

// dateLayout is the wire format for dates: ISO 8601 calendar dates.
const dateLayout = "2006-01-02"

// Date is a day-granular calendar date with no time zone component.
// It is stored as days since the Unix epoch so that comparison is a plain
// integer comparison.
type Date int64

// NewDate constructs a Date from a calendar year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date(t.Unix() / secondsPerDay)
}

// ParseDate parses a Date from its "YYYY-MM-DD" representation.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(t.Unix() / secondsPerDay), nil
}

const secondsPerDay = 24 * 60 * 60

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	return d < other
}

// After reports whether d falls strictly after other.
func (d Date) After(other Date) bool {
	return d > other
}

// Time returns the date as a time.Time at midnight UTC.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// String returns the date in "YYYY-MM-DD" form.
func (d Date) String() string {
	return d.Time().Format(dateLayout)
}
