package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// Month identifies a calendar month. Months are always interpreted in UTC.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" key.
func ParseMonth(value string) (Month, error) {
	t, err := time.Parse(monthLayout, value)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", value, err)
	}
	return MonthOf(t), nil
}

// MonthRange enumerates every month from start to end inclusive. It returns
// nil when end is before start.
func MonthRange(start, end Month) []Month {
	if end.Before(start) {
		return nil
	}
	var months []Month
	for m := start; !end.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

// Prev returns the preceding calendar month.
func (m Month) Prev() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// String returns the sortable "YYYY-MM" key.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label returns the display form, e.g. "Jan 2025".
func (m Month) Label() string {
	return m.Start().Format("Jan 2006")
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMonth(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
