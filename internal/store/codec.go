package store

import (
	"database/sql"
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Supported epoch-day range: 0001-01-01 through 9999-12-31.
const (
	MinEpochDay int64 = -719162
	MaxEpochDay int64 = 2932896
)

// Date is a calendar date with no time zone. Dates are stored as the
// number of days since 1970-01-01.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalized date for year, month, day.
// Out-of-range values roll over the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// DateFromEpochDay is the inverse of Date.EpochDay.
func DateFromEpochDay(n int64) Date {
	return DateOf(time.Unix(n*secondsPerDay, 0).UTC())
}

// ParseDate parses an ISO-8601 date ("2006-01-02").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// EpochDay returns the number of days between 1970-01-01 and d.
func (d Date) EpochDay() int64 {
	// Midnight UTC is an exact multiple of a day, so the division never truncates.
	return d.midnight().Unix() / secondsPerDay
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateFromEpochDay(d.EpochDay() + int64(n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.EpochDay() < other.EpochDay() }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.EpochDay() > other.EpochDay() }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// String returns d in ISO-8601 form.
func (d Date) String() string {
	return d.midnight().Format(time.DateOnly)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// encodeDate maps a date to its stored epoch day.
func encodeDate(d Date) int64 {
	return d.EpochDay()
}

// decodeDate maps a stored epoch day back to a date. The date columns are
// NOT NULL, so a NULL or out-of-range value is a consistency violation,
// never "not found".
func decodeDate(v sql.NullInt64, table, column string) (Date, error) {
	if !v.Valid {
		return Date{}, newConsistencyError(table, column, "non-nullable date column is NULL")
	}
	if v.Int64 < MinEpochDay || v.Int64 > MaxEpochDay {
		return Date{}, newConsistencyError(table, column, fmt.Sprintf("epoch day %d out of range", v.Int64))
	}
	return DateFromEpochDay(v.Int64), nil
}

func encodeBool(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func decodeBool(v sql.NullInt64, table, column string) (bool, error) {
	if !v.Valid {
		return false, newConsistencyError(table, column, "non-nullable boolean column is NULL")
	}
	switch v.Int64 {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, newConsistencyError(table, column, fmt.Sprintf("boolean column holds %d", v.Int64))
	}
}
