package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - UTC calendar day (the unit of aggregation)
// =============================================================================

const DayLayout = "2006-01-02"

// Day is a UTC calendar day. The zero value is the zero day and reports IsZero.
type Day struct {
	t time.Time
}

// NewDay builds a day from calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates an instant to its UTC calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return NewDay(u.Year(), u.Month(), u.Day())
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DayOf(t), nil
}

// Today returns the current UTC day.
func Today() Day { return DayOf(time.Now()) }

// Start is midnight UTC.
func (d Day) Start() time.Time { return d.t }

// End is the last representable instant of the day.
func (d Day) End() time.Time { return d.t.AddDate(0, 0, 1).Add(-time.Nanosecond) }

func (d Day) Time() time.Time           { return d.t }
func (d Day) IsZero() bool              { return d.t.IsZero() }
func (d Day) String() string            { return d.t.Format(DayLayout) }
func (d Day) AddDays(n int) Day         { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) Before(o Day) bool         { return d.t.Before(o.t) }
func (d Day) After(o Day) bool          { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool          { return d.t.Equal(o.t) }
func (d Day) BeforeOrEqual(o Day) bool  { return !d.After(o) }
func (d Day) Weekday() time.Weekday     { return d.t.Weekday() }
func (d Day) Contains(t time.Time) bool { return !t.Before(d.Start()) && !t.After(d.End()) }

// MarshalText encodes as YYYY-MM-DD.
func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes YYYY-MM-DD.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DAY RANGE - Inclusive [Start, End]
// =============================================================================

type DayRange struct {
	Start Day
	End   Day
}

// NewDayRange validates that both ends are set and ordered.
func NewDayRange(start, end Day) (DayRange, error) {
	if start.IsZero() || end.IsZero() {
		return DayRange{}, ErrMissingDate
	}
	if start.After(end) {
		return DayRange{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start, end)
	}
	return DayRange{Start: start, End: end}, nil
}

// Contains returns true if day is within [Start, End].
func (r DayRange) Contains(d Day) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Len is the number of days in the range.
func (r DayRange) Len() int {
	if r.Start.After(r.End) {
		return 0
	}
	return int(r.End.t.Sub(r.Start.t).Hours()/24) + 1
}

func (r DayRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// Iter returns a lazy iterator over the days of the range. Nothing is
// materialized, so arbitrarily long ranges cost constant memory.
func (r DayRange) Iter() *DayIterator {
	return &DayIterator{rng: r, next: r.Start}
}

// DayIterator walks a DayRange one day at a time. It is restartable via Reset.
type DayIterator struct {
	rng  DayRange
	next Day
}

// Next returns the next day and true, or the zero day and false when done.
func (it *DayIterator) Next() (Day, bool) {
	if it.next.IsZero() || it.next.After(it.rng.End) {
		return Day{}, false
	}
	d := it.next
	it.next = it.next.AddDays(1)
	return d, true
}

// Reset rewinds the iterator to the start of the range.
func (it *DayIterator) Reset() { it.next = it.rng.Start }

// =============================================================================
// CALENDAR WINDOWS - Used by rollups
// =============================================================================

// WeekOf returns the Monday-Sunday week containing d.
func WeekOf(d Day) DayRange {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDays(-offset)
	return DayRange{Start: start, End: start.AddDays(6)}
}

// MonthOf returns the calendar month containing d.
func MonthOf(d Day) DayRange {
	start := NewDay(d.t.Year(), d.t.Month(), 1)
	end := Day{t: start.t.AddDate(0, 1, -1)}
	return DayRange{Start: start, End: end}
}
