// Package daterange implements the inclusive calendar-day ranges that scope
// every query against the bandwidth API.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// ISO is the layout of every date exchanged with the API.
const ISO = "2006-01-02"

var ErrInverted = errors.New("range start is after range end")

// Range is an inclusive pair of calendar days. Both ends are normalized to
// 00:00:00 UTC of the calendar day they name.
type Range struct {
	Start time.Time
	End   time.Time
}

// Day returns the calendar day of t (in t's own location) as midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// New builds a range from two instants, rejecting start > end.
func New(start, end time.Time) (Range, error) {
	r := Range{Start: Day(start), End: Day(end)}
	if r.Start.After(r.End) {
		return Range{}, fmt.Errorf("%s > %s: %w", r.Start.Format(ISO), r.End.Format(ISO), ErrInverted)
	}
	return r, nil
}

// Parse builds a range from two date strings accepted by ParseDate.
func Parse(from, to string) (Range, error) {
	start, err := ParseDate(from)
	if err != nil {
		return Range{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := ParseDate(to)
	if err != nil {
		return Range{}, fmt.Errorf("invalid end date: %w", err)
	}
	return New(start, end)
}

// ParseDate accepts YYYY-MM-DD, DD.MM.YYYY and DD.MM.YY.
func ParseDate(s string) (time.Time, error) {
	formats := []string{
		ISO,
		"02.01.2006",
		"02.01.06",
	}

	var parseErr error
	for _, format := range formats {
		t, err := time.ParseInLocation(format, s, time.UTC)
		if err == nil {
			return t, nil
		}
		parseErr = err
	}
	return time.Time{}, fmt.Errorf("invalid date format, please use YYYY-MM-DD or DD.MM.YYYY: %w", parseErr)
}

// LastDays returns the n days ending with the day of now. n < 1 is treated as 1.
func LastDays(now time.Time, n int) Range {
	if n < 1 {
		n = 1
	}
	end := Day(now)
	return Range{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// Days is the number of calendar days covered, ends included.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Dates lists every day of the range as an ISO string, ascending.
func (r Range) Dates() []string {
	dates := make([]string, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(ISO))
	}
	return dates
}

// ContainsDate reports whether an ISO date string falls inside the range.
// ISO strings order lexically, so no parsing is needed.
func (r Range) ContainsDate(iso string) bool {
	return iso >= r.FromISO() && iso <= r.ToISO()
}

// SplitAt cuts the range into [Start, at-1] and [at, End]. at must lie in
// (Start, End]; otherwise ok is false.
func (r Range) SplitAt(at time.Time) (left, right Range, ok bool) {
	at = Day(at)
	if !at.After(r.Start) || at.After(r.End) {
		return Range{}, Range{}, false
	}
	left = Range{Start: r.Start, End: at.AddDate(0, 0, -1)}
	right = Range{Start: at, End: r.End}
	return left, right, true
}

// Previous returns the range of the same length that ends the day before r starts.
func (r Range) Previous() Range {
	n := r.Days()
	end := r.Start.AddDate(0, 0, -1)
	return Range{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

func (r Range) FromISO() string { return r.Start.Format(ISO) }
func (r Range) ToISO() string   { return r.End.Format(ISO) }

func (r Range) String() string {
	return r.FromISO() + " to " + r.ToISO()
}

// Equal compares two ranges day by day.
func (r Range) Equal(other Range) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}
