package daterange

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustParse(t *testing.T, from, to string) Range {
	t.Helper()
	r, err := Parse(from, to)
	if err != nil {
		t.Fatalf("Parse(%s, %s) failed: %v", from, to, err)
	}
	return r
}

func TestParseDate_Formats(t *testing.T) {
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-07", "07.03.2024", "07.03.24"} {
		got, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", s, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v; want %v", s, got, want)
		}
	}

	if _, err := ParseDate("March 7"); err == nil {
		t.Errorf("ParseDate accepted an unsupported format")
	}
}

func TestNew_Inverted(t *testing.T) {
	_, err := Parse("2024-01-02", "2024-01-01")
	if !errors.Is(err, ErrInverted) {
		t.Fatalf("err = %v; want ErrInverted", err)
	}

	r := mustParse(t, "2024-01-01", "2024-01-01")
	if r.Days() != 1 {
		t.Errorf("single-day range has %d days", r.Days())
	}
}

func TestRange_Dates(t *testing.T) {
	r := mustParse(t, "2024-02-27", "2024-03-02")
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}
	if got := r.Dates(); !reflect.DeepEqual(got, want) {
		t.Errorf("Dates() = %v; want %v", got, want)
	}
	if r.Days() != 5 {
		t.Errorf("Days() = %d; want 5", r.Days())
	}
}

func TestRange_ContainsDate(t *testing.T) {
	r := mustParse(t, "2024-01-10", "2024-01-20")

	if !r.ContainsDate("2024-01-10") || !r.ContainsDate("2024-01-20") {
		t.Errorf("ContainsDate excludes the range ends")
	}
	if r.ContainsDate("2024-01-09") || r.ContainsDate("2024-01-21") {
		t.Errorf("ContainsDate includes days outside the range")
	}
}

func TestRange_SplitAt(t *testing.T) {
	r := mustParse(t, "2024-01-01", "2024-01-10")
	left, right, ok := r.SplitAt(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatalf("SplitAt inside the range reported !ok")
	}
	if left.ToISO() != "2024-01-03" || right.FromISO() != "2024-01-04" {
		t.Errorf("split = %s | %s", left, right)
	}
	if left.Days()+right.Days() != r.Days() {
		t.Errorf("split lost days: %d + %d != %d", left.Days(), right.Days(), r.Days())
	}

	if _, _, ok := r.SplitAt(r.Start); ok {
		t.Errorf("SplitAt(Start) should not split")
	}
}

func TestRange_Previous(t *testing.T) {
	r := mustParse(t, "2024-03-01", "2024-03-31")
	prev := r.Previous()
	if prev.ToISO() != "2024-02-29" {
		t.Errorf("Previous().End = %s; want 2024-02-29", prev.ToISO())
	}
	if prev.Days() != r.Days() {
		t.Errorf("Previous() has %d days; want %d", prev.Days(), r.Days())
	}
}

func TestLastDays(t *testing.T) {
	now := time.Date(2024, 5, 31, 18, 0, 0, 0, time.UTC)
	r := LastDays(now, 30)
	if r.FromISO() != "2024-05-02" || r.ToISO() != "2024-05-31" {
		t.Errorf("LastDays = %s", r)
	}
}
