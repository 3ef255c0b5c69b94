// Package calendar groups the per-day calendar entries by year and month and
// maps traffic volumes to heatmap intensity levels.
package calendar

import (
	"sort"

	"nlbwdash/internal/models"
)

const (
	GiB = 1 << 30

	level1Limit = 1 * GiB
	level2Limit = 5 * GiB
	level3Limit = 15 * GiB
)

// Mode selects which entries a year bucket holds.
type Mode int

const (
	// ActiveDays keeps only entries with traffic.
	ActiveDays Mode = iota
	// AllDays keeps every entry; Cell.Value becomes a 0/1 presence flag and
	// Cell.Traffic carries the volume.
	AllDays
)

type Cell struct {
	Date       string `json:"date"`
	Value      uint64 `json:"value"`
	Traffic    uint64 `json:"traffic"`
	Downloaded uint64 `json:"downloaded"`
	Uploaded   uint64 `json:"uploaded"`
	Level      int    `json:"level"`
}

type YearBucket struct {
	Year  string `json:"year"`
	Cells []Cell `json:"cells"`
}

type Totals struct {
	Downloaded uint64 `json:"downloaded"`
	Uploaded   uint64 `json:"uploaded"`
}

func (t Totals) Total() uint64 { return t.Downloaded + t.Uploaded }

// Bucketer is the capability the calendar views are built on.
type Bucketer interface {
	ByYear(entries []models.CalendarEntry, mode Mode) []YearBucket
	ByMonth(entries []models.CalendarEntry) map[string]Totals
	ByYearTotals(entries []models.CalendarEntry) map[string]Totals
	ColorLevel(value uint64) int
}

// Service is the default Bucketer.
type Service struct{}

var _ Bucketer = Service{}

// ColorLevel maps a traffic volume to 0..4 against fixed GiB thresholds.
func ColorLevel(value uint64) int {
	switch {
	case value == 0:
		return 0
	case value < level1Limit:
		return 1
	case value < level2Limit:
		return 2
	case value < level3Limit:
		return 3
	default:
		return 4
	}
}

func (Service) ColorLevel(value uint64) int { return ColorLevel(value) }

// valid drops entries too short to carry a YYYY-MM-DD date.
func valid(e models.CalendarEntry) bool {
	return len(e.Date) >= 10
}

func (Service) ByYear(entries []models.CalendarEntry, mode Mode) []YearBucket {
	byYear := make(map[string][]Cell)
	for _, e := range entries {
		if !valid(e) {
			continue
		}
		if mode == ActiveDays && e.Value == 0 {
			continue
		}

		cell := Cell{
			Date:       e.Date,
			Value:      e.Value,
			Traffic:    e.Value,
			Downloaded: e.Downloaded,
			Uploaded:   e.Uploaded,
			Level:      ColorLevel(e.Value),
		}
		if mode == AllDays {
			cell.Value = 0
			if e.Value > 0 {
				cell.Value = 1
			}
		}

		year := e.Date[:4]
		byYear[year] = append(byYear[year], cell)
	}

	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)

	buckets := make([]YearBucket, 0, len(years))
	for _, y := range years {
		cells := byYear[y]
		sort.SliceStable(cells, func(i, j int) bool {
			return cells[i].Date < cells[j].Date
		})
		buckets = append(buckets, YearBucket{Year: y, Cells: cells})
	}
	return buckets
}

func (Service) ByMonth(entries []models.CalendarEntry) map[string]Totals {
	return sumBy(entries, 7)
}

func (Service) ByYearTotals(entries []models.CalendarEntry) map[string]Totals {
	return sumBy(entries, 4)
}

func sumBy(entries []models.CalendarEntry, prefix int) map[string]Totals {
	out := make(map[string]Totals)
	for _, e := range entries {
		if !valid(e) {
			continue
		}
		key := e.Date[:prefix]
		t := out[key]
		t.Downloaded += e.Downloaded
		t.Uploaded += e.Uploaded
		out[key] = t
	}
	return out
}

// Summary feeds the cards above the heatmaps.
type Summary struct {
	ActiveDays   int    `json:"active_days"`
	TotalTraffic uint64 `json:"total_traffic"`
	// AverageTraffic is per active day.
	AverageTraffic uint64 `json:"average_traffic"`
	First          string `json:"first,omitempty"`
	Last           string `json:"last,omitempty"`
}

func Summarize(entries []models.CalendarEntry) Summary {
	var s Summary
	for _, e := range entries {
		if !valid(e) || e.Value == 0 {
			continue
		}
		s.ActiveDays++
		s.TotalTraffic += e.Value
		if s.First == "" || e.Date < s.First {
			s.First = e.Date
		}
		if e.Date > s.Last {
			s.Last = e.Date
		}
	}
	if s.ActiveDays > 0 {
		s.AverageTraffic = s.TotalTraffic / uint64(s.ActiveDays)
	}
	return s
}
