package calendar

import (
	"nlbwdash/internal/models"
)

// HeatmapYear is one row of the desktop heatmap.
type HeatmapYear struct {
	Year   string `json:"year"`
	Cells  []Cell `json:"cells"`
	Totals Totals `json:"totals"`
}

// HeatmapView lays out only the days with traffic, one block per year.
type HeatmapView struct {
	Bucketer Bucketer
}

func (v HeatmapView) Build(entries []models.CalendarEntry) []HeatmapYear {
	years := v.Bucketer.ByYearTotals(entries)
	var out []HeatmapYear
	for _, b := range v.Bucketer.ByYear(entries, ActiveDays) {
		out = append(out, HeatmapYear{Year: b.Year, Cells: b.Cells, Totals: years[b.Year]})
	}
	return out
}

type Month struct {
	Key    string `json:"key"` // YYYY-MM
	Days   []Cell `json:"days"`
	Totals Totals `json:"totals"`
}

type MonthGridYear struct {
	Year   string  `json:"year"`
	Months []Month `json:"months"`
	Totals Totals  `json:"totals"`
}

// MonthGridView lays out every day present in the input, grouped into the
// twelve months of each year. Months without entries stay empty.
type MonthGridView struct {
	Bucketer Bucketer
}

func (v MonthGridView) Build(entries []models.CalendarEntry) []MonthGridYear {
	months := v.Bucketer.ByMonth(entries)
	years := v.Bucketer.ByYearTotals(entries)

	var out []MonthGridYear
	for _, b := range v.Bucketer.ByYear(entries, AllDays) {
		grid := MonthGridYear{Year: b.Year, Totals: years[b.Year], Months: make([]Month, 12)}
		for i := range grid.Months {
			key := b.Year + "-" + twoDigits(i+1)
			grid.Months[i] = Month{Key: key, Totals: months[key]}
		}
		for _, c := range b.Cells {
			m := monthIndex(c.Date)
			if m < 0 {
				continue
			}
			grid.Months[m].Days = append(grid.Months[m].Days, c)
		}
		out = append(out, grid)
	}
	return out
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

// monthIndex parses the MM of a YYYY-MM-DD date into 0..11, or -1.
func monthIndex(date string) int {
	if len(date) < 7 {
		return -1
	}
	hi, lo := date[5], date[6]
	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return -1
	}
	m := int(hi-'0')*10 + int(lo-'0')
	if m < 1 || m > 12 {
		return -1
	}
	return m - 1
}
