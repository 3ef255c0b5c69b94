package calendar

import (
	"testing"

	"nlbwdash/internal/models"
)

func TestHeatmapView(t *testing.T) {
	entries := []models.CalendarEntry{
		{Date: "2024-01-01", Value: 0, Downloaded: 0},
		{Date: "2024-01-02", Value: 6 * GiB, Downloaded: 5 * GiB, Uploaded: GiB},
	}
	years := HeatmapView{Bucketer: Service{}}.Build(entries)
	if len(years) != 1 || len(years[0].Cells) != 1 {
		t.Fatalf("heatmap = %+v", years)
	}
	if years[0].Cells[0].Level != 3 {
		t.Errorf("level = %d; want 3", years[0].Cells[0].Level)
	}
	if years[0].Totals.Total() != 6*GiB {
		t.Errorf("year totals = %+v", years[0].Totals)
	}
}

func TestMonthGridView(t *testing.T) {
	entries := []models.CalendarEntry{
		{Date: "2024-01-01", Value: 0},
		{Date: "2024-01-02", Value: 10, Downloaded: 10},
		{Date: "2024-12-31", Value: 4, Uploaded: 4},
	}
	grid := MonthGridView{Bucketer: Service{}}.Build(entries)
	if len(grid) != 1 || len(grid[0].Months) != 12 {
		t.Fatalf("grid = %+v", grid)
	}

	jan := grid[0].Months[0]
	if jan.Key != "2024-01" || len(jan.Days) != 2 || jan.Totals.Downloaded != 10 {
		t.Errorf("january = %+v", jan)
	}
	if jan.Days[0].Value != 0 || jan.Days[1].Value != 1 || jan.Days[1].Traffic != 10 {
		t.Errorf("january days = %+v", jan.Days)
	}
	if dec := grid[0].Months[11]; dec.Key != "2024-12" || len(dec.Days) != 1 {
		t.Errorf("december = %+v", dec)
	}
	if len(grid[0].Months[5].Days) != 0 {
		t.Errorf("june should be empty")
	}
}
