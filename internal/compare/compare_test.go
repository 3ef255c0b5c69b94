package compare

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		v1, v2 float64
		want   float64
	}{
		{0, 0, 0},
		{0, 1, 100},
		{0, 1e12, 100},
		{1000, 1000, 0},
		{1000, 1500, 50},
		{1000, 500, -50},
		{200, 0, -100},
	}
	for _, tt := range tests {
		if got := PercentChange(tt.v1, tt.v2); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PercentChange(%v, %v) = %v; want %v", tt.v1, tt.v2, got, tt.want)
		}
	}
}

type fakeSummaries map[string]*models.Summary

func (f fakeSummaries) Summary(ctx context.Context, r daterange.Range) (*models.Summary, error) {
	s, ok := f[r.FromISO()]
	if !ok {
		return nil, errors.New("no data")
	}
	return s, nil
}

func TestComparator_Compare(t *testing.T) {
	p1, _ := daterange.Parse("2024-01-01", "2024-01-31")
	p2, _ := daterange.Parse("2024-02-01", "2024-02-29")
	src := fakeSummaries{
		"2024-01-01": {TotalDownloaded: 1000, TotalUploaded: 0, Days: make([]models.DailyRecord, 31)},
		"2024-02-01": {TotalDownloaded: 1500, TotalUploaded: 100, Days: make([]models.DailyRecord, 29)},
	}

	cmp, err := NewComparator(src, zap.NewNop()).Compare(context.Background(), p1, p2)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if cmp.Downloaded.Percent != 50 {
		t.Errorf("downloaded change = %v; want 50", cmp.Downloaded.Percent)
	}
	if cmp.Uploaded.Percent != 100 {
		t.Errorf("uploaded change = %v; want 100 (zero baseline)", cmp.Uploaded.Percent)
	}
	if cmp.Total.Before != 1000 || cmp.Total.After != 1600 || math.Abs(cmp.Total.Percent-60) > 1e-9 {
		t.Errorf("total = %+v", cmp.Total)
	}
	if !cmp.Total.Increased() {
		t.Errorf("total should be an increase")
	}
	if cmp.Period1.Days != 31 || cmp.Period2.To != "2024-02-29" {
		t.Errorf("periods = %+v / %+v", cmp.Period1, cmp.Period2)
	}
}

func TestComparator_NoPartialResult(t *testing.T) {
	p1, _ := daterange.Parse("2024-01-01", "2024-01-31")
	p2, _ := daterange.Parse("2024-02-01", "2024-02-29")
	src := fakeSummaries{"2024-01-01": {TotalDownloaded: 1}}

	cmp, err := NewComparator(src, zap.NewNop()).Compare(context.Background(), p1, p2)
	if err == nil || cmp != nil {
		t.Fatalf("Compare = %v, %v; want error and no comparison", cmp, err)
	}
}
