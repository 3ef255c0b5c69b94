package dashboard

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"nlbwdash/internal/aggregator"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
)

type fakeSource struct {
	mu           sync.Mutex
	calendar     []models.CalendarEntry
	calendarErr  error
	summary      *models.Summary
	timeseries   []models.TimeseriesPoint
	protocols    map[string][]models.ProtocolStat
	achievements *models.Achievements

	macs          []string
	protocolDates []string
}

func (f *fakeSource) Calendar(ctx context.Context) ([]models.CalendarEntry, error) {
	return f.calendar, f.calendarErr
}

func (f *fakeSource) Summary(ctx context.Context, r daterange.Range) (*models.Summary, error) {
	if f.summary == nil {
		return nil, errors.New("no summary")
	}
	return f.summary, nil
}

func (f *fakeSource) Timeseries(ctx context.Context, r daterange.Range, macs []string) ([]models.TimeseriesPoint, error) {
	f.mu.Lock()
	f.macs = macs
	f.mu.Unlock()
	return f.timeseries, nil
}

func (f *fakeSource) DeviceProtocols(ctx context.Context, date, mac string) ([]models.ProtocolStat, error) {
	f.mu.Lock()
	f.protocolDates = append(f.protocolDates, date)
	f.mu.Unlock()
	return f.protocols[date], nil
}

func (f *fakeSource) Achievements(ctx context.Context) (*models.Achievements, error) {
	if f.achievements == nil {
		return nil, errors.New("no achievements")
	}
	return f.achievements, nil
}

func testSummary() *models.Summary {
	return &models.Summary{
		TotalDownloaded: 1000,
		TotalUploaded:   100,
		Days: []models.DailyRecord{
			{Date: "2024-01-01", Devices: map[string]models.DeviceDayStat{
				"aa": {MAC: "aa", FriendlyName: "Laptop", Downloaded: 600, Uploaded: 10},
				"bb": {MAC: "bb", FriendlyName: "Phone", Downloaded: 100, Uploaded: 900},
			}},
			{Date: "2024-01-02"},
		},
	}
}

func newViews(t *testing.T, src *fakeSource) *Views {
	t.Helper()
	return New(newState(t), src, Options{ProtocolWorkers: 2}, zap.NewNop(), nil)
}

func TestViews_Dashboard(t *testing.T) {
	v := newViews(t, &fakeSource{summary: testSummary()})
	if err := v.Dashboard.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	m, status, _ := v.Dashboard.Get()
	if status != StatusReady {
		t.Fatalf("status = %s", status)
	}
	if m.TotalTraffic != 1100 || m.DeviceCount != 2 || m.DaysInRange != 31 || m.DaysWithData != 2 {
		t.Errorf("dashboard = %+v", m)
	}
	if len(m.TopDevices) != 2 || m.TopDevices[0].MAC != "aa" {
		t.Errorf("top devices = %+v", m.TopDevices)
	}
}

func TestViews_Charts(t *testing.T) {
	src := &fakeSource{
		summary:    testSummary(),
		timeseries: []models.TimeseriesPoint{{Date: "2024-01-01", Downloaded: 5}},
	}
	v := newViews(t, src)
	v.State.SetDevices([]string{"bb"})

	if err := v.Charts.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	m, _, _ := v.Charts.Get()

	if !reflect.DeepEqual(src.macs, []string{"bb"}) {
		t.Errorf("timeseries macs = %v", src.macs)
	}
	if m.FilterLabel != "Phone" {
		t.Errorf("filter label = %q; want Phone", m.FilterLabel)
	}
	if len(m.Picker) != 2 || m.Picker[0].MAC != "bb" {
		t.Errorf("picker should rank by total traffic: %+v", m.Picker)
	}
	if len(m.Points) != 1 {
		t.Errorf("points = %+v", m.Points)
	}
}

func TestViews_Activity(t *testing.T) {
	src := &fakeSource{calendar: []models.CalendarEntry{
		{Date: "2024-01-01", Value: 0},
		{Date: "2024-01-02", Value: 10, Downloaded: 8, Uploaded: 2},
	}}
	v := newViews(t, src)
	if err := v.Activity.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	m, _, _ := v.Activity.Get()
	if m.Summary.ActiveDays != 1 || len(m.Heatmap) != 1 || len(m.MonthGrid) != 1 {
		t.Errorf("activity = %+v", m)
	}
	if m.Months["2024-01"].Downloaded != 8 || m.Years["2024"].Uploaded != 2 {
		t.Errorf("totals = %v / %v", m.Months, m.Years)
	}
}

func TestSortAchievements(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	in := []models.AchievementStatus{
		{Achievement: models.Achievement{ID: "locked1"}},
		{Achievement: models.Achievement{ID: "old"}, Unlocked: true, UnlockedAt: &t1},
		{Achievement: models.Achievement{ID: "locked2"}},
		{Achievement: models.Achievement{ID: "new"}, Unlocked: true, UnlockedAt: &t2},
	}

	var ids []string
	for _, a := range SortAchievements(in) {
		ids = append(ids, a.Achievement.ID)
	}
	want := []string{"new", "old", "locked1", "locked2"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v; want %v", ids, want)
	}
	if in[0].Achievement.ID != "locked1" {
		t.Errorf("input was reordered")
	}

	v := newViews(t, &fakeSource{achievements: &models.Achievements{Achievements: in, TotalUnlocked: 2}})
	if err := v.Achievements.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	m, _, _ := v.Achievements.Get()
	if m.FirstLocked != 2 || m.Percent() != 50 {
		t.Errorf("first locked = %d, percent = %d", m.FirstLocked, m.Percent())
	}
}

func TestViews_ProtocolsUsesDatesWithData(t *testing.T) {
	src := &fakeSource{
		calendar: []models.CalendarEntry{
			{Date: "2024-01-01", Value: 1},
			{Date: "2024-01-02", Value: 0},
			{Date: "2024-01-03", Value: 1},
			{Date: "2024-02-01", Value: 1},
		},
		protocols: map[string][]models.ProtocolStat{
			"2024-01-01": {{Protocol: "TCP", Port: 443, Downloaded: 1}},
			"2024-01-03": {{Protocol: "TCP", Port: 443, Downloaded: 2}},
		},
	}
	v := newViews(t, src)
	v.opts.Aggregation = aggregator.Options{Overrides: map[string]string{"aa:bb": "Laptop"}}

	m, err := v.Protocols(context.Background(), "AA:BB")
	if err != nil {
		t.Fatalf("Protocols failed: %v", err)
	}
	if len(src.protocolDates) != 2 {
		t.Errorf("fetched dates = %v; want only days with data", src.protocolDates)
	}
	if m.Name != "Laptop" || m.Days != 2 || len(m.Top) != 1 || m.Top[0].Downloaded != 3 {
		t.Errorf("protocols = %+v", m)
	}
}

func TestViews_ProtocolsNameFallsBackToAPI(t *testing.T) {
	src := &fakeSource{summary: testSummary()}
	v := newViews(t, src)

	m, err := v.Protocols(context.Background(), "AA")
	if err != nil {
		t.Fatalf("Protocols failed: %v", err)
	}
	if m.Name != "Laptop" {
		t.Errorf("name = %q; want the API friendly name", m.Name)
	}

	src.summary = nil
	m, err = v.Protocols(context.Background(), "bb")
	if err != nil {
		t.Fatalf("Protocols failed: %v", err)
	}
	if m.Name != "bb" {
		t.Errorf("name = %q; want the MAC when no summary is available", m.Name)
	}
}

func TestViews_ProtocolsNameFromDevicesPanel(t *testing.T) {
	src := &fakeSource{summary: testSummary()}
	v := newViews(t, src)
	if err := v.Devices.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	src.summary = nil
	m, err := v.Protocols(context.Background(), "bb")
	if err != nil {
		t.Fatalf("Protocols failed: %v", err)
	}
	if m.Name != "Phone" {
		t.Errorf("name = %q; want the name shown by the devices view", m.Name)
	}
}

func TestViews_ProtocolsWithoutCalendar(t *testing.T) {
	src := &fakeSource{calendarErr: errors.New("down")}
	v := newViews(t, src)

	if _, err := v.Protocols(context.Background(), "aa"); err != nil {
		t.Fatalf("Protocols failed: %v", err)
	}
	if len(src.protocolDates) != 31 {
		t.Errorf("fetched %d dates; want every day of the range", len(src.protocolDates))
	}
}

func TestViews_RefreshAllReportsFailures(t *testing.T) {
	v := newViews(t, &fakeSource{summary: testSummary()})
	err := v.RefreshAll(context.Background())
	if err == nil {
		t.Fatalf("RefreshAll succeeded; achievements should have failed")
	}
	if _, status, _ := v.Dashboard.Get(); status != StatusReady {
		t.Errorf("dashboard status = %s", status)
	}
	if _, status, _ := v.Achievements.Get(); status != StatusFailed {
		t.Errorf("achievements status = %s", status)
	}
}

func TestViews_BindFollowsState(t *testing.T) {
	v := newViews(t, &fakeSource{summary: testSummary()})
	v.Bind(context.Background())

	r, _ := daterange.Parse("2024-05-01", "2024-05-10")
	v.State.SetRange(r)
	v.Wait()

	m, status, _ := v.Dashboard.Get()
	if status != StatusReady || m.From != "2024-05-01" || m.DaysInRange != 10 {
		t.Errorf("dashboard after range change = %+v (%s)", m, status)
	}
	if _, status, _ := v.Activity.Get(); status != StatusEmpty {
		t.Errorf("activity refreshed on range change")
	}
}

func TestDefaultRange(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

	src := &fakeSource{calendar: []models.CalendarEntry{
		{Date: "2024-03-10", Value: 1},
		{Date: "2024-01-01", Value: 0},
		{Date: "2024-01-05", Value: 3},
	}}
	r := DefaultRange(context.Background(), src, now, 30, zap.NewNop())
	if r.FromISO() != "2024-01-05" || r.ToISO() != "2024-03-10" {
		t.Errorf("range = %s; want available dates", r)
	}

	r = DefaultRange(context.Background(), &fakeSource{calendarErr: errors.New("down")}, now, 30, zap.NewNop())
	if r.FromISO() != "2024-06-01" || r.ToISO() != "2024-06-30" {
		t.Errorf("fallback range = %s", r)
	}
}

func TestDefaultComparison(t *testing.T) {
	p1, p2 := DefaultComparison(time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC))
	if p2.FromISO() != "2024-03-01" || p2.ToISO() != "2024-03-31" {
		t.Errorf("period 2 = %s", p2)
	}
	if p1.FromISO() != "2024-01-31" || p1.ToISO() != "2024-02-29" {
		t.Errorf("period 1 = %s", p1)
	}
}
