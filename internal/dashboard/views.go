// Package dashboard builds the models behind each dashboard view and keeps
// them in sync with the shared range and device filter.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nlbwdash/internal/aggregator"
	"nlbwdash/internal/calendar"
	"nlbwdash/internal/compare"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
	"nlbwdash/internal/state"
	"nlbwdash/internal/telemetry"
)

const (
	TopDevices   = 10
	TopProtocols = 7
)

// Source is the subset of the API client the views read from.
type Source interface {
	Calendar(ctx context.Context) ([]models.CalendarEntry, error)
	Summary(ctx context.Context, r daterange.Range) (*models.Summary, error)
	Timeseries(ctx context.Context, r daterange.Range, macs []string) ([]models.TimeseriesPoint, error)
	DeviceProtocols(ctx context.Context, date, mac string) ([]models.ProtocolStat, error)
	Achievements(ctx context.Context) (*models.Achievements, error)
}

type DashboardModel struct {
	From            string                   `json:"from"`
	To              string                   `json:"to"`
	TotalDownloaded uint64                   `json:"total_downloaded"`
	TotalUploaded   uint64                   `json:"total_uploaded"`
	TotalTraffic    uint64                   `json:"total_traffic"`
	DeviceCount     int                      `json:"device_count"`
	DaysInRange     int                      `json:"days_in_range"`
	DaysWithData    int                      `json:"days_with_data"`
	TopDevices      []aggregator.DeviceTotal `json:"top_devices"`
}

type DevicesModel struct {
	From    string                   `json:"from"`
	To      string                   `json:"to"`
	Devices []aggregator.DeviceTotal `json:"devices"`
}

type ProtocolsModel struct {
	Device    string                `json:"device"`
	Name      string                `json:"name"`
	From      string                `json:"from"`
	To        string                `json:"to"`
	Days      int                   `json:"days"`
	Protocols []models.ProtocolStat `json:"protocols"`
	Top       []models.ProtocolStat `json:"top"`
	Skipped   []string              `json:"skipped,omitempty"`
}

type ChartsModel struct {
	From        string                   `json:"from"`
	To          string                   `json:"to"`
	Points      []models.TimeseriesPoint `json:"points"`
	Selected    []string                 `json:"selected"`
	FilterLabel string                   `json:"filter_label"`
	// Picker lists the devices of the range ranked by total traffic.
	Picker []aggregator.DeviceTotal `json:"picker"`
}

type ActivityModel struct {
	Summary   calendar.Summary           `json:"summary"`
	Heatmap   []calendar.HeatmapYear     `json:"heatmap"`
	MonthGrid []calendar.MonthGridYear   `json:"month_grid"`
	Months    map[string]calendar.Totals `json:"months"`
	Years     map[string]calendar.Totals `json:"years"`
}

type AchievementsModel struct {
	Achievements  []models.AchievementStatus `json:"achievements"`
	TotalUnlocked int                        `json:"total_unlocked"`
	TotalProgress float64                    `json:"total_progress"`
	// FirstLocked is the index of the first locked achievement, -1 if all
	// are unlocked.
	FirstLocked int `json:"first_locked"`
}

// Percent is the share of unlocked achievements, rounded.
func (m *AchievementsModel) Percent() int {
	if len(m.Achievements) == 0 {
		return 0
	}
	return int(float64(m.TotalUnlocked)/float64(len(m.Achievements))*100 + 0.5)
}

type Options struct {
	Aggregation     aggregator.Options
	ProtocolWorkers int
}

// Views wires one panel per dashboard tab to the shared state.
type Views struct {
	State *state.State

	Dashboard    *Panel[*DashboardModel]
	Devices      *Panel[*DevicesModel]
	Charts       *Panel[*ChartsModel]
	Activity     *Panel[*ActivityModel]
	Achievements *Panel[*AchievementsModel]

	source     Source
	opts       Options
	collector  *aggregator.ProtocolCollector
	comparator *compare.Comparator
	bucketer   calendar.Bucketer
	log        *zap.Logger
}

func New(st *state.State, source Source, opts Options, log *zap.Logger, metrics *telemetry.Metrics) *Views {
	log = log.Named("views")
	v := &Views{
		State:      st,
		source:     source,
		opts:       opts,
		collector:  aggregator.NewProtocolCollector(source, opts.ProtocolWorkers, log),
		comparator: compare.NewComparator(source, log),
		bucketer:   calendar.Service{},
		log:        log,
	}

	v.Dashboard = NewPanel[*DashboardModel]("dashboard", state.FieldRange, st, v.loadDashboard, log, metrics)
	v.Devices = NewPanel[*DevicesModel]("devices", state.FieldRange, st, v.loadDevices, log, metrics)
	v.Charts = NewPanel[*ChartsModel]("charts", state.FieldRange|state.FieldDevices, st, v.loadCharts, log, metrics)
	v.Activity = NewPanel[*ActivityModel]("activity", state.FieldNone, st, v.loadActivity, log, metrics)
	v.Achievements = NewPanel[*AchievementsModel]("achievements", state.FieldNone, st, v.loadAchievements, log, metrics)
	return v
}

type refresher interface {
	Name() string
	Refresh(ctx context.Context) error
	Bind(ctx context.Context)
	Wait()
}

func (v *Views) panels() []refresher {
	return []refresher{v.Dashboard, v.Devices, v.Charts, v.Activity, v.Achievements}
}

// Bind subscribes every panel to its state dependencies.
func (v *Views) Bind(ctx context.Context) {
	for _, p := range v.panels() {
		p.Bind(ctx)
	}
}

// RefreshAll refreshes every panel concurrently. Failures are recorded on
// the panels; the returned error only reports how many failed.
func (v *Views) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	failed := make([]bool, len(v.panels()))
	for i, p := range v.panels() {
		i, p := i, p
		g.Go(func() error {
			failed[i] = p.Refresh(ctx) != nil
			return nil
		})
	}
	g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d of %d views failed to refresh", n, len(failed))
	}
	return nil
}

// Wait blocks until background refreshes have finished.
func (v *Views) Wait() {
	for _, p := range v.panels() {
		p.Wait()
	}
}

func (v *Views) devices(ctx context.Context, r daterange.Range) (*aggregator.DeviceTotals, error) {
	summary, err := v.source.Summary(ctx, r)
	if err != nil {
		return nil, err
	}
	return aggregator.Devices(summary.Days, v.opts.Aggregation), nil
}

func (v *Views) loadDashboard(ctx context.Context, snap state.Snapshot) (*DashboardModel, error) {
	summary, err := v.source.Summary(ctx, snap.Range)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(snap.Range, summary, v.opts.Aggregation), nil
}

// BuildDashboard derives the dashboard model from the summary of r.
func BuildDashboard(r daterange.Range, summary *models.Summary, opts aggregator.Options) *DashboardModel {
	totals := aggregator.Devices(summary.Days, opts)
	return &DashboardModel{
		From:            r.FromISO(),
		To:              r.ToISO(),
		TotalDownloaded: summary.TotalDownloaded,
		TotalUploaded:   summary.TotalUploaded,
		TotalTraffic:    summary.TotalDownloaded + summary.TotalUploaded,
		DeviceCount:     len(totals.ByMAC),
		DaysInRange:     r.Days(),
		DaysWithData:    len(summary.Days),
		TopDevices:      totals.Top(TopDevices),
	}
}

func (v *Views) loadDevices(ctx context.Context, snap state.Snapshot) (*DevicesModel, error) {
	totals, err := v.devices(ctx, snap.Range)
	if err != nil {
		return nil, err
	}
	return &DevicesModel{From: snap.From, To: snap.To, Devices: totals.Ranked}, nil
}

func (v *Views) loadCharts(ctx context.Context, snap state.Snapshot) (*ChartsModel, error) {
	var (
		points []models.TimeseriesPoint
		totals *aggregator.DeviceTotals
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		points, err = v.source.Timeseries(gctx, snap.Range, snap.Devices)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = v.devices(gctx, snap.Range)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(totals.ByMAC))
	for mac, d := range totals.ByMAC {
		names[mac] = d.Name()
	}

	return &ChartsModel{
		From:        snap.From,
		To:          snap.To,
		Points:      points,
		Selected:    snap.Devices,
		FilterLabel: state.FilterLabel(snap, names),
		Picker:      totals.ByTotal(),
	}, nil
}

func (v *Views) loadActivity(ctx context.Context, _ state.Snapshot) (*ActivityModel, error) {
	entries, err := v.source.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	return &ActivityModel{
		Summary:   calendar.Summarize(entries),
		Heatmap:   calendar.HeatmapView{Bucketer: v.bucketer}.Build(entries),
		MonthGrid: calendar.MonthGridView{Bucketer: v.bucketer}.Build(entries),
		Months:    v.bucketer.ByMonth(entries),
		Years:     v.bucketer.ByYearTotals(entries),
	}, nil
}

func (v *Views) loadAchievements(ctx context.Context, _ state.Snapshot) (*AchievementsModel, error) {
	a, err := v.source.Achievements(ctx)
	if err != nil {
		return nil, err
	}
	sorted := SortAchievements(a.Achievements)
	first := -1
	for i, s := range sorted {
		if !s.Unlocked {
			first = i
			break
		}
	}
	return &AchievementsModel{
		Achievements:  sorted,
		TotalUnlocked: a.TotalUnlocked,
		TotalProgress: a.TotalProgress,
		FirstLocked:   first,
	}, nil
}

// SortAchievements puts unlocked achievements first, newest unlock first.
// Locked ones, and unlocked ones missing a timestamp, keep their order.
func SortAchievements(in []models.AchievementStatus) []models.AchievementStatus {
	out := make([]models.AchievementStatus, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Unlocked != b.Unlocked {
			return a.Unlocked
		}
		if a.Unlocked && a.UnlockedAt != nil && b.UnlockedAt != nil {
			return a.UnlockedAt.After(*b.UnlockedAt)
		}
		return false
	})
	return out
}

// Protocols builds the protocol breakdown of one device over the state's
// range. Only days the calendar reports traffic for are fetched; without a
// calendar every day of the range is tried.
func (v *Views) Protocols(ctx context.Context, mac string) (*ProtocolsModel, error) {
	snap := v.State.Snapshot()

	dates := snap.Range.Dates()
	if entries, err := v.source.Calendar(ctx); err != nil {
		v.log.Warn("calendar unavailable, fetching every day of the range", zap.Error(err))
	} else {
		dates = aggregator.DatesWithData(entries, snap.Range)
	}

	res, err := v.collector.Collect(ctx, mac, dates)
	if err != nil {
		return nil, err
	}

	name := v.deviceName(ctx, snap.Range, mac)
	top := res.Protocols
	if len(top) > TopProtocols {
		top = top[:TopProtocols]
	}
	return &ProtocolsModel{
		Device:    mac,
		Name:      name,
		From:      snap.From,
		To:        snap.To,
		Days:      res.Fetched,
		Protocols: res.Protocols,
		Top:       top,
		Skipped:   res.Skipped,
	}, nil
}

// deviceName prefers a configured name, then the friendly name the API
// reported for the range, then the MAC itself.
func (v *Views) deviceName(ctx context.Context, r daterange.Range, mac string) string {
	if name := v.opts.Aggregation.Override(mac); name != "" {
		return name
	}

	var totals []aggregator.DeviceTotal
	if m, status, _ := v.Devices.Get(); status == StatusReady && m.From == r.FromISO() && m.To == r.ToISO() {
		totals = m.Devices
	} else if t, err := v.devices(ctx, r); err == nil {
		totals = t.Ranked
	} else {
		v.log.Debug("no device names for protocol view", zap.Error(err))
	}

	for _, d := range totals {
		if strings.EqualFold(d.MAC, mac) && d.FriendlyName != "" {
			return d.FriendlyName
		}
	}
	return mac
}

// Compare runs a period comparison. It does not touch the shared state.
func (v *Views) Compare(ctx context.Context, p1, p2 daterange.Range) (*compare.Comparison, error) {
	return v.comparator.Compare(ctx, p1, p2)
}

// DefaultComparison returns the last 30 days and the 30 days before them.
func DefaultComparison(now time.Time) (p1, p2 daterange.Range) {
	today := daterange.Day(now)
	p1 = daterange.Range{Start: today.AddDate(0, 0, -60), End: today.AddDate(0, 0, -31)}
	p2 = daterange.Range{Start: today.AddDate(0, 0, -30), End: today}
	return p1, p2
}

// CalendarSource fetches the calendar.
type CalendarSource interface {
	Calendar(ctx context.Context) ([]models.CalendarEntry, error)
}

// DefaultRange spans every date the calendar reports traffic for, or the
// last fallbackDays days when the calendar is empty or unavailable.
func DefaultRange(ctx context.Context, src CalendarSource, now time.Time, fallbackDays int, log *zap.Logger) daterange.Range {
	fallback := daterange.LastDays(now, fallbackDays)

	entries, err := src.Calendar(ctx)
	if err != nil {
		log.Warn("failed to fetch available dates", zap.Error(err))
		return fallback
	}

	s := calendar.Summarize(entries)
	if s.ActiveDays == 0 {
		return fallback
	}
	r, err := daterange.Parse(s.First, s.Last)
	if err != nil {
		log.Warn("calendar returned unusable dates", zap.String("first", s.First), zap.String("last", s.Last), zap.Error(err))
		return fallback
	}
	return r
}
