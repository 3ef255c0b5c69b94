package aggregator

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
)

type protocolKey struct {
	protocol string
	port     uint16
}

// ProtocolAccumulator sums ProtocolStat entries keyed by (protocol, port).
type ProtocolAccumulator struct {
	totals map[protocolKey]*models.ProtocolStat
	order  []protocolKey
}

func NewProtocolAccumulator() *ProtocolAccumulator {
	return &ProtocolAccumulator{totals: make(map[protocolKey]*models.ProtocolStat)}
}

func (a *ProtocolAccumulator) Add(stats []models.ProtocolStat) {
	for _, s := range stats {
		key := protocolKey{protocol: s.Protocol, port: s.Port}
		cur, ok := a.totals[key]
		if !ok {
			cur = &models.ProtocolStat{Protocol: s.Protocol, Port: s.Port}
			a.totals[key] = cur
			a.order = append(a.order, key)
		}
		cur.Downloaded += s.Downloaded
		cur.Uploaded += s.Uploaded
		cur.RxPackets += s.RxPackets
		cur.TxPackets += s.TxPackets
		cur.Connections += s.Connections
	}
}

// Ranked returns the totals ordered by downloaded, descending, with ties in
// first-seen order.
func (a *ProtocolAccumulator) Ranked() []models.ProtocolStat {
	out := make([]models.ProtocolStat, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.totals[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Downloaded > out[j].Downloaded
	})
	return out
}

// Label renders a protocol as "TCP:443", or just the protocol when port is 0.
func Label(p models.ProtocolStat) string {
	if p.Port == 0 {
		return p.Protocol
	}
	return p.Protocol + ":" + strconv.Itoa(int(p.Port))
}

// DatesWithData lists the calendar dates inside r that carry traffic,
// ascending.
func DatesWithData(calendar []models.CalendarEntry, r daterange.Range) []string {
	var dates []string
	for _, e := range calendar {
		if e.Value > 0 && r.ContainsDate(e.Date) {
			dates = append(dates, e.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// ProtocolSource fetches the protocol breakdown of one device on one day.
type ProtocolSource interface {
	DeviceProtocols(ctx context.Context, date, mac string) ([]models.ProtocolStat, error)
}

type ProtocolResult struct {
	Protocols []models.ProtocolStat `json:"protocols"`
	Fetched   int                   `json:"fetched"`
	// Skipped lists the dates whose fetch failed.
	Skipped []string `json:"skipped,omitempty"`
}

type ProtocolCollector struct {
	source  ProtocolSource
	workers int
	log     *zap.Logger
}

func NewProtocolCollector(source ProtocolSource, workers int, log *zap.Logger) *ProtocolCollector {
	if workers < 1 {
		workers = 1
	}
	return &ProtocolCollector{source: source, workers: workers, log: log.Named("protocols")}
}

// Collect fetches one device's protocols for every date and accumulates the
// days that succeeded in ascending date order. A failed day is skipped; only
// cancellation of ctx aborts the whole collection.
func (c *ProtocolCollector) Collect(ctx context.Context, mac string, dates []string) (*ProtocolResult, error) {
	sorted := make([]string, len(dates))
	copy(sorted, dates)
	sort.Strings(sorted)

	perDay := make([][]models.ProtocolStat, len(sorted))
	failed := make([]bool, len(sorted))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, date := range sorted {
		i, date := i, date
		g.Go(func() error {
			stats, err := c.source.DeviceProtocols(gctx, date, mac)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Warn("skipping day",
					zap.String("mac", mac),
					zap.String("date", date),
					zap.Error(err),
				)
				failed[i] = true
				return nil
			}
			perDay[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	acc := NewProtocolAccumulator()
	result := &ProtocolResult{}
	for i, stats := range perDay {
		if failed[i] {
			result.Skipped = append(result.Skipped, sorted[i])
			continue
		}
		acc.Add(stats)
		result.Fetched++
	}
	result.Protocols = acc.Ranked()

	c.log.Debug("collected protocols",
		zap.String("mac", mac),
		zap.Int("days", len(sorted)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
