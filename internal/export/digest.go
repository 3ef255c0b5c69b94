// Package export publishes periodic usage digests to files and NATS.
package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nlbwdash/internal/aggregator"
	"nlbwdash/internal/calendar"
	"nlbwdash/internal/compare"
	"nlbwdash/internal/dashboard"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
)

// Digest is a snapshot of one range: the dashboard, the change against the
// preceding range of equal length, and the all-time calendar summary.
type Digest struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	From        string                    `json:"from"`
	To          string                    `json:"to"`
	Dashboard   *dashboard.DashboardModel `json:"dashboard"`
	Comparison  *compare.Comparison       `json:"comparison"`
	Calendar    *calendar.Summary         `json:"calendar,omitempty"`
}

// BuildDigest fetches r, r.Previous() and the calendar concurrently. The
// calendar is optional; a failed summary fetch fails the digest.
func BuildDigest(ctx context.Context, src dashboard.Source, r daterange.Range, opts aggregator.Options, now time.Time, log *zap.Logger) (*Digest, error) {
	prev := r.Previous()

	var (
		current, previous *models.Summary
		entries           []models.CalendarEntry
		calendarErr       error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if current, err = src.Summary(gctx, r); err != nil {
			return fmt.Errorf("summary %s: %w", r, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if previous, err = src.Summary(gctx, prev); err != nil {
			return fmt.Errorf("summary %s: %w", prev, err)
		}
		return nil
	})
	g.Go(func() error {
		entries, calendarErr = src.Calendar(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Digest{
		GeneratedAt: now.UTC(),
		From:        r.FromISO(),
		To:          r.ToISO(),
		Dashboard:   dashboard.BuildDashboard(r, current, opts),
		Comparison:  compare.Of(prev, previous, r, current),
	}
	if calendarErr != nil {
		log.Warn("digest without calendar summary", zap.Error(calendarErr))
	} else {
		s := calendar.Summarize(entries)
		d.Calendar = &s
	}
	return d, nil
}
