// Package compare reports how traffic in one date range changed against
// another.
package compare

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
)

// PercentChange is the relative change of v2 against v1 in percent. A zero
// baseline yields 100 when v2 is positive and 0 otherwise.
func PercentChange(v1, v2 float64) float64 {
	if v1 == 0 {
		if v2 > 0 {
			return 100
		}
		return 0
	}
	return (v2 - v1) / v1 * 100
}

type SummarySource interface {
	Summary(ctx context.Context, r daterange.Range) (*models.Summary, error)
}

type Period struct {
	Range      daterange.Range `json:"-"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Downloaded uint64          `json:"downloaded"`
	Uploaded   uint64          `json:"uploaded"`
	Total      uint64          `json:"total"`
	Days       int             `json:"days"`
}

func newPeriod(r daterange.Range, s *models.Summary) Period {
	return Period{
		Range:      r,
		From:       r.FromISO(),
		To:         r.ToISO(),
		Downloaded: s.TotalDownloaded,
		Uploaded:   s.TotalUploaded,
		Total:      s.TotalDownloaded + s.TotalUploaded,
		Days:       len(s.Days),
	}
}

type Change struct {
	Before  uint64  `json:"before"`
	After   uint64  `json:"after"`
	Percent float64 `json:"percent"`
}

func newChange(before, after uint64) Change {
	return Change{Before: before, After: after, Percent: PercentChange(float64(before), float64(after))}
}

func (c Change) Increased() bool { return c.Percent > 0 }

type Comparison struct {
	Period1    Period `json:"period1"`
	Period2    Period `json:"period2"`
	Downloaded Change `json:"downloaded"`
	Uploaded   Change `json:"uploaded"`
	Total      Change `json:"total"`
}

// Of builds the comparison of two already fetched summaries.
func Of(r1 daterange.Range, s1 *models.Summary, r2 daterange.Range, s2 *models.Summary) *Comparison {
	p1, p2 := newPeriod(r1, s1), newPeriod(r2, s2)
	return &Comparison{
		Period1:    p1,
		Period2:    p2,
		Downloaded: newChange(p1.Downloaded, p2.Downloaded),
		Uploaded:   newChange(p1.Uploaded, p2.Uploaded),
		Total:      newChange(p1.Total, p2.Total),
	}
}

type Comparator struct {
	source SummarySource
	log    *zap.Logger
}

func NewComparator(source SummarySource, log *zap.Logger) *Comparator {
	return &Comparator{source: source, log: log.Named("compare")}
}

// Compare fetches both periods concurrently. If either fetch fails no
// comparison is returned.
func (c *Comparator) Compare(ctx context.Context, p1, p2 daterange.Range) (*Comparison, error) {
	var s1, s2 *models.Summary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s1, err = c.source.Summary(gctx, p1)
		if err != nil {
			return fmt.Errorf("period 1 (%s): %w", p1, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		s2, err = c.source.Summary(gctx, p2)
		if err != nil {
			return fmt.Errorf("period 2 (%s): %w", p2, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		c.log.Warn("comparison failed", zap.Error(err))
		return nil, err
	}

	cmp := Of(p1, s1, p2, s2)
	c.log.Debug("compared periods",
		zap.Stringer("period1", p1),
		zap.Stringer("period2", p2),
		zap.Float64("total_change", cmp.Total.Percent),
	)
	return cmp, nil
}
