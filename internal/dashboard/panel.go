package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nlbwdash/internal/state"
	"nlbwdash/internal/telemetry"
)

type Status string

const (
	StatusEmpty  Status = "empty"
	StatusReady  Status = "ready"
	StatusFailed Status = "failed"
)

// Loader fetches and derives a panel's value for one state snapshot.
type Loader[T any] func(ctx context.Context, snap state.Snapshot) (T, error)

// Panel owns the last applied value of one view. Every refresh takes a
// generation ticket first; a result is applied only if no newer refresh of
// the same view started in the meantime.
type Panel[T any] struct {
	name    string
	deps    state.Field
	state   *state.State
	load    Loader[T]
	log     *zap.Logger
	metrics *telemetry.Metrics

	mu      sync.RWMutex
	value   T
	status  Status
	updated time.Time
	lastErr error

	inflight sync.WaitGroup

	// afterLoad runs between a load and its apply; nil outside tests.
	afterLoad func()
}

func NewPanel[T any](name string, deps state.Field, st *state.State, load Loader[T], log *zap.Logger, metrics *telemetry.Metrics) *Panel[T] {
	return &Panel[T]{
		name:    name,
		deps:    deps,
		state:   st,
		load:    load,
		log:     log.With(zap.String("view", name)),
		metrics: metrics,
		status:  StatusEmpty,
	}
}

func (p *Panel[T]) Name() string { return p.name }

// Refresh loads the panel for the current state. A failed load keeps the
// previous value and marks the panel failed. A result overtaken by a newer
// refresh is dropped without touching the panel.
func (p *Panel[T]) Refresh(ctx context.Context) error {
	ticket := p.state.Begin(p.name)
	snap := p.state.Snapshot()

	value, err := p.load(ctx, snap)
	if p.afterLoad != nil {
		p.afterLoad()
	}

	// The generation check and the apply share p.mu, so a refresh that
	// started later can never be overwritten by this one.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.IsCurrent(ticket) {
		p.log.Debug("discarding stale result", zap.Uint64("generation", ticket.Generation))
		p.metrics.RefreshResult(p.name, telemetry.ResultStale)
		return nil
	}

	if err != nil {
		p.log.Warn("refresh failed", zap.Error(err))
		p.metrics.RefreshResult(p.name, telemetry.ResultFailed)
		p.status = StatusFailed
		p.lastErr = err
		return err
	}

	p.value = value
	p.status = StatusReady
	p.updated = time.Now()
	p.lastErr = nil
	p.metrics.RefreshResult(p.name, telemetry.ResultApplied)
	return nil
}

// Get returns the last applied value, the panel status and when the value
// was applied.
func (p *Panel[T]) Get() (T, Status, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.status, p.updated
}

// Err is the error of the last failed refresh, nil after a success.
func (p *Panel[T]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Bind refreshes the panel in the background whenever one of its state
// dependencies changes. Panels without dependencies are never rebound.
func (p *Panel[T]) Bind(ctx context.Context) {
	if p.deps == state.FieldNone {
		return
	}
	p.state.Subscribe(p.deps, func(state.Snapshot) {
		p.inflight.Add(1)
		go func() {
			defer p.inflight.Done()
			p.Refresh(ctx)
		}()
	})
}

// Wait blocks until background refreshes started by Bind have finished.
func (p *Panel[T]) Wait() {
	p.inflight.Wait()
}
