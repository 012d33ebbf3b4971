package telemetry

import (
	"context"
	"sync/atomic"
	"time"
)

// StatsSource produces a stats snapshot for periodic export.
type StatsSource func() map[string]interface{}

// Reporter periodically exports stats snapshots from registered sources.
type Reporter struct {
	exporter Exporter
	interval time.Duration
	sources  map[string]StatsSource

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReporter creates a Reporter. Sources maps event name to snapshot
// producer; all sources are polled on every interval.
func NewReporter(exporter Exporter, interval time.Duration, sources map[string]StatsSource) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{
		exporter: exporter,
		interval: interval,
		sources:  sources,
	}
}

// Start begins periodic export.
func (r *Reporter) Start(ctx context.Context) error {
	if r.running.Swap(true) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.run(ctx)
	return nil
}

func (r *Reporter) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.emit()
		}
	}
}

func (r *Reporter) emit() {
	for name, source := range r.sources {
		r.exporter.LogEvent(name, source())
	}
}

// Stop cancels the loop, emits one final snapshot, and flushes. Idempotent.
func (r *Reporter) Stop() error {
	if !r.running.Swap(false) {
		return nil
	}
	close(r.stopCh)
	<-r.doneCh

	r.emit()
	return r.exporter.Flush()
}
