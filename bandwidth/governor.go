package bandwidth

import (
	"sync"
	"time"

	"github.com/orbitkit/constellation/errors"
)

// Priority classes traffic for admission under congestion.
type Priority int

const (
	// PriorityCritical is health and emergency traffic, nominal 80% share.
	PriorityCritical Priority = iota
	// PriorityHigh is intent traffic, nominal 15% share.
	PriorityHigh
	// PriorityNormal is coordination traffic, nominal 5% share.
	PriorityNormal
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

// CongestionLevel is the coarse congestion signal derived from global
// bucket utilization.
type CongestionLevel int

const (
	CongestionNormal CongestionLevel = iota
	CongestionModerate
	CongestionThrottled
	CongestionCritical
)

// String returns the level name.
func (c CongestionLevel) String() string {
	switch c {
	case CongestionNormal:
		return "NORMAL"
	case CongestionModerate:
		return "MODERATE"
	case CongestionThrottled:
		return "THROTTLED"
	case CongestionCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Utilization breakpoints for the admission ladder and congestion levels.
const (
	moderateUtilization = 0.70
	throttleUtilization = 0.90
	criticalUtilization = 1.0
)

// Per-peer bucket defaults: 1 KB/s with a 500 byte burst.
const (
	DefaultPeerRate  = 1024
	DefaultPeerBurst = 500
)

// GovernorConfig configures a Governor.
type GovernorConfig struct {
	// GlobalRate is the aggregate link rate in bytes per second.
	// Default: 10 KB/s.
	GlobalRate float64

	// GlobalBurst is the global bucket size. Default: one second of
	// GlobalRate.
	GlobalBurst float64

	// PeerRate is the per-peer refill rate in bytes per second.
	// Default: 1 KB/s.
	PeerRate float64

	// PeerBurst is the per-peer bucket size. Default: 500 bytes.
	PeerBurst float64
}

// DefaultGovernorConfig returns configuration with sensible defaults.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		GlobalRate:  10 * 1024,
		GlobalBurst: 10 * 1024,
		PeerRate:    DefaultPeerRate,
		PeerBurst:   DefaultPeerBurst,
	}
}

func (c *GovernorConfig) applyDefaults() {
	def := DefaultGovernorConfig()
	if c.GlobalRate <= 0 {
		c.GlobalRate = def.GlobalRate
	}
	if c.GlobalBurst <= 0 {
		c.GlobalBurst = c.GlobalRate
	}
	if c.PeerRate <= 0 {
		c.PeerRate = def.PeerRate
	}
	if c.PeerBurst <= 0 {
		c.PeerBurst = def.PeerBurst
	}
}

// Stats counts admission outcomes since construction.
type Stats struct {
	Admitted  uint64
	Throttled uint64
	Dropped   uint64

	// DroppedByPriority counts congestion-event drops per priority name.
	DroppedByPriority map[string]uint64

	// GlobalUtilization is the utilization snapshot taken with the stats.
	GlobalUtilization float64
}

// Governor enforces fair, priority-aware admission over the shared link.
// Safe for concurrent use; every admit is one atomic debit/refund sequence.
type Governor struct {
	mu      sync.Mutex
	global  *TokenBucket
	peers   map[string]*TokenBucket
	cfg     GovernorConfig
	nowFunc func() time.Time

	admitted  uint64
	throttled uint64
	dropped   uint64
	droppedBy map[string]uint64
}

// NewGovernor creates a Governor.
func NewGovernor(cfg GovernorConfig) *Governor {
	return newGovernor(cfg, time.Now)
}

func newGovernor(cfg GovernorConfig, nowFunc func() time.Time) *Governor {
	cfg.applyDefaults()
	return &Governor{
		global:    newTokenBucket(cfg.GlobalRate, cfg.GlobalBurst, nowFunc),
		peers:     make(map[string]*TokenBucket),
		cfg:       cfg,
		nowFunc:   nowFunc,
		droppedBy: make(map[string]uint64),
	}
}

// Admit decides whether a send of size bytes to the given peer may proceed.
// Returns nil when admitted; a DROPPED error for congestion events; a
// THROTTLED error when the send should be retried later. CRITICAL sends are
// never starved by the global bucket: at saturation they drain whatever
// remains, gated only by the per-peer bucket.
func (g *Governor) Admit(peer string, size int, pri Priority) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.gate(peer, size, pri); err != nil {
		return err
	}

	debited := float64(size)
	if !g.global.Acquire(size) {
		if pri != PriorityCritical {
			g.throttled++
			return errors.Throttled(peer, size)
		}
		// Critical traffic preempts a depleted global bucket: take what
		// remains and proceed. Tokens never go negative, so the debt is
		// paid by the refill instead of a blocked health message.
		debited = g.global.Drain(size)
	}
	if !g.peerBucket(peer).Acquire(size) {
		// Refund the global debit: the send is not happening.
		g.global.RefundTokens(debited)
		g.throttled++
		return errors.Throttled(peer, size)
	}

	g.admitted++
	return nil
}

// AdmitBroadcast admits a topic-wide send, which has no single destination
// peer and therefore debits only the global bucket.
func (g *Governor) AdmitBroadcast(size int, pri Priority) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.gate("", size, pri); err != nil {
		return err
	}
	if !g.global.Acquire(size) {
		if pri != PriorityCritical {
			g.throttled++
			return errors.Throttled("", size)
		}
		g.global.Drain(size)
	}
	g.admitted++
	return nil
}

// gate applies the utilization ladder. Caller holds the lock.
func (g *Governor) gate(peer string, size int, pri Priority) error {
	u := g.global.Utilization()

	switch {
	case u >= criticalUtilization:
		if pri != PriorityCritical {
			g.dropped++
			g.droppedBy[pri.String()]++
			return errors.Dropped(peer, size)
		}
	case u >= moderateUtilization:
		// 70-100%: NORMAL traffic backs off, but is not a congestion event.
		if pri == PriorityNormal {
			g.throttled++
			return errors.Throttled(peer, size)
		}
	}
	return nil
}

// peerBucket returns the per-peer bucket, creating it on first use.
// Caller holds the lock.
func (g *Governor) peerBucket(peer string) *TokenBucket {
	b, ok := g.peers[peer]
	if !ok {
		b = newTokenBucket(g.cfg.PeerRate, g.cfg.PeerBurst, g.nowFunc)
		g.peers[peer] = b
	}
	return b
}

// SetPeerLimit adjusts a peer's rate at runtime, keeping the burst
// proportional to the rate change.
func (g *Governor) SetPeerLimit(peer string, rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := g.peerBucket(peer)
	burst := b.Burst()
	if oldRate := b.Rate(); oldRate > 0 {
		burst = burst * rate / oldRate
	}
	b.SetLimit(rate, burst)
}

// SetGlobalLimit adjusts the aggregate link rate at runtime, keeping the
// burst proportional to the rate change.
func (g *Governor) SetGlobalLimit(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	burst := g.global.Burst()
	if oldRate := g.global.Rate(); oldRate > 0 {
		burst = burst * rate / oldRate
	}
	g.global.SetLimit(rate, burst)
}

// CongestionLevel maps current global utilization onto the four-level
// signal consumed by the health broadcaster.
func (g *Governor) CongestionLevel() CongestionLevel {
	g.mu.Lock()
	defer g.mu.Unlock()
	return levelFor(g.global.Utilization())
}

// GlobalUtilization returns the current global bucket utilization.
func (g *Governor) GlobalUtilization() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.global.Utilization()
}

func levelFor(u float64) CongestionLevel {
	switch {
	case u >= criticalUtilization:
		return CongestionCritical
	case u >= throttleUtilization:
		return CongestionThrottled
	case u >= moderateUtilization:
		return CongestionModerate
	default:
		return CongestionNormal
	}
}

// Stats returns a snapshot of admission counters.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	byPri := make(map[string]uint64, len(g.droppedBy))
	for k, v := range g.droppedBy {
		byPri[k] = v
	}
	return Stats{
		Admitted:          g.admitted,
		Throttled:         g.throttled,
		Dropped:           g.dropped,
		DroppedByPriority: byPri,
		GlobalUtilization: g.global.Utilization(),
	}
}
