package bandwidth

import (
	"testing"
	"time"

	"github.com/orbitkit/constellation/errors"
)

func newTestGovernor(clock *fakeClock) *Governor {
	return newGovernor(GovernorConfig{
		GlobalRate:  1000,
		GlobalBurst: 1000,
		PeerRate:    1024,
		PeerBurst:   500,
	}, clock.Now)
}

// drain empties the global bucket via broadcast admissions of CRITICAL
// priority, which bypass the ladder.
func drain(t *testing.T, g *Governor, n int) {
	t.Helper()
	if err := g.AdmitBroadcast(n, PriorityCritical); err != nil {
		t.Fatalf("drain of %d bytes rejected: %v", n, err)
	}
}

func TestGovernor_AdmitsWhenIdle(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	for _, pri := range []Priority{PriorityCritical, PriorityHigh, PriorityNormal} {
		if err := g.Admit("peer-a", 100, pri); err != nil {
			t.Errorf("Admit(%v) under no congestion error: %v", pri, err)
		}
	}
}

func TestGovernor_ThrottlesNormalAboveSeventy(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	drain(t, g, 750) // 75% utilization

	if err := g.Admit("peer-a", 10, PriorityNormal); !errors.Is(err, errors.ErrCodeThrottled) {
		t.Errorf("NORMAL at 75%% error = %v, want THROTTLED", err)
	}
	if err := g.Admit("peer-a", 10, PriorityHigh); err != nil {
		t.Errorf("HIGH at 75%% error = %v, want admitted", err)
	}
	if err := g.Admit("peer-b", 10, PriorityCritical); err != nil {
		t.Errorf("CRITICAL at 75%% error = %v, want admitted", err)
	}
}

func TestGovernor_ThrottlesNormalAboveNinety(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	drain(t, g, 950) // 95% utilization

	if err := g.Admit("peer-a", 5, PriorityNormal); !errors.Is(err, errors.ErrCodeThrottled) {
		t.Errorf("NORMAL at 95%% error = %v, want THROTTLED", err)
	}
	if err := g.Admit("peer-a", 5, PriorityHigh); err != nil {
		t.Errorf("HIGH at 95%% error = %v, want admitted", err)
	}
}

func TestGovernor_SaturationDropsAllButCritical(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	drain(t, g, 1000) // 100% utilization

	if err := g.Admit("peer-a", 1, PriorityNormal); !errors.Is(err, errors.ErrCodeDropped) {
		t.Errorf("NORMAL at saturation error = %v, want DROPPED", err)
	}
	if err := g.Admit("peer-a", 1, PriorityHigh); !errors.Is(err, errors.ErrCodeDropped) {
		t.Errorf("HIGH at saturation error = %v, want DROPPED", err)
	}

	// CRITICAL preempts the empty global bucket; the peer bucket has
	// capacity, so the send is admitted.
	if err := g.Admit("peer-a", 1, PriorityCritical); err != nil {
		t.Errorf("CRITICAL at saturation error = %v, want admitted", err)
	}

	clock.Advance(100 * time.Millisecond) // refills 100 tokens
	if err := g.Admit("peer-a", 10, PriorityCritical); err != nil {
		t.Errorf("CRITICAL after refill error = %v, want admitted", err)
	}

	stats := g.Stats()
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}
	if stats.DroppedByPriority["NORMAL"] != 1 || stats.DroppedByPriority["HIGH"] != 1 {
		t.Errorf("DroppedByPriority = %v, want one NORMAL and one HIGH", stats.DroppedByPriority)
	}
}

func TestGovernor_CriticalPreemptsDepletedBucket(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	drain(t, g, 1000)

	// Broadcasts have no peer bucket: CRITICAL is admitted outright and the
	// global bucket floors at zero instead of going negative.
	if err := g.AdmitBroadcast(50, PriorityCritical); err != nil {
		t.Errorf("CRITICAL broadcast at saturation error = %v, want admitted", err)
	}
	if u := g.GlobalUtilization(); u != 1 {
		t.Errorf("GlobalUtilization = %v after preemption, want 1", u)
	}

	// Directed CRITICAL still needs per-peer capacity.
	if err := g.Admit("peer-a", 100, PriorityCritical); err != nil {
		t.Errorf("CRITICAL send with peer capacity error = %v, want admitted", err)
	}
	if err := g.Admit("peer-a", 500, PriorityCritical); !errors.Is(err, errors.ErrCodeThrottled) {
		t.Errorf("CRITICAL send past peer burst error = %v, want THROTTLED", err)
	}
}

func TestGovernor_PeerBucketRefund(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	// Exhaust the per-peer bucket (500 byte burst).
	if err := g.Admit("peer-a", 500, PriorityCritical); err != nil {
		t.Fatalf("initial peer send error: %v", err)
	}

	before := g.GlobalUtilization()
	if err := g.Admit("peer-a", 100, PriorityCritical); !errors.Is(err, errors.ErrCodeThrottled) {
		t.Fatalf("send on empty peer bucket error = %v, want THROTTLED", err)
	}
	after := g.GlobalUtilization()

	// The failed peer debit must refund the global bucket.
	if before != after {
		t.Errorf("global utilization changed %v -> %v on refunded send", before, after)
	}

	// A different peer still has its own fresh bucket.
	if err := g.Admit("peer-b", 100, PriorityCritical); err != nil {
		t.Errorf("other peer send error: %v", err)
	}
}

func TestGovernor_CongestionLevels(t *testing.T) {
	tests := []struct {
		drain int
		want  CongestionLevel
	}{
		{0, CongestionNormal},
		{500, CongestionNormal},
		{700, CongestionModerate},
		{899, CongestionModerate},
		{900, CongestionThrottled},
		{1000, CongestionCritical},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			g := newTestGovernor(newFakeClock())
			if tt.drain > 0 {
				drain(t, g, tt.drain)
			}
			if got := g.CongestionLevel(); got != tt.want {
				t.Errorf("CongestionLevel() after draining %d = %v, want %v", tt.drain, got, tt.want)
			}
		})
	}
}

func TestGovernor_SetGlobalLimit_ProportionalBurst(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	g.SetGlobalLimit(2000) // doubled: burst should double to 2000

	g.mu.Lock()
	rate, burst := g.global.Rate(), g.global.Burst()
	g.mu.Unlock()

	if rate != 2000 {
		t.Errorf("global rate = %v, want 2000", rate)
	}
	if burst != 2000 {
		t.Errorf("global burst = %v, want 2000 (proportional)", burst)
	}
}

func TestGovernor_SetPeerLimit_ProportionalBurst(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	g.SetPeerLimit("peer-a", 2048) // doubled from 1024: burst 500 -> 1000

	g.mu.Lock()
	b := g.peers["peer-a"]
	rate, burst := b.Rate(), b.Burst()
	g.mu.Unlock()

	if rate != 2048 {
		t.Errorf("peer rate = %v, want 2048", rate)
	}
	if burst != 1000 {
		t.Errorf("peer burst = %v, want 1000 (proportional)", burst)
	}
}

func TestGovernor_StatsCounters(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	g.Admit("peer-a", 100, PriorityNormal) // admitted
	drain(t, g, 800)
	g.Admit("peer-a", 10, PriorityNormal) // throttled by ladder
	drain(t, g, 100)
	g.Admit("peer-a", 10, PriorityNormal) // dropped at saturation

	stats := g.Stats()
	if stats.Admitted != 3 { // two drains count as admitted broadcasts
		t.Errorf("Admitted = %d, want 3", stats.Admitted)
	}
	if stats.Throttled != 1 {
		t.Errorf("Throttled = %d, want 1", stats.Throttled)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}
