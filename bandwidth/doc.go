// Package bandwidth provides admission control for the shared 10 KB/s
// inter-satellite link.
//
// # Token Buckets
//
// Every send debits two token buckets: the global link bucket and a lazily
// created per-peer bucket (default 1 KB/s rate, 500 byte burst). Buckets
// refill lazily from elapsed wall-clock time, start full, and never hold
// more than their burst or less than zero.
//
// # Priorities
//
// Traffic is classed CRITICAL (health, emergency), HIGH (intent), or NORMAL
// (coordination), with nominal bandwidth shares of 80/15/5 percent. The
// shares are enforced by a utilization ladder rather than separate buckets:
//
//   - utilization >= 100%: only CRITICAL admitted; everything else is a
//     dropped message and counts as a congestion event.
//   - 70% <= utilization < 100%: NORMAL rejected (throttled, not dropped).
//   - below 70%: no priority gating.
//
// A send that passes the ladder must still debit both buckets; if only one
// debit succeeds it is refunded and the send counts as throttled. CRITICAL
// is the exception on the global side: a depleted global bucket is drained
// to zero rather than blocking a health message, so CRITICAL is gated only
// by its per-peer bucket.
//
// # Congestion Signal
//
// CongestionLevel exposes the same 70/90/100 breakpoints as a four-level
// signal for the health broadcaster's adaptive cadence.
//
// Usage:
//
//	gov := bandwidth.NewGovernor(bandwidth.DefaultGovernorConfig())
//	if err := gov.Admit(peerID, len(payload), bandwidth.PriorityCritical); err != nil {
//	    // throttled or dropped; do not send
//	}
package bandwidth
