package bandwidth

import (
	"time"
)

// TokenBucket is a byte-denominated token bucket. It refills lazily from
// elapsed wall-clock time, starts full, and is mutated only under its
// owner's lock — the Governor treats every debit/refund sequence as one
// critical section.
type TokenBucket struct {
	rate       float64 // bytes per second
	burst      float64 // maximum stored tokens
	tokens     float64
	lastRefill time.Time
	nowFunc    func() time.Time
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(rate, burst float64) *TokenBucket {
	return newTokenBucket(rate, burst, time.Now)
}

func newTokenBucket(rate, burst float64, nowFunc func() time.Time) *TokenBucket {
	return &TokenBucket{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: nowFunc(),
		nowFunc:    nowFunc,
	}
}

// refill adds tokens for the time elapsed since the last refill, clamped
// to the burst size.
func (b *TokenBucket) refill() {
	now := b.nowFunc()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastRefill = now
}

// Acquire refills, then either deducts n tokens and reports admitted, or
// leaves the bucket unchanged and reports rejected.
func (b *TokenBucket) Acquire(n int) bool {
	b.refill()
	need := float64(n)
	if b.tokens < need {
		return false
	}
	b.tokens -= need
	return true
}

// Drain deducts up to n tokens, flooring at zero, and returns the amount
// actually taken. Critical admissions use it to preempt a depleted bucket.
func (b *TokenBucket) Drain(n int) float64 {
	b.refill()
	take := float64(n)
	if take > b.tokens {
		take = b.tokens
	}
	if take < 0 {
		take = 0
	}
	b.tokens -= take
	return take
}

// Refund returns n tokens, clamped to the burst size. Used when the paired
// bucket of a dual debit rejected the send.
func (b *TokenBucket) Refund(n int) {
	b.RefundTokens(float64(n))
}

// RefundTokens is Refund for the fractional amount a Drain reported.
func (b *TokenBucket) RefundTokens(t float64) {
	b.tokens += t
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
}

// Available returns the current token count after a refill.
func (b *TokenBucket) Available() float64 {
	b.refill()
	return b.tokens
}

// Utilization returns 1 - tokens/burst in [0, 1]: 0 for a full bucket,
// 1 for an empty one.
func (b *TokenBucket) Utilization() float64 {
	b.refill()
	if b.burst <= 0 {
		return 1
	}
	u := 1 - b.tokens/b.burst
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}

// SetLimit adjusts the refill rate and burst. Stored tokens above the new
// burst are discarded.
func (b *TokenBucket) SetLimit(rate, burst float64) {
	b.refill()
	b.rate = rate
	b.burst = burst
	if b.tokens > burst {
		b.tokens = burst
	}
}

// Rate returns the refill rate in bytes per second.
func (b *TokenBucket) Rate() float64 {
	return b.rate
}

// Burst returns the maximum stored tokens.
func (b *TokenBucket) Burst() float64 {
	return b.burst
}
