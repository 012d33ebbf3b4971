package broadcast

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/orbitkit/constellation/bandwidth"
	"github.com/orbitkit/constellation/bus"
	"github.com/orbitkit/constellation/codec"
	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/swarm"
)

func testAgentID(t *testing.T, serial string) swarm.AgentID {
	t.Helper()
	id, err := swarm.NewAgentID(serial)
	if err != nil {
		t.Fatalf("NewAgentID(%q): %v", serial, err)
	}
	return id
}

func testHealth(t *testing.T, risk float64) *swarm.HealthSummary {
	t.Helper()
	var sig [swarm.SignatureLength]float32
	sig[0] = 0.25
	h, err := swarm.NewHealthSummary(sig, risk, 1.0)
	if err != nil {
		t.Fatalf("NewHealthSummary: %v", err)
	}
	return h
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id := testAgentID(t, "SAT-SIG-1")
	signer := NewSigner(id)

	env := &swarm.Envelope{
		SenderUUID:    id.UUID.String(),
		Constellation: id.Constellation,
		Serial:        id.SatelliteSerial,
		PayloadHex:    "0102ff",
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	signer.Sign(env)

	if env.SignatureHex == "" {
		t.Fatal("Sign left SignatureHex empty")
	}
	if err := signer.Verify(env); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := VerifyEnvelope(env); err != nil {
		t.Fatalf("VerifyEnvelope: %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	id := testAgentID(t, "SAT-SIG-2")
	signer := NewSigner(id)

	env := &swarm.Envelope{
		SenderUUID:    id.UUID.String(),
		Constellation: id.Constellation,
		Serial:        id.SatelliteSerial,
		PayloadHex:    "0102ff",
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	signer.Sign(env)

	tampered := *env
	tampered.PayloadHex = "0102fe"
	if err := signer.Verify(&tampered); !errors.Is(err, errors.ErrCodeBadSignature) {
		t.Errorf("tampered payload: got %v, want BAD_SIGNATURE", err)
	}

	retagged := *env
	retagged.Stream = swarm.StreamHeartbeat
	if err := signer.Verify(&retagged); !errors.Is(err, errors.ErrCodeBadSignature) {
		t.Errorf("retagged stream: got %v, want BAD_SIGNATURE", err)
	}

	unsigned := *env
	unsigned.SignatureHex = ""
	if err := signer.Verify(&unsigned); !errors.Is(err, errors.ErrCodeBadSignature) {
		t.Errorf("unsigned envelope: got %v, want BAD_SIGNATURE", err)
	}

	wrongKey := NewSigner(testAgentID(t, "SAT-SIG-3"))
	if err := wrongKey.Verify(env); !errors.Is(err, errors.ErrCodeBadSignature) {
		t.Errorf("wrong key: got %v, want BAD_SIGNATURE", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	id := testAgentID(t, "SAT-KEY-1")
	if DeriveKey(id) != DeriveKey(id) {
		t.Error("DeriveKey must be deterministic")
	}
	other := testAgentID(t, "SAT-KEY-2")
	if DeriveKey(id) == DeriveKey(other) {
		t.Error("different serials must derive different keys")
	}
}

func newTestBroadcaster(t *testing.T, b bus.MessageBus, source HealthSource, gov *bandwidth.Governor) *Broadcaster {
	t.Helper()
	br, err := New(Config{
		Bus:          b,
		Self:         swarm.DefaultConfig(testAgentID(t, "SAT-BC-1")),
		HealthSource: source,
		Governor:     gov,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return br
}

func TestBroadcastPublishesSignedEnvelope(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	sub, err := mb.Subscribe(swarm.TopicHealth)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	h := testHealth(t, 0.4)
	br := newTestBroadcaster(t, mb, func() (*swarm.HealthSummary, error) { return h, nil }, nil)

	if err := br.BroadcastNow(); err != nil {
		t.Fatalf("BroadcastNow: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		env, err := swarm.UnmarshalEnvelope(msg.Data)
		if err != nil {
			t.Fatalf("UnmarshalEnvelope: %v", err)
		}
		if err := VerifyEnvelope(env); err != nil {
			t.Fatalf("broadcast envelope failed verification: %v", err)
		}

		// The payload decodes to the summary that was broadcast.
		wire, err := hex.DecodeString(env.PayloadHex)
		if err != nil {
			t.Fatalf("payload hex: %v", err)
		}
		dec := codec.New(codec.DefaultConfig())
		got, err := dec.Decode(wire)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if diff := got.RiskScore - 0.4; diff < -1e-6 || diff > 1e-6 {
			t.Errorf("decoded RiskScore = %v, want 0.4", got.RiskScore)
		}
	default:
		t.Fatal("no broadcast arrived on the health topic")
	}

	stats := br.BroadcastStats()
	if stats.Broadcasts != 1 || stats.Failures != 0 {
		t.Errorf("stats = %+v, want 1 broadcast and no failures", stats)
	}
}

func TestUnchangedSummarySkipped(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	sub, _ := mb.Subscribe(swarm.TopicHealth)
	defer sub.Unsubscribe()

	h := testHealth(t, 0.4)
	br := newTestBroadcaster(t, mb, func() (*swarm.HealthSummary, error) { return h, nil }, nil)

	for i := 0; i < 3; i++ {
		if err := br.BroadcastNow(); err != nil {
			t.Fatalf("BroadcastNow %d: %v", i, err)
		}
	}

	stats := br.BroadcastStats()
	if stats.Broadcasts != 1 {
		t.Errorf("Broadcasts = %d, want 1", stats.Broadcasts)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}

	// A risk change retriggers.
	h = testHealth(t, 0.6)
	if err := br.BroadcastNow(); err != nil {
		t.Fatalf("BroadcastNow after change: %v", err)
	}
	if got := br.BroadcastStats().Broadcasts; got != 2 {
		t.Errorf("Broadcasts = %d after change, want 2", got)
	}
}

func TestLateComponentChangeDoesNotRetrigger(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	sub, _ := mb.Subscribe(swarm.TopicHealth)
	defer sub.Unsubscribe()

	h := testHealth(t, 0.4)
	br := newTestBroadcaster(t, mb, func() (*swarm.HealthSummary, error) { return h, nil }, nil)

	if err := br.BroadcastNow(); err != nil {
		t.Fatalf("first BroadcastNow: %v", err)
	}

	// Components beyond the digest window do not gate a broadcast.
	h.AnomalySignature[swarm.SignatureLength-1] = 0.9
	if err := br.BroadcastNow(); err != nil {
		t.Fatalf("second BroadcastNow: %v", err)
	}
	if got := br.BroadcastStats().Skipped; got != 1 {
		t.Errorf("Skipped = %d, want 1", got)
	}

	// A change inside the window does.
	h.AnomalySignature[0] = 0.9
	if err := br.BroadcastNow(); err != nil {
		t.Fatalf("third BroadcastNow: %v", err)
	}
	if got := br.BroadcastStats().Broadcasts; got != 2 {
		t.Errorf("Broadcasts = %d, want 2", got)
	}
}

func TestAdaptivePeriod(t *testing.T) {
	gov := bandwidth.NewGovernor(bandwidth.GovernorConfig{GlobalRate: 1000, GlobalBurst: 1000})
	h := testHealth(t, 0.4)
	br := newTestBroadcaster(t, bus.NewMemoryBus(bus.DefaultConfig()),
		func() (*swarm.HealthSummary, error) { return h, nil }, gov)

	if got := br.period(); got != DefaultPeriod {
		t.Errorf("idle period = %v, want %v", got, DefaultPeriod)
	}

	// Drain to 75% utilization: period doubles.
	if err := gov.AdmitBroadcast(750, bandwidth.PriorityCritical); err != nil {
		t.Fatalf("AdmitBroadcast: %v", err)
	}
	if got := br.period(); got != 2*DefaultPeriod {
		t.Errorf("period at 75%% = %v, want %v", got, 2*DefaultPeriod)
	}

	// Past 85%: period quadruples.
	if err := gov.AdmitBroadcast(150, bandwidth.PriorityCritical); err != nil {
		t.Fatalf("AdmitBroadcast: %v", err)
	}
	if got := br.period(); got != 4*DefaultPeriod {
		t.Errorf("period at 90%% = %v, want %v", got, 4*DefaultPeriod)
	}
}

func TestBroadcastFailureCounted(t *testing.T) {
	// No subscribers: at-least-once publish fails.
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	h := testHealth(t, 0.4)
	br := newTestBroadcaster(t, mb, func() (*swarm.HealthSummary, error) { return h, nil }, nil)

	err := br.BroadcastNow()
	if err == nil {
		t.Fatal("expected publish failure with no subscribers")
	}
	if !errors.IsRetryable(err) {
		t.Errorf("publish failure should be retryable, got %v", err)
	}

	stats := br.BroadcastStats()
	if stats.Failures != 1 || stats.Broadcasts != 0 {
		t.Errorf("stats = %+v, want 1 failure and no broadcasts", stats)
	}

	// The digest was not recorded, so the same summary broadcasts once a
	// subscriber appears.
	sub, _ := mb.Subscribe(swarm.TopicHealth)
	defer sub.Unsubscribe()
	if err := br.BroadcastNow(); err != nil {
		t.Fatalf("BroadcastNow after subscriber: %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	mb := bus.NewMemoryBus(bus.DefaultConfig())
	sub, _ := mb.Subscribe(swarm.TopicHealth)
	defer sub.Unsubscribe()

	h := testHealth(t, 0.4)
	br := newTestBroadcaster(t, mb, func() (*swarm.HealthSummary, error) { return h, nil }, nil)

	if err := br.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := br.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := br.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
