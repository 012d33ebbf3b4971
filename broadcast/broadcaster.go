package broadcast

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/orbitkit/constellation/bandwidth"
	"github.com/orbitkit/constellation/bus"
	"github.com/orbitkit/constellation/codec"
	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/logging"
	"github.com/orbitkit/constellation/swarm"
)

// DefaultPeriod is the base broadcast period under a healthy link.
const DefaultPeriod = 30 * time.Second

// Congestion thresholds at which the period stretches.
const (
	stretchUtilization = 0.70 // 2x period
	crawlUtilization   = 0.85 // 4x period
)

// digestComponents is how many leading anomaly components the change
// digest covers. Changes confined to later components do not retrigger a
// broadcast on their own; the periodic cadence still carries them.
const digestComponents = 8

// HealthSource supplies the health summary to broadcast.
type HealthSource func() (*swarm.HealthSummary, error)

// Config configures a Broadcaster.
type Config struct {
	// Bus is the message bus broadcasts are published on.
	Bus bus.MessageBus

	// Self is this agent's swarm configuration.
	Self swarm.Config

	// HealthSource supplies the summary for each broadcast.
	HealthSource HealthSource

	// Governor drives the adaptive cadence and admits each send.
	// Optional; without one the period stays at its base.
	Governor *bandwidth.Governor

	// Logger for broadcast events. Optional.
	Logger *logging.Logger

	// Signer signs outgoing envelopes. Optional; defaults to the key
	// derived from Self's identity.
	Signer *Signer

	// Period is the base broadcast period. Default: 30s.
	Period time.Duration

	// Codec configures the compression pipeline.
	Codec codec.Config
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Bus == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "broadcaster requires a bus")
	}
	if c.HealthSource == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "broadcaster requires a health source")
	}
	return c.Self.Validate()
}

// Stats summarizes broadcaster activity.
type Stats struct {
	Broadcasts     uint64
	Skipped        uint64
	Failures       uint64
	AverageLatency time.Duration
	CurrentPeriod  time.Duration
}

// Broadcaster periodically publishes the agent's signed health envelope.
type Broadcaster struct {
	cfg    Config
	logger *logging.Logger
	signer *Signer

	// mu guards the encoder, the change digest, and the stats so that
	// BroadcastNow can run concurrently with the background loop.
	mu           sync.Mutex
	encoder      *codec.Compressor
	lastDigest   [32]byte
	hasLast      bool
	broadcasts   uint64
	skipped      uint64
	failures     uint64
	totalLatency time.Duration

	nowFunc func() time.Time

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Broadcaster.
func New(cfg Config) (*Broadcaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Signer == nil {
		cfg.Signer = NewSigner(cfg.Self.AgentID)
	}

	return &Broadcaster{
		cfg:     cfg,
		logger:  cfg.Logger.WithAgent(cfg.Self.AgentID.SatelliteSerial).WithComponent("broadcast"),
		signer:  cfg.Signer,
		encoder: codec.New(cfg.Codec),
		nowFunc: time.Now,
	}, nil
}

// Start begins the background broadcast loop.
func (b *Broadcaster) Start(ctx context.Context) error {
	if b.running.Swap(true) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	go b.run(ctx)
	return nil
}

func (b *Broadcaster) run(ctx context.Context) {
	defer close(b.doneCh)

	timer := time.NewTimer(b.period())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-timer.C:
			if err := b.BroadcastNow(); err != nil {
				b.logger.Warn("health broadcast failed", map[string]interface{}{"error": err.Error()})
			}
			timer.Reset(b.period())
		}
	}
}

// Stop cancels the background loop and waits for it to exit. Idempotent;
// Stop before Start is a no-op.
func (b *Broadcaster) Stop() error {
	if !b.running.Swap(false) {
		return nil
	}
	close(b.stopCh)
	<-b.doneCh
	return nil
}

// period computes the current cadence from link utilization.
func (b *Broadcaster) period() time.Duration {
	if b.cfg.Governor == nil {
		return b.cfg.Period
	}
	u := b.cfg.Governor.GlobalUtilization()
	switch {
	case u > crawlUtilization:
		return 4 * b.cfg.Period
	case u > stretchUtilization:
		return 2 * b.cfg.Period
	default:
		return b.cfg.Period
	}
}

// BroadcastNow runs a single broadcast cycle: fetch, compare, compress,
// sign, publish. An unchanged summary is skipped without error.
func (b *Broadcaster) BroadcastNow() error {
	health, err := b.cfg.HealthSource()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInternal, "health source")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	digest := changeDigest(health)
	if b.hasLast && digest == b.lastDigest {
		b.skipped++
		b.logger.BroadcastSkipped()
		return nil
	}

	start := b.nowFunc()

	wire, err := b.encoder.Encode(health)
	if err != nil {
		b.failures++
		return err
	}

	self := b.cfg.Self.AgentID
	env := &swarm.Envelope{
		SenderUUID:    self.UUID.String(),
		Constellation: self.Constellation,
		Serial:        self.SatelliteSerial,
		Stream:        swarm.StreamSummary,
		PayloadHex:    hex.EncodeToString(wire),
		Timestamp:     b.nowFunc().UTC().Format(time.RFC3339Nano),
	}
	b.signer.Sign(env)

	data, err := env.Marshal()
	if err != nil {
		b.failures++
		return errors.WrapWithCode(err, errors.ErrCodeInternal, "marshal envelope")
	}

	if b.cfg.Governor != nil {
		if err := b.cfg.Governor.AdmitBroadcast(len(data), bandwidth.PriorityCritical); err != nil {
			b.failures++
			return err
		}
	}
	if err := b.cfg.Bus.Publish(swarm.TopicHealth, data, bus.PublishOptions{Quality: bus.AtLeastOnce}); err != nil {
		b.failures++
		return errors.PublishFailed(swarm.TopicHealth, err)
	}

	b.broadcasts++
	b.totalLatency += b.nowFunc().Sub(start)
	b.lastDigest = digest
	b.hasLast = true
	return nil
}

// BroadcastStats returns a snapshot of broadcaster activity.
func (b *Broadcaster) BroadcastStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		Broadcasts:    b.broadcasts,
		Skipped:       b.skipped,
		Failures:      b.failures,
		CurrentPeriod: b.period(),
	}
	if b.broadcasts > 0 {
		s.AverageLatency = b.totalLatency / time.Duration(b.broadcasts)
	}
	return s
}

// changeDigest hashes the fields whose change warrants an immediate
// broadcast: both scalar scores and the first digestComponents anomaly
// components.
func changeDigest(h *swarm.HealthSummary) [32]byte {
	buf := make([]byte, 8+8+4*digestComponents)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(h.RiskScore))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(h.RecurrenceScore))
	for i := 0; i < digestComponents; i++ {
		binary.LittleEndian.PutUint32(buf[16+4*i:], math.Float32bits(h.AnomalySignature[i]))
	}
	return blake3.Sum256(buf)
}
