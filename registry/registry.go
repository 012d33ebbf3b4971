package registry

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbitkit/constellation/bandwidth"
	"github.com/orbitkit/constellation/bus"
	"github.com/orbitkit/constellation/codec"
	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/logging"
	"github.com/orbitkit/constellation/swarm"
)

// Protocol constants. GossipFanout and GossipReplication bound epidemic
// spread; changing them changes the discovery convergence bound.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultRetention         = 24 * time.Hour
	GossipFanout             = 3
	GossipReplication        = 2

	// helloEvery is the heartbeat-tick period of HELLO beacons.
	helloEvery = 3

	// maxBackoff caps the interval-widening multiplier: 30s -> 60s -> 120s.
	maxBackoff = 4
)

// HealthSource supplies the local health snapshot for each heartbeat.
type HealthSource func() (*swarm.HealthSummary, error)

// Config configures a Registry.
type Config struct {
	// Bus is the message bus for heartbeats and gossip.
	Bus bus.MessageBus

	// Self is this agent's swarm configuration.
	Self swarm.Config

	// Governor admits sends onto the constrained link. Optional; without
	// one, sends are not rate limited.
	Governor *bandwidth.Governor

	// Logger for registry events. Optional.
	Logger *logging.Logger

	// HealthSource supplies local health per heartbeat. Optional; defaults
	// to a nominal all-clear snapshot.
	HealthSource HealthSource

	// HeartbeatInterval between heartbeat ticks. Default: 30s.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout after which a silent peer counts as dead.
	// Default: 3x HeartbeatInterval.
	HeartbeatTimeout time.Duration

	// Retention bounds memory: peers silent longer than this are pruned.
	// Default: 24h.
	Retention time.Duration

	// Codec configures the compressor instances (entropy stage on/off).
	Codec codec.Config

	// ValidateHealth rejects decoded summaries that violate their bounds.
	// Default: true (set by the composition root from the schema-validation
	// flag).
	ValidateHealth bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Bus == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "registry requires a bus")
	}
	return c.Self.Validate()
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 3 * c.HeartbeatInterval
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Logger == nil {
		c.Logger = logging.New()
	}
	if c.HealthSource == nil {
		c.HealthSource = nominalHealth
	}
}

// nominalHealth is the fallback health source: all-clear.
func nominalHealth() (*swarm.HealthSummary, error) {
	var sig [swarm.SignatureLength]float32
	return swarm.NewHealthSummary(sig, 0, 0)
}

// peerState is the registry-internal per-peer record. The registry owns
// these exclusively; accessors hand out PeerInfo copies.
type peerState struct {
	id                swarm.AgentID
	role              swarm.Role
	lastHeartbeat     time.Time
	health            *swarm.HealthSummary
	heartbeatFailures int
	backoffMultiplier int

	// decoders hold the delta baselines for this peer's inbound streams,
	// keyed by the envelope stream tag. One sender publishes its heartbeat
	// and summary streams from independent encoders, so decoding them on a
	// shared baseline would desynchronize both.
	decoders map[string]*codec.Compressor
}

// decoder returns the decode baseline for one of the peer's streams,
// creating it on first sight. Caller holds the registry lock.
func (p *peerState) decoder(stream string, cfg codec.Config) *codec.Compressor {
	d, ok := p.decoders[stream]
	if !ok {
		d = codec.New(cfg)
		p.decoders[stream] = d
	}
	return d
}

// PeerInfo is a read-only copy of a peer record. Alive is computed at the
// moment the copy is taken.
type PeerInfo struct {
	AgentID           swarm.AgentID
	Role              swarm.Role
	LastHeartbeat     time.Time
	Health            *swarm.HealthSummary
	HeartbeatFailures int
	Alive             bool
}

// Stats summarizes the membership view for observability collaborators.
type Stats struct {
	Alive             int
	Dead              int
	Total             int
	QuorumSize        int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Registry tracks constellation membership and liveness.
type Registry struct {
	cfg    Config
	logger *logging.Logger

	mu    sync.RWMutex
	peers map[swarm.AgentID]*peerState

	// helloRelays counts how many times a HELLO from each origin has been
	// relayed. Monotonic per origin, never reset mid-run.
	helloRelays map[swarm.AgentID]int

	encoder *codec.Compressor
	rng     *rand.Rand
	nowFunc func() time.Time

	tick            int
	currentInterval time.Duration

	running   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	healthSub bus.Subscription
	helloSub  bus.Subscription
	inboxSub  bus.Subscription
}

// New creates a Registry and registers the agent itself as the first peer.
func New(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	r := &Registry{
		cfg:             cfg,
		logger:          cfg.Logger.WithAgent(cfg.Self.AgentID.SatelliteSerial).WithComponent("registry"),
		peers:           make(map[swarm.AgentID]*peerState),
		helloRelays:     make(map[swarm.AgentID]int),
		encoder:         codec.New(cfg.Codec),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		nowFunc:         time.Now,
		currentInterval: cfg.HeartbeatInterval,
	}
	r.registerSelf()

	// Seed statically configured peers so the first HELLO fanout has
	// somewhere to go.
	for _, id := range cfg.Self.Peers {
		if id != cfg.Self.AgentID {
			r.upsertPeer(id, "static")
		}
	}
	return r, nil
}

// registerSelf inserts our own record; liveness tracks our heartbeats.
func (r *Registry) registerSelf() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[r.cfg.Self.AgentID] = &peerState{
		id:            r.cfg.Self.AgentID,
		role:          r.cfg.Self.Role,
		lastHeartbeat: r.nowFunc(),
		decoders:      make(map[string]*codec.Compressor),
	}
}

// Start subscribes to the health and discovery topics and begins the
// background heartbeat loop.
func (r *Registry) Start(ctx context.Context) error {
	if r.running.Swap(true) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthSub, err := r.cfg.Bus.Subscribe(swarm.TopicHealth)
	if err != nil {
		r.running.Store(false)
		return errors.WrapWithCode(err, errors.ErrCodePublishFailed, "subscribe health topic")
	}
	helloSub, err := r.cfg.Bus.Subscribe(swarm.TopicHello)
	if err != nil {
		healthSub.Unsubscribe()
		r.running.Store(false)
		return errors.WrapWithCode(err, errors.ErrCodePublishFailed, "subscribe hello topic")
	}
	// Gossip relays address this agent's inbox topic directly.
	inboxSub, err := r.cfg.Bus.Subscribe(swarm.TopicHello + "." + r.cfg.Self.AgentID.UUID.String())
	if err != nil {
		healthSub.Unsubscribe()
		helloSub.Unsubscribe()
		r.running.Store(false)
		return errors.WrapWithCode(err, errors.ErrCodePublishFailed, "subscribe hello inbox")
	}

	r.healthSub = healthSub
	r.helloSub = helloSub
	r.inboxSub = inboxSub
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.run(ctx)
	return nil
}

// run is the single goroutine that owns all registry mutations: heartbeat
// ticks, health receipts, and gossip handling are serialized here.
func (r *Registry) run(ctx context.Context) {
	defer close(r.doneCh)

	timer := time.NewTimer(r.currentInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case msg, ok := <-r.healthSub.Messages():
			if !ok {
				return
			}
			r.onHealth(msg)
		case msg, ok := <-r.helloSub.Messages():
			if !ok {
				return
			}
			r.onHello(msg)
		case msg, ok := <-r.inboxSub.Messages():
			if !ok {
				return
			}
			r.onHello(msg)
		case <-timer.C:
			r.heartbeatTick()
			timer.Reset(r.currentInterval)
		}
	}
}

// Stop cancels the background loop and waits for it to unwind. Idempotent;
// calling it twice or before Start is a no-op.
func (r *Registry) Stop() error {
	if !r.running.Swap(false) {
		return nil
	}
	close(r.stopCh)
	<-r.doneCh

	r.healthSub.Unsubscribe()
	r.helloSub.Unsubscribe()
	r.inboxSub.Unsubscribe()
	return nil
}

// Self returns this agent's identity.
func (r *Registry) Self() swarm.AgentID {
	return r.cfg.Self.AgentID
}

// upsertPeer creates a peer record on first sight or refreshes its
// heartbeat. Duplicate and out-of-order deliveries are tolerated:
// creation is idempotent and heartbeat updates are last-write-wins.
func (r *Registry) upsertPeer(id swarm.AgentID, via string) *peerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		p = &peerState{
			id:       id,
			role:     swarm.RoleStandby,
			decoders: make(map[string]*codec.Compressor),
		}
		r.peers[id] = p
		r.logger.PeerDiscovered(id.SatelliteSerial, via)
	}
	p.lastHeartbeat = r.nowFunc()
	return p
}

// Peer returns a copy of a peer record, if known.
func (r *Registry) Peer(id swarm.AgentID) (PeerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[id]
	if !ok {
		return PeerInfo{}, false
	}
	return r.infoLocked(p), true
}

// AlivePeers returns copies of every peer whose heartbeat is within the
// timeout. Liveness is computed fresh each call.
func (r *Registry) AlivePeers() []PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var alive []PeerInfo
	for _, p := range r.peers {
		if r.aliveLocked(p) {
			alive = append(alive, r.infoLocked(p))
		}
	}
	return alive
}

// AlivePeerIDs returns the identities of alive peers. This is the narrow
// view the safety simulator consumes.
func (r *Registry) AlivePeerIDs() []swarm.AgentID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []swarm.AgentID
	for _, p := range r.peers {
		if r.aliveLocked(p) {
			ids = append(ids, p.id)
		}
	}
	return ids
}

// QuorumSize returns floor(alive/2) + 1.
func (r *Registry) QuorumSize() int {
	return len(r.AlivePeerIDs())/2 + 1
}

// RegistryStats returns alive/dead counts and the configured intervals.
func (r *Registry) RegistryStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alive := 0
	for _, p := range r.peers {
		if r.aliveLocked(p) {
			alive++
		}
	}
	return Stats{
		Alive:             alive,
		Dead:              len(r.peers) - alive,
		Total:             len(r.peers),
		QuorumSize:        alive/2 + 1,
		HeartbeatInterval: r.cfg.HeartbeatInterval,
		HeartbeatTimeout:  r.cfg.HeartbeatTimeout,
	}
}

// aliveLocked computes liveness at call time. Caller holds the lock.
func (r *Registry) aliveLocked(p *peerState) bool {
	return r.nowFunc().Sub(p.lastHeartbeat) <= r.cfg.HeartbeatTimeout
}

// infoLocked copies a record. The health summary is copied by value so the
// caller cannot reach the registry's own copy.
func (r *Registry) infoLocked(p *peerState) PeerInfo {
	info := PeerInfo{
		AgentID:           p.id,
		Role:              p.role,
		LastHeartbeat:     p.lastHeartbeat,
		HeartbeatFailures: p.heartbeatFailures,
		Alive:             r.aliveLocked(p),
	}
	if p.health != nil {
		h := *p.health
		info.Health = &h
	}
	return info
}

// prune drops peers silent longer than the retention window. Runs on
// heartbeat ticks; dead-but-recent peers are kept so they can come back.
func (r *Registry) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.nowFunc().Add(-r.cfg.Retention)
	for id, p := range r.peers {
		if id == r.cfg.Self.AgentID {
			continue
		}
		if p.lastHeartbeat.Before(cutoff) {
			delete(r.peers, id)
			delete(r.helloRelays, id)
		}
	}
}
