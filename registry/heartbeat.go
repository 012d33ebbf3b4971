package registry

import (
	"encoding/hex"
	"time"

	"github.com/orbitkit/constellation/bandwidth"
	"github.com/orbitkit/constellation/bus"
	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/swarm"
)

// heartbeatTick runs once per heartbeat interval on the run goroutine. It
// publishes the local health envelope, emits a HELLO beacon every third
// tick, and prunes peers past the retention window.
func (r *Registry) heartbeatTick() {
	r.tick++

	if err := r.publishHeartbeat(); err != nil {
		r.recordHeartbeatFailure(err)
	} else {
		r.recordHeartbeatSuccess()
	}

	if r.tick%helloEvery == 0 {
		r.publishHello()
	}

	r.prune()
}

// publishHeartbeat encodes the local health summary and publishes it
// at-least-once on the health topic. Heartbeats are CRITICAL traffic.
func (r *Registry) publishHeartbeat() error {
	health, err := r.cfg.HealthSource()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInternal, "health source")
	}

	wire, err := r.encoder.Encode(health)
	if err != nil {
		return err
	}

	self := r.cfg.Self.AgentID
	env := &swarm.Envelope{
		SenderUUID:    self.UUID.String(),
		Constellation: self.Constellation,
		Serial:        self.SatelliteSerial,
		Stream:        swarm.StreamHeartbeat,
		PayloadHex:    hex.EncodeToString(wire),
		Timestamp:     r.nowFunc().UTC().Format(time.RFC3339Nano),
	}
	data, err := env.Marshal()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInternal, "marshal heartbeat envelope")
	}

	if r.cfg.Governor != nil {
		if err := r.cfg.Governor.AdmitBroadcast(len(data), bandwidth.PriorityCritical); err != nil {
			return err
		}
	}
	if err := r.cfg.Bus.Publish(swarm.TopicHealth, data, bus.PublishOptions{Quality: bus.AtLeastOnce}); err != nil {
		return errors.PublishFailed(swarm.TopicHealth, err)
	}
	return nil
}

// recordHeartbeatFailure widens the heartbeat interval: the base interval
// doubles per consecutive failure up to 4x (30s -> 60s -> 120s). Delta
// baselines survive, so the next successful heartbeat resumes the stream.
func (r *Registry) recordHeartbeatFailure(err error) {
	r.mu.Lock()
	self := r.peers[r.cfg.Self.AgentID]
	self.heartbeatFailures++
	if self.backoffMultiplier == 0 {
		self.backoffMultiplier = 1
	}
	if self.backoffMultiplier < maxBackoff {
		self.backoffMultiplier *= 2
	}
	failures := self.heartbeatFailures
	r.currentInterval = r.cfg.HeartbeatInterval * time.Duration(self.backoffMultiplier)
	next := r.currentInterval
	r.mu.Unlock()

	r.logger.HeartbeatFailure(failures, next, err)
}

// recordHeartbeatSuccess restores the base interval and refreshes our own
// liveness record.
func (r *Registry) recordHeartbeatSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()

	self := r.peers[r.cfg.Self.AgentID]
	self.heartbeatFailures = 0
	self.backoffMultiplier = 1
	self.lastHeartbeat = r.nowFunc()
	r.currentInterval = r.cfg.HeartbeatInterval
}

// publishHello emits an undirected discovery beacon. Best-effort: a lost
// beacon is recovered by the next one.
func (r *Registry) publishHello() {
	hello := swarm.NewHello(r.cfg.Self.AgentID)
	data, err := hello.Marshal()
	if err != nil {
		r.logger.Error("hello marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if r.cfg.Governor != nil {
		if err := r.cfg.Governor.AdmitBroadcast(len(data), bandwidth.PriorityNormal); err != nil {
			r.logger.Debug("hello beacon not admitted", map[string]interface{}{"error": err.Error()})
			return
		}
	}
	if err := r.cfg.Bus.Publish(swarm.TopicHello, data, bus.PublishOptions{}); err != nil {
		r.logger.Debug("hello beacon publish failed", map[string]interface{}{"error": err.Error()})
	}
}
