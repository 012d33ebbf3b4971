package registry

import (
	"encoding/hex"

	"github.com/orbitkit/constellation/bandwidth"
	"github.com/orbitkit/constellation/bus"
	"github.com/orbitkit/constellation/swarm"
)

// onHealth processes an inbound health envelope: it refreshes the sender's
// liveness and decodes the compressed summary on the baseline of the
// sender's tagged stream.
// Envelopes from other constellations or with invalid identities are
// ignored, not errors; a shared link can carry foreign traffic.
func (r *Registry) onHealth(msg *bus.Message) {
	env, err := swarm.UnmarshalEnvelope(msg.Data)
	if err != nil {
		r.logger.Debug("dropping unparseable health envelope", map[string]interface{}{"error": err.Error()})
		return
	}

	sender, err := env.SenderID()
	if err != nil {
		r.logger.Debug("dropping health envelope with bad identity", map[string]interface{}{"error": err.Error()})
		return
	}
	if sender == r.cfg.Self.AgentID {
		return
	}
	if sender.Constellation != r.cfg.Self.AgentID.Constellation {
		return
	}

	wire, err := hex.DecodeString(env.PayloadHex)
	if err != nil {
		r.logger.Debug("dropping health envelope with bad payload hex", map[string]interface{}{
			"sender": sender.SatelliteSerial,
			"error":  err.Error(),
		})
		return
	}

	p := r.upsertPeer(sender, "health")

	r.mu.Lock()
	defer r.mu.Unlock()

	decoder := p.decoder(env.Stream, r.cfg.Codec)
	health, err := decoder.Decode(wire)
	if err != nil {
		// A failed decode desynchronizes the delta stream; reset so the
		// next message re-establishes the baseline as best it can.
		decoder.Reset()
		r.logger.Warn("health payload decode failed", map[string]interface{}{
			"sender": sender.SatelliteSerial,
			"error":  err.Error(),
		})
		return
	}
	if r.cfg.ValidateHealth {
		if err := health.Validate(); err != nil {
			r.logger.Warn("rejecting out-of-bound health summary", map[string]interface{}{
				"sender": sender.SatelliteSerial,
				"error":  err.Error(),
			})
			return
		}
	}
	p.health = health
}

// onHello processes a discovery beacon: register the origin, then relay.
// Each origin's beacon is relayed at most GossipReplication times by this
// agent, which bounds epidemic amplification on the shared link.
func (r *Registry) onHello(msg *bus.Message) {
	hello, err := swarm.UnmarshalHello(msg.Data)
	if err != nil {
		r.logger.Debug("dropping unparseable hello", map[string]interface{}{"error": err.Error()})
		return
	}

	origin, err := hello.SenderID()
	if err != nil {
		r.logger.Debug("dropping hello with bad identity", map[string]interface{}{"error": err.Error()})
		return
	}
	if origin == r.cfg.Self.AgentID {
		return
	}
	if origin.Constellation != r.cfg.Self.AgentID.Constellation {
		return
	}

	r.upsertPeer(origin, "hello")
	r.relayHello(origin, msg.Data)
}

// relayHello forwards the raw beacon bytes to up to GossipFanout random
// alive peers, excluding ourselves and the origin. The bytes are forwarded
// unmodified so the origin identity survives every hop.
func (r *Registry) relayHello(origin swarm.AgentID, raw []byte) {
	r.mu.Lock()
	relayed := r.helloRelays[origin]
	if relayed >= GossipReplication {
		r.mu.Unlock()
		r.logger.GossipDropped(origin.SatelliteSerial, relayed)
		return
	}
	r.helloRelays[origin] = relayed + 1

	var targets []swarm.AgentID
	for id, p := range r.peers {
		if id == r.cfg.Self.AgentID || id == origin {
			continue
		}
		if r.aliveLocked(p) {
			targets = append(targets, id)
		}
	}
	r.rng.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})
	if len(targets) > GossipFanout {
		targets = targets[:GossipFanout]
	}
	r.mu.Unlock()

	for _, target := range targets {
		receiver := target.UUID.String()
		if r.cfg.Governor != nil {
			if err := r.cfg.Governor.Admit(receiver, len(raw), bandwidth.PriorityNormal); err != nil {
				continue
			}
		}
		// Best-effort: a lost relay is recovered by the origin's next beacon.
		_ = r.cfg.Bus.Publish(swarm.TopicHello, raw, bus.PublishOptions{Receiver: receiver})
	}
}
