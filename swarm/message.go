package swarm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Bus topics. Hello beacons addressed to a single peer are published to
// TopicHello + "." + receiver UUID.
const (
	TopicHealth = "swarm.health"
	TopicHello  = "swarm.hello"
)

// Stream tags name the independent delta streams one sender publishes on
// the health topic. The registry heartbeat loop and the health broadcaster
// each own an encoder, so each (sender, stream) pair needs its own decode
// baseline at the receiver; mixing them would silently corrupt the
// reconstructed signatures.
const (
	StreamHeartbeat = "hb"
	StreamSummary   = "sum"
)

// encMode is the CBOR encoder configured for deterministic encoding: sorted
// map keys, smallest integer widths. The same logical message always
// produces identical bytes, which matters for gossip deduplication and for
// signing.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("swarm: CBOR encoder initialization failed: " + err.Error())
	}
}

// Hello is the gossip discovery beacon. Relays forward the encoded bytes
// unmodified, so the sender fields always describe the original sender, not
// the relay.
type Hello struct {
	Constellation string `cbor:"c"`
	Serial        string `cbor:"s"`
	UUID          string `cbor:"u"`
}

// NewHello builds a Hello for an agent.
func NewHello(id AgentID) *Hello {
	return &Hello{
		Constellation: id.Constellation,
		Serial:        id.SatelliteSerial,
		UUID:          id.UUID.String(),
	}
}

// SenderID reconstructs and validates the sender identity. The UUID carried
// on the wire must match the one derived from the serial, which rejects
// spoofed or corrupted beacons.
func (h *Hello) SenderID() (AgentID, error) {
	id, err := NewAgentIDIn(h.Constellation, h.Serial)
	if err != nil {
		return AgentID{}, err
	}
	claimed, err := uuid.Parse(h.UUID)
	if err != nil {
		return AgentID{}, fmt.Errorf("hello carries malformed uuid: %w", err)
	}
	if claimed != id.UUID {
		return AgentID{}, fmt.Errorf("hello uuid %s does not match serial %q", claimed, h.Serial)
	}
	return id, nil
}

// Marshal serializes the hello to deterministic CBOR.
func (h *Hello) Marshal() ([]byte, error) {
	return encMode.Marshal(h)
}

// UnmarshalHello deserializes a hello beacon.
func UnmarshalHello(data []byte) (*Hello, error) {
	var h Hello
	if err := cbor.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Envelope is the health message that crosses the inter-satellite link.
// PayloadHex holds the hex-encoded compressed health summary, Stream the
// delta-stream tag it belongs to. SignatureHex is a keyed hash over the
// other fields (see package broadcast); it is empty on unsigned registry
// heartbeats.
//
// CBOR rather than JSON keeps the envelope overhead small on the
// bandwidth-constrained link.
type Envelope struct {
	SenderUUID    string `cbor:"sender"`
	Constellation string `cbor:"constellation"`
	Serial        string `cbor:"serial"`
	Stream        string `cbor:"stream,omitempty"`
	PayloadHex    string `cbor:"payload"`
	Timestamp     string `cbor:"ts"`
	SignatureHex  string `cbor:"sig,omitempty"`
}

// Marshal serializes the envelope to deterministic CBOR.
func (e *Envelope) Marshal() ([]byte, error) {
	return encMode.Marshal(e)
}

// UnmarshalEnvelope deserializes a health envelope.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SenderID reconstructs and validates the sender identity, cross-checking
// the carried UUID against the serial-derived one.
func (e *Envelope) SenderID() (AgentID, error) {
	id, err := NewAgentIDIn(e.Constellation, e.Serial)
	if err != nil {
		return AgentID{}, err
	}
	claimed, err := uuid.Parse(e.SenderUUID)
	if err != nil {
		return AgentID{}, fmt.Errorf("envelope carries malformed uuid: %w", err)
	}
	if claimed != id.UUID {
		return AgentID{}, fmt.Errorf("envelope uuid %s does not match serial %q", claimed, e.Serial)
	}
	return id, nil
}
