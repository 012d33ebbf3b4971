package broadcast

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/swarm"
)

// signingInput is the canonical byte string a signature covers. Field
// order and the ":" delimiter are part of the wire contract.
func signingInput(e *swarm.Envelope) []byte {
	return []byte(e.SenderUUID + ":" + e.Constellation + ":" + e.Stream + ":" + e.PayloadHex + ":" + e.Timestamp)
}

// DeriveKey produces the 32-byte constellation signing key for an agent
// identity. Agents that share a constellation tag and know each other's
// serials can derive each other's verification keys.
func DeriveKey(id swarm.AgentID) [32]byte {
	return blake3.Sum256([]byte("swarm-signing:" + id.Constellation + ":" + id.SatelliteSerial))
}

// Signer signs and verifies health envelopes with a keyed BLAKE3 hash.
type Signer struct {
	key [32]byte
}

// NewSigner creates a Signer with the key derived from the identity.
func NewSigner(id swarm.AgentID) *Signer {
	return &Signer{key: DeriveKey(id)}
}

// NewSignerWithKey creates a Signer with an explicit 32-byte key, for
// deployments that provision keys out of band.
func NewSignerWithKey(key [32]byte) *Signer {
	return &Signer{key: key}
}

// Sign computes the envelope signature and stores it in SignatureHex.
func (s *Signer) Sign(e *swarm.Envelope) {
	e.SignatureHex = hex.EncodeToString(s.mac(signingInput(e)))
}

// Verify checks the envelope signature against this signer's key.
func (s *Signer) Verify(e *swarm.Envelope) error {
	if e.SignatureHex == "" {
		return errors.New(errors.ErrCodeBadSignature, "envelope is unsigned")
	}
	claimed, err := hex.DecodeString(e.SignatureHex)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeBadSignature, "malformed signature hex")
	}
	want := s.mac(signingInput(e))
	if subtle.ConstantTimeCompare(claimed, want) != 1 {
		return errors.Newf(errors.ErrCodeBadSignature, "signature mismatch for sender %s", e.Serial)
	}
	return nil
}

// mac is the keyed hash primitive.
func (s *Signer) mac(input []byte) []byte {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// array rules out.
	hasher, err := blake3.NewKeyed(s.key[:])
	if err != nil {
		panic("broadcast: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(input)
	return hasher.Sum(nil)
}

// VerifyEnvelope verifies an envelope using the key derived from the
// sender identity it claims. The identity cross-check in SenderID runs
// first, so a forged serial fails before the signature is even computed.
func VerifyEnvelope(e *swarm.Envelope) error {
	id, err := e.SenderID()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeBadEnvelope, "envelope identity rejected")
	}
	return NewSigner(id).Verify(e)
}
