package swarm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Constellation is the protocol family tag. Agents from a different
// constellation are rejected at construction time; the tag also feeds the
// deterministic UUID derivation, so changing it changes every agent identity.
const Constellation = "orbitkit-v1"

// Common errors.
var (
	ErrWrongConstellation = errors.New("constellation tag mismatch")
	ErrEmptySerial        = errors.New("satellite serial must be non-empty")
	ErrInvalidConfig      = errors.New("invalid swarm configuration")
)

// AgentID identifies a satellite agent. It is an immutable value type,
// comparable and usable as a map key.
type AgentID struct {
	// Constellation is the protocol family tag. Always equals the
	// package-level Constellation constant for valid IDs.
	Constellation string

	// SatelliteSerial is the operator-assigned serial of the satellite.
	SatelliteSerial string

	// UUID is derived from "constellation:serial" with a name-based hash,
	// so any two processes compute the same UUID for the same serial.
	UUID uuid.UUID
}

// NewAgentID creates an AgentID for a satellite in this constellation.
func NewAgentID(serial string) (AgentID, error) {
	return NewAgentIDIn(Constellation, serial)
}

// NewAgentIDIn creates an AgentID with an explicit constellation tag.
// The tag must equal the supported Constellation constant; the parameter
// exists so that received identities can be validated, not so that foreign
// constellations can be constructed.
func NewAgentIDIn(constellation, serial string) (AgentID, error) {
	if constellation != Constellation {
		return AgentID{}, fmt.Errorf("%w: got %q, want %q", ErrWrongConstellation, constellation, Constellation)
	}
	if serial == "" {
		return AgentID{}, ErrEmptySerial
	}
	return AgentID{
		Constellation:   constellation,
		SatelliteSerial: serial,
		UUID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte(constellation+":"+serial)),
	}, nil
}

// String returns "serial (uuid)" for logs and error messages.
func (a AgentID) String() string {
	return a.SatelliteSerial + " (" + a.UUID.String() + ")"
}

// IsZero reports whether the ID is the zero value.
func (a AgentID) IsZero() bool {
	return a == AgentID{}
}

// Role is the operational role a satellite plays in the swarm.
type Role string

const (
	RolePrimary  Role = "PRIMARY"
	RoleBackup   Role = "BACKUP"
	RoleStandby  Role = "STANDBY"
	RoleSafeMode Role = "SAFE_MODE"
)

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePrimary, RoleBackup, RoleStandby, RoleSafeMode:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// Config is the static per-agent swarm configuration, created once at agent
// startup. Only the role changes afterwards, driven by the external
// role-reassignment process.
type Config struct {
	// AgentID is this agent's identity.
	AgentID AgentID

	// Role is the agent's current operational role.
	Role Role

	// ConstellationID must equal AgentID.Constellation.
	ConstellationID string

	// Peers lists initially known peers. May be empty; discovery fills
	// the registry at runtime.
	Peers []AgentID

	// BandwidthLimitKbps is the aggregate inter-satellite link budget
	// for this agent. Must be positive.
	BandwidthLimitKbps float64
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AgentID.IsZero() {
		return fmt.Errorf("%w: missing agent ID", ErrInvalidConfig)
	}
	if _, err := ParseRole(string(c.Role)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.ConstellationID != c.AgentID.Constellation {
		return fmt.Errorf("%w: constellation ID %q does not match agent constellation %q",
			ErrInvalidConfig, c.ConstellationID, c.AgentID.Constellation)
	}
	if c.BandwidthLimitKbps <= 0 {
		return fmt.Errorf("%w: bandwidth limit must be positive, got %v", ErrInvalidConfig, c.BandwidthLimitKbps)
	}
	return nil
}

// DefaultConfig returns a configuration with defaults filled in for an
// agent identity. Peers start empty and the link budget is the nominal
// 10 KB/s aggregate ISL allocation.
func DefaultConfig(id AgentID) Config {
	return Config{
		AgentID:            id,
		Role:               RoleStandby,
		ConstellationID:    id.Constellation,
		BandwidthLimitKbps: 80, // 10 KB/s
	}
}
