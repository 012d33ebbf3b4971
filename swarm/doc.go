// Package swarm defines the shared data model for constellation coordination.
//
// # Overview
//
// Every component in the module exchanges the types defined here: agent
// identities, bounded health snapshots, per-agent static configuration, and
// the wire-level messages (HELLO beacons and signed health envelopes) that
// cross the inter-satellite link.
//
// # Identity
//
// AgentID values are derived deterministically from the constellation tag and
// the satellite serial. Two processes compute the same UUID for the same
// serial without any coordination:
//
//	id, err := swarm.NewAgentID("sat-007")
//	// id.UUID is stable across processes and restarts
//
// # Invariants
//
// Constructors validate, never clamp. An out-of-range risk score or a
// mismatched constellation tag is a construction error, because a silently
// coerced health value would propagate a wrong picture of the constellation.
package swarm
