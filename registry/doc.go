// Package registry maintains the best-effort membership view of the
// constellation: which peers exist, what they last reported, and whether
// they are alive.
//
// # Discovery
//
// Peers enter the registry two ways: a decoded health message from an
// unknown sender, or a gossip HELLO beacon. HELLOs are relayed with a
// bounded fanout (3 random known peers) and a per-sender replication cap
// (2 relays), which yields O(log N) expected discovery time on a flat
// topology while preventing gossip floods.
//
// # Liveness
//
// A peer is alive when its last heartbeat is within the timeout (3x the
// heartbeat interval, 90s nominal). Liveness is computed fresh on every
// call, never cached across ticks. Entries are never removed on death —
// they age out of the alive set and are pruned only after a long retention
// window bounds memory.
//
// # Heartbeat
//
// The registry's own loop compresses local health and publishes it with
// acknowledged delivery every interval (30s nominal). Publish failures
// widen the interval 30s -> 60s -> 120s and are retried on the next tick;
// they never escape the loop. Every third heartbeat also emits a HELLO
// beacon, fire-and-forget.
//
// The registry exclusively owns its peer map. Readers get copies, never
// the live records.
package registry
