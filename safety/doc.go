// Package safety gates constellation-scope actions behind a cascading
// risk simulation before they reach consensus.
//
// Each candidate action is classified, assigned a base risk from its
// parameters, and charged a cascade term for the one-hop neighbors of
// every agent it would affect. The action is allowed only when the total
// stays at or under the configured threshold.
//
// The gate always resolves to a boolean. Local-scope actions and a
// disabled gate pass through; any internal failure during evaluation
// resolves to blocked, never to allowed and never to a raised error.
package safety
