// Package broadcast publishes this agent's signed health summary to the
// constellation on an adaptive schedule.
//
// Each broadcast compresses the current health summary, wraps it in a
// signed envelope, and publishes it at-least-once on the health topic.
// Signatures are keyed BLAKE3 hashes over the envelope fields, so any
// agent that shares the constellation signing key can verify the sender.
//
// Two mechanisms keep the broadcaster polite on the constrained link:
//
//   - Change suppression: a digest of the health summary is compared
//     against the last transmitted one, and an unchanged summary is
//     skipped. The digest covers the risk score, the recurrence score,
//     and the first eight anomaly components only.
//   - Adaptive cadence: the broadcast period stretches from its 30s base
//     to 60s above 70% link utilization and 120s above 85%.
package broadcast
