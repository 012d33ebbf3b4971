// Package errors provides the structured error taxonomy for constellation
// coordination. Every failure mode in the module maps to a code and a
// category, so that callers can decide between retrying, surfacing, and
// failing closed without string matching.
//
// # Error Categories
//
//   - Transient: temporary failures where retry may succeed (bus publish
//     failures, unreachable peers). Background loops recover from these
//     locally with interval widening and never propagate them.
//   - Permanent: failures where retry will not help (construction-time
//     validation failures, protocol decode errors).
//   - Resource: bandwidth admission failures (throttled or dropped sends).
//   - Internal: unexpected errors, including recovered panics. The safety
//     gate converts these to a blocked verdict, never to a raised error.
//
// # Usage
//
//	if err := reg.Publish(env); err != nil {
//	    if errors.IsRetryable(err) {
//	        // widen the heartbeat interval, retry next tick
//	    }
//	}
//
// Errors carry optional metadata (peer serial, payload size, decision ID)
// for log correlation:
//
//	errors.New(errors.ErrCodeThrottled, "heartbeat throttled",
//	    errors.WithAgentID(peer.SatelliteSerial),
//	    errors.WithMetadata("size", strconv.Itoa(n)))
package errors
