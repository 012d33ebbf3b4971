// Package bus provides the publish-subscribe transport abstraction for the
// inter-satellite link.
//
// # Overview
//
// The coordination core needs only two operations from the transport:
// publish with a delivery quality, and subscribe with a topic filter. The
// physical radio layer behind the bus is out of scope; implementations map
// the abstraction onto whatever link they have.
//
// # Delivery Quality
//
//   - BestEffort: fire and forget. HELLO discovery beacons and degraded-mode
//     broadcasts use this; losses are tolerated by design.
//   - AtLeastOnce: acknowledged delivery. Health heartbeats and signed
//     broadcasts use this; a failed publish is reported to the caller so the
//     retry schedule can widen its interval.
//
// # Topic Filters
//
// Subscribe accepts an exact topic or a prefix filter ending in ">":
//
//	sub, _ := b.Subscribe("swarm.hello.>")
//	for msg := range sub.Messages() {
//	    // hello beacons, including ones addressed to this agent
//	}
//
// # Directed Sends
//
// Publish accepts an optional receiver UUID. The in-memory bus routes a
// directed message to topic + "." + receiver, so an agent that wants
// directed traffic subscribes to that suffix.
package bus
