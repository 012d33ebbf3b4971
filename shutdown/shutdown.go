// Package shutdown stops a swarm agent's components in dependency order.
//
// Components register a stop function under a phase; lower phases stop
// first, and handlers within one phase stop concurrently. The standard
// ordering stops outbound producers before the membership view and the
// membership view before the transport, so nothing publishes into a
// closed bus:
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	coord.RegisterFunc("broadcaster", shutdown.PhaseProducers, func(ctx context.Context) error {
//		return broadcaster.Stop()
//	})
//	coord.RegisterFunc("registry", shutdown.PhaseMembership, func(ctx context.Context) error {
//		return registry.Stop()
//	})
//	coord.RegisterFunc("bus", shutdown.PhaseTransport, func(ctx context.Context) error {
//		return messageBus.Close()
//	})
//	coord.HandleSignals()
package shutdown

import (
	"context"
	"time"

	"github.com/orbitkit/constellation/errors"
)

// Standard phases for a swarm agent. Lower stops first.
const (
	// PhaseProducers stops everything that originates traffic: the
	// health broadcaster and any action proposers.
	PhaseProducers = 10

	// PhaseMembership stops the registry's heartbeat and gossip loops.
	PhaseMembership = 20

	// PhaseObservers stops telemetry reporters after the components they
	// observe have emitted their final state.
	PhaseObservers = 30

	// PhaseTransport closes the message bus last.
	PhaseTransport = 40
)

// Handler is a component stop function. The context is cancelled when the
// shutdown deadline passes.
type Handler func(ctx context.Context) error

// Result records one handler's outcome.
type Result struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Config configures a Coordinator.
type Config struct {
	// Timeout bounds the whole shutdown sequence. Default: 30s.
	Timeout time.Duration

	// ContinueOnError keeps stopping later phases after a handler fails.
	// Default: true.
	ContinueOnError bool

	// OnResult is called as each handler finishes. Optional; used for
	// logging.
	OnResult func(Result)
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "shutdown timeout must not be negative")
	}
	return nil
}
