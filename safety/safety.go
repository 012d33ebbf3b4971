package safety

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orbitkit/constellation/errors"
	"github.com/orbitkit/constellation/logging"
	"github.com/orbitkit/constellation/swarm"
)

// DefaultThreshold is the maximum tolerated total risk.
const DefaultThreshold = 0.10

// cascadeFactor is the per-neighbor share of the base risk charged for
// one-hop spillover.
const cascadeFactor = 0.15

// Per-class caps on the directly-affected peer set.
const (
	attitudeAffected = 10
	thermalAffected  = 5
)

// percentileSamples is the sample count below which p95 and max are not
// reported.
const percentileSamples = 20

// maxLatencySamples bounds the retained latency window.
const maxLatencySamples = 1024

// ActionClass is the risk class an action name resolves to.
type ActionClass string

const (
	ClassAttitudeAdjust   ActionClass = "ATTITUDE_ADJUST"
	ClassLoadShed         ActionClass = "LOAD_SHED"
	ClassThermalManeuver  ActionClass = "THERMAL_MANEUVER"
	ClassSafeMode         ActionClass = "SAFE_MODE"
	ClassRoleReassignment ActionClass = "ROLE_REASSIGNMENT"
)

// classify resolves an action name by substring. Unrecognized names fall
// back to the lowest-risk class; the caller logs that.
func classify(action string) (ActionClass, bool) {
	name := strings.ToLower(action)
	switch {
	case strings.Contains(name, "attitude"):
		return ClassAttitudeAdjust, true
	case strings.Contains(name, "load_shed"), strings.Contains(name, "loadshed"):
		return ClassLoadShed, true
	case strings.Contains(name, "thermal"):
		return ClassThermalManeuver, true
	case strings.Contains(name, "safe_mode"), strings.Contains(name, "safemode"):
		return ClassSafeMode, true
	case strings.Contains(name, "role"):
		return ClassRoleReassignment, true
	default:
		return ClassSafeMode, false
	}
}

// PeerLister is the registry view the simulator needs: just the alive
// membership.
type PeerLister interface {
	AlivePeerIDs() []swarm.AgentID
}

// Config configures a Simulator.
type Config struct {
	// Peers enumerates alive agents for blast-radius estimation.
	Peers PeerLister

	// Threshold is the maximum tolerated total risk. Default: 0.10.
	Threshold float64

	// Disabled turns the gate into a pass-through.
	Disabled bool

	// Logger for blocked-action events. Optional.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Peers == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "simulator requires a peer lister")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "threshold %v outside [0, 1]", c.Threshold)
	}
	return nil
}

// Stats summarizes simulator activity. P95Latency and MaxLatency stay
// zero until enough samples exist.
type Stats struct {
	Evaluated    uint64
	Allowed      uint64
	Blocked      uint64
	FailedClosed uint64
	MeanLatency  time.Duration
	P95Latency   time.Duration
	MaxLatency   time.Duration
}

// Simulator estimates the blast radius of constellation-scope actions.
// Stateless per call apart from accumulated metrics; safe for concurrent
// use.
type Simulator struct {
	cfg    Config
	logger *logging.Logger

	mu           sync.Mutex
	evaluated    uint64
	allowed      uint64
	blocked      uint64
	failedClosed uint64
	totalLatency time.Duration
	samples      []time.Duration

	nowFunc func() time.Time
}

// New creates a Simulator.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	return &Simulator{
		cfg:     cfg,
		logger:  cfg.Logger.WithComponent("safety"),
		nowFunc: time.Now,
	}, nil
}

// ValidateAction decides whether an action may proceed. Non-constellation
// scope and a disabled gate always pass. The return is a plain boolean:
// internal failures resolve to false.
func (s *Simulator) ValidateAction(action string, params map[string]float64, decisionID, scope string) bool {
	if scope != "constellation" {
		return true
	}
	if s.cfg.Disabled {
		return true
	}

	start := s.nowFunc()
	safe, failed := s.evaluate(action, params, decisionID)
	s.record(s.nowFunc().Sub(start), safe, failed)
	return safe
}

// evaluate runs the risk model. The second return reports a recovered
// panic, which counts as blocked.
func (s *Simulator) evaluate(action string, params map[string]float64, decisionID string) (safe, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.RecoverPanic(r)
			s.logger.Error("risk evaluation failed closed", map[string]interface{}{
				"action":      action,
				"decision_id": decisionID,
				"error":       err.Error(),
			})
			safe = false
			failed = true
		}
	}()

	class, known := classify(action)
	if !known {
		s.logger.Warn("unrecognized action class", map[string]interface{}{
			"action":      action,
			"decision_id": decisionID,
		})
	}

	base := baseRisk(class, params)
	affected := s.affectedPeers(class)
	cascade := cascadeRisk(base, affected, s.cfg.Peers.AlivePeerIDs())

	total := clampRisk(base + cascade)
	if total <= s.cfg.Threshold {
		return true, false
	}

	s.logger.ActionBlocked(action, decisionID, total, s.cfg.Threshold)
	return false, false
}

// baseRisk computes the class-specific direct risk from the parameters.
func baseRisk(class ActionClass, params map[string]float64) float64 {
	switch class {
	case ClassAttitudeAdjust:
		// A 10 degree slew models roughly 30% aggregate coverage loss.
		return clampRisk(params["angle_degrees"] / 10 * 0.30)

	case ClassLoadShed:
		shed := params["shed_percent"]
		if shed <= 15 {
			return 0
		}
		return clampRisk((shed - 15) / 100)

	case ClassThermalManeuver:
		delta := params["delta_temperature_c"]
		if delta <= 5 {
			return 0
		}
		return clampRisk(delta / 50)

	case ClassRoleReassignment:
		return 0.05

	default: // safe mode retreats, never endangers
		return 0
	}
}

// affectedPeers returns the directly-affected set for an action class.
func (s *Simulator) affectedPeers(class ActionClass) []swarm.AgentID {
	var limit int
	switch class {
	case ClassAttitudeAdjust:
		limit = attitudeAffected
	case ClassThermalManeuver:
		limit = thermalAffected
	case ClassLoadShed:
		limit = -1 // everyone
	default:
		return nil
	}

	alive := s.cfg.Peers.AlivePeerIDs()
	if limit >= 0 && len(alive) > limit {
		alive = alive[:limit]
	}
	return alive
}

// cascadeRisk charges base x cascadeFactor for each one-hop neighbor of
// each affected agent, averaged over the affected set. Propagation stops
// at one hop.
func cascadeRisk(base float64, affected, alive []swarm.AgentID) float64 {
	if len(affected) == 0 || base == 0 {
		return 0
	}

	sum := 0.0
	for _, agent := range affected {
		for _, neighbor := range alive {
			if neighbor == agent {
				continue
			}
			sum += base * cascadeFactor
		}
	}
	return clampRisk(sum / float64(len(affected)))
}

func clampRisk(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// record accumulates metrics for one evaluation.
func (s *Simulator) record(elapsed time.Duration, safe, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluated++
	if failed {
		s.failedClosed++
	}
	if safe {
		s.allowed++
	} else {
		s.blocked++
	}

	s.totalLatency += elapsed
	s.samples = append(s.samples, elapsed)
	if len(s.samples) > maxLatencySamples {
		s.samples = s.samples[len(s.samples)-maxLatencySamples:]
	}
}

// SimulatorStats returns a metrics snapshot.
func (s *Simulator) SimulatorStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Evaluated:    s.evaluated,
		Allowed:      s.allowed,
		Blocked:      s.blocked,
		FailedClosed: s.failedClosed,
	}
	if s.evaluated > 0 {
		stats.MeanLatency = s.totalLatency / time.Duration(s.evaluated)
	}
	if len(s.samples) >= percentileSamples {
		sorted := make([]time.Duration, len(s.samples))
		copy(sorted, s.samples)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		stats.P95Latency = sorted[len(sorted)*95/100]
		stats.MaxLatency = sorted[len(sorted)-1]
	}
	return stats
}
