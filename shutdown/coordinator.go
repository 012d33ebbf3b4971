package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/orbitkit/constellation/errors"
)

// Coordinator runs registered stop handlers phase by phase.
type Coordinator struct {
	cfg Config

	mu       sync.Mutex
	handlers []registration

	once       sync.Once
	done       chan struct{}
	err        error
	results    []Result
	signalChan chan os.Signal
}

type registration struct {
	name    string
	phase   int
	handler Handler
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Coordinator{
		cfg:        cfg,
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// RegisterFunc adds a stop handler under a phase. Registration after
// shutdown has begun is ignored.
func (c *Coordinator) RegisterFunc(name string, phase int, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, handler: handler})
}

// Shutdown runs all handlers in phase order. Safe to call more than once;
// later calls wait for the first to finish and return its error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.err
}

// ShutdownWithTimeout runs Shutdown bounded by the configured timeout.
func (c *Coordinator) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-c.signalChan
		_ = c.ShutdownWithTimeout()
	}()
}

// Trigger injects a synthetic shutdown signal.
func (c *Coordinator) Trigger() {
	select {
	case c.signalChan <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Results returns per-handler outcomes. Only valid after Done is closed.
func (c *Coordinator) Results() []Result {
	select {
	case <-c.done:
		return c.results
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var overall error
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		select {
		case <-ctx.Done():
			return errors.WrapWithCode(ctx.Err(), errors.ErrCodeTimeout, "shutdown deadline exceeded")
		default:
		}

		failed := c.runPhase(ctx, handlers[start:end])
		if failed != nil && overall == nil {
			overall = failed
		}
		if failed != nil && !c.cfg.ContinueOnError {
			return overall
		}
		start = end
	}
	return overall
}

// runPhase stops one phase's handlers concurrently and returns the first
// failure, if any.
func (c *Coordinator) runPhase(ctx context.Context, group []registration) error {
	results := make([]Result, len(group))
	var wg sync.WaitGroup

	for i, reg := range group {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()

			start := time.Now()
			err := r.handler(ctx)
			results[idx] = Result{
				Name:     r.name,
				Phase:    r.phase,
				Duration: time.Since(start),
				Err:      err,
			}
			if c.cfg.OnResult != nil {
				c.cfg.OnResult(results[idx])
			}
		}(i, reg)
	}
	wg.Wait()

	var failed error
	for _, r := range results {
		c.results = append(c.results, r)
		if r.Err != nil && failed == nil {
			failed = errors.Wrapf(r.Err, "stopping %s", r.Name)
		}
	}
	return failed
}
