package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus implements MessageBus with in-memory channels. It backs tests
// and single-process constellation simulations; every agent in the process
// shares one MemoryBus the way real agents share the radio link.
type MemoryBus struct {
	config Config

	mu     sync.RWMutex
	subs   []*memorySub
	closed atomic.Bool
}

type memorySub struct {
	filter string
	ch     chan *Message
	closed atomic.Bool
	bus    *MemoryBus
}

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &MemoryBus{config: cfg}
}

// Publish sends a message to all matching subscribers.
//
// AtLeastOnce publishes fail with ErrNoSubscribers unless at least one
// subscriber accepted the message into its buffer. That models an
// unacknowledged transmission and gives heartbeat loops a real failure to
// back off from.
func (b *MemoryBus) Publish(topic string, data []byte, opts PublishOptions) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	if opts.Receiver != "" {
		topic = topic + "." + opts.Receiver
	}

	msg := &Message{Topic: topic, Data: data}

	// Deliver while holding the read lock: Unsubscribe and Close only close
	// channels under the write lock, so a send can never race a close. The
	// sends are non-blocking, so a slow consumer cannot hold the lock.
	b.mu.RLock()
	delivered := 0
	for _, sub := range b.subs {
		if sub.closed.Load() || !FilterMatches(sub.filter, topic) {
			continue
		}
		select {
		case sub.ch <- msg:
			delivered++
		default:
			// Buffer full, drop for this subscriber.
		}
	}
	b.mu.RUnlock()

	if opts.Quality == AtLeastOnce && delivered == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// Subscribe creates a subscription to a topic or prefix filter.
func (b *MemoryBus) Subscribe(filter string) (Subscription, error) {
	if filter == "" {
		return nil, ErrInvalidTopic
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		filter: filter,
		ch:     make(chan *Message, b.config.BufferSize),
		bus:    b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Close shuts down the bus and all subscriptions.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	b.subs = nil

	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}

	close(s.ch)
	return nil
}

// Ensure MemoryBus implements MessageBus.
var _ MessageBus = (*MemoryBus)(nil)
