package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed        = errors.New("bus closed")
	ErrInvalidTopic  = errors.New("invalid topic")
	ErrNoSubscribers = errors.New("no subscriber acknowledged delivery")
)

// DeliveryQuality selects the delivery guarantee for a publish.
type DeliveryQuality int

const (
	// BestEffort is fire-and-forget: the publish succeeds even when nobody
	// is listening or buffers are full.
	BestEffort DeliveryQuality = iota

	// AtLeastOnce requires acknowledged delivery: the publish fails when no
	// subscriber accepted the message, and the caller is expected to retry
	// on its own schedule.
	AtLeastOnce
)

// String returns the quality name.
func (q DeliveryQuality) String() string {
	switch q {
	case BestEffort:
		return "best-effort"
	case AtLeastOnce:
		return "at-least-once"
	default:
		return "unknown"
	}
}

// Message represents a message received from the bus.
type Message struct {
	// Topic the message was published to. For directed sends this includes
	// the receiver suffix.
	Topic string

	// Data is the message payload.
	Data []byte
}

// PublishOptions modifies a publish.
type PublishOptions struct {
	// Quality is the delivery guarantee. Zero value is BestEffort.
	Quality DeliveryQuality

	// Receiver, when non-empty, directs the message to a single peer:
	// it is delivered on topic + "." + Receiver.
	Receiver string
}

// MessageBus is the transport the coordination core publishes through.
type MessageBus interface {
	// Publish sends a message on a topic. With AtLeastOnce quality the
	// error reports delivery failure; with BestEffort it only reports
	// local problems (closed bus, invalid topic).
	Publish(topic string, data []byte, opts PublishOptions) error

	// Subscribe creates a subscription. The filter is an exact topic or a
	// prefix filter ending in ">" ("swarm.hello.>").
	Subscribe(filter string) (Subscription, error)

	// Close shuts down the bus.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// The channel is closed when the subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateTopic checks if a topic is valid for publishing.
func ValidateTopic(topic string) error {
	if topic == "" || strings.Contains(topic, ">") {
		return ErrInvalidTopic
	}
	return nil
}

// FilterMatches reports whether a subscription filter matches a topic.
// A filter ending in ".>" matches any topic with that prefix.
func FilterMatches(filter, topic string) bool {
	if prefix, ok := strings.CutSuffix(filter, ".>"); ok {
		return topic == prefix || strings.HasPrefix(topic, prefix+".")
	}
	return filter == topic
}
