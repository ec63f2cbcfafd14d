package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topic names for monitoring events.
const (
	TopicVersionPublished  = "kestrel.plan.version.published"
	TopicCycleTransitioned = "kestrel.cycle.transitioned"
	TopicResultRecorded    = "kestrel.result.recorded"
	TopicResultBreach      = "kestrel.result.breach"
)

// CycleEvent is the payload of TopicCycleTransitioned.
type CycleEvent struct {
	CycleID string       `json:"cycleId"`
	PlanID  string       `json:"planId"`
	Change  StatusChange `json:"change"`
}

// ResultEvent is the payload of TopicResultRecorded and TopicResultBreach.
type ResultEvent struct {
	ResultID     string   `json:"resultId"`
	PlanID       string   `json:"planId"`
	CycleID      string   `json:"cycleId"`
	PlanMetricID string   `json:"planMetricId"`
	MetricName   string   `json:"metricName"`
	Value        *float64 `json:"value"`
	Outcome      Outcome  `json:"outcome"`
}
