// Package events publishes deal lifecycle events to a Redis Stream for
// downstream consumers such as alerting and trending analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/logger"
)

// Event types carried on the deal stream.
const (
	TypeDealCreated     = "deal.created"
	TypeDealUpdated     = "deal.updated"
	TypeDealDeactivated = "deal.deactivated"
)

// Stream message field names.
const (
	EventField      = "event"
	OccurredAtField = "occurred_at"
)

const defaultConnectionTimeout = 2 * time.Second

// DealEvent is one deal lifecycle change as seen by downstream consumers.
type DealEvent struct {
	Type       string       `json:"type"`
	Source     string       `json:"source"`
	ProductID  string       `json:"product_id"`
	Title      string       `json:"title"`
	Currency   string       `json:"currency"`
	Deal       *domain.Deal `json:"deal,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher emits deal events. Implementations must tolerate being called
// concurrently from multiple jobs.
type Publisher interface {
	Publish(ctx context.Context, event DealEvent) error
	Close() error
}

// streamAdder is the slice of the Redis client the publisher needs.
type streamAdder interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// StreamPublisher writes deal events to a capped Redis Stream.
type StreamPublisher struct {
	client streamAdder
	stream string
	maxLen int64
	logger logger.Interface
}

// NewStreamPublisher connects to Redis and returns a stream publisher.
func NewStreamPublisher(cfg config.RedisConfig, log logger.Interface) (*StreamPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newStreamPublisher(client, cfg, log), nil
}

func newStreamPublisher(client streamAdder, cfg config.RedisConfig, log logger.Interface) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: cfg.DealStream,
		maxLen: cfg.MaxStreamLen,
		logger: log.WithComponent("events"),
	}
}

// Publish appends one event to the deal stream. The stream is trimmed
// approximately to the configured maximum length on every add.
func (p *StreamPublisher) Publish(ctx context.Context, event DealEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize deal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			EventField:      string(payload),
			OccurredAtField: event.OccurredAt.UTC().Format(time.RFC3339),
		},
	}

	if addErr := p.client.XAdd(ctx, args).Err(); addErr != nil {
		return fmt.Errorf("failed to publish deal event to stream %s: %w", p.stream, addErr)
	}

	p.logger.Debug("published deal event",
		"type", event.Type,
		"product_id", event.ProductID,
	)

	return nil
}

// Close closes the underlying Redis client.
func (p *StreamPublisher) Close() error {
	return p.client.Close()
}

// NewDealEvent builds an event for a product's deal change.
func NewDealEvent(eventType string, product *domain.Product, deal *domain.Deal, occurredAt time.Time) DealEvent {
	return DealEvent{
		Type:       eventType,
		Source:     product.Source,
		ProductID:  product.ID,
		Title:      product.Title,
		Currency:   product.Currency,
		Deal:       deal,
		OccurredAt: occurredAt,
	}
}

// NopPublisher drops all events. Used when no Redis address is configured.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that discards events.
func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

// Publish discards the event.
func (*NopPublisher) Publish(context.Context, DealEvent) error { return nil }

// Close is a no-op.
func (*NopPublisher) Close() error { return nil }
