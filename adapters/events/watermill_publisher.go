package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// AuthTopic is the topic verifier decisions are published to
const AuthTopic = "nftgate.auth"

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     AuthTopic,
	}
}

// PublishAuthEvent publishes a login decision
func (p *WatermillPublisher) PublishAuthEvent(ctx context.Context, event core.AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("kind", string(event.Kind))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards every event
type NopPublisher struct{}

// PublishAuthEvent does nothing
func (NopPublisher) PublishAuthEvent(context.Context, core.AuthEvent) error { return nil }

// DecodeAuthEvent parses the payload of a message published by WatermillPublisher
func DecodeAuthEvent(msg *message.Message) (core.AuthEvent, error) {
	var event core.AuthEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return core.AuthEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
