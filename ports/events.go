package ports

import (
	"context"

	"github.com/layer-3/nftgate/core"
)

// EventPublisher publishes verifier decisions to other instances and auditors
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, event core.AuthEvent) error
}
