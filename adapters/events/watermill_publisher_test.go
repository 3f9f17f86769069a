package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/nftgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAuthEvent(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, AuthTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	at := time.UnixMilli(1700000000000).UTC()
	require.NoError(t, pub.PublishAuthEvent(ctx, core.AuthEvent{
		Kind:    core.AuthEventLogin,
		Address: "0xabc",
		At:      at,
	}))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, "login", msg.Metadata.Get("kind"))

		event, err := DecodeAuthEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, core.AuthEventLogin, event.Kind)
		assert.Equal(t, "0xabc", event.Address)
		assert.True(t, event.At.Equal(at))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishAuthEvent(context.Background(), core.AuthEvent{}))
}
