// Package channel provides the in-memory transport used for local runs and
// tests. Messages never leave the process.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/routeflow/transport"
)

const (
	TransportName = "channel"
	// AliasName is accepted for configs written against watermill naming.
	AliasName = "gochannel"
)

// OutputBuffer sizes each subscriber channel so publishers do not block on a
// slow handler.
const OutputBuffer = 64

// Factory allows overriding the pub/sub creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register()
}

// Register adds the channel transport and its alias to the default registry.
func Register() {
	transport.Register(TransportName, Build, transport.ChannelCapabilities)
	transport.DefaultRegistry.Alias(AliasName, TransportName)
}

// Build creates a publisher and subscriber sharing one gochannel.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(gochannel.Config{OutputChannelBuffer: OutputBuffer}, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
