package transport

// Capabilities describes the delivery guarantees of a transport backend. The
// service uses them to decide which guarantees it has to provide itself.
type Capabilities struct {
	Name string

	// SupportsNativeDLQ reports a broker-side dead letter queue. Without one,
	// unprocessable messages only survive when a poison queue is configured.
	SupportsNativeDLQ bool

	// SupportsOrdering reports in-order delivery within a topic or partition.
	SupportsOrdering bool

	// SupportsTracing reports that metadata headers travel with the message.
	SupportsTracing bool

	SupportsAck  bool
	SupportsNack bool

	// SupportsPartitioning reports key-based partitioning.
	SupportsPartitioning bool

	// MaxMessageSize is the largest payload in bytes, 0 when unknown.
	MaxMessageSize int64
}

// RequiresDLQEmulation reports whether failed messages need an application
// level poison queue to avoid being dropped.
func (c Capabilities) RequiresDLQEmulation() bool {
	return !c.SupportsNativeDLQ
}

// SupportsReliableDelivery reports at-least-once semantics (ack and nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Fits reports whether a payload of size bytes can be published.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsTracing:      true,
		SupportsAck:          true,
		SupportsPartitioning: true,
		MaxMessageSize:       1 << 20,
	}

	RabbitMQCapabilities = Capabilities{
		Name:              "rabbitmq",
		SupportsNativeDLQ: true,
		SupportsOrdering:  true,
		SupportsTracing:   true,
		SupportsAck:       true,
		SupportsNack:      true,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1 << 20,
	}

	AWSCapabilities = Capabilities{
		Name:              "aws",
		SupportsNativeDLQ: true,
		SupportsTracing:   true,
		SupportsAck:       true,
		SupportsNack:      true,
		MaxMessageSize:    256 << 10,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}
)

// GetCapabilities returns the capabilities registered for a transport in the
// default registry, or a zero value carrying only the name.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
