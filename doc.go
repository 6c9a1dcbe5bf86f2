// Package routeflow resolves message context with declarative rules and
// routes messages on top of Watermill.
//
// A policy is a named, ordered list of rules. Each rule pairs a predicate
// over the message metadata with an action that writes to it; actions run
// only when their predicate holds against the current metadata, so later
// rules see what earlier ones wrote. Policies are immutable once built and
// are shared across goroutines, while every message gets its own context.
// A failing rule does not stop the others; all failures are joined into the
// returned error.
//
// Policies come from YAML or JSON documents. The tracking-defaults policy is
// embedded in the binary and sets tracking.ProcessName to "Check" when it is
// unset. Documents on disk are layered on top and can be reloaded on change.
//
// Service reads the target transport (Kafka, RabbitMQ, AWS SNS/SQS, NATS,
// HTTP, I/O or Go channels) from Config, bootstraps the Watermill router and
// registers the default middleware chain. The chain resolves the configured
// default policies against every consumed message before its handler runs.
// RegisterRoutingHandler republishes each message to the topic its policies
// wrote under route.Destination. Scheduled jobs publish trigger messages on
// cron expressions or fixed intervals.
//
// # Transports
//
//   - channel: In-memory Go channels for testing
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: High-performance messaging
//   - http: Webhook style messaging
//   - io: Append-only JSON lines file
//
// # Middleware
//
// The default chain includes correlation ID injection, structured logging,
// OpenTelemetry tracing, Prometheus metrics, retry with exponential backoff,
// poison queue forwarding, panic recovery and metadata resolution. Custom
// middleware can be added via ServiceDependencies.Middlewares.
package routeflow
