/*
Package runtime provides the message processing service for routeflow.

# Architecture Overview

The runtime package wires a Watermill router to a transport, a registry of
rule policies and a trigger scheduler. Every consumed message passes through
a middleware chain; the innermost stage evaluates the configured default
policies against the message metadata before the handler runs.

# Package Structure

## Core Service (service.go)

The Service struct is the central orchestrator that wires together:
  - Message router (Watermill)
  - Publisher and subscriber from the transport registry
  - Policy registry and optional file watcher
  - gocron scheduler for trigger jobs
  - HTTP servers for metrics and the admin API

## Middleware (middleware.go, resolve.go)

The middleware chain, outermost first:
  - CorrelationID: ensures message traceability
  - LogMessages: debug logging of payloads and metadata
  - Tracer: OpenTelemetry span per message
  - Metrics: Prometheus router metrics
  - Retry: exponential backoff, never for unprocessable events
  - PoisonQueue: forwards unprocessable events, skipped without a topic
  - Recoverer: turns panics into errors
  - Resolve: evaluates policies against msg.Metadata

## Handlers (registration.go, routing.go)

RegisterMessageHandler attaches a raw Watermill handler. RegisterRoutingHandler
attaches a content-based router that republishes each message to the topic
its policies wrote under the destination key.

## Scheduling (scheduler.go)

Scheduled jobs publish a trigger message on a cron expression or a fixed
interval. The payload is a protobuf Struct and the metadata names the job.

## Publishing (publisher.go)

Utilities for emitting proto-based events with schema metadata.

# Sub-packages

  - config/: Service configuration, YAML loading and env overrides
  - errors/: Sentinel errors and error types
  - ids/: ULID generation for message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metadata/: Message metadata and the rules context adapter

# Usage Example

	cfg := &routeflow.Config{
		PubSubSystem:    "kafka",
		KafkaBrokers:    []string{"localhost:9092"},
		DefaultPolicies: []string{routeflow.DefaultPolicyName},
	}

	svc := routeflow.NewService(cfg, logger, ctx, routeflow.ServiceDependencies{})

	routeflow.RegisterRoutingHandler(svc, routeflow.RoutingHandlerRegistration{
		Name:         "order-router",
		ConsumeQueue: "orders.incoming",
		Policies:     []string{"order-routing"},
		DefaultTopic: "orders.unrouted",
	})

	svc.Start(ctx)
*/
package runtime
