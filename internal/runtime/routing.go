package runtime

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/routeflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
)

// RoutingHandlerRegistration forwards every message from ConsumeQueue to the
// topic a policy writes under DestinationKey.
type RoutingHandlerRegistration struct {
	Name         string
	ConsumeQueue string
	// Policies are evaluated in order before the destination is read. They
	// run in addition to any resolve middleware on the router.
	Policies []string
	// DestinationKey defaults to DefaultDestinationKey.
	DestinationKey string
	// DefaultTopic is used when no policy set a destination. Without it such
	// messages are unprocessable.
	DefaultTopic string
	Subscriber   message.Subscriber
	Publisher    message.Publisher
}

// RegisterRoutingHandler attaches a content-based routing handler to the
// service router.
func RegisterRoutingHandler(svc *Service, cfg RoutingHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	handler, err := svc.routingHandler(cfg)
	if err != nil {
		return err
	}
	return svc.registerHandler(handlerRegistration{
		Name:         cfg.Name,
		ConsumeQueue: cfg.ConsumeQueue,
		Subscriber:   cfg.Subscriber,
		Policies:     append([]string(nil), cfg.Policies...),
		Handler:      handler,
	})
}

func (s *Service) routingHandler(cfg RoutingHandlerRegistration) (message.HandlerFunc, error) {
	for _, name := range cfg.Policies {
		if _, ok := s.policies.Get(name); !ok {
			return nil, errspkg.NewConfigValidationError(fmt.Errorf("routing handler %q: unknown policy %q", cfg.Name, name))
		}
	}

	key := cfg.DestinationKey
	if key == "" {
		key = DefaultDestinationKey
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = s.publisher
	}
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	policies := append([]string(nil), cfg.Policies...)
	logger := s.Logger.With(loggingpkg.LogFields{"handler": cfg.Name})

	return func(msg *message.Message) ([]*message.Message, error) {
		if len(policies) > 0 {
			if _, err := s.Resolve(msg, policies...); err != nil {
				return nil, err
			}
		}

		topic := msg.Metadata.Get(key)
		if topic == "" {
			topic = cfg.DefaultTopic
		}
		if topic == "" {
			return nil, NewUnprocessableEventError(msg, fmt.Errorf("%w: %s", errspkg.ErrDestinationRequired, key))
		}

		out := msg.Copy()
		out.SetContext(msg.Context())
		out.Metadata.Set(MetadataKeyRoutedBy, cfg.Name)

		logger.Debug("Routing message", loggingpkg.LogFields{
			"message_uuid": msg.UUID,
			"topic":        topic,
		})
		if err := publisher.Publish(topic, out); err != nil {
			return nil, fmt.Errorf("publish to %s: %w", topic, err)
		}
		return nil, nil
	}, nil
}
