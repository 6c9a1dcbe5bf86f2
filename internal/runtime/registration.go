package runtime

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/routeflow/internal/runtime/errors"
)

type handlerRegistration struct {
	Name         string
	ConsumeQueue string
	Subscriber   message.Subscriber
	PublishQueue string
	Publisher    message.Publisher
	Policies     []string
	Handler      message.HandlerFunc
}

// MessageHandlerRegistration wires a raw Watermill handler. Messages returned
// by Handler are published to PublishQueue; leave it empty for a consumer-only
// handler.
type MessageHandlerRegistration struct {
	Name         string
	ConsumeQueue string
	PublishQueue string
	Handler      message.HandlerFunc
	Subscriber   message.Subscriber
	Publisher    message.Publisher
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}

	return svc.registerHandler(handlerRegistration{
		Name:         cfg.Name,
		ConsumeQueue: cfg.ConsumeQueue,
		PublishQueue: cfg.PublishQueue,
		Subscriber:   cfg.Subscriber,
		Publisher:    cfg.Publisher,
		Handler:      cfg.Handler,
	})
}

func (s *Service) registerHandler(cfg handlerRegistration) error {
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.ConsumeQueue == "" {
		return errspkg.ErrConsumeQueueRequired
	}
	if cfg.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = s.subscriber
	}
	if cfg.Publisher == nil {
		cfg.Publisher = s.publisher
	}

	stats := newHandlerStats()
	info := &HandlerInfo{
		Name:         cfg.Name,
		ConsumeQueue: cfg.ConsumeQueue,
		PublishQueue: cfg.PublishQueue,
		Policies:     cfg.Policies,
		Stats:        stats,
	}

	s.handlersMu.Lock()
	s.handlers = append(s.handlers, info)
	s.handlersMu.Unlock()

	handler := wrapHandlerWithStats(cfg.Handler, stats)

	if cfg.PublishQueue == "" {
		s.router.AddNoPublisherHandler(
			cfg.Name,
			cfg.ConsumeQueue,
			cfg.Subscriber,
			func(msg *message.Message) error {
				_, err := handler(msg)
				return err
			},
		)
		return nil
	}

	s.router.AddHandler(
		cfg.Name,
		cfg.ConsumeQueue,
		cfg.Subscriber,
		cfg.PublishQueue,
		cfg.Publisher,
		handler,
	)
	return nil
}

// Handlers returns a snapshot of the registered handlers and their counters.
func (s *Service) Handlers() []HandlerSnapshot {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	out := make([]HandlerSnapshot, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h.Snapshot())
	}
	return out
}

func wrapHandlerWithStats(handler message.HandlerFunc, stats *HandlerStats) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		stats.onMessageStart()
		start := time.Now()
		msgs, err := handler(msg)
		stats.onMessageFinish(time.Since(start), err)
		return msgs, err
	}
}
