// Package io provides a file-backed transport. Every published message is
// appended to one JSON-lines file; subscribers tail the file from the start
// and receive the records of their topic.
package io

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/routeflow/internal/runtime/jsoncodec"
	"github.com/drblury/routeflow/transport"
)

const TransportName = "io"

// DefaultFilePath is used when the config names no file.
const DefaultFilePath = "routeflow-messages.jsonl"

// ErrClosed is returned by a publisher or subscriber after Close.
var ErrClosed = errors.New("io transport closed")

// PollInterval is how long a subscriber waits at end of file before reading
// again, and how long it waits before redelivering a nacked message.
var PollInterval = 50 * time.Millisecond

var PublisherFactory = func(path string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return NewPublisher(path, logger), nil
}

var SubscriberFactory = func(path string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return NewSubscriber(path, logger), nil
}

func init() {
	Register()
}

func Register() {
	transport.Register(TransportName, Build, transport.IOCapabilities)
}

func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	path := cfg.GetIOFile()
	if path == "" {
		path = DefaultFilePath
	}

	pub, err := PublisherFactory(path, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	sub, err := SubscriberFactory(path, logger)
	if err != nil {
		_ = pub.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

type record struct {
	UUID     string            `json:"uuid"`
	Topic    string            `json:"topic"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// Publisher appends messages to the file, one JSON document per line.
type Publisher struct {
	path   string
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

func NewPublisher(path string, logger watermill.LoggerAdapter) *Publisher {
	return &Publisher{path: path, logger: logger}
}

// Publish writes all messages with a single write so concurrent readers never
// observe a batch half written.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	var buf bytes.Buffer
	for _, msg := range messages {
		line, err := jsoncodec.Marshal(record{
			UUID:     msg.UUID,
			Topic:    topic,
			Metadata: msg.Metadata,
			Payload:  msg.Payload,
		})
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Subscriber tails the file. Each subscription reads independently from the
// first line, so a restarted subscriber replays the file.
type Subscriber struct {
	path   string
	logger watermill.LoggerAdapter

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSubscriber(path string, logger watermill.LoggerAdapter) *Subscriber {
	return &Subscriber{path: path, logger: logger, closing: make(chan struct{})}
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	select {
	case <-s.closing:
		return nil, ErrClosed
	default:
	}

	f, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *message.Message)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer f.Close()
		defer cancel()
		s.tail(ctx, f, topic, out)
	}()
	go func() {
		select {
		case <-s.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// Close stops all subscriptions and waits for their goroutines to exit.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
	return nil
}

func (s *Subscriber) tail(ctx context.Context, f *os.File, topic string, out chan<- *message.Message) {
	reader := bufio.NewReader(f)
	var pending []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		switch {
		case errors.Is(err, io.EOF):
			// an unterminated line is kept until the writer completes it
			if !wait(ctx, PollInterval) {
				return
			}
			continue
		case err != nil:
			s.logger.Error("Failed to read message file", err, watermill.LogFields{"path": s.path})
			return
		}

		line := pending
		pending = nil
		if !s.deliver(ctx, line, topic, out) {
			return
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, line []byte, topic string, out chan<- *message.Message) bool {
	var rec record
	if err := jsoncodec.Unmarshal(line, &rec); err != nil {
		s.logger.Error("Skipping malformed record", err, watermill.LogFields{"path": s.path})
		return true
	}
	if rec.Topic != topic {
		return true
	}

	for {
		msg := message.NewMessage(rec.UUID, rec.Payload)
		if rec.Metadata != nil {
			msg.Metadata = maps.Clone(rec.Metadata)
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return false
		}

		select {
		case <-msg.Acked():
			return true
		case <-msg.Nacked():
			s.logger.Debug("Message nacked, redelivering", watermill.LogFields{"uuid": msg.UUID, "topic": topic})
			if !wait(ctx, PollInterval) {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
