// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/coursepay/internal/breaker"
	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/metrics"
)

var (
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrQueueFull is recorded when Emit drops an event because the
	// publish queue is saturated.
	ErrQueueFull = errors.New("publish queue full")
)

// DefaultQueueSize bounds the events waiting for the background publisher.
const DefaultQueueSize = 256

// Emitter is what the settlement engine depends on.
type Emitter interface {
	Emit(ctx context.Context, e *Event)
}

type queuedEvent struct {
	ctx   context.Context
	event *Event
}

// Publisher wraps a Watermill publisher with a circuit breaker. Emit hands
// events to a single background writer so broker latency never reaches the
// caller; Publish is the synchronous path.
type Publisher struct {
	publisher message.Publisher
	breaker   *breaker.Breaker
	prefix    string
	queue     chan queuedEvent
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub and starts its background writer. Events go to
// subjects under prefix.
func NewPublisher(pub message.Publisher, cfg *config.NATSConfig) *Publisher {
	return newPublisher(pub, cfg, DefaultQueueSize)
}

func newPublisher(pub message.Publisher, cfg *config.NATSConfig, queueSize int) *Publisher {
	p := &Publisher{
		publisher: pub,
		prefix:    cfg.TopicPrefix,
		queue:     make(chan queuedEvent, queueSize),
		breaker: breaker.New(breaker.Settings{
			Name:        "event-bus",
			MaxFailures: cfg.CircuitBreakerMaxFailures,
			Timeout:     cfg.CircuitBreakerTimeout,
		}),
	}
	p.wg.Add(1)
	go p.writer()
	return p
}

func (p *Publisher) writer() {
	defer p.wg.Done()
	for q := range p.queue {
		p.deliver(q.ctx, q.event)
	}
}

// Publish sends e and returns the publish error.
func (p *Publisher) Publish(_ context.Context, e *Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	return p.send(e)
}

func (p *Publisher) send(e *Event) error {
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, e.ID)
	msg.Metadata.Set("event_type", string(e.Type))
	msg.Metadata.Set("gateway_ref", e.GatewayRef)

	return p.breaker.Execute(func() error {
		return p.publisher.Publish(e.Topic(p.prefix), msg)
	})
}

// Emit queues e for publishing and returns immediately. A full queue or a
// closed publisher drops the event with a warning.
func (p *Publisher) Emit(ctx context.Context, e *Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	err := ErrPublisherClosed
	if !p.closed {
		select {
		case p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: e}:
			return
		default:
			err = ErrQueueFull
		}
	}
	metrics.RecordEventPublish(err)
	logging.Ctx(ctx).Warn().Err(err).
		Str("event_type", string(e.Type)).
		Str("event_id", e.ID).
		Msg("Settlement event dropped")
}

func (p *Publisher) deliver(ctx context.Context, e *Event) {
	err := p.send(e)
	metrics.RecordEventPublish(err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("event_type", string(e.Type)).
			Str("event_id", e.ID).
			Msg("Failed to publish settlement event")
		return
	}
	logging.Ctx(ctx).Debug().
		Str("event_type", string(e.Type)).
		Str("event_id", e.ID).
		Msg("Settlement event published")
}

// State returns the circuit breaker state: closed, half-open or open.
func (p *Publisher) State() string {
	return p.breaker.State()
}

// Close stops accepting events, waits for queued ones to be published,
// then shuts the underlying publisher down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.publisher.Close()
}

// WatermillLogger adapts the global zerolog logger for Watermill.
func WatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewNATSPublisher connects a JetStream publisher to url. The stream must
// already exist (see EnsureStream).
func NewNATSPublisher(url string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = WatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("coursepay"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// NewChannelPubSub returns the in-process bus used when NATS is disabled.
func NewChannelPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = WatermillLogger()
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(context.Context, *Event) {}
