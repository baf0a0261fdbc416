package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var (
	// ErrBrokerUnavailable is returned while the publisher is backing off
	// after a failed dial.
	ErrBrokerUnavailable = errors.New("queue: broker unavailable")
	// ErrBufferFull is returned when the outgoing buffer has no room; the
	// event is dropped.
	ErrBufferFull = errors.New("queue: publish buffer full")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("queue: publisher closed")
)

const (
	defaultBuffer      = 256
	defaultBackoff     = 10 * time.Second
	defaultDialTimeout = 3 * time.Second
	sendTimeout        = 5 * time.Second
)

// Option tunes a Publisher.
type Option func(*Publisher)

// WithBuffer sets how many events may wait for the broker.
func WithBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = n
		}
	}
}

// WithDialTimeout bounds the TCP connect and the AMQP handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

// Publisher publishes AuthEvents as persistent JSON messages to the
// auth.events queue.
//
// Publish only enqueues. A single goroutine owns the broker connection and
// drains the queue; it dials lazily and re-dials after a failure, but not more
// often than once per backoff window. Events that arrive while the buffer is
// full, or that fail to send, are dropped and logged.
type Publisher struct {
	url         string
	backoff     time.Duration
	dialTimeout time.Duration
	buffer      int
	log         *zap.Logger

	events    chan AuthEvent
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by run
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewPublisher starts the sending goroutine. It does not dial; the first
// event does.
func NewPublisher(url string, log *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		url:         url,
		backoff:     defaultBackoff,
		dialTimeout: defaultDialTimeout,
		buffer:      defaultBuffer,
		log:         log,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.events = make(chan AuthEvent, p.buffer)
	go p.run()
	return p
}

// Publish queues ev for delivery and never waits on the broker.
func (p *Publisher) Publish(_ context.Context, ev AuthEvent) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops the sending goroutine and releases the broker connection.
// Events still buffered are discarded.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	<-p.stopped
	return nil
}

func (p *Publisher) run() {
	defer close(p.stopped)
	defer p.closeConn()

	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			if err := p.send(ev); err != nil {
				p.log.Warn("queue: drop auth event",
					zap.String("type", ev.Type),
					zap.String("id", ev.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (p *Publisher) send(ev AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue: marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", AuthEventsQueue, false, false, pub); err != nil {
		p.closeConn()
		return fmt.Errorf("queue: publish: %w", err)
	}
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if time.Now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}
	p.closeConn()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		p.retryAt = time.Now().Add(p.backoff)
		return nil, fmt.Errorf("queue: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.retryAt = time.Now().Add(p.backoff)
		return nil, fmt.Errorf("queue: channel open: %w", err)
	}
	// durable; redeclaring an existing queue is a no-op
	if _, err := ch.QueueDeclare(AuthEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		p.retryAt = time.Now().Add(p.backoff)
		return nil, fmt.Errorf("queue: declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.log.Debug("queue: close connection", zap.Error(err))
		}
		p.conn = nil
	}
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuthEvent) error { return nil }
