// Package sse fans events out to Server-Sent Events subscribers.
package sse

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

// Default configuration values.
const (
	DefaultClientBufferSize  = 64
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultMaxClients        = 100
)

var (
	// ErrTooManyClients is returned by Subscribe when the client limit is reached.
	ErrTooManyClients = errors.New("too many sse clients")
	// ErrBrokerClosed is returned once Close has been called.
	ErrBrokerClosed = errors.New("sse broker closed")
)

// Event is one Server-Sent Event.
// Format: event: <Type>\nid: <ID>\ndata: <JSON payload>\n\n
type Event struct {
	Type string `json:"type"`
	// Data must be JSON-serializable.
	Data any    `json:"data"`
	ID   string `json:"id,omitempty"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithClientBufferSize sets how many events a subscriber may lag behind
// before it is disconnected.
func WithClientBufferSize(size int) Option {
	return func(b *Broker) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithHeartbeatInterval sets the keep-alive comment interval.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(b *Broker) {
		if interval > 0 {
			b.heartbeat = interval
		}
	}
}

// WithMaxClients caps concurrent subscribers. Zero means unlimited.
func WithMaxClients(maxClients int) Option {
	return func(b *Broker) {
		b.maxClients = maxClients
	}
}

// Broker delivers published events to every current subscriber. Publish never
// blocks: a subscriber whose buffer is full is disconnected.
type Broker struct {
	log        logger.Logger
	bufferSize int
	heartbeat  time.Duration
	maxClients int

	mu      sync.RWMutex
	clients map[uint64]chan Event
	nextID  uint64
	closed  bool
}

// NewBroker creates a new SSE broker.
func NewBroker(log logger.Logger, opts ...Option) *Broker {
	b := &Broker{
		log:        log.With(logger.String("component", "sse")),
		bufferSize: DefaultClientBufferSize,
		heartbeat:  DefaultHeartbeatInterval,
		maxClients: DefaultMaxClients,
		clients:    make(map[uint64]chan Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber. The channel is closed when the
// subscriber is dropped or the broker closes; unsubscribe is idempotent.
func (b *Broker) Subscribe() (events <-chan Event, unsubscribe func(), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBrokerClosed
	}
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.log.Warn("Max SSE clients reached, rejecting new connection",
			logger.Int("max_clients", b.maxClients),
		)
		return nil, nil, ErrTooManyClients
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.clients[id] = ch

	return ch, func() { b.remove(id) }, nil
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}

	var slow []uint64
	for id, ch := range b.clients {
		select {
		case ch <- event:
		default:
			slow = append(slow, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range slow {
		b.log.Warn("Client buffer full, closing slow connection",
			logger.Int64("client_id", int64(id)),
			logger.String("event_type", event.Type),
		)
		b.remove(id)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every subscriber and rejects further use.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
	}
}
