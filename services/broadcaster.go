package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/cafe-orders-api/metrics"
	"go.uber.org/zap"
)

// Audience is a publish/subscribe destination
type Audience string

// StaffAudience is the shared channel every admin dashboard listens on
const StaffAudience Audience = "staff"

// CustomerAudience returns the private channel of one customer
func CustomerAudience(customerID string) Audience {
	return Audience("customer:" + customerID)
}

// EventKind names the lifecycle signal carried by an Event
type EventKind string

const (
	EventNewOrder           EventKind = "new_order"
	EventOrderStatusChanged EventKind = "order_status_changed"
)

// Event is what subscribers and sinks receive
type Event struct {
	ID         string      `json:"id"`
	Kind       EventKind   `json:"kind"`
	Audience   Audience    `json:"audience"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// OrderStatusChanged is the payload of EventOrderStatusChanged
type OrderStatusChanged struct {
	OrderID    uint   `json:"order_id"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
}

// Broadcaster is the publishing side used by the order lifecycle.
// Publish must return immediately and never fail the caller.
type Broadcaster interface {
	Publish(audience Audience, kind EventKind, payload interface{})
}

// Sink receives every dispatched event, e.g. to mirror it to a message broker
type Sink interface {
	Forward(ctx context.Context, event Event) error
}

const defaultSubscriberBuffer = 32

// Hub is an in-process, best-effort Broadcaster. Published events are queued in a
// bounded inbox and fanned out by a single dispatcher goroutine (see Run), so
// events leave the hub in the order they were published. Events are dropped
// rather than blocking when the inbox or a subscriber buffer is full.
type Hub struct {
	logger           *zap.Logger
	metrics          *metrics.Metrics
	inbox            chan Event
	sinks            []Sink
	subscriberBuffer int

	mu      sync.RWMutex
	subs    map[Audience]map[string]*Subscription
	stopped bool
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithSink adds a sink that receives every dispatched event
func WithSink(sink Sink) HubOption {
	return func(h *Hub) {
		h.sinks = append(h.sinks, sink)
	}
}

// WithMetrics records published and dropped events
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithSubscriberBuffer sets the per-subscriber channel capacity
func WithSubscriberBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.subscriberBuffer = size
		}
	}
}

// NewHub creates a hub whose inbox holds up to bufferSize pending events
func NewHub(logger *zap.Logger, bufferSize int, opts ...HubOption) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	h := &Hub{
		logger:           logger,
		inbox:            make(chan Event, bufferSize),
		subscriberBuffer: defaultSubscriberBuffer,
		subs:             make(map[Audience]map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish queues an event without blocking
func (h *Hub) Publish(audience Audience, kind EventKind, payload interface{}) {
	event := Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Audience:   audience,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	select {
	case h.inbox <- event:
		h.metrics.EventPublished(string(kind))
	default:
		h.metrics.EventDropped("inbox_full")
		h.logger.Warn("Dropping event, broadcaster inbox is full",
			zap.String("event_id", event.ID),
			zap.String("kind", string(kind)),
			zap.String("audience", string(audience)),
		)
	}
}

// Run dispatches queued events until ctx is cancelled. It must be running for
// subscribers to receive anything.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.inbox:
			h.dispatch(ctx, event)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, event Event) {
	h.mu.RLock()
	for _, sub := range h.subs[event.Audience] {
		select {
		case sub.ch <- event:
		default:
			h.metrics.EventDropped("subscriber_full")
			h.logger.Warn("Dropping event for slow subscriber",
				zap.String("event_id", event.ID),
				zap.String("subscription_id", sub.id),
				zap.String("audience", string(event.Audience)),
			)
		}
	}
	h.mu.RUnlock()

	for _, sink := range h.sinks {
		if err := sink.Forward(ctx, event); err != nil {
			h.logger.Error("Failed to forward event to sink",
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err),
			)
		}
	}
}

// Subscribe registers a new listener on audience. Once the hub has stopped the
// returned subscription is already closed.
func (h *Hub) Subscribe(audience Audience) *Subscription {
	sub := &Subscription{
		id:       uuid.NewString(),
		audience: audience,
		ch:       make(chan Event, h.subscriberBuffer),
		hub:      h,
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		close(sub.ch)
		return sub
	}
	if h.subs[audience] == nil {
		h.subs[audience] = make(map[string]*Subscription)
	}
	h.subs[audience][sub.id] = sub
	h.mu.Unlock()

	h.logger.Debug("Subscriber attached",
		zap.String("subscription_id", sub.id),
		zap.String("audience", string(audience)),
	)
	return sub
}

// SubscriberCount returns the number of live subscriptions on audience
func (h *Hub) SubscriberCount(audience Audience) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[audience])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sub.audience]
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.subs, sub.audience)
	}
	close(sub.ch)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for audience, subs := range h.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(h.subs, audience)
	}
}

// Subscription is one listener attached to a Hub
type Subscription struct {
	id       string
	audience Audience
	ch       chan Event
	hub      *Hub
}

// ID returns the subscription identifier
func (s *Subscription) ID() string {
	return s.id
}

// Audience returns the audience the subscription listens on
func (s *Subscription) Audience() Audience {
	return s.audience
}

// Events returns the delivery channel. It is closed by Close or when the hub stops.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription; calling it more than once is safe
func (s *Subscription) Close() {
	s.hub.remove(s)
}
