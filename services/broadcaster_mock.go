package services

import "sync"

// PublishedEvent is one call recorded by MockBroadcaster
type PublishedEvent struct {
	Audience Audience
	Kind     EventKind
	Payload  interface{}
}

// MockBroadcaster records published events for test assertions
type MockBroadcaster struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// NewMockBroadcaster creates an empty mock broadcaster
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

// Publish records the event
func (m *MockBroadcaster) Publish(audience Audience, kind EventKind, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Audience: audience, Kind: kind, Payload: payload})
}

// Events returns a copy of everything published so far
func (m *MockBroadcaster) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsFor returns the events published to audience, in order
func (m *MockBroadcaster) EventsFor(audience Audience) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range m.Events() {
		if e.Audience == audience {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events
func (m *MockBroadcaster) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
