package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType defines the type of event being published.
type EventType string

const (
	StateChangedEvent    EventType = "StateChanged"
	DeviceConnectedEvent EventType = "DeviceConnected"
	PatternChangedEvent  EventType = "PatternChanged"
	PowerChangedEvent    EventType = "PowerChanged"
	ColorChangedEvent    EventType = "ColorChanged"
	ModeChangedEvent     EventType = "ModeChanged"
	ScheduleListEvent    EventType = "ScheduleList"
	PatternListEvent     EventType = "PatternList"
	PatternCodeEvent     EventType = "PatternCode"
	CommandFailedEvent   EventType = "CommandFailed"
)

// Event is the envelope for all system events.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

const subscriberBuffer = 100

// EventBus fans events out to subscribers without ever blocking publishers.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	log         *logrus.Entry
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		log:         logrus.WithField("component", "eventbus"),
	}
}

// Subscribe returns a channel that receives events of the given types.
func (eb *EventBus) Subscribe(eventTypes ...EventType) Subscriber {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(Subscriber, subscriberBuffer)
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], ch)
	}

	return ch
}

// Unsubscribe removes a subscriber channel from the given types.
func (eb *EventBus) Unsubscribe(ch Subscriber, eventTypes ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, t := range eventTypes {
		subs := eb.subscribers[t]
		for i, sub := range subs {
			if sub == ch {
				eb.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish distributes an event to all active subscribers for its type.
// Full subscribers miss the event.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers[event.Type] {
		select {
		case sub <- event:
		default:
			eb.log.Warnf("Subscriber full, dropping %s event", event.Type)
		}
	}
}
