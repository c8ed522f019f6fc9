package utils

import (
	"context"
	"sync"
	"sync/atomic"
)

const eventBufferSize = 256

type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type Handler func(event Event)

// EventBus fans published events out to subscribers from a single goroutine,
// so handlers for all topics run one at a time in publish order.
type EventBus struct {
	subscribers map[string][]Handler
	events      chan Event
	mu          sync.RWMutex
	dropped     atomic.Uint64
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Handler),
		events:      make(chan Event, eventBufferSize),
	}
}

// Publish enqueues an event without blocking. It reports false when the
// buffer is full and the event was dropped.
func (eb *EventBus) Publish(event string, data interface{}) bool {
	e := Event{Event: event, Data: data}
	select {
	case eb.events <- e:
		return true
	default:
		eb.dropped.Add(1)
		return false
	}
}

func (eb *EventBus) Subscribe(event string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[event] = append(eb.subscribers[event], handler)
}

// Dropped returns how many events were discarded because the buffer was full.
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// Run dispatches events until ctx is cancelled.
func (eb *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-eb.events:
			eb.dispatch(e)
		}
	}
}

func (eb *EventBus) dispatch(e Event) {
	eb.mu.RLock()
	handlers := append([]Handler(nil), eb.subscribers[e.Event]...)
	eb.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
