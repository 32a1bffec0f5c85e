// Package eventbus provides an in-memory publish/subscribe bus used to fan login events
// out to renderers. Topics are dot-separated; a subscription pattern may use "*" for a
// single component, or be "*" alone to match everything.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a single published message.
type Event struct {
	Topic string // topic the event was published on
	Data  any    // event payload
}

type subscriber struct {
	id      string
	pattern string
	ch      chan Event
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex // protects closed
	closed bool
}

// send delivers the event, giving up after timeout. Returns false if the
// subscriber is closed or too slow.
func (s *subscriber) send(event Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- event:
		return true
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

func (s *subscriber) close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// EventBus routes events to subscribers by topic pattern.
type EventBus struct {
	sync.RWMutex
	subscribers map[string]map[string]*subscriber // pattern -> id -> subscriber
	counter     uint64
}

// New creates an empty EventBus.
func New() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[string]*subscriber),
	}
}

// Subscribe registers interest in pattern. The returned channel is closed by the
// unsubscribe function or by Shutdown.
func (bus *EventBus) Subscribe(pattern string, bufferSize int) (<-chan Event, func()) {
	id := fmt.Sprintf("sub-%d", atomic.AddUint64(&bus.counter, 1))

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		id:      id,
		pattern: pattern,
		ch:      make(chan Event, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	bus.Lock()
	if _, ok := bus.subscribers[pattern]; !ok {
		bus.subscribers[pattern] = make(map[string]*subscriber)
	}
	bus.subscribers[pattern][id] = sub
	bus.Unlock()

	unsubscribe := func() {
		bus.Lock()
		subMap, ok := bus.subscribers[pattern]
		if ok {
			delete(subMap, id)
			if len(subMap) == 0 {
				delete(bus.subscribers, pattern)
			}
		}
		bus.Unlock()
		sub.close()
	}

	return sub.ch, unsubscribe
}

// Publish delivers data to every subscriber whose pattern matches topic. Slow
// subscribers are skipped once timeout elapses. Events reach a given subscriber in
// publish order when published from a single goroutine.
func (bus *EventBus) Publish(topic string, data any, timeout time.Duration) {
	event := Event{Topic: topic, Data: data}

	bus.RLock()
	var targets []*subscriber
	for pattern, subMap := range bus.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				targets = append(targets, sub)
			}
		}
	}
	bus.RUnlock()

	for _, sub := range targets {
		sub.send(event, timeout)
	}
}

// Shutdown closes every subscriber and empties the bus.
func (bus *EventBus) Shutdown() {
	bus.Lock()
	subs := bus.subscribers
	bus.subscribers = make(map[string]map[string]*subscriber)
	bus.Unlock()

	for _, subMap := range subs {
		for _, sub := range subMap {
			sub.close()
		}
	}
}

func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")

	if len(patternParts) != len(topicParts) {
		return false
	}

	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
