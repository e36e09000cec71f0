// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package event

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

const (
	subscriberKindLocal  = "in-memory"
	subscriberKindRemote = "remote"
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      eventData,
	}
}

type queuedEvent struct {
	eventType EventType
	event     Event
}

// EventBus fans governance events out to local channel subscribers and to
// registered remote subscribers such as the Redis stream publisher
type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	metrics     *busMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger

	asyncQueue chan queuedEvent
	asyncWg    sync.WaitGroup
	stopped    bool
	stopMu     sync.RWMutex
	stopOpMu   sync.Mutex
}

// NewEventBus creates a new EventBus and starts its async workers
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		logger:      logger.With("component", "event"),
	}
	if promRegistry != nil {
		e.metrics = newBusMetrics(promRegistry)
	}
	e.startWorkers()
	return e
}

func (e *EventBus) startWorkers() {
	e.stopMu.Lock()
	e.asyncQueue = make(chan queuedEvent, AsyncQueueSize)
	e.stopped = false
	queue := e.asyncQueue
	e.stopMu.Unlock()
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker(queue)
	}
}

// asyncWorker delivers queued events until the queue is closed and empty
func (e *EventBus) asyncWorker(queue <-chan queuedEvent) {
	defer e.asyncWg.Done()
	for qe := range queue {
		e.Publish(qe.eventType, qe.event)
	}
}

// Subscriber receives events from the bus. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// channelSubscriber backs Subscribe. Deliver blocks while the channel is full.
type channelSubscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	return &channelSubscriber{
		ch: make(chan Event, buffer),
	}
}

func (c *channelSubscriber) Deliver(evt Event) (err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel deliver panic: %v", r)
		}
	}()
	c.ch <- evt
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return subscriberKindLocal
	}
	return subscriberKindRemote
}

func (e *EventBus) addSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSubId++
	subId := e.lastSubId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]Subscriber)
	}
	e.subscribers[eventType][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType), subscriberKind(sub)).
			Inc()
	}
	return subId
}

// Subscribe returns a channel that receives events of the given type
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(EventQueueSize)
	subId := e.addSubscriber(eventType, chSub)
	return subId, chSub.ch
}

// SubscribeFunc calls handlerFunc for each event of the given type
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

// RegisterSubscriber attaches an external Subscriber implementation
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	return e.addSubscriber(eventType, sub)
}

// Unsubscribe removes and closes a subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var sub Subscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if s, ok := evtTypeSubs[subId]; ok {
			sub = s
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(string(eventType), subscriberKind(s)).
					Dec()
			}
		}
	}
	e.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// Publish delivers evt synchronously to every subscriber of eventType.
// A subscriber whose Deliver fails or panics is removed.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	type target struct {
		id  EventSubscriberId
		sub Subscriber
	}
	e.mu.RLock()
	targets := make([]target, 0, len(e.subscribers[eventType]))
	for id, sub := range e.subscribers[eventType] {
		targets = append(targets, target{id: id, sub: sub})
	}
	e.mu.RUnlock()
	for _, t := range targets {
		if err := safeDeliver(t.sub, evt); err != nil {
			e.Unsubscribe(eventType, t.id)
			if e.metrics != nil {
				e.metrics.deliveryErrors.WithLabelValues(string(eventType), subscriberKind(t.sub)).
					Inc()
			}
			e.logger.Debug(
				"event delivery error",
				"type", eventType,
				"error", err,
			)
		}
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

func safeDeliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber deliver panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues evt for delivery by the worker pool. It returns false
// when the bus is stopped or the queue is full.
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return false
	}
	select {
	case e.asyncQueue <- queuedEvent{eventType: eventType, event: evt}:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"type", eventType,
		)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(string(eventType), "async-dropped").
				Inc()
		}
		return false
	}
}

// Stop closes the async queue, waits for the workers to deliver everything
// already queued and then closes all subscribers. Synchronous Publish keeps
// working afterwards while PublishAsync reports false.
func (e *EventBus) Stop() {
	e.stopOpMu.Lock()
	defer e.stopOpMu.Unlock()

	e.stopMu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.asyncQueue)
	}
	e.stopMu.Unlock()
	e.asyncWg.Wait()

	e.mu.Lock()
	subs := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
	e.mu.Unlock()
	for _, evtTypeSubs := range subs {
		for _, sub := range evtTypeSubs {
			sub.Close()
		}
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
}
