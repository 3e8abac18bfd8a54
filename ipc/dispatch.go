// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultEventBuffer is the number of undelivered events a connection
// holds before it starts dropping new ones.
const DefaultEventBuffer = 256

// Listener receives decoded events. A returned error is logged; it
// does not affect delivery to other listeners or later events.
type Listener func(event Event) error

// pendingRequest is the wait state of one request. It occupies a slot
// in the FIFO of its message type until a reply of that type arrives
// or the connection dies.
type pendingRequest struct {
	messageType MessageType

	// result receives exactly one value. Buffered so the router never
	// blocks on a caller.
	result chan pendingResult

	// abandoned is set when the caller stopped waiting (cancellation
	// or timeout). The slot stays queued so that the reply written for
	// this request is consumed here and discarded instead of being
	// handed to the next request of the same type. Guarded by
	// dispatcher.mu.
	abandoned bool
}

type pendingResult struct {
	payload []byte
	err     error
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// dispatcher routes frames for one connection: replies to pending
// requests, events to listeners. route is called only from the
// connection's reader goroutine and never blocks.
type dispatcher struct {
	logger *slog.Logger

	mu        sync.Mutex
	pending   map[MessageType][]*pendingRequest
	listeners map[EventCode][]listenerEntry
	nextID    uint64

	// terminal is the error every request fails with once the
	// connection is dead. Nil while the connection is alive.
	terminal error

	// events is the bounded queue between the reader and the delivery
	// goroutine. Closed by closeEvents once the reader is gone.
	events    chan Frame
	delivered chan struct{}

	droppedEvents   atomic.Uint64
	spuriousReplies atomic.Uint64
}

func newDispatcher(logger *slog.Logger, eventBuffer int) *dispatcher {
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	d := &dispatcher{
		logger:    logger,
		pending:   make(map[MessageType][]*pendingRequest),
		listeners: make(map[EventCode][]listenerEntry),
		events:    make(chan Frame, eventBuffer),
		delivered: make(chan struct{}),
	}
	go d.deliverEvents()
	return d
}

// enqueue appends a pending request for messageType. The caller must
// hold the connection's write lock so that queue order matches the
// order frames reach the wire.
func (d *dispatcher) enqueue(messageType MessageType) (*pendingRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminal != nil {
		return nil, d.terminal
	}
	request := &pendingRequest{
		messageType: messageType,
		result:      make(chan pendingResult, 1),
	}
	d.pending[messageType] = append(d.pending[messageType], request)
	return request, nil
}

// abandon detaches the caller from request.
func (d *dispatcher) abandon(request *pendingRequest) {
	d.mu.Lock()
	request.abandoned = true
	d.mu.Unlock()
}

// route handles one frame from the reader.
func (d *dispatcher) route(frame Frame) {
	if frame.IsEvent() {
		d.enqueueEvent(frame)
		return
	}

	messageType := frame.MessageType()

	d.mu.Lock()
	queue := d.pending[messageType]
	if len(queue) == 0 {
		d.mu.Unlock()
		d.spuriousReplies.Add(1)
		d.logger.Warn("discarding reply",
			"error", &SpuriousReplyError{Type: messageType, Length: len(frame.Payload)},
		)
		return
	}
	request := queue[0]
	queue[0] = nil
	if len(queue) == 1 {
		delete(d.pending, messageType)
	} else {
		d.pending[messageType] = queue[1:]
	}
	abandoned := request.abandoned
	if !abandoned {
		request.result <- pendingResult{payload: frame.Payload}
	}
	d.mu.Unlock()

	if abandoned {
		d.logger.Debug("discarding late reply for abandoned request",
			"type", messageType,
			"bytes", len(frame.Payload),
		)
	}
}

// enqueueEvent hands an event frame to the delivery goroutine. If the
// queue is full the event is dropped: a slow listener must not stall
// replies.
func (d *dispatcher) enqueueEvent(frame Frame) {
	select {
	case d.events <- frame:
	default:
		dropped := d.droppedEvents.Add(1)
		d.logger.Warn("event queue full, dropping event",
			"event", frame.EventCode(),
			"capacity", cap(d.events),
			"dropped_total", dropped,
		)
	}
}

// deliverEvents decodes queued events and runs the listeners for each,
// in registration order.
func (d *dispatcher) deliverEvents() {
	defer close(d.delivered)
	for frame := range d.events {
		code := frame.EventCode()
		listeners := d.listenersFor(code)
		if len(listeners) == 0 {
			continue
		}

		event, err := DecodeEvent(code, frame.Payload)
		if err != nil {
			d.logger.Warn("dropping undecodable event", "event", code, "error", err)
			continue
		}

		for _, entry := range listeners {
			if err := d.invoke(entry, event); err != nil {
				d.logger.Warn("event listener failed",
					"event", code,
					"listener", entry.id,
					"error", err,
				)
			}
		}
	}
}

func (d *dispatcher) invoke(entry listenerEntry, event Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("listener panicked: %v", recovered)
		}
	}()
	return entry.listener(event)
}

func (d *dispatcher) listenersFor(code EventCode) []listenerEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listeners[code]
}

// addListener registers listener for code and returns a function that
// removes it. Removal is local: the server keeps sending the events.
func (d *dispatcher) addListener(code EventCode, listener Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID

	// Copy on write: deliverEvents iterates a snapshot without the lock.
	existing := d.listeners[code]
	updated := make([]listenerEntry, len(existing), len(existing)+1)
	copy(updated, existing)
	d.listeners[code] = append(updated, listenerEntry{id: id, listener: listener})

	var once sync.Once
	return func() {
		once.Do(func() { d.removeListener(code, id) })
	}
}

func (d *dispatcher) removeListener(code EventCode, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	existing := d.listeners[code]
	updated := make([]listenerEntry, 0, len(existing))
	for _, entry := range existing {
		if entry.id != id {
			updated = append(updated, entry)
		}
	}
	if len(updated) == 0 {
		delete(d.listeners, code)
	} else {
		d.listeners[code] = updated
	}
}

// fail moves the dispatcher to its terminal state: every pending
// request receives err and later enqueues return it. Only the first
// call has an effect.
func (d *dispatcher) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminal != nil {
		return
	}
	d.terminal = err
	for messageType, queue := range d.pending {
		for _, request := range queue {
			if !request.abandoned {
				request.result <- pendingResult{err: err}
			}
		}
		delete(d.pending, messageType)
	}
}

// closeEvents stops the delivery goroutine once the queued events have
// been delivered. Must be called by the reader goroutine, the only
// sender on d.events.
func (d *dispatcher) closeEvents() {
	close(d.events)
}

// pendingCount returns the number of queued slots, abandoned ones
// included.
func (d *dispatcher) pendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, queue := range d.pending {
		count += len(queue)
	}
	return count
}
