// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/i3ipc/lib/testutil"
)

const testTimeout = 5 * time.Second

func newTestDispatcher(t *testing.T, eventBuffer int) *dispatcher {
	t.Helper()
	d := newDispatcher(slog.New(slog.DiscardHandler), eventBuffer)
	t.Cleanup(func() {
		d.fail(ErrConnectionClosed)
		d.closeEvents()
		<-d.delivered
	})
	return d
}

func replyFrame(messageType MessageType, payload string) Frame {
	return Frame{Type: uint32(messageType), Payload: []byte(payload)}
}

func eventFrame(code EventCode, payload string) Frame {
	return Frame{Type: code.FrameType(), Payload: []byte(payload)}
}

func requireResult(t *testing.T, request *pendingRequest) pendingResult {
	t.Helper()
	return testutil.RequireReceive(t, request.result, testTimeout, "waiting for %s result", request.messageType)
}

func TestDispatcherFIFOPerType(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	first, _ := d.enqueue(MessageGetTree)
	second, _ := d.enqueue(MessageGetTree)
	marks, _ := d.enqueue(MessageGetMarks)

	d.route(replyFrame(MessageGetMarks, `["m"]`))
	d.route(replyFrame(MessageGetTree, `"one"`))
	d.route(replyFrame(MessageGetTree, `"two"`))

	if got := string(requireResult(t, first).payload); got != `"one"` {
		t.Errorf("first: got %s, want \"one\"", got)
	}
	if got := string(requireResult(t, second).payload); got != `"two"` {
		t.Errorf("second: got %s, want \"two\"", got)
	}
	if got := string(requireResult(t, marks).payload); got != `["m"]` {
		t.Errorf("marks: got %s", got)
	}
	if count := d.pendingCount(); count != 0 {
		t.Errorf("pending after all replies: %d", count)
	}
}

func TestDispatcherSpuriousReply(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	d.route(replyFrame(MessageGetVersion, `{}`))
	if got := d.spuriousReplies.Load(); got != 1 {
		t.Errorf("spurious replies: got %d, want 1", got)
	}

	// The dispatcher keeps working afterwards.
	request, err := d.enqueue(MessageGetVersion)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.route(replyFrame(MessageGetVersion, `{"major":4}`))
	if got := string(requireResult(t, request).payload); got != `{"major":4}` {
		t.Errorf("got %s", got)
	}
}

func TestDispatcherAbandonedRequestConsumesLateReply(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	cancelled, _ := d.enqueue(MessageGetWorkspaces)
	d.abandon(cancelled)
	fresh, _ := d.enqueue(MessageGetWorkspaces)

	d.route(replyFrame(MessageGetWorkspaces, `"late"`))
	testutil.RequireNoReceive(t, fresh.result, 50*time.Millisecond, "late reply went to the next request")

	d.route(replyFrame(MessageGetWorkspaces, `"fresh"`))
	if got := string(requireResult(t, fresh).payload); got != `"fresh"` {
		t.Errorf("fresh request: got %s, want \"fresh\"", got)
	}
	if len(cancelled.result) != 0 {
		t.Error("abandoned request received a result")
	}
	if got := d.spuriousReplies.Load(); got != 0 {
		t.Errorf("late reply counted as spurious: %d", got)
	}
}

func TestDispatcherFail(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	live, _ := d.enqueue(MessageCommand)
	abandoned, _ := d.enqueue(MessageGetTree)
	d.abandon(abandoned)

	cause := errors.New("reset")
	d.fail(cause)
	d.fail(errors.New("second failure is ignored"))

	if result := requireResult(t, live); result.err != cause {
		t.Errorf("live request: got %v, want %v", result.err, cause)
	}
	if len(abandoned.result) != 0 {
		t.Error("abandoned request received the failure")
	}
	if _, err := d.enqueue(MessageCommand); err != cause {
		t.Errorf("enqueue after fail: got %v, want %v", err, cause)
	}
	if count := d.pendingCount(); count != 0 {
		t.Errorf("pending after fail: %d", count)
	}
}

func TestDispatcherListenerOrder(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{})
	record := func(name string) Listener {
		return func(Event) error {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return nil
		}
	}

	d.addListener(EventMode, record("first"))
	d.addListener(EventMode, func(Event) error { return errors.New("listener error is logged") })
	d.addListener(EventMode, func(Event) error { panic("listener panic is recovered") })
	d.addListener(EventMode, record("last"))
	d.addListener(EventMode, func(Event) error { close(done); return nil })

	d.route(eventFrame(EventMode, `{"change":"resize"}`))
	testutil.RequireClosed(t, done, testTimeout, "waiting for delivery")

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(calls, []string{"first", "last"}) {
		t.Errorf("calls: got %v", calls)
	}
}

func TestDispatcherRoutesEventsByCode(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	windows := make(chan Event, 4)
	modes := make(chan Event, 4)
	d.addListener(EventWindow, func(event Event) error { windows <- event; return nil })
	d.addListener(EventMode, func(event Event) error { modes <- event; return nil })

	d.route(eventFrame(EventMode, `{"change":"default"}`))
	event := testutil.RequireReceive(t, modes, testTimeout, "waiting for mode event")
	if mode, ok := event.(ModeEvent); !ok || mode.Change != "default" {
		t.Errorf("mode listener got %#v", event)
	}
	testutil.RequireNoReceive(t, windows, 50*time.Millisecond, "window listener got a mode event")
}

func TestDispatcherRemoveListener(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	removed := make(chan Event, 1)
	kept := make(chan Event, 1)
	remove := d.addListener(EventOutput, func(event Event) error { removed <- event; return nil })
	d.addListener(EventOutput, func(event Event) error { kept <- event; return nil })

	remove()
	remove()

	d.route(eventFrame(EventOutput, `{"change":"unspecified"}`))
	testutil.RequireReceive(t, kept, testTimeout, "waiting for remaining listener")
	if len(removed) != 0 {
		t.Error("removed listener was called")
	}
}

func TestDispatcherDropsEventsWhenQueueFull(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	var calls int
	d.addListener(EventBinding, func(Event) error {
		calls++
		if calls == 1 {
			close(started)
			<-release
		}
		return nil
	})

	d.route(eventFrame(EventBinding, `{"change":"run"}`))
	testutil.RequireClosed(t, started, testTimeout, "waiting for first delivery")

	// The listener is blocked: one event fits in the queue, the next
	// is dropped. Replies still route.
	d.route(eventFrame(EventBinding, `{"change":"run"}`))
	d.route(eventFrame(EventBinding, `{"change":"run"}`))

	request, _ := d.enqueue(MessageGetMarks)
	d.route(replyFrame(MessageGetMarks, `[]`))
	requireResult(t, request)

	if got := d.droppedEvents.Load(); got != 1 {
		t.Errorf("dropped events: got %d, want 1", got)
	}
}

func TestDispatcherSkipsUndecodableEvent(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, 0)

	events := make(chan Event, 2)
	d.addListener(EventWindow, func(event Event) error { events <- event; return nil })

	d.route(eventFrame(EventWindow, `{"change":`))
	d.route(eventFrame(EventWindow, `{"change":"new"}`))

	event := testutil.RequireReceive(t, events, testTimeout, "waiting for valid event")
	if window := event.(WindowEvent); window.Change != "new" {
		t.Errorf("got %+v, want the valid event", window)
	}
}
