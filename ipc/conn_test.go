// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/ipc/ipctest"
	"github.com/bureau-foundation/i3ipc/lib/clock"
	"github.com/bureau-foundation/i3ipc/lib/testutil"
)

const testTimeout = 5 * time.Second

type requestResult struct {
	payload []byte
	err     error
}

func dial(t *testing.T, server *ipctest.Server, options ...ipc.Option) *ipc.Conn {
	t.Helper()
	conn, err := ipc.Dial(context.Background(), server.SocketPath(), options...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// requestAsync issues a request on its own goroutine.
func requestAsync(ctx context.Context, conn *ipc.Conn, messageType ipc.MessageType, payload string) <-chan requestResult {
	results := make(chan requestResult, 1)
	go func() {
		reply, err := conn.Request(ctx, messageType, []byte(payload))
		results <- requestResult{payload: reply, err: err}
	}()
	return results
}

func TestExitCommand(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, ipctest.StaticReplies(map[ipc.MessageType]string{
		ipc.MessageCommand: `[{"success":true}]`,
	}))
	conn := dial(t, server)

	reply, err := conn.Command(context.Background(), "exit")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if len(reply) != 1 || !reply[0].Success {
		t.Errorf("reply: got %+v, want one success", reply)
	}

	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")
	received := serverConn.Received()
	if len(received) != 1 {
		t.Fatalf("server received %d frames, want 1", len(received))
	}
	if received[0].Type != 0 || string(received[0].Payload) != "exit" {
		t.Errorf("server received %s with payload %q", received[0], received[0].Payload)
	}
}

func TestConcurrentDistinctTypes(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, ipctest.Echo)
	conn := dial(t, server)

	types := []ipc.MessageType{
		ipc.MessageCommand, ipc.MessageGetWorkspaces, ipc.MessageSubscribe, ipc.MessageGetOutputs,
		ipc.MessageGetTree, ipc.MessageGetMarks, ipc.MessageGetBarConfig, ipc.MessageGetVersion,
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(types))
	for _, messageType := range types {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag := testutil.UniqueID(messageType.String())
			reply, err := conn.Request(context.Background(), messageType, []byte(tag))
			if err != nil {
				errs <- fmt.Errorf("%s: %w", messageType, err)
				return
			}
			if string(reply) != tag {
				errs <- fmt.Errorf("%s: got reply %q, want %q", messageType, reply, tag)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSameTypeRepliesMatchInOrder(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	first := requestAsync(context.Background(), conn, ipc.MessageGetTree, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for first request")
	second := requestAsync(context.Background(), conn, ipc.MessageGetTree, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for second request")

	serverConn.Reply(ipc.MessageGetTree, `"A"`)
	serverConn.Reply(ipc.MessageGetTree, `"B"`)

	if result := testutil.RequireReceive(t, first, testTimeout, "first result"); string(result.payload) != `"A"` {
		t.Errorf("first: got %q, %v", result.payload, result.err)
	}
	if result := testutil.RequireReceive(t, second, testTimeout, "second result"); string(result.payload) != `"B"` {
		t.Errorf("second: got %q, %v", result.payload, result.err)
	}
}

func TestCancelledRequestDiscardsLateReply(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := requestAsync(ctx, conn, ipc.MessageGetWorkspaces, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for first request")
	cancel()

	result := testutil.RequireReceive(t, cancelled, testTimeout, "cancelled result")
	if !errors.Is(result.err, context.Canceled) {
		t.Fatalf("cancelled request: got %v, want context.Canceled", result.err)
	}

	fresh := requestAsync(context.Background(), conn, ipc.MessageGetWorkspaces, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for second request")

	serverConn.Reply(ipc.MessageGetWorkspaces, `"late"`)
	serverConn.Reply(ipc.MessageGetWorkspaces, `"fresh"`)

	result = testutil.RequireReceive(t, fresh, testTimeout, "fresh result")
	if result.err != nil {
		t.Fatalf("fresh request: %v", result.err)
	}
	if string(result.payload) != `"fresh"` {
		t.Errorf("fresh request got %q: the late reply was misattributed", result.payload)
	}
	if got := conn.SpuriousReplies(); got != 0 {
		t.Errorf("spurious replies: got %d, want 0", got)
	}
}

func TestRequestTimeoutWithFakeClock(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server, ipc.WithClock(fake), ipc.WithRequestTimeout(3*time.Second))
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	pending := requestAsync(context.Background(), conn, ipc.MessageGetVersion, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for request")
	fake.WaitForTimers(1)

	fake.Advance(2 * time.Second)
	testutil.RequireNoReceive(t, pending, 20*time.Millisecond, "request finished before its timeout")

	fake.Advance(time.Second)
	result := testutil.RequireReceive(t, pending, testTimeout, "timed out result")
	if !errors.Is(result.err, ipc.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", result.err)
	}

	// The connection stays usable and the late reply is discarded.
	retry := requestAsync(context.Background(), conn, ipc.MessageGetVersion, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for retry")
	serverConn.Reply(ipc.MessageGetVersion, `{"major":1}`)
	serverConn.Reply(ipc.MessageGetVersion, `{"major":4}`)

	result = testutil.RequireReceive(t, retry, testTimeout, "retry result")
	if result.err != nil || string(result.payload) != `{"major":4}` {
		t.Errorf("retry: got %q, %v", result.payload, result.err)
	}
	if conn.Err() != nil {
		t.Errorf("connection failed after timeout: %v", conn.Err())
	}
}

func TestContextDeadlineIsTimeout(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := conn.Request(ctx, ipc.MessageGetTree, nil)
	if !errors.Is(err, ipc.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should also wrap context.DeadlineExceeded: %v", err)
	}
}

// stalledServer accepts connections on a unix socket and never reads
// from them, so client writes block once the socket buffer fills.
func stalledServer(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "stalled.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})
	return socketPath
}

func TestDeadlineBoundsBlockedWrite(t *testing.T) {
	t.Parallel()
	socketPath := stalledServer(t)
	conn, err := ipc.Dial(context.Background(), socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	largeCtx, cancelLarge := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancelLarge()
	large := requestAsync(largeCtx, conn, ipc.MessageCommand, strings.Repeat("x", 8<<20))

	// Whichever request takes the write lock first, this one must give
	// up at its own deadline rather than wait behind the large write.
	smallCtx, cancelSmall := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelSmall()
	small := requestAsync(smallCtx, conn, ipc.MessageGetVersion, "")

	result := testutil.RequireReceive(t, small, testTimeout, "small request blocked past its deadline")
	if !errors.Is(result.err, ipc.ErrTimeout) {
		t.Errorf("small request: got %v, want ErrTimeout", result.err)
	}

	result = testutil.RequireReceive(t, large, testTimeout, "large request blocked past its deadline")
	if !errors.Is(result.err, ipc.ErrTimeout) {
		t.Errorf("large request: got %v, want ErrTimeout", result.err)
	}

	// A frame cut off mid-write leaves the stream unusable.
	testutil.RequireClosed(t, conn.Done(), testTimeout, "connection should end after a partial write")
	if !errors.Is(conn.Err(), ipc.ErrConnectionClosed) {
		t.Errorf("Err: got %v, want ErrConnectionClosed", conn.Err())
	}
}

func TestDefaultTimeoutBoundsBlockedWrite(t *testing.T) {
	t.Parallel()
	socketPath := stalledServer(t)
	conn, err := ipc.Dial(context.Background(), socketPath, ipc.WithRequestTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	pending := requestAsync(context.Background(), conn, ipc.MessageCommand, strings.Repeat("x", 8<<20))
	result := testutil.RequireReceive(t, pending, testTimeout, "request blocked past the default timeout")
	if !errors.Is(result.err, ipc.ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", result.err)
	}
}

func TestCloseWaitsForRunningListener(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	conn.AddListener(ipc.EventMode, func(ipc.Event) error {
		close(entered)
		<-release
		finished.Store(true)
		return nil
	})
	serverConn.SendEvent(ipc.EventMode, `{"change":"resize"}`)
	testutil.RequireClosed(t, entered, testTimeout, "waiting for listener to start")

	closed := make(chan error, 1)
	go func() { closed <- conn.Close() }()
	testutil.RequireNoReceive(t, closed, 100*time.Millisecond, "Close returned while a listener was running")

	close(release)
	if err := testutil.RequireReceive(t, closed, testTimeout, "waiting for Close"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !finished.Load() {
		t.Error("Close returned before the listener finished")
	}
}

func TestCloseFromListenerReturns(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	closed := make(chan error, 1)
	conn.AddListener(ipc.EventMode, func(ipc.Event) error {
		closed <- conn.Close()
		return nil
	})
	serverConn.SendEvent(ipc.EventMode, `{"change":"default"}`)

	if err := testutil.RequireReceive(t, closed, testTimeout, "Close from a listener did not return"); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestCloseFailsPendingRequests(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	pending := requestAsync(context.Background(), conn, ipc.MessageGetOutputs, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for request")

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	result := testutil.RequireReceive(t, pending, testTimeout, "pending result")
	if !errors.Is(result.err, ipc.ErrConnectionClosed) {
		t.Errorf("pending request: got %v, want ErrConnectionClosed", result.err)
	}

	_, err := conn.Request(context.Background(), ipc.MessageGetOutputs, nil)
	if !errors.Is(err, ipc.ErrConnectionClosed) {
		t.Errorf("request after close: got %v, want ErrConnectionClosed", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestServerHangupFailsPendingRequests(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	pending := requestAsync(context.Background(), conn, ipc.MessageGetMarks, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for request")
	serverConn.Close()

	result := testutil.RequireReceive(t, pending, testTimeout, "pending result")
	if !errors.Is(result.err, ipc.ErrConnectionClosed) {
		t.Errorf("got %v, want ErrConnectionClosed", result.err)
	}
	testutil.RequireClosed(t, conn.Done(), testTimeout, "waiting for connection to end")
	if !errors.Is(conn.Err(), ipc.ErrConnectionClosed) {
		t.Errorf("Err: got %v, want ErrConnectionClosed", conn.Err())
	}
}

func TestBadMagicIsFatal(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	pending := requestAsync(context.Background(), conn, ipc.MessageGetTree, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for request")
	serverConn.WriteRaw([]byte("i3-IPC\x00\x00\x00\x00\x04\x00\x00\x00"))

	result := testutil.RequireReceive(t, pending, testTimeout, "pending result")
	if !errors.Is(result.err, ipc.ErrConnectionClosed) || !errors.Is(result.err, ipc.ErrProtocol) {
		t.Errorf("got %v, want ErrConnectionClosed wrapping ErrProtocol", result.err)
	}
	testutil.RequireClosed(t, conn.Done(), testTimeout, "waiting for connection to end")
	if !errors.Is(conn.Err(), ipc.ErrProtocol) {
		t.Errorf("Err: got %v, want ErrProtocol", conn.Err())
	}

	_, err := conn.Request(context.Background(), ipc.MessageGetTree, nil)
	if !errors.Is(err, ipc.ErrConnectionClosed) {
		t.Errorf("request after protocol error: got %v, want ErrConnectionClosed", err)
	}
}

func TestTruncatedStream(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, nil)
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	pending := requestAsync(context.Background(), conn, ipc.MessageGetTree, "")
	testutil.RequireReceive(t, serverConn.Requests(), testTimeout, "waiting for request")

	frame := ipc.EncodeFrame(uint32(ipc.MessageGetTree), []byte(`{"id":1,"nodes":[]}`))
	serverConn.WriteRaw(frame[:len(frame)-5])
	serverConn.Close()

	result := testutil.RequireReceive(t, pending, testTimeout, "pending result")
	if !errors.Is(result.err, ipc.ErrTruncatedMessage) {
		t.Errorf("got %v, want ErrTruncatedMessage", result.err)
	}
}

func TestFramesSplitAcrossWrites(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, func(serverConn *ipctest.ServerConn, request ipc.Frame) {
		encoded := ipc.EncodeFrame(request.Type, []byte(`["split","marks"]`))
		for index := range encoded {
			serverConn.WriteRaw(encoded[index : index+1])
		}
	})
	conn := dial(t, server)

	marks, err := conn.Marks(context.Background())
	if err != nil {
		t.Fatalf("Marks: %v", err)
	}
	if len(marks) != 2 || marks[0] != "split" {
		t.Errorf("got %v", marks)
	}
}

func TestEventsReachOnlyTheirListeners(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, ipctest.StaticReplies(nil))
	conn := dial(t, server)
	serverConn := testutil.RequireReceive(t, server.Accepted(), testTimeout, "waiting for accept")

	windows := make(chan ipc.Event, 4)
	workspaces := make(chan ipc.Event, 4)
	conn.AddListener(ipc.EventWindow, func(event ipc.Event) error { windows <- event; return nil })
	conn.AddListener(ipc.EventWorkspace, func(event ipc.Event) error { workspaces <- event; return nil })

	if err := conn.Subscribe(context.Background(), ipc.EventWindow, ipc.EventWorkspace); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	subscribe := serverConn.Received()[0]
	if subscribe.MessageType() != ipc.MessageSubscribe || string(subscribe.Payload) != `["window","workspace"]` {
		t.Errorf("subscribe frame: %s %q", subscribe, subscribe.Payload)
	}

	serverConn.SendEvent(ipc.EventMode, `{"change":"resize"}`)
	serverConn.SendEvent(ipc.EventWindow, `{"change":"focus","container":{"id":7,"name":"xterm"}}`)

	event := testutil.RequireReceive(t, windows, testTimeout, "waiting for window event")
	window, ok := event.(ipc.WindowEvent)
	if !ok || window.Change != "focus" || window.Container.ID != 7 {
		t.Errorf("window listener got %#v", event)
	}
	testutil.RequireNoReceive(t, workspaces, 50*time.Millisecond, "workspace listener got another event")
}

func TestEventsInterleavedWithReplies(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, func(serverConn *ipctest.ServerConn, request ipc.Frame) {
		serverConn.SendEvent(ipc.EventBinding, `{"change":"run","binding":{"command":"nop"}}`)
		serverConn.Reply(request.MessageType(), `{"major":4,"minor":22,"patch":0,"human_readable":"4.22"}`)
		serverConn.SendEvent(ipc.EventBinding, `{"change":"run","binding":{"command":"exec xterm"}}`)
	})
	conn := dial(t, server)

	bindings := make(chan ipc.Event, 4)
	conn.AddListener(ipc.EventBinding, func(event ipc.Event) error { bindings <- event; return nil })

	version, err := conn.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version.Major != 4 || version.Minor != 22 {
		t.Errorf("version: %+v", version)
	}

	for _, want := range []string{"nop", "exec xterm"} {
		event := testutil.RequireReceive(t, bindings, testTimeout, "waiting for %s binding", want)
		if got := event.(ipc.BindingEvent).Binding.Command; got != want {
			t.Errorf("binding command: got %q, want %q", got, want)
		}
	}
}

func TestSpuriousReplyIsCounted(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, func(serverConn *ipctest.ServerConn, request ipc.Frame) {
		serverConn.Reply(ipc.MessageGetMarks, `[]`)
		serverConn.Reply(request.MessageType(), `{"major":4}`)
	})
	conn := dial(t, server)

	if _, err := conn.Version(context.Background()); err != nil {
		t.Fatalf("Version: %v", err)
	}
	if got := conn.SpuriousReplies(); got != 1 {
		t.Errorf("spurious replies: got %d, want 1", got)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	frames []string
}

func (r *recordingObserver) ObserveFrame(direction ipc.Direction, frame ipc.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, fmt.Sprintf("%s %d %s", direction, frame.Type, frame.Payload))
}

func TestFrameObserver(t *testing.T) {
	t.Parallel()
	server := ipctest.NewServer(t, ipctest.StaticReplies(map[ipc.MessageType]string{
		ipc.MessageGetMarks: `["a"]`,
	}))
	observer := &recordingObserver{}
	conn := dial(t, server, ipc.WithFrameObserver(observer))

	if _, err := conn.Marks(context.Background()); err != nil {
		t.Fatalf("Marks: %v", err)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	want := []string{"sent 5 ", `received 5 ["a"]`}
	if len(observer.frames) != 2 || observer.frames[0] != want[0] || observer.frames[1] != want[1] {
		t.Errorf("observed %q, want %q", observer.frames, want)
	}
}
