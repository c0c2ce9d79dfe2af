package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Connection for pump tests.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	types  []int
	reads  chan []byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.reads
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.types = append(f.types, messageType)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) RemoteAddr() string                { return "203.0.113.10:52341" }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.reads)
	}
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) wroteType(messageType int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.types {
		if t == messageType {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

// receive reads one envelope from a client's outbound queue.
func receive(t *testing.T, ch chan []byte) Envelope {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "send channel closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Envelope{}
	}
}

func TestRegisterSendsGreeting(t *testing.T) {
	hub := startHub(t)

	client := NewClientWithConnection(hub, newFakeConn(), testLogger())
	hub.Register(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	env := receive(t, client.send)
	assert.Equal(t, TypeConnection, env.Type)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, client.id, data["client_id"])

	_, err := time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := startHub(t)

	first := NewClientWithConnection(hub, newFakeConn(), testLogger())
	second := NewClientWithConnection(hub, newFakeConn(), testLogger())
	hub.Register(first)
	hub.Register(second)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		time.Second, 10*time.Millisecond)

	hub.Broadcast(TypeProgress, map[string]interface{}{
		"stage":   "link",
		"percent": 10.0,
	})

	for _, client := range []*Client{first, second} {
		receive(t, client.send) // greeting

		env := receive(t, client.send)
		assert.Equal(t, TypeProgress, env.Type)
		data, ok := env.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "link", data["stage"])
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := startHub(t)

	client := NewClientWithConnection(hub, newFakeConn(), testLogger())
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)

	receive(t, client.send) // greeting queued before the disconnect
	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed")
}

func TestSlowClientEvicted(t *testing.T) {
	hub := startHub(t)

	conn := newFakeConn()
	client := NewClientWithConnection(hub, conn, testLogger())
	// Shrink the outbound buffer so the greeting fills it.
	client.send = make(chan []byte, 1)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Broadcast(TypeProgress, map[string]interface{}{"stage": "absorb"})

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestBroadcastNeverBlocksWithoutRunningLoop(t *testing.T) {
	hub := NewHub(testLogger())

	for i := 0; i < broadcastBuffer+10; i++ {
		hub.Broadcast(TypeProgress, map[string]interface{}{"i": i})
	}

	metrics := hub.Metrics()
	dropped, ok := metrics["messages_dropped"].(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, dropped, int64(10))
}

func TestWritePumpDeliversFrames(t *testing.T) {
	hub := startHub(t)

	conn := newFakeConn()
	client := NewClientWithConnection(hub, conn, testLogger())
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	go client.WritePump()

	hub.Broadcast(TypeComplete, map[string]interface{}{"run_id": "abc"})

	// Greeting plus broadcast.
	require.Eventually(t, func() bool { return conn.frameCount() >= 2 },
		time.Second, 10*time.Millisecond)

	hub.Stop()
	require.Eventually(t, func() bool { return conn.isClosed() },
		time.Second, 10*time.Millisecond)
	assert.True(t, conn.wroteType(websocket.CloseMessage))
}

func TestReadPumpUnregistersOnClose(t *testing.T) {
	hub := startHub(t)

	conn := newFakeConn()
	client := NewClientWithConnection(hub, conn, testLogger())
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	go client.ReadPump()

	// A heartbeat is consumed without dropping the connection.
	conn.reads <- []byte(`{"type":"heartbeat"}`)
	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestMetricsSnapshot(t *testing.T) {
	hub := startHub(t)

	client := NewClientWithConnection(hub, newFakeConn(), testLogger())
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Broadcast(TypeProgress, map[string]interface{}{"stage": "classify"})
	receive(t, client.send) // greeting
	receive(t, client.send) // progress

	metrics := hub.Metrics()
	assert.Equal(t, 1, metrics["active_clients"])
	assert.Equal(t, int64(1), metrics["total_connections"])
	sent, ok := metrics["messages_sent"].(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, sent, int64(1))
}
