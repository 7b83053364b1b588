package console

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedMessage struct {
	msgType int
	data    []byte
}

// scriptedConn replays incoming messages and records outgoing ones.
type scriptedConn struct {
	mu       sync.Mutex
	incoming []scriptedMessage
	written  []scriptedMessage
	closed   bool
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.incoming) == 0 {
		return 0, nil, io.EOF
	}
	msg := c.incoming[0]
	c.incoming = c.incoming[1:]
	return msg.msgType, msg.data, nil
}

func (c *scriptedConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	c.written = append(c.written, scriptedMessage{messageType, append([]byte(nil), data...)})
	return nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedConn) outputs() []scriptedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]scriptedMessage(nil), c.written...)
}

func (c *scriptedConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeExec records stdin and resizes and emits fixed output once.
type fakeExec struct {
	mu      sync.Mutex
	output  []byte
	emitted bool
	stdin   []byte
	resizes [][2]uint
	closed  bool
	readCh  chan struct{}
}

func newFakeExec(output string) *fakeExec {
	return &fakeExec{output: []byte(output), readCh: make(chan struct{})}
}

func (f *fakeExec) Read(p []byte) (int, error) {
	f.mu.Lock()
	if !f.emitted && len(f.output) > 0 {
		f.emitted = true
		n := copy(p, f.output)
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	// Block until closed, like a live shell with no output.
	<-f.readCh
	return 0, io.EOF
}

func (f *fakeExec) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stdin = append(f.stdin, p...)
	return len(p), nil
}

func (f *fakeExec) Resize(ctx context.Context, cols, rows uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]uint{cols, rows})
	return nil
}

func (f *fakeExec) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.readCh)
	}
	return nil
}

func (f *fakeExec) stdinBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.stdin...)
}

func (f *fakeExec) resizeCalls() [][2]uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]uint(nil), f.resizes...)
}

func (f *fakeExec) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestSession_ForwardsInputAndInterceptsResize(t *testing.T) {
	conn := &scriptedConn{incoming: []scriptedMessage{
		{websocket.TextMessage, []byte("ls -la\n")},
		{websocket.TextMessage, []byte(`{"type":"resize","cols":120,"rows":40}`)},
		{websocket.BinaryMessage, []byte{0x03}},
	}}
	exec := newFakeExec("")

	s := NewSession("mysql", conn, exec)
	s.Run(context.Background())

	// Regular input reached the shell, the resize frame did not.
	assert.Equal(t, []byte("ls -la\n\x03"), exec.stdinBytes())
	assert.Equal(t, [][2]uint{{120, 40}}, exec.resizeCalls())

	// Both sides were torn down.
	assert.True(t, exec.isClosed())
	assert.True(t, conn.isClosed())
}

func TestSession_PumpsShellOutput(t *testing.T) {
	conn := &scriptedConn{incoming: []scriptedMessage{
		{websocket.TextMessage, []byte("echo hi\n")},
	}}
	exec := newFakeExec("hi\r\n$ ")

	s := NewSession("mysql", conn, exec)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		for _, msg := range conn.outputs() {
			if msg.msgType == websocket.BinaryMessage && string(msg.data) == "hi\r\n$ " {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	s.Close()
	<-done
}

func TestSession_FlushesPendingOutputOnClientEOF(t *testing.T) {
	// The client disconnects immediately while the shell still has output
	// queued; the queued bytes must reach the socket before it closes.
	conn := &scriptedConn{}
	exec := newFakeExec("bye\r\n")

	s := NewSession("mysql", conn, exec)
	s.Run(context.Background())

	outputs := conn.outputs()
	require.NotEmpty(t, outputs)
	assert.Equal(t, websocket.BinaryMessage, outputs[0].msgType)
	assert.Equal(t, "bye\r\n", string(outputs[0].data))

	assert.True(t, exec.isClosed())
	assert.True(t, conn.isClosed())
}

func TestManager_ExclusivePerKey(t *testing.T) {
	m := NewManager()

	first := NewSession("mysql", &scriptedConn{}, newFakeExec(""))
	second := NewSession("mysql", &scriptedConn{}, newFakeExec(""))

	m.Open("mysql", first)
	m.Open("mysql", second)

	// Opening a second console for the same key closed the first.
	select {
	case <-first.Done():
	default:
		t.Fatal("first session was not closed")
	}

	select {
	case <-second.Done():
		t.Fatal("second session should still be live")
	default:
	}

	m.Release("mysql", second)
	select {
	case <-second.Done():
	default:
		t.Fatal("released session was not closed")
	}
}

func TestManager_IndependentKeys(t *testing.T) {
	m := NewManager()

	mysql := NewSession("mysql", &scriptedConn{}, newFakeExec(""))
	apache := NewSession("apache", &scriptedConn{}, newFakeExec(""))

	m.Open("mysql", mysql)
	m.Open("apache", apache)

	select {
	case <-mysql.Done():
		t.Fatal("mysql session should still be live")
	default:
	}

	m.CloseAll()
	<-mysql.Done()
	<-apache.Done()
}
