package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground.evalgo.org/common"
	"playground.evalgo.org/config"
	"playground.evalgo.org/console"
)

// stubExec is an in-memory shell attachment for console tests.
type stubExec struct {
	mu      sync.Mutex
	prompt  []byte
	emitted bool
	stdin   []byte
	resizes [][2]uint
	closed  bool
	readCh  chan struct{}
}

func newStubExec(prompt string) *stubExec {
	return &stubExec{prompt: []byte(prompt), readCh: make(chan struct{})}
}

func (s *stubExec) Read(p []byte) (int, error) {
	s.mu.Lock()
	if !s.emitted && len(s.prompt) > 0 {
		s.emitted = true
		n := copy(p, s.prompt)
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()
	<-s.readCh
	return 0, io.EOF
}

func (s *stubExec) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdin = append(s.stdin, p...)
	return len(p), nil
}

func (s *stubExec) Resize(ctx context.Context, cols, rows uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, [2]uint{cols, rows})
	return nil
}

func (s *stubExec) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.readCh)
	}
	return nil
}

func (s *stubExec) stdinString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.stdin)
}

func (s *stubExec) resizeCalls() [][2]uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]uint(nil), s.resizes...)
}

func dialConsole(t *testing.T, server *httptest.Server, container string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/console/" + container + "?api_key=secret"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestConsole_InteractiveSession(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{APIKey: "secret"})
	exec := newStubExec("$ ")
	env.handlers.OpenExec = func(ctx context.Context, cli common.DockerClient, containerID string) (console.ExecSession, error) {
		assert.Equal(t, "id-mysql", containerID)
		return exec, nil
	}

	server := httptest.NewServer(env.e)
	defer server.Close()

	conn := dialConsole(t, server, "mysql")
	defer conn.Close()

	// The shell prompt arrives as a binary frame.
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, "$ ", string(data))

	// Input reaches stdin; the resize control frame does not.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ls\n")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","cols":100,"rows":30}`)))

	require.Eventually(t, func() bool {
		return exec.stdinString() == "ls\n" && len(exec.resizeCalls()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, [2]uint{100, 30}, exec.resizeCalls()[0])
}

func TestConsole_SecondSessionClosesFirst(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{APIKey: "secret"})
	env.handlers.OpenExec = func(ctx context.Context, cli common.DockerClient, containerID string) (console.ExecSession, error) {
		return newStubExec(""), nil
	}

	server := httptest.NewServer(env.e)
	defer server.Close()

	first := dialConsole(t, server, "mysql")
	defer first.Close()
	second := dialConsole(t, server, "mysql")
	defer second.Close()

	// The first socket gets torn down once the second console opens.
	first.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
}

func TestConsole_RejectsUnknownContainer(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{APIKey: "secret"})

	rec := env.do(http.MethodGet, "/ws/console/ghost?api_key=secret", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsole_RejectsStoppedContainer(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{APIKey: "secret"})
	env.mock.Containers[0].State = "exited"

	rec := env.do(http.MethodGet, "/ws/console/mysql?api_key=secret", "", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConsole_RequiresAPIKey(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{APIKey: "secret"})

	rec := env.do(http.MethodGet, "/ws/console/mysql", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
