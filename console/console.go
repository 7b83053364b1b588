// Package console bridges WebSocket connections to interactive shells
// inside containers. A session pipes terminal bytes in both directions and
// intercepts resize control frames; a manager keeps sessions exclusive per
// console key.
package console

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"playground.evalgo.org/common"
)

// Conn is the subset of *websocket.Conn a session needs. Tests inject a
// scripted implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ExecSession is an attached interactive process inside a container.
type ExecSession interface {
	// Read streams the process output.
	Read(p []byte) (int, error)
	// Write feeds the process stdin.
	Write(p []byte) (int, error)
	// Resize adjusts the TTY dimensions.
	Resize(ctx context.Context, cols, rows uint) error
	// Close terminates the attachment.
	Close() error
}

// resizeMessage is the control frame clients send on terminal resize. It
// is consumed here and never forwarded to the shell.
type resizeMessage struct {
	Type string `json:"type"`
	Cols uint   `json:"cols"`
	Rows uint   `json:"rows"`
}

// Session is one live console: a WebSocket connection attached to a shell.
type Session struct {
	key  string
	conn Conn
	exec ExecSession

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session for the given console key.
func NewSession(key string, conn Conn, exec ExecSession) *Session {
	return &Session{
		key:  key,
		conn: conn,
		exec: exec,
		done: make(chan struct{}),
	}
}

// Run pumps data between the WebSocket and the shell until either side
// closes. It blocks; the caller owns the connection's goroutine.
func (s *Session) Run(ctx context.Context) {
	output := make(chan struct{})
	go func() {
		s.pumpOutput()
		close(output)
		s.Close()
	}()

	s.readLoop(ctx)

	// The client side is done. Stop the shell and let the output pump
	// drain what the shell already produced before the socket closes.
	s.exec.Close()
	<-output
	s.Close()
}

// pumpOutput copies shell output to the WebSocket as binary frames.
func (s *Session) pumpOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := s.exec.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readLoop forwards client input to the shell. Resize control frames are
// applied to the TTY and never echoed into stdin.
func (s *Session) readLoop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		if msgType == websocket.TextMessage {
			var resize resizeMessage
			if json.Unmarshal(data, &resize) == nil && resize.Type == "resize" {
				if err := s.exec.Resize(ctx, resize.Cols, resize.Rows); err != nil {
					common.Logger.Warnf("console %s: resize failed: %v", s.key, err)
				}
				continue
			}
		}

		if _, err := s.exec.Write(data); err != nil {
			return
		}
	}
}

// Close tears the session down: shell attachment first, then the socket.
// Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.exec.Close()
		s.conn.Close()
	})
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
