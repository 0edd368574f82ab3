// Package ws adapts a websocket connection to the transport contract,
// bridging browser-facing tooling onto the same framed channels local
// processes use. Frames are carried inside binary websocket messages; the
// adapter is agnostic to how bytes group into websocket messages, so a
// single IPC frame may span several of them and vice versa.
package ws

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sadewadee/saluran/ipc"
)

// Endpoint carries raw endpoint bytes over a websocket connection.
type Endpoint struct {
	conn    *websocket.Conn
	rd      io.Reader // current incoming message, nil between messages
	aborted atomic.Bool
}

// New wraps an established websocket connection.
func New(conn *websocket.Conn) *Endpoint {
	return &Endpoint{conn: conn}
}

// ReadRaw reads up to len(p) bytes from the incoming byte stream, crossing
// websocket message boundaries transparently.
func (e *Endpoint) ReadRaw(p []byte) (int, error) {
	for {
		if e.rd == nil {
			kind, r, err := e.conn.NextReader()
			if err != nil {
				if e.aborted.Load() || websocket.IsCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, fmt.Errorf("ws: reading message: %w", err)
			}
			if kind != websocket.BinaryMessage {
				// Text and control traffic is not part of the byte stream.
				continue
			}
			e.rd = r
		}

		n, err := e.rd.Read(p)
		if err == io.EOF {
			e.rd = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

// WriteRaw sends p as one binary websocket message.
func (e *Endpoint) WriteRaw(p []byte) error {
	w, err := e.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return fmt.Errorf("ws: opening message writer: %w", err)
	}
	if _, err := w.Write(p); err != nil {
		w.Close()
		return fmt.Errorf("ws: writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ws: flushing message: %w", err)
	}
	return nil
}

// Abort closes the websocket connection. The first call returns true.
func (e *Endpoint) Abort(reason ipc.Reason) bool {
	if !e.aborted.CompareAndSwap(false, true) {
		return false
	}
	_ = e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason.String()),
		closeDeadline())
	e.conn.Close()
	return true
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}
