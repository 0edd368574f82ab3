// Package unixsock carries IPC endpoints over UNIX domain stream sockets,
// the default transport between processes on one host. The listener side
// hands every accepted connection to a callback as a ready endpoint; the
// peer's process id is recorded from socket credentials where the platform
// exposes them.
package unixsock

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/sadewadee/saluran/ipc"
)

// sendBufferSize mirrors the socket send buffer applied to every endpoint.
const sendBufferSize = 262144

// Endpoint adapts a connected UNIX domain socket to the transport contract.
type Endpoint struct {
	conn    *net.UnixConn
	aborted atomic.Bool
	pid     int
}

// New wraps an already-connected socket, applying default socket options and
// capturing the peer's process id when available.
func New(conn *net.UnixConn) *Endpoint {
	e := &Endpoint{conn: conn}
	setDefaultOptions(conn)
	e.pid = peerPid(conn)
	return e
}

// PeerPid returns the process id of the connected peer, or 0 when the
// platform cannot report it.
func (e *Endpoint) PeerPid() int { return e.pid }

// ReadRaw reads up to len(p) bytes from the socket.
func (e *Endpoint) ReadRaw(p []byte) (int, error) {
	n, err := e.conn.Read(p)
	if n > 0 {
		return n, nil
	}
	return n, err
}

// WriteRaw writes all of p to the socket.
func (e *Endpoint) WriteRaw(p []byte) error {
	if _, err := e.conn.Write(p); err != nil {
		return fmt.Errorf("unixsock: writing: %w", err)
	}
	return nil
}

// Abort shuts the socket down and closes it, waking any blocked reads and
// writes. The first call returns true.
func (e *Endpoint) Abort(reason ipc.Reason) bool {
	if !e.aborted.CompareAndSwap(false, true) {
		return false
	}
	e.conn.Close()
	return true
}

// Dial connects to the listener bound at path and returns a ready endpoint.
func Dial(path string, opts ...ipc.Option) (*ipc.Endpoint, error) {
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("unixsock: dialing %s: %w", path, err)
	}
	tr := New(conn)
	opts = append(opts, ipc.WithPeerPid(tr.PeerPid()))
	return ipc.New(tr, opts...), nil
}

func setDefaultOptions(conn *net.UnixConn) {
	// Best effort; an endpoint on a socket with default options still works.
	_ = conn.SetWriteBuffer(sendBufferSize)
	setLinger(conn)
}
