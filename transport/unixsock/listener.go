package unixsock

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/saluran/ipc"
	"github.com/sadewadee/saluran/monitor"
)

// monitorInterval is how often the listener re-checks its socket file.
const monitorInterval = 2 * time.Second

// Listener binds a socket path and hands every accepted connection to a
// callback as a connected endpoint. The socket file itself is watched: if
// something removes it from under us, the listener rebinds so new clients
// can keep connecting.
type Listener struct {
	path      string
	onConnect func(*ipc.Endpoint)
	opts      []ipc.Option
	logger    *slog.Logger

	mu sync.Mutex
	ln *net.UnixListener

	mon       *monitor.Monitor
	rebinding atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewListener binds path. Call Start to begin accepting; onConnect runs on
// its own goroutine per connection and owns the endpoint it receives.
func NewListener(path string, onConnect func(*ipc.Endpoint), opts ...ipc.Option) (*Listener, error) {
	if path == "" {
		return nil, fmt.Errorf("unixsock: empty socket path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("unixsock: socket directory: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	l := &Listener{
		path:      path,
		onConnect: onConnect,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		group:     group,
	}

	if err := l.bind(); err != nil {
		cancel()
		return nil, err
	}

	l.mon = monitor.New(monitorInterval, l.onPathEvent)
	l.mon.Watch(path)
	return l, nil
}

// Listen binds path and immediately starts accepting connections.
func Listen(path string, onConnect func(*ipc.Endpoint), opts ...ipc.Option) (*Listener, error) {
	l, err := NewListener(path, onConnect, opts...)
	if err != nil {
		return nil, err
	}
	l.Start()
	return l, nil
}

// SetLogger sets the listener logger. Call before Start.
func (l *Listener) SetLogger(logger *slog.Logger) {
	l.logger = logger
	l.mon.SetLogger(logger)
}

// Start launches the accept loop and the socket-file monitor.
func (l *Listener) Start() {
	l.mon.Start()
	l.group.Go(l.acceptLoop)
}

// Path returns the bound socket path.
func (l *Listener) Path() string { return l.path }

func (l *Listener) bind() error {
	// A stale socket file from a crashed predecessor blocks the bind.
	if info, err := os.Stat(l.path); err == nil && info.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(l.path); err != nil {
			return fmt.Errorf("unixsock: removing stale socket: %w", err)
		}
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: l.path, Net: "unix"})
	if err != nil {
		return fmt.Errorf("unixsock: binding %s: %w", l.path, err)
	}
	// The listener removes the file itself on Close.
	ln.SetUnlinkOnClose(false)

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	return nil
}

func (l *Listener) listener() *net.UnixListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln
}

func (l *Listener) acceptLoop() error {
	for {
		conn, err := l.listener().AcceptUnix()
		if err != nil {
			if l.ctx.Err() != nil {
				return nil
			}
			if l.rebinding.CompareAndSwap(true, false) {
				if err := l.bind(); err != nil {
					if l.logger != nil {
						l.logger.Error("rebind failed", "path", l.path, "error", err)
					}
					return err
				}
				if l.logger != nil {
					l.logger.Info("socket rebound", "path", l.path)
				}
				continue
			}
			return fmt.Errorf("unixsock: accept: %w", err)
		}

		tr := New(conn)
		ep := ipc.New(tr, append([]ipc.Option{ipc.WithPeerPid(tr.PeerPid())}, l.opts...)...)
		if l.logger != nil {
			l.logger.Debug("client connected", "path", l.path, "peer_pid", tr.PeerPid())
		}
		go l.onConnect(ep)
	}
}

// onPathEvent reacts to the socket file disappearing: the listener's accept
// socket is closed so the accept loop can rebind a fresh one.
func (l *Listener) onPathEvent(ev monitor.Event) {
	if ev.State != monitor.Deleted {
		return
	}
	if l.logger != nil {
		l.logger.Warn("socket file removed, rebinding", "path", l.path)
	}
	l.rebinding.Store(true)
	l.listener().Close()
}

// Close stops accepting, removes the socket file, and waits for the accept
// loop to exit. Endpoints already handed to onConnect are unaffected.
func (l *Listener) Close() error {
	l.cancel()
	l.mon.Stop()
	l.listener().Close()
	err := l.group.Wait()
	os.Remove(l.path)
	return err
}
