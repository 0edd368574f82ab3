// Package monitor implements a polling file monitor. Components that anchor
// themselves to an on-disk path, such as a listener's socket file, use it to
// learn when the path is created, modified, or removed.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// State describes what happened to a watched path.
type State int

const (
	// Created means the path appeared on disk.
	Created State = iota
	// Modified means the path's modification time advanced.
	Modified
	// Deleted means the path disappeared from disk.
	Deleted
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a single observed change.
type Event struct {
	Path  string
	State State
}

// Monitor polls a set of paths and reports changes through a callback.
// Callbacks run on the monitor's own goroutine.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger
	onEvent  func(Event)

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	mu     sync.Mutex
	states map[string]pathState
}

type pathState struct {
	exists bool
	mtime  time.Time
}

// New creates a monitor that polls at the given interval.
func New(interval time.Duration, onEvent func(Event)) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		interval: interval,
		onEvent:  onEvent,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		states:   make(map[string]pathState),
	}
}

// SetLogger sets the monitor logger.
func (m *Monitor) SetLogger(logger *slog.Logger) {
	m.logger = logger
}

// Watch adds path to the watch set, recording its current state as the
// baseline.
func (m *Monitor) Watch(path string) {
	m.mu.Lock()
	m.states[path] = statPath(path)
	m.mu.Unlock()
}

// Unwatch removes path from the watch set.
func (m *Monitor) Unwatch(path string) {
	m.mu.Lock()
	delete(m.states, path)
	m.mu.Unlock()
}

// Start begins polling for changes.
func (m *Monitor) Start() {
	m.started = true
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.poll()
			case <-m.ctx.Done():
				return
			}
		}
	}()

	if m.logger != nil {
		m.logger.Debug("file monitor started", "interval", m.interval)
	}
}

// Stop terminates the poll loop and waits for it to exit. Stopping a monitor
// that was never started is a no-op.
func (m *Monitor) Stop() {
	m.cancel()
	if m.started {
		<-m.done
	}
}

func (m *Monitor) poll() {
	m.mu.Lock()
	paths := make([]string, 0, len(m.states))
	for p := range m.states {
		paths = append(paths, p)
	}
	m.mu.Unlock()

	for _, path := range paths {
		current := statPath(path)

		m.mu.Lock()
		prev, tracked := m.states[path]
		if tracked {
			m.states[path] = current
		}
		m.mu.Unlock()
		if !tracked {
			continue
		}

		var ev *Event
		switch {
		case prev.exists && !current.exists:
			ev = &Event{Path: path, State: Deleted}
		case !prev.exists && current.exists:
			ev = &Event{Path: path, State: Created}
		case current.exists && current.mtime.After(prev.mtime):
			ev = &Event{Path: path, State: Modified}
		}
		if ev != nil {
			if m.logger != nil {
				m.logger.Debug("path changed", "path", ev.Path, "state", ev.State.String())
			}
			m.onEvent(*ev)
		}
	}
}

func statPath(path string) pathState {
	info, err := os.Stat(path)
	if err != nil {
		return pathState{}
	}
	return pathState{exists: true, mtime: info.ModTime()}
}
