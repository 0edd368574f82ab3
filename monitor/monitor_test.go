package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) waitFor(t *testing.T, state State) Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, ev := range r.events {
			if ev.State == state {
				r.mu.Unlock()
				return ev
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %v event observed", state)
	return Event{}
}

func TestMonitorReportsLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched")

	rec := &recorder{}
	m := New(10*time.Millisecond, rec.record)
	m.Watch(path)
	m.Start()
	defer m.Stop()

	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, Created)

	// Mtime granularity can be coarse; push it forward explicitly.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, Modified)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, Deleted)
}

func TestMonitorStopTerminates(t *testing.T) {
	m := New(5*time.Millisecond, func(Event) {})
	m.Watch(filepath.Join(t.TempDir(), "nothing"))
	m.Start()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestUnwatchSilencesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "silenced")

	rec := &recorder{}
	m := New(5*time.Millisecond, rec.record)
	m.Watch(path)
	m.Unwatch(path)
	m.Start()
	defer m.Stop()

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 0 {
		t.Errorf("events after Unwatch: %v", rec.events)
	}
}
