package client_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadewadee/saluran/client"
	"github.com/sadewadee/saluran/ipc"
	"github.com/sadewadee/saluran/transport/unixsock"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "saluran")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

func TestConnectWaitsForListener(t *testing.T) {
	path := socketPath(t)

	// Bring the server up only after the client has started dialing.
	lnCh := make(chan *unixsock.Listener, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		ln, err := unixsock.Listen(path, func(ep *ipc.Endpoint) {
			ch, err := ep.AcquireChannel(0, ipc.ModeWriteOnly)
			if err != nil {
				return
			}
			defer ch.Close()
			ch.Write([]byte("welcome"))
			ch.WriteMessageComplete()
		})
		if err != nil {
			t.Error(err)
			lnCh <- nil
			return
		}
		lnCh <- ln
	}()

	ep, err := client.New(path).ConnectTimeout(15 * time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ep.Abort(ipc.ReasonUserClosed)
	defer func() {
		if ln := <-lnCh; ln != nil {
			ln.Close()
		}
	}()

	ch, err := ep.AcquireChannel(0, ipc.ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	bufs, err := ch.ReadMessageBuffers()
	if err != nil {
		t.Fatalf("ReadMessageBuffers: %v", err)
	}
	var got []byte
	for _, b := range bufs {
		got = append(got, b.Bytes()...)
	}
	if !bytes.Equal(got, []byte("welcome")) {
		t.Errorf("greeting: got %q, want %q", got, "welcome")
	}
}

func TestConnectDeadlineExpires(t *testing.T) {
	path := socketPath(t)

	start := time.Now()
	_, err := client.New(path).ConnectTimeout(100 * time.Millisecond)
	if err == nil {
		t.Fatal("Connect succeeded with no listener bound")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Connect hung for %v after its deadline", elapsed)
	}
}
