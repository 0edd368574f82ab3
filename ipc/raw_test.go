package ipc_test

import (
	"errors"
	"testing"

	"github.com/sadewadee/saluran/ipc"
	"github.com/sadewadee/saluran/transport/ring"
	"github.com/sadewadee/saluran/wire"
)

func TestReadMessageHeaderRefusesMidPayload(t *testing.T) {
	link := ring.New(1 << 10)
	wrEp := ipc.New(link)
	rdEp := ipc.New(link)

	wr, err := wrEp.AcquireChannel(2, ipc.ModeWriteOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := wr.Write([]byte("abcdefgh")); err != nil {
		t.Fatal(err)
	}

	hdr, err := rdEp.ReadMessageHeader()
	if err != nil {
		t.Fatalf("ReadMessageHeader: %v", err)
	}
	if hdr.Channel != 2 || hdr.PayloadLen != 8 {
		t.Fatalf("header: %+v", hdr)
	}
	if rdEp.PayloadRemaining() != 8 {
		t.Fatalf("PayloadRemaining: got %d, want 8", rdEp.PayloadRemaining())
	}

	// A second header read while payload bytes remain is a usage error.
	if _, err := rdEp.ReadMessageHeader(); !errors.Is(err, ipc.ErrPayloadPending) {
		t.Errorf("mid-payload header read: got %v, want ErrPayloadPending", err)
	}

	buf := make([]byte, 8)
	n, err := rdEp.ReadPayload(buf)
	if err != nil || n != 8 {
		t.Fatalf("ReadPayload: got (%d, %v)", n, err)
	}
	if string(buf) != "abcdefgh" {
		t.Errorf("payload: got %q", buf)
	}

	// The payload is exhausted; further reads return 0 without consuming.
	if n, err := rdEp.ReadPayload(buf); n != 0 || err != nil {
		t.Errorf("exhausted payload read: got (%d, %v), want (0, nil)", n, err)
	}
}

func TestReadPayloadNeverCrossesFrame(t *testing.T) {
	link := ring.New(1 << 10)
	wrEp := ipc.New(link)
	rdEp := ipc.New(link)

	wr, err := wrEp.AcquireChannel(0, ipc.ModeWriteOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := wr.Write([]byte("head")); err != nil {
		t.Fatal(err)
	}
	if err := wr.Write([]byte("tail")); err != nil {
		t.Fatal(err)
	}

	if _, err := rdEp.ReadMessageHeader(); err != nil {
		t.Fatal(err)
	}
	big := make([]byte, 64)
	n, err := rdEp.ReadPayload(big)
	if err != nil || n != 4 {
		t.Fatalf("ReadPayload: got (%d, %v), want (4, nil)", n, err)
	}
	if string(big[:n]) != "head" {
		t.Errorf("payload: got %q, want %q", big[:n], "head")
	}

	hdr, err := rdEp.ReadMessageHeader()
	if err != nil {
		t.Fatalf("second header: %v", err)
	}
	if hdr.PayloadLen != 4 {
		t.Errorf("second header payload: got %d, want 4", hdr.PayloadLen)
	}
}

func TestRawMagicMismatchFailsClosed(t *testing.T) {
	link := ring.New(1 << 10)
	ep := ipc.New(link)

	var lost ipc.Reason
	ep.OnConnectionLost(func(r ipc.Reason) { lost = r })

	bad := []byte{0xBA, 0xAD, 0x00, 0x08, 0, 0, 0, 0}
	if err := link.WriteRaw(bad); err != nil {
		t.Fatal(err)
	}

	if _, err := ep.ReadMessageHeader(); !errors.Is(err, wire.ErrMagicMismatch) {
		t.Fatalf("corrupt header: got %v, want ErrMagicMismatch", err)
	}
	if !ep.IsClosed() {
		t.Error("endpoint not closed after magic mismatch")
	}
	if lost != ipc.ReasonStreamIntegrityViolation {
		t.Errorf("close reason: got %v, want %v", lost, ipc.ReasonStreamIntegrityViolation)
	}
}

func TestHeaderExtensionBytesAreSkipped(t *testing.T) {
	link := ring.New(1 << 10)
	ep := ipc.New(link)

	// Hand-build a frame whose header declares 4 extension bytes.
	hdr := wire.Header{Version: 0, Channel: 1, EOM: true, Size: 12, PayloadLen: 3}
	raw := make([]byte, wire.HeaderSize)
	hdr.Encode(raw)
	frame := append(raw, 0xA1, 0xA2, 0xA3, 0xA4)
	frame = append(frame, 'x', 'y', 'z')
	if err := link.WriteRaw(frame); err != nil {
		t.Fatal(err)
	}

	got, err := ep.ReadMessageHeader()
	if err != nil {
		t.Fatalf("ReadMessageHeader: %v", err)
	}
	if got.Size != 12 || got.PayloadLen != 3 {
		t.Fatalf("header: %+v", got)
	}
	p := make([]byte, 3)
	if n, err := ep.ReadPayload(p); err != nil || n != 3 {
		t.Fatalf("ReadPayload: got (%d, %v)", n, err)
	}
	if string(p) != "xyz" {
		t.Errorf("payload after extension skip: got %q, want %q", p, "xyz")
	}
}
