package wire

import (
	"bytes"
	"testing"
)

func TestHeaderReferenceVector(t *testing.T) {
	// Known-good frame header; it must parse exactly like this and the
	// encoder must reproduce it byte for byte.
	ref := []byte{0x64, 0x37, 0x83, 0x08, 0xDE, 0xAD, 0xBE, 0xEF}

	if err := Validate(ref); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	h := Decode(ref)
	if h.Version != 4 {
		t.Errorf("Version: got %d, want 4", h.Version)
	}
	if h.Channel != 1 {
		t.Errorf("Channel: got %d, want 1", h.Channel)
	}
	if !h.EOM {
		t.Error("EOM: got false, want true")
	}
	if h.Size != 8 {
		t.Errorf("Size: got %d, want 8", h.Size)
	}
	if h.PayloadLen != 0xDEADBEEF {
		t.Errorf("PayloadLen: got 0x%08X, want 0xDEADBEEF", h.PayloadLen)
	}

	enc := Header{Version: 4, Channel: 1, EOM: true, Size: 8, PayloadLen: 0xDEADBEEF}
	var got [HeaderSize]byte
	enc.Encode(got[:])
	if !bytes.Equal(got[:], ref) {
		t.Errorf("Encode: got % X, want % X", got, ref)
	}
}

func TestHeaderRoundtrip(t *testing.T) {
	tests := []struct {
		name   string
		header Header
	}{
		{"zero payload", Header{Version: 0, Channel: 0, EOM: false, Size: 8, PayloadLen: 0}},
		{"eom", Header{Version: 0, Channel: 0, EOM: true, Size: 8, PayloadLen: 16}},
		{"channel 3", Header{Version: 0, Channel: 3, EOM: false, Size: 8, PayloadLen: 1}},
		{"max version", Header{Version: 7, Channel: 2, EOM: true, Size: 8, PayloadLen: 0xFFFFFFFF}},
		{"extended header", Header{Version: 1, Channel: 1, EOM: false, Size: 24, PayloadLen: 512}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b [HeaderSize]byte
			tt.header.Encode(b[:])

			if err := Validate(b[:]); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			got := Decode(b[:])
			if got != tt.header {
				t.Errorf("Decode: got %+v, want %+v", got, tt.header)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"bad magic1", []byte{0x00, 0x37, 0x00, 0x08, 0, 0, 0, 0}},
		{"bad magic2", []byte{0x64, 0x00, 0x00, 0x08, 0, 0, 0, 0}},
		{"short header length", []byte{0x64, 0x37, 0x00, 0x07, 0, 0, 0, 0}},
		{"zero header length", []byte{0x64, 0x37, 0x00, 0x00, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.raw); err == nil {
				t.Error("Validate: expected error, got nil")
			}
		})
	}
}

func TestEncodeIsHostEndiannessIndependent(t *testing.T) {
	h := Header{Version: 0, Channel: 2, EOM: false, Size: 8, PayloadLen: 0x01020304}
	var b [HeaderSize]byte
	h.Encode(b[:])

	want := []byte{0x64, 0x37, 0x04, 0x08, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(b[:], want) {
		t.Errorf("Encode: got % X, want % X", b, want)
	}
}
