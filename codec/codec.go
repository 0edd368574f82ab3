// Package codec exchanges typed values over IPC channels. Each value is
// msgpack-encoded and sent as exactly one framed message, so structured
// traffic and raw byte traffic can share an endpoint on different channels.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sadewadee/saluran/ipc"
)

// Encoder writes msgpack-encoded values to a channel handle.
type Encoder struct {
	ch *ipc.Channel
}

// NewEncoder returns an encoder writing to ch. The handle must have been
// acquired with write access.
func NewEncoder(ch *ipc.Channel) *Encoder {
	return &Encoder{ch: ch}
}

// Encode marshals v and transmits it as one complete message.
func (e *Encoder) Encode(v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("codec: encoding value: %w", err)
	}
	if err := e.ch.Write(data); err != nil {
		return err
	}
	return e.ch.WriteMessageComplete()
}

// Decoder reads msgpack-encoded values from a channel handle.
type Decoder struct {
	ch *ipc.Channel
}

// NewDecoder returns a decoder reading from ch. The handle must have been
// acquired with read access.
func NewDecoder(ch *ipc.Channel) *Decoder {
	return &Decoder{ch: ch}
}

// Decode receives one complete message and unmarshals it into v.
func (d *Decoder) Decode(v interface{}) error {
	bufs, err := d.ch.ReadMessageBuffers()
	if err != nil {
		return err
	}

	var data []byte
	if len(bufs) == 1 {
		data = bufs[0].Bytes()
	} else {
		total := 0
		for _, b := range bufs {
			total += b.Len()
		}
		data = make([]byte, 0, total)
		for _, b := range bufs {
			data = append(data, b.Bytes()...)
		}
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: decoding value: %w", err)
	}
	return nil
}
