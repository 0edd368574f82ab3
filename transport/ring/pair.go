package ring

import "github.com/sadewadee/saluran/ipc"

// Duplex is a full-duplex in-process transport built from two rings, one per
// direction. It is the ring analogue of a connected socket pair.
type Duplex struct {
	rd *Endpoint
	wr *Endpoint
}

// Pair returns two connected duplex transports: bytes written on one side
// become readable on the other. Each direction gets its own ring of the
// given capacity.
func Pair(capacity int) (*Duplex, *Duplex) {
	ab := New(capacity)
	ba := New(capacity)
	return &Duplex{rd: ba, wr: ab}, &Duplex{rd: ab, wr: ba}
}

// ReadRaw reads from the inbound ring.
func (d *Duplex) ReadRaw(p []byte) (int, error) { return d.rd.ReadRaw(p) }

// WriteRaw writes to the outbound ring.
func (d *Duplex) WriteRaw(p []byte) error { return d.wr.WriteRaw(p) }

// Abort closes both directions. The first call to tear down either ring
// reports true.
func (d *Duplex) Abort(reason ipc.Reason) bool {
	a := d.rd.Abort(reason)
	b := d.wr.Abort(reason)
	return a || b
}
