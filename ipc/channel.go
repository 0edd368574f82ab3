package ipc

import (
	"sync"

	"github.com/sadewadee/saluran/buffer"
)

// Mode selects the direction(s) a channel handle is checked out for.
type Mode int

const (
	// ModeReadOnly leases the read side of a channel.
	ModeReadOnly Mode = iota
	// ModeWriteOnly leases the write side of a channel.
	ModeWriteOnly
	// ModeReadWrite leases both sides of a channel.
	ModeReadWrite
)

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeWriteOnly:
		return "write-only"
	case ModeReadWrite:
		return "read-write"
	default:
		return "invalid"
	}
}

// Channel is a scoped lease on a (channel, mode) pair. Methods on one handle
// are not safe for concurrent use with each other; distinct handles are safe
// with respect to one another. Close releases the lease.
//
// The handle holds a reference to its endpoint so that releasing works after
// the caller has dropped every other reference; the endpoint never holds a
// reference back to the handle.
type Channel struct {
	ep   *Endpoint
	num  uint32
	mode Mode
	once sync.Once
}

// Number returns the channel number of the lease.
func (c *Channel) Number() uint32 { return c.num }

// Mode returns the mode the lease was acquired with.
func (c *Channel) Mode() Mode { return c.mode }

// Endpoint returns the endpoint this handle leases a channel on.
func (c *Channel) Endpoint() *Endpoint { return c.ep }

// Close releases the lease, reversing exactly the slot flags the mode set.
// It never closes the underlying endpoint.
func (c *Channel) Close() error {
	c.once.Do(func() {
		c.ep.releaseChannel(c.num, c.mode)
	})
	return nil
}

// Read reads up to len(p) bytes of the current message into p. It returns
// once an end-of-message frame for this channel is seen or p is full. A
// return of (0, nil) with an un-cleared message boundary means the current
// message has ended; call ReadMessageComplete to arm the next one.
func (c *Channel) Read(p []byte) (int, error) {
	n, _, err := c.ep.read(c.num, p, len(p), false)
	return n, err
}

// Write appends p to the current outbound message on this channel. The
// message stays open until WriteMessageComplete.
func (c *Channel) Write(p []byte) error {
	return c.ep.write(c.num, p, false)
}

// ReadMessageBuffers reads one entire message as a list of pooled buffers,
// one per received fragment run.
func (c *Channel) ReadMessageBuffers() ([]*buffer.Buffer, error) {
	return c.ep.readMessageBuffers(c.num)
}

// WriteMessageBuffers writes one entire message from the given buffers.
func (c *Channel) WriteMessageBuffers(bufs []*buffer.Buffer) error {
	return c.ep.writeMessageBuffers(c.num, bufs)
}

// Skip reads and discards up to count bytes of the current message.
func (c *Channel) Skip(count int) (int, error) {
	return c.ep.skip(c.num, count)
}

// ReadMessageComplete marks the incoming message as processed, allowing the
// channel to begin reading the next message.
func (c *Channel) ReadMessageComplete() {
	c.ep.readMessageComplete(c.num)
}

// WriteMessageComplete terminates the current outbound message.
func (c *Channel) WriteMessageComplete() error {
	return c.ep.writeMessageComplete(c.num)
}
