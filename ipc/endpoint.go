// Package ipc multiplexes independent logical channels over a single
// byte-oriented transport. Application messages are chopped into framed
// fragments tagged with a channel number and an end-of-message flag; the
// receive side demultiplexes fragments to whichever channel handles are
// currently registered and drains traffic nobody has claimed.
package ipc

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sadewadee/saluran/buffer"
	"github.com/sadewadee/saluran/wire"
)

// DefaultBlockSize caps the size of a single outbound fragment, header
// included. Long writes are fragmented so a stuck transport still makes
// forward progress header by header and readers on other channels can
// interleave.
const DefaultBlockSize = 0x7FFFFFFF

// drainSize is the scratch buffer used to discard payload bytes destined for
// channels with no registered reader.
const drainSize = 16384

// handlerSlot arbitrates which caller is responsible for draining a channel.
// pending means a reader is registered but waiting for the in-flight message
// on this channel to end; reading/writing mark live handles; eom means the
// next byte expected on this channel belongs to a fresh message.
type handlerSlot struct {
	pending bool
	reading bool
	writing bool
	eom     atomic.Bool
}

// recvState tracks the receive cursor: whether the engine is consuming header
// or payload bytes of the current inbound frame, and how far along it is.
type recvState struct {
	header   wire.Header
	hdrBuf   [wire.HeaderSize]byte
	length   int
	position int
	inHeader bool
}

func (m *recvState) beginHeader() {
	*m = recvState{length: wire.HeaderSize, inHeader: true}
}

func (m *recvState) beginPayload() {
	m.length = int(m.header.PayloadLen)
	m.position = 0
	m.inHeader = false
}

// Endpoint frames messages over a Transport. Reads and writes may progress in
// parallel; within each direction operations serialize under a dedicated
// mutex. Endpoints are created connected and stay usable until closed.
type Endpoint struct {
	tr        Transport
	blockSize int
	pool      *buffer.Pool
	logger    *slog.Logger
	peerPid   int

	sendMu      sync.Mutex
	sendHdr     wire.Header
	sendScratch [wire.HeaderSize]byte

	recvMu   sync.Mutex
	recvCond *sync.Cond
	recv     recvState
	drain    []byte

	pendingMu  sync.Mutex
	handlers   [wire.NumChannels]handlerSlot
	hasPending atomic.Bool
	closed     atomic.Bool

	lostMu  sync.Mutex
	lostFns []func(Reason)

	// Raw-mode accessor state; see raw.go.
	lastHeader wire.Header
	remain     int
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithBlockSize caps outbound fragments at n bytes, header included, so each
// fragment carries at most n-8 payload bytes.
func WithBlockSize(n int) Option {
	return func(ep *Endpoint) { ep.blockSize = n }
}

// WithPool supplies the buffer pool used for pooled message reads.
func WithPool(p *buffer.Pool) Option {
	return func(ep *Endpoint) { ep.pool = p }
}

// WithLogger attaches a logger for connection lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(ep *Endpoint) { ep.logger = l }
}

// WithPeerPid records the process id of the remote peer, when the transport
// can determine it.
func WithPeerPid(pid int) Option {
	return func(ep *Endpoint) { ep.peerPid = pid }
}

// New wraps tr in a connected endpoint.
func New(tr Transport, opts ...Option) *Endpoint {
	ep := &Endpoint{
		tr:        tr,
		blockSize: DefaultBlockSize,
		drain:     make([]byte, drainSize),
		sendHdr:   wire.NewHeader(),
	}
	ep.recvCond = sync.NewCond(&ep.recvMu)
	ep.recv.beginHeader()
	for i := range ep.handlers {
		ep.handlers[i].eom.Store(true)
	}
	for _, opt := range opts {
		opt(ep)
	}
	if ep.pool == nil {
		ep.pool = buffer.NewPool()
	}
	return ep
}

// IsClosed reports whether the endpoint has been closed.
func (ep *Endpoint) IsClosed() bool { return ep.closed.Load() }

// PeerPid returns the process id of the remote peer, or 0 when the transport
// could not determine it.
func (ep *Endpoint) PeerPid() int { return ep.peerPid }

// OnConnectionLost registers fn to be invoked when the endpoint closes.
// The callback fires at most once, with the first close reason observed.
// Registering after the endpoint has closed is a no-op.
func (ep *Endpoint) OnConnectionLost(fn func(Reason)) {
	ep.lostMu.Lock()
	ep.lostFns = append(ep.lostFns, fn)
	ep.lostMu.Unlock()
}

// Abort abandons any blocked operations and closes the transport. The first
// call returns true; subsequent calls return false.
func (ep *Endpoint) Abort(reason Reason) bool {
	if !ep.tr.Abort(reason) {
		return false
	}
	ep.close(reason)
	return true
}

// close marks the endpoint closed, fires OnConnectionLost exactly once, and
// wakes every blocked reader. It does not touch the transport.
func (ep *Endpoint) close(reason Reason) {
	if ep.closed.CompareAndSwap(false, true) {
		ep.lostMu.Lock()
		fns := ep.lostFns
		ep.lostFns = nil
		ep.lostMu.Unlock()
		for _, fn := range fns {
			fn(reason)
		}
		if ep.logger != nil {
			ep.logger.Debug("endpoint closed", "reason", reason.String())
		}
	}
	// Broadcasting under the receive lock guarantees that a reader between
	// its predicate check and Wait observes the wakeup.
	ep.recvMu.Lock()
	ep.recvCond.Broadcast()
	ep.recvMu.Unlock()
}

// AcquireChannel checks out a (channel, mode) lease. A nil error guarantees
// exclusive access for the requested direction(s) until the handle is
// released; ErrChannelBusy signals that the pair is already checked out.
func (ep *Endpoint) AcquireChannel(channel uint32, mode Mode) (*Channel, error) {
	if channel >= wire.NumChannels {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	ep.pendingMu.Lock()
	defer ep.pendingMu.Unlock()

	h := &ep.handlers[channel]
	switch mode {
	case ModeReadOnly:
		if h.pending || h.reading {
			return nil, ErrChannelBusy
		}
		h.pending = true
		ep.hasPending.Store(true)
	case ModeWriteOnly:
		if h.writing {
			return nil, ErrChannelBusy
		}
		h.writing = true
	case ModeReadWrite:
		if h.pending || h.reading || h.writing {
			return nil, ErrChannelBusy
		}
		h.pending = true
		h.writing = true
		ep.hasPending.Store(true)
	default:
		return nil, fmt.Errorf("ipc: invalid channel mode %d", mode)
	}

	return &Channel{ep: ep, num: channel, mode: mode}, nil
}

// releaseChannel reverses exactly the flags the mode set, including a pending
// flag that never got promoted to reading.
func (ep *Endpoint) releaseChannel(channel uint32, mode Mode) {
	if channel >= wire.NumChannels {
		return
	}
	ep.pendingMu.Lock()
	h := &ep.handlers[channel]
	switch mode {
	case ModeWriteOnly:
		h.writing = false
	case ModeReadOnly:
		h.reading = false
		h.pending = false
	case ModeReadWrite:
		h.writing = false
		h.reading = false
		h.pending = false
	}
	ep.pendingMu.Unlock()
}

// promotePending moves pending readers to reading on every channel that sits
// at a message boundary, and recomputes the pending hint.
func (ep *Endpoint) promotePending() {
	hasPending := false
	ep.pendingMu.Lock()
	for i := range ep.handlers {
		h := &ep.handlers[i]
		if !h.pending {
			continue
		}
		// A channel may only change readers between messages.
		if h.eom.Load() {
			h.reading = true
			h.pending = false
			h.eom.Store(false)
		} else {
			hasPending = true
		}
	}
	ep.hasPending.Store(hasPending)
	ep.pendingMu.Unlock()
}

// isReading reports whether a live reader is attached to channel.
func (ep *Endpoint) isReading(channel uint8) bool {
	ep.pendingMu.Lock()
	r := ep.handlers[channel].reading
	ep.pendingMu.Unlock()
	return r
}

// readRawFull reads exactly len(p) bytes from the transport.
func (ep *Endpoint) readRawFull(p []byte) error {
	for len(p) > 0 {
		n, err := ep.tr.ReadRaw(p)
		if n <= 0 || err != nil {
			if err == nil {
				err = ErrClosed
			}
			return err
		}
		p = p[n:]
	}
	return nil
}

// read drives the inbound state machine on behalf of channel. It copies
// payload bytes for channel into dst, or — when dst is nil and usePool is
// set — into a pooled buffer sized to the available run of the current
// fragment. Frames for other channels are either handed to their registered
// readers via the receive condition or drained.
//
// read returns once an EOM frame for channel has been seen or size bytes were
// consumed, whichever comes first.
func (ep *Endpoint) read(channel uint32, dst []byte, size int, usePool bool) (int, *buffer.Buffer, error) {
	if ep.closed.Load() {
		return 0, nil, ErrClosed
	}
	if ep.hasPending.Load() {
		ep.promotePending()
	}

	var shared *buffer.Buffer
	nRemaining := size
	offset := 0
	slot := &ep.handlers[channel]

	for !slot.eom.Load() && nRemaining > 0 {
		ep.recvMu.Lock()
		if slot.eom.Load() {
			// Another reader took this channel's terminator while we waited.
			ep.recvMu.Unlock()
			break
		}

		if ep.recv.inHeader {
			for ep.recv.position < wire.HeaderSize {
				n, err := ep.tr.ReadRaw(ep.recv.hdrBuf[ep.recv.position:])
				if n <= 0 || err != nil {
					ep.recvMu.Unlock()
					ep.close(ReasonReadFailure)
					return 0, shared, ErrClosed
				}
				ep.recv.position += n
			}
			if err := wire.Validate(ep.recv.hdrBuf[:]); err != nil {
				ep.recvMu.Unlock()
				ep.close(ReasonStreamIntegrityViolation)
				return 0, shared, fmt.Errorf("ipc: %w", err)
			}
			ep.recv.header = wire.Decode(ep.recv.hdrBuf[:])

			// Reserved extension bytes between the fixed header and the
			// declared header length are skipped.
			if skip := int(ep.recv.header.Size) - wire.HeaderSize; skip > 0 {
				if err := ep.skipRaw(skip); err != nil {
					ep.recvMu.Unlock()
					ep.close(ReasonReadFailure)
					return 0, shared, ErrClosed
				}
			}

			if ep.hasPending.Load() {
				ep.promotePending()
			}
			mc := ep.recv.header.Channel
			mslot := &ep.handlers[mc]
			hasHandler := ep.isReading(mc)

			if ep.recv.header.EOM {
				mslot.eom.Store(true)
			} else if !hasHandler {
				// A fresh in-flight message is starting on an unclaimed
				// channel; a late reader must not attach mid-message.
				mslot.eom.Store(false)
			}

			ep.recv.beginPayload()

			if hasHandler && uint32(mc) != channel {
				// Not our frame and somebody owns it; let them drain it. A
				// frame without payload is finished here: its owner learns
				// of it through the EOM flag alone.
				if ep.recv.length == 0 {
					ep.recv.beginHeader()
				}
				ep.recvCond.Broadcast()
				ep.recvMu.Unlock()
				continue
			}
		} else if ep.isReading(ep.recv.header.Channel) {
			// Mid-payload frame owned by another reader. Wait until the
			// engine's current frame becomes ours, the owner finishes it
			// and a fresh header is up for grabs, or the endpoint closes.
			for {
				if ep.closed.Load() || ep.recv.inHeader || slot.eom.Load() {
					break
				}
				mc := ep.recv.header.Channel
				if uint32(mc) == channel && ep.isReading(mc) {
					break
				}
				ep.recvCond.Wait()
			}
			if ep.closed.Load() {
				ep.recvCond.Broadcast()
				ep.recvMu.Unlock()
				return 0, shared, ErrClosed
			}
			if ep.recv.inHeader || slot.eom.Load() {
				// Another reader finished the frame, or took this channel's
				// terminator, while we slept; go back to the loop check.
				ep.recvMu.Unlock()
				continue
			}
		}

		mc := ep.recv.header.Channel
		if uint32(mc) == channel && ep.isReading(mc) {
			available := min(nRemaining, ep.recv.length-ep.recv.position)
			if dst == nil && available > 0 && usePool {
				shared = ep.pool.Get(available)
				dst = shared.Bytes()
				size = available
				nRemaining = available
				offset = 0
			}
			for available > 0 {
				n, err := ep.tr.ReadRaw(dst[offset : offset+available])
				if n <= 0 || err != nil {
					ep.recvMu.Unlock()
					ep.close(ReasonReadFailure)
					return 0, shared, ErrClosed
				}
				offset += n
				ep.recv.position += n
				available -= n
				nRemaining -= n
			}
		} else {
			// No reader registered: discard the payload.
			if err := ep.skipRaw(ep.recv.length - ep.recv.position); err != nil {
				ep.recvMu.Unlock()
				ep.close(ReasonReadFailure)
				return 0, shared, ErrClosed
			}
			ep.recv.position = ep.recv.length
		}

		if ep.recv.position == ep.recv.length {
			ep.recv.beginHeader()
			// Wake readers parked on the drained frame so one of them can
			// take over the next header.
			ep.recvCond.Broadcast()
		}
		if ep.hasPending.Load() {
			ep.promotePending()
		}
		ep.recvMu.Unlock()
	}
	return size - nRemaining, shared, nil
}

// skipRaw discards n bytes from the transport through the drain buffer.
// Caller must hold recvMu.
func (ep *Endpoint) skipRaw(n int) error {
	for n > 0 {
		chunk := min(n, len(ep.drain))
		got, err := ep.tr.ReadRaw(ep.drain[:chunk])
		if got <= 0 || err != nil {
			if err == nil {
				err = ErrClosed
			}
			return err
		}
		n -= got
	}
	return nil
}

// write fragments p onto the transport for channel. When isComplete is set
// the final fragment carries the EOM flag; a zero-length complete write
// degenerates to the terminator frame alone.
func (ep *Endpoint) write(channel uint32, p []byte, isComplete bool) error {
	if len(p) == 0 {
		if isComplete {
			return ep.writeMessageComplete(channel)
		}
		return nil
	}

	nRemaining := len(p)
	offset := 0
	for nRemaining > 0 {
		available := min(nRemaining, ep.blockSize-wire.HeaderSize)

		ep.sendMu.Lock()
		if ep.closed.Load() {
			ep.sendMu.Unlock()
			return ErrClosed
		}
		ep.sendHdr.EOM = isComplete && available == nRemaining
		ep.sendHdr.Channel = uint8(channel)
		ep.sendHdr.PayloadLen = uint32(available)
		ep.sendHdr.Encode(ep.sendScratch[:])

		if err := ep.tr.WriteRaw(ep.sendScratch[:]); err != nil {
			ep.sendMu.Unlock()
			ep.close(ReasonWriteFailure)
			return fmt.Errorf("ipc: writing frame header: %w", err)
		}
		if err := ep.tr.WriteRaw(p[offset : offset+available]); err != nil {
			ep.sendMu.Unlock()
			ep.close(ReasonWriteFailure)
			return fmt.Errorf("ipc: writing frame payload: %w", err)
		}
		ep.sendMu.Unlock()

		offset += available
		nRemaining -= available
	}
	return nil
}

// writeMessageComplete emits the zero-payload terminator frame for channel.
func (ep *Endpoint) writeMessageComplete(channel uint32) error {
	ep.sendMu.Lock()
	defer ep.sendMu.Unlock()

	if ep.closed.Load() {
		return ErrClosed
	}
	ep.sendHdr.EOM = true
	ep.sendHdr.Channel = uint8(channel)
	ep.sendHdr.PayloadLen = 0
	ep.sendHdr.Encode(ep.sendScratch[:])

	if err := ep.tr.WriteRaw(ep.sendScratch[:]); err != nil {
		ep.close(ReasonWriteFailure)
		return fmt.Errorf("ipc: writing terminator frame: %w", err)
	}
	return nil
}

// readMessageBuffers collects pooled buffers until the EOM frame for channel
// arrives, then clears the EOM state so the next message can be read. If the
// endpoint closes mid-message the partial message is dropped.
func (ep *Endpoint) readMessageBuffers(channel uint32) ([]*buffer.Buffer, error) {
	var bufs []*buffer.Buffer
	slot := &ep.handlers[channel]

	for {
		n, shared, err := ep.read(channel, nil, ep.blockSize, true)
		if err != nil {
			break
		}
		if shared != nil {
			if shared.Len() != n {
				ep.close(ReasonReadFailure)
				return nil, ErrShortBuffer
			}
			bufs = append(bufs, shared)
		}
		if slot.eom.Load() {
			break
		}
	}
	if ep.closed.Load() && !slot.eom.Load() {
		return nil, ErrClosed
	}
	slot.eom.Store(false)
	return bufs, nil
}

// writeMessageBuffers writes each non-empty buffer as part of one message and
// emits the terminator frame.
func (ep *Endpoint) writeMessageBuffers(channel uint32, bufs []*buffer.Buffer) error {
	if len(bufs) == 0 {
		return fmt.Errorf("ipc: empty message buffer list")
	}
	for i, b := range bufs {
		if b == nil || b.Len() == 0 {
			continue
		}
		if err := ep.write(channel, b.Bytes(), i == len(bufs)-1); err != nil {
			return err
		}
	}
	return ep.writeMessageComplete(channel)
}

// skip consumes and discards up to count bytes on channel, stopping early at
// a message boundary or on close.
func (ep *Endpoint) skip(channel uint32, count int) (int, error) {
	nRemaining := count
	slot := &ep.handlers[channel]
	for !ep.closed.Load() && !slot.eom.Load() && nRemaining > 0 {
		n, _, err := ep.read(channel, ep.drain, min(len(ep.drain), nRemaining), false)
		if err != nil {
			return count - nRemaining, err
		}
		nRemaining -= n
	}
	return count - nRemaining, nil
}

// readMessageComplete arms the reader for the next message on channel.
func (ep *Endpoint) readMessageComplete(channel uint32) {
	ep.handlers[channel].eom.Store(false)
}
