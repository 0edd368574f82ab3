package ipc

import (
	"fmt"

	"github.com/sadewadee/saluran/wire"
)

// Raw-mode accessor: an alternative header-then-payload API for callers that
// parse message streams themselves instead of going through channel handles.
// It shares the transport with the framing engine and must not be mixed with
// channel reads on the same endpoint.

// ReadMessageHeader reads and validates the next frame header in the stream,
// skipping any reserved extension bytes. The returned header determines how
// many payload bytes a subsequent ReadPayload may consume. It is an error to
// call this while payload bytes from the previous header remain unread.
//
// A magic mismatch is fatal: the endpoint is closed with reason
// StreamIntegrityViolation.
func (ep *Endpoint) ReadMessageHeader() (wire.Header, error) {
	if ep.remain > 0 {
		return wire.Header{}, ErrPayloadPending
	}
	if ep.closed.Load() {
		return wire.Header{}, ErrClosed
	}

	var hdrBuf [wire.HeaderSize]byte
	if err := ep.readRawFull(hdrBuf[:]); err != nil {
		ep.close(ReasonReadFailure)
		return wire.Header{}, fmt.Errorf("ipc: reading message header: %w", err)
	}
	if err := wire.Validate(hdrBuf[:]); err != nil {
		ep.close(ReasonStreamIntegrityViolation)
		return wire.Header{}, fmt.Errorf("ipc: %w", err)
	}
	ep.lastHeader = wire.Decode(hdrBuf[:])
	ep.remain = int(ep.lastHeader.PayloadLen)

	if skip := int(ep.lastHeader.Size) - wire.HeaderSize; skip > 0 {
		ep.recvMu.Lock()
		err := ep.skipRaw(skip)
		ep.recvMu.Unlock()
		if err != nil {
			ep.close(ReasonReadFailure)
			return wire.Header{}, fmt.Errorf("ipc: skipping header extension: %w", err)
		}
	}
	return ep.lastHeader, nil
}

// LastHeader returns the header most recently read by ReadMessageHeader.
func (ep *Endpoint) LastHeader() wire.Header { return ep.lastHeader }

// PayloadRemaining returns the number of unread payload bytes of the current
// message.
func (ep *Endpoint) PayloadRemaining() int { return ep.remain }

// ReadPayload reads up to min(len(p), PayloadRemaining()) payload bytes of
// the most recently read header. It returns 0 once the current payload is
// exhausted and never reads past its end.
func (ep *Endpoint) ReadPayload(p []byte) (int, error) {
	if len(p) > ep.remain {
		p = p[:ep.remain]
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := ep.tr.ReadRaw(p)
	if n > 0 {
		ep.remain -= n
	}
	if err != nil {
		return n, fmt.Errorf("ipc: reading payload: %w", err)
	}
	return n, nil
}
