// Package wire defines the saluran frame header and its on-wire encoding.
//
// Every fragment on a transport is an 8-byte header followed by a payload of
// PayloadLen bytes. A message is one or more contiguous fragments on the same
// channel, terminated by a fragment with the EOM flag set (which may carry
// zero payload bytes).
package wire

import (
	"encoding/binary"
	"fmt"
)

// Magic bytes identify saluran frames on the transport.
var Magic = [2]byte{0x64, 0x37}

// Version is the current framing protocol version.
const Version uint8 = 0

// HeaderSize is the fixed size of a frame header in bytes. The Size field of
// a decoded header may be larger; the bytes between HeaderSize and Size are
// reserved extension bytes and are skipped on read.
const HeaderSize = 8

// NumChannels is the number of logical channels per endpoint, fixed by the
// 2-bit channel field.
const NumChannels = 4

// ChannelMask extracts a channel number from the packed flag byte.
const ChannelMask = NumChannels - 1

// Header is a decoded frame header.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+---------------+---------------+-----+-+-+-+-+-+---------------+
//	|    Magic 1    |    Magic 2    | Ver |R|R| C |E|    Header     |
//	|    (0x64)     |    (0x37)     | (3) | | |(2)|O|    Length     |
//	|               |               |     | | |   |M|     (8)       |
//	+---------------+---------------+-----+-+-+-+-+-+---------------+
//	|                        Payload Length                         |
//	|                          (32, BE)                             |
//	+---------------------------------------------------------------+
type Header struct {
	Version    uint8  // 3 bits
	Channel    uint8  // 2 bits, 0..NumChannels-1
	EOM        bool   // final fragment of the current message
	Size       uint8  // total header length in bytes, >= HeaderSize
	PayloadLen uint32 // payload bytes following the header
}

// NewHeader returns a header with the fixed fields filled in.
func NewHeader() Header {
	return Header{Version: Version, Size: HeaderSize}
}

// Encode writes the 8-byte wire representation of h into b.
// b must be at least HeaderSize bytes long.
func (h Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	b[0] = Magic[0]
	b[1] = Magic[1]
	b[2] = h.Version<<5 | (h.Channel&ChannelMask)<<1
	if h.EOM {
		b[2] |= 1
	}
	b[3] = h.Size
	binary.BigEndian.PutUint32(b[4:8], h.PayloadLen)
}

// Decode parses the 8 fixed header bytes of b without validation.
// Use Validate to check magic and header length.
func Decode(b []byte) Header {
	_ = b[HeaderSize-1]
	return Header{
		Version:    b[2] >> 5,
		Channel:    b[2] >> 1 & ChannelMask,
		EOM:        b[2]&1 != 0,
		Size:       b[3],
		PayloadLen: binary.BigEndian.Uint32(b[4:8]),
	}
}

// Validate checks the magic bytes and header length of the raw header b.
// A header is valid iff both magic bytes match and the header length field is
// at least HeaderSize.
func Validate(b []byte) error {
	if b[0] != Magic[0] || b[1] != Magic[1] {
		return fmt.Errorf("%w: 0x%02x%02x", ErrMagicMismatch, b[0], b[1])
	}
	if b[3] < HeaderSize {
		return fmt.Errorf("%w: %d", ErrHeaderLength, b[3])
	}
	return nil
}
