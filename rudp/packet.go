package rudp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Header size and packet limits. The header is fixed and tightly
// packed: 2 bytes session id, 1 byte sequence id, 1 byte flags.
const (
	HeaderSize    = 4
	MaxPacketSize = 1200
	MaxPayload    = MaxPacketSize - HeaderSize
)

// ErrMalformedPacket is returned when a packet is shorter than
// HeaderSize or longer than MaxPacketSize.
var ErrMalformedPacket = errors.New("rudp: malformed packet")

// Flags is the bitwise-OR'd flag byte carried by every header.
type Flags uint8

const (
	FlagData   Flags = 1 << iota // application payload follows
	FlagAck                      // acknowledges the carried id
	FlagSyn                      // connection open request
	FlagSynAck                   // connection open accepted
	FlagRst                      // unconditional teardown
	FlagPing                     // liveness probe, unacknowledged
)

// Has reports whether f includes flag.
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// String renders the set flags as a pipe-joined list, e.g. "DATA|ACK".
func (f Flags) String() string {
	var parts []string
	for _, pair := range []struct {
		bit  Flags
		name string
	}{
		{FlagData, "DATA"},
		{FlagAck, "ACK"},
		{FlagSyn, "SYN"},
		{FlagSynAck, "SYNACK"},
		{FlagRst, "RST"},
		{FlagPing, "PING"},
	} {
		if f.Has(pair.bit) {
			parts = append(parts, pair.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Header is the fixed 4-byte packet header, in wire order.
type Header struct {
	SessionID uint16
	ID        uint8
	Flags     Flags
}

// String gives a debug-friendly rendering of a header.
func (h Header) String() string {
	return fmt.Sprintf("Header{sess:%d id:%d flags:%s}", h.SessionID, h.ID, h.Flags)
}

// PackHeader writes h into the first HeaderSize bytes of buf. buf must
// be at least HeaderSize bytes long.
func PackHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.SessionID)
	buf[2] = h.ID
	buf[3] = byte(h.Flags)
}

// ParseHeader reads a Header from the front of buf. The payload, if
// any, is buf[HeaderSize:] and is left to the caller to interpret.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize || len(buf) > MaxPacketSize {
		return Header{}, ErrMalformedPacket
	}
	h := Header{
		SessionID: binary.LittleEndian.Uint16(buf[0:2]),
		ID:        buf[2],
		Flags:     Flags(buf[3]),
	}
	return h, nil
}
