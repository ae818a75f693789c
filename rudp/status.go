package rudp

import "errors"

// Sentinel errors returned by the application API. Callers should
// compare with errors.Is, not equality, since internal wrapping may
// add context in future revisions.
var (
	// ErrTimeout is returned when a Send or Connect retry budget is
	// exhausted without the expected acknowledgment, and by Recv when
	// its timeout elapses with no payload pending.
	ErrTimeout = errors.New("rudp: timeout")

	// ErrConnectionLost is returned when the peer is declared dead, a
	// RST is received, or an inbound packet carries a stale session id.
	ErrConnectionLost = errors.New("rudp: connection lost")

	// ErrInvalidState is returned when an operation is attempted on a
	// disconnected Client.
	ErrInvalidState = errors.New("rudp: invalid state")

	// ErrNoSpace is returned by Recv when the destination buffer is
	// smaller than the pending payload. The payload remains pending.
	ErrNoSpace = errors.New("rudp: destination buffer too small")

	// ErrPayloadTooLarge is returned by Send when the payload plus
	// header would exceed MaxPacketSize.
	ErrPayloadTooLarge = errors.New("rudp: payload exceeds maximum packet size")
)
