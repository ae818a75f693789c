package rudp

import "time"

// bufState tracks the single-slot receive mailbox described by the
// receive-buffer invariant: Empty (free), Pending (held, not yet
// delivered), Delivered (held, copied out, awaiting release).
type bufState int

const (
	bufEmpty bufState = iota
	bufPending
	bufDelivered
)

func (s bufState) String() string {
	switch s {
	case bufEmpty:
		return "Empty"
	case bufPending:
		return "Pending"
	case bufDelivered:
		return "Delivered"
	default:
		return "Unknown"
	}
}

// session is the shared mutable record coordinated by the application
// sender, the application receiver, and the I/O worker. Every field is
// guarded by Client.access except lastSendID and outBuf, which are
// guarded by Client.sendMu (see Client for the lock discipline).
type session struct {
	// sessID is 0 when disconnected, non-zero once a SYN-ACK assigns
	// a session.
	sessID uint16

	// lastSendID is the last sequence number assigned to a locally
	// originated DATA packet. Reset to 0 at SYN (sendMu).
	lastSendID uint8
	// lastSendAcked is the most recently observed remote ACK id
	// (access).
	lastSendAcked uint8
	// lastReceivedID is the last in-order inbound DATA id accepted
	// (access).
	lastReceivedID uint8

	lastPacketRecvTime time.Time
	lastPingSendTime   time.Time

	// outBuf is the outbound scratch buffer (sendMu). Its header
	// prefix is reused across retransmissions of the in-flight packet.
	outBuf [MaxPacketSize]byte

	// inBuf is the inbound single-slot mailbox (access).
	inBuf      [MaxPacketSize]byte
	dataBufLen int
	inBufState bufState
}

func (s *session) connected() bool {
	return s.sessID != 0
}
