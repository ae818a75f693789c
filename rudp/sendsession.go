package rudp

import "time"

// SendSession is a zero-copy streaming adapter over the outbound
// buffer (spec.md §4.4, §9). It writes payload bytes directly into
// outBuf in place, avoiding the extra copy Send performs, then
// finalizes with the same reliable-delivery path.
//
// SendSession holds no lock of its own; CreateSendSession acquires the
// client's send lock and Send releases it (option (a) from spec.md
// §9), so only one SendSession may be in flight at a time — a second
// CreateSendSession call blocks until the first is sent.
type SendSession struct {
	c   *Client
	pos int
}

// CreateSendSession acquires the send lock and returns a session whose
// write cursor starts past the header region.
func (c *Client) CreateSendSession() *SendSession {
	c.sendMu.Lock()
	return &SendSession{c: c, pos: HeaderSize}
}

// Write appends up to MaxPacketSize-pos bytes of data into the
// outbound buffer, returning the number of bytes actually written.
// Partial writes are expected when the buffer is near capacity.
func (s *SendSession) Write(data []byte) int {
	if s.pos >= MaxPacketSize {
		return 0
	}
	n := copy(s.c.sess.outBuf[s.pos:], data)
	s.pos += n
	return n
}

// Send finalizes the session: it reliably delivers everything written
// so far and releases the send lock, whether or not delivery
// succeeds.
func (s *SendSession) Send(timeout time.Duration) error {
	defer s.c.sendMu.Unlock()
	return s.c.sendLocked(s.pos-HeaderSize, timeout)
}
