package rudp

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Protocol timing constants (spec.md §4.3.2, §4.3.4). Exported as
// package variables, not consts, so an embedder or test can tune them
// without a config file — the same convention kasader-rudp's
// RUDP_TIMEOUT/RUDP_WINDOW use.
var (
	TimeWaitForAck    = 200 * time.Millisecond
	PingInterval      = 1000 * time.Millisecond
	DeadPeerThreshold = 3000 * time.Millisecond
)

// foreverTimeout stands in for the "wait essentially forever" sentinel
// spec.md expresses as 0xFFFFFFFF milliseconds; Go has no unsigned-max
// duration convention, so a non-positive timeout means "forever"
// instead.
const foreverTimeout = 365 * 24 * time.Hour

func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return foreverTimeout
	}
	return d
}

// Client is a reliable, connection-oriented datagram session over a
// Transport. One Client targets exactly one peer. The zero value is
// not usable; construct with NewClient.
type Client struct {
	transport  Transport
	log        zerolog.Logger
	instanceID uuid.UUID

	// access guards sess in its entirety except lastSendID, outBuf and
	// peer-related send state, which sendMu guards instead (§4.2).
	access sync.Mutex
	sendCV *sync.Cond
	recvCV *sync.Cond
	sess   session

	// sendMu serializes Connect/Send/SendSession.Send — at most one
	// application-level send proceeds at a time.
	sendMu sync.Mutex
}

// NewClient constructs a Client bound to transport. The I/O worker is
// not started; call Init then `go client.Run()`.
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:  transport,
		log:        newDefaultLogger(),
		instanceID: newInstanceID(),
	}
	c.sendCV = sync.NewCond(&c.access)
	c.recvCV = sync.NewCond(&c.access)
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("client", c.instanceID.String()).Logger()
	return c
}

// Init prepares the client for use. For a Transport that owns no
// separate setup step this is a no-op; it exists so embedders that
// need a distinct open phase (spec.md §3 Lifecycle) have a place to
// hook in.
func (c *Client) Init() error {
	return nil
}

// Run is the I/O worker loop: it owns the transport read path,
// dispatches inbound packets, and drives the liveness timer. It blocks
// until the transport reports a hard error, so callers spawn it with
// `go client.Run()` alongside Init, per spec.md §3 Lifecycle.
func (c *Client) Run() {
	pollInterval := PingInterval / 2
	var buf [MaxPacketSize]byte
	for {
		ready, err := c.transport.WaitForData(pollInterval)
		if err != nil {
			c.log.Error().Err(err).Msg("transport wait failed, worker exiting")
			return
		}
		if !ready {
			c.livenessTick()
			continue
		}
		n, err := c.transport.Recv(buf[:])
		if err != nil {
			c.log.Error().Err(err).Msg("transport recv failed, worker exiting")
			return
		}
		h, err := ParseHeader(buf[:n])
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping malformed packet")
			continue
		}
		c.dispatch(h, buf[HeaderSize:n])
	}
}

// dispatch classifies and handles one inbound packet per spec.md
// §4.3's ordering: RST, then SYN-ACK, then the sessionless-drop check,
// then stale-session check, then PING/DATA/ACK (which may coexist).
func (c *Client) dispatch(h Header, payload []byte) {
	c.access.Lock()
	defer c.access.Unlock()

	if h.Flags.Has(FlagRst) {
		c.log.Debug().Msg("RST received, tearing down")
		c.closeInternalLocked()
		return
	}

	if h.Flags.Has(FlagSynAck) {
		c.sess.sessID = h.SessionID
		c.sess.lastReceivedID = h.ID
		now := time.Now()
		c.sess.lastPacketRecvTime = now
		c.sess.lastPingSendTime = now
		c.log.Info().Uint16("session", h.SessionID).Msg("connection established")
		c.sendCV.Broadcast()
		return
	}

	if !c.sess.connected() {
		c.log.Debug().Msg("no connection")
		return
	}

	if h.SessionID != c.sess.sessID {
		c.log.Debug().Msg("stale session id, tearing down")
		c.closeInternalLocked()
		return
	}

	if h.Flags.Has(FlagPing) {
		c.sess.lastPacketRecvTime = time.Now()
	}

	if h.Flags.Has(FlagData) {
		c.handleDataLocked(h, payload)
	}

	if h.Flags.Has(FlagAck) {
		c.sess.lastSendAcked = h.ID
		c.sess.lastPacketRecvTime = time.Now()
		c.sendCV.Broadcast()
	}
}

// handleDataLocked implements the in-order DATA acceptance rule
// (spec.md §4.3.1). Regardless of acceptance, every DATA packet is
// ACKed with the current lastReceivedID and stamps lastPacketRecvTime,
// so a peer whose ACK was lost (duplicate) or who is blocked behind a
// full receive slot (buffer-full) can both recover without wedging.
func (c *Client) handleDataLocked(h Header, payload []byte) {
	diff := h.ID - c.sess.lastReceivedID
	if diff == 1 && len(payload) > 0 && c.sess.inBufState == bufEmpty {
		c.sess.lastReceivedID = h.ID
		copy(c.sess.inBuf[:], payload)
		c.sess.dataBufLen = len(payload)
		c.sess.inBufState = bufPending
		c.recvCV.Broadcast()
	}
	c.sess.lastPacketRecvTime = time.Now()
	c.sendAckLocked(c.sess.lastReceivedID)
}

// sendAckLocked emits a header-only ACK. The I/O worker never touches
// outBuf (§5 shared-resource policy); it builds control packets on its
// own stack.
func (c *Client) sendAckLocked(id uint8) {
	var buf [HeaderSize]byte
	PackHeader(buf[:], Header{SessionID: c.sess.sessID, ID: id, Flags: FlagAck})
	if err := c.transport.Send(buf[:]); err != nil {
		c.log.Debug().Err(err).Msg("ack send failed")
	}
}

// livenessTick runs when the I/O worker's transport wait times out
// (spec.md §4.3.4): it emits a PING if no PING has been sent and no
// packet has been received within PingInterval, and declares the peer
// dead past the threshold.
func (c *Client) livenessTick() {
	c.access.Lock()
	defer c.access.Unlock()

	if !c.sess.connected() {
		return
	}

	now := time.Now()
	if now.Sub(c.sess.lastPingSendTime) >= PingInterval && now.Sub(c.sess.lastPacketRecvTime) >= PingInterval {
		var buf [HeaderSize]byte
		PackHeader(buf[:], Header{SessionID: c.sess.sessID, ID: 0, Flags: FlagPing})
		if err := c.transport.Send(buf[:]); err != nil {
			c.log.Debug().Err(err).Msg("ping send failed")
		}
		c.sess.lastPingSendTime = now
	}

	if now.Sub(c.sess.lastPacketRecvTime) >= DeadPeerThreshold {
		c.log.Warn().Msg("peer declared dead, closing")
		c.closeInternalLocked()
	}
}

// closeInternalLocked tears the session down assuming access is
// already held (spec.md §4.3.5). Following the Design Notes'
// recursive-lock refactor, this is the "already-locked" half; close
// and dispatch's RST/stale-session branches call it directly.
func (c *Client) closeInternalLocked() {
	if c.sess.sessID == 0 {
		return
	}
	c.sess.sessID = 0
	c.sendCV.Broadcast()
	c.recvCV.Broadcast()
}

// closeInternal acquires access and tears the session down.
func (c *Client) closeInternal() {
	c.access.Lock()
	defer c.access.Unlock()
	c.closeInternalLocked()
}

// Close is the external, idempotent teardown entry point. Safe to call
// at any time, including on an already-disconnected Client.
func (c *Client) Close() {
	c.closeInternal()
}

// Connect drives the disconnected-to-connected transition (spec.md
// §4.3.3). It resends the SYN every TimeWaitForAck within the overall
// timeout budget, which spec.md's Design Notes call strictly more
// robust than a single fire-and-forget SYN.
func (c *Client) Connect(timeout time.Duration) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.access.Lock()
	c.sess.sessID = 0
	c.sess.lastReceivedID = 0
	c.access.Unlock()
	c.sess.lastSendID = 0

	var synBuf [HeaderSize]byte
	PackHeader(synBuf[:], Header{SessionID: 0, ID: 0, Flags: FlagSyn})

	deadline := time.Now().Add(effectiveTimeout(timeout))
	for {
		if err := c.transport.Send(synBuf[:]); err != nil {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		wait := TimeWaitForAck
		if remaining < wait {
			wait = remaining
		}

		c.access.Lock()
		waitTimeout(&c.access, c.sendCV, wait, func() bool { return c.sess.connected() })
		connected := c.sess.connected()
		c.access.Unlock()

		if connected {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
	}
}

// sendLocked assigns the next sequence id, fills the outBuf header
// (the payload is assumed already written at outBuf[HeaderSize:]), and
// runs the retransmit loop. Callers must hold sendMu.
func (c *Client) sendLocked(payloadLen int, timeout time.Duration) error {
	c.access.Lock()
	sessID := c.sess.sessID
	connected := c.sess.connected()
	c.access.Unlock()
	if !connected {
		return ErrInvalidState
	}

	c.sess.lastSendID++
	id := c.sess.lastSendID
	PackHeader(c.sess.outBuf[:HeaderSize], Header{SessionID: sessID, ID: id, Flags: FlagData})

	return c.retransmitLocked(id, HeaderSize+payloadLen, timeout)
}

// retransmitLocked implements the sender's retransmission loop
// (spec.md §4.3.2). Callers must hold sendMu; outBuf[:packetLen] is
// assumed fully populated.
func (c *Client) retransmitLocked(id uint8, packetLen int, timeout time.Duration) error {
	deadline := time.Now().Add(effectiveTimeout(timeout))
	for {
		if err := c.transport.Send(c.sess.outBuf[:packetLen]); err != nil {
			c.log.Debug().Err(err).Msg("send failed")
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.closeInternal()
			return ErrTimeout
		}
		wait := TimeWaitForAck
		if remaining < wait {
			wait = remaining
		}

		c.access.Lock()
		waitTimeout(&c.access, c.sendCV, wait, func() bool {
			return c.sess.lastSendAcked == id || !c.sess.connected()
		})
		acked := c.sess.lastSendAcked == id
		lost := !c.sess.connected()
		c.access.Unlock()

		if acked {
			return nil
		}
		if lost {
			return ErrConnectionLost
		}
		// Spurious wake or per-attempt timeout: retransmit.
	}
}

// Send reliably delivers data, blocking until it is acknowledged or
// the retry budget is exhausted (spec.md §4.4).
func (c *Client) Send(data []byte, timeout time.Duration) error {
	if len(data) > MaxPayload {
		return ErrPayloadTooLarge
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	copy(c.sess.outBuf[HeaderSize:], data)
	return c.sendLocked(len(data), timeout)
}

// Recv waits for the next in-order payload and copies it into dst
// (spec.md §4.4). If dst is smaller than the pending payload it
// returns ErrNoSpace and leaves the payload Pending for a retry with a
// larger buffer.
func (c *Client) Recv(dst []byte, timeout time.Duration) (int, error) {
	c.access.Lock()
	defer c.access.Unlock()

	if c.sess.inBufState != bufPending && !c.sess.connected() {
		return 0, ErrInvalidState
	}

	ok := waitTimeout(&c.access, c.recvCV, effectiveTimeout(timeout), func() bool {
		return c.sess.inBufState == bufPending || !c.sess.connected()
	})
	if !ok {
		return 0, ErrTimeout
	}

	if c.sess.inBufState == bufPending {
		if len(dst) < c.sess.dataBufLen {
			return 0, ErrNoSpace
		}
		n := copy(dst, c.sess.inBuf[:c.sess.dataBufLen])
		c.sess.inBufState = bufEmpty
		return n, nil
	}

	return 0, ErrConnectionLost
}

// ReleaseInternalBuffer transitions the receive slot Pending/Delivered
// back to Empty without copying, for callers that consumed the
// payload through InBuf.
func (c *Client) ReleaseInternalBuffer() {
	c.access.Lock()
	defer c.access.Unlock()
	if c.sess.inBufState == bufPending || c.sess.inBufState == bufDelivered {
		c.sess.inBufState = bufEmpty
	}
}

// InBuf returns a view over the pending inbound payload and its
// length, for zero-copy callers. It marks the slot Delivered; the
// caller must call ReleaseInternalBuffer once done with the view.
func (c *Client) InBuf() ([]byte, int) {
	c.access.Lock()
	defer c.access.Unlock()
	if c.sess.inBufState == bufPending {
		c.sess.inBufState = bufDelivered
	}
	return c.sess.inBuf[:c.sess.dataBufLen], c.sess.dataBufLen
}

// OutBuf returns the writable payload region of the outbound scratch
// buffer, for zero-copy callers. The caller must hold the single-
// writer contract documented on SendSession (§9): only one writer at a
// time, finalized by Send.
func (c *Client) OutBuf() []byte {
	return c.sess.outBuf[HeaderSize:]
}

// waitTimeout waits on cond, bound to mu (already held by the caller),
// until predicate is true or timeout elapses, returning the final
// predicate value. sync.Cond has no built-in timed wait, so a timer
// goroutine broadcasts once to unblock a stale Wait.
func waitTimeout(mu sync.Locker, cond *sync.Cond, timeout time.Duration, predicate func() bool) bool {
	if predicate() {
		return true
	}
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	for !predicate() {
		if !time.Now().Before(deadline) {
			return false
		}
		cond.Wait()
	}
	return true
}
