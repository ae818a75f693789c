package rudp

import (
	"net"
	"sync"
	"time"
)

// Transport is the unreliable datagram collaborator the client
// consumes. It is assumed to deliver length-preserving, best-effort,
// unordered datagrams to a single peer. The protocol core never
// constructs one directly; callers supply an implementation to
// NewClient.
type Transport interface {
	// Send transmits b to the peer. Fire-and-forget.
	Send(b []byte) error

	// WaitForData blocks up to timeout for a datagram to become
	// available, returning ready=true if one arrived. A deadline
	// expiring with nothing arriving is not an error: it returns
	// ready=false, err=nil.
	WaitForData(timeout time.Duration) (ready bool, err error)

	// Available reports the size of the datagram WaitForData most
	// recently staged, or 0 if none is staged.
	Available() (int, error)

	// Recv copies the staged datagram into dst, returning the number
	// of bytes copied, and clears the stage.
	Recv(dst []byte) (int, error)
}

// UDPTransport implements Transport over a connected *net.UDPConn, one
// peer per transport, matching the one-session-per-endpoint Non-goal.
type UDPTransport struct {
	conn *net.UDPConn

	mu      sync.Mutex
	pending []byte
	scratch [MaxPacketSize]byte
}

// DialUDP resolves addr and opens a UDP socket connected to it.
func DialUDP(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn}, nil
}

// Send implements Transport.
func (t *UDPTransport) Send(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}

// WaitForData implements Transport. A real UDP socket cannot peek a
// datagram's presence without consuming it, so this performs the
// deadline-bounded read itself and stashes the result for Available
// and Recv to report on.
func (t *UDPTransport) WaitForData(timeout time.Duration) (bool, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	n, err := t.conn.Read(t.scratch[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, err
	}

	t.mu.Lock()
	t.pending = t.scratch[:n]
	t.mu.Unlock()
	return true, nil
}

// Available implements Transport.
func (t *UDPTransport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending), nil
}

// Recv implements Transport.
func (t *UDPTransport) Recv(dst []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := copy(dst, t.pending)
	t.pending = nil
	return n, nil
}

// Close releases the underlying socket, unblocking any in-progress
// WaitForData with an error.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
