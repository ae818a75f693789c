package rudp

import (
	"sync"
	"time"
)

// fakeTransport is a deterministic, in-memory Transport double used to
// drive the client state machine from a test without real network
// flakiness. Frames destined for the "peer" land in sent; frames the
// test wants the client to observe are pushed with deliver.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	pending []byte
	inbox   chan []byte
	failAll bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbox: make(chan []byte, 64)}
}

func (f *fakeTransport) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errClosedFakeTransport
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	return nil
}

func (f *fakeTransport) WaitForData(timeout time.Duration) (bool, error) {
	select {
	case frame := <-f.inbox:
		f.mu.Lock()
		f.pending = frame
		f.mu.Unlock()
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (f *fakeTransport) Available() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending), nil
}

func (f *fakeTransport) Recv(dst []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(dst, f.pending)
	f.pending = nil
	return n, nil
}

// deliver stages a frame as if it arrived from the peer.
func (f *fakeTransport) deliver(b []byte) {
	f.inbox <- append([]byte(nil), b...)
}

// sentCount returns how many frames the client has transmitted.
func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastSent returns the most recently transmitted frame, or nil.
func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// sentSince returns frames transmitted at index >= from.
func (f *fakeTransport) sentSince(from int) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if from >= len(f.sent) {
		return nil
	}
	out := make([][]byte, len(f.sent)-from)
	copy(out, f.sent[from:])
	return out
}

var errClosedFakeTransport = &fakeTransportError{"fake transport closed"}

type fakeTransportError struct{ msg string }

func (e *fakeTransportError) Error() string { return e.msg }

func buildFrame(h Header, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	PackHeader(buf, h)
	copy(buf[HeaderSize:], payload)
	return buf
}
