package rudp

import "testing"

func TestPackParseHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{SessionID: 0, ID: 0, Flags: FlagSyn},
		{SessionID: 7, ID: 1, Flags: FlagData},
		{SessionID: 7, ID: 255, Flags: FlagAck},
		{SessionID: 0xFFFF, ID: 42, Flags: FlagSynAck},
		{SessionID: 7, ID: 0, Flags: FlagPing},
		{SessionID: 7, ID: 0, Flags: FlagRst},
	}
	for _, want := range cases {
		buf := make([]byte, HeaderSize)
		PackHeader(buf, want)

		got, err := ParseHeader(buf)
		if err != nil {
			t.Fatalf("ParseHeader(%v) unexpected error: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestParseHeaderRejectsShortBuffers(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		if _, err := ParseHeader(make([]byte, n)); err != ErrMalformedPacket {
			t.Errorf("len=%d: got err=%v, want ErrMalformedPacket", n, err)
		}
	}
}

func TestParseHeaderRejectsOversizedBuffers(t *testing.T) {
	if _, err := ParseHeader(make([]byte, MaxPacketSize+1)); err != ErrMalformedPacket {
		t.Errorf("got err=%v, want ErrMalformedPacket", err)
	}
}

func TestParseHeaderAcceptsDataPayload(t *testing.T) {
	buf := make([]byte, HeaderSize+5)
	PackHeader(buf, Header{SessionID: 3, ID: 9, Flags: FlagData})
	copy(buf[HeaderSize:], "hello")

	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.SessionID != 3 || h.ID != 9 || !h.Flags.Has(FlagData) {
		t.Errorf("unexpected header: %+v", h)
	}
	if string(buf[HeaderSize:]) != "hello" {
		t.Errorf("payload mismatch: %q", buf[HeaderSize:])
	}
}

func TestFlagsString(t *testing.T) {
	cases := []struct {
		f    Flags
		want string
	}{
		{0, "NONE"},
		{FlagData, "DATA"},
		{FlagData | FlagAck, "DATA|ACK"},
		{FlagSyn | FlagSynAck, "SYN|SYNACK"},
	}
	for _, tc := range cases {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("Flags(%d).String() = %q, want %q", tc.f, got, tc.want)
		}
	}
}

func TestSessionIDLittleEndianOnWire(t *testing.T) {
	buf := make([]byte, HeaderSize)
	PackHeader(buf, Header{SessionID: 0x0102, ID: 0, Flags: 0})
	if buf[0] != 0x02 || buf[1] != 0x01 {
		t.Fatalf("expected little-endian sessId bytes, got % x", buf[:2])
	}
}
