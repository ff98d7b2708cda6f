package vnc

import (
	"bytes"
	"testing"
)

func newTestConn(t *testing.T) (*ClientConn, *mockConn) {
	t.Helper()
	mc := newMockConn(nil)
	cc, err := NewClientConn(mc, &ClientConfig{Renderer: &recorder{}})
	if err != nil {
		t.Fatalf("NewClientConn: %v", err)
	}
	return cc, mc
}

func TestFenceWireFormat(t *testing.T) {
	cc, mc := newTestConn(t)
	if err := (&Fence{Flags: FenceRequest | FenceSyncNext, Payload: []byte{1, 2}}).Write(cc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []byte{248, 0, 0, 0, 0x80, 0, 0, 4, 2, 1, 2}
	if got := mc.written(); !bytes.Equal(got, want) {
		t.Fatalf("fence bytes %v, want %v", got, want)
	}
	if err := (&Fence{Payload: make([]byte, 65)}).Write(cc); err == nil {
		t.Fatalf("oversized payload accepted")
	}
}

func TestFenceReadRejectsLongPayload(t *testing.T) {
	var srv server
	srv.put([3]byte{}, uint32(FenceRequest), uint8(65))
	srv.Write(make([]byte, 65))
	cc, err := NewClientConn(newMockConn(srv.Bytes()), &ClientConfig{Renderer: &recorder{}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (&Fence{}).Read(cc); !IsProtocolViolation(err) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
}

func TestFenceChannel(t *testing.T) {
	cc, _ := newTestConn(t)
	var f fenceChannel

	if _, err := f.complete(&Fence{}); !IsProtocolViolation(err) {
		t.Fatalf("reply without request: %v", err)
	}
	if err := f.send(cc, FenceSyncNext, []byte("abcd")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if f.sent.Flags != FenceRequest|FenceSyncNext {
		t.Fatalf("request flag not set: %v", f.sent.Flags)
	}
	if err := f.send(cc, FenceSyncNext, nil); !isKind(err, KindInternal) {
		t.Fatalf("second fence: %v", err)
	}
	if _, err := f.complete(&Fence{Payload: []byte("ab")}); !IsProtocolViolation(err) {
		t.Fatalf("length mismatch: %v", err)
	}
	sent, err := f.complete(&Fence{Flags: FenceSyncNext, Payload: []byte("abcd")})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(sent.Payload) != "abcd" || f.outstanding {
		t.Fatalf("sent %v outstanding %v", sent, f.outstanding)
	}
	if err := f.send(cc, 0, nil); err != nil {
		t.Fatalf("send after completion: %v", err)
	}
	f.reset()
	if f.outstanding {
		t.Fatalf("reset kept the fence")
	}
}
