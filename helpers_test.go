package vnc

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

// mockConn plays a scripted server and captures what the client writes.
// Reads return io.EOF once the script is exhausted, or block until Close
// when block is set.
type mockConn struct {
	mu      sync.Mutex
	in      bytes.Buffer
	out     bytes.Buffer
	block   bool
	more    chan struct{}
	closed  chan struct{}
	isClose bool
}

func newMockConn(script []byte) *mockConn {
	m := &mockConn{more: make(chan struct{}, 1), closed: make(chan struct{})}
	m.in.Write(script)
	return m
}

// feed appends server bytes to the script.
func (m *mockConn) feed(b []byte) {
	m.mu.Lock()
	m.in.Write(b)
	m.mu.Unlock()
	select {
	case m.more <- struct{}{}:
	default:
	}
}

func (m *mockConn) Read(p []byte) (int, error) {
	for {
		m.mu.Lock()
		if m.isClose {
			m.mu.Unlock()
			return 0, net.ErrClosed
		}
		if m.in.Len() > 0 {
			n, err := m.in.Read(p)
			m.mu.Unlock()
			return n, err
		}
		block := m.block
		m.mu.Unlock()
		if !block {
			return 0, io.EOF
		}
		select {
		case <-m.more:
		case <-m.closed:
		}
	}
}

func (m *mockConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isClose {
		return 0, net.ErrClosed
	}
	return m.out.Write(p)
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isClose {
		m.isClose = true
		close(m.closed)
	}
	return nil
}

func (m *mockConn) written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.out.Bytes()...)
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClose
}

func (m *mockConn) LocalAddr() net.Addr                { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000} }
func (m *mockConn) RemoteAddr() net.Addr               { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5900} }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// server builds the bytes a server sends.
type server struct {
	bytes.Buffer
}

func (s *server) put(fields ...interface{}) *server {
	for _, f := range fields {
		if err := binary.Write(s, binary.BigEndian, f); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *server) pf(pf PixelFormat) *server {
	b, err := pf.Marshal()
	if err != nil {
		panic(err)
	}
	s.Write(b)
	return s
}

// handshake38 is a 3.8 server offering the None security type.
func (s *server) handshake38(w, h uint16, pf PixelFormat, name string) *server {
	s.WriteString(ProtoVersion38)
	s.put(uint8(1), uint8(SecTypeNone), uint32(0))
	return s.serverInit(w, h, pf, name)
}

func (s *server) serverInit(w, h uint16, pf PixelFormat, name string) *server {
	s.put(w, h)
	s.pf(pf)
	s.put(uint32(len(name)))
	s.WriteString(name)
	return s
}

func (s *server) update(numRects uint16) *server {
	return s.put(uint8(FramebufferUpdateMsgType), uint8(0), numRects)
}

func (s *server) rect(x, y, w, h uint16, enc EncodingType) *server {
	r := Rectangle{X: x, Y: y, Width: w, Height: h, EncType: enc}
	if err := r.Write(s); err != nil {
		panic(err)
	}
	return s
}

// raw appends a raw rectangle filled with one pixel value.
func (s *server) raw(x, y, w, h uint16, pf PixelFormat, pixel []byte) *server {
	s.rect(x, y, w, h, EncRaw)
	for i := 0; i < int(w)*int(h); i++ {
		if len(pixel) != pf.BytesPerPixel() {
			panic("pixel size does not match format")
		}
		s.Write(pixel)
	}
	return s
}

func (s *server) fence(flags FenceFlags, payload []byte) *server {
	s.put(uint8(ServerFenceMsgType), [3]byte{}, uint32(flags), uint8(len(payload)))
	s.Write(payload)
	return s
}

func (s *server) endOfContinuousUpdates() *server {
	return s.put(uint8(EndOfContinuousUpdatesMsgType))
}

func (s *server) bell() *server {
	return s.put(uint8(BellMsgType))
}

func (s *server) cutText(text []byte) *server {
	s.put(uint8(ServerCutTextMsgType), [3]byte{}, uint32(len(text)))
	s.Write(text)
	return s
}

// handshake38Len is what the client writes during a 3.8 handshake:
// version, security type and shared flag.
const handshake38Len = 12 + 1 + 1

// clientMsg is one decoded client to server message.
type clientMsg struct {
	Type ClientMessageType
	Raw  []byte // whole message including the type byte
}

func (m clientMsg) pf(t *testing.T) PixelFormat {
	t.Helper()
	var pf PixelFormat
	if err := pf.Unmarshal(m.Raw[4:20]); err != nil {
		t.Fatalf("decoding SetPixelFormat: %v", err)
	}
	return pf
}

func (m clientMsg) encodings() []EncodingType {
	n := int(binary.BigEndian.Uint16(m.Raw[2:]))
	encs := make([]EncodingType, n)
	for i := range encs {
		encs[i] = EncodingType(int32(binary.BigEndian.Uint32(m.Raw[4+4*i:])))
	}
	return encs
}

func (m clientMsg) updateRequest() FramebufferUpdateRequest {
	return FramebufferUpdateRequest{
		Inc:    m.Raw[1],
		X:      binary.BigEndian.Uint16(m.Raw[2:]),
		Y:      binary.BigEndian.Uint16(m.Raw[4:]),
		Width:  binary.BigEndian.Uint16(m.Raw[6:]),
		Height: binary.BigEndian.Uint16(m.Raw[8:]),
	}
}

func (m clientMsg) continuous() EnableContinuousUpdates {
	return EnableContinuousUpdates{
		Enable: m.Raw[1],
		X:      binary.BigEndian.Uint16(m.Raw[2:]),
		Y:      binary.BigEndian.Uint16(m.Raw[4:]),
		Width:  binary.BigEndian.Uint16(m.Raw[6:]),
		Height: binary.BigEndian.Uint16(m.Raw[8:]),
	}
}

func (m clientMsg) fence() Fence {
	n := int(m.Raw[8])
	return Fence{
		Flags:   FenceFlags(binary.BigEndian.Uint32(m.Raw[4:])),
		Payload: m.Raw[9 : 9+n],
	}
}

// decodeClientMessages splits the bytes written after the handshake.
func decodeClientMessages(t *testing.T, b []byte) []clientMsg {
	t.Helper()
	var msgs []clientMsg
	for len(b) > 0 {
		var n int
		switch ClientMessageType(b[0]) {
		case SetPixelFormatMsgType:
			n = 20
		case SetEncodingsMsgType:
			n = 4 + 4*int(binary.BigEndian.Uint16(b[2:]))
		case FramebufferUpdateRequestMsgType:
			n = 10
		case KeyEventMsgType:
			n = 8
		case PointerEventMsgType:
			n = 6
		case ClientCutTextMsgType:
			n = 8 + int(binary.BigEndian.Uint32(b[4:]))
		case EnableContinuousUpdatesMsgType:
			n = 10
		case ClientFenceMsgType:
			n = 9 + int(b[8])
		case QEMUClientMsgType:
			n = 12
		default:
			t.Fatalf("unknown client message type %d in %v", b[0], b)
		}
		if n > len(b) {
			t.Fatalf("truncated client message type %d", b[0])
		}
		msgs = append(msgs, clientMsg{Type: ClientMessageType(b[0]), Raw: b[:n]})
		b = b[n:]
	}
	return msgs
}

func messageTypes(msgs []clientMsg) []ClientMessageType {
	types := make([]ClientMessageType, len(msgs))
	for i, m := range msgs {
		types[i] = m.Type
	}
	return types
}

// recorder is a Renderer that remembers what it was asked to do.
type recorder struct {
	allocs   []fbSize
	damage   []damage
	presents int
	allocErr error
}

type fbSize struct{ w, h int }

type damage struct {
	rect    Rectangle
	payload []byte
	pf      PixelFormat
}

func (r *recorder) AllocateFramebuffer(w, h int) error {
	if r.allocErr != nil {
		return r.allocErr
	}
	r.allocs = append(r.allocs, fbSize{w, h})
	return nil
}

func (r *recorder) AcceptDamage(rect Rectangle, payload []byte, pf PixelFormat) error {
	r.damage = append(r.damage, damage{rect, append([]byte(nil), payload...), pf})
	return nil
}

func (r *recorder) PresentFrame() error {
	r.presents++
	return nil
}

// testUI records the callbacks of every optional UI interface.
type testUI struct {
	names     []string
	leds      []uint8
	bells     int
	clipboard []string
	cursors   []*Cursor
	onName    func()
}

func (u *testUI) OnNameChanged(name string) {
	u.names = append(u.names, name)
	if u.onName != nil {
		u.onName()
	}
}
func (u *testUI) OnLEDStateChanged(mask uint8) { u.leds = append(u.leds, mask) }
func (u *testUI) Bell()                        { u.bells++ }
func (u *testUI) ServerCutText(text string)    { u.clipboard = append(u.clipboard, text) }
func (u *testUI) SetCursor(cur *Cursor)        { u.cursors = append(u.cursors, cur) }

// session is a connected client over a mockConn.
type session struct {
	t    *testing.T
	mc   *mockConn
	cc   *ClientConn
	r    *recorder
	ui   *testUI
	opts *Options
	seen int // client bytes already decoded
}

const testWidth, testHeight = 64, 32

// connect runs a 3.8 handshake with a server in RGB565 and a client preferring RGB888.
func connect(t *testing.T) *session {
	t.Helper()
	return connectWith(t, nil)
}

// connectWith is connect with a chance to adjust the client configuration.
func connectWith(t *testing.T, configure func(*ClientConfig)) *session {
	t.Helper()
	s := &session{t: t, r: &recorder{}, ui: &testUI{}, opts: NewOptions(DefaultOptionValues())}
	var srv server
	srv.handshake38(testWidth, testHeight, PixelFormat16bit, "desktop")
	s.mc = newMockConn(srv.Bytes())
	cfg := &ClientConfig{
		Renderer: s.r,
		UI:       s.ui,
		Options:  s.opts,
	}
	if configure != nil {
		configure(cfg)
	}
	cc, err := Connect(context.Background(), s.mc, cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.cc = cc
	s.seen = handshake38Len
	return s
}

// send feeds server bytes.
func (s *session) send(srv *server) {
	s.mc.feed(srv.Bytes())
}

// process handles exactly n messages.
func (s *session) process(n int) {
	s.t.Helper()
	for i := 0; i < n; i++ {
		if err := s.cc.ProcessMessage(); err != nil {
			s.t.Fatalf("ProcessMessage: %v", err)
		}
	}
}

// intents runs posted intents.
func (s *session) intents() {
	s.t.Helper()
	if err := s.cc.runIntents(); err != nil {
		s.t.Fatalf("runIntents: %v", err)
	}
}

// next returns the client messages written since the last call.
func (s *session) next() []clientMsg {
	s.t.Helper()
	out := s.mc.written()
	msgs := decodeClientMessages(s.t, out[s.seen:])
	s.seen = len(out)
	return msgs
}

// confirmFence walks the session through the fence check: the server shows
// fence support, one empty update ends, and the fence is echoed.
func (s *session) confirmFence(continuous bool) {
	s.t.Helper()
	var srv server
	srv.fence(FenceRequest|FenceBlockBefore, []byte("x"))
	if continuous {
		srv.endOfContinuousUpdates()
	}
	srv.update(0)
	s.send(&srv)
	n := 2
	if continuous {
		n = 3
	}
	s.process(n)
	s.next()
	if !s.cc.fence.outstanding {
		s.t.Fatalf("fence not sent")
	}
	var echo server
	echo.fence(FenceSyncNext, nil)
	s.send(&echo)
	s.process(1)
	if !s.cc.caps.FenceConfirmed {
		s.t.Fatalf("fence not confirmed")
	}
}

// waitFor polls cond until it holds or five seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
