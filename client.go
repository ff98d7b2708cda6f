package vnc

import (
	"bufio"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amitbet/vncclone/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	slowUpdateInterval      = time.Second
)

// A ClientConfig structure is used to configure a ClientConn. After
// one has been passed to initialize a connection, it must not be modified.
type ClientConfig struct {
	Handlers         []ClientHandler
	SecurityHandlers []SecurityHandler
	// PixelFormat is the preferred format when Options is nil.
	PixelFormat PixelFormat
	Exclusive   bool
	Renderer    Renderer
	UI          SessionUI
	Options     *Options
	// MetricsRegistry defaults to a registry private to the connection.
	MetricsRegistry  prometheus.Registerer
	TracerProvider   trace.TracerProvider
	HandshakeTimeout time.Duration
	// MaxCutText is the largest server clipboard accepted, 1 MiB when zero.
	MaxCutText uint32
}

// ConnectionInfo is a read-only summary of a session, safe to read from any goroutine.
type ConnectionInfo struct {
	DesktopName        string       `json:"desktop_name"`
	Width              int          `json:"width"`
	Height             int          `json:"height"`
	PixelFormat        string       `json:"pixel_format"`
	Protocol           string       `json:"protocol"`
	FrameCount         uint64       `json:"frame_count"`
	PixelCount         uint64       `json:"pixel_count"`
	LastServerEncoding EncodingType `json:"-"`
	LastEncodingName   string       `json:"last_server_encoding"`
	FenceConfirmed     bool         `json:"fence_confirmed"`
	ContinuousUpdates  bool         `json:"continuous_updates"`
}

// The ClientConn type holds client connection information.
// All protocol state is owned by the goroutine calling Run or ProcessMessage.
type ClientConn struct {
	c        net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	cfg      *ClientConfig
	protocol string

	caps     Capabilities
	serverPF PixelFormat
	fence    fenceChannel
	sched    updateScheduler
	neg      formatNegotiator
	started  bool

	renderer Renderer
	ui       SessionUI
	options  *Options

	metrics    *clientMetrics
	gatherer   prometheus.Gatherer
	tracer     trace.Tracer
	updateSpan trace.Span

	// renderMu serializes the renderer between dispatch and the partial
	// frame timer of Run; it also guards inUpdate and lastPresent.
	renderMu    sync.Mutex
	inUpdate    bool
	lastPresent time.Time

	frameCount         uint64
	pixelCount         uint64
	lastServerEncoding EncodingType

	serverMessages map[ServerMessageType]ServerMessage
	dispatching    atomic.Bool
	info           atomic.Pointer[ConnectionInfo]
	intentsMu      sync.Mutex
	intents        []func() error
	wake           chan struct{}
	unsubscribe    func()
	quit           chan struct{}
	closeOnce      sync.Once
}

var _ Conn = (*ClientConn)(nil)

// NewClientConn wraps c without performing the handshake.
func NewClientConn(c net.Conn, cfg *ClientConfig) (*ClientConn, error) {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	conn := &ClientConn{
		c:                  c,
		cfg:                cfg,
		br:                 bufio.NewReader(c),
		bw:                 bufio.NewWriter(c),
		caps:               newCapabilities(),
		sched:              newUpdateScheduler(),
		renderer:           cfg.Renderer,
		ui:                 cfg.UI,
		options:            cfg.Options,
		tracer:             newTracer(cfg.TracerProvider),
		lastServerEncoding: EncRaw,
		serverMessages:     make(map[ServerMessageType]ServerMessage),
		wake:               make(chan struct{}, 1),
		quit:               make(chan struct{}),
	}
	if conn.renderer == nil {
		conn.renderer = NewCanvas(nil)
	}
	if conn.options == nil {
		v := DefaultOptionValues()
		if cfg.PixelFormat.BPP != 0 {
			v.PreferredPixelFormat = cfg.PixelFormat
		}
		conn.options = NewOptions(v)
	}
	if err := validatePreferred(conn.options.Values().PreferredPixelFormat); err != nil {
		return nil, &Error{Kind: KindInternal, Op: "config", Err: err}
	}

	reg := cfg.MetricsRegistry
	if reg == nil {
		private := prometheus.NewRegistry()
		reg, conn.gatherer = private, private
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		conn.gatherer = g
	} else {
		conn.gatherer = prometheus.DefaultGatherer
	}
	conn.metrics = newClientMetrics(reg)

	for _, m := range DefaultServerMessages {
		conn.serverMessages[m.Type()] = m
	}

	conn.unsubscribe = conn.options.Subscribe(func(v OptionValues) {
		conn.Post(func() error { return conn.handleOptions(v) })
	})
	conn.publishInfo()
	return conn, nil
}

// Connect performs the RFB handshake on c and starts the session. The
// returned connection has already sent its first update request.
func Connect(ctx context.Context, c net.Conn, cfg *ClientConfig) (*ClientConn, error) {
	conn, err := NewClientConn(c, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	cfg = conn.cfg

	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.SetDeadline(deadline); err != nil {
		logger.Debugf("setting handshake deadline: %v", err)
	}

	handlers := cfg.Handlers
	if len(handlers) == 0 {
		handlers = DefaultClientHandlers
	}
	for _, h := range handlers {
		if err := h.Handle(conn); err != nil {
			conn.Close()
			return nil, wrapIOError("handshake", err)
		}
		if err := ctx.Err(); err != nil {
			conn.Close()
			return nil, &Error{Kind: KindTransport, Op: "handshake", Err: err}
		}
	}
	c.SetDeadline(time.Time{})
	logger.Infof("connected to %q (%dx%d, %s)", conn.caps.Name, conn.caps.Width, conn.caps.Height, conn.protocol)
	return conn, nil
}

func (c *ClientConn) Config() interface{} {
	return c.cfg
}

func (c *ClientConn) Conn() net.Conn {
	return c.c
}

func (c *ClientConn) SetProtoVersion(pv string) {
	c.protocol = pv
}

func (c *ClientConn) Protocol() string {
	return c.protocol
}

func (c *ClientConn) Flush() error {
	return c.bw.Flush()
}

func (c *ClientConn) Read(buf []byte) (int, error) {
	return c.br.Read(buf)
}

func (c *ClientConn) Write(buf []byte) (int, error) {
	return c.bw.Write(buf)
}

// PixelFormat is the format incoming rectangles are currently decoded with.
func (c *ClientConn) PixelFormat() PixelFormat {
	return c.caps.PixelFormat
}

func (c *ClientConn) DesktopName() []byte {
	return []byte(c.caps.Name)
}

func (c *ClientConn) Width() uint16 {
	return uint16(c.caps.Width)
}

func (c *ClientConn) Height() uint16 {
	return uint16(c.caps.Height)
}

// Capabilities returns a copy of the negotiated state. It must be called from
// the dispatching goroutine, e.g. inside a posted intent or a UI callback.
func (c *ClientConn) Capabilities() Capabilities {
	return c.caps.clone()
}

// Info returns the last published connection summary.
func (c *ClientConn) Info() ConnectionInfo {
	return *c.info.Load()
}

// Gatherer exposes the metrics of this connection.
func (c *ClientConn) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

func (c *ClientConn) publishInfo() {
	c.info.Store(&ConnectionInfo{
		DesktopName:        c.caps.Name,
		Width:              c.caps.Width,
		Height:             c.caps.Height,
		PixelFormat:        c.caps.PixelFormat.String(),
		Protocol:           c.protocol,
		FrameCount:         c.frameCount,
		PixelCount:         c.pixelCount,
		LastServerEncoding: c.lastServerEncoding,
		LastEncodingName:   c.lastServerEncoding.String(),
		FenceConfirmed:     c.caps.FenceConfirmed,
		ContinuousUpdates:  c.sched.continuous,
	})
}

// Close tears the connection down. Pending requests and format switches are dropped.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.intentsMu.Lock()
		close(c.quit)
		c.intents = nil
		c.intentsMu.Unlock()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		err = c.c.Close()
	})
	return err
}

// Post queues fn to run on the dispatching goroutine. It never blocks, so
// handlers and posted intents may post more work. It returns false once the
// connection is closed.
func (c *ClientConn) Post(fn func() error) bool {
	c.intentsMu.Lock()
	select {
	case <-c.quit:
		c.intentsMu.Unlock()
		return false
	default:
	}
	c.intents = append(c.intents, fn)
	c.intentsMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *ClientConn) nextIntent() func() error {
	c.intentsMu.Lock()
	defer c.intentsMu.Unlock()
	if len(c.intents) == 0 {
		return nil
	}
	fn := c.intents[0]
	c.intents[0] = nil
	c.intents = c.intents[1:]
	return fn
}

// RefreshFramebuffer asks for a full, non-incremental update.
func (c *ClientConn) RefreshFramebuffer() bool {
	return c.Post(c.refreshFramebuffer)
}

// runIntents runs queued intents, including ones posted while it runs.
func (c *ClientConn) runIntents() error {
	for fn := c.nextIntent(); fn != nil; fn = c.nextIntent() {
		if err := fn(); err != nil {
			return wrapIOError("intent", err)
		}
	}
	return nil
}

// ProcessMessage reads and handles exactly one server message. It is not
// reentrant: a call made while a message is being handled returns nil
// without reading anything.
func (c *ClientConn) ProcessMessage() error {
	if !c.dispatching.CompareAndSwap(false, true) {
		return nil
	}
	defer c.dispatching.Store(false)
	return c.processMsg()
}

// ProcessMessages runs queued intents and then handles server messages as
// long as more data is buffered, so back to back messages are drained in
// one call. Like ProcessMessage it ignores recursive calls.
func (c *ClientConn) ProcessMessages() error {
	if !c.dispatching.CompareAndSwap(false, true) {
		return nil
	}
	defer c.dispatching.Store(false)

	if err := c.runIntents(); err != nil {
		return err
	}
	for {
		if err := c.processMsg(); err != nil {
			return err
		}
		if err := c.runIntents(); err != nil {
			return err
		}
		if c.br.Buffered() == 0 {
			return nil
		}
	}
}

// Run is the event loop of the connection: it handles server messages as they
// become readable and posted intents in between, until ctx ends or an error occurs.
func (c *ClientConn) Run(ctx context.Context) error {
	readable := make(chan error, 1)
	resume := make(chan struct{})
	go func() {
		for {
			_, err := c.br.Peek(1)
			select {
			case readable <- err:
			case <-c.quit:
				return
			}
			if err != nil {
				return
			}
			select {
			case <-resume:
			case <-c.quit:
				return
			}
		}
	}()

	// partial frames of an update stalled on the network
	go func() {
		tick := time.NewTicker(slowUpdateInterval / 4)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				c.presentIfSlow()
			case <-c.quit:
				return
			}
		}
	}()

	fail := func(err error) error {
		if IsEndOfStream(err) {
			logger.Infof("connection closed: %v", err)
		} else {
			logger.Errorf("connection failed: %v", err)
		}
		c.Close()
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-c.quit:
			return nil
		case <-c.wake:
			c.dispatching.Store(true)
			err := c.runIntents()
			c.dispatching.Store(false)
			if err != nil {
				return fail(err)
			}
			c.publishInfo()
		case err := <-readable:
			if err != nil {
				return fail(wrapIOError("read", err))
			}
			if err := c.ProcessMessages(); err != nil {
				return fail(err)
			}
			select {
			case resume <- struct{}{}:
			case <-c.quit:
				return nil
			}
		}
	}
}

func (c *ClientConn) processMsg() error {
	var messageType ServerMessageType
	if err := binary.Read(c.br, binary.BigEndian, &messageType); err != nil {
		return wrapIOError("read message type", err)
	}

	var err error
	switch messageType {
	case FramebufferUpdateMsgType:
		err = c.readFramebufferUpdate()
	default:
		msg, ok := c.serverMessages[messageType]
		if !ok {
			return protocolErrorf("dispatch", "unknown message type %d", messageType)
		}
		var parsed ServerMessage
		if parsed, err = msg.Read(c); err == nil {
			err = c.handleServerMessage(parsed)
		}
	}
	if err != nil {
		return wrapIOError(messageType.String(), err)
	}
	c.publishInfo()
	return nil
}
