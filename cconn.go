package vnc

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/amitbet/vncclone/logger"
	"go.opentelemetry.io/otel/attribute"
)

// Renderer owns the local copy of the framebuffer. Calls never overlap, but
// PresentFrame may come from the partial frame timer of Run.
type Renderer interface {
	AllocateFramebuffer(width, height int) error
	// AcceptDamage receives one data rectangle, still encoded, together with
	// the pixel format it was sent in.
	AcceptDamage(rect Rectangle, payload []byte, pf PixelFormat) error
	PresentFrame() error
}

// SessionUI is told about changes of the desktop that are shown to the user.
// A SessionUI may also implement BellHandler, ClipboardHandler and CursorHandler.
type SessionUI interface {
	OnNameChanged(name string)
	OnLEDStateChanged(mask uint8)
}

type BellHandler interface {
	Bell()
}

type ClipboardHandler interface {
	ServerCutText(text string)
}

// serverInit starts the session once the handshake is complete.
func (c *ClientConn) serverInit(srvInit *ServerInit) error {
	c.caps.Width = int(srvInit.FBWidth)
	c.caps.Height = int(srvInit.FBHeight)
	c.caps.Name = string(srvInit.NameText)
	c.caps.PixelFormat = srvInit.PixelFormat
	c.serverPF = srvInit.PixelFormat
	logger.Debugf("server pixel format: %v", c.serverPF)

	if err := c.allocateFramebuffer(); err != nil {
		return err
	}
	if c.ui != nil {
		c.ui.OnNameChanged(c.caps.Name)
	}

	c.neg.desired = c.options.Values().PreferredPixelFormat
	c.neg.formatChange = true
	c.neg.encodingChange = true
	c.started = true
	if err := c.requestNewUpdate(); err != nil {
		return err
	}

	// nothing has been requested in the old format yet, so the
	// first switch needs no barrier
	if c.neg.state == pendingAwaitingUpdateBoundary {
		c.commitFormat(c.neg.pendingPF, "init")
	}
	c.publishInfo()
	return nil
}

// requestNewUpdate sends any pending format or encoding change and, if the
// scheduler allows, the next update request.
func (c *ClientConn) requestNewUpdate() error {
	if c.neg.formatChange && c.neg.state == pendingNone {
		fenced := c.caps.FenceConfirmed
		if !fenced && c.sched.requestOutstanding {
			return internalErrorf("pixel format", "format switch without fence while an update is outstanding")
		}
		pf := c.neg.begin(fenced)
		if fenced {
			data, err := pf.Marshal()
			if err != nil {
				return internalErrorf("pixel format", "%v", err)
			}
			// the echo proves every later rectangle uses the new format
			if err := c.sendFence(FenceRequest|FenceSyncNext, data); err != nil {
				return err
			}
		}
		logger.Infof("Using pixel format %v", pf)
		if err := (&SetPixelFormat{PF: pf}).Write(c); err != nil {
			return err
		}
	}

	if encs := c.neg.encodingsFor(c.caps.encodings()); encs != nil {
		logger.Debugf("Using %v encoding", encs[len(encs)-len(dataEncodings)])
		if err := (&SetEncodings{Encodings: encs}).Write(c); err != nil {
			return err
		}
	}

	if c.sched.shouldRequest() {
		return c.sendUpdateRequest()
	}
	return nil
}

func (c *ClientConn) sendUpdateRequest() error {
	req, err := c.sched.issue(c.caps.Width, c.caps.Height)
	if err != nil {
		return err
	}
	mode := "incremental"
	if req.Inc == 0 {
		mode = "full"
	}
	c.metrics.updateRequests.WithLabelValues(mode).Inc()
	return req.Write(c)
}

// commitFormat makes pf the format rectangles are decoded with.
func (c *ClientConn) commitFormat(pf PixelFormat, path string) {
	c.caps.PixelFormat = c.neg.commit(pf)
	c.metrics.formatCommits.WithLabelValues(path).Inc()
	c.spanEvent("pixel format committed", attribute.String("vnc.commit_path", path))
	logger.Debugf("pixel format %v active (%s)", pf, path)
}

func (c *ClientConn) sendFence(flags FenceFlags, payload []byte) error {
	if err := c.fence.send(c, flags, payload); err != nil {
		return err
	}
	c.metrics.fencesSent.Inc()
	return nil
}

func (c *ClientConn) enableContinuousUpdates(enable bool) error {
	msg := &EnableContinuousUpdates{Width: uint16(c.caps.Width), Height: uint16(c.caps.Height)}
	if enable {
		msg.Enable = 1
		c.metrics.continuous.Set(1)
	} else {
		c.metrics.continuous.Set(0)
	}
	return msg.Write(c)
}

func (c *ClientConn) allocateFramebuffer() error {
	c.renderMu.Lock()
	err := c.renderer.AllocateFramebuffer(c.caps.Width, c.caps.Height)
	c.renderMu.Unlock()
	if err != nil {
		return &Error{Kind: KindResource, Op: "allocate framebuffer", Err: err}
	}
	return nil
}

func (c *ClientConn) readFramebufferUpdate() error {
	var hdr struct {
		_       [1]byte
		NumRect uint16
	}
	if err := binary.Read(c.br, binary.BigEndian, &hdr); err != nil {
		return err
	}

	c.framebufferUpdateStart(hdr.NumRect)
	err := c.requestNewUpdate()
	// 0xffff rectangles means the update ends with a LastRect rectangle
	for i := 0; err == nil && (hdr.NumRect == 0xffff || i < int(hdr.NumRect)); i++ {
		var rect Rectangle
		if err = rect.Read(c.br); err != nil {
			break
		}
		if rect.EncType == EncLastRectPseudo {
			break
		}
		err = c.readRect(&rect)
		c.presentIfSlow()
	}
	if err != nil {
		c.endUpdateSpan(err)
		return err
	}
	return c.framebufferUpdateEnd()
}

func (c *ClientConn) framebufferUpdateStart(numRects uint16) {
	c.sched.updateStarted()
	c.renderMu.Lock()
	c.inUpdate = true
	c.lastPresent = time.Now()
	c.renderMu.Unlock()
	c.startUpdateSpan(numRects)
}

// presentIfSlow shows a partial frame when an update takes more than a second.
// Dispatch calls it between rectangles, Run also calls it from a timer.
func (c *ClientConn) presentIfSlow() {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if !c.inUpdate || time.Since(c.lastPresent) < slowUpdateInterval {
		return
	}
	c.lastPresent = time.Now()
	if err := c.renderer.PresentFrame(); err != nil {
		logger.Warnf("presenting partial frame: %v", err)
	}
}

func (c *ClientConn) framebufferUpdateEnd() error {
	c.frameCount++
	c.metrics.frames.Inc()

	c.renderMu.Lock()
	c.inUpdate = false
	err := c.renderer.PresentFrame()
	c.renderMu.Unlock()
	if err != nil {
		c.endUpdateSpan(err)
		return &Error{Kind: KindResource, Op: "present frame", Err: err}
	}

	if c.sched.updateEnded() && c.caps.ServerSupportsFence {
		// an empty fence request; its echo confirms the server implements fences
		if err := c.sendFence(FenceRequest|FenceSyncNext, nil); err != nil {
			c.endUpdateSpan(err)
			return err
		}
	}

	if c.neg.state == pendingAwaitingUpdateBoundary {
		c.commitFormat(c.neg.pendingPF, "update boundary")
	}
	c.endUpdateSpan(nil)
	return nil
}

func (c *ClientConn) readRect(rect *Rectangle) error {
	pf := c.caps.PixelFormat
	switch rect.EncType {
	case EncDesktopSizePseudo:
		return c.setDesktopSize(int(rect.Width), int(rect.Height))

	case EncExtendedDesktopSizePseudo:
		enc := &ExtendedDesktopSizePseudoEncoding{}
		payload, err := enc.Read(c.br, &pf, rect)
		if err != nil {
			return err
		}
		return c.setExtendedDesktopSize(int(rect.X), int(rect.Y), int(rect.Width), int(rect.Height), enc.Screens(payload))

	case EncDesktopNamePseudo:
		name, err := (&DesktopNamePseudoEncoding{}).Read(c.br, &pf, rect)
		if err != nil {
			return err
		}
		c.setName(latin1ToUTF8(name))
		return nil

	case EncLEDStatePseudo:
		state, err := (&LEDStatePseudoEncoding{}).Read(c.br, &pf, rect)
		if err != nil {
			return err
		}
		c.setLEDState(state[0])
		return nil

	case EncQEMUExtendedKeyEventPseudo:
		c.caps.ServerSupportsQEMUKeyEvent = true
		return nil

	case EncCursorPseudo, EncXCursorPseudo, EncCursorWithAlphaPseudo:
		return c.readCursor(rect)
	}

	enc, ok := lookupEncoding(rect.EncType)
	if !ok {
		return protocolErrorf("framebuffer update", "unknown rect encoding %v", rect.EncType)
	}
	if !rect.Bounds().In(MakeRect(0, 0, c.caps.Width, c.caps.Height)) {
		return protocolErrorf("framebuffer update", "rectangle %v outside %dx%d framebuffer", rect, c.caps.Width, c.caps.Height)
	}
	payload, err := enc.Read(c.br, &pf, rect)
	if err != nil {
		return err
	}
	return c.dataRect(rect, payload)
}

// dataRect passes a pixel rectangle downstream in the active format.
func (c *ClientConn) dataRect(rect *Rectangle, payload []byte) error {
	if rect.EncType != EncCopyRect {
		c.lastServerEncoding = rect.EncType
	}
	c.pixelCount += uint64(rect.Area())
	c.metrics.rects.WithLabelValues(rect.EncType.String()).Inc()
	c.metrics.pixels.Add(float64(rect.Area()))

	c.renderMu.Lock()
	err := c.renderer.AcceptDamage(*rect, payload, c.caps.PixelFormat)
	c.renderMu.Unlock()
	if err != nil {
		return protocolErrorf("framebuffer update", "decoding %v: %v", rect, err)
	}
	return nil
}

func (c *ClientConn) readCursor(rect *Rectangle) error {
	pf := c.caps.PixelFormat
	var cur *Cursor
	switch rect.EncType {
	case EncCursorPseudo:
		enc := &CursorPseudoEncoding{}
		payload, err := enc.Read(c.br, &pf, rect)
		if err != nil {
			return err
		}
		if cur, err = enc.Decode(&pf, rect, payload); err != nil {
			return protocolErrorf("cursor", "%v", err)
		}
	case EncXCursorPseudo:
		enc := &XCursorPseudoEncoding{}
		payload, err := enc.Read(c.br, &pf, rect)
		if err != nil {
			return err
		}
		cur = enc.Decode(rect, payload)
	default:
		enc := &CursorWithAlphaPseudoEncoding{}
		payload, err := enc.Read(c.br, &pf, rect)
		if err != nil {
			return err
		}
		cur = enc.Decode(rect, payload)
	}
	if h, ok := c.ui.(CursorHandler); ok {
		h.SetCursor(cur)
	}
	return nil
}

func (c *ClientConn) setDesktopSize(w, h int) error {
	c.caps.Width, c.caps.Height = w, h
	return c.resizeFramebuffer()
}

func (c *ClientConn) setExtendedDesktopSize(reason, result, w, h int, screens ScreenSet) error {
	if reason == ResizeReasonClient && result != ResizeResultSuccess {
		logger.Errorf("SetDesktopSize failed: %d", result)
		return nil
	}
	if !screens.Validate(w, h) {
		logger.Warnf("server sent an invalid screen layout for %dx%d", w, h)
	}
	c.caps.Screens = screens
	c.caps.Width, c.caps.Height = w, h
	return c.resizeFramebuffer()
}

// resizeFramebuffer applies the new geometry before any further rectangle is read.
func (c *ClientConn) resizeFramebuffer() error {
	if c.sched.continuous {
		if err := c.enableContinuousUpdates(true); err != nil {
			return err
		}
	}
	return c.allocateFramebuffer()
}

func (c *ClientConn) setName(name string) {
	c.caps.Name = name
	if c.ui != nil {
		c.ui.OnNameChanged(name)
	}
}

func (c *ClientConn) setLEDState(state uint8) {
	c.caps.LEDState = state
	if c.ui != nil {
		c.ui.OnLEDStateChanged(state)
	}
}

func (c *ClientConn) handleServerMessage(msg ServerMessage) error {
	switch m := msg.(type) {
	case *Fence:
		return c.handleFence(m)

	case *EndOfContinuousUpdates:
		c.caps.ServerSupportsContinuousUpdates = true
		if c.sched.continuous {
			// the server stopped pushing, go back to explicit requests
			c.sched.continuous = false
			c.metrics.continuous.Set(0)
			return c.requestNewUpdate()
		}

	case *Bell:
		if h, ok := c.ui.(BellHandler); ok {
			h.Bell()
		}

	case *ServerCutText:
		c.serverCutText(m.Text)

	case *SetColorMapEntries:
		logger.Errorf("Invalid SetColourMapEntries from server!")
		return protocolErrorf("color map", "unexpected %v for a true colour client", m)

	default:
		return protocolErrorf("dispatch", "unhandled message %T", msg)
	}
	return nil
}

func (c *ClientConn) handleFence(msg *Fence) error {
	c.caps.ServerSupportsFence = true
	c.metrics.fencesReceived.Inc()

	if msg.Flags&FenceRequest != 0 {
		// everything is processed synchronously, so both block flags hold already
		if err := c.fence.echo(c, msg); err != nil {
			return err
		}
		c.metrics.fencesSent.Inc()
		return nil
	}

	if _, err := c.fence.complete(msg); err != nil {
		return err
	}
	c.spanEvent("fence echo", attribute.Int("vnc.fence_payload", len(msg.Payload)))

	if len(msg.Payload) == 0 {
		c.caps.FenceConfirmed = true
		if c.caps.ServerSupportsContinuousUpdates && !c.sched.continuous {
			logger.Info("Enabling continuous updates")
			c.sched.continuous = true
			return c.enableContinuousUpdates(true)
		}
		return nil
	}

	var pf PixelFormat
	if err := pf.Unmarshal(msg.Payload); err != nil {
		return protocolErrorf("fence", "echoed pixel format: %v", err)
	}
	if c.neg.state != pendingAwaitingFenceAck {
		return internalErrorf("fence", "pixel format echo while %v", c.neg.state)
	}
	c.commitFormat(pf, "fence")
	if c.neg.formatChange {
		return c.requestNewUpdate()
	}
	return nil
}

func (c *ClientConn) serverCutText(text []byte) {
	if !c.options.Values().AcceptClipboard {
		return
	}
	if len(text) == 0 {
		return
	}
	logger.Debugf("Got clipboard data (%d bytes)", len(text))
	if h, ok := c.ui.(ClipboardHandler); ok {
		h.ServerCutText(latin1ToUTF8(text))
	}
}

// handleOptions reacts to changed settings; without fences the switch waits
// for the next update to start.
func (c *ClientConn) handleOptions(v OptionValues) error {
	if !c.started {
		return nil
	}
	if err := validatePreferred(v.PreferredPixelFormat); err != nil {
		logger.Warnf("ignoring preferred pixel format: %v", err)
		return nil
	}
	c.neg.want(v.PreferredPixelFormat, c.caps.PixelFormat)
	if c.neg.formatChange && c.caps.FenceConfirmed {
		return c.requestNewUpdate()
	}
	return nil
}

func (c *ClientConn) refreshFramebuffer() error {
	c.sched.forceFullFrame = true
	// without fences the forced request waits for the next regular one
	if c.started && c.caps.FenceConfirmed {
		return c.requestNewUpdate()
	}
	return nil
}

// validatePreferred rejects formats the client cannot decode.
func validatePreferred(pf PixelFormat) error {
	if err := pf.Validate(); err != nil {
		return err
	}
	if pf.TrueColor == 0 {
		return errNoTrueColor
	}
	return nil
}

// latin1ToUTF8 converts ISO 8859-1 text as sent on the wire.
func latin1ToUTF8(b []byte) string {
	buf := make([]byte, 0, len(b))
	for _, ch := range b {
		buf = utf8.AppendRune(buf, rune(ch))
	}
	return string(buf)
}

// utf8ToLatin1 replaces runes outside ISO 8859-1 with '?'.
func utf8ToLatin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

// SendKeyEvent queues a key press or release.
func (c *ClientConn) SendKeyEvent(key Key, down bool) bool {
	return c.Post(func() error {
		msg := &KeyEvent{Key: key}
		if down {
			msg.Down = 1
		}
		return msg.Write(c)
	})
}

// SendPointerEvent queues a pointer position with the pressed buttons.
func (c *ClientConn) SendPointerEvent(x, y int, buttons ...Button) bool {
	return c.Post(func() error {
		if x < 0 || y < 0 || x >= c.caps.Width || y >= c.caps.Height {
			return nil
		}
		return (&PointerEvent{Mask: Mask(buttons...), X: uint16(x), Y: uint16(y)}).Write(c)
	})
}

// SendClipboard queues local clipboard text for the server.
func (c *ClientConn) SendClipboard(text string) bool {
	return c.Post(func() error {
		return (&ClientCutText{Text: utf8ToLatin1(text)}).Write(c)
	})
}

func (c *ClientConn) String() string {
	return fmt.Sprintf("%s %dx%d %q", c.c.RemoteAddr(), c.caps.Width, c.caps.Height, c.caps.Name)
}
