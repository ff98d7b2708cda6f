package vnc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Protocol versions understood by the client.
const (
	ProtoVersion33 = "RFB 003.003\n"
	ProtoVersion37 = "RFB 003.007\n"
	ProtoVersion38 = "RFB 003.008\n"
)

// ClientHandler is one step of the connection handshake.
type ClientHandler interface {
	Handle(Conn) error
}

var (
	DefaultClientHandlers = []ClientHandler{
		&DefaultClientVersionHandler{},
		&DefaultClientSecurityHandler{},
		&DefaultClientClientInitHandler{},
		&DefaultClientServerInitHandler{},
	}
)

// DefaultClientVersionHandler answers the server's ProtocolVersion with
// the highest version both sides speak.
type DefaultClientVersionHandler struct{}

func (*DefaultClientVersionHandler) Handle(c Conn) error {
	var version [12]byte
	if _, err := io.ReadFull(c, version[:]); err != nil {
		return err
	}

	if !bytes.HasPrefix(version[:], []byte("RFB ")) || version[7] != '.' || version[11] != '\n' {
		return protocolErrorf("version", "invalid server version %q", version[:])
	}
	major, err1 := strconv.Atoi(string(version[4:7]))
	minor, err2 := strconv.Atoi(string(version[8:11]))
	if err1 != nil || err2 != nil {
		return protocolErrorf("version", "invalid server version %q", version[:])
	}
	if major != 3 || minor < 3 {
		return protocolErrorf("version", "unsupported server version %d.%d", major, minor)
	}

	proto := ProtoVersion38
	switch {
	case minor < 7:
		proto = ProtoVersion33
	case minor == 7:
		proto = ProtoVersion37
	}
	if _, err := c.Write([]byte(proto)); err != nil {
		return err
	}
	c.SetProtoVersion(proto)
	return c.Flush()
}

// DefaultClientSecurityHandler selects a security type both sides support
// and reads the SecurityResult.
type DefaultClientSecurityHandler struct{}

func (*DefaultClientSecurityHandler) Handle(c Conn) error {
	cfg := c.Config().(*ClientConfig)
	handlers := cfg.SecurityHandlers
	if len(handlers) == 0 {
		handlers = []SecurityHandler{&ClientAuthNone{}}
	}

	var secHandler SecurityHandler
	if c.Protocol() == ProtoVersion33 {
		// the server decides alone
		var secType uint32
		if err := binary.Read(c, binary.BigEndian, &secType); err != nil {
			return err
		}
		if secType == 0 {
			return protocolErrorf("security", "server refused connection: %s", readReason(c))
		}
		for _, h := range handlers {
			if uint32(h.Type()) == secType {
				secHandler = h
			}
		}
		if secHandler == nil {
			return protocolErrorf("security", "server requires unsupported security type %d", secType)
		}
	} else {
		var numSecurityTypes uint8
		if err := binary.Read(c, binary.BigEndian, &numSecurityTypes); err != nil {
			return err
		}
		if numSecurityTypes == 0 {
			return protocolErrorf("security", "server refused connection: %s", readReason(c))
		}
		secTypes := make([]byte, numSecurityTypes)
		if _, err := io.ReadFull(c, secTypes); err != nil {
			return err
		}

	findHandler:
		for _, h := range handlers {
			for _, st := range secTypes {
				if SecurityType(st) == h.Type() {
					secHandler = h
					break findHandler
				}
			}
		}
		if secHandler == nil {
			return protocolErrorf("security", "no supported security type among %v", secTypes)
		}
		if _, err := c.Write([]byte{byte(secHandler.Type())}); err != nil {
			return err
		}
		if err := c.Flush(); err != nil {
			return err
		}
	}

	if err := secHandler.Auth(c); err != nil {
		return err
	}

	// 3.3 and 3.7 skip the result for the None type
	if secHandler.Type() == SecTypeNone && c.Protocol() != ProtoVersion38 {
		return nil
	}
	var authCode uint32
	if err := binary.Read(c, binary.BigEndian, &authCode); err != nil {
		return err
	}
	if authCode != 0 {
		reason := "authentication failed"
		if c.Protocol() == ProtoVersion38 {
			reason = readReason(c)
		}
		return protocolErrorf("security", "%v: %s", secHandler.Type(), reason)
	}
	return nil
}

// DefaultClientClientInitHandler sends the shared flag.
type DefaultClientClientInitHandler struct{}

func (*DefaultClientClientInitHandler) Handle(c Conn) error {
	cfg := c.Config().(*ClientConfig)
	var shared uint8
	if !cfg.Exclusive {
		shared = 1
	}
	if err := binary.Write(c, binary.BigEndian, shared); err != nil {
		return err
	}
	return c.Flush()
}

// DefaultClientServerInitHandler reads ServerInit and starts the session.
type DefaultClientServerInitHandler struct{}

func (*DefaultClientServerInitHandler) Handle(c Conn) error {
	srvInit := ServerInit{}

	if err := binary.Read(c, binary.BigEndian, &srvInit.FBWidth); err != nil {
		return err
	}
	if err := binary.Read(c, binary.BigEndian, &srvInit.FBHeight); err != nil {
		return err
	}
	pf, err := readN(c, pixelFormatLen)
	if err != nil {
		return err
	}
	if err := srvInit.PixelFormat.Unmarshal(pf); err != nil {
		return protocolErrorf("server init", "%v", err)
	}
	if err := binary.Read(c, binary.BigEndian, &srvInit.NameLength); err != nil {
		return err
	}
	if srvInit.NameLength > 1<<16 {
		return protocolErrorf("server init", "desktop name of %d bytes", srvInit.NameLength)
	}
	srvInit.NameText = make([]byte, srvInit.NameLength)
	if _, err := io.ReadFull(c, srvInit.NameText); err != nil {
		return err
	}

	cc, ok := c.(*ClientConn)
	if !ok {
		return fmt.Errorf("server init handler needs a *ClientConn, got %T", c)
	}
	return cc.serverInit(&srvInit)
}
