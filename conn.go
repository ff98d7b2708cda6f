package vnc

import (
	"io"
	"net"
)

// Conn is the view of a connection that messages and handshake handlers work on.
type Conn interface {
	io.ReadWriteCloser
	Conn() net.Conn
	Config() interface{}
	Protocol() string
	SetProtoVersion(string)
	PixelFormat() PixelFormat
	Width() uint16
	Height() uint16
	DesktopName() []byte
	Flush() error
}
