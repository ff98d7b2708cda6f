package vnc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/amitbet/vncclone/logger"
)

// ServerMessageType represents a Server-to-Client RFB message type.
type ServerMessageType uint8

// Server-to-Client message types.
const (
	FramebufferUpdateMsgType      ServerMessageType = 0
	SetColorMapEntriesMsgType     ServerMessageType = 1
	BellMsgType                   ServerMessageType = 2
	ServerCutTextMsgType          ServerMessageType = 3
	EndOfContinuousUpdatesMsgType ServerMessageType = 150
	ServerFenceMsgType            ServerMessageType = 248
)

func (t ServerMessageType) String() string {
	switch t {
	case FramebufferUpdateMsgType:
		return "FramebufferUpdate"
	case SetColorMapEntriesMsgType:
		return "SetColorMapEntries"
	case BellMsgType:
		return "Bell"
	case ServerCutTextMsgType:
		return "ServerCutText"
	case EndOfContinuousUpdatesMsgType:
		return "EndOfContinuousUpdates"
	case ServerFenceMsgType:
		return "ServerFence"
	}
	return fmt.Sprintf("ServerMessageType(%d)", uint8(t))
}

// ServerMessage is a message read from the server after its type byte.
type ServerMessage interface {
	Type() ServerMessageType
	Read(Conn) (ServerMessage, error)
}

// ClientMessageType represents a Client-to-Server RFB message type.
type ClientMessageType uint8

// Client-to-Server message types.
const (
	SetPixelFormatMsgType           ClientMessageType = 0
	SetEncodingsMsgType             ClientMessageType = 2
	FramebufferUpdateRequestMsgType ClientMessageType = 3
	KeyEventMsgType                 ClientMessageType = 4
	PointerEventMsgType             ClientMessageType = 5
	ClientCutTextMsgType            ClientMessageType = 6
	EnableContinuousUpdatesMsgType  ClientMessageType = 150
	ClientFenceMsgType              ClientMessageType = 248
	QEMUClientMsgType               ClientMessageType = 255
)

// ClientMessage is a message the client sends.
type ClientMessage interface {
	Type() ClientMessageType
	Write(Conn) error
}

// writeMessage marshals the type byte and fields in one write and flushes.
func writeMessage(c Conn, t ClientMessageType, fields ...interface{}) error {
	buf := bPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bPool.Put(buf)

	buf.WriteByte(byte(t))
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return err
		}
	}
	if _, err := c.Write(buf.Bytes()); err != nil {
		return err
	}
	return c.Flush()
}

// SetPixelFormat holds the wire format message.
type SetPixelFormat struct {
	PF PixelFormat // pixel-format
}

func (msg *SetPixelFormat) String() string {
	return fmt.Sprintf("%s", msg.PF)
}

func (*SetPixelFormat) Type() ClientMessageType {
	return SetPixelFormatMsgType
}

func (msg *SetPixelFormat) Write(c Conn) error {
	pf, err := msg.PF.Marshal()
	if err != nil {
		return err
	}
	return writeMessage(c, msg.Type(), [3]byte{}, pf)
}

// SetEncodings holds the wire format message, sans encoding-type field.
type SetEncodings struct {
	Encodings []EncodingType
}

func (msg *SetEncodings) String() string {
	return fmt.Sprintf("encodings[]: { %v }", msg.Encodings)
}

func (*SetEncodings) Type() ClientMessageType {
	return SetEncodingsMsgType
}

func (msg *SetEncodings) Write(c Conn) error {
	return writeMessage(c, msg.Type(), [1]byte{}, uint16(len(msg.Encodings)), msg.Encodings)
}

// FramebufferUpdateRequest holds the wire format message.
type FramebufferUpdateRequest struct {
	Inc           uint8  // incremental
	X, Y          uint16 // x-, y-position
	Width, Height uint16 // width, height
}

func (msg *FramebufferUpdateRequest) String() string {
	return fmt.Sprintf("incremental: %d, x: %d, y: %d, width: %d, height: %d", msg.Inc, msg.X, msg.Y, msg.Width, msg.Height)
}

func (*FramebufferUpdateRequest) Type() ClientMessageType {
	return FramebufferUpdateRequestMsgType
}

func (msg *FramebufferUpdateRequest) Write(c Conn) error {
	return writeMessage(c, msg.Type(), msg)
}

// EnableContinuousUpdates turns server push on or off for an area.
type EnableContinuousUpdates struct {
	Enable        uint8
	X, Y          uint16
	Width, Height uint16
}

func (*EnableContinuousUpdates) Type() ClientMessageType {
	return EnableContinuousUpdatesMsgType
}

func (msg *EnableContinuousUpdates) Write(c Conn) error {
	return writeMessage(c, msg.Type(), msg)
}

// Key is an X11 keysym.
type Key uint32

// KeyEvent holds the wire format message.
type KeyEvent struct {
	Down uint8   // down-flag
	_    [2]byte // padding
	Key  Key     // key
}

func (msg *KeyEvent) String() string {
	return fmt.Sprintf("down: %d, key: %v", msg.Down, msg.Key)
}

func (*KeyEvent) Type() ClientMessageType {
	return KeyEventMsgType
}

func (msg *KeyEvent) Write(c Conn) error {
	return writeMessage(c, msg.Type(), msg)
}

// QEMUExtendedKeyEvent carries the raw keycode next to the keysym.
type QEMUExtendedKeyEvent struct {
	SubType uint8
	Down    uint16
	Key     Key
	KeyCode uint32
}

func (*QEMUExtendedKeyEvent) Type() ClientMessageType {
	return QEMUClientMsgType
}

func (msg *QEMUExtendedKeyEvent) Write(c Conn) error {
	return writeMessage(c, msg.Type(), msg)
}

// PointerEvent holds the wire format message.
type PointerEvent struct {
	Mask uint8  // button-mask
	X, Y uint16 // x-, y-position
}

func (msg *PointerEvent) String() string {
	return fmt.Sprintf("mask %d, x: %d, y: %d", msg.Mask, msg.X, msg.Y)
}

func (*PointerEvent) Type() ClientMessageType {
	return PointerEventMsgType
}

func (msg *PointerEvent) Write(c Conn) error {
	return writeMessage(c, msg.Type(), msg)
}

// ClientCutText holds the wire format message, sans the text field.
type ClientCutText struct {
	Text []byte
}

func (msg *ClientCutText) String() string {
	return fmt.Sprintf("length: %d, text: %s", len(msg.Text), msg.Text)
}

func (*ClientCutText) Type() ClientMessageType {
	return ClientCutTextMsgType
}

func (msg *ClientCutText) Write(c Conn) error {
	return writeMessage(c, msg.Type(), [3]byte{}, uint32(len(msg.Text)), msg.Text)
}

type ServerCutText struct {
	Text []byte
}

func (msg *ServerCutText) String() string {
	return fmt.Sprintf("length: %d text: %s", len(msg.Text), msg.Text)
}

func (*ServerCutText) Type() ServerMessageType {
	return ServerCutTextMsgType
}

// defaultMaxCutText bounds a single clipboard transfer unless
// ClientConfig.MaxCutText says otherwise.
const defaultMaxCutText uint32 = 1 << 20

func cutTextLimit(c Conn) uint32 {
	if cfg, ok := c.Config().(*ClientConfig); ok && cfg != nil && cfg.MaxCutText != 0 {
		return cfg.MaxCutText
	}
	return defaultMaxCutText
}

// Read skips text over the connection's limit and returns it empty.
func (*ServerCutText) Read(c Conn) (ServerMessage, error) {
	var hdr struct {
		_      [3]byte
		Length uint32
	}
	if err := binary.Read(c, binary.BigEndian, &hdr); err != nil {
		return nil, err
	}
	if limit := cutTextLimit(c); hdr.Length > limit {
		logger.Infof("skipping %d bytes of server cut text, limit is %d", hdr.Length, limit)
		if _, err := io.CopyN(io.Discard, c, int64(hdr.Length)); err != nil {
			return nil, err
		}
		return &ServerCutText{}, nil
	}
	text, err := readN(c, int(hdr.Length))
	if err != nil {
		return nil, err
	}
	return &ServerCutText{Text: text}, nil
}

type Bell struct{}

func (*Bell) String() string {
	return "bell"
}

func (*Bell) Type() ServerMessageType {
	return BellMsgType
}

func (*Bell) Read(c Conn) (ServerMessage, error) {
	return &Bell{}, nil
}

// SetColorMapEntries is read only to keep the stream in sync before the
// connection is failed; the client never asks for a palette format.
type SetColorMapEntries struct {
	FirstColor uint16
	ColorsNum  uint16
}

func (msg *SetColorMapEntries) String() string {
	return fmt.Sprintf("first color: %d, numcolors: %d", msg.FirstColor, msg.ColorsNum)
}

func (*SetColorMapEntries) Type() ServerMessageType {
	return SetColorMapEntriesMsgType
}

func (*SetColorMapEntries) Read(c Conn) (ServerMessage, error) {
	var hdr struct {
		_          [1]byte
		FirstColor uint16
		ColorsNum  uint16
	}
	if err := binary.Read(c, binary.BigEndian, &hdr); err != nil {
		return nil, err
	}
	if _, err := io.CopyN(io.Discard, c, int64(hdr.ColorsNum)*6); err != nil {
		return nil, err
	}
	return &SetColorMapEntries{FirstColor: hdr.FirstColor, ColorsNum: hdr.ColorsNum}, nil
}

// EndOfContinuousUpdates tells the client continuous updates are supported or have stopped.
type EndOfContinuousUpdates struct{}

func (*EndOfContinuousUpdates) Type() ServerMessageType {
	return EndOfContinuousUpdatesMsgType
}

func (*EndOfContinuousUpdates) Read(c Conn) (ServerMessage, error) {
	return &EndOfContinuousUpdates{}, nil
}

// DefaultServerMessages are the messages the client understands besides FramebufferUpdate.
var DefaultServerMessages = []ServerMessage{
	&SetColorMapEntries{},
	&Bell{},
	&ServerCutText{},
	&EndOfContinuousUpdates{},
	&Fence{},
}
