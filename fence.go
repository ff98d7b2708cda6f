package vnc

import (
	"encoding/binary"
	"fmt"
)

// FenceFlags are the flags of a Fence message.
type FenceFlags uint32

const (
	FenceBlockBefore FenceFlags = 1 << 0
	FenceBlockAfter  FenceFlags = 1 << 1
	FenceSyncNext    FenceFlags = 1 << 2
	FenceRequest     FenceFlags = 1 << 31

	// fenceFlagsSupported are the flags echoed back to a server request.
	fenceFlagsSupported = FenceBlockBefore | FenceBlockAfter
)

const maxFencePayload = 64

func (f FenceFlags) String() string {
	return fmt.Sprintf("%#x", uint32(f))
}

// Fence has the same layout in both directions.
type Fence struct {
	Flags   FenceFlags
	Payload []byte
}

func (msg *Fence) String() string {
	return fmt.Sprintf("flags: %v, payload: %d bytes", msg.Flags, len(msg.Payload))
}

func (*Fence) Type() ServerMessageType {
	return ServerFenceMsgType
}

func (*Fence) Read(c Conn) (ServerMessage, error) {
	var hdr struct {
		_      [3]byte
		Flags  uint32
		Length uint8
	}
	if err := binary.Read(c, binary.BigEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Length > maxFencePayload {
		return nil, protocolErrorf("fence", "payload of %d bytes exceeds %d", hdr.Length, maxFencePayload)
	}
	payload, err := readN(c, int(hdr.Length))
	if err != nil {
		return nil, err
	}
	return &Fence{Flags: FenceFlags(hdr.Flags), Payload: payload}, nil
}

func (msg *Fence) Write(c Conn) error {
	if len(msg.Payload) > maxFencePayload {
		return fmt.Errorf("fence payload of %d bytes exceeds %d", len(msg.Payload), maxFencePayload)
	}
	return writeMessage(c, ClientFenceMsgType, [3]byte{}, uint32(msg.Flags), uint8(len(msg.Payload)), msg.Payload)
}

// fenceChannel tracks the single client fence that may be awaiting its echo.
// The wire carries no sequence number, so a reply is matched to the one
// outstanding fence.
type fenceChannel struct {
	outstanding bool
	sent        Fence
}

// send writes a client fence request; only one may be outstanding.
func (f *fenceChannel) send(c Conn, flags FenceFlags, payload []byte) error {
	if f.outstanding {
		return internalErrorf("fence", "client fence sent while %v is still outstanding", &f.sent)
	}
	msg := Fence{Flags: flags | FenceRequest, Payload: payload}
	if err := msg.Write(c); err != nil {
		return err
	}
	f.outstanding = true
	f.sent = msg
	return nil
}

// echo answers a fence request initiated by the server.
func (f *fenceChannel) echo(c Conn, req *Fence) error {
	reply := Fence{Flags: req.Flags & fenceFlagsSupported, Payload: req.Payload}
	return reply.Write(c)
}

// complete matches an echoed fence with the outstanding request.
func (f *fenceChannel) complete(reply *Fence) (*Fence, error) {
	if !f.outstanding {
		return nil, protocolErrorf("fence", "unexpected fence response %v", reply)
	}
	if len(reply.Payload) != len(f.sent.Payload) {
		return nil, protocolErrorf("fence", "fence response carries %d bytes, sent %d", len(reply.Payload), len(f.sent.Payload))
	}
	f.outstanding = false
	sent := f.sent
	return &sent, nil
}

func (f *fenceChannel) reset() {
	f.outstanding = false
	f.sent = Fence{}
}
