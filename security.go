package vnc

import (
	"encoding/binary"
	"fmt"
	"io"
)

type SecurityType uint8

const (
	SecTypeUnknown = SecurityType(0)
	SecTypeNone    = SecurityType(1)
	SecTypeVNC     = SecurityType(2)
)

func (t SecurityType) String() string {
	switch t {
	case SecTypeNone:
		return "None"
	case SecTypeVNC:
		return "VNC"
	}
	return fmt.Sprintf("SecurityType(%d)", uint8(t))
}

// SecurityHandler performs one security type after it has been selected.
type SecurityHandler interface {
	Type() SecurityType
	Auth(Conn) error
}

// ClientAuthNone is the "none" authentication. See 7.2.1.
type ClientAuthNone struct{}

func (*ClientAuthNone) Type() SecurityType {
	return SecTypeNone
}

func (*ClientAuthNone) Auth(conn Conn) error {
	return nil
}

// readReason reads the length prefixed failure string servers send with a refusal.
func readReason(c Conn) string {
	var n uint32
	if err := binary.Read(c, binary.BigEndian, &n); err != nil {
		return "unknown reason"
	}
	if n > 1<<16 {
		return "unknown reason"
	}
	reason := make([]byte, n)
	if _, err := io.ReadFull(c, reason); err != nil {
		return "unknown reason"
	}
	return string(reason)
}
