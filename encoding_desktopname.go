package vnc

import (
	"encoding/binary"
	"io"
)

// DesktopNamePseudoEncoding carries a new desktop name.
type DesktopNamePseudoEncoding struct{}

func (*DesktopNamePseudoEncoding) Type() EncodingType { return EncDesktopNamePseudo }

// Read implements the Encoding interface.
func (*DesktopNamePseudoEncoding) Read(r io.Reader, _ *PixelFormat, _ *Rectangle) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > 1<<16 {
		return nil, protocolErrorf("desktop name", "name of %d bytes", length)
	}
	return readN(r, int(length))
}
