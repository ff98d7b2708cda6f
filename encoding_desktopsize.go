package vnc

import (
	"encoding/binary"
	"io"
)

// Extended desktop size reasons, carried in the rectangle's x position.
const (
	ResizeReasonServer      = 0
	ResizeReasonClient      = 1
	ResizeReasonOtherClient = 2
)

// Extended desktop size results, carried in the rectangle's y position.
const (
	ResizeResultSuccess       = 0
	ResizeResultProhibited    = 1
	ResizeResultOutOfMemory   = 2
	ResizeResultInvalidLayout = 3
)

// DesktopSizePseudoEncoding announces a new framebuffer size in the rectangle size.
type DesktopSizePseudoEncoding struct{}

func (*DesktopSizePseudoEncoding) Type() EncodingType { return EncDesktopSizePseudo }

// Read implements the Encoding interface.
func (*DesktopSizePseudoEncoding) Read(io.Reader, *PixelFormat, *Rectangle) ([]byte, error) {
	return nil, nil
}

// ExtendedDesktopSizePseudoEncoding adds the screen layout and the outcome of
// a client request to the new size.
type ExtendedDesktopSizePseudoEncoding struct{}

func (*ExtendedDesktopSizePseudoEncoding) Type() EncodingType { return EncExtendedDesktopSizePseudo }

func (*ExtendedDesktopSizePseudoEncoding) Read(r io.Reader, _ *PixelFormat, _ *Rectangle) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	screens, err := readN(r, int(hdr[0])*screenLen)
	if err != nil {
		return nil, err
	}
	return append(hdr[:], screens...), nil
}

// Screens parses the layout from a payload returned by Read.
func (*ExtendedDesktopSizePseudoEncoding) Screens(payload []byte) ScreenSet {
	n := int(payload[0])
	screens := make(ScreenSet, 0, n)
	for i := 0; i < n; i++ {
		b := payload[4+i*screenLen:]
		screens = append(screens, Screen{
			ID:     binary.BigEndian.Uint32(b[0:]),
			X:      binary.BigEndian.Uint16(b[4:]),
			Y:      binary.BigEndian.Uint16(b[6:]),
			Width:  binary.BigEndian.Uint16(b[8:]),
			Height: binary.BigEndian.Uint16(b[10:]),
			Flags:  binary.BigEndian.Uint32(b[12:]),
		})
	}
	return screens
}
