package vnc

import "io"

// LED bits of the LEDState pseudo-encoding.
const (
	LEDScrollLock = 1 << 0
	LEDNumLock    = 1 << 1
	LEDCapsLock   = 1 << 2
)

// LEDStatePseudoEncoding carries the server's keyboard LED state in one byte.
type LEDStatePseudoEncoding struct{}

func (*LEDStatePseudoEncoding) Type() EncodingType { return EncLEDStatePseudo }

func (*LEDStatePseudoEncoding) Read(r io.Reader, _ *PixelFormat, _ *Rectangle) ([]byte, error) {
	return readN(r, 1)
}
