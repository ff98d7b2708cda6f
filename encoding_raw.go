package vnc

import (
	"fmt"
	"image/draw"
	"io"
)

// RawEncoding carries width*height pixels in the connection's pixel format.
type RawEncoding struct{}

func (*RawEncoding) Type() EncodingType { return EncRaw }

// Read implements the Encoding interface.
func (*RawEncoding) Read(r io.Reader, pf *PixelFormat, rect *Rectangle) ([]byte, error) {
	size := rect.Area() * pf.BytesPerPixel()
	if size > maxRectPayload {
		return nil, protocolErrorf("raw", "%v carries %d bytes", rect, size)
	}
	return readN(r, size)
}

// Draw paints the pixel payload into dst at the rectangle's position.
func (*RawEncoding) Draw(dst draw.Image, pf *PixelFormat, rect *Rectangle, payload []byte) error {
	if pf.TrueColor == 0 {
		return errNoTrueColor
	}
	bpp := pf.BytesPerPixel()
	if len(payload) < rect.Area()*bpp {
		return fmt.Errorf("raw payload too short: %d bytes for %v", len(payload), rect)
	}
	rgb, _ := dst.(*RGBImage)
	i := 0
	for y := 0; y < int(rect.Height); y++ {
		for x := 0; x < int(rect.Width); x++ {
			col := pixelToRGBA(pf, payload[i:i+bpp])
			if rgb != nil {
				rgb.SetRGBA(int(rect.X)+x, int(rect.Y)+y, col)
			} else {
				dst.Set(int(rect.X)+x, int(rect.Y)+y, col)
			}
			i += bpp
		}
	}
	return nil
}
