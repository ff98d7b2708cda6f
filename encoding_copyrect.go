package vnc

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"io"
)

// CopyRectEncoding moves an already displayed area to the rectangle.
type CopyRectEncoding struct{}

func (*CopyRectEncoding) Type() EncodingType { return EncCopyRect }

func (*CopyRectEncoding) Read(r io.Reader, _ *PixelFormat, _ *Rectangle) ([]byte, error) {
	return readN(r, 4)
}

func (*CopyRectEncoding) Draw(dst draw.Image, _ *PixelFormat, rect *Rectangle, payload []byte) error {
	if len(payload) != 4 {
		return fmt.Errorf("copyrect payload must be 4 bytes, got %d", len(payload))
	}
	sx := int(binary.BigEndian.Uint16(payload[0:]))
	sy := int(binary.BigEndian.Uint16(payload[2:]))

	if rgb, ok := dst.(*RGBImage); ok {
		rgb.Copy(rect.Bounds(), image.Pt(sx, sy))
		return nil
	}
	// copy through a scratch image so overlapping areas are read before written
	cpyIm := image.NewRGBA(image.Rect(0, 0, int(rect.Width), int(rect.Height)))
	draw.Draw(cpyIm, cpyIm.Bounds(), dst, image.Point{X: sx, Y: sy}, draw.Src)
	draw.Draw(dst, rect.Bounds(), cpyIm, image.Point{}, draw.Src)
	return nil
}
