package vnc

import (
	"image"
	"image/color"
	"io"
)

// XCursorPseudoEncoding is a two colour cursor with a bitmap and a mask.
type XCursorPseudoEncoding struct{}

func (*XCursorPseudoEncoding) Type() EncodingType { return EncXCursorPseudo }

// Read implements the Encoding interface. An empty rectangle hides the cursor
// and carries no payload.
func (*XCursorPseudoEncoding) Read(r io.Reader, _ *PixelFormat, rect *Rectangle) ([]byte, error) {
	if rect.Area() == 0 {
		return nil, nil
	}
	if err := checkCursorSize(rect); err != nil {
		return nil, err
	}
	bitmapsize := (int(rect.Width) + 7) / 8 * int(rect.Height)
	return readN(r, 6+2*bitmapsize)
}

func (*XCursorPseudoEncoding) Decode(rect *Rectangle, payload []byte) *Cursor {
	w, h := int(rect.Width), int(rect.Height)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	cur := &Cursor{Hotspot: image.Pt(int(rect.X), int(rect.Y)), Image: img}
	if len(payload) == 0 {
		return cur
	}
	primary := color.NRGBA{R: payload[0], G: payload[1], B: payload[2], A: 0xff}
	secondary := color.NRGBA{R: payload[3], G: payload[4], B: payload[5], A: 0xff}
	stride := (w + 7) / 8
	bitmap := payload[6 : 6+stride*h]
	bitmask := payload[6+stride*h:]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bit := byte(0x80 >> uint(x%8))
			if bitmask[y*stride+x/8]&bit == 0 {
				continue
			}
			if bitmap[y*stride+x/8]&bit != 0 {
				img.SetNRGBA(x, y, primary)
			} else {
				img.SetNRGBA(x, y, secondary)
			}
		}
	}
	return cur
}
