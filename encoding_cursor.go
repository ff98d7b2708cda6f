package vnc

import (
	"encoding/binary"
	"image"
	"image/color"
	"io"
)

// Cursor is a cursor shape sent by the server, converted to RGBA.
type Cursor struct {
	Hotspot image.Point
	Image   *image.NRGBA
}

// CursorHandler receives cursor shape changes when the client draws the cursor locally.
type CursorHandler interface {
	SetCursor(cur *Cursor)
}

// CursorPseudoEncoding is a pixel image in the connection format plus a bitmask.
type CursorPseudoEncoding struct{}

func (*CursorPseudoEncoding) Type() EncodingType { return EncCursorPseudo }

func (*CursorPseudoEncoding) Read(r io.Reader, pf *PixelFormat, rect *Rectangle) ([]byte, error) {
	if err := checkCursorSize(rect); err != nil {
		return nil, err
	}
	maskLen := (int(rect.Width) + 7) / 8 * int(rect.Height)
	return readN(r, rect.Area()*pf.BytesPerPixel()+maskLen)
}

// Decode builds the cursor; the rectangle position is the hotspot.
func (*CursorPseudoEncoding) Decode(pf *PixelFormat, rect *Rectangle, payload []byte) (*Cursor, error) {
	if pf.TrueColor == 0 {
		return nil, errNoTrueColor
	}
	w, h := int(rect.Width), int(rect.Height)
	bpp := pf.BytesPerPixel()
	mask := payload[w*h*bpp:]
	stride := (w + 7) / 8

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*stride+x/8]&(0x80>>uint(x%8)) == 0 {
				continue
			}
			off := (y*w + x) * bpp
			col := pixelToRGBA(pf, payload[off:off+bpp])
			img.SetNRGBA(x, y, color.NRGBA{R: col.R, G: col.G, B: col.B, A: 0xff})
		}
	}
	return &Cursor{Hotspot: image.Pt(int(rect.X), int(rect.Y)), Image: img}, nil
}

// CursorWithAlphaPseudoEncoding wraps an RGBA cursor image in another encoding.
// Only the raw sub-encoding is accepted.
type CursorWithAlphaPseudoEncoding struct{}

func (*CursorWithAlphaPseudoEncoding) Type() EncodingType { return EncCursorWithAlphaPseudo }

func (*CursorWithAlphaPseudoEncoding) Read(r io.Reader, _ *PixelFormat, rect *Rectangle) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if enc := EncodingType(int32(binary.BigEndian.Uint32(hdr[:]))); enc != EncRaw {
		return nil, protocolErrorf("cursor", "unsupported cursor sub-encoding %v", enc)
	}
	if err := checkCursorSize(rect); err != nil {
		return nil, err
	}
	return readN(r, rect.Area()*4)
}

func (*CursorWithAlphaPseudoEncoding) Decode(rect *Rectangle, payload []byte) *Cursor {
	w, h := int(rect.Width), int(rect.Height)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// the wire carries premultiplied RGBA
	for i := 0; i < w*h; i++ {
		r, g, b, a := payload[4*i], payload[4*i+1], payload[4*i+2], payload[4*i+3]
		if a != 0 && a != 0xff {
			r = uint8(int(r) * 0xff / int(a))
			g = uint8(int(g) * 0xff / int(a))
			b = uint8(int(b) * 0xff / int(a))
		}
		copy(img.Pix[4*i:], []byte{r, g, b, a})
	}
	return &Cursor{Hotspot: image.Pt(int(rect.X), int(rect.Y)), Image: img}
}

func checkCursorSize(rect *Rectangle) error {
	if rect.Width > maxCursorSize || rect.Height > maxCursorSize {
		return protocolErrorf("cursor", "%dx%d cursor exceeds %dx%d", rect.Width, rect.Height, maxCursorSize, maxCursorSize)
	}
	return nil
}
