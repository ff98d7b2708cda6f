package vnc

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
)

var errNoTrueColor = errors.New("support for non true color formats was not implemented")

// ReadColor reads one pixel in the given format from r.
func ReadColor(r io.Reader, pf *PixelFormat) (*color.RGBA, error) {
	if pf.TrueColor == 0 {
		return nil, errNoTrueColor
	}
	buf := make([]byte, pf.BytesPerPixel())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	col := pixelToRGBA(pf, buf)
	return &col, nil
}

func pixelToRGBA(pf *PixelFormat, b []byte) color.RGBA {
	order := pf.order()
	var pixel uint32
	switch pf.BPP {
	case 8:
		pixel = uint32(b[0])
	case 16:
		pixel = uint32(order.Uint16(b))
	case 32:
		pixel = order.Uint32(b)
	}
	return color.RGBA{
		R: scaleChannel(pixel>>pf.RedShift, pf.RedMax),
		G: scaleChannel(pixel>>pf.GreenShift, pf.GreenMax),
		B: scaleChannel(pixel>>pf.BlueShift, pf.BlueMax),
		A: 0xff,
	}
}

func scaleChannel(v uint32, max uint16) uint8 {
	if max == 0 {
		return 0
	}
	v &= uint32(max)
	return uint8(v * 255 / uint32(max))
}

// rgbaToPixel is the inverse of pixelToRGBA.
func rgbaToPixel(pf *PixelFormat, c color.RGBA) []byte {
	pixel := uint32(c.R)*uint32(pf.RedMax)/255<<pf.RedShift |
		uint32(c.G)*uint32(pf.GreenMax)/255<<pf.GreenShift |
		uint32(c.B)*uint32(pf.BlueMax)/255<<pf.BlueShift
	order := pf.order()
	out := make([]byte, pf.BytesPerPixel())
	switch pf.BPP {
	case 8:
		out[0] = byte(pixel)
	case 16:
		order.PutUint16(out, uint16(pixel))
	case 32:
		order.PutUint32(out, pixel)
	}
	return out
}

func ReadUint8(r io.Reader) (uint8, error) {
	var myUint uint8
	if err := binary.Read(r, binary.BigEndian, &myUint); err != nil {
		return 0, err
	}

	return myUint, nil
}

func ReadUint16(r io.Reader) (uint16, error) {
	var myUint uint16
	if err := binary.Read(r, binary.BigEndian, &myUint); err != nil {
		return 0, err
	}

	return myUint, nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var myUint uint32
	if err := binary.Read(r, binary.BigEndian, &myUint); err != nil {
		return 0, err
	}

	return myUint, nil
}

func MakeRect(x, y, width, height int) image.Rectangle {
	return image.Rectangle{Min: image.Point{X: x, Y: y}, Max: image.Point{X: x + width, Y: y + height}}
}

func FillRect(img draw.Image, rect *image.Rectangle, c color.Color) {
	if rgb, ok := img.(*RGBImage); ok {
		rgb.Fill(*rect, color.RGBAModel.Convert(c).(color.RGBA))
		return
	}
	draw.Draw(img, *rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}
