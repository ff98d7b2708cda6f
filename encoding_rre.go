package vnc

import (
	"bytes"
	"encoding/binary"
	"image/draw"
	"io"
)

// RREEncoding is a background colour followed by solid sub-rectangles.
type RREEncoding struct{}

func (*RREEncoding) Type() EncodingType { return EncRRE }

func (*RREEncoding) Read(r io.Reader, pf *PixelFormat, rect *Rectangle) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	bpp := pf.BytesPerPixel()
	size := uint64(bpp) + uint64(n)*uint64(bpp+8)
	if uint64(n) > uint64(rect.Area()) || size > maxRectPayload {
		return nil, protocolErrorf("rre", "%d sub-rectangles in %v", n, rect)
	}
	body, err := readN(r, int(size))
	if err != nil {
		return nil, err
	}
	return append(hdr[:], body...), nil
}

func (*RREEncoding) Draw(dst draw.Image, pf *PixelFormat, rect *Rectangle, payload []byte) error {
	r := bytes.NewReader(payload)
	numOfSubrectangles, err := ReadUint32(r)
	if err != nil {
		return err
	}

	//read whole-rect background color
	bgColor, err := ReadColor(r, pf)
	if err != nil {
		return err
	}
	imgRect := rect.Bounds()
	FillRect(dst, &imgRect, bgColor)

	//read all individual rects (color=bytesPerPixel + x=16b + y=16b + w=16b + h=16b)
	for i := 0; i < int(numOfSubrectangles); i++ {
		color, err := ReadColor(r, pf)
		if err != nil {
			return err
		}
		var sub [4]uint16
		if err := binary.Read(r, binary.BigEndian, &sub); err != nil {
			return err
		}
		subRect := MakeRect(int(rect.X+sub[0]), int(rect.Y+sub[1]), int(sub[2]), int(sub[3]))
		subRect = subRect.Intersect(imgRect)
		FillRect(dst, &subRect, color)
	}

	return nil
}
