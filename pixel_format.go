// Implementation of RFC 6143 §7.4 Pixel Format Data Structure.

package vnc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var (
	// PixelFormat8bit returns 8 bit true colour pixel format (rgb332)
	PixelFormat8bit = NewPixelFormat(8)
	// PixelFormat16bit returns 16 bit pixel format (rgb565)
	PixelFormat16bit = NewPixelFormat(16)
	// PixelFormat32bit returns 32 bit pixel format (rgb888)
	PixelFormat32bit = NewPixelFormat(32)
)

// PixelFormat describes the way a pixel is formatted for a VNC connection
type PixelFormat struct {
	BPP                             uint8   // bits-per-pixel
	Depth                           uint8   // depth
	BigEndian                       uint8   // big-endian-flag
	TrueColor                       uint8   // true-color-flag
	RedMax, GreenMax, BlueMax       uint16  // red-, green-, blue-max (2^BPP-1)
	RedShift, GreenShift, BlueShift uint8   // red-, green-, blue-shift
	_                               [3]byte // padding
}

const pixelFormatLen = 16

// NewPixelFormat returns a populated little-endian true colour PixelFormat.
func NewPixelFormat(bpp uint8) PixelFormat {
	pf := PixelFormat{BPP: bpp, TrueColor: 1}
	switch bpp {
	case 8:
		pf.Depth = 8
		pf.RedMax, pf.GreenMax, pf.BlueMax = 7, 7, 3
		pf.RedShift, pf.GreenShift, pf.BlueShift = 5, 2, 0
	case 16:
		pf.Depth = 16
		pf.RedMax, pf.GreenMax, pf.BlueMax = 31, 63, 31
		pf.RedShift, pf.GreenShift, pf.BlueShift = 11, 5, 0
	default:
		pf.BPP = 32
		pf.Depth = 24
		pf.RedMax, pf.GreenMax, pf.BlueMax = 255, 255, 255
		pf.RedShift, pf.GreenShift, pf.BlueShift = 16, 8, 0
	}
	return pf
}

// Validate checks the fields a client can act upon.
func (pf PixelFormat) Validate() error {
	switch pf.BPP {
	case 8, 16, 32:
	default:
		return fmt.Errorf("invalid BPP value %v; must be 8, 16, or 32", pf.BPP)
	}
	if pf.Depth == 0 || pf.Depth > pf.BPP {
		return fmt.Errorf("invalid Depth value %v for %d bpp", pf.Depth, pf.BPP)
	}
	if pf.TrueColor == 1 && (pf.RedMax == 0 || pf.GreenMax == 0 || pf.BlueMax == 0) {
		return fmt.Errorf("true colour format with zero channel max")
	}
	return nil
}

// BytesPerPixel is the size of one pixel on the wire.
func (pf PixelFormat) BytesPerPixel() int {
	return int(pf.BPP) / 8
}

// Equal reports whether both formats describe the same pixel layout.
func (pf PixelFormat) Equal(other PixelFormat) bool {
	return pf == other
}

// Marshal implements the Marshaler interface
func (pf PixelFormat) Marshal() ([]byte, error) {
	if err := pf.Validate(); err != nil {
		return nil, err
	}

	buf := bPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bPool.Put(buf)

	if err := binary.Write(buf, binary.BigEndian, &pf); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Read reads from an io.Reader, and populates the PixelFormat
func (pf *PixelFormat) Read(r io.Reader) error {
	buf := make([]byte, pixelFormatLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return pf.Unmarshal(buf)
}

// Unmarshal implements the Unmarshaler interface
func (pf *PixelFormat) Unmarshal(data []byte) error {
	if len(data) != pixelFormatLen {
		return fmt.Errorf("pixel format must be %d bytes, got %d", pixelFormatLen, len(data))
	}
	var out PixelFormat
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, &out); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*pf = out
	return nil
}

// String implements the fmt.Stringer interface
func (pf PixelFormat) String() string {
	return fmt.Sprintf("{ bpp: %d depth: %d big-endian: %d true-color: %d red-max: %d green-max: %d blue-max: %d red-shift: %d green-shift: %d blue-shift: %d }",
		pf.BPP, pf.Depth, pf.BigEndian, pf.TrueColor, pf.RedMax, pf.GreenMax, pf.BlueMax, pf.RedShift, pf.GreenShift, pf.BlueShift)
}

func (pf PixelFormat) order() binary.ByteOrder {
	if pf.BigEndian == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
