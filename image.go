package vnc

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

// Rectangle represents the header of one rectangle of a framebuffer update.
type Rectangle struct {
	X, Y          uint16
	Width, Height uint16
	EncType       EncodingType
}

const rectangleHeaderLen = 12

// Read populates the rectangle header from r.
func (r *Rectangle) Read(rd io.Reader) error {
	var hdr [rectangleHeaderLen]byte
	if _, err := io.ReadFull(rd, hdr[:]); err != nil {
		return err
	}
	r.X = binary.BigEndian.Uint16(hdr[0:])
	r.Y = binary.BigEndian.Uint16(hdr[2:])
	r.Width = binary.BigEndian.Uint16(hdr[4:])
	r.Height = binary.BigEndian.Uint16(hdr[6:])
	r.EncType = EncodingType(int32(binary.BigEndian.Uint32(hdr[8:])))
	return nil
}

// Write marshals the rectangle header to w.
func (r *Rectangle) Write(w io.Writer) error {
	var hdr [rectangleHeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:], r.X)
	binary.BigEndian.PutUint16(hdr[2:], r.Y)
	binary.BigEndian.PutUint16(hdr[4:], r.Width)
	binary.BigEndian.PutUint16(hdr[6:], r.Height)
	binary.BigEndian.PutUint32(hdr[8:], uint32(r.EncType))
	_, err := w.Write(hdr[:])
	return err
}

// Area returns the total area in pixels of the Rectangle.
func (r *Rectangle) Area() int { return int(r.Width) * int(r.Height) }

// Bounds converts the rectangle to an image.Rectangle.
func (r *Rectangle) Bounds() image.Rectangle {
	return MakeRect(int(r.X), int(r.Y), int(r.Width), int(r.Height))
}

func (r *Rectangle) String() string {
	return fmt.Sprintf("%dx%d+%d+%d %v", r.Width, r.Height, r.X, r.Y, r.EncType)
}

// Screen is one entry of an extended desktop size screen layout.
type Screen struct {
	ID            uint32
	X, Y          uint16
	Width, Height uint16
	Flags         uint32
}

const screenLen = 16

// ScreenSet is the screen layout reported by the server.
type ScreenSet []Screen

// Validate checks that every screen fits into a fb of the given size.
func (s ScreenSet) Validate(fbWidth, fbHeight int) bool {
	if len(s) == 0 {
		return false
	}
	ids := make(map[uint32]struct{}, len(s))
	fb := image.Rect(0, 0, fbWidth, fbHeight)
	for _, scr := range s {
		if _, dup := ids[scr.ID]; dup {
			return false
		}
		ids[scr.ID] = struct{}{}
		r := MakeRect(int(scr.X), int(scr.Y), int(scr.Width), int(scr.Height))
		if r.Empty() || !r.In(fb) {
			return false
		}
	}
	return true
}
