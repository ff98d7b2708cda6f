package vnc

import (
	"fmt"
	"image"
)

const (
	BlockWidth  = 16
	BlockHeight = 16

	defaultMaxPixels = 1 << 26
)

// FrameEncoder receives every presented frame, see package encoders.
type FrameEncoder interface {
	Encode(img image.Image) error
}

// Canvas is a Renderer that keeps the framebuffer in an RGB image and
// hands finished frames to an optional FrameEncoder.
type Canvas struct {
	*RGBImage
	Changed   map[image.Point]bool
	MaxPixels int

	encoder FrameEncoder
	frames  int
}

var _ Renderer = (*Canvas)(nil)

func NewCanvas(enc FrameEncoder) *Canvas {
	return &Canvas{encoder: enc, MaxPixels: defaultMaxPixels}
}

// AllocateFramebuffer resizes the canvas, keeping the overlapping content.
func (c *Canvas) AllocateFramebuffer(width, height int) error {
	if width < 0 || height < 0 || width*height > c.MaxPixels {
		return fmt.Errorf("cannot allocate a %dx%d framebuffer", width, height)
	}
	img := NewRGBImage(image.Rect(0, 0, width, height))
	if c.RGBImage != nil {
		img.paste(c.RGBImage)
	}
	c.RGBImage = img
	c.SetChanged(&Rectangle{Width: uint16(width), Height: uint16(height)})
	return nil
}

// AcceptDamage decodes a data rectangle with the format it was sent in.
func (c *Canvas) AcceptDamage(rect Rectangle, payload []byte, pf PixelFormat) error {
	if c.RGBImage == nil {
		return fmt.Errorf("no framebuffer allocated")
	}
	enc, ok := lookupEncoding(rect.EncType)
	if !ok {
		return fmt.Errorf("unsupported encoding %v", rect.EncType)
	}
	if err := enc.Draw(c.RGBImage, &pf, &rect, payload); err != nil {
		return err
	}
	c.SetChanged(&rect)
	return nil
}

// PresentFrame passes the current image to the encoder and clears the damage.
func (c *Canvas) PresentFrame() error {
	c.frames++
	defer c.Reset()
	if c.encoder == nil || c.RGBImage == nil {
		return nil
	}
	return c.encoder.Encode(c.RGBImage)
}

// Frames is the number of presented frames.
func (c *Canvas) Frames() int {
	return c.frames
}

// SetChanged marks the 16x16 blocks touched by rect.
func (c *Canvas) SetChanged(rect *Rectangle) {
	if c.Changed == nil {
		c.Changed = make(map[image.Point]bool)
	}
	for x := int(rect.X) / BlockWidth; x*BlockWidth < int(rect.X)+int(rect.Width); x++ {
		for y := int(rect.Y) / BlockHeight; y*BlockHeight < int(rect.Y)+int(rect.Height); y++ {
			c.Changed[image.Pt(x, y)] = true
		}
	}
}

func (c *Canvas) Reset() {
	c.Changed = nil
}
