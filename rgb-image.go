package vnc

import (
	"image"
	"image/color"
	"image/draw"
)

// RGBImage is the framebuffer of a Canvas. Pixels are stored as packed
// R, G, B bytes row by row; the image is always opaque.
type RGBImage struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

var _ draw.Image = (*RGBImage)(nil)

// NewRGBImage returns a black image with the given bounds.
func NewRGBImage(r image.Rectangle) *RGBImage {
	return &RGBImage{
		Pix:    make([]uint8, 3*r.Dx()*r.Dy()),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

func (p *RGBImage) ColorModel() color.Model { return color.RGBAModel }
func (p *RGBImage) Bounds() image.Rectangle { return p.Rect }
func (p *RGBImage) Opaque() bool            { return true }

func (p *RGBImage) offset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + 3*(x-p.Rect.Min.X)
}

// row returns the bytes of the n pixels starting at (x, y).
func (p *RGBImage) row(x, y, n int) []uint8 {
	i := p.offset(x, y)
	return p.Pix[i : i+3*n]
}

func (p *RGBImage) At(x, y int) color.Color { return p.RGBAAt(x, y) }

func (p *RGBImage) RGBAAt(x, y int) color.RGBA {
	if !image.Pt(x, y).In(p.Rect) {
		return color.RGBA{}
	}
	px := p.row(x, y, 1)
	return color.RGBA{R: px[0], G: px[1], B: px[2], A: 0xff}
}

func (p *RGBImage) Set(x, y int, c color.Color) {
	p.SetRGBA(x, y, color.RGBAModel.Convert(c).(color.RGBA))
}

// SetRGBA stores c, dropping its alpha. Points outside the image are ignored.
func (p *RGBImage) SetRGBA(x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(p.Rect) {
		return
	}
	px := p.row(x, y, 1)
	px[0], px[1], px[2] = c.R, c.G, c.B
}

// Fill paints r, clipped to the image, with c.
func (p *RGBImage) Fill(r image.Rectangle, c color.RGBA) {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return
	}
	first := p.row(r.Min.X, r.Min.Y, r.Dx())
	for i := 0; i < len(first); i += 3 {
		first[i], first[i+1], first[i+2] = c.R, c.G, c.B
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		copy(p.row(r.Min.X, y, r.Dx()), first)
	}
}

// Copy moves the pixels of the area of dst's size at src into dst, as
// CopyRect does. Source and destination may overlap; both are clipped.
func (p *RGBImage) Copy(dst image.Rectangle, src image.Point) {
	delta := src.Sub(dst.Min)
	d := dst.Intersect(p.Rect).Intersect(p.Rect.Sub(delta))
	if d.Empty() {
		return
	}
	s := d.Min.Add(delta)
	n := d.Dx()
	// rows overlapping downwards are copied bottom up
	if s.Y < d.Min.Y {
		for y := d.Dy() - 1; y >= 0; y-- {
			copy(p.row(d.Min.X, d.Min.Y+y, n), p.row(s.X, s.Y+y, n))
		}
		return
	}
	for y := 0; y < d.Dy(); y++ {
		copy(p.row(d.Min.X, d.Min.Y+y, n), p.row(s.X, s.Y+y, n))
	}
}

// paste copies the part of src that overlaps p, at the same coordinates.
func (p *RGBImage) paste(src *RGBImage) {
	r := p.Rect.Intersect(src.Rect)
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(p.row(r.Min.X, y, r.Dx()), src.row(r.Min.X, y, r.Dx()))
	}
}
