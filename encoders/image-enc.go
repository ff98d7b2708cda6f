package encoders

import (
	"fmt"
	"image"
	"image/color"
	"io"
)

func encodePPM(w io.Writer, img image.Image) error {
	maxvalue := 255
	size := img.Bounds()
	// write ppm header
	_, err := fmt.Fprintf(w, "P6\n%d %d\n%d\n", size.Dx(), size.Dy(), maxvalue)
	if err != nil {
		return err
	}

	// write the bitmap
	colModel := color.RGBAModel
	row := make([]uint8, size.Dx()*3)
	for y := size.Min.Y; y < size.Max.Y; y++ {
		i := 0
		for x := size.Min.X; x < size.Max.X; x++ {
			c := colModel.Convert(img.At(x, y)).(color.RGBA)
			row[i] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
			i += 3
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ImageEncoder turns presented frames into a video file.
// Init must be called before the first Encode.
type ImageEncoder interface {
	Init(videoFileName string) error
	Encode(img image.Image) error
	Close() error
	// FileName is the output path including the extension, valid after Init.
	FileName() string
}

// withExt appends ext unless the name already carries it.
func withExt(name, ext string) string {
	if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
		return name
	}
	return name + ext
}
