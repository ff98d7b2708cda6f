package encoders

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"github.com/amitbet/vncclone/logger"
	"github.com/icza/mjpeg"
)

// MJPegImageEncoder writes frames as JPEGs into an AVI container.
// The video dimensions are taken from the first frame.
type MJPegImageEncoder struct {
	avWriter  mjpeg.AviWriter
	fileName  string
	Quality   int
	Framerate int32
	frames    int
}

func (enc *MJPegImageEncoder) Init(videoFileName string) error {
	if videoFileName == "" {
		return errors.New("mjpeg: empty file name")
	}
	enc.fileName = withExt(videoFileName, ".avi")
	if enc.Framerate <= 0 {
		enc.Framerate = 5
	}
	return nil
}

// FileName is the path of the AVI file, including the extension.
func (enc *MJPegImageEncoder) FileName() string { return enc.fileName }

// Frames returns the number of frames written so far.
func (enc *MJPegImageEncoder) Frames() int { return enc.frames }

func (enc *MJPegImageEncoder) Encode(img image.Image) error {
	if enc.fileName == "" {
		return errors.New("mjpeg: encoder not initialized")
	}
	if enc.avWriter == nil {
		b := img.Bounds()
		avWriter, err := mjpeg.New(enc.fileName, int32(b.Dx()), int32(b.Dy()), enc.Framerate)
		if err != nil {
			logger.Error("Error during mjpeg init: ", err)
			return err
		}
		enc.avWriter = avWriter
	}

	buf := &bytes.Buffer{}
	jOpts := &jpeg.Options{Quality: enc.Quality}
	if enc.Quality <= 0 {
		jOpts = nil
	}
	if err := jpeg.Encode(buf, img, jOpts); err != nil {
		logger.Error("Error while creating jpeg: ", err)
		return err
	}

	if err := enc.avWriter.AddFrame(buf.Bytes()); err != nil {
		logger.Error("Error while adding frame to mjpeg: ", err)
		return err
	}
	enc.frames++
	return nil
}

func (enc *MJPegImageEncoder) Close() error {
	if enc.avWriter == nil {
		return nil
	}
	err := enc.avWriter.Close()
	enc.avWriter = nil
	if err != nil {
		logger.Error("Error while closing mjpeg: ", err)
	}
	return err
}
