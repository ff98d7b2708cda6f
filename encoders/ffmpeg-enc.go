package encoders

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"

	"github.com/amitbet/vncclone/logger"
)

// FFmpegPreset describes one ffmpeg output profile fed through an image2pipe of PPM frames.
type FFmpegPreset struct {
	Name      string
	Ext       string
	Framerate int
	Args      []string
}

// Presets known to NewFFmpegEncoder.
var Presets = map[string]FFmpegPreset{
	"x264": {Name: "x264", Ext: ".mp4", Framerate: 5, Args: []string{
		"-vcodec", "libx264",
		"-b:v", "0.5M",
		"-threads", "8",
		"-preset", "veryfast",
		"-tune", "animation",
		"-maxrate", "0.6M",
		"-bufsize", "50M",
		"-g", "120",
		"-qmax", "51",
		"-qmin", "7",
	}},
	"vp8": {Name: "vp8", Ext: ".webm", Framerate: 5, Args: []string{
		"-vcodec", "libvpx",
		"-b:v", "0.5M",
		"-threads", "8",
		"-quality", "good",
		"-cpu-used", "-16",
		"-qmax", "51",
		"-qmin", "3",
	}},
	"vp9": {Name: "vp9", Ext: ".mp4", Framerate: 5, Args: []string{
		"-vcodec", "libvpx-vp9",
		"-b:v", "0.5M",
		"-threads", "8",
		"-cpu-used", "-8",
		"-qmax", "51",
		"-qmin", "11",
	}},
	"huffyuv": {Name: "huffyuv", Ext: ".avi", Framerate: 12, Args: []string{
		"-vcodec", "huffyuv",
	}},
	"qtrle": {Name: "qtrle", Ext: ".mov", Framerate: 12, Args: []string{
		"-vcodec", "qtrle",
	}},
}

// FFmpegImageEncoder pipes PPM frames into an external ffmpeg process.
type FFmpegImageEncoder struct {
	BinaryPath string
	Preset     FFmpegPreset
	// Output receives ffmpeg's own stdout and stderr, defaults to os.Stderr.
	Output io.Writer

	cmd      *exec.Cmd
	input    io.WriteCloser
	done     chan error
	fileName string
}

// NewFFmpegEncoder returns an encoder for the named preset.
func NewFFmpegEncoder(binaryPath, preset string) (*FFmpegImageEncoder, error) {
	p, ok := Presets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown ffmpeg preset %q", preset)
	}
	return &FFmpegImageEncoder{BinaryPath: binaryPath, Preset: p}, nil
}

// args builds the ffmpeg command line for videoFileName.
func (enc *FFmpegImageEncoder) args(videoFileName string) []string {
	rate := enc.Preset.Framerate
	if rate <= 0 {
		rate = 5
	}
	args := []string{
		"-f", "image2pipe",
		"-vcodec", "ppm",
		"-r", fmt.Sprint(rate),
		"-vsync", "2",
		"-y",
		"-i", "-",
	}
	args = append(args, enc.Preset.Args...)
	return append(args, withExt(videoFileName, enc.Preset.Ext))
}

func (enc *FFmpegImageEncoder) FileName() string { return enc.fileName }

// Init launches ffmpeg in the background.
func (enc *FFmpegImageEncoder) Init(videoFileName string) error {
	if _, err := os.Stat(enc.BinaryPath); os.IsNotExist(err) {
		logger.Error("encoder file doesn't exist in path:", enc.BinaryPath)
		return errors.New("encoder file doesn't exist in path " + enc.BinaryPath)
	}
	out := enc.Output
	if out == nil {
		out = os.Stderr
	}
	cmd := exec.Command(enc.BinaryPath, enc.args(videoFileName)...)
	cmd.Stdout = out
	cmd.Stderr = out

	input, err := cmd.StdinPipe()
	if err != nil {
		logger.Error("can't get ffmpeg input pipe")
		return err
	}
	logger.Debugf("launching binary: %v", cmd.Args)
	if err := cmd.Start(); err != nil {
		logger.Errorf("error while launching ffmpeg: %v\n err: %v", cmd.Args, err)
		return err
	}
	enc.cmd = cmd
	enc.input = input
	enc.fileName = withExt(videoFileName, enc.Preset.Ext)
	enc.done = make(chan error, 1)
	go func() { enc.done <- cmd.Wait() }()
	return nil
}

func (enc *FFmpegImageEncoder) Encode(img image.Image) error {
	if enc.input == nil {
		return errors.New("ffmpeg: encoder not initialized")
	}
	if err := encodePPM(enc.input, img); err != nil {
		logger.Error("error while encoding image:", err)
		return err
	}
	return nil
}

// Close ends the input stream and waits for ffmpeg to finish the file.
func (enc *FFmpegImageEncoder) Close() error {
	if enc.input == nil {
		return nil
	}
	enc.input.Close()
	enc.input = nil
	return <-enc.done
}
