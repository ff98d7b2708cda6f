package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	vnc "github.com/amitbet/vncclone"
	"github.com/amitbet/vncclone/encoders"
	"github.com/amitbet/vncclone/logger"
	"github.com/spf13/cobra"
)

// sessionFlags are shared by connect and replay.
type sessionFlags struct {
	bpp        uint8
	video      string
	encoder    string
	ffmpeg     string
	quality    int
	statusAddr string
	s3Bucket   string
	s3Prefix   string
	s3Region   string
	s3Endpoint string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Uint8Var(&f.bpp, "bpp", 32, "preferred bits per pixel (8, 16 or 32)")
	fl.StringVarP(&f.video, "video", "o", "", "record presented frames to this video file")
	fl.StringVar(&f.encoder, "encoder", "mjpeg", "video encoder: mjpeg, x264, vp8, vp9, huffyuv or qtrle")
	fl.StringVar(&f.ffmpeg, "ffmpeg", "/usr/bin/ffmpeg", "path of the ffmpeg binary")
	fl.IntVar(&f.quality, "quality", 0, "jpeg quality for the mjpeg encoder")
	fl.StringVar(&f.statusAddr, "status", "", "serve /status and /metrics on this address")
	fl.StringVar(&f.s3Bucket, "s3-bucket", "", "upload the finished video to this bucket")
	fl.StringVar(&f.s3Prefix, "s3-prefix", "recordings/", "object key prefix")
	fl.StringVar(&f.s3Region, "s3-region", "", "bucket region, defaults to AWS_REGION")
	fl.StringVar(&f.s3Endpoint, "s3-endpoint", "", "S3 compatible endpoint URL")
}

// videoEncoder is the recorder for the selected encoder, nil when not recording.
func (f *sessionFlags) videoEncoder() (encoders.ImageEncoder, error) {
	if f.video == "" {
		return nil, nil
	}
	var enc encoders.ImageEncoder
	if f.encoder == "mjpeg" {
		enc = &encoders.MJPegImageEncoder{Quality: f.quality}
	} else {
		ff, err := encoders.NewFFmpegEncoder(f.ffmpeg, f.encoder)
		if err != nil {
			return nil, err
		}
		enc = ff
	}
	if err := enc.Init(f.video); err != nil {
		return nil, err
	}
	return enc, nil
}

// consoleUI logs the session events a window system would display.
type consoleUI struct{}

func (consoleUI) OnNameChanged(name string)     { logger.Infof("desktop name: %q", name) }
func (consoleUI) OnLEDStateChanged(state uint8) { logger.Debugf("LED state: %03b", state) }
func (consoleUI) Bell()                         { logger.Info("bell") }
func (consoleUI) ServerCutText(text string)     { logger.Debugf("clipboard: %d bytes", len(text)) }
func (consoleUI) SetCursor(cursor *vnc.Cursor)  { logger.Tracef("cursor hotspot %v", cursor.Hotspot) }

// runSession performs the handshake over nc and processes messages until
// the stream ends or the process is interrupted.
func runSession(cmd *cobra.Command, nc net.Conn, f *sessionFlags, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc, err := f.videoEncoder()
	if err != nil {
		nc.Close()
		return err
	}
	canvas := vnc.NewCanvas(nil)
	if enc != nil {
		canvas = vnc.NewCanvas(enc)
	}

	opts := vnc.DefaultOptionValues()
	opts.PreferredPixelFormat = vnc.NewPixelFormat(f.bpp)
	cfg := &vnc.ClientConfig{
		Renderer:         canvas,
		UI:               consoleUI{},
		Options:          vnc.NewOptions(opts),
		HandshakeTimeout: timeout,
	}

	cc, err := vnc.Connect(ctx, nc, cfg)
	if err != nil {
		nc.Close()
		return err
	}
	defer cc.Close()

	if f.statusAddr != "" {
		srv := &http.Server{Addr: f.statusAddr, Handler: vnc.NewStatusHandler(cc)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server: ", err)
			}
		}()
		defer srv.Close()
	}

	runErr := cc.Run(ctx)
	if vnc.IsEndOfStream(runErr) || errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	info := cc.Info()
	logger.Infof("session ended: %d frames, %d pixels", info.FrameCount, info.PixelCount)

	if enc == nil {
		return runErr
	}
	if err := enc.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("closing video: %w", err))
	}
	if f.s3Bucket == "" {
		return runErr
	}
	up, err := encoders.NewS3Uploader(encoders.S3Config{
		Bucket:   f.s3Bucket,
		Prefix:   f.s3Prefix,
		Region:   f.s3Region,
		Endpoint: f.s3Endpoint,
	})
	if err != nil {
		return errors.Join(runErr, err)
	}
	if _, err := up.Upload(context.Background(), enc.FileName(), ""); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
