package encoders

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 0xff})
		}
	}
	return img
}

func TestEncodePPM(t *testing.T) {
	var buf bytes.Buffer
	if err := encodePPM(&buf, testImage(2, 2)); err != nil {
		t.Fatalf("encodePPM: %v", err)
	}
	header := "P6\n2 2\n255\n"
	if !strings.HasPrefix(buf.String(), header) {
		t.Fatalf("unexpected header %q", buf.String()[:len(header)])
	}
	pix := buf.Bytes()[len(header):]
	want := []byte{0, 0, 7, 1, 0, 7, 0, 1, 7, 1, 1, 7}
	if !bytes.Equal(pix, want) {
		t.Fatalf("pixels = %v, want %v", pix, want)
	}
}

func TestWithExt(t *testing.T) {
	if got := withExt("out", ".avi"); got != "out.avi" {
		t.Fatalf("withExt = %q", got)
	}
	if got := withExt("out.avi", ".avi"); got != "out.avi" {
		t.Fatalf("withExt = %q", got)
	}
}

func TestMJPegEncoder(t *testing.T) {
	enc := &MJPegImageEncoder{Quality: 60}
	if err := enc.Encode(testImage(4, 4)); err == nil {
		t.Fatalf("expected error before Init")
	}
	name := filepath.Join(t.TempDir(), "rec")
	if err := enc.Init(name); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := enc.Encode(testImage(16, 8)); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.Frames() != 3 {
		t.Fatalf("frames = %d", enc.Frames())
	}
	st, err := os.Stat(name + ".avi")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() == 0 {
		t.Fatalf("empty avi file")
	}
}

func TestFFmpegArgs(t *testing.T) {
	enc, err := NewFFmpegEncoder("/usr/bin/ffmpeg", "vp8")
	if err != nil {
		t.Fatalf("NewFFmpegEncoder: %v", err)
	}
	args := enc.args("session")
	if args[len(args)-1] != "session.webm" {
		t.Fatalf("output = %q", args[len(args)-1])
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-vcodec libvpx ") || !strings.Contains(joined, "-r 5") {
		t.Fatalf("unexpected args %q", joined)
	}
	if _, err := NewFFmpegEncoder("ffmpeg", "nope"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	enc, _ := NewFFmpegEncoder(filepath.Join(t.TempDir(), "missing"), "x264")
	if err := enc.Init("out"); err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if err := enc.Encode(testImage(1, 1)); err == nil {
		t.Fatalf("expected error from uninitialized encoder")
	}
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, err := io.ReadAll(in.Body)
	f.body = b
	return &s3.PutObjectOutput{}, err
}

func TestS3Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.avi")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp := &fakePutter{}
	u := NewS3UploaderWithClient(fp, "bucket", "recordings/")
	key, err := u.Upload(context.Background(), path, "video/avi")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if key != "recordings/rec.avi" {
		t.Fatalf("key = %q", key)
	}
	if aws.ToString(fp.in.Bucket) != "bucket" || aws.ToString(fp.in.ContentType) != "video/avi" {
		t.Fatalf("unexpected input %+v", fp.in)
	}
	if string(fp.body) != "video" || aws.ToInt64(fp.in.ContentLength) != 5 {
		t.Fatalf("body = %q len %d", fp.body, aws.ToInt64(fp.in.ContentLength))
	}
	if _, err := NewS3Uploader(S3Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
