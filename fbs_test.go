package vnc

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFbsWriterSegments(t *testing.T) {
	var buf bytes.Buffer
	fw, err := NewFbsWriter(&buf)
	if err != nil {
		t.Fatalf("NewFbsWriter: %v", err)
	}
	fw.now = func() time.Time { return fw.start.Add(1500 * time.Millisecond) }
	if err := fw.WriteSegment([]byte("abcde")); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if want := len(FbsVersion) + 4 + 8 + 4; buf.Len() != want {
		t.Fatalf("recording is %d bytes, want %d", buf.Len(), want)
	}

	fbs, err := newFbsReader(io.NopCloser(&buf))
	if err != nil {
		t.Fatalf("newFbsReader: %v", err)
	}
	seg, err := fbs.ReadSegment()
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if string(seg.bytes) != "abcde" || seg.timestamp != 1500 {
		t.Fatalf("segment %q at %d", seg.bytes, seg.timestamp)
	}
}

func TestFbsBadHeader(t *testing.T) {
	if _, err := newFbsReader(io.NopCloser(bytes.NewBufferString("RFB 003.008\n"))); err == nil {
		t.Fatalf("foreign header accepted")
	}
}

// smallReads hands out at most n bytes per Read.
type smallReads struct {
	*mockConn
	n int
}

func (s smallReads) Read(p []byte) (int, error) {
	if len(p) > s.n {
		p = p[:s.n]
	}
	return s.mockConn.Read(p)
}

func TestRecordingConn(t *testing.T) {
	var srv server
	srv.handshake38(4, 4, PixelFormat32bit, "recorded")
	want := append([]byte(nil), srv.Bytes()...)

	var rec bytes.Buffer
	rc, err := NewRecordingConn(smallReads{newMockConn(srv.Bytes()), 5}, &rec)
	if err != nil {
		t.Fatalf("NewRecordingConn: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("recording conn altered the stream")
	}
	if _, err := rc.Write([]byte("client")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fbs, err := newFbsReader(io.NopCloser(&rec))
	if err != nil {
		t.Fatalf("newFbsReader: %v", err)
	}
	replayed, err := io.ReadAll(fbs)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(replayed, want) {
		t.Fatalf("replayed %q, want %q", replayed, want)
	}
}

func writeRecording(t *testing.T, segments ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.fbs")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	fw, err := NewFbsWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	for i, seg := range segments {
		fw.now = func() time.Time { return fw.start.Add(time.Duration(i) * 50 * time.Millisecond) }
		if err := fw.WriteSegment(seg); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestFbsReplaySession(t *testing.T) {
	var hs, upd server
	hs.handshake38(4, 4, PixelFormat16bit, "recorded")
	// the recorded server already switched to the format the client asked for
	upd.update(1).raw(0, 0, 1, 1, PixelFormat32bit, red32)

	conn, err := NewFbsConn(writeRecording(t, hs.Bytes(), upd.Bytes()))
	if err != nil {
		t.Fatalf("NewFbsConn: %v", err)
	}
	canvas := NewCanvas(nil)
	cc, err := Connect(context.Background(), conn, &ClientConfig{
		Renderer: canvas,
		Options:  NewOptions(DefaultOptionValues()),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cc.Close()

	if name := cc.Info().DesktopName; name != "recorded" {
		t.Fatalf("desktop name %q", name)
	}
	if err := cc.ProcessMessage(); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if px := canvas.RGBAAt(0, 0); px != red {
		t.Fatalf("pixel %v", px)
	}
	if err := cc.ProcessMessage(); !IsEndOfStream(err) {
		t.Fatalf("expected end of stream, got %v", err)
	}
}

func TestFbsRealtimeReplay(t *testing.T) {
	conn, err := NewFbsConn(writeRecording(t, []byte("ab"), []byte("cd")))
	if err != nil {
		t.Fatalf("NewFbsConn: %v", err)
	}
	defer conn.Close()
	conn.Realtime = true

	start := time.Now()
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("replayed %q", got)
	}
	if elapsed := time.Since(start); elapsed < 45*time.Millisecond {
		t.Fatalf("replay took %v, segments are 50ms apart", elapsed)
	}
}
