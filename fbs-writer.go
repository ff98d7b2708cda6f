package vnc

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"
)

// FbsWriter writes server data as FBS segments.
type FbsWriter struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	now   func() time.Time
}

// NewFbsWriter writes the FBS header to w.
func NewFbsWriter(w io.Writer) (*FbsWriter, error) {
	if _, err := io.WriteString(w, FbsVersion); err != nil {
		return nil, err
	}
	return &FbsWriter{w: w, start: time.Now(), now: time.Now}, nil
}

// WriteSegment records data stamped with the time since the writer was created.
func (fw *FbsWriter) WriteSegment(data []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	ts := uint32(fw.now().Sub(fw.start) / time.Millisecond)
	padded := (len(data) + 3) &^ 3
	seg := make([]byte, 4+padded+4)
	binary.BigEndian.PutUint32(seg, uint32(len(data)))
	copy(seg[4:], data)
	binary.BigEndian.PutUint32(seg[4+padded:], ts)
	_, err := fw.w.Write(seg)
	return err
}

// recordingConn copies everything read from the server into an FBS file.
type recordingConn struct {
	net.Conn
	fbs    *FbsWriter
	closer io.Closer
}

// NewRecordingConn wraps c so that all bytes received from the server are
// recorded to w. Closing the connection closes w if it is an io.Closer.
func NewRecordingConn(c net.Conn, w io.Writer) (net.Conn, error) {
	fbs, err := NewFbsWriter(w)
	if err != nil {
		return nil, err
	}
	rc := &recordingConn{Conn: c, fbs: fbs}
	if closer, ok := w.(io.Closer); ok {
		rc.closer = closer
	}
	return rc, nil
}

func (rc *recordingConn) Read(p []byte) (int, error) {
	n, err := rc.Conn.Read(p)
	if n > 0 {
		if werr := rc.fbs.WriteSegment(p[:n]); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

func (rc *recordingConn) Close() error {
	err := rc.Conn.Close()
	if rc.closer != nil {
		if cerr := rc.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
