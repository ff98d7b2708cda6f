package vnc

import (
	"net"
	"sync"
	"time"
)

// FbsConn replays a recording as the server side of a net.Conn.
// Everything the client writes is discarded.
type FbsConn struct {
	*FbsReader
	name string

	// Realtime paces the replay by the recorded timestamps.
	Realtime bool
	started  time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

var _ net.Conn = (*FbsConn)(nil)

// NewFbsConn opens a recording made with NewRecordingConn.
func NewFbsConn(filename string) (*FbsConn, error) {
	fbs, err := NewFbsReader(filename)
	if err != nil {
		return nil, err
	}
	return newFbsConn(fbs, filename), nil
}

func newFbsConn(fbs *FbsReader, name string) *FbsConn {
	c := &FbsConn{FbsReader: fbs, name: name, closed: make(chan struct{})}
	fbs.onSegment = c.pace
	return c
}

// pace sleeps until the segment is due when replaying in real time.
func (c *FbsConn) pace(timestampMs int) {
	if !c.Realtime {
		return
	}
	if c.started.IsZero() {
		c.started = time.Now().Add(-time.Duration(timestampMs) * time.Millisecond)
	}
	wait := time.Until(c.started.Add(time.Duration(timestampMs) * time.Millisecond))
	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.closed:
	}
}

// dummy, no writing to this conn...
func (c *FbsConn) Write(buf []byte) (int, error) {
	return len(buf), nil
}

func (c *FbsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.FbsReader.Close()
	})
	return err
}

func (c *FbsConn) LocalAddr() net.Addr                { return fbsAddr("local") }
func (c *FbsConn) RemoteAddr() net.Addr               { return fbsAddr(c.name) }
func (c *FbsConn) SetDeadline(t time.Time) error      { return nil }
func (c *FbsConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *FbsConn) SetWriteDeadline(t time.Time) error { return nil }

type fbsAddr string

func (a fbsAddr) Network() string { return "fbs" }
func (a fbsAddr) String() string  { return string(a) }
