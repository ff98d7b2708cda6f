package vnc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const quicALPN = "rfb"

func dialQUIC(ctx context.Context, addr string, cfg *DialConfig) (net.Conn, error) {
	tlsConf := cfg.TLSConfig
	if tlsConf == nil {
		tlsConf = &tls.Config{}
	} else {
		tlsConf = tlsConf.Clone()
	}
	tlsConf.NextProtos = []string{quicALPN}
	tlsConf.MinVersion = tls.VersionTLS13

	quicConf := &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
	qconn, err := quic.DialAddr(ctx, addr, tlsConf, quicConf)
	if err != nil {
		return nil, fmt.Errorf("QUIC dial: %w", err)
	}

	// the server speaks first in RFB, so it opens the stream
	stream, err := qconn.AcceptStream(ctx)
	if err != nil {
		qconn.CloseWithError(1, "no stream")
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	return &quicStreamConn{qconn: qconn, Stream: stream}, nil
}

// quicStreamConn is a single bidirectional QUIC stream used as a net.Conn.
type quicStreamConn struct {
	*quic.Stream
	qconn *quic.Conn
}

func (c *quicStreamConn) Close() error {
	c.Stream.CancelRead(0)
	c.Stream.Close()
	return c.qconn.CloseWithError(0, "closed")
}

func (c *quicStreamConn) LocalAddr() net.Addr  { return c.qconn.LocalAddr() }
func (c *quicStreamConn) RemoteAddr() net.Addr { return c.qconn.RemoteAddr() }
