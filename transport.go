package vnc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultPort is the RFB port of display 0.
const DefaultPort = "5900"

// DialConfig configures Dial.
type DialConfig struct {
	Timeout   time.Duration
	TLSConfig *tls.Config
}

// Dial opens a byte stream to an RFB server. addr is a URL with one of the
// schemes tcp, unix, ws, wss or quic; a bare host:port means tcp.
func Dial(ctx context.Context, addr string, cfg *DialConfig) (net.Conn, error) {
	if cfg == nil {
		cfg = &DialConfig{}
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if !strings.Contains(addr, "://") {
		addr = "tcp://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "tcp":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", hostPort(u.Host))
	case "unix":
		var d net.Dialer
		return d.DialContext(ctx, "unix", u.Path)
	case "ws", "wss":
		return dialWebsocket(ctx, u, cfg)
	case "quic":
		return dialQUIC(ctx, hostPort(u.Host), cfg)
	}
	return nil, fmt.Errorf("unsupported transport %q", u.Scheme)
}

func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), DefaultPort)
}
