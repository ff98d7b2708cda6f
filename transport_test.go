package vnc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
)

func TestHostPort(t *testing.T) {
	for in, want := range map[string]string{
		"example.com":      "example.com:5900",
		"example.com:5901": "example.com:5901",
		"[::1]":            "[::1]:5900",
		"[::1]:5902":       "[::1]:5902",
	} {
		if got := hostPort(in); got != want {
			t.Fatalf("hostPort(%q) = %q, want %q", in, got, want)
		}
	}
}

// serveVersion accepts one connection on ln, writes the 3.8 version and
// returns what the client sends back.
func serveVersion(t *testing.T, ln net.Listener) <-chan string {
	t.Helper()
	got := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			got <- err.Error()
			return
		}
		defer c.Close()
		io.WriteString(c, ProtoVersion38)
		buf := make([]byte, len(ProtoVersion38))
		if _, err := io.ReadFull(c, buf); err != nil {
			got <- err.Error()
			return
		}
		got <- string(buf)
	}()
	return got
}

// exchangeVersion reads the server version and echoes it.
func exchangeVersion(t *testing.T, c net.Conn) {
	t.Helper()
	buf := make([]byte, len(ProtoVersion38))
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("reading version: %v", err)
	}
	if string(buf) != ProtoVersion38 {
		t.Fatalf("version %q", buf)
	}
	if _, err := c.Write(buf); err != nil {
		t.Fatalf("writing version: %v", err)
	}
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	got := serveVersion(t, ln)

	c, err := Dial(context.Background(), ln.Addr().String(), &DialConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	exchangeVersion(t, c)
	if s := <-got; s != ProtoVersion38 {
		t.Fatalf("server got %q", s)
	}
}

func TestDialUnix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vnc.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer ln.Close()
	got := serveVersion(t, ln)

	c, err := Dial(context.Background(), "unix://"+path, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	exchangeVersion(t, c)
	if s := <-got; s != ProtoVersion38 {
		t.Fatalf("server got %q", s)
	}
}

func TestDialUnsupportedScheme(t *testing.T) {
	if _, err := Dial(context.Background(), "gopher://localhost", nil); err == nil {
		t.Fatalf("unsupported scheme accepted")
	}
}

func TestDialWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: []string{wsSubprotocol}}
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			got <- err.Error()
			return
		}
		defer ws.Close()
		if ws.Subprotocol() != wsSubprotocol {
			got <- "subprotocol " + ws.Subprotocol()
			return
		}
		// the version split over two messages
		ws.WriteMessage(websocket.BinaryMessage, []byte(ProtoVersion38[:5]))
		ws.WriteMessage(websocket.BinaryMessage, []byte(ProtoVersion38[5:]))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			got <- err.Error()
			return
		}
		got <- string(msg)
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), "ws://"+strings.TrimPrefix(srv.URL, "http://"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	exchangeVersion(t, c)
	if s := <-got; s != ProtoVersion38 {
		t.Fatalf("server got %q", s)
	}
}

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestDialQUIC(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := quic.ListenAddr("127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{selfSignedCert(t)},
		NextProtos:   []string{quicALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil)
	if err != nil {
		t.Fatalf("ListenAddr: %v", err)
	}
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		qc, err := ln.Accept(ctx)
		if err != nil {
			got <- err.Error()
			return
		}
		st, err := qc.OpenStreamSync(ctx)
		if err != nil {
			got <- err.Error()
			return
		}
		st.Write([]byte(ProtoVersion38))
		buf := make([]byte, len(ProtoVersion38))
		if _, err := io.ReadFull(st, buf); err != nil {
			got <- err.Error()
			return
		}
		got <- string(buf)
	}()

	c, err := Dial(ctx, "quic://"+ln.Addr().String(), &DialConfig{
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	exchangeVersion(t, c)
	if s := <-got; s != ProtoVersion38 {
		t.Fatalf("server got %q", s)
	}
}
