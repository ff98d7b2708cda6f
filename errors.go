package vnc

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrorKind classifies connection failures.
type ErrorKind int

const (
	// KindProtocol is a malformed or unexpected message from the server.
	KindProtocol ErrorKind = iota
	// KindTransport is a failure of the underlying byte stream.
	KindTransport
	// KindEndOfStream means the server closed the connection.
	KindEndOfStream
	// KindResource means a local resource such as the framebuffer could not be allocated.
	KindResource
	// KindInternal is a broken state machine invariant.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol violation"
	case KindTransport:
		return "transport failure"
	case KindEndOfStream:
		return "end of stream"
	case KindResource:
		return "resource failure"
	case KindInternal:
		return "internal error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the single error type returned by the connection entry points.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vnc: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("vnc: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func protocolErrorf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}

func internalErrorf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindInternal, Op: op, Err: fmt.Errorf(format, args...)}
}

// wrapIOError classifies an error coming from the transport.
// Errors already of type *Error pass through unchanged.
func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *Error
	if errors.As(err, &verr) {
		return err
	}
	kind := KindTransport
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		kind = KindEndOfStream
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Kind == kind
}

// IsProtocolViolation reports whether err was caused by the server breaking the protocol.
func IsProtocolViolation(err error) bool { return isKind(err, KindProtocol) }

// IsEndOfStream reports whether err means the server went away.
func IsEndOfStream(err error) bool { return isKind(err, KindEndOfStream) }
