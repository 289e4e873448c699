// Package transport carries opaque frames between the dealer and the player.
// Frames are whole protocol envelopes; the transport never inspects them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// MaxFrameSize bounds a single frame in either direction
const MaxFrameSize = 8192

// Kind names a transport
type Kind string

const (
	TCP       Kind = "tcp"
	WebSocket Kind = "websocket"
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrUnknownKind   = errors.New("unknown transport")
)

// ParseKind validates a transport name from config or flags
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case TCP, WebSocket:
		return k, nil
	case "":
		return TCP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Conn is a bidirectional frame stream. ReadFrame must only be called from
// one goroutine and WriteFrame from one goroutine; Close may be called from
// anywhere and unblocks both.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
}

// Listener accepts inbound connections. Accept returns net.ErrClosed once the
// listener is closed.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() string
}

// Listen binds addr ("host:port") for the given transport
func Listen(kind Kind, addr string) (Listener, error) {
	switch kind {
	case TCP, "":
		return ListenTCP(addr)
	case WebSocket:
		return ListenWebSocket(addr)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Dial connects to a listener of the given transport
func Dial(ctx context.Context, kind Kind, addr string) (Conn, error) {
	switch kind {
	case TCP, "":
		return DialTCP(ctx, addr)
	case WebSocket:
		return DialWebSocket(ctx, addr)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// IsClosed reports whether err means the peer or the local side closed the
// connection, as opposed to a transport failure worth logging.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || isEOF(err) || isNormalClose(err)
}
