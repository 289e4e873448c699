package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/transport"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Outgoing frames buffered per connection before it is dropped
	sendBufferSize = 64

	// How long a rejected connection is kept open for the peer to read why
	rejectLinger = 2 * time.Second
)

var ErrConnectionClosed = errors.New("connection closed")

// MessageHandler processes one decoded message from the player
type MessageHandler func(c *Connection, msg protocol.Message)

// Connection represents the player's connection to the dealer
type Connection struct {
	id        string
	conn      transport.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *log.Logger
	handler   MessageHandler
}

// NewConnection wraps an accepted transport connection
func NewConnection(conn transport.Conn, logger *log.Logger, handler MessageHandler) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		logger:  logger.WithPrefix("conn").With("conn", id[:8]),
		handler: handler,
	}
}

// ID returns the connection id
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the player's address
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr()
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Serve runs the read and write pumps until the connection closes or ctx is
// cancelled.
func (c *Connection) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		_ = c.Close()
		return nil
	})
	g.Go(c.readPump)
	g.Go(c.writePump)

	return g.Wait()
}

// Close closes the connection. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the write pump without blocking. A full
// buffer means the player stopped reading; the connection is closed.
func (c *Connection) SendMessage(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// sendError sends a PROTOCOL_ERROR to the player
func (c *Connection) sendError(code, message string) {
	_ = c.SendMessage(&protocol.Error{Code: code, Message: message}) // Ignore send errors during error handling
}

// readPump handles incoming frames from the player
func (c *Connection) readPump() error {
	defer func() { _ = c.Close() }()

	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			if transport.IsClosed(err) {
				return nil
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			c.logger.Error("Read failed", "error", err)
			return nil
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("Invalid message", "error", err, "bytes", len(frame))
			c.sendError(protocol.CodeInvalidMessage, err.Error())
			continue
		}

		c.logger.Debug("Received message", "type", msg.Type())
		c.handler(c, msg)
	}
}

// writePump writes queued frames to the player
func (c *Connection) writePump() error {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteFrame(frame); err != nil {
				if !transport.IsClosed(err) {
					c.logger.Error("Failed to write message", "error", err)
				}
				_ = c.Close()
				return nil
			}

		case <-c.done:
			return nil
		}
	}
}

// reject tells a surplus connection the table is taken and closes it once the
// peer hangs up or rejectLinger passes.
func reject(conn transport.Conn, logger *log.Logger) {
	defer func() { _ = conn.Close() }()

	frame, err := protocol.Encode(&protocol.Error{
		Code:    protocol.CodeTableFull,
		Message: "the table already has a player",
	})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteFrame(frame); err != nil {
		logger.Debug("Failed to send table_full", "addr", conn.RemoteAddr(), "error", err)
		return
	}

	hungUp := make(chan struct{})
	go func() {
		defer close(hungUp)
		for {
			if _, err := conn.ReadFrame(); err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(rejectLinger)
	defer timer.Stop()
	select {
	case <-hungUp:
	case <-timer.C:
	}
}
