package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/transport"
)

const (
	// Time allowed to write a message to the dealer
	writeWait = 10 * time.Second

	// Outgoing frames buffered before sends start failing
	sendBufferSize = 32
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrInvalidBet        = errors.New("bet must be positive")
	ErrInsufficientChips = errors.New("insufficient chips")
	ErrRoundInProgress   = errors.New("round in progress")
	ErrNotSeated         = errors.New("waiting for the dealer's welcome")
	ErrBetOutsideLimits  = errors.New("bet outside the table limits")
	ErrInvalidAction     = errors.New("invalid action")
	ErrSendBufferFull    = errors.New("send buffer full")
)

// ServerError is a PROTOCOL_ERROR received from the dealer
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("dealer rejected message (%s): %s", e.Code, e.Message)
}

// Client is the player endpoint. Intents are fire-and-forget: they are
// checked against the local view, queued, and the dealer's replies update the
// view as they arrive.
type Client struct {
	cfg      *Config
	logger   *log.Logger
	listener Listener

	mu   sync.Mutex
	link *link
	view TableView

	// doubleStake is the second stake moved for a double down the dealer has
	// not yet confirmed.
	doubleStake int
}

// link is one connection to the dealer
type link struct {
	conn       transport.Conn
	send       chan []byte
	done       chan struct{}
	finished   chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once
	closing    bool
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		_ = l.conn.Close()
	})
}

// New creates a player client. listener may be nil.
func New(cfg *Config, listener Listener, logger *log.Logger) *Client {
	if listener == nil {
		listener = BaseListener{}
	}
	return &Client{
		cfg:      cfg,
		logger:   logger.WithPrefix("client"),
		listener: listener,
		view:     TableView{Chips: cfg.Player.StartingChips},
	}
}

// Connect dials the dealer and sends CONNECT_REQUEST. It does not wait for
// CONNECT_ACCEPT. An empty addr uses the configured server.
func (c *Client) Connect(ctx context.Context, addr string) error {
	if addr == "" {
		addr = c.cfg.ServerAddress()
	}

	c.mu.Lock()
	if c.link != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	kind, err := transport.ParseKind(c.cfg.Server.Transport)
	if err != nil {
		c.listener.OnConnectionFailed(err)
		return err
	}

	c.logger.Info("Connecting to dealer", "addr", addr, "transport", kind)
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout())
	defer cancel()

	conn, err := transport.Dial(dialCtx, kind, addr)
	if err != nil {
		err = fmt.Errorf("failed to connect: %w", err)
		c.logger.Error("Connection failed", "addr", addr, "error", err)
		c.listener.OnConnectionFailed(err)
		return err
	}

	l := &link{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	c.mu.Lock()
	if c.link != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrAlreadyConnected
	}
	c.link = l
	c.doubleStake = 0
	c.view.reset(c.view.Chips)
	c.view.Connected = true
	c.view.Status = "Connected to " + addr
	if err := c.queue(l, &protocol.ConnectRequest{Name: c.cfg.Player.Name}); err != nil {
		c.link = nil
		c.mu.Unlock()
		l.close()
		return err
	}
	c.mu.Unlock()

	go c.writeLoop(l)
	go c.readLoop(l)

	c.logger.Info("Connected to dealer", "addr", addr)
	c.listener.OnConnected()
	return nil
}

// Disconnect sends DISCONNECT, flushes queued messages and closes. It returns
// once OnDisconnected has been delivered.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	l := c.link
	if l == nil || l.closing {
		c.mu.Unlock()
		return ErrNotConnected
	}
	_ = c.queue(l, &protocol.Disconnect{})
	l.closing = true
	close(l.send)
	c.mu.Unlock()

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case <-l.finished:
	case <-timer.C:
		l.close()
		<-l.finished
	}
	return nil
}

// PlaceBet moves amount from chips to the stake and sends the new total. The
// total must fall inside the limits the dealer announced in its welcome.
func (c *Client) PlaceBet(amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.active()
	if err != nil {
		return err
	}
	total := c.view.Bet + amount
	switch {
	case !c.view.Seated:
		return ErrNotSeated
	case amount <= 0:
		return ErrInvalidBet
	case c.view.RoundInProgress:
		return ErrRoundInProgress
	case c.view.Chips < amount:
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientChips, c.view.Chips, amount)
	case !c.view.AllowsBet(total):
		return fmt.Errorf("%w: stake would be %d", ErrBetOutsideLimits, total)
	}

	if err := c.queue(l, &protocol.PlaceBet{Amount: total}); err != nil {
		return err
	}
	c.view.Chips -= amount
	c.view.Bet += amount
	c.logger.Debug("Bet placed", "amount", amount, "stake", c.view.Bet)
	return nil
}

// SendAction sends a player decision. A double down moves a second stake
// from chips straight away; the dealer's card confirms it.
func (c *Client) SendAction(action game.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.active()
	if err != nil {
		return err
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if action == game.DoubleDown && c.doubleStake > 0 {
		return fmt.Errorf("%w: already doubled", ErrInvalidAction)
	}
	double := action == game.DoubleDown && c.view.CanDouble()
	if action == game.DoubleDown && c.view.Chips < c.view.Bet {
		return fmt.Errorf("%w: doubling needs %d more", ErrInsufficientChips, c.view.Bet)
	}

	if err := c.queue(l, &protocol.PlayerAction{Action: action}); err != nil {
		return err
	}
	if double {
		c.doubleStake = c.view.Bet
		c.view.Chips -= c.doubleStake
		c.view.Bet += c.doubleStake
	}
	c.logger.Debug("Action sent", "action", action)
	return nil
}

// View returns a copy of the player's view of the table
func (c *Client) View() TableView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil && !c.link.closing
}

// active returns the open link. Called with mu held.
func (c *Client) active() (*link, error) {
	if c.link == nil || c.link.closing {
		return nil, ErrNotConnected
	}
	return c.link, nil
}

// queue encodes msg onto the link's send buffer. Called with mu held.
func (c *Client) queue(l *link, msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case l.send <- frame:
		return nil
	case <-l.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// writeLoop writes queued frames until the buffer is closed by Disconnect or
// the link fails.
func (c *Client) writeLoop(l *link) {
	defer l.close()

	for {
		select {
		case frame, ok := <-l.send:
			if !ok {
				return
			}
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteFrame(frame); err != nil {
				if !transport.IsClosed(err) {
					c.logger.Error("Failed to write message", "error", err)
				}
				return
			}

		case <-l.done:
			return
		}
	}
}

// readLoop applies dealer messages to the view and reports them
func (c *Client) readLoop(l *link) {
	defer c.finish(l)

	for {
		frame, err := l.conn.ReadFrame()
		if err != nil {
			if !transport.IsClosed(err) {
				select {
				case <-l.done:
				default:
					c.logger.Error("Read failed", "error", err)
					c.listener.OnError(fmt.Errorf("connection lost: %w", err))
				}
			}
			return
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("Invalid message from dealer", "error", err)
			c.listener.OnError(err)
			continue
		}
		c.logger.Debug("Received message", "type", msg.Type())

		c.mu.Lock()
		c.handle(msg)
		c.mu.Unlock()

		c.listener.OnMessage(msg)

		if e, ok := msg.(*protocol.Error); ok {
			c.listener.OnError(&ServerError{Code: e.Code, Message: e.Message})
			if e.Code == protocol.CodeTableFull {
				l.close()
				return
			}
		}
	}
}

// handle updates the view for one message. Called with mu held.
func (c *Client) handle(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.UpdateGameState:
		c.doubleStake = 0
	case *protocol.CardDealt:
		// Only the double's card carries the stake
		if m.Bet > 0 {
			c.doubleStake = 0
		}
	case *protocol.RoundEnd:
		c.refundDouble()
	case *protocol.Error:
		if m.Code == protocol.CodeInvalidAction || m.Code == protocol.CodeNotYourTurn {
			c.refundDouble()
		}
		c.logger.Warn("Dealer rejected message", "code", m.Code, "message", m.Message)
	}
	c.view.apply(msg)
}

// refundDouble returns an unconfirmed double's second stake. Called with mu
// held.
func (c *Client) refundDouble() {
	if c.doubleStake == 0 {
		return
	}
	c.logger.Debug("Double down not taken", "refund", c.doubleStake)
	c.view.Chips += c.doubleStake
	c.view.Bet -= c.doubleStake
	c.doubleStake = 0
}

// finish tears down a closed link and reports the disconnect once
func (c *Client) finish(l *link) {
	l.close()
	l.finishOnce.Do(func() {
		c.mu.Lock()
		if c.link == l {
			if !c.view.RoundInProgress {
				c.view.Chips += c.view.Bet // stake never dealt on
			}
			c.link = nil
			c.view.Connected = false
			c.view.RoundInProgress = false
			c.view.PlayerTurn = false
			c.view.DealerTurn = false
			c.view.Bet = 0
			c.view.Status = "Disconnected"
		}
		c.mu.Unlock()

		c.logger.Info("Disconnected from dealer")
		c.listener.OnDisconnected()
		close(l.finished)
	})
}
