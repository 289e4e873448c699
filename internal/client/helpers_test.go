package client

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/server"
	"github.com/lox/blackjack/internal/transport"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func splitAddr(addr string) (string, int) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		panic(err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		panic(err)
	}
	return host, n
}

func testConfig(addr string) *Config {
	cfg := DefaultConfig()
	cfg.Player.Name = "tester"
	cfg.Server.ConnectTimeout = 2
	if addr != "" {
		host, port := splitAddr(addr)
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	return cfg
}

// events records every client notification
type events struct {
	mu           sync.Mutex
	connected    int
	failed       []error
	disconnected int
	messages     []protocol.Message
	errors       []error
}

func (e *events) OnConnected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected++
}

func (e *events) OnConnectionFailed(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = append(e.failed, err)
}

func (e *events) OnDisconnected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnected++
}

func (e *events) OnMessage(msg protocol.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *events) OnError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, err)
}

func (e *events) disconnects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disconnected
}

func (e *events) errorList() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errors...)
}

func (e *events) types() []protocol.MessageType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []protocol.MessageType
	for _, m := range e.messages {
		out = append(out, m.Type())
	}
	return out
}

// startDealer runs a real dealer on a loopback port dealing codes first
func startDealer(t *testing.T, codes string, configure ...func(*server.Config)) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	for _, fn := range configure {
		fn(cfg)
	}

	var opts []server.Option
	if codes != "" {
		top := deck.MustParseCards(codes)
		opts = append(opts, server.WithDecks(func() *deck.Deck {
			d, err := deck.Stacked(randutil.New(1), top...)
			if err != nil {
				panic(err)
			}
			return d
		}))
	}
	srv := server.NewServer(cfg, nil, testLogger(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("dealer failed to start: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for dealer")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Error("dealer did not stop")
		}
	})
	return srv
}

// connect creates a client against addr and waits for CONNECT_ACCEPT
func connect(t *testing.T, addr string) (*Client, *events) {
	t.Helper()
	ev := &events{}
	c := New(testConfig(addr), ev, testLogger())
	require.NoError(t, c.Connect(context.Background(), ""))
	t.Cleanup(func() { _ = c.Disconnect() })

	require.Eventually(t, func() bool {
		return c.View().Welcome != ""
	}, testTimeout, 5*time.Millisecond)
	return c, ev
}

// waitView waits until cond holds for the client's view
func waitView(t *testing.T, c *Client, cond func(v TableView) bool) TableView {
	t.Helper()
	var v TableView
	require.Eventually(t, func() bool {
		v = c.View()
		return cond(v)
	}, testTimeout, 5*time.Millisecond)
	return v
}

func waitPhase(t *testing.T, srv *server.Server, phase game.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := srv.State()
		return st.Connected && st.Phase == phase
	}, testTimeout, 5*time.Millisecond)
}

// fakeDealer is a scripted dealer for exercising replies the real table
// never produces.
type fakeDealer struct {
	t    *testing.T
	ln   transport.Listener
	conn chan transport.Conn
	msgs chan protocol.Message

	once sync.Once
	c    transport.Conn
}

func newFakeDealer(t *testing.T) *fakeDealer {
	t.Helper()
	ln, err := transport.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDealer{
		t:    t,
		ln:   ln,
		conn: make(chan transport.Conn, 1),
		msgs: make(chan protocol.Message, 64),
	}
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		d.conn <- c
		for {
			frame, err := c.ReadFrame()
			if err != nil {
				close(d.msgs)
				return
			}
			msg, err := protocol.Decode(frame)
			if err != nil {
				close(d.msgs)
				return
			}
			d.msgs <- msg
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		if d.c != nil {
			_ = d.c.Close()
		}
	})
	return d
}

func (d *fakeDealer) addr() string {
	return d.ln.Addr()
}

// accepted waits for the player's connection
func (d *fakeDealer) accepted() transport.Conn {
	d.t.Helper()
	d.once.Do(func() {
		select {
		case d.c = <-d.conn:
		case <-time.After(testTimeout):
		}
	})
	if d.c == nil {
		d.t.Fatal("timeout waiting for player")
	}
	return d.c
}

func (d *fakeDealer) send(msg protocol.Message) {
	d.t.Helper()
	frame, err := protocol.Encode(msg)
	require.NoError(d.t, err)
	require.NoError(d.t, d.accepted().WriteFrame(frame))
}

// expect reads the next message from the player and asserts its type
func expect[T protocol.Message](d *fakeDealer) T {
	d.t.Helper()
	select {
	case msg, ok := <-d.msgs:
		if !ok {
			d.t.Fatal("player connection closed")
		}
		typed, ok := msg.(T)
		if !ok {
			d.t.Fatalf("expected %T, got %T %+v", *new(T), msg, msg)
		}
		return typed
	case <-time.After(testTimeout):
		d.t.Fatal("timeout waiting for player message")
	}
	var zero T
	return zero
}

// greet completes the handshake from the dealer's side
func (d *fakeDealer) greet() {
	d.t.Helper()
	expect[*protocol.ConnectRequest](d)
	d.send(&protocol.ConnectAccept{Welcome: "Welcome to Blackjack!"})
}

// connectFake connects a client to d and completes the handshake
func connectFake(t *testing.T, d *fakeDealer, cfg *Config) (*Client, *events) {
	t.Helper()
	ev := &events{}
	c := New(cfg, ev, testLogger())
	require.NoError(t, c.Connect(context.Background(), d.addr()))
	t.Cleanup(func() { _ = c.Disconnect() })

	d.greet()
	waitView(t, c, func(v TableView) bool { return v.Welcome != "" })
	return c, ev
}

// dealFake opens a round on the fake dealer with a two-card player hand
func dealFake(t *testing.T, d *fakeDealer, c *Client, player, upCard string) {
	t.Helper()
	cards := deck.MustParseCards(player)
	h := game.NewHand(cards...)
	d.send(&protocol.UpdateGameState{
		PlayerCards:  cards,
		DealerUpCard: deck.MustParseCards(upCard)[0],
		PlayerValue:  h.Value(),
		Bet:          c.View().Bet,
		Status:       "Your turn! Hit or Stand?",
		PlayerTurn:   true,
	})
	waitView(t, c, func(v TableView) bool { return v.PlayerTurn })
}
