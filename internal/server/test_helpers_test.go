package server

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/transport"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

// stackedDecks deals the given codes first: player, dealer, player, dealer,
// then any further draws in order.
func stackedDecks(t *testing.T, codes string) game.DeckSource {
	t.Helper()
	top := deck.MustParseCards(codes)
	return func() *deck.Deck {
		d, err := deck.Stacked(randutil.New(1), top...)
		if err != nil {
			panic(err)
		}
		return d
	}
}

// recorder is a Listener that keeps every notification
type recorder struct {
	BaseListener

	mu           sync.Mutex
	connected    []string
	disconnected int
	statuses     []string
	errors       []error
	dealt        [][2][]deck.Card
	playerCards  []deck.Card
	dealerCards  []deck.Card
	turns        []bool
	rounds       []RoundRecord
}

func (r *recorder) OnClientConnected(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, addr)
}

func (r *recorder) OnClientDisconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recorder) OnStatus(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) OnCardsDealt(dealer, player []deck.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dealt = append(r.dealt, [2][]deck.Card{dealer, player})
}

func (r *recorder) OnPlayerCard(c deck.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerCards = append(r.playerCards, c)
}

func (r *recorder) OnDealerCard(c deck.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dealerCards = append(r.dealerCards, c)
}

func (r *recorder) OnTurnChanged(dealerTurn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, dealerTurn)
}

func (r *recorder) OnRoundEnded(rec RoundRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, rec)
}

func (r *recorder) disconnects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnected
}

func (r *recorder) connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connected)
}

func (r *recorder) statusList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// hasStatus waits until the dealer console has been shown s
func (r *recorder) hasStatus(t *testing.T, s string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, got := range r.statusList() {
			if got == s {
				return true
			}
		}
		return false
	}, testTimeout, 5*time.Millisecond, "status %q never shown", s)
}

func (r *recorder) roundsEnded() []RoundRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RoundRecord(nil), r.rounds...)
}

// startServer runs a dealer on a loopback port until the test ends
func startServer(t *testing.T, cfg *Config, opts ...Option) (*Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := NewServer(cfg, rec, testLogger(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for server")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server returned error: %v", err)
			}
		case <-time.After(testTimeout):
			t.Error("server did not stop")
		}
	})
	return srv, rec
}

// testPlayer speaks the wire protocol directly
type testPlayer struct {
	t    *testing.T
	conn transport.Conn
	msgs chan protocol.Message
	errs chan error
}

func dialPlayer(t *testing.T, srv *Server) *testPlayer {
	t.Helper()
	kind, err := transport.ParseKind(srv.cfg.Server.Transport)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	conn, err := transport.Dial(ctx, kind, srv.Addr())
	require.NoError(t, err)

	p := &testPlayer{
		t:    t,
		conn: conn,
		msgs: make(chan protocol.Message, 64),
		errs: make(chan error, 1),
	}
	go p.readLoop()
	t.Cleanup(func() { _ = conn.Close() })
	return p
}

// connectPlayer dials and completes the CONNECT_REQUEST handshake
func connectPlayer(t *testing.T, srv *Server) *testPlayer {
	t.Helper()
	p := dialPlayer(t, srv)
	p.send(&protocol.ConnectRequest{Name: "tester"})
	accept := expect[*protocol.ConnectAccept](p)
	require.Equal(t, DefaultWelcome, accept.Welcome)
	return p
}

func (p *testPlayer) readLoop() {
	for {
		frame, err := p.conn.ReadFrame()
		if err != nil {
			p.errs <- err
			close(p.msgs)
			return
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			p.errs <- err
			close(p.msgs)
			return
		}
		p.msgs <- msg
	}
}

func (p *testPlayer) send(msg protocol.Message) {
	p.t.Helper()
	frame, err := protocol.Encode(msg)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteFrame(frame))
}

func (p *testPlayer) next() protocol.Message {
	p.t.Helper()
	select {
	case msg, ok := <-p.msgs:
		if !ok {
			p.t.Fatalf("connection closed: %v", <-p.errs)
		}
		return msg
	case <-time.After(testTimeout):
		p.t.Fatal("timeout waiting for message")
		return nil
	}
}

// expect reads the next message and asserts its type
func expect[T protocol.Message](p *testPlayer) T {
	p.t.Helper()
	msg := p.next()
	typed, ok := msg.(T)
	if !ok {
		p.t.Fatalf("expected %T, got %T %+v", *new(T), msg, msg)
	}
	return typed
}

// expectError reads a PROTOCOL_ERROR with the given code
func (p *testPlayer) expectError(code string) {
	p.t.Helper()
	e := expect[*protocol.Error](p)
	require.Equal(p.t, code, e.Code, e.Message)
}

// expectClosed waits for the dealer to drop the connection
func (p *testPlayer) expectClosed() {
	p.t.Helper()
	select {
	case msg, ok := <-p.msgs:
		if ok {
			p.t.Fatalf("expected close, got %T %+v", msg, msg)
		}
	case <-time.After(testTimeout):
		p.t.Fatal("timeout waiting for close")
	}
}

// placeBet sends PLACE_BET and waits until the table holds it
func placeBet(t *testing.T, srv *Server, p *testPlayer, amount int) {
	t.Helper()
	p.send(&protocol.PlaceBet{Amount: amount})
	require.Eventually(t, func() bool {
		return srv.State().Bet == amount
	}, testTimeout, 5*time.Millisecond)
}

// waitPhase waits until the session reaches phase
func waitPhase(t *testing.T, srv *Server, phase game.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := srv.State()
		return st.Connected && st.Phase == phase
	}, testTimeout, 5*time.Millisecond)
}

func newMockClock(t *testing.T) *quartz.Mock {
	mClock := quartz.NewMock(t)
	mClock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return mClock
}
