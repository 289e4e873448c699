package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/transport"
	"golang.org/x/sync/errgroup"
)

// Server is the dealer endpoint: it accepts one player at a time and exposes
// the dealer's moves to the console.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	listener Listener
	table    *Table

	clock quartz.Clock
	decks game.DeckSource

	mu     sync.Mutex
	ln     transport.Listener
	cancel context.CancelFunc
	ready  chan struct{}
	once   sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used to timestamp rounds
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithDecks sets where each round's deck comes from
func WithDecks(decks game.DeckSource) Option {
	return func(s *Server) {
		s.decks = decks
	}
}

// NewServer creates a dealer. listener may be nil.
func NewServer(cfg *Config, listener Listener, logger *log.Logger, opts ...Option) *Server {
	if listener == nil {
		listener = BaseListener{}
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.WithPrefix("server"),
		listener: listener,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.decks == nil {
		rng, _ := randutil.FromFlag(nil)
		s.decks = game.ShuffledDecks(rng)
	}
	s.table = NewTable(cfg, s.decks, s.clock, listener, logger)
	return s
}

// Run listens and serves until ctx is cancelled or Close is called
func (s *Server) Run(ctx context.Context) error {
	defer s.signalReady()

	kind, err := transport.ParseKind(s.cfg.Server.Transport)
	if err != nil {
		return err
	}

	ln, err := transport.Listen(kind, s.cfg.ListenAddress())
	if err != nil {
		err = fmt.Errorf("failed to start dealer: %w", err)
		s.listener.OnError(err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()
	s.signalReady()

	s.logger.Info("Dealer listening", "addr", ln.Addr(), "transport", kind)
	s.listener.OnStatus(fmt.Sprintf("Server started on %s. Waiting for player...", ln.Addr()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		defer cancel()
		return s.acceptLoop(ctx, g, ln)
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	s.saveHistory()
	s.logger.Info("Dealer stopped")
	return err
}

// saveHistory writes the kept rounds to the configured history file
func (s *Server) saveHistory() {
	path := s.cfg.Server.HistoryFile
	if path == "" {
		return
	}
	if err := s.table.History().Save(path); err != nil {
		s.logger.Error("Failed to save history", "path", path, "error", err)
		s.listener.OnError(fmt.Errorf("failed to save history: %w", err))
		return
	}
	s.logger.Info("Saved history", "path", path, "rounds", s.table.History().Len())
}

func (s *Server) acceptLoop(ctx context.Context, g *errgroup.Group, ln transport.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			err = fmt.Errorf("accept: %w", err)
			s.listener.OnError(err)
			return err
		}

		conn := NewConnection(c, s.logger, s.table.HandleMessage)
		if err := s.table.Attach(conn); err != nil {
			s.logger.Warn("Rejecting connection", "addr", c.RemoteAddr(), "error", err)
			go reject(c, s.logger)
			continue
		}

		g.Go(func() error {
			defer s.table.Detach(conn)
			return conn.Serve(ctx)
		})
	}
}

// Ready is closed once the server is listening, or once Run has failed to
// listen. Addr is "" in the second case.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) signalReady() {
	s.once.Do(func() { close(s.ready) })
}

// Addr returns the bound address, or "" before Run has started listening
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr()
}

// Close stops the server and drops the player
func (s *Server) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// StartGame deals a new round to the connected player
func (s *Server) StartGame() error {
	return s.table.StartGame()
}

// DealerHit draws a card for the dealer
func (s *Server) DealerHit() error {
	return s.table.DealerHit()
}

// DealerStand settles the round
func (s *Server) DealerStand() error {
	return s.table.DealerStand()
}

// State returns the current table state
func (s *Server) State() TableState {
	return s.table.State()
}

// History returns the settled rounds kept in memory
func (s *Server) History() *History {
	return s.table.History()
}
