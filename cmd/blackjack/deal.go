package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/server"
	"github.com/lox/blackjack/internal/tui"
	"golang.org/x/sync/errgroup"
)

// DealCmd runs the dealer
type DealCmd struct {
	Config    string `short:"c" default:"blackjack.hcl" env:"BLACKJACK_CONFIG" help:"Path to HCL configuration file"`
	Addr      string `env:"BLACKJACK_ADDR" help:"Address to bind (overrides config)"`
	Port      *int   `short:"p" env:"BLACKJACK_PORT" help:"Port to listen on (overrides config)"`
	Transport string `env:"BLACKJACK_TRANSPORT" help:"Transport: tcp or websocket (overrides config)"`
	LogLevel  string `short:"l" env:"BLACKJACK_LOG_LEVEL" help:"Log level (overrides config)"`
	LogFile   string `env:"BLACKJACK_LOG_FILE" help:"Log file path (overrides config)"`
	History   string `name:"history-file" env:"BLACKJACK_HISTORY_FILE" help:"Save settled rounds as JSON lines on shutdown (overrides config)"`
	Seed      *int64 `env:"BLACKJACK_SEED" help:"Deterministic RNG seed for shuffling (optional)"`
	Stack     string `help:"Cards dealt first every round, e.g. AhKd9s7c"`
	Debug     bool   `help:"Enable debug logging"`
	Headless  bool   `help:"Read commands from stdin and log to stderr instead of the full screen console"`
	NoColor   bool   `help:"Disable colours"`
}

func (c *DealCmd) Run() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.NoColor {
		tui.DisableColor()
	}

	logOut := io.Writer(os.Stderr)
	if !c.Headless {
		f, err := shared.OpenLogFile(cfg.Server.LogFile)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger, err := shared.SetupLogger(logOut, cfg.Server.LogLevel, c.Debug)
	if err != nil {
		return err
	}

	decks, err := c.deckSource(logger)
	if err != nil {
		return err
	}

	logger.Info("Starting dealer",
		"addr", cfg.ListenAddress(),
		"transport", cfg.Server.Transport,
		"min_bet", cfg.Table.MinBet,
		"max_bet", cfg.Table.MaxBet,
		"config", c.Config)

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	if c.Headless {
		return runHeadless(ctx, cfg, decks, logger)
	}
	return runConsole(ctx, cfg, decks, logger)
}

func (c *DealCmd) loadConfig() (*server.Config, error) {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != nil {
		cfg.Server.Port = *c.Port
	}
	if c.Transport != "" {
		cfg.Server.Transport = c.Transport
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.Server.LogFile = c.LogFile
	}
	if c.History != "" {
		cfg.Server.HistoryFile = c.History
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *DealCmd) deckSource(logger *log.Logger) (game.DeckSource, error) {
	rng, seed := randutil.FromFlag(c.Seed)
	if c.Seed != nil {
		logger.Info("Using deterministic seed", "seed", seed)
	} else {
		logger.Info("Using random seed", "seed", seed)
	}

	if c.Stack == "" {
		return game.ShuffledDecks(rng), nil
	}
	top, err := deck.ParseCards(c.Stack)
	if err != nil {
		return nil, fmt.Errorf("invalid --stack: %w", err)
	}
	decks, err := game.StackedDecks(rng, top)
	if err != nil {
		return nil, fmt.Errorf("invalid --stack: %w", err)
	}
	logger.Warn("Dealing from a stacked deck", "top", deck.FormatCards(top))
	return decks, nil
}

// runConsole runs the dealer behind the full screen console
func runConsole(ctx context.Context, cfg *server.Config, decks game.DeckSource, logger *log.Logger) error {
	listener := tui.NewDealerListener()
	defer listener.Close()
	srv := server.NewServer(cfg, listener, logger, server.WithDecks(decks))

	p := tea.NewProgram(tui.NewDealerModel(srv, logger), tea.WithAltScreen())
	listener.Bind(p)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		p.Quit()
		return nil
	})

	return g.Wait()
}

// runHeadless runs the dealer with commands read line by line from stdin
func runHeadless(ctx context.Context, cfg *server.Config, decks game.DeckSource, logger *log.Logger) error {
	srv := server.NewServer(cfg, &logListener{logger: logger, out: os.Stdout}, logger, server.WithDecks(decks))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return runCommands(ctx, srv, os.Stdin, os.Stdout)
	})

	return g.Wait()
}

// runCommands executes dealer commands from in until quit. At end of input it
// waits for ctx so a detached dealer keeps serving.
func runCommands(ctx context.Context, d tui.Dealer, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			cmd, err := tui.ParseDealerCommand(line)
			if errors.Is(err, tui.ErrEmptyCommand) {
				continue
			}
			if err != nil {
				_, _ = fmt.Fprintln(out, "Error:", err)
				continue
			}
			if cmd.Name == tui.CmdQuit {
				return nil
			}
			output, err := tui.RunDealerCommand(d, cmd)
			if err != nil {
				_, _ = fmt.Fprintln(out, "Error:", err)
				continue
			}
			if output != "" {
				_, _ = fmt.Fprintln(out, output)
			}
		}
	}
}

// logListener reports dealer events without a console
type logListener struct {
	server.BaseListener
	logger *log.Logger
	out    io.Writer
}

func (l *logListener) OnClientConnected(addr string) {
	l.logger.Info("Player connected", "addr", addr)
}

func (l *logListener) OnClientDisconnected() {
	l.logger.Info("Player disconnected")
}

func (l *logListener) OnStatus(status string) {
	_, _ = fmt.Fprintln(l.out, status)
}

func (l *logListener) OnError(err error) {
	l.logger.Error("Dealer error", "error", err)
}

func (l *logListener) OnRoundEnded(r server.RoundRecord) {
	l.logger.Info("Round settled",
		"round", r.ID,
		"outcome", r.Outcome,
		"bet", r.Bet,
		"payout", r.Payout,
		"house_net", r.HouseNet())
}
