package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/tui"
)

// PlayCmd connects to a dealer as the player
type PlayCmd struct {
	Config    string `short:"c" default:"player.hcl" env:"BLACKJACK_PLAYER_CONFIG" help:"Path to HCL configuration file"`
	Host      string `short:"H" env:"BLACKJACK_HOST" help:"Dealer host (overrides config)"`
	Port      int    `short:"p" env:"BLACKJACK_PORT" help:"Dealer port (overrides config)"`
	Transport string `env:"BLACKJACK_TRANSPORT" help:"Transport: tcp or websocket (overrides config)"`
	Name      string `short:"n" env:"BLACKJACK_PLAYER" help:"Player name (overrides config)"`
	Chips     int    `env:"BLACKJACK_CHIPS" help:"Starting chips (overrides config)"`
	LogLevel  string `short:"l" env:"BLACKJACK_LOG_LEVEL" help:"Log level (overrides config)"`
	LogFile   string `env:"BLACKJACK_LOG_FILE" help:"Log file path (overrides config)"`
	Debug     bool   `help:"Enable debug logging"`
	NoColor   bool   `help:"Disable colours"`
}

func (c *PlayCmd) Run() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.NoColor {
		tui.DisableColor()
	}

	logFile, err := shared.OpenLogFile(cfg.UI.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	logger, err := shared.SetupLogger(logFile, cfg.UI.LogLevel, c.Debug)
	if err != nil {
		return err
	}

	logger.Info("Starting player",
		"server", cfg.ServerAddress(),
		"transport", cfg.Server.Transport,
		"player", cfg.Player.Name,
		"chips", cfg.Player.StartingChips,
		"config", c.Config)

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	listener := tui.NewPlayerListener()
	defer listener.Close()
	cl := client.New(cfg, listener, logger)

	p := tea.NewProgram(tui.NewPlayerModel(cl, logger), tea.WithAltScreen())
	listener.Bind(p)

	if err := cl.Connect(ctx, ""); err != nil {
		return fmt.Errorf("failed to connect to dealer at %s: %w", cfg.ServerAddress(), err)
	}
	defer func() { _ = cl.Disconnect() }()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}

func (c *PlayCmd) loadConfig() (*client.Config, error) {
	cfg, err := client.LoadConfig(c.Config)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if c.Host != "" {
		cfg.Server.Address = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Transport != "" {
		cfg.Server.Transport = c.Transport
	}
	if c.Name != "" {
		cfg.Player.Name = c.Name
	}
	if c.Chips != 0 {
		cfg.Player.StartingChips = c.Chips
	}
	if c.LogLevel != "" {
		cfg.UI.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.UI.LogFile = c.LogFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
