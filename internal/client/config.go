package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/blackjack/internal/transport"
)

// Config represents the complete player configuration
type Config struct {
	Server ServerConnection
	Player PlayerSettings
	UI     UISettings
}

// ServerConnection contains dealer connection settings
type ServerConnection struct {
	Address        string `hcl:"address,optional"`
	Port           int    `hcl:"port,optional"`
	Transport      string `hcl:"transport,optional"`
	ConnectTimeout int    `hcl:"connect_timeout,optional"` // Seconds
}

// PlayerSettings contains player-specific settings
type PlayerSettings struct {
	Name          string `hcl:"name,optional"`
	StartingChips int    `hcl:"starting_chips,optional"`
}

// UISettings contains user interface settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

type configFile struct {
	Server *ServerConnection `hcl:"server,block"`
	Player *PlayerSettings   `hcl:"player,block"`
	UI     *UISettings       `hcl:"ui,block"`
}

// DefaultConfig returns default player configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConnection{
			Address:        "localhost",
			Port:           7777,
			Transport:      string(transport.TCP),
			ConnectTimeout: 10,
		},
		Player: PlayerSettings{
			StartingChips: 100,
		},
		UI: UISettings{
			LogLevel: "warn",
			LogFile:  "blackjack-player.log",
		},
	}
}

// LoadConfig loads player configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw configFile
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config := DefaultConfig()
	if raw.Server != nil {
		config.Server = *raw.Server
	}
	if raw.Player != nil {
		config.Player = *raw.Player
	}
	if raw.UI != nil {
		config.UI = *raw.UI
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.Transport == "" {
		config.Server.Transport = defaults.Server.Transport
	}
	if config.Server.ConnectTimeout == 0 {
		config.Server.ConnectTimeout = defaults.Server.ConnectTimeout
	}
	if config.Player.StartingChips == 0 {
		config.Player.StartingChips = defaults.Player.StartingChips
	}
	if config.UI.LogLevel == "" {
		config.UI.LogLevel = defaults.UI.LogLevel
	}
	if config.UI.LogFile == "" {
		config.UI.LogFile = defaults.UI.LogFile
	}

	return config, nil
}

// Validate validates the player configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := transport.ParseKind(c.Server.Transport); err != nil {
		return err
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.Player.StartingChips <= 0 {
		return fmt.Errorf("starting chips must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.UI.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}
	return nil
}

// ServerAddress returns the dealer's host:port
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// ConnectTimeout returns the dial timeout
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Server.ConnectTimeout) * time.Second
}
