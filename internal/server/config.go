package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/blackjack/internal/transport"
)

const (
	DefaultPort        = 7777
	DefaultWelcome     = "Welcome to Blackjack!"
	DefaultHistorySize = 50
)

// Config represents the complete dealer configuration
type Config struct {
	Server ServerSettings
	Table  TableSettings
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address     string `hcl:"address,optional"`
	Port        int    `hcl:"port,optional"`
	Transport   string `hcl:"transport,optional"`
	LogLevel    string `hcl:"log_level,optional"`
	LogFile     string `hcl:"log_file,optional"`
	HistorySize int    `hcl:"history_size,optional"`
	HistoryFile string `hcl:"history_file,optional"`
	Welcome     string `hcl:"welcome,optional"`
}

// TableSettings contains betting limits. MaxBet of zero means no limit.
type TableSettings struct {
	MinBet int `hcl:"min_bet,optional"`
	MaxBet int `hcl:"max_bet,optional"`
}

// configFile holds the optional blocks undecoded so each can be decoded over
// the defaults; keys a block leaves out keep their default values.
type configFile struct {
	Server *rawBlock `hcl:"server,block"`
	Table  *rawBlock `hcl:"table,block"`
}

type rawBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// DefaultConfig returns default dealer configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:     "0.0.0.0",
			Port:        DefaultPort,
			Transport:   string(transport.TCP),
			LogLevel:    "info",
			LogFile:     "blackjack-dealer.log",
			HistorySize: DefaultHistorySize,
			Welcome:     DefaultWelcome,
		},
		Table: TableSettings{
			MinBet: 1,
		},
	}
}

// LoadConfig loads dealer configuration from an HCL file. A missing file
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
		if diags := gohcl.DecodeBody(raw.Server.Body, nil, &config.Server); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode server block: %s", diags.Error())
		}
	}
	if raw.Table != nil {
		if diags := gohcl.DecodeBody(raw.Table.Body, nil, &config.Table); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode table block: %s", diags.Error())
		}
	}

	return config, nil
}

// Validate validates the dealer configuration. Port 0 asks the OS for a free
// port.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := transport.ParseKind(c.Server.Transport); err != nil {
		return err
	}
	if c.Server.HistorySize < 0 {
		return fmt.Errorf("history_size must not be negative: %d", c.Server.HistorySize)
	}
	if c.Table.MinBet < 1 {
		return fmt.Errorf("min_bet must be at least 1: %d", c.Table.MinBet)
	}
	if c.Table.MaxBet != 0 && c.Table.MaxBet < c.Table.MinBet {
		return fmt.Errorf("max_bet %d is below min_bet %d", c.Table.MaxBet, c.Table.MinBet)
	}
	return nil
}

// ListenAddress returns the host:port to bind
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// AllowsBet reports whether amount is inside the table limits
func (t TableSettings) AllowsBet(amount int) bool {
	if amount < t.MinBet {
		return false
	}
	return t.MaxBet == 0 || amount <= t.MaxBet
}
