package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command names shared by the dealer and player consoles
const (
	CmdStart   = "start"
	CmdHit     = "hit"
	CmdStand   = "stand"
	CmdDouble  = "double"
	CmdBet     = "bet"
	CmdHistory = "history"
	CmdTable   = "table"
	CmdStatus  = "status"
	CmdHelp    = "help"
	CmdQuit    = "quit"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
)

// Command is a parsed console line
type Command struct {
	Name   string
	Amount int
}

var dealerCommands = map[string]string{
	"start":   CmdStart,
	"deal":    CmdStart,
	"hit":     CmdHit,
	"h":       CmdHit,
	"stand":   CmdStand,
	"s":       CmdStand,
	"history": CmdHistory,
	"table":   CmdTable,
	"help":    CmdHelp,
	"?":       CmdHelp,
	"quit":    CmdQuit,
	"exit":    CmdQuit,
	"q":       CmdQuit,
}

var playerCommands = map[string]string{
	"bet":    CmdBet,
	"b":      CmdBet,
	"hit":    CmdHit,
	"h":      CmdHit,
	"stand":  CmdStand,
	"s":      CmdStand,
	"double": CmdDouble,
	"d":      CmdDouble,
	"status": CmdStatus,
	"help":   CmdHelp,
	"?":      CmdHelp,
	"quit":   CmdQuit,
	"exit":   CmdQuit,
	"q":      CmdQuit,
}

const dealerHelp = "Commands: start (deal), hit, stand, history, table, help, quit"

const playerHelp = "Commands: bet <amount>, hit, stand, double, status, help, quit"

// ParseDealerCommand parses an operator line such as "start" or "hit"
func ParseDealerCommand(input string) (Command, error) {
	return parseCommand(input, dealerCommands)
}

// ParsePlayerCommand parses a player line such as "bet 10" or "double"
func ParsePlayerCommand(input string) (Command, error) {
	return parseCommand(input, playerCommands)
}

func parseCommand(input string, names map[string]string) (Command, error) {
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) == 0 {
		return Command{}, ErrEmptyCommand
	}

	name, ok := names[parts[0]]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, parts[0])
	}
	args := parts[1:]

	if name == CmdBet {
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: bet <amount>")
		}
		amount, err := strconv.Atoi(strings.TrimPrefix(args[0], "$"))
		if err != nil || amount <= 0 {
			return Command{}, fmt.Errorf("invalid bet amount: %s", args[0])
		}
		return Command{Name: name, Amount: amount}, nil
	}

	if len(args) > 0 {
		return Command{}, fmt.Errorf("%s takes no arguments", name)
	}
	return Command{Name: name}, nil
}
