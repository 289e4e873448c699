package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/protocol"
)

// Player is the part of *client.Client the player console drives
type Player interface {
	PlaceBet(amount int) error
	SendAction(action game.Action) error
	Disconnect() error
	View() client.TableView
}

var _ Player = (*client.Client)(nil)

// RunPlayerCommand performs a player command and returns any text to show
func RunPlayerCommand(p Player, cmd Command) (string, error) {
	switch cmd.Name {
	case CmdBet:
		if err := p.PlaceBet(cmd.Amount); err != nil {
			return "", err
		}
		v := p.View()
		return fmt.Sprintf("Bet $%d. Stake $%d, chips $%d. Waiting for dealer to start game...", cmd.Amount, v.Bet, v.Chips), nil
	case CmdHit:
		return "", p.SendAction(game.Hit)
	case CmdStand:
		return "", p.SendAction(game.Stand)
	case CmdDouble:
		return "", p.SendAction(game.DoubleDown)
	case CmdStatus:
		return FormatView(p.View()), nil
	case CmdHelp:
		return playerHelp, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
}

// FormatView describes the player's view of the table
func FormatView(v client.TableView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chips $%d, stake $%d, rounds %d", v.Chips, v.Bet, v.RoundsPlayed)
	if len(v.PlayerCards) > 0 {
		fmt.Fprintf(&b, "\nYou: %s = %d", formatCards(v.PlayerCards, false), v.PlayerValue)
		fmt.Fprintf(&b, "\nDealer: %s", formatCards(v.DealerCards, v.DealerHidden))
		if !v.DealerHidden {
			fmt.Fprintf(&b, " = %d", v.DealerValue)
		}
	}
	return b.String()
}

func betLimits(minBet, maxBet int) string {
	switch {
	case maxBet > 0:
		return fmt.Sprintf(" Bets $%d-$%d.", minBet, maxBet)
	case minBet > 0:
		return fmt.Sprintf(" Bets from $%d.", minBet)
	}
	return ""
}

// describeMessage turns a dealer message into a log line. v supplies the chip
// count after the message was applied.
func describeMessage(msg protocol.Message, v client.TableView) string {
	switch m := msg.(type) {
	case *protocol.ConnectAccept:
		return SuccessStyle.Render(m.Welcome) + betLimits(m.MinBet, m.MaxBet)
	case *protocol.UpdateGameState:
		return fmt.Sprintf("Cards dealt. You: %s = %d. Dealer shows %s. %s",
			formatCards(m.PlayerCards, false), m.PlayerValue,
			formatCards([]deck.Card{m.DealerUpCard}, true), m.Status)
	case *protocol.CardDealt:
		return fmt.Sprintf("You draw %s = %d. %s",
			formatCards([]deck.Card{m.Card}, false), m.PlayerValue, m.Status)
	case *protocol.DealerCardDealt:
		return fmt.Sprintf("Dealer draws %s = %d. %s",
			formatCards([]deck.Card{m.Card}, false), m.DealerValue, m.Status)
	case *protocol.TurnChanged:
		return m.Status
	case *protocol.RoundEnd:
		line := fmt.Sprintf("Dealer: %s = %d. %s Chips: $%d",
			formatCards(m.DealerCards, false), m.DealerValue, m.Status, v.Chips)
		if m.Payout > 0 {
			return SuccessStyle.Render(line)
		}
		return line
	default:
		return ""
	}
}

// Messages delivered by PlayerListener
type (
	playerMsg          struct{ msg protocol.Message }
	playerErrorMsg     struct{ err error }
	playerConnectedMsg struct{}
	disconnectedMsg    struct{}
)

// PlayerListener forwards client notifications into a running program
type PlayerListener struct {
	client.BaseListener
	mailbox
}

var _ client.Listener = (*PlayerListener)(nil)

// NewPlayerListener creates a listener. Notifications are dropped until Bind.
func NewPlayerListener() *PlayerListener {
	return &PlayerListener{}
}

func (l *PlayerListener) OnConnected()                 { l.send(playerConnectedMsg{}) }
func (l *PlayerListener) OnConnectionFailed(err error) { l.send(playerErrorMsg{err}) }
func (l *PlayerListener) OnDisconnected()              { l.send(disconnectedMsg{}) }
func (l *PlayerListener) OnError(err error)            { l.send(playerErrorMsg{err}) }

func (l *PlayerListener) OnMessage(msg protocol.Message) {
	// Errors arrive through OnError as well
	if _, ok := msg.(*protocol.Error); ok {
		return
	}
	l.send(playerMsg{msg})
}

// PlayerModel is the player's console
type PlayerModel struct {
	console

	player Player
	view   client.TableView
}

// NewPlayerModel creates the player console for p
func NewPlayerModel(p Player, logger *log.Logger) *PlayerModel {
	m := &PlayerModel{
		console: newConsole(logger, "Blackjack", "bet 10, hit, stand, double, quit"),
		player:  p,
		view:    p.View(),
	}
	m.addLog(InfoStyle.Render(playerHelp))
	return m
}

// Init initializes the model
func (m *PlayerModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			return m, m.quit()
		}
		if line, ok := m.handleKey(msg); ok {
			cmds = append(cmds, m.submit(line))
		}

	case playerConnectedMsg:
		m.refresh()

	case playerMsg:
		m.refresh()
		if line := describeMessage(msg.msg, m.view); line != "" {
			m.addLog(line)
		}
		if _, ok := msg.msg.(*protocol.RoundEnd); ok && m.view.OutOfChips() {
			m.addLog(WarningStyle.Render("Out of chips! Thanks for playing."))
		}

	case playerErrorMsg:
		var se *client.ServerError
		if errors.As(msg.err, &se) {
			m.addLog(ErrorStyle.Render(se.Message))
		} else {
			m.addLog(ErrorStyle.Render("Error: " + msg.err.Error()))
		}
		m.refresh()

	case disconnectedMsg:
		m.refresh()
		m.addLog(WarningStyle.Render("Disconnected from dealer."))

	case commandResultMsg:
		if msg.err != nil {
			m.addLog(ErrorStyle.Render(msg.err.Error()))
		} else if msg.output != "" {
			m.addLog(msg.output)
		}
		m.refresh()
	}

	cmds = append(cmds, m.updateComponents(msg))
	return m, tea.Batch(cmds...)
}

// submit parses a line and returns the command that runs it
func (m *PlayerModel) submit(line string) tea.Cmd {
	if line == "" {
		return nil
	}
	cmd, err := ParsePlayerCommand(line)
	if err != nil {
		m.addLog(ErrorStyle.Render(err.Error()))
		return nil
	}
	m.addLog(InfoStyle.Render("> " + line))

	if cmd.Name == CmdQuit {
		return m.quit()
	}

	p := m.player
	return func() tea.Msg {
		out, err := RunPlayerCommand(p, cmd)
		return commandResultMsg{output: out, err: err}
	}
}

// quit says goodbye to the dealer before leaving
func (m *PlayerModel) quit() tea.Cmd {
	m.quitting = true
	p := m.player
	return tea.Sequence(func() tea.Msg {
		_ = p.Disconnect()
		return nil
	}, tea.Quit)
}

func (m *PlayerModel) refresh() {
	m.view = m.player.View()
}

// View renders the console
func (m *PlayerModel) View() string {
	return m.render(m.renderSidebar(), m.renderActions())
}

func (m *PlayerModel) renderSidebar() string {
	v := m.view
	var b strings.Builder

	if v.Connected {
		b.WriteString(SuccessStyle.Render("Connected"))
	} else {
		b.WriteString(ErrorStyle.Render("Disconnected"))
	}
	b.WriteString("\n\n")
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Chips: $%d", v.Chips)))
	b.WriteString("\n")
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Bet: $%d", v.Bet)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Rounds: %d\n", v.RoundsPlayed)
	if v.LastOutcome != "" {
		fmt.Fprintf(&b, "Last: %s ($%d)\n", v.LastOutcome, v.LastPayout)
	}
	return b.String()
}

func (m *PlayerModel) renderActions() string {
	v := m.view
	var b strings.Builder

	if v.RoundInProgress {
		b.WriteString(HandInfoStyle.Render(fmt.Sprintf("Dealer: %s", formatCards(v.DealerCards, v.DealerHidden))))
		if !v.DealerHidden {
			b.WriteString(HandInfoStyle.Render(fmt.Sprintf(" = %d", v.DealerValue)))
		}
		b.WriteString("\n")
		b.WriteString(HandInfoStyle.Render(fmt.Sprintf("You:    %s = %d", formatCards(v.PlayerCards, false), v.PlayerValue)))
		b.WriteString("\n")
	}

	if v.Status != "" {
		b.WriteString(v.Status)
		b.WriteString("\n")
	}
	b.WriteString(m.renderAvailableActions())
	b.WriteString("\n")
	return b.String()
}

// renderAvailableActions lists the commands that make sense right now
func (m *PlayerModel) renderAvailableActions() string {
	v := m.view
	var actions []string

	switch {
	case !v.Connected:
		actions = append(actions, ErrorStyle.Render("[quit]"))
	case v.PlayerTurn:
		actions = append(actions, SuccessStyle.Render("[hit]"), WarningStyle.Render("[stand]"))
		if v.CanDouble() {
			actions = append(actions, WarningStyle.Render("[double]"))
		}
	case v.RoundInProgress:
		actions = append(actions, InfoStyle.Render("[waiting for dealer]"))
	case v.OutOfChips():
		actions = append(actions, ErrorStyle.Render("[out of chips]"), ErrorStyle.Render("[quit]"))
	default:
		actions = append(actions, SuccessStyle.Render("[bet <amount>]"))
	}
	return ActionsStyle.Render("Actions: " + strings.Join(actions, " "))
}
