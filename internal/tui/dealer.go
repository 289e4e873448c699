package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/server"
)

// Dealer is the part of *server.Server the dealer console drives
type Dealer interface {
	StartGame() error
	DealerHit() error
	DealerStand() error
	State() server.TableState
	History() *server.History
}

var _ Dealer = (*server.Server)(nil)

// RunDealerCommand performs an operator command and returns any text to show.
// Game progress is reported through the server's Listener, not the result.
func RunDealerCommand(d Dealer, cmd Command) (string, error) {
	switch cmd.Name {
	case CmdStart:
		return "", d.StartGame()
	case CmdHit:
		return "", d.DealerHit()
	case CmdStand:
		return "", d.DealerStand()
	case CmdHistory:
		return FormatHistory(d.History()), nil
	case CmdTable:
		return FormatTable(d.State()), nil
	case CmdHelp:
		return dealerHelp, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
}

// FormatTable describes the table from the dealer's side, hole card included
func FormatTable(st server.TableState) string {
	if !st.Connected {
		return "No player connected."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Player %s, phase %s, bet $%d", st.RemoteAddr, st.Phase, st.Bet)
	if st.Started {
		fmt.Fprintf(&b, "\nPlayer: %s = %s", formatCards(st.PlayerCards, false), formatValue(st.PlayerValue, st.PlayerSoft))
		fmt.Fprintf(&b, "\nDealer: %s = %s", formatCards(st.DealerCards, false), formatValue(st.DealerValue, st.DealerSoft))
	}
	return b.String()
}

// FormatHistory lists settled rounds, oldest first, with the house's net
func FormatHistory(h *server.History) string {
	records := h.Records()
	if len(records) == 0 {
		return "No rounds played yet."
	}

	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "#%d %s bet $%d payout $%d | player %s %d | dealer %s %d | %s\n",
			i+1, r.Outcome, r.Bet, r.Payout,
			deck.FormatCards(r.PlayerCards), r.PlayerValue,
			deck.FormatCards(r.DealerCards), r.DealerValue,
			r.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "House net: $%d over %d rounds", h.HouseNet(), len(records))
	return b.String()
}

// Messages delivered by DealerListener
type (
	dealerStatusMsg string
	dealerErrorMsg  struct{ err error }
	roundEndedMsg   server.RoundRecord
	tableChangedMsg struct{}
)

// commandResultMsg carries the outcome of a command run off the UI goroutine
type commandResultMsg struct {
	output string
	err    error
}

// DealerListener forwards server notifications into a running program
type DealerListener struct {
	server.BaseListener
	mailbox
}

var _ server.Listener = (*DealerListener)(nil)

// NewDealerListener creates a listener. Notifications are dropped until Bind.
func NewDealerListener() *DealerListener {
	return &DealerListener{}
}

func (l *DealerListener) OnClientConnected(string) { l.send(tableChangedMsg{}) }
func (l *DealerListener) OnClientDisconnected()    { l.send(tableChangedMsg{}) }
func (l *DealerListener) OnStatus(s string)        { l.send(dealerStatusMsg(s)) }
func (l *DealerListener) OnError(err error)        { l.send(dealerErrorMsg{err}) }
func (l *DealerListener) OnTurnChanged(bool)       { l.send(tableChangedMsg{}) }

func (l *DealerListener) OnRoundEnded(r server.RoundRecord) {
	l.send(roundEndedMsg(r))
}

// DealerModel is the dealer's console
type DealerModel struct {
	console

	dealer Dealer
	state  server.TableState
	rounds int
	net    int
}

// NewDealerModel creates the dealer console for d
func NewDealerModel(d Dealer, logger *log.Logger) *DealerModel {
	m := &DealerModel{
		console: newConsole(logger, "Blackjack Dealer", "start, hit, stand, history, help, quit"),
		dealer:  d,
	}
	m.addLog(InfoStyle.Render(dealerHelp))
	return m
}

// Init initializes the model
func (m *DealerModel) Init() tea.Cmd {
	return func() tea.Msg { return tableChangedMsg{} }
}

// Update handles messages
func (m *DealerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
		if line, ok := m.handleKey(msg); ok {
			cmds = append(cmds, m.submit(line))
		}

	case dealerStatusMsg:
		m.addLog(string(msg))
		m.refresh()

	case dealerErrorMsg:
		m.addLog(ErrorStyle.Render("Error: " + msg.err.Error()))

	case roundEndedMsg:
		m.rounds++
		m.net += server.RoundRecord(msg).HouseNet()
		m.refresh()

	case tableChangedMsg:
		m.refresh()

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
func (m *DealerModel) submit(line string) tea.Cmd {
	if line == "" {
		return nil
	}
	cmd, err := ParseDealerCommand(line)
	if err != nil {
		m.addLog(ErrorStyle.Render(err.Error()))
		return nil
	}
	m.addLog(InfoStyle.Render("> " + line))

	if cmd.Name == CmdQuit {
		m.quitting = true
		return tea.Quit
	}

	// Server calls deliver notifications back into the program; keep them off
	// the update goroutine.
	d := m.dealer
	return func() tea.Msg {
		out, err := RunDealerCommand(d, cmd)
		return commandResultMsg{output: out, err: err}
	}
}

func (m *DealerModel) refresh() {
	m.state = m.dealer.State()
}

// View renders the console
func (m *DealerModel) View() string {
	return m.render(m.renderSidebar(), m.renderActions())
}

func (m *DealerModel) renderSidebar() string {
	var b strings.Builder
	st := m.state

	if st.Connected {
		b.WriteString(SuccessStyle.Render("Player connected"))
		b.WriteString("\n" + InfoStyle.Render(st.RemoteAddr))
	} else {
		b.WriteString(WarningStyle.Render("Waiting for player..."))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Bet: $%d\n", st.Bet)
	fmt.Fprintf(&b, "Rounds: %d\n", m.rounds)

	netStyle := SuccessStyle
	if m.net < 0 {
		netStyle = ErrorStyle
	}
	b.WriteString("House net: " + netStyle.Render(fmt.Sprintf("$%d", m.net)))
	return b.String()
}

func (m *DealerModel) renderActions() string {
	st := m.state
	if !st.Connected || !st.Started {
		msg := "Waiting for a bet..."
		if st.Bet > 0 {
			msg = fmt.Sprintf("Player bet $%d. Type start to deal.", st.Bet)
		}
		return HandInfoStyle.Render(msg) + "\n"
	}

	var b strings.Builder
	b.WriteString(HandInfoStyle.Render(fmt.Sprintf("Player: %s = %s", formatCards(st.PlayerCards, false), formatValue(st.PlayerValue, st.PlayerSoft))))
	b.WriteString("\n")
	b.WriteString(HandInfoStyle.Render(fmt.Sprintf("Dealer: %s = %s", formatCards(st.DealerCards, false), formatValue(st.DealerValue, st.DealerSoft))))
	b.WriteString("\n")

	if st.Phase == game.DealerTurn {
		b.WriteString(ActionsStyle.Render("Your move: ") + SuccessStyle.Render("[hit]") + " " + WarningStyle.Render("[stand]"))
	} else {
		b.WriteString(InfoStyle.Render("Player's turn..."))
	}
	b.WriteString("\n")
	return b.String()
}
