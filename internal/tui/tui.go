package tui

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
)

const (
	logPane = iota
	inputPane
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// mailbox forwards messages to a Sender in order without blocking the
// caller. Server and client callbacks hold locks the UI also takes.
type mailbox struct {
	mu      sync.Mutex
	sender  Sender
	pending []tea.Msg
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

// Bind starts delivering messages to s. Messages sent earlier are dropped.
func (b *mailbox) Bind(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.sender = s
	if b.wake == nil {
		b.wake = make(chan struct{}, 1)
		b.done = make(chan struct{})
		go b.run(b.wake, b.done)
	}
}

// Close stops delivery and ends the forwarding goroutine. Undelivered
// messages are dropped.
func (b *mailbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.sender = nil
	b.pending = nil
	if b.wake != nil {
		close(b.wake)
	}
}

func (b *mailbox) send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sender == nil {
		return
	}
	b.pending = append(b.pending, msg)

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *mailbox) run(wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for range wake {
		b.mu.Lock()
		batch, s := b.pending, b.sender
		b.pending = nil
		b.mu.Unlock()

		for _, msg := range batch {
			s.Send(msg)
		}
	}
}

// console is the layout shared by the dealer and player screens: a scrolling
// log with a sidebar beside it and the command input underneath.
type console struct {
	logger *log.Logger
	title  string

	logViewport viewport.Model
	input       textinput.Model

	gameLog     []string
	focusedPane int

	width       int
	height      int
	initialized bool
	quitting    bool
}

func newConsole(logger *log.Logger, title, placeholder string) console {
	// Sized properly once WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(focusColor).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return console{
		logger:      logger.WithPrefix("tui"),
		title:       title,
		logViewport: vp,
		input:       ti,
		focusedPane: inputPane,
	}
}

// addLog appends an entry and scrolls to the bottom
func (c *console) addLog(entry string) {
	c.gameLog = append(c.gameLog, entry)
	c.logViewport.SetContent(strings.Join(c.gameLog, "\n"))

	if c.logViewport.Height > 0 && c.logViewport.Width > 0 {
		c.logViewport.GotoBottom()
	}
}

// Log returns the entries written to the log pane
func (c *console) Log() []string {
	return slices.Clone(c.gameLog)
}

// handleKey applies navigation keys. When enter is pressed in the input pane
// the submitted line is returned and the input cleared.
func (c *console) handleKey(msg tea.KeyMsg) (string, bool) {
	switch msg.String() {
	case "tab":
		if c.focusedPane == logPane {
			c.focusedPane = inputPane
			c.input.Focus()
		} else {
			c.focusedPane = logPane
			c.input.Blur()
		}
	case "enter":
		if c.focusedPane == inputPane {
			line := strings.TrimSpace(c.input.Value())
			c.input.SetValue("")
			return line, true
		}
	}

	if c.focusedPane != logPane {
		return "", false
	}
	switch msg.String() {
	case "up", "k":
		c.logViewport.ScrollUp(1)
	case "down", "j":
		c.logViewport.ScrollDown(1)
	case "pgup", "b":
		c.logViewport.HalfPageUp()
	case "pgdown", "f":
		c.logViewport.HalfPageDown()
	case "home", "g":
		c.logViewport.GotoTop()
	case "end", "G":
		c.logViewport.GotoBottom()
	}
	return "", false
}

// updateComponents forwards msg to the input and viewport
func (c *console) updateComponents(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if c.focusedPane == inputPane {
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	c.logViewport, cmd = c.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return tea.Batch(cmds...)
}

func (c *console) resize(msg tea.WindowSizeMsg) {
	c.logger.Debug("Updating dimensions", "width", msg.Width, "height", msg.Height)
	c.width = msg.Width
	c.height = msg.Height
}

// render lays out the log, sidebar and action panes
func (c *console) render(sidebarContent, actionContent string) string {
	if c.quitting {
		return ""
	}
	if c.width == 0 || c.height == 0 {
		return "Loading..."
	}

	actionContent += c.input.View() + "\n" + c.helpLine()
	actionHeight := lipgloss.Height(actionContent)

	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(max(c.width-2, 1)).
		Height(max(actionHeight-2, 1))
	if c.focusedPane == inputPane {
		actionStyle = actionStyle.BorderForeground(focusColor)
	}
	actionPane := actionStyle.Render(actionContent)

	sidebarContent = HeaderStyle.Render(" "+c.title+" ") + "\n\n" + sidebarContent
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	paneHeight := max(c.height-actionHeight-4, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	c.logViewport.Width = max(c.width-sidebarWidth-4, 1)
	c.logViewport.Height = paneHeight
	c.logViewport.SetContent(strings.Join(c.gameLog, "\n"))

	// Start at the top on first proper sizing
	if !c.initialized && c.logViewport.Width > 1 && c.logViewport.Height > 1 {
		c.logViewport.GotoTop()
		c.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(c.logViewport.Width).
		Height(paneHeight)
	if c.focusedPane == logPane {
		logStyle = logStyle.BorderForeground(focusColor)
	}
	logView := logStyle.Render(c.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logView, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

func (c *console) helpLine() string {
	if c.focusedPane == logPane {
		return InfoStyle.Render("Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input")
	}
	return InfoStyle.Render("Tab to scroll log • Enter to submit • Ctrl+C to quit")
}

// formatCards renders cards with suit colours. Cards past the first are
// shown face down when hideHole is set.
func formatCards(cards []deck.Card, hideHole bool) string {
	if len(cards) == 0 {
		return "[]"
	}

	formatted := make([]string, 0, len(cards)+1)
	for i, card := range cards {
		switch {
		case hideHole && i > 0:
			formatted = append(formatted, HiddenCardStyle.Render("??"))
		case card.IsRed():
			formatted = append(formatted, RedCardStyle.Render(card.String()))
		default:
			formatted = append(formatted, BlackCardStyle.Render(card.String()))
		}
	}
	if hideHole && len(cards) == 1 {
		formatted = append(formatted, HiddenCardStyle.Render("??"))
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

// formatValue renders a hand total, marking soft hands
func formatValue(value int, soft bool) string {
	if soft {
		return fmt.Sprintf("%d (soft)", value)
	}
	return fmt.Sprintf("%d", value)
}
