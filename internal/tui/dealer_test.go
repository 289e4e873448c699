package tui

import (
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type fakeDealer struct {
	calls   []string
	err     error
	state   server.TableState
	history *server.History
}

func newFakeDealer() *fakeDealer {
	return &fakeDealer{history: server.NewHistory(10)}
}

func (d *fakeDealer) StartGame() error {
	d.calls = append(d.calls, "start")
	return d.err
}

func (d *fakeDealer) DealerHit() error {
	d.calls = append(d.calls, "hit")
	return d.err
}

func (d *fakeDealer) DealerStand() error {
	d.calls = append(d.calls, "stand")
	return d.err
}

func (d *fakeDealer) State() server.TableState  { return d.state }
func (d *fakeDealer) History() *server.History { return d.history }

// chanSender collects messages sent to a program
type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

func (c chanSender) next(t *testing.T) tea.Msg {
	t.Helper()
	select {
	case msg := <-c:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func midRound() server.TableState {
	return server.TableState{
		Connected:  true,
		RemoteAddr: "127.0.0.1:50000",
		Snapshot: game.Snapshot{
			Phase:       game.DealerTurn,
			Bet:         10,
			Started:     true,
			PlayerCards: deck.MustParseCards("Th9d"),
			DealerCards: deck.MustParseCards("Ac6s"),
			PlayerValue: 19,
			DealerValue: 17,
			DealerSoft:  true,
		},
	}
}

func TestRunDealerCommand(t *testing.T) {
	d := newFakeDealer()

	for _, name := range []string{CmdStart, CmdHit, CmdStand} {
		out, err := RunDealerCommand(d, Command{Name: name})
		require.NoError(t, err)
		assert.Empty(t, out)
	}
	assert.Equal(t, []string{"start", "hit", "stand"}, d.calls)

	out, err := RunDealerCommand(d, Command{Name: CmdHelp})
	require.NoError(t, err)
	assert.Contains(t, out, "start")

	_, err = RunDealerCommand(d, Command{Name: CmdDouble})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	d.err = server.ErrNoClient
	_, err = RunDealerCommand(d, Command{Name: CmdStart})
	assert.ErrorIs(t, err, server.ErrNoClient)
}

func TestFormatTable(t *testing.T) {
	assert.Equal(t, "No player connected.", FormatTable(server.TableState{}))

	out := FormatTable(midRound())
	assert.Contains(t, out, "phase dealer_turn, bet $10")
	assert.Contains(t, out, "Player: [10♥ 9♦] = 19")
	assert.Contains(t, out, "Dealer: [A♣ 6♠] = 17 (soft)")
}

func TestFormatHistory(t *testing.T) {
	h := server.NewHistory(10)
	assert.Equal(t, "No rounds played yet.", FormatHistory(h))

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.Add(server.RoundRecord{
		StartedAt:   start,
		EndedAt:     start.Add(4 * time.Second),
		Bet:         10,
		PlayerCards: deck.MustParseCards("AhKd"),
		DealerCards: deck.MustParseCards("9c8s"),
		PlayerValue: 21,
		DealerValue: 17,
		Outcome:     game.OutcomeBlackjack,
		Payout:      25,
	})
	h.Add(server.RoundRecord{
		StartedAt:   start,
		EndedAt:     start.Add(2 * time.Second),
		Bet:         20,
		PlayerCards: deck.MustParseCards("ThKc6d"),
		DealerCards: deck.MustParseCards("7s9s"),
		PlayerValue: 26,
		DealerValue: 16,
		Outcome:     game.OutcomeDealerWin,
	})

	out := FormatHistory(h)
	assert.Contains(t, out, "#1 BLACKJACK bet $10 payout $25 | player A♥ K♦ 21 | dealer 9♣ 8♠ 17 | 4s")
	assert.Contains(t, out, "#2 DEALER_WIN bet $20 payout $0")
	assert.Contains(t, out, "House net: $5 over 2 rounds")
}

func TestDealerListenerForwardsInOrder(t *testing.T) {
	l := NewDealerListener()
	l.OnStatus("dropped before bind")

	sender := make(chanSender, 8)
	l.Bind(sender)

	l.OnStatus("Player placed bet: $10")
	l.OnError(errors.New("boom"))
	l.OnRoundEnded(server.RoundRecord{Bet: 10})
	l.OnClientDisconnected()

	assert.Equal(t, dealerStatusMsg("Player placed bet: $10"), sender.next(t))
	assert.Equal(t, dealerErrorMsg{errors.New("boom")}, sender.next(t))
	assert.Equal(t, roundEndedMsg(server.RoundRecord{Bet: 10}), sender.next(t))
	assert.Equal(t, tableChangedMsg{}, sender.next(t))
}

func TestListenerCloseStopsForwarding(t *testing.T) {
	l := NewDealerListener()
	sender := make(chanSender, 8)
	l.Bind(sender)

	l.OnStatus("before close")
	assert.Equal(t, dealerStatusMsg("before close"), sender.next(t))

	l.Close()
	select {
	case <-l.done:
	case <-time.After(time.Second):
		t.Fatal("forwarding goroutine still running after Close")
	}

	l.OnStatus("after close")
	l.Bind(sender)
	l.OnStatus("after rebind")
	l.Close()

	select {
	case msg := <-sender:
		t.Fatalf("unexpected message after Close: %v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestListenerCloseBeforeBind(t *testing.T) {
	l := NewPlayerListener()
	l.Close()
	l.Bind(make(chanSender, 1))
	l.OnDisconnected()
	assert.Nil(t, l.wake, "no goroutine is started once closed")
}

func TestDealerModel(t *testing.T) {
	d := newFakeDealer()
	m := NewDealerModel(d, testLogger())
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})

	t.Run("renders an empty table", func(t *testing.T) {
		out := m.View()
		assert.Contains(t, out, "Blackjack Dealer")
		assert.Contains(t, out, "Waiting for player...")
		assert.Contains(t, out, "Waiting for a bet...")
	})

	t.Run("runs commands off the update loop", func(t *testing.T) {
		m.input.SetValue("start")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)
		assert.Contains(t, m.Log(), "> start")
		assert.Empty(t, d.calls, "nothing runs until the command executes")

		cmd = m.submit("start")
		msg := cmd()
		assert.Equal(t, commandResultMsg{}, msg)
		assert.Equal(t, []string{"start"}, d.calls)
	})

	t.Run("reports command errors", func(t *testing.T) {
		m.Update(commandResultMsg{err: server.ErrNoClient})
		assert.Contains(t, m.Log(), server.ErrNoClient.Error())
	})

	t.Run("rejects unknown commands locally", func(t *testing.T) {
		assert.Nil(t, m.submit("split"))
		entries := m.Log()
		assert.Contains(t, entries[len(entries)-1], "unknown command: split")
	})

	t.Run("shows both hands to the dealer", func(t *testing.T) {
		d.state = midRound()
		m.Update(dealerStatusMsg("Player stands. Your turn!"))
		assert.Contains(t, m.Log(), "Player stands. Your turn!")

		out := m.View()
		assert.Contains(t, out, "Player connected")
		assert.Contains(t, out, "Player: [10♥ 9♦] = 19")
		assert.Contains(t, out, "Dealer: [A♣ 6♠] = 17 (soft)")
		assert.Contains(t, out, "[hit]")
	})

	t.Run("tracks the house net", func(t *testing.T) {
		m.Update(roundEndedMsg(server.RoundRecord{Bet: 10, Payout: 20}))
		m.Update(roundEndedMsg(server.RoundRecord{Bet: 10}))
		assert.Equal(t, 2, m.rounds)
		assert.Equal(t, 0, m.net)
	})

	t.Run("quit", func(t *testing.T) {
		cmd := m.submit("quit")
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, m.View())
	})
}
