package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/protocol"
)

var (
	ErrNoClient  = errors.New("no player connected")
	ErrTableFull = errors.New("table already has a player")
)

// Player-facing status lines
const (
	statusYourTurn      = "Your turn! Hit or Stand?"
	statusBust          = "Bust! Dealer wins."
	statusWaitForDealer = "Waiting for dealer's move..."
	statusDealerHits    = "Dealer hits. Waiting for dealer..."
	statusDealerBusts   = "Dealer busts!"
)

// notification is a Listener call deferred until the table lock is released
type notification func(Listener)

// Table owns the one game session and serialises every operation on it,
// whether it comes from the player's connection or the dealer console.
// Messages to the player are queued while the lock is held so the wire order
// matches the order of state changes.
type Table struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	limits   TableSettings
	welcome  string
	decks    game.DeckSource
	clock    quartz.Clock
	history  *History
	listener Listener
	logger   *log.Logger

	conn      *Connection
	session   *game.Session
	greeted   bool
	roundID   uuid.UUID
	startedAt time.Time
}

// TableState is a read-only view of the table for the dealer console
type TableState struct {
	Connected  bool
	RemoteAddr string
	game.Snapshot
}

// NewTable creates an empty table
func NewTable(cfg *Config, decks game.DeckSource, clock quartz.Clock, listener Listener, logger *log.Logger) *Table {
	if listener == nil {
		listener = BaseListener{}
	}
	return &Table{
		limits:   cfg.Table,
		welcome:  cfg.Server.Welcome,
		decks:    decks,
		clock:    clock,
		history:  NewHistory(cfg.Server.HistorySize),
		listener: listener,
		logger:   logger.WithPrefix("table"),
	}
}

// release unlocks the table and delivers pending notifications. notifyMu is
// taken before mu is released so deliveries keep the order of the critical
// sections that produced them.
func (t *Table) release(pending []notification) {
	t.notifyMu.Lock()
	t.mu.Unlock()
	defer t.notifyMu.Unlock()

	for _, n := range pending {
		n(t.listener)
	}
}

func status(s string) notification {
	return func(l Listener) { l.OnStatus(s) }
}

// Attach seats a newly accepted connection with a fresh session
func (t *Table) Attach(conn *Connection) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return ErrTableFull
	}

	t.conn = conn
	t.session = game.NewSession(t.decks)
	t.greeted = false
	addr := conn.RemoteAddr()
	t.logger.Info("Player connected", "addr", addr, "conn", conn.ID())

	t.release([]notification{
		func(l Listener) { l.OnClientConnected(addr) },
		status("Player connected from " + addr),
	})
	return nil
}

// Detach drops the session of a closed connection. An unfinished round is
// abandoned without a ROUND_END.
func (t *Table) Detach(conn *Connection) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}

	if t.session != nil && t.session.Snapshot().Started {
		t.logger.Info("Round abandoned", "round", t.roundID, "bet", t.session.Bet())
	}
	t.conn = nil
	t.session = nil
	t.greeted = false
	t.logger.Info("Player disconnected", "conn", conn.ID())

	t.release([]notification{
		func(l Listener) { l.OnClientDisconnected() },
		status("Player disconnected. Waiting for player..."),
	})
}

// HandleMessage applies a message from the player's connection
func (t *Table) HandleMessage(conn *Connection, msg protocol.Message) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}

	var pending []notification
	closeAfter := false

	switch m := msg.(type) {
	case *protocol.ConnectRequest:
		pending = t.handleConnect(m)

	case *protocol.PlaceBet:
		pending = t.handlePlaceBet(m)

	case *protocol.PlayerAction:
		pending = t.handleAction(m)

	case *protocol.Disconnect:
		t.logger.Info("Player requested disconnect")
		closeAfter = true

	default:
		t.sendError(protocol.CodeUnexpectedMessage, fmt.Sprintf("%s is not accepted by the dealer", msg.Type()))
	}

	t.release(pending)

	if closeAfter {
		_ = conn.Close()
	}
}

func (t *Table) handleConnect(m *protocol.ConnectRequest) []notification {
	if t.greeted {
		t.sendError(protocol.CodeAlreadyConnected, "already connected")
		return nil
	}
	t.greeted = true
	t.send(&protocol.ConnectAccept{
		Welcome: t.welcome,
		MinBet:  t.limits.MinBet,
		MaxBet:  t.limits.MaxBet,
	})

	who := "Player"
	if m.Name != "" {
		who = m.Name
	}
	t.logger.Info("Player joined", "name", m.Name)
	return []notification{status(who + " joined the table")}
}

func (t *Table) handlePlaceBet(m *protocol.PlaceBet) []notification {
	if t.session.Phase() != game.AwaitingBet {
		t.sendError(protocol.CodeRoundInProgress, "bets are closed until the round ends")
		return nil
	}
	if m.Amount <= 0 || !t.limits.AllowsBet(m.Amount) {
		t.rejectBet(t.betLimitsText(m.Amount))
		return nil
	}
	if err := t.session.PlaceBet(m.Amount); err != nil {
		t.rejectBet(err.Error())
		return nil
	}

	t.logger.Info("Bet placed", "bet", m.Amount)
	return []notification{status(fmt.Sprintf("Player placed bet: $%d", m.Amount))}
}

// rejectBet answers an invalid PLACE_BET with the bet the dealer still holds
func (t *Table) rejectBet(message string) {
	t.logger.Warn("Rejected message", "code", protocol.CodeInvalidBet, "reason", message)
	t.send(&protocol.Error{Code: protocol.CodeInvalidBet, Message: message, Bet: t.session.Bet()})
}

func (t *Table) betLimitsText(amount int) string {
	if t.limits.MaxBet == 0 {
		return fmt.Sprintf("bet $%d is below the minimum of $%d", amount, t.limits.MinBet)
	}
	return fmt.Sprintf("bet $%d is outside the table limits $%d-$%d", amount, t.limits.MinBet, t.limits.MaxBet)
}

func (t *Table) handleAction(m *protocol.PlayerAction) []notification {
	if !m.Action.Valid() {
		t.sendError(protocol.CodeInvalidAction, fmt.Sprintf("unknown action %q", m.Action))
		return nil
	}

	events, err := t.session.Apply(m.Action)
	switch {
	case errors.Is(err, game.ErrNotPlayerTurn):
		t.sendError(protocol.CodeNotYourTurn, fmt.Sprintf("cannot %s now", m.Action))
		return nil
	case err != nil:
		t.sendError(protocol.CodeInvalidAction, err.Error())
		return nil
	}

	t.logger.Debug("Player action", "action", m.Action)
	return t.publish(events)
}

// StartGame deals a new round. Requires a connected player with a bet.
func (t *Table) StartGame() error {
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return ErrNoClient
	}

	events, err := t.session.Start()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.roundID = uuid.New()
	t.startedAt = t.clock.Now()
	t.logger.Info("Round started", "round", t.roundID, "bet", t.session.Bet())

	t.release(t.publish(events))
	return nil
}

// DealerHit draws a card for the dealer
func (t *Table) DealerHit() error {
	return t.dealerMove((*game.Session).DealerHit)
}

// DealerStand ends the dealer's turn and settles the round
func (t *Table) DealerStand() error {
	return t.dealerMove((*game.Session).DealerStand)
}

func (t *Table) dealerMove(move func(*game.Session) ([]game.Event, error)) error {
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return ErrNoClient
	}

	events, err := move(t.session)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.release(t.publish(events))
	return nil
}

// State returns a copy of the table state
func (t *Table) State() TableState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return TableState{}
	}
	return TableState{
		Connected:  true,
		RemoteAddr: t.conn.RemoteAddr(),
		Snapshot:   t.session.Snapshot(),
	}
}

// History returns the settled rounds kept in memory
func (t *Table) History() *History {
	return t.history
}

// publish turns session events into messages for the player and
// notifications for the dealer. Called with mu held.
func (t *Table) publish(events []game.Event) []notification {
	var pending []notification
	doubled := false

	for i, ev := range events {
		switch e := ev.(type) {
		case game.InitialDeal:
			t.send(&protocol.UpdateGameState{
				PlayerCards:  e.PlayerCards,
				DealerUpCard: e.DealerCards[0],
				PlayerValue:  e.PlayerValue,
				Bet:          e.Bet,
				Status:       statusYourTurn,
				PlayerTurn:   true,
			})
			dealer, player := e.DealerCards, e.PlayerCards
			pending = append(pending,
				func(l Listener) { l.OnCardsDealt(dealer, player) },
				func(l Listener) { l.OnTurnChanged(false) },
				status(fmt.Sprintf("Cards dealt. Player's turn. Player value: %d", e.PlayerValue)),
			)

		case game.PlayerCardDealt:
			msg := &protocol.CardDealt{
				Card:        e.Card,
				PlayerValue: e.PlayerValue,
				PlayerBust:  e.Bust,
				RoundOver:   e.RoundOver,
				PlayerTurn:  !e.RoundOver && !e.Doubled,
			}
			var note string
			switch {
			case e.Bust:
				msg.Status = statusBust
				note = fmt.Sprintf("Player busted with %d! You win!", e.PlayerValue)
			case e.Doubled:
				msg.Status = statusWaitForDealer
				note = fmt.Sprintf("Player doubled down to $%d. Player value: %d", e.Bet, e.PlayerValue)
			default:
				msg.Status = statusYourTurn
				note = fmt.Sprintf("Player hits. Player value: %d", e.PlayerValue)
			}
			if e.Doubled {
				msg.Bet = e.Bet
				doubled = true
			}
			t.send(msg)
			card := e.Card
			pending = append(pending,
				func(l Listener) { l.OnPlayerCard(card) },
				status(note),
			)

		case game.TurnChanged:
			t.send(&protocol.TurnChanged{
				Status:     statusWaitForDealer,
				PlayerTurn: e.PlayerTurn,
				DealerTurn: e.DealerTurn,
			})
			pending = append(pending,
				func(l Listener) { l.OnTurnChanged(true) },
				status(turnNote(doubled, settlesNext(events, i))),
			)

		case game.DealerCardDealt:
			s := statusDealerHits
			if e.Bust {
				s = statusDealerBusts
			}
			t.send(&protocol.DealerCardDealt{
				Card:        e.Card,
				DealerCards: e.DealerCards,
				DealerValue: e.DealerValue,
				Status:      s,
			})
			card := e.Card
			pending = append(pending,
				func(l Listener) { l.OnDealerCard(card) },
				status(fmt.Sprintf("Dealer hits. Dealer value: %d", e.DealerValue)),
			)

		case game.RoundSettled:
			pending = append(pending, t.settle(e)...)
		}
	}
	return pending
}

func (t *Table) settle(e game.RoundSettled) []notification {
	r := e.Result
	t.send(&protocol.RoundEnd{
		DealerCards: e.DealerCards,
		PlayerValue: r.PlayerValue,
		DealerValue: r.DealerValue,
		PlayerBust:  r.PlayerBust,
		DealerBust:  r.DealerBust,
		Outcome:     r.Outcome,
		Payout:      r.Payout,
		Status:      r.Summary(),
	})

	record := RoundRecord{
		ID:          t.roundID,
		ConnID:      t.conn.ID(),
		StartedAt:   t.startedAt,
		EndedAt:     t.clock.Now(),
		Bet:         r.Bet,
		PlayerCards: e.PlayerCards,
		DealerCards: e.DealerCards,
		PlayerValue: r.PlayerValue,
		DealerValue: r.DealerValue,
		Outcome:     r.Outcome,
		Payout:      r.Payout,
		Summary:     r.Summary(),
	}
	t.history.Add(record)
	t.logger.Info("Round settled",
		"round", record.ID,
		"outcome", record.Outcome,
		"bet", record.Bet,
		"payout", record.Payout,
		"player", deck.FormatCards(record.PlayerCards),
		"dealer", deck.FormatCards(record.DealerCards))

	return []notification{
		func(l Listener) { l.OnRoundEnded(record) },
		status(dealerSummary(record)),
	}
}

// settlesNext reports whether the event after i settles the round
func settlesNext(events []game.Event, i int) bool {
	if i+1 >= len(events) {
		return false
	}
	_, ok := events[i+1].(game.RoundSettled)
	return ok
}

// turnNote describes for the dealer how the player's turn ended
func turnNote(doubled, settled bool) string {
	switch {
	case settled && doubled:
		return "Player doubled down. Blackjack on the table, settling the round."
	case settled:
		return "Player stands. Blackjack on the table, settling the round."
	case doubled:
		return "Player doubled down. Your turn!"
	default:
		return "Player stands. Your turn!"
	}
}

// dealerSummary describes a settled round from the house's side
func dealerSummary(r RoundRecord) string {
	switch net := r.HouseNet(); {
	case net > 0:
		return fmt.Sprintf("House wins $%d. (%d vs %d)", net, r.DealerValue, r.PlayerValue)
	case net < 0:
		return fmt.Sprintf("Player wins $%d. (%d vs %d)", -net, r.PlayerValue, r.DealerValue)
	default:
		return fmt.Sprintf("Push. (%d vs %d)", r.PlayerValue, r.DealerValue)
	}
}

// send queues msg for the player. Called with mu held.
func (t *Table) send(msg protocol.Message) {
	if err := t.conn.SendMessage(msg); err != nil {
		t.logger.Debug("Dropped message", "type", msg.Type(), "error", err)
	}
}

func (t *Table) sendError(code, message string) {
	t.logger.Warn("Rejected message", "code", code, "reason", message)
	t.send(&protocol.Error{Code: code, Message: message})
}
