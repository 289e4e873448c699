package client

import (
	"fmt"
	"slices"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/protocol"
)

// TableView is the player's picture of the table, rebuilt from the dealer's
// messages. It is never authoritative.
type TableView struct {
	Connected bool
	Seated    bool
	Welcome   string
	Status    string

	// Table limits from the welcome; zero means none
	MinBet int
	MaxBet int

	PlayerCards []deck.Card
	PlayerValue int
	PlayerBust  bool

	// DealerCards holds only the up card until the dealer reveals the hand;
	// DealerValue is meaningless while DealerHidden is set.
	DealerCards  []deck.Card
	DealerValue  int
	DealerHidden bool
	DealerBust   bool

	PlayerTurn      bool
	DealerTurn      bool
	RoundInProgress bool

	Chips int
	Bet   int

	LastOutcome  game.Outcome
	LastPayout   int
	RoundsPlayed int
	LastError    string
}

// OutOfChips reports whether the player can no longer bet
func (v TableView) OutOfChips() bool {
	return v.Chips == 0 && v.Bet == 0 && !v.RoundInProgress
}

// AllowsBet reports whether a total stake of amount is inside the table limits
func (v TableView) AllowsBet(amount int) bool {
	if v.MinBet > 0 && amount < v.MinBet {
		return false
	}
	return v.MaxBet == 0 || amount <= v.MaxBet
}

// CanDouble reports whether a double down is worth sending
func (v TableView) CanDouble() bool {
	return v.PlayerTurn && len(v.PlayerCards) == 2 && v.Chips >= v.Bet
}

func (v TableView) clone() TableView {
	v.PlayerCards = slices.Clone(v.PlayerCards)
	v.DealerCards = slices.Clone(v.DealerCards)
	return v
}

// reset clears everything about the previous connection except chips
func (v *TableView) reset(chips int) {
	*v = TableView{Chips: chips}
}

// adoptBet takes the dealer's stake when it differs from ours
func (v *TableView) adoptBet(bet int) {
	if bet > 0 && bet != v.Bet {
		v.Chips -= bet - v.Bet
		v.Bet = bet
	}
}

// apply folds a dealer message into the view. Called with the client lock
// held.
func (v *TableView) apply(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.ConnectAccept:
		v.Seated = true
		v.Welcome = m.Welcome
		v.Status = m.Welcome
		v.MinBet = m.MinBet
		v.MaxBet = m.MaxBet

	case *protocol.UpdateGameState:
		v.PlayerCards = slices.Clone(m.PlayerCards)
		v.PlayerValue = m.PlayerValue
		v.PlayerBust = false
		v.DealerCards = []deck.Card{m.DealerUpCard}
		v.DealerValue = m.DealerUpCard.Rank.Points()
		v.DealerHidden = true
		v.DealerBust = false
		v.PlayerTurn = m.PlayerTurn
		v.DealerTurn = false
		v.RoundInProgress = true
		v.adoptBet(m.Bet)
		v.LastError = ""
		v.Status = m.Status

	case *protocol.CardDealt:
		v.PlayerCards = append(v.PlayerCards, m.Card)
		v.PlayerValue = m.PlayerValue
		v.PlayerBust = m.PlayerBust
		v.PlayerTurn = m.PlayerTurn
		v.adoptBet(m.Bet)
		v.Status = m.Status

	case *protocol.DealerCardDealt:
		v.DealerCards = slices.Clone(m.DealerCards)
		v.DealerValue = m.DealerValue
		v.DealerHidden = false
		v.DealerBust = m.DealerValue > game.BlackjackValue
		v.Status = m.Status

	case *protocol.TurnChanged:
		v.PlayerTurn = m.PlayerTurn
		v.DealerTurn = m.DealerTurn
		v.Status = m.Status

	case *protocol.RoundEnd:
		v.DealerCards = slices.Clone(m.DealerCards)
		v.DealerValue = m.DealerValue
		v.DealerHidden = false
		v.DealerBust = m.DealerBust
		v.PlayerValue = m.PlayerValue
		v.PlayerBust = m.PlayerBust
		v.Chips += m.Payout
		v.Bet = 0
		v.LastOutcome = m.Outcome
		v.LastPayout = m.Payout
		v.PlayerTurn = false
		v.DealerTurn = false
		v.RoundInProgress = false
		v.RoundsPlayed++
		v.Status = m.Status
		if v.OutOfChips() {
			v.Status = m.Status + " Out of chips!"
		}

	case *protocol.Error:
		if m.HasBet() && !v.RoundInProgress {
			v.Chips += v.Bet - m.Bet
			v.Bet = m.Bet
		}
		v.LastError = fmt.Sprintf("%s: %s", m.Code, m.Message)
	}
}
