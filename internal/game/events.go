package game

import "github.com/lox/blackjack/internal/deck"

// Event is a state transition reported by Session. Events are returned in the
// order they happened; callers translate them into wire messages and
// operator notifications.
type Event interface {
	isEvent()
}

// InitialDeal is reported once both hands hold two cards
type InitialDeal struct {
	PlayerCards []deck.Card
	DealerCards []deck.Card
	PlayerValue int
	DealerValue int
	Bet         int
}

// PlayerCardDealt is reported for every card drawn into the player's hand
// after the initial deal.
type PlayerCardDealt struct {
	Card        deck.Card
	PlayerValue int
	Bust        bool
	RoundOver   bool
	// Doubled is set when the card came from a double down; Bet is then the
	// doubled stake.
	Doubled bool
	Bet     int
}

// TurnChanged is reported when the turn moves from player to dealer
type TurnChanged struct {
	PlayerTurn bool
	DealerTurn bool
}

// DealerCardDealt is reported for every card the dealer draws after the
// initial deal.
type DealerCardDealt struct {
	Card        deck.Card
	DealerCards []deck.Card
	DealerValue int
	Bust        bool
}

// RoundSettled closes a round
type RoundSettled struct {
	Result      Result
	PlayerCards []deck.Card
	DealerCards []deck.Card
}

func (InitialDeal) isEvent()     {}
func (PlayerCardDealt) isEvent() {}
func (TurnChanged) isEvent()     {}
func (DealerCardDealt) isEvent() {}
func (RoundSettled) isEvent()    {}
