package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/blackjack/internal/deck"
)

var (
	ErrInvalidBet      = errors.New("bet must be positive")
	ErrNoBet           = errors.New("no bet placed")
	ErrRoundInProgress = errors.New("round in progress")
	ErrNotPlayerTurn   = errors.New("not the player's turn")
	ErrNotDealerTurn   = errors.New("not the dealer's turn")
	ErrInvalidAction   = errors.New("invalid action")
)

// Phase is the position of a session in the round cycle
type Phase int

const (
	AwaitingBet Phase = iota
	PlayerTurn
	DealerTurn
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case AwaitingBet:
		return "awaiting_bet"
	case PlayerTurn:
		return "player_turn"
	case DealerTurn:
		return "dealer_turn"
	default:
		return "unknown"
	}
}

// Action is a player decision
type Action string

const (
	Hit        Action = "HIT"
	Stand      Action = "STAND"
	DoubleDown Action = "DOUBLE_DOWN"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case Hit, Stand, DoubleDown:
		return true
	}
	return false
}

// DeckSource supplies the deck for each new round
type DeckSource func() *deck.Deck

// ShuffledDecks returns a DeckSource producing a freshly shuffled deck per round
func ShuffledDecks(rng *rand.Rand) DeckSource {
	return func() *deck.Deck {
		return deck.NewShuffled(rng)
	}
}

// StackedDecks returns a DeckSource whose every deck deals top first, followed
// by the remaining cards shuffled.
func StackedDecks(rng *rand.Rand, top []deck.Card) (DeckSource, error) {
	if _, err := deck.Stacked(rng, top...); err != nil {
		return nil, err
	}
	return func() *deck.Deck {
		d, err := deck.Stacked(rng, top...)
		if err != nil {
			panic(err)
		}
		return d
	}, nil
}

// Session is the authoritative state of one table: the deck, both hands, the
// stake and whose turn it is. It performs no I/O and is not safe for
// concurrent use; the owner serialises access.
type Session struct {
	decks  DeckSource
	deck   *deck.Deck
	player *Hand
	dealer *Hand

	bet        int
	started    bool
	playerTurn bool
	phase      Phase
}

// NewSession creates a session waiting for a bet
func NewSession(decks DeckSource) *Session {
	return &Session{
		decks:  decks,
		player: NewHand(),
		dealer: NewHand(),
		phase:  AwaitingBet,
	}
}

// Snapshot is a read-only copy of the session
type Snapshot struct {
	Phase       Phase
	Bet         int
	Started     bool
	PlayerTurn  bool
	PlayerCards []deck.Card
	DealerCards []deck.Card
	PlayerValue int
	DealerValue int
	PlayerSoft  bool
	DealerSoft  bool
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Phase:       s.phase,
		Bet:         s.bet,
		Started:     s.started,
		PlayerTurn:  s.playerTurn,
		PlayerCards: s.player.Cards(),
		DealerCards: s.dealer.Cards(),
		PlayerValue: s.player.Value(),
		DealerValue: s.dealer.Value(),
		PlayerSoft:  s.player.IsSoft(),
		DealerSoft:  s.dealer.IsSoft(),
	}
}

// Phase returns the current phase
func (s *Session) Phase() Phase {
	return s.phase
}

// Bet returns the current stake
func (s *Session) Bet() int {
	return s.bet
}

// PlaceBet records the player's total stake for the next round. A later call
// before the deal replaces the earlier amount.
func (s *Session) PlaceBet(amount int) error {
	if s.phase != AwaitingBet {
		return ErrRoundInProgress
	}
	if amount <= 0 {
		return ErrInvalidBet
	}
	s.bet = amount
	return nil
}

// Start deals a new round: player, dealer, player, dealer
func (s *Session) Start() ([]Event, error) {
	if s.phase != AwaitingBet || s.started {
		return nil, ErrRoundInProgress
	}
	if s.bet <= 0 {
		return nil, ErrNoBet
	}

	s.deck = s.decks()
	s.player = NewHand()
	s.dealer = NewHand()
	for range 2 {
		s.player.Add(s.draw())
		s.dealer.Add(s.draw())
	}

	s.started = true
	s.playerTurn = true
	s.phase = PlayerTurn

	return []Event{InitialDeal{
		PlayerCards: s.player.Cards(),
		DealerCards: s.dealer.Cards(),
		PlayerValue: s.player.Value(),
		DealerValue: s.dealer.Value(),
		Bet:         s.bet,
	}}, nil
}

// Apply performs a player action
func (s *Session) Apply(action Action) ([]Event, error) {
	switch action {
	case Hit:
		return s.Hit()
	case Stand:
		return s.Stand()
	case DoubleDown:
		return s.DoubleDown()
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

// Hit draws one card for the player. A bust settles the round.
func (s *Session) Hit() ([]Event, error) {
	if s.phase != PlayerTurn {
		return nil, ErrNotPlayerTurn
	}

	card := s.draw()
	s.player.Add(card)
	bust := s.player.IsBust()

	events := []Event{PlayerCardDealt{
		Card:        card,
		PlayerValue: s.player.Value(),
		Bust:        bust,
		RoundOver:   bust,
	}}
	if bust {
		events = append(events, s.settle())
	}
	return events, nil
}

// Stand ends the player's turn
func (s *Session) Stand() ([]Event, error) {
	if s.phase != PlayerTurn {
		return nil, ErrNotPlayerTurn
	}
	return s.passTurn(nil), nil
}

// DoubleDown doubles the stake and draws exactly one card; the player's turn
// ends whatever the card. Only allowed on the first two cards.
func (s *Session) DoubleDown() ([]Event, error) {
	if s.phase != PlayerTurn {
		return nil, ErrNotPlayerTurn
	}
	if s.player.Len() != 2 {
		return nil, fmt.Errorf("%w: double down needs exactly two cards, have %d", ErrInvalidAction, s.player.Len())
	}

	s.bet *= 2
	card := s.draw()
	s.player.Add(card)
	bust := s.player.IsBust()

	events := []Event{PlayerCardDealt{
		Card:        card,
		PlayerValue: s.player.Value(),
		Bust:        bust,
		RoundOver:   bust,
		Doubled:     true,
		Bet:         s.bet,
	}}
	if bust {
		return append(events, s.settle()), nil
	}
	return s.passTurn(events), nil
}

// DealerHit draws one card for the dealer. A dealer bust settles the round.
func (s *Session) DealerHit() ([]Event, error) {
	if s.phase != DealerTurn {
		return nil, ErrNotDealerTurn
	}

	card := s.draw()
	s.dealer.Add(card)
	bust := s.dealer.IsBust()

	events := []Event{DealerCardDealt{
		Card:        card,
		DealerCards: s.dealer.Cards(),
		DealerValue: s.dealer.Value(),
		Bust:        bust,
	}}
	if bust {
		events = append(events, s.settle())
	}
	return events, nil
}

// DealerStand settles the round by comparing totals
func (s *Session) DealerStand() ([]Event, error) {
	if s.phase != DealerTurn {
		return nil, ErrNotDealerTurn
	}
	return []Event{s.settle()}, nil
}

// passTurn hands play to the dealer. Naturals are settled here, before the
// dealer draws anything.
func (s *Session) passTurn(events []Event) []Event {
	s.playerTurn = false
	events = append(events, TurnChanged{PlayerTurn: false, DealerTurn: true})

	if s.player.IsBlackjack() || s.dealer.IsBlackjack() {
		return append(events, s.settle())
	}
	s.phase = DealerTurn
	return events
}

func (s *Session) settle() Event {
	result := Settle(s.player, s.dealer, s.bet)

	s.started = false
	s.playerTurn = false
	s.bet = 0
	s.phase = AwaitingBet

	return RoundSettled{
		Result:      result,
		PlayerCards: s.player.Cards(),
		DealerCards: s.dealer.Cards(),
	}
}

// draw panics on exhaustion; a single round can never use the whole deck.
func (s *Session) draw() deck.Card {
	card, err := s.deck.Draw()
	if err != nil {
		panic(fmt.Sprintf("blackjack session: %v after %d cards", err, deck.Size-s.deck.Remaining()))
	}
	return card
}
