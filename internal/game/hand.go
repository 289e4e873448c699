package game

import "github.com/lox/blackjack/internal/deck"

// BlackjackValue is the best possible hand total
const BlackjackValue = 21

// Hand is the ordered set of cards one party holds for a single round
type Hand struct {
	cards []deck.Card
}

// NewHand creates a hand holding the given cards
func NewHand(cards ...deck.Card) *Hand {
	h := &Hand{cards: make([]deck.Card, 0, 5)}
	h.cards = append(h.cards, cards...)
	return h
}

// Add appends a card to the hand
func (h *Hand) Add(c deck.Card) {
	h.cards = append(h.cards, c)
}

// Cards returns a copy of the cards in the hand
func (h *Hand) Cards() []deck.Card {
	out := make([]deck.Card, len(h.cards))
	copy(out, h.cards)
	return out
}

// Len returns the number of cards in the hand
func (h *Hand) Len() int {
	return len(h.cards)
}

// Value returns the hand total. Every Ace starts at 11 and is demoted to 1,
// one at a time, while the total is over 21.
func (h *Hand) Value() int {
	total, _ := h.evaluate()
	return total
}

// IsSoft reports whether an Ace is still being counted as 11
func (h *Hand) IsSoft() bool {
	_, highAces := h.evaluate()
	return highAces > 0
}

// IsBust reports whether the hand total is over 21
func (h *Hand) IsBust() bool {
	return h.Value() > BlackjackValue
}

// IsBlackjack reports whether the hand is a natural: exactly two cards worth 21
func (h *Hand) IsBlackjack() bool {
	return len(h.cards) == 2 && h.Value() == BlackjackValue
}

// String renders the hand for display
func (h *Hand) String() string {
	return deck.FormatCards(h.cards)
}

func (h *Hand) evaluate() (total, highAces int) {
	for _, c := range h.cards {
		total += c.Rank.Points()
		if c.IsAce() {
			highAces++
		}
	}
	for total > BlackjackValue && highAces > 0 {
		total -= 10
		highAces--
	}
	return total, highAces
}
