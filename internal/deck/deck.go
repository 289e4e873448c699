package deck

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// Size is the number of cards in a standard deck
const Size = 52

// ErrExhausted is returned by Draw once every card has been dealt
var ErrExhausted = errors.New("deck exhausted")

// Deck represents a single 52-card deck with a draw cursor. Cards before the
// cursor have been dealt and are never returned again until the next Shuffle.
type Deck struct {
	cards  []Card
	cursor int
	rng    *rand.Rand
}

// New creates a standard 52-card deck in generation order (suit-major).
// Callers must Shuffle before drawing.
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, Size),
		rng:   rng,
	}
	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	return d
}

// NewShuffled creates a deck and shuffles it once
func NewShuffled(rng *rand.Rand) *Deck {
	d := New(rng)
	d.Shuffle()
	return d
}

// Stacked creates a complete deck whose first cards are top, in order, with
// the remaining cards shuffled behind them. It is used to script rounds.
func Stacked(rng *rand.Rand, top ...Card) (*Deck, error) {
	d := New(rng)

	seen := make(map[Card]bool, len(top))
	for _, c := range top {
		if !c.Valid() {
			return nil, fmt.Errorf("stacked card %v is not a valid card", c)
		}
		if seen[c] {
			return nil, fmt.Errorf("stacked card %s appears twice", c.Code())
		}
		seen[c] = true
	}

	rest := make([]Card, 0, Size-len(top))
	for _, c := range d.cards {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	d.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	d.cards = append(append(d.cards[:0], top...), rest...)
	d.cursor = 0
	return d, nil
}

// Shuffle produces a uniformly random permutation (Fisher-Yates) and resets
// the draw cursor.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	d.cursor = 0
}

// Draw returns the card at the cursor and advances it
func (d *Deck) Draw() (Card, error) {
	if d.cursor >= len(d.cards) {
		return Card{}, ErrExhausted
	}
	card := d.cards[d.cursor]
	d.cursor++
	return card, nil
}

// Remaining returns the number of cards left to draw
func (d *Deck) Remaining() int {
	return len(d.cards) - d.cursor
}
