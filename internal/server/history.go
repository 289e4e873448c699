package server

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/fileutil"
	"github.com/lox/blackjack/internal/game"
)

// RoundRecord is a settled round as seen by the dealer
type RoundRecord struct {
	ID          uuid.UUID
	ConnID      string
	StartedAt   time.Time
	EndedAt     time.Time
	Bet         int
	PlayerCards []deck.Card
	DealerCards []deck.Card
	PlayerValue int
	DealerValue int
	Outcome     game.Outcome
	Payout      int
	Summary     string
}

// HouseNet is the dealer's gain for the round; negative when the player won
func (r RoundRecord) HouseNet() int {
	return r.Bet - r.Payout
}

// Duration returns how long the round took
func (r RoundRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// History keeps the most recent rounds in memory
type History struct {
	mu      sync.RWMutex
	records []RoundRecord
	next    int
	full    bool
}

// NewHistory creates a history holding up to size rounds. Size zero keeps
// nothing.
func NewHistory(size int) *History {
	return &History{records: make([]RoundRecord, size)}
}

// Add appends a record, evicting the oldest when full
func (h *History) Add(r RoundRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == 0 {
		return
	}
	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// Records returns the kept rounds, oldest first
func (h *History) Records() []RoundRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		out := make([]RoundRecord, h.next)
		copy(out, h.records[:h.next])
		return out
	}
	out := make([]RoundRecord, 0, len(h.records))
	out = append(out, h.records[h.next:]...)
	out = append(out, h.records[:h.next]...)
	return out
}

// Len returns the number of kept rounds
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.records)
	}
	return h.next
}

// HouseNet sums HouseNet over the kept rounds
func (h *History) HouseNet() int {
	net := 0
	for _, r := range h.Records() {
		net += r.HouseNet()
	}
	return net
}

// roundLine is one line of a saved history file
type roundLine struct {
	ID          string    `json:"id"`
	ConnID      string    `json:"conn_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Bet         int       `json:"bet"`
	PlayerCards []string  `json:"player_cards"`
	DealerCards []string  `json:"dealer_cards"`
	PlayerValue int       `json:"player_value"`
	DealerValue int       `json:"dealer_value"`
	Outcome     string    `json:"outcome"`
	Payout      int       `json:"payout"`
	Summary     string    `json:"summary"`
}

func cardCodes(cards []deck.Card) []string {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code()
	}
	return codes
}

// WriteJSON writes the kept rounds as JSON lines, oldest first
func (h *History) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, r := range h.Records() {
		err := enc.Encode(roundLine{
			ID:          r.ID.String(),
			ConnID:      r.ConnID,
			StartedAt:   r.StartedAt,
			EndedAt:     r.EndedAt,
			Bet:         r.Bet,
			PlayerCards: cardCodes(r.PlayerCards),
			DealerCards: cardCodes(r.DealerCards),
			PlayerValue: r.PlayerValue,
			DealerValue: r.DealerValue,
			Outcome:     string(r.Outcome),
			Payout:      r.Payout,
			Summary:     r.Summary,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Save replaces path with the kept rounds as JSON lines
func (h *History) Save(path string) error {
	return fileutil.WriteAtomic(path, 0o644, h.WriteJSON)
}
