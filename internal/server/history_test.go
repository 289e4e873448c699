package server

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	assert.Empty(t, h.Records())

	for bet := 1; bet <= 5; bet++ {
		h.Add(RoundRecord{Bet: bet})
	}

	records := h.Records()
	assert.Equal(t, 3, h.Len())
	assert.Len(t, records, 3)
	assert.Equal(t, 3, records[0].Bet)
	assert.Equal(t, 4, records[1].Bet)
	assert.Equal(t, 5, records[2].Bet)
}

func TestHistoryPartial(t *testing.T) {
	h := NewHistory(5)
	h.Add(RoundRecord{Bet: 10, Payout: 20})
	h.Add(RoundRecord{Bet: 10, Payout: 0})
	h.Add(RoundRecord{Bet: 10, Payout: 25})

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, -15, h.HouseNet())
}

func TestHistoryZeroSize(t *testing.T) {
	h := NewHistory(0)
	h.Add(RoundRecord{Bet: 10})
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Records())
}

func TestHistoryWriteJSON(t *testing.T) {
	h := NewHistory(5)
	id := uuid.New()
	h.Add(RoundRecord{
		ID:          id,
		Bet:         10,
		PlayerCards: deck.MustParseCards("AhKd"),
		DealerCards: deck.MustParseCards("9c8s"),
		PlayerValue: 21,
		DealerValue: 17,
		Outcome:     game.OutcomeBlackjack,
		Payout:      25,
	})
	h.Add(RoundRecord{Bet: 5, Outcome: game.OutcomeDealerWin})

	var buf bytes.Buffer
	require.NoError(t, h.WriteJSON(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, id.String(), first["id"])
	assert.Equal(t, []any{"Ah", "Kd"}, first["player_cards"])
	assert.Equal(t, string(game.OutcomeBlackjack), first["outcome"])
	assert.EqualValues(t, 25, first["payout"])
}

func TestHistorySave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rounds.jsonl")
	h := NewHistory(5)
	h.Add(RoundRecord{Bet: 10, Outcome: game.OutcomePush, Payout: 10})

	require.NoError(t, h.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"PUSH"`)
}
