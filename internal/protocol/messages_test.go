package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/tinylib/msgp/msgp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []Message{
		&ConnectRequest{},
		&ConnectRequest{Name: "alice"},
		&ConnectAccept{Welcome: "Welcome to Blackjack!"},
		&ConnectAccept{Welcome: "Welcome", MinBet: 5, MaxBet: 100},
		&PlaceBet{Amount: 25},
		&PlayerAction{Action: game.DoubleDown},
		&Disconnect{},
		&UpdateGameState{
			PlayerCards:  deck.MustParseCards("AhKd"),
			DealerUpCard: deck.NewCard(deck.Nine, deck.Clubs),
			PlayerValue:  21,
			Bet:          10,
			Status:       "Your turn",
			PlayerTurn:   true,
		},
		&CardDealt{
			Card:        deck.NewCard(deck.Two, deck.Clubs),
			PlayerValue: 13,
			Status:      "Doubled down",
			Bet:         20,
		},
		&CardDealt{
			Card:        deck.NewCard(deck.Queen, deck.Hearts),
			PlayerValue: 26,
			PlayerBust:  true,
			RoundOver:   true,
			Status:      "Bust!",
		},
		&DealerCardDealt{
			Card:        deck.NewCard(deck.Nine, deck.Diamonds),
			DealerCards: deck.MustParseCards("Kc6s9d"),
			DealerValue: 25,
			Status:      "Dealer draws",
		},
		&TurnChanged{Status: "Dealer's turn", DealerTurn: true},
		&RoundEnd{
			DealerCards: deck.MustParseCards("Kc6s9d"),
			PlayerValue: 18,
			DealerValue: 25,
			DealerBust:  true,
			Outcome:     game.OutcomePlayerWin,
			Payout:      20,
			Status:      "Dealer busted! You win $20!",
		},
		&Error{Code: CodeInvalidBet, Message: "bet must be positive"},
		&Error{Code: CodeInvalidBet, Message: "bet $10 is outside the table limits $1-$8", Bet: 5},
		&Error{Code: CodeNotYourTurn, Message: "cannot HIT now"},
	}

	for i, original := range tests {
		t.Run(fmt.Sprintf("%d_%s", i, original.Type()), func(t *testing.T) {
			data, err := Encode(original)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}

			if decoded.Type() != original.Type() {
				t.Errorf("Type mismatch: got %s, want %s", decoded.Type(), original.Type())
			}
			if !reflect.DeepEqual(decoded, original) {
				t.Errorf("Message mismatch:\n got %+v\nwant %+v", decoded, original)
			}
		})
	}
}

func TestEnvelopeLayout(t *testing.T) {
	data, err := Encode(&PlaceBet{Amount: 10})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	var (
		version int
		typ     string
		amount  int
	)
	_, err = readMap(data, func(key string, bts []byte) ([]byte, error) {
		switch key {
		case "v":
			v, o, err := msgp.ReadIntBytes(bts)
			version = v
			return o, err
		case "type":
			s, o, err := msgp.ReadStringBytes(bts)
			typ = s
			return o, err
		case "body":
			return fields{"amount": readInt(&amount)}.decode(bts)
		}
		return msgp.Skip(bts)
	})
	if err != nil {
		t.Fatalf("Failed to walk envelope: %v", err)
	}
	if version != 1 || typ != "PLACE_BET" || amount != 10 {
		t.Errorf("Unexpected envelope: v=%d type=%q amount=%d", version, typ, amount)
	}
}

// envelope builds a raw envelope so tests can produce frames Encode refuses to
func envelope(version int, typ string, body func([]byte) []byte) []byte {
	b := msgp.AppendMapHeader(nil, 3)
	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, version)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, typ)
	b = msgp.AppendString(b, "body")
	return body(b)
}

func TestDecodeSkipsUnknownKeys(t *testing.T) {
	data := envelope(Version, "PLACE_BET", func(b []byte) []byte {
		b = msgp.AppendMapHeader(b, 3)
		b = msgp.AppendString(b, "currency")
		b = msgp.AppendString(b, "USD")
		b = msgp.AppendString(b, "amount")
		b = msgp.AppendInt(b, 15)
		b = msgp.AppendString(b, "tags")
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, "a")
		return msgp.AppendInt(b, 7)
	})

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	bet, ok := msg.(*PlaceBet)
	if !ok {
		t.Fatalf("Expected *PlaceBet, got %T", msg)
	}
	if bet.Amount != 15 {
		t.Errorf("Amount mismatch: got %d, want 15", bet.Amount)
	}
}

func TestDecodeErrors(t *testing.T) {
	emptyBody := func(b []byte) []byte { return msgp.AppendMapHeader(b, 0) }
	valid, err := Encode(&PlaceBet{Amount: 5})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"unknown type", envelope(Version, "SPLIT", emptyBody), ErrUnknownMessageType},
		{"old version", envelope(0, "PLACE_BET", emptyBody), ErrUnsupportedVersion},
		{"future version", envelope(2, "PLACE_BET", emptyBody), ErrUnsupportedVersion},
		{"truncated", valid[:len(valid)-2], nil},
		{"empty", nil, nil},
		{"not a map", msgp.AppendString(nil, "PLACE_BET"), nil},
		{"bad card", envelope(Version, "CARD_DEALT", func(b []byte) []byte {
			b = msgp.AppendMapHeader(b, 1)
			b = msgp.AppendString(b, "card")
			return msgp.AppendString(b, "Zz")
		}), nil},
		{"wrong field type", envelope(Version, "PLACE_BET", func(b []byte) []byte {
			b = msgp.AppendMapHeader(b, 1)
			b = msgp.AppendString(b, "amount")
			return msgp.AppendString(b, "ten")
		}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("Expected error, decoded %+v", msg)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFromClient(t *testing.T) {
	for _, typ := range []MessageType{TypeConnectRequest, TypePlaceBet, TypePlayerAction, TypeDisconnect} {
		if !typ.FromClient() {
			t.Errorf("%s should be a client message", typ)
		}
	}
	for _, typ := range []MessageType{TypeConnectAccept, TypeUpdateGameState, TypeCardDealt, TypeDealerCardDealt, TypeTurnChanged, TypeRoundEnd, TypeError} {
		if typ.FromClient() {
			t.Errorf("%s should be a server message", typ)
		}
	}
}

func TestMessageSizes(t *testing.T) {
	// A full dealer hand is the largest body; it must fit well inside a frame.
	msg := &RoundEnd{
		DealerCards: deck.MustParseCards("2h2d2c2s3h3d3c"),
		PlayerValue: 21,
		DealerValue: 19,
		Outcome:     game.OutcomePlayerWin,
		Payout:      1000000,
		Status:      "You win! (21 vs 19)",
	}
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if len(data) > 256 {
		t.Errorf("RoundEnd too large: %d bytes", len(data))
	}
}

// Encode must not share buffers between calls
func TestEncodeConcurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				data, err := Encode(&PlaceBet{Amount: id*1000 + j})
				if err != nil {
					t.Errorf("Encode failed: %v", err)
					return
				}
				msg, err := Decode(data)
				if err != nil {
					t.Errorf("Decode failed: %v", err)
					return
				}
				if got := msg.(*PlaceBet).Amount; got != id*1000+j {
					t.Errorf("Expected amount %d, got %d", id*1000+j, got)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestErrorBetOnlyWithInvalidBet(t *testing.T) {
	data, err := (&Error{Code: CodeInvalidAction, Message: "no", Bet: 7}).MarshalMsg(nil)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	n, _, err := msgp.ReadMapHeaderBytes(data)
	if err != nil {
		t.Fatalf("Failed to read map header: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 keys without a bet, got %d", n)
	}

	var decoded Error
	if _, err := decoded.UnmarshalMsg(data); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if decoded.Bet != 0 {
		t.Errorf("Bet should not travel with %s, got %d", decoded.Code, decoded.Bet)
	}

	withBet := &Error{Code: CodeInvalidBet, Message: "too high", Bet: 0}
	if !withBet.HasBet() {
		t.Error("invalid_bet should carry the dealer's bet, zero included")
	}
}
