package protocol

import (
	"fmt"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/tinylib/msgp/msgp"
)

// Message bodies are msgpack maps keyed by the msg tags on each struct.
// Unknown keys are skipped so either side can add fields.

// readMap walks a msgpack map, handing each key to fn together with the
// remaining bytes. fn consumes the value and returns what is left.
func readMap(bts []byte, fn func(key string, bts []byte) ([]byte, error)) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}
	for ; n > 0; n-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}
		key := string(field)
		bts, err = fn(key, bts)
		if err != nil {
			return bts, msgp.WrapError(err, key)
		}
	}
	return bts, nil
}

func appendCard(b []byte, c deck.Card) []byte {
	if !c.Valid() {
		return msgp.AppendString(b, "")
	}
	return msgp.AppendString(b, c.Code())
}

func readCard(bts []byte) (deck.Card, []byte, error) {
	s, bts, err := msgp.ReadStringBytes(bts)
	if err != nil || s == "" {
		return deck.Card{}, bts, err
	}
	c, err := deck.ParseCard(s)
	return c, bts, err
}

func appendCards(b []byte, cards []deck.Card) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(cards)))
	for _, c := range cards {
		b = appendCard(b, c)
	}
	return b
}

func readCards(bts []byte) ([]deck.Card, []byte, error) {
	n, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	if n > deck.Size {
		return nil, bts, fmt.Errorf("%d cards exceeds deck size", n)
	}
	cards := make([]deck.Card, 0, n)
	for i := uint32(0); i < n; i++ {
		var c deck.Card
		c, bts, err = readCard(bts)
		if err != nil {
			return nil, bts, msgp.WrapError(err, i)
		}
		cards = append(cards, c)
	}
	return cards, bts, nil
}

func readInt(dst *int) func([]byte) ([]byte, error) {
	return func(bts []byte) (o []byte, err error) {
		*dst, o, err = msgp.ReadIntBytes(bts)
		return o, err
	}
}

func readBool(dst *bool) func([]byte) ([]byte, error) {
	return func(bts []byte) (o []byte, err error) {
		*dst, o, err = msgp.ReadBoolBytes(bts)
		return o, err
	}
}

func readString(dst *string) func([]byte) ([]byte, error) {
	return func(bts []byte) (o []byte, err error) {
		*dst, o, err = msgp.ReadStringBytes(bts)
		return o, err
	}
}

func readCardInto(dst *deck.Card) func([]byte) ([]byte, error) {
	return func(bts []byte) (o []byte, err error) {
		*dst, o, err = readCard(bts)
		return o, err
	}
}

func readCardsInto(dst *[]deck.Card) func([]byte) ([]byte, error) {
	return func(bts []byte) (o []byte, err error) {
		*dst, o, err = readCards(bts)
		return o, err
	}
}

// fields maps body keys to decoders; anything else is skipped
type fields map[string]func([]byte) ([]byte, error)

func (f fields) decode(bts []byte) ([]byte, error) {
	return readMap(bts, func(key string, bts []byte) ([]byte, error) {
		if read, ok := f[key]; ok {
			return read(bts)
		}
		return msgp.Skip(bts)
	})
}

// ConnectRequest

func (z *ConnectRequest) MarshalMsg(b []byte) ([]byte, error) {
	if z.Name == "" {
		return msgp.AppendMapHeader(b, 0), nil
	}
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "name")
	return msgp.AppendString(b, z.Name), nil
}

func (z *ConnectRequest) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = ConnectRequest{}
	return fields{"name": readString(&z.Name)}.decode(bts)
}

// PlaceBet

func (z *PlaceBet) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "amount")
	return msgp.AppendInt(b, z.Amount), nil
}

func (z *PlaceBet) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = PlaceBet{}
	return fields{"amount": readInt(&z.Amount)}.decode(bts)
}

// PlayerAction

func (z *PlayerAction) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "action")
	return msgp.AppendString(b, string(z.Action)), nil
}

func (z *PlayerAction) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = PlayerAction{}
	var action string
	o, err := fields{"action": readString(&action)}.decode(bts)
	z.Action = game.Action(action)
	return o, err
}

// Disconnect

func (z *Disconnect) MarshalMsg(b []byte) ([]byte, error) {
	return msgp.AppendMapHeader(b, 0), nil
}

func (z *Disconnect) UnmarshalMsg(bts []byte) ([]byte, error) {
	return fields{}.decode(bts)
}

// ConnectAccept

func (z *ConnectAccept) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "welcome")
	b = msgp.AppendString(b, z.Welcome)
	b = msgp.AppendString(b, "min_bet")
	b = msgp.AppendInt(b, z.MinBet)
	b = msgp.AppendString(b, "max_bet")
	return msgp.AppendInt(b, z.MaxBet), nil
}

func (z *ConnectAccept) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = ConnectAccept{}
	return fields{
		"welcome": readString(&z.Welcome),
		"min_bet": readInt(&z.MinBet),
		"max_bet": readInt(&z.MaxBet),
	}.decode(bts)
}

// UpdateGameState

func (z *UpdateGameState) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 6)
	b = msgp.AppendString(b, "player_cards")
	b = appendCards(b, z.PlayerCards)
	b = msgp.AppendString(b, "dealer_up_card")
	b = appendCard(b, z.DealerUpCard)
	b = msgp.AppendString(b, "player_value")
	b = msgp.AppendInt(b, z.PlayerValue)
	b = msgp.AppendString(b, "bet")
	b = msgp.AppendInt(b, z.Bet)
	b = msgp.AppendString(b, "status")
	b = msgp.AppendString(b, z.Status)
	b = msgp.AppendString(b, "player_turn")
	return msgp.AppendBool(b, z.PlayerTurn), nil
}

func (z *UpdateGameState) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = UpdateGameState{}
	return fields{
		"player_cards":   readCardsInto(&z.PlayerCards),
		"dealer_up_card": readCardInto(&z.DealerUpCard),
		"player_value":   readInt(&z.PlayerValue),
		"bet":            readInt(&z.Bet),
		"status":         readString(&z.Status),
		"player_turn":    readBool(&z.PlayerTurn),
	}.decode(bts)
}

// CardDealt

func (z *CardDealt) MarshalMsg(b []byte) ([]byte, error) {
	n := uint32(6)
	if z.Bet != 0 {
		n++
	}
	b = msgp.AppendMapHeader(b, n)
	b = msgp.AppendString(b, "card")
	b = appendCard(b, z.Card)
	b = msgp.AppendString(b, "player_value")
	b = msgp.AppendInt(b, z.PlayerValue)
	b = msgp.AppendString(b, "player_bust")
	b = msgp.AppendBool(b, z.PlayerBust)
	b = msgp.AppendString(b, "round_over")
	b = msgp.AppendBool(b, z.RoundOver)
	b = msgp.AppendString(b, "status")
	b = msgp.AppendString(b, z.Status)
	if z.Bet != 0 {
		b = msgp.AppendString(b, "bet")
		b = msgp.AppendInt(b, z.Bet)
	}
	b = msgp.AppendString(b, "player_turn")
	return msgp.AppendBool(b, z.PlayerTurn), nil
}

func (z *CardDealt) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = CardDealt{}
	return fields{
		"card":         readCardInto(&z.Card),
		"player_value": readInt(&z.PlayerValue),
		"player_bust":  readBool(&z.PlayerBust),
		"round_over":   readBool(&z.RoundOver),
		"status":       readString(&z.Status),
		"bet":          readInt(&z.Bet),
		"player_turn":  readBool(&z.PlayerTurn),
	}.decode(bts)
}

// DealerCardDealt

func (z *DealerCardDealt) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "card")
	b = appendCard(b, z.Card)
	b = msgp.AppendString(b, "dealer_cards")
	b = appendCards(b, z.DealerCards)
	b = msgp.AppendString(b, "dealer_value")
	b = msgp.AppendInt(b, z.DealerValue)
	b = msgp.AppendString(b, "status")
	return msgp.AppendString(b, z.Status), nil
}

func (z *DealerCardDealt) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = DealerCardDealt{}
	return fields{
		"card":         readCardInto(&z.Card),
		"dealer_cards": readCardsInto(&z.DealerCards),
		"dealer_value": readInt(&z.DealerValue),
		"status":       readString(&z.Status),
	}.decode(bts)
}

// TurnChanged

func (z *TurnChanged) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "status")
	b = msgp.AppendString(b, z.Status)
	b = msgp.AppendString(b, "player_turn")
	b = msgp.AppendBool(b, z.PlayerTurn)
	b = msgp.AppendString(b, "dealer_turn")
	return msgp.AppendBool(b, z.DealerTurn), nil
}

func (z *TurnChanged) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = TurnChanged{}
	return fields{
		"status":      readString(&z.Status),
		"player_turn": readBool(&z.PlayerTurn),
		"dealer_turn": readBool(&z.DealerTurn),
	}.decode(bts)
}

// RoundEnd

func (z *RoundEnd) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 8)
	b = msgp.AppendString(b, "dealer_cards")
	b = appendCards(b, z.DealerCards)
	b = msgp.AppendString(b, "player_value")
	b = msgp.AppendInt(b, z.PlayerValue)
	b = msgp.AppendString(b, "dealer_value")
	b = msgp.AppendInt(b, z.DealerValue)
	b = msgp.AppendString(b, "player_bust")
	b = msgp.AppendBool(b, z.PlayerBust)
	b = msgp.AppendString(b, "dealer_bust")
	b = msgp.AppendBool(b, z.DealerBust)
	b = msgp.AppendString(b, "outcome")
	b = msgp.AppendString(b, string(z.Outcome))
	b = msgp.AppendString(b, "payout")
	b = msgp.AppendInt(b, z.Payout)
	b = msgp.AppendString(b, "status")
	return msgp.AppendString(b, z.Status), nil
}

func (z *RoundEnd) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = RoundEnd{}
	var outcome string
	o, err := fields{
		"dealer_cards": readCardsInto(&z.DealerCards),
		"player_value": readInt(&z.PlayerValue),
		"dealer_value": readInt(&z.DealerValue),
		"player_bust":  readBool(&z.PlayerBust),
		"dealer_bust":  readBool(&z.DealerBust),
		"outcome":      readString(&outcome),
		"payout":       readInt(&z.Payout),
		"status":       readString(&z.Status),
	}.decode(bts)
	z.Outcome = game.Outcome(outcome)
	return o, err
}

// Error

func (z *Error) MarshalMsg(b []byte) ([]byte, error) {
	n := uint32(2)
	if z.HasBet() {
		n++
	}
	b = msgp.AppendMapHeader(b, n)
	b = msgp.AppendString(b, "code")
	b = msgp.AppendString(b, z.Code)
	b = msgp.AppendString(b, "message")
	b = msgp.AppendString(b, z.Message)
	if z.HasBet() {
		b = msgp.AppendString(b, "bet")
		b = msgp.AppendInt(b, z.Bet)
	}
	return b, nil
}

func (z *Error) UnmarshalMsg(bts []byte) ([]byte, error) {
	*z = Error{}
	return fields{
		"code":    readString(&z.Code),
		"message": readString(&z.Message),
		"bet":     readInt(&z.Bet),
	}.decode(bts)
}
