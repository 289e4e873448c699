package protocol

import (
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeConnectRequest MessageType = "CONNECT_REQUEST"
	TypePlaceBet       MessageType = "PLACE_BET"
	TypePlayerAction   MessageType = "PLAYER_ACTION"
	TypeDisconnect     MessageType = "DISCONNECT"

	// Server -> Client
	TypeConnectAccept   MessageType = "CONNECT_ACCEPT"
	TypeUpdateGameState MessageType = "UPDATE_GAME_STATE"
	TypeCardDealt       MessageType = "CARD_DEALT"
	TypeDealerCardDealt MessageType = "DEALER_CARD_DEALT"
	TypeTurnChanged     MessageType = "TURN_CHANGED"
	TypeRoundEnd        MessageType = "ROUND_END"
	TypeError           MessageType = "PROTOCOL_ERROR"
)

// FromClient reports whether messages of this type are sent by the player
func (t MessageType) FromClient() bool {
	switch t {
	case TypeConnectRequest, TypePlaceBet, TypePlayerAction, TypeDisconnect:
		return true
	}
	return false
}

// Error codes carried by PROTOCOL_ERROR
const (
	CodeInvalidMessage    = "invalid_message"
	CodeUnexpectedMessage = "unexpected_message"
	CodeAlreadyConnected  = "already_connected"
	CodeTableFull         = "table_full"
	CodeInvalidBet        = "invalid_bet"
	CodeRoundInProgress   = "round_in_progress"
	CodeNotYourTurn       = "not_your_turn"
	CodeInvalidAction     = "invalid_action"
)

// Message is implemented by every wire message
type Message interface {
	Type() MessageType
	MarshalMsg([]byte) ([]byte, error)
	UnmarshalMsg([]byte) ([]byte, error)
}

// Client -> Server Messages

// ConnectRequest opens the conversation
type ConnectRequest struct {
	Name string `msg:"name,omitempty"`
}

// PlaceBet carries the player's total stake for the next round
type PlaceBet struct {
	Amount int `msg:"amount"`
}

// PlayerAction is a player decision during their turn
type PlayerAction struct {
	Action game.Action `msg:"action"`
}

// Disconnect announces an orderly close
type Disconnect struct{}

// Server -> Client Messages

// ConnectAccept answers ConnectRequest with the table limits. MaxBet of zero
// means no limit.
type ConnectAccept struct {
	Welcome string `msg:"welcome"`
	MinBet  int    `msg:"min_bet"`
	MaxBet  int    `msg:"max_bet"`
}

// UpdateGameState is sent after the initial deal. Only the dealer's up card
// is revealed.
type UpdateGameState struct {
	PlayerCards  []deck.Card `msg:"player_cards"`
	DealerUpCard deck.Card   `msg:"dealer_up_card"`
	PlayerValue  int         `msg:"player_value"`
	Bet          int         `msg:"bet"` // The stake the round was dealt on
	Status       string      `msg:"status"`
	PlayerTurn   bool        `msg:"player_turn"`
}

// CardDealt is sent for each card the player receives after the initial deal
type CardDealt struct {
	Card        deck.Card `msg:"card"`
	PlayerValue int       `msg:"player_value"`
	PlayerBust  bool      `msg:"player_bust"`
	RoundOver   bool      `msg:"round_over"`
	Status      string    `msg:"status"`
	Bet         int       `msg:"bet,omitempty"` // Doubled stake, only after a double down
	PlayerTurn  bool      `msg:"player_turn"`
}

// DealerCardDealt is sent for each card the dealer draws
type DealerCardDealt struct {
	Card        deck.Card   `msg:"card"`
	DealerCards []deck.Card `msg:"dealer_cards"`
	DealerValue int         `msg:"dealer_value"`
	Status      string      `msg:"status"`
}

// TurnChanged is sent when the turn passes to the dealer
type TurnChanged struct {
	Status     string `msg:"status"`
	PlayerTurn bool   `msg:"player_turn"`
	DealerTurn bool   `msg:"dealer_turn"`
}

// RoundEnd closes every round, busts included
type RoundEnd struct {
	DealerCards []deck.Card  `msg:"dealer_cards"`
	PlayerValue int          `msg:"player_value"`
	DealerValue int          `msg:"dealer_value"`
	PlayerBust  bool         `msg:"player_bust"`
	DealerBust  bool         `msg:"dealer_bust"`
	Outcome     game.Outcome `msg:"outcome"`
	Payout      int          `msg:"payout"` // Total returned to the player, stake included
	Status      string       `msg:"status"`
}

// Error rejects a message without closing the connection, except for
// CodeTableFull.
type Error struct {
	Code    string `msg:"code"`
	Message string `msg:"message"`
	Bet     int    `msg:"bet,omitempty"` // The dealer's bet, only with CodeInvalidBet
}

// HasBet reports whether Bet carries the dealer's current bet
func (e *Error) HasBet() bool {
	return e.Code == CodeInvalidBet
}

func (*ConnectRequest) Type() MessageType  { return TypeConnectRequest }
func (*PlaceBet) Type() MessageType        { return TypePlaceBet }
func (*PlayerAction) Type() MessageType    { return TypePlayerAction }
func (*Disconnect) Type() MessageType      { return TypeDisconnect }
func (*ConnectAccept) Type() MessageType   { return TypeConnectAccept }
func (*UpdateGameState) Type() MessageType { return TypeUpdateGameState }
func (*CardDealt) Type() MessageType       { return TypeCardDealt }
func (*DealerCardDealt) Type() MessageType { return TypeDealerCardDealt }
func (*TurnChanged) Type() MessageType     { return TypeTurnChanged }
func (*RoundEnd) Type() MessageType        { return TypeRoundEnd }
func (*Error) Type() MessageType           { return TypeError }

// New returns an empty message for the given type
func New(t MessageType) (Message, error) {
	switch t {
	case TypeConnectRequest:
		return &ConnectRequest{}, nil
	case TypePlaceBet:
		return &PlaceBet{}, nil
	case TypePlayerAction:
		return &PlayerAction{}, nil
	case TypeDisconnect:
		return &Disconnect{}, nil
	case TypeConnectAccept:
		return &ConnectAccept{}, nil
	case TypeUpdateGameState:
		return &UpdateGameState{}, nil
	case TypeCardDealt:
		return &CardDealt{}, nil
	case TypeDealerCardDealt:
		return &DealerCardDealt{}, nil
	case TypeTurnChanged:
		return &TurnChanged{}, nil
	case TypeRoundEnd:
		return &RoundEnd{}, nil
	case TypeError:
		return &Error{}, nil
	default:
		return nil, ErrUnknownMessageType
	}
}
