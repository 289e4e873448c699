package server

import (
	"github.com/lox/blackjack/internal/deck"
)

// Listener receives dealer-side notifications. Calls are made outside the
// table lock, one at a time, in the order the state changes happened. A
// Listener must not block for long and must not call back into the Server
// synchronously.
type Listener interface {
	OnClientConnected(addr string)
	OnClientDisconnected()
	OnStatus(status string)
	OnError(err error)
	OnCardsDealt(dealer, player []deck.Card)
	OnPlayerCard(card deck.Card)
	OnDealerCard(card deck.Card)
	OnTurnChanged(dealerTurn bool)
	OnRoundEnded(record RoundRecord)
}

// BaseListener implements Listener with no-ops for embedding
type BaseListener struct{}

func (BaseListener) OnClientConnected(string)                {}
func (BaseListener) OnClientDisconnected()                   {}
func (BaseListener) OnStatus(string)                         {}
func (BaseListener) OnError(error)                           {}
func (BaseListener) OnCardsDealt(dealer, player []deck.Card) {}
func (BaseListener) OnPlayerCard(deck.Card)                  {}
func (BaseListener) OnDealerCard(deck.Card)                  {}
func (BaseListener) OnTurnChanged(bool)                      {}
func (BaseListener) OnRoundEnded(RoundRecord)                {}

var _ Listener = BaseListener{}
