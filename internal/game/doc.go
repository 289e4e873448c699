// Package game implements the blackjack rules for a two-party table.
//
// Session is the authoritative round state machine. It owns the deck and both
// hands and moves through three phases:
//
//	AwaitingBet -> PlayerTurn -> DealerTurn -> AwaitingBet
//
// Every operation returns the Events it produced, in order, so the owner can
// forward them to the player and to the local operator:
//
//	s := game.NewSession(game.ShuffledDecks(rng))
//	_ = s.PlaceBet(10)
//	events, err := s.Start()
//	events, err = s.Apply(game.Stand)
//	events, err = s.DealerHit()
//
// The dealer is played by a human operator through DealerHit and DealerStand;
// there is no automatic dealer strategy. Settle and Result hold the payout
// rules.
//
// Session is not safe for concurrent use.
package game
