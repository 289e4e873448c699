package game

import "fmt"

// Outcome is the result of a settled round from the player's point of view
type Outcome string

const (
	OutcomePlayerWin Outcome = "PLAYER_WIN"
	OutcomeBlackjack Outcome = "BLACKJACK"
	OutcomeDealerWin Outcome = "DEALER_WIN"
	OutcomePush      Outcome = "PUSH"
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	return string(o)
}

// Result holds every settlement field of a round
type Result struct {
	Outcome         Outcome
	Bet             int
	Payout          int
	PlayerValue     int
	DealerValue     int
	PlayerBust      bool
	DealerBust      bool
	PlayerBlackjack bool
	DealerBlackjack bool
}

// BlackjackPayout returns the amount returned for a winning natural: the
// stake plus 3:2, rounded down (bet × 2.5).
func BlackjackPayout(bet int) int {
	return bet * 5 / 2
}

// Settle compares two finished hands. Payout is the total returned to the
// player, stake included: 2× for a win, 2.5× for a natural, 1× for a push.
func Settle(player, dealer *Hand, bet int) Result {
	r := Result{
		Bet:             bet,
		PlayerValue:     player.Value(),
		DealerValue:     dealer.Value(),
		PlayerBust:      player.IsBust(),
		DealerBust:      dealer.IsBust(),
		PlayerBlackjack: player.IsBlackjack(),
		DealerBlackjack: dealer.IsBlackjack(),
	}

	switch {
	case r.PlayerBust:
		r.Outcome = OutcomeDealerWin
	case r.PlayerBlackjack && r.DealerBlackjack:
		r.Outcome = OutcomePush
	case r.PlayerBlackjack:
		r.Outcome = OutcomeBlackjack
	case r.DealerBlackjack:
		r.Outcome = OutcomeDealerWin
	case r.DealerBust, r.PlayerValue > r.DealerValue:
		r.Outcome = OutcomePlayerWin
	case r.PlayerValue < r.DealerValue:
		r.Outcome = OutcomeDealerWin
	default:
		r.Outcome = OutcomePush
	}

	switch r.Outcome {
	case OutcomeBlackjack:
		r.Payout = BlackjackPayout(bet)
	case OutcomePlayerWin:
		r.Payout = bet * 2
	case OutcomePush:
		r.Payout = bet
	}
	return r
}

// Summary returns a one-line description of the result addressed to the player
func (r Result) Summary() string {
	switch {
	case r.PlayerBust:
		return "Bust! Dealer wins."
	case r.Outcome == OutcomePush && r.PlayerBlackjack:
		return "Both have Blackjack! It's a push."
	case r.Outcome == OutcomeBlackjack:
		return fmt.Sprintf("Blackjack! You win $%d!", r.Payout)
	case r.DealerBlackjack:
		return "Dealer has Blackjack! You lose."
	case r.DealerBust:
		return fmt.Sprintf("Dealer busted! You win $%d!", r.Payout)
	case r.Outcome == OutcomePlayerWin:
		return fmt.Sprintf("You win! (%d vs %d)", r.PlayerValue, r.DealerValue)
	case r.Outcome == OutcomeDealerWin:
		return fmt.Sprintf("Dealer wins. (%d vs %d)", r.PlayerValue, r.DealerValue)
	default:
		return fmt.Sprintf("Push (tie). (%d vs %d)", r.PlayerValue, r.DealerValue)
	}
}

// HouseNet returns what the dealer gained (positive) or lost (negative)
func (r Result) HouseNet() int {
	return r.Bet - r.Payout
}
