package models

import "time"

// Bet represents a participant's commitment in a market
type Bet struct {
	Key             BetKey     `db:"bet_key"`
	MarketKey       MarketKey  `db:"market_key"`
	Participant     Principal  `db:"participant"`
	CommitmentHash  Hash       `db:"commitment_hash"`
	Amount          uint64     `db:"amount"`
	RevealedOutcome *Outcome   `db:"revealed_outcome"`
	RevealedSalt    *Salt      `db:"revealed_salt"`
	IsRevealed      bool       `db:"is_revealed"`
	IsClaimed       bool       `db:"is_claimed"`
	Payout          *uint64    `db:"payout"`
	CommittedAt     time.Time  `db:"committed_at"`
	RevealedAt      *time.Time `db:"revealed_at"`
	ClaimedAt       *time.Time `db:"claimed_at"`
}

// Won reports whether the bet was revealed on the resolved outcome
func (b *Bet) Won(outcome Outcome) bool {
	return b.IsRevealed && b.RevealedOutcome != nil && *b.RevealedOutcome == outcome
}
