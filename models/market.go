package models

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// MaxQuestionLength is the maximum question size in bytes
const MaxQuestionLength = 256

// DefaultRevealPeriod applies when a market is created without a positive reveal period
const DefaultRevealPeriod = 24 * time.Hour

// MaxDeadline is the latest commit or reveal deadline a market may carry. Every
// store must be able to hold it.
var MaxDeadline = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// MarketStatus represents the lifecycle state of a market
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusRevealing MarketStatus = "revealing"
	MarketStatusResolved  MarketStatus = "resolved"
	// MarketStatusCancelled is part of the schema but no operation produces it
	MarketStatusCancelled MarketStatus = "cancelled"
)

// ParseMarketStatus validates a status name
func ParseMarketStatus(s string) (MarketStatus, error) {
	switch MarketStatus(s) {
	case MarketStatusOpen, MarketStatusRevealing, MarketStatusResolved, MarketStatusCancelled:
		return MarketStatus(s), nil
	default:
		return "", fmt.Errorf("unknown market status %q", s)
	}
}

// Market represents a binary prediction market
type Market struct {
	Key            MarketKey    `db:"market_key"`
	Creator        Principal    `db:"creator"`
	Oracle         Principal    `db:"oracle"`
	MarketID       uint64       `db:"market_id"`
	Question       string       `db:"question"`
	Deadline       time.Time    `db:"deadline"`
	RevealDeadline time.Time    `db:"reveal_deadline"`
	Status         MarketStatus `db:"status"`
	Outcome        *Outcome     `db:"outcome"`
	TotalPool      uint64       `db:"total_pool"`
	YesPool        uint64       `db:"yes_pool"`
	NoPool         uint64       `db:"no_pool"`
	YesCount       uint32       `db:"yes_count"`
	NoCount        uint32       `db:"no_count"`
	VaultKey       VaultKey     `db:"vault_key"`
	CreatedAt      time.Time    `db:"created_at"`
	ResolvedAt     *time.Time   `db:"resolved_at"`
}

// DeadlinePassed reports whether staking has closed
func (m *Market) DeadlinePassed(now time.Time) bool {
	return !now.Before(m.Deadline)
}

// RevealDeadlinePassed reports whether the reveal window has closed
func (m *Market) RevealDeadlinePassed(now time.Time) bool {
	return !now.Before(m.RevealDeadline)
}

// IsFinal reports whether the market no longer accepts reveals or resolution
func (m *Market) IsFinal() bool {
	return m.Status == MarketStatusResolved || m.Status == MarketStatusCancelled
}

// UnrevealedPool is the committed stake that has not been revealed.
// After resolution this amount stays in the vault.
func (m *Market) UnrevealedPool() uint64 {
	revealed := m.YesPool + m.NoPool
	if revealed > m.TotalPool {
		return 0
	}
	return m.TotalPool - revealed
}

// AddCommitment adds a committed stake to the total pool
func (m *Market) AddCommitment(amount uint64) error {
	total := m.TotalPool + amount
	if total < m.TotalPool {
		return fmt.Errorf("total pool: %w", ErrOverflow)
	}
	m.TotalPool = total
	return nil
}

// ApplyReveal credits a revealed bet to its side's pool and count
func (m *Market) ApplyReveal(outcome Outcome, amount uint64) error {
	switch outcome {
	case OutcomeYes:
		pool := m.YesPool + amount
		if pool < m.YesPool || m.YesCount == ^uint32(0) {
			return fmt.Errorf("yes pool: %w", ErrOverflow)
		}
		m.YesPool = pool
		m.YesCount++
	case OutcomeNo:
		pool := m.NoPool + amount
		if pool < m.NoPool || m.NoCount == ^uint32(0) {
			return fmt.Errorf("no pool: %w", ErrOverflow)
		}
		m.NoPool = pool
		m.NoCount++
	default:
		return ErrInvalidOutcome
	}
	return nil
}

// Pools returns the winning and losing pools for the resolved outcome
func (m *Market) Pools() (winning, losing uint64, err error) {
	if m.Outcome == nil {
		return 0, 0, ErrMarketNotResolved
	}
	switch *m.Outcome {
	case OutcomeYes:
		return m.YesPool, m.NoPool, nil
	case OutcomeNo:
		return m.NoPool, m.YesPool, nil
	default:
		return 0, 0, ErrInvalidOutcome
	}
}

// Payout computes bet + floor(bet * losing / winning) for a winning bet.
// The intermediate product is computed in 256 bits.
func (m *Market) Payout(bet uint64) (uint64, error) {
	winning, losing, err := m.Pools()
	if err != nil {
		return 0, err
	}
	return ComputePayout(bet, winning, losing)
}

// ComputePayout returns the pari-mutuel payout of a winning stake
func ComputePayout(bet, winning, losing uint64) (uint64, error) {
	share := new(uint256.Int)
	if winning > 0 {
		var overflow bool
		share, overflow = new(uint256.Int).MulDivOverflow(
			uint256.NewInt(bet), uint256.NewInt(losing), uint256.NewInt(winning))
		if overflow {
			return 0, fmt.Errorf("payout share: %w", ErrOverflow)
		}
	}
	total, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(bet), share)
	if overflow || !total.IsUint64() {
		return 0, fmt.Errorf("payout: %w", ErrOverflow)
	}
	return total.Uint64(), nil
}
