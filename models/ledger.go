package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial   TransactionType = "initial"
	TransactionTypeBetCommit TransactionType = "bet_commit"
	TransactionTypeBetPayout TransactionType = "bet_payout"
)

// LedgerEntry represents a historical balance change of an account
type LedgerEntry struct {
	ID                  int64           `db:"id"`
	Principal           Principal       `db:"principal"`
	BalanceBefore       uint64          `db:"balance_before"`
	BalanceAfter        uint64          `db:"balance_after"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	MarketKey           *MarketKey      `db:"market_key"`
	CreatedAt           time.Time       `db:"created_at"`
}

// ChangeAmount is the signed balance delta of the entry
func (e *LedgerEntry) ChangeAmount() int64 {
	if e.BalanceAfter >= e.BalanceBefore {
		return int64(e.BalanceAfter - e.BalanceBefore)
	}
	return -int64(e.BalanceBefore - e.BalanceAfter)
}
