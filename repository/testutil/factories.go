package testutil

import (
	"time"

	"commitbet/commitment"
	"commitbet/models"
)

// CreateTestMarket creates an open market with empty pools
func CreateTestMarket(creator models.Principal, marketID uint64, deadline time.Time) *models.Market {
	key := models.DeriveMarketKey(creator, marketID)
	deadline = deadline.UTC().Truncate(time.Second)
	return &models.Market{
		Key:            key,
		Creator:        creator,
		Oracle:         creator,
		MarketID:       marketID,
		Question:       "Will it rain tomorrow?",
		Deadline:       deadline,
		RevealDeadline: deadline.Add(models.DefaultRevealPeriod),
		Status:         models.MarketStatusOpen,
		VaultKey:       models.DeriveVaultKey(key),
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestVault creates an empty vault for a market
func CreateTestVault(market *models.Market) *models.Vault {
	return &models.Vault{
		Key:       market.VaultKey,
		MarketKey: market.Key,
	}
}

// CreateTestBet creates an unrevealed bet committing to outcome with a zero salt
func CreateTestBet(market models.MarketKey, participant models.Principal, amount uint64, outcome models.Outcome) *models.Bet {
	var salt models.Salt
	return &models.Bet{
		Key:            models.DeriveBetKey(market, participant),
		MarketKey:      market,
		Participant:    participant,
		CommitmentHash: commitment.Compute(amount, outcome, salt),
		Amount:         amount,
		CommittedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestLedgerEntry creates a ledger entry for a principal
func CreateTestLedgerEntry(principal models.Principal, before, after uint64, transactionType models.TransactionType) *models.LedgerEntry {
	return &models.LedgerEntry{
		Principal:       principal,
		BalanceBefore:   before,
		BalanceAfter:    after,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}
