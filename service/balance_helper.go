package service

import (
	"context"
	"fmt"

	"commitbet/events"
	"commitbet/models"
)

// RecordBalanceChange records a ledger entry and emits the matching event.
// All account balance changes go through here.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if err := uow.LedgerRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	// Flushed after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		Principal:       entry.Principal,
		OldBalance:      entry.BalanceBefore,
		NewBalance:      entry.BalanceAfter,
		TransactionType: entry.TransactionType,
		ChangeAmount:    entry.ChangeAmount(),
	})

	return nil
}

// depositToVault moves amount from the participant's account into the market vault
func depositToVault(ctx context.Context, uow UnitOfWork, market *models.Market, from models.Principal, amount uint64) error {
	account, err := uow.AccountRepository().GetByPrincipalForUpdate(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return models.ErrAccountNotFound
	}
	if account.Balance < amount {
		return fmt.Errorf("balance %d, need %d: %w", account.Balance, amount, models.ErrInsufficientFunds)
	}

	if err := uow.AccountRepository().DeductBalance(ctx, from, amount); err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if err := uow.VaultRepository().Credit(ctx, market.VaultKey, amount); err != nil {
		return fmt.Errorf("failed to credit vault: %w", err)
	}

	marketKey := market.Key
	return RecordBalanceChange(ctx, uow, &models.LedgerEntry{
		Principal:       from,
		BalanceBefore:   account.Balance,
		BalanceAfter:    account.Balance - amount,
		TransactionType: models.TransactionTypeBetCommit,
		TransactionMetadata: map[string]any{
			"market_key": marketKey.String(),
			"amount":     fmt.Sprintf("%d", amount),
		},
		MarketKey: &marketKey,
	})
}

// withdrawFromVault moves amount from the market vault to the recipient's
// account. The authority must be the one derived for the vault's market.
func withdrawFromVault(ctx context.Context, uow UnitOfWork, market *models.Market, to models.Principal, amount uint64, authority [32]byte) error {
	if authority != models.DeriveVaultAuthority(market.Key) {
		return models.ErrInvalidVaultAuthority
	}

	vault, err := uow.VaultRepository().GetByKeyForUpdate(ctx, market.VaultKey)
	if err != nil {
		return fmt.Errorf("failed to get vault: %w", err)
	}
	if vault == nil {
		return models.ErrVaultNotFound
	}
	if vault.MarketKey != market.Key {
		return models.ErrInvalidVaultAuthority
	}
	if vault.Balance < amount {
		return fmt.Errorf("vault holds %d, payout %d: %w", vault.Balance, amount, models.ErrInsufficientPoolFunds)
	}

	account, err := uow.AccountRepository().GetByPrincipalForUpdate(ctx, to)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return models.ErrAccountNotFound
	}
	newBalance := account.Balance + amount
	if newBalance < account.Balance {
		return fmt.Errorf("account balance: %w", models.ErrOverflow)
	}

	if err := uow.VaultRepository().Debit(ctx, market.VaultKey, amount); err != nil {
		return fmt.Errorf("failed to debit vault: %w", err)
	}
	if err := uow.AccountRepository().AddBalance(ctx, to, amount); err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	marketKey := market.Key
	return RecordBalanceChange(ctx, uow, &models.LedgerEntry{
		Principal:       to,
		BalanceBefore:   account.Balance,
		BalanceAfter:    newBalance,
		TransactionType: models.TransactionTypeBetPayout,
		TransactionMetadata: map[string]any{
			"market_key": marketKey.String(),
			"payout":     fmt.Sprintf("%d", amount),
		},
		MarketKey: &marketKey,
	})
}
