package service

import (
	"context"
	"fmt"

	"commitbet/models"

	log "github.com/sirupsen/logrus"
)

// accountService implements the AccountService interface
type accountService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance uint64
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, startingBalance uint64) AccountService {
	return &accountService{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

// GetOrCreateAccount retrieves an existing account or creates one with the starting balance
func (s *accountService) GetOrCreateAccount(ctx context.Context, principal models.Principal) (*models.Account, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByPrincipal(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	// The primary key on principal prevents duplicate accounts
	account, err = uow.AccountRepository().Create(ctx, principal, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := RecordBalanceChange(ctx, uow, &models.LedgerEntry{
		Principal:       principal,
		BalanceBefore:   0,
		BalanceAfter:    s.startingBalance,
		TransactionType: models.TransactionTypeInitial,
	}); err != nil {
		return nil, fmt.Errorf("failed to record initial balance: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"principal": principal,
		"balance":   account.Balance,
	}).Info("Account created")

	return account, nil
}

// GetAccount retrieves an existing account
func (s *accountService) GetAccount(ctx context.Context, principal models.Principal) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByPrincipal(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, models.ErrAccountNotFound
	}
	return account, nil
}

// ListLedger returns the newest ledger entries of an account
func (s *accountService) ListLedger(ctx context.Context, principal models.Principal, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entries, err := uow.LedgerRepository().ListByPrincipal(ctx, principal, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return entries, nil
}
