package repository

import (
	"context"
	"errors"
	"fmt"

	"commitbet/database"
	"commitbet/events"
	"commitbet/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	meter            QueryMeter
	transactionalBus *events.TransactionalBus
	marketRepo       service.MarketRepository
	betRepo          service.BetRepository
	accountRepo      service.AccountRepository
	vaultRepo        service.VaultRepository
	ledgerRepo       service.LedgerRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus, meter QueryMeter) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		meter:    meterOrNoop(meter),
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
	meter    QueryMeter
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		meter:            f.meter,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.marketRepo = newMarketRepositoryWithTx(tx, u.meter)
	u.betRepo = newBetRepositoryWithTx(tx, u.meter)
	u.accountRepo = newAccountRepositoryWithTx(tx, u.meter)
	u.vaultRepo = newVaultRepositoryWithTx(tx, u.meter)
	u.ledgerRepo = newLedgerRepositoryWithTx(tx, u.meter)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// MarketRepository returns the market repository for this unit of work
func (u *unitOfWork) MarketRepository() service.MarketRepository {
	if u.marketRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.marketRepo
}

// BetRepository returns the bet repository for this unit of work
func (u *unitOfWork) BetRepository() service.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// VaultRepository returns the vault repository for this unit of work
func (u *unitOfWork) VaultRepository() service.VaultRepository {
	if u.vaultRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.vaultRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
