package memory

import (
	"context"
	"fmt"

	"commitbet/events"
	"commitbet/service"
)

// unitOfWork runs one serialized transaction against the store. The store
// lock is held from Begin until Commit or Rollback.
type unitOfWork struct {
	store            *Store
	cs               *changeSet
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	marketRepo       *marketRepository
	betRepo          *betRepository
	accountRepo      *accountRepository
	vaultRepo        *vaultRepository
	ledgerRepo       *ledgerRepository
}

// NewUnitOfWorkFactory creates a UnitOfWork factory backed by the store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		store:    store,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.cs != nil {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.store.mu.Lock()
	u.cs = newChangeSet()
	u.ctx = ctx

	u.marketRepo = &marketRepository{store: u.store, cs: u.cs}
	u.betRepo = &betRepository{store: u.store, cs: u.cs}
	u.accountRepo = &accountRepository{store: u.store, cs: u.cs}
	u.vaultRepo = &vaultRepository{store: u.store, cs: u.cs}
	u.ledgerRepo = &ledgerRepository{store: u.store, cs: u.cs}

	return nil
}

// Commit applies the overlay and releases the store
func (u *unitOfWork) Commit() error {
	if u.cs == nil {
		return fmt.Errorf("no transaction to commit")
	}

	u.store.apply(u.cs)
	u.cs = nil
	u.store.mu.Unlock()

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback discards the overlay and releases the store
func (u *unitOfWork) Rollback() error {
	if u.cs == nil {
		return nil
	}

	u.cs = nil
	u.store.mu.Unlock()

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func (u *unitOfWork) MarketRepository() service.MarketRepository {
	if u.marketRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.marketRepo
}

func (u *unitOfWork) BetRepository() service.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

func (u *unitOfWork) VaultRepository() service.VaultRepository {
	if u.vaultRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.vaultRepo
}

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
