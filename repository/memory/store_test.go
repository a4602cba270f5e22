package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"commitbet/events"
	"commitbet/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarket(creator models.Principal, id uint64, createdAt time.Time) *models.Market {
	key := models.DeriveMarketKey(creator, id)
	return &models.Market{
		Key:            key,
		Creator:        creator,
		Oracle:         creator,
		MarketID:       id,
		Deadline:       createdAt.Add(time.Hour),
		RevealDeadline: createdAt.Add(2 * time.Hour),
		Status:         models.MarketStatusOpen,
		VaultKey:       models.DeriveVaultKey(key),
		CreatedAt:      createdAt,
	}
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	factory := NewUnitOfWorkFactory(store, events.NewBus())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("rollback discards staged records", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.MarketRepository().Create(ctx, newTestMarket("alice", 1, now)))
		_, err := uow.AccountRepository().Create(ctx, "alice", 1000)
		require.NoError(t, err)
		require.NoError(t, uow.Rollback())

		markets, bets, accounts := store.Counts()
		assert.Equal(t, 0, markets)
		assert.Equal(t, 0, bets)
		assert.Equal(t, 0, accounts)
	})

	t.Run("commit applies staged records", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.MarketRepository().Create(ctx, newTestMarket("alice", 1, now)))
		_, err := uow.AccountRepository().Create(ctx, "alice", 1000)
		require.NoError(t, err)
		require.NoError(t, uow.Commit())

		markets, _, accounts := store.Counts()
		assert.Equal(t, 1, markets)
		assert.Equal(t, 1, accounts)
	})

	t.Run("rollback after commit is a no-op", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.Commit())
		assert.NoError(t, uow.Rollback())
	})

	t.Run("begin twice fails", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		assert.Error(t, uow.Begin(ctx))
	})
}

func TestUnitOfWork_EventsFlushOnlyOnCommit(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(NewStore(), bus)

	received := make(chan events.Event, 2)
	bus.Subscribe(events.EventTypeMarketCreated, func(ctx context.Context, e events.Event) {
		received <- e
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	uow.EventBus().Publish(events.MarketCreatedEvent{MarketID: 1})
	require.NoError(t, uow.Rollback())

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	uow.EventBus().Publish(events.MarketCreatedEvent{MarketID: 2})
	require.NoError(t, uow.Commit())

	select {
	case e := <-received:
		assert.Equal(t, uint64(2), e.(events.MarketCreatedEvent).MarketID)
	case <-time.After(time.Second):
		t.Fatal("committed event was not delivered")
	}
	select {
	case e := <-received:
		t.Fatalf("unexpected event %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	factory := NewUnitOfWorkFactory(store, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	market := newTestMarket("alice", 1, now)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.MarketRepository().Create(ctx, market))
	require.NoError(t, uow.MarketRepository().Create(ctx, newTestMarket("alice", 2, now.Add(time.Minute))))
	require.NoError(t, uow.VaultRepository().Open(ctx, &models.Vault{Key: market.VaultKey, MarketKey: market.Key}))
	_, err := uow.AccountRepository().Create(ctx, "bob", 500)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	t.Run("duplicate market", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		err := uow.MarketRepository().Create(ctx, newTestMarket("alice", 1, now))
		assert.True(t, errors.Is(err, models.ErrDuplicateMarket))
	})

	t.Run("missing record returns nil", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		m, err := uow.MarketRepository().GetByKey(ctx, models.DeriveMarketKey("nobody", 9))
		assert.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		m, err := uow.MarketRepository().GetByKey(ctx, market.Key)
		require.NoError(t, err)
		m.TotalPool = 999
		require.NoError(t, uow.Rollback())

		uow = factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		m, err = uow.MarketRepository().GetByKey(ctx, market.Key)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), m.TotalPool)
	})

	t.Run("list newest first with status filter", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		markets, err := uow.MarketRepository().List(ctx, nil, 10)
		require.NoError(t, err)
		require.Len(t, markets, 2)
		assert.Equal(t, uint64(2), markets[0].MarketID)

		resolved := models.MarketStatusResolved
		markets, err = uow.MarketRepository().List(ctx, &resolved, 10)
		require.NoError(t, err)
		assert.Empty(t, markets)
	})

	t.Run("account and vault movements", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.AccountRepository().DeductBalance(ctx, "bob", 200))
		require.NoError(t, uow.VaultRepository().Credit(ctx, market.VaultKey, 200))
		assert.True(t, errors.Is(uow.AccountRepository().DeductBalance(ctx, "bob", 301), models.ErrInsufficientFunds))
		assert.True(t, errors.Is(uow.VaultRepository().Debit(ctx, market.VaultKey, 201), models.ErrInsufficientPoolFunds))
		require.NoError(t, uow.Commit())

		uow = factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		account, err := uow.AccountRepository().GetByPrincipal(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(300), account.Balance)
		vault, err := uow.VaultRepository().GetByKeyForUpdate(ctx, market.VaultKey)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), vault.Balance)
	})

	t.Run("bets listed in commit order", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		for _, p := range []models.Principal{"carol", "dave"} {
			require.NoError(t, uow.BetRepository().Create(ctx, &models.Bet{
				Key:         models.DeriveBetKey(market.Key, p),
				MarketKey:   market.Key,
				Participant: p,
				Amount:      10,
			}))
		}
		err := uow.BetRepository().Create(ctx, &models.Bet{Key: models.DeriveBetKey(market.Key, "carol"), MarketKey: market.Key})
		assert.True(t, errors.Is(err, models.ErrDuplicateCommitment))
		require.NoError(t, uow.Commit())

		uow = factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		bets, err := uow.BetRepository().ListByMarket(ctx, market.Key)
		require.NoError(t, err)
		require.Len(t, bets, 2)
		assert.Equal(t, models.Principal("carol"), bets[0].Participant)
		assert.Equal(t, models.Principal("dave"), bets[1].Participant)
	})

	t.Run("ledger newest first with ids", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.LedgerRepository().Record(ctx, &models.LedgerEntry{Principal: "bob", BalanceAfter: 500, TransactionType: models.TransactionTypeInitial}))
		require.NoError(t, uow.LedgerRepository().Record(ctx, &models.LedgerEntry{Principal: "bob", BalanceBefore: 500, BalanceAfter: 300, TransactionType: models.TransactionTypeBetCommit}))
		require.NoError(t, uow.Commit())

		uow = factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		entries, err := uow.LedgerRepository().ListByPrincipal(ctx, "bob", 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.TransactionTypeBetCommit, entries[0].TransactionType)
		assert.Equal(t, int64(2), entries[0].ID)
		assert.Equal(t, int64(-200), entries[0].ChangeAmount())
	})
}

func TestUnitOfWork_SerializesTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	factory := NewUnitOfWorkFactory(store, nil)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.AccountRepository().Create(ctx, "bob", 0)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uow := factory.Create()
			if err := uow.Begin(ctx); err != nil {
				t.Error(err)
				return
			}
			defer uow.Rollback()
			if err := uow.AccountRepository().AddBalance(ctx, "bob", 1); err != nil {
				t.Error(err)
				return
			}
			if err := uow.Commit(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()
	account, err := uow.AccountRepository().GetByPrincipal(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), account.Balance)
}
