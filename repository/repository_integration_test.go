package repository

import (
	"context"
	"testing"
	"time"

	"commitbet/events"
	"commitbet/models"
	"commitbet/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewMarketRepository(testDB.DB)
	ctx := context.Background()

	deadline := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing market returns nil", func(t *testing.T) {
		market, err := repo.GetByKey(ctx, models.DeriveMarketKey("nobody", 1))
		require.NoError(t, err)
		assert.Nil(t, market)
	})

	t.Run("create and get round trip", func(t *testing.T) {
		testDB.Reset(t)
		original := testutil.CreateTestMarket("alice", ^uint64(0), deadline)
		require.NoError(t, repo.Create(ctx, original))

		got, err := repo.GetByKey(ctx, original.Key)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, original.Key, got.Key)
		assert.Equal(t, original.VaultKey, got.VaultKey)
		assert.Equal(t, models.Principal("alice"), got.Creator)
		assert.Equal(t, ^uint64(0), got.MarketID)
		assert.Equal(t, original.Question, got.Question)
		assert.True(t, original.Deadline.Equal(got.Deadline))
		assert.True(t, original.RevealDeadline.Equal(got.RevealDeadline))
		assert.Equal(t, models.MarketStatusOpen, got.Status)
		assert.Nil(t, got.Outcome)
		assert.Nil(t, got.ResolvedAt)
	})

	t.Run("duplicate key", func(t *testing.T) {
		testDB.Reset(t)
		market := testutil.CreateTestMarket("alice", 7, deadline)
		require.NoError(t, repo.Create(ctx, market))

		err := repo.Create(ctx, testutil.CreateTestMarket("alice", 7, deadline))
		assert.ErrorIs(t, err, models.ErrDuplicateMarket)
	})

	t.Run("update persists pools and outcome", func(t *testing.T) {
		testDB.Reset(t)
		market := testutil.CreateTestMarket("alice", 1, deadline)
		require.NoError(t, repo.Create(ctx, market))

		yes := models.OutcomeYes
		resolvedAt := deadline.Add(time.Hour)
		market.TotalPool = ^uint64(0)
		market.YesPool = ^uint64(0) - 10
		market.NoPool = 10
		market.YesCount = 4294967295
		market.NoCount = 1
		market.Status = models.MarketStatusResolved
		market.Outcome = &yes
		market.ResolvedAt = &resolvedAt
		require.NoError(t, repo.Update(ctx, market))

		got, err := repo.GetByKeyForUpdate(ctx, market.Key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ^uint64(0), got.TotalPool)
		assert.Equal(t, ^uint64(0)-10, got.YesPool)
		assert.Equal(t, uint64(10), got.NoPool)
		assert.Equal(t, uint32(4294967295), got.YesCount)
		assert.Equal(t, uint32(1), got.NoCount)
		assert.Equal(t, models.MarketStatusResolved, got.Status)
		require.NotNil(t, got.Outcome)
		assert.Equal(t, models.OutcomeYes, *got.Outcome)
		require.NotNil(t, got.ResolvedAt)
		assert.True(t, resolvedAt.Equal(*got.ResolvedAt))
	})

	t.Run("list filters by status newest first", func(t *testing.T) {
		testDB.Reset(t)
		older := testutil.CreateTestMarket("alice", 1, deadline)
		older.CreatedAt = time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := testutil.CreateTestMarket("alice", 2, deadline)
		newer.CreatedAt = time.Date(2029, 6, 1, 0, 0, 0, 0, time.UTC)
		revealing := testutil.CreateTestMarket("bob", 1, deadline)
		revealing.Status = models.MarketStatusRevealing
		for _, m := range []*models.Market{older, newer, revealing} {
			require.NoError(t, repo.Create(ctx, m))
		}

		open := models.MarketStatusOpen
		markets, err := repo.List(ctx, &open, 10)
		require.NoError(t, err)
		require.Len(t, markets, 2)
		assert.Equal(t, newer.Key, markets[0].Key)
		assert.Equal(t, older.Key, markets[1].Key)

		all, err := repo.List(ctx, nil, 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		limited, err := repo.List(ctx, nil, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestBetRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	markets := NewMarketRepository(testDB.DB)
	repo := NewBetRepository(testDB.DB)
	ctx := context.Background()

	deadline := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) *models.Market {
		testDB.Reset(t)
		market := testutil.CreateTestMarket("creator", 1, deadline)
		require.NoError(t, markets.Create(ctx, market))
		return market
	}

	t.Run("create get and duplicate", func(t *testing.T) {
		market := setup(t)
		bet := testutil.CreateTestBet(market.Key, "alice", 100, models.OutcomeYes)
		require.NoError(t, repo.Create(ctx, bet))

		got, err := repo.GetByKey(ctx, bet.Key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, bet.CommitmentHash, got.CommitmentHash)
		assert.Equal(t, uint64(100), got.Amount)
		assert.False(t, got.IsRevealed)
		assert.Nil(t, got.RevealedOutcome)
		assert.Nil(t, got.RevealedSalt)
		assert.Nil(t, got.Payout)

		err = repo.Create(ctx, testutil.CreateTestBet(market.Key, "alice", 5, models.OutcomeNo))
		assert.ErrorIs(t, err, models.ErrDuplicateCommitment)

		missing, err := repo.GetByKey(ctx, models.DeriveBetKey(market.Key, "nobody"))
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("update reveal and claim", func(t *testing.T) {
		market := setup(t)
		bet := testutil.CreateTestBet(market.Key, "alice", 100, models.OutcomeYes)
		require.NoError(t, repo.Create(ctx, bet))

		outcome := models.OutcomeYes
		salt := models.Salt{9}
		payout := uint64(166)
		now := deadline.Add(time.Minute)
		bet.IsRevealed = true
		bet.RevealedOutcome = &outcome
		bet.RevealedSalt = &salt
		bet.RevealedAt = &now
		bet.IsClaimed = true
		bet.Payout = &payout
		bet.ClaimedAt = &now
		require.NoError(t, repo.Update(ctx, bet))

		got, err := repo.GetByKeyForUpdate(ctx, bet.Key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsRevealed)
		assert.True(t, got.IsClaimed)
		require.NotNil(t, got.RevealedOutcome)
		assert.Equal(t, models.OutcomeYes, *got.RevealedOutcome)
		require.NotNil(t, got.RevealedSalt)
		assert.Equal(t, salt, *got.RevealedSalt)
		require.NotNil(t, got.Payout)
		assert.Equal(t, uint64(166), *got.Payout)
	})

	t.Run("list in commit order", func(t *testing.T) {
		market := setup(t)
		for _, p := range []models.Principal{"carol", "alice", "bob"} {
			require.NoError(t, repo.Create(ctx, testutil.CreateTestBet(market.Key, p, 10, models.OutcomeNo)))
		}

		bets, err := repo.ListByMarket(ctx, market.Key)
		require.NoError(t, err)
		require.Len(t, bets, 3)
		assert.Equal(t, models.Principal("carol"), bets[0].Participant)
		assert.Equal(t, models.Principal("alice"), bets[1].Participant)
		assert.Equal(t, models.Principal("bob"), bets[2].Participant)
	})
}

func TestAccountAndVaultRepositories(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	accounts := NewAccountRepository(testDB.DB)
	vaults := NewVaultRepository(testDB.DB)
	markets := NewMarketRepository(testDB.DB)
	ctx := context.Background()

	t.Run("account balance guards", func(t *testing.T) {
		testDB.Reset(t)
		account, err := accounts.Create(ctx, "alice", 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), account.Balance)

		_, err = accounts.Create(ctx, "alice", 1)
		assert.ErrorIs(t, err, models.ErrDuplicateAccount)

		require.NoError(t, accounts.DeductBalance(ctx, "alice", 400))
		assert.ErrorIs(t, accounts.DeductBalance(ctx, "alice", 601), models.ErrInsufficientFunds)
		assert.ErrorIs(t, accounts.DeductBalance(ctx, "nobody", 1), models.ErrAccountNotFound)

		require.NoError(t, accounts.AddBalance(ctx, "alice", ^uint64(0)-600))
		assert.ErrorIs(t, accounts.AddBalance(ctx, "alice", 1), models.ErrOverflow)

		got, err := accounts.GetByPrincipalForUpdate(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ^uint64(0), got.Balance)
	})

	t.Run("vault credit and debit", func(t *testing.T) {
		testDB.Reset(t)
		market := testutil.CreateTestMarket("creator", 1, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, markets.Create(ctx, market))
		require.NoError(t, vaults.Open(ctx, testutil.CreateTestVault(market)))

		require.NoError(t, vaults.Credit(ctx, market.VaultKey, 300))
		require.NoError(t, vaults.Debit(ctx, market.VaultKey, 100))
		assert.ErrorIs(t, vaults.Debit(ctx, market.VaultKey, 201), models.ErrInsufficientPoolFunds)
		assert.ErrorIs(t, vaults.Credit(ctx, models.DeriveVaultKey(models.MarketKey{}), 1), models.ErrVaultNotFound)

		vault, err := vaults.GetByKeyForUpdate(ctx, market.VaultKey)
		require.NoError(t, err)
		require.NotNil(t, vault)
		assert.Equal(t, uint64(200), vault.Balance)
		assert.Equal(t, market.Key, vault.MarketKey)
	})
}

func TestLedgerRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	accounts := NewAccountRepository(testDB.DB)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	_, err := accounts.Create(ctx, "alice", 100)
	require.NoError(t, err)

	first := testutil.CreateTestLedgerEntry("alice", 0, 100, models.TransactionTypeInitial)
	require.NoError(t, repo.Record(ctx, first))
	second := testutil.CreateTestLedgerEntry("alice", 100, 40, models.TransactionTypeBetCommit)
	require.NoError(t, repo.Record(ctx, second))
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, second.CreatedAt.IsZero())

	entries, err := repo.ListByPrincipal(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, int64(-60), entries[0].ChangeAmount())
	assert.Equal(t, true, entries[0].TransactionMetadata["test"])
	assert.Nil(t, entries[0].MarketKey)

	limited, err := repo.ListByPrincipal(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUnitOfWork(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	received := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		received <- e
	})
	factory := NewUnitOfWorkFactory(testDB.DB, bus, nil)

	t.Run("rollback discards writes and events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		_, err := uow.AccountRepository().Create(ctx, "alice", 10)
		require.NoError(t, err)
		uow.EventBus().Publish(events.BalanceChangeEvent{Principal: "alice", NewBalance: 10})
		require.NoError(t, uow.Rollback())

		account, err := NewAccountRepository(testDB.DB).GetByPrincipal(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, account)
		select {
		case <-received:
			t.Fatal("event delivered after rollback")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("commit persists writes and flushes events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		_, err := uow.AccountRepository().Create(ctx, "bob", 10)
		require.NoError(t, err)
		uow.EventBus().Publish(events.BalanceChangeEvent{Principal: "bob", NewBalance: 10})
		require.NoError(t, uow.Commit())
		require.NoError(t, uow.Rollback())

		account, err := NewAccountRepository(testDB.DB).GetByPrincipal(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, account)

		select {
		case e := <-received:
			assert.Equal(t, models.Principal("bob"), e.(events.BalanceChangeEvent).Principal)
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered after commit")
		}
	})

	t.Run("getters panic before begin", func(t *testing.T) {
		uow := factory.Create()
		assert.Panics(t, func() { uow.MarketRepository() })
	})
}
