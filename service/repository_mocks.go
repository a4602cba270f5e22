package service

import (
	"context"
	"time"

	"commitbet/events"
	"commitbet/models"

	"github.com/stretchr/testify/mock"
)

// MockMarketRepository is a mock implementation of MarketRepository
type MockMarketRepository struct {
	mock.Mock
}

func (m *MockMarketRepository) Create(ctx context.Context, market *models.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) GetByKey(ctx context.Context, key models.MarketKey) (*models.Market, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *MockMarketRepository) GetByKeyForUpdate(ctx context.Context, key models.MarketKey) (*models.Market, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *MockMarketRepository) Update(ctx context.Context, market *models.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) List(ctx context.Context, status *models.MarketStatus, limit int) ([]*models.Market, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Market), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByKey(ctx context.Context, key models.BetKey) (*models.Bet, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetByKeyForUpdate(ctx context.Context, key models.BetKey) (*models.Bet, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) Update(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) ListByMarket(ctx context.Context, market models.MarketKey) ([]*models.Bet, error) {
	args := m.Called(ctx, market)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByPrincipal(ctx context.Context, principal models.Principal) (*models.Account, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByPrincipalForUpdate(ctx context.Context, principal models.Principal) (*models.Account, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, principal models.Principal, initialBalance uint64) (*models.Account, error) {
	args := m.Called(ctx, principal, initialBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) AddBalance(ctx context.Context, principal models.Principal, amount uint64) error {
	args := m.Called(ctx, principal, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) DeductBalance(ctx context.Context, principal models.Principal, amount uint64) error {
	args := m.Called(ctx, principal, amount)
	return args.Error(0)
}

// MockVaultRepository is a mock implementation of VaultRepository
type MockVaultRepository struct {
	mock.Mock
}

func (m *MockVaultRepository) Open(ctx context.Context, vault *models.Vault) error {
	args := m.Called(ctx, vault)
	return args.Error(0)
}

func (m *MockVaultRepository) GetByKeyForUpdate(ctx context.Context, key models.VaultKey) (*models.Vault, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1)
}

func (m *MockVaultRepository) Credit(ctx context.Context, key models.VaultKey, amount uint64) error {
	args := m.Called(ctx, key, amount)
	return args.Error(0)
}

func (m *MockVaultRepository) Debit(ctx context.Context, key models.VaultKey, amount uint64) error {
	args := m.Called(ctx, key, amount)
	return args.Error(0)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListByPrincipal(ctx context.Context, principal models.Principal, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, principal, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock
	marketRepo  MarketRepository
	betRepo     BetRepository
	accountRepo AccountRepository
	vaultRepo   VaultRepository
	ledgerRepo  LedgerRepository
	eventBus    EventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(markets MarketRepository, bets BetRepository, accounts AccountRepository, vaults VaultRepository, ledger LedgerRepository, bus EventPublisher) {
	m.marketRepo = markets
	m.betRepo = bets
	m.accountRepo = accounts
	m.vaultRepo = vaults
	m.ledgerRepo = ledger
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) MarketRepository() MarketRepository { return m.marketRepo }
func (m *MockUnitOfWork) BetRepository() BetRepository { return m.betRepo }
func (m *MockUnitOfWork) AccountRepository() AccountRepository { return m.accountRepo }
func (m *MockUnitOfWork) VaultRepository() VaultRepository { return m.vaultRepo }
func (m *MockUnitOfWork) LedgerRepository() LedgerRepository { return m.ledgerRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockMarketLocker is a mock implementation of MarketLocker
type MockMarketLocker struct {
	mock.Mock
}

func (m *MockMarketLocker) Lock(ctx context.Context, key models.MarketKey) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockOperationRecorder is a mock implementation of OperationRecorder
type MockOperationRecorder struct {
	mock.Mock
}

func (m *MockOperationRecorder) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	m.Called(ctx, operation, duration, err)
}

func (m *MockOperationRecorder) RecordStake(ctx context.Context, amount uint64) {
	m.Called(ctx, amount)
}

func (m *MockOperationRecorder) RecordPayout(ctx context.Context, amount uint64) {
	m.Called(ctx, amount)
}
