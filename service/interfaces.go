package service

import (
	"context"
	"time"

	"commitbet/events"
	"commitbet/models"
)

// MarketRepository defines the interface for market data access
type MarketRepository interface {
	// Create inserts a new market, failing with ErrDuplicateMarket if the key exists
	Create(ctx context.Context, market *models.Market) error

	// GetByKey retrieves a market by its derived key
	GetByKey(ctx context.Context, key models.MarketKey) (*models.Market, error)

	// GetByKeyForUpdate retrieves a market and locks it until the transaction ends
	GetByKeyForUpdate(ctx context.Context, key models.MarketKey) (*models.Market, error)

	// Update persists status, outcome, pools and counts
	Update(ctx context.Context, market *models.Market) error

	// List returns markets newest first, optionally filtered by status
	List(ctx context.Context, status *models.MarketStatus, limit int) ([]*models.Market, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create inserts a new bet, failing with ErrDuplicateCommitment if the key exists
	Create(ctx context.Context, bet *models.Bet) error

	// GetByKey retrieves a bet by its derived key
	GetByKey(ctx context.Context, key models.BetKey) (*models.Bet, error)

	// GetByKeyForUpdate retrieves a bet and locks it until the transaction ends
	GetByKeyForUpdate(ctx context.Context, key models.BetKey) (*models.Bet, error)

	// Update persists reveal and claim state
	Update(ctx context.Context, bet *models.Bet) error

	// ListByMarket returns all bets of a market in commit order
	ListByMarket(ctx context.Context, market models.MarketKey) ([]*models.Bet, error)
}

// AccountRepository defines the interface for principal account data access
type AccountRepository interface {
	// GetByPrincipal retrieves an account
	GetByPrincipal(ctx context.Context, principal models.Principal) (*models.Account, error)

	// GetByPrincipalForUpdate retrieves an account and locks it until the transaction ends
	GetByPrincipalForUpdate(ctx context.Context, principal models.Principal) (*models.Account, error)

	// Create creates a new account with the initial balance
	Create(ctx context.Context, principal models.Principal, initialBalance uint64) (*models.Account, error)

	// AddBalance adds to an account's balance atomically
	AddBalance(ctx context.Context, principal models.Principal, amount uint64) error

	// DeductBalance deducts from an account's balance atomically, failing with ErrInsufficientFunds
	DeductBalance(ctx context.Context, principal models.Principal, amount uint64) error
}

// VaultRepository defines the interface for escrow vault data access
type VaultRepository interface {
	// Open creates an empty vault
	Open(ctx context.Context, vault *models.Vault) error

	// GetByKeyForUpdate retrieves a vault and locks it until the transaction ends
	GetByKeyForUpdate(ctx context.Context, key models.VaultKey) (*models.Vault, error)

	// Credit adds to the vault balance
	Credit(ctx context.Context, key models.VaultKey, amount uint64) error

	// Debit removes from the vault balance, failing with ErrInsufficientPoolFunds
	Debit(ctx context.Context, key models.VaultKey, amount uint64) error
}

// LedgerRepository defines the interface for balance change tracking
type LedgerRepository interface {
	// Record creates a new ledger entry
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// ListByPrincipal returns the newest entries for a principal
	ListByPrincipal(ctx context.Context, principal models.Principal, limit int) ([]*models.LedgerEntry, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	MarketRepository() MarketRepository
	BetRepository() BetRepository
	AccountRepository() AccountRepository
	VaultRepository() VaultRepository
	LedgerRepository() LedgerRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Clock supplies the current time. Each operation reads it once.
type Clock interface {
	Now() time.Time
}

// MarketLocker serializes mutating operations on a market across instances
type MarketLocker interface {
	// Lock acquires the market's lock, failing with ErrMarketBusy if it is held
	Lock(ctx context.Context, key models.MarketKey) (unlock func(), err error)
}

// OperationRecorder receives per-operation measurements
type OperationRecorder interface {
	RecordOperation(ctx context.Context, operation string, duration time.Duration, err error)
	RecordStake(ctx context.Context, amount uint64)
	RecordPayout(ctx context.Context, amount uint64)
}

// CreateMarketParams carries the inputs of CreateMarket
type CreateMarketParams struct {
	Creator  models.Principal
	Oracle   models.Principal
	MarketID uint64
	Question string
	Deadline time.Time
	// RevealPeriodSeconds falls back to the default when zero or negative
	RevealPeriodSeconds int64
}

// MarketService defines the market lifecycle operations
type MarketService interface {
	// CreateMarket opens a new market and its escrow vault
	CreateMarket(ctx context.Context, params CreateMarketParams) (*models.Market, error)

	// CommitBet escrows a hidden stake for a participant
	CommitBet(ctx context.Context, marketKey models.MarketKey, participant models.Principal, commitmentHash models.Hash, amount uint64) (*models.Bet, error)

	// RevealBet opens a participant's commitment after the deadline
	RevealBet(ctx context.Context, marketKey models.MarketKey, participant models.Principal, outcome uint8, salt models.Salt) (*models.Bet, error)

	// ResolveMarket records the final outcome
	ResolveMarket(ctx context.Context, marketKey models.MarketKey, resolver models.Principal, outcome uint8) (*models.Market, error)

	// ClaimWinnings pays a winning participant out of the market vault
	ClaimWinnings(ctx context.Context, marketKey models.MarketKey, participant models.Principal) (*models.Bet, error)

	// GetMarket retrieves a market
	GetMarket(ctx context.Context, marketKey models.MarketKey) (*models.Market, error)

	// ListMarkets lists markets, optionally filtered by status
	ListMarkets(ctx context.Context, status *models.MarketStatus, limit int) ([]*models.Market, error)

	// GetBet retrieves a participant's bet in a market
	GetBet(ctx context.Context, marketKey models.MarketKey, participant models.Principal) (*models.Bet, error)

	// ListBets lists the bets of a market
	ListBets(ctx context.Context, marketKey models.MarketKey) ([]*models.Bet, error)
}

// AccountService defines the interface for account operations
type AccountService interface {
	// GetOrCreateAccount retrieves an existing account or creates one with the starting balance
	GetOrCreateAccount(ctx context.Context, principal models.Principal) (*models.Account, error)

	// GetAccount retrieves an existing account
	GetAccount(ctx context.Context, principal models.Principal) (*models.Account, error)

	// ListLedger returns the newest ledger entries of an account
	ListLedger(ctx context.Context, principal models.Principal, limit int) ([]*models.LedgerEntry, error)
}
