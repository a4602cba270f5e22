package repository

import (
	"context"
	"errors"
	"fmt"

	"commitbet/database"
	"commitbet/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q     queryable
	meter QueryMeter
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool, meter: noopMeter{}}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable, meter QueryMeter) *AccountRepository {
	return &AccountRepository{q: tx, meter: meterOrNoop(meter)}
}

// GetByPrincipal retrieves an account
func (r *AccountRepository) GetByPrincipal(ctx context.Context, principal models.Principal) (*models.Account, error) {
	defer r.meter.MeasureDatabaseQuery("account", "GetByPrincipal")()
	return r.get(ctx, `SELECT principal, balance, created_at, updated_at FROM accounts WHERE principal = $1`, principal)
}

// GetByPrincipalForUpdate retrieves an account with a row lock
func (r *AccountRepository) GetByPrincipalForUpdate(ctx context.Context, principal models.Principal) (*models.Account, error) {
	defer r.meter.MeasureDatabaseQuery("account", "GetByPrincipalForUpdate")()
	return r.get(ctx, `SELECT principal, balance, created_at, updated_at FROM accounts WHERE principal = $1 FOR UPDATE`, principal)
}

func (r *AccountRepository) get(ctx context.Context, query string, principal models.Principal) (*models.Account, error) {
	account, err := scanAccount(r.q.QueryRow(ctx, query, string(principal)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", principal, err)
	}
	return account, nil
}

// Create creates a new account with the initial balance
func (r *AccountRepository) Create(ctx context.Context, principal models.Principal, initialBalance uint64) (*models.Account, error) {
	defer r.meter.MeasureDatabaseQuery("account", "Create")()

	query := `
		INSERT INTO accounts (principal, balance)
		VALUES ($1, $2)
		RETURNING principal, balance, created_at, updated_at
	`

	account, err := scanAccount(r.q.QueryRow(ctx, query, string(principal), numericFromUint64(initialBalance)))
	if isUniqueViolation(err) {
		return nil, models.ErrDuplicateAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", principal, err)
	}

	return account, nil
}

// AddBalance adds to an account's balance atomically
func (r *AccountRepository) AddBalance(ctx context.Context, principal models.Principal, amount uint64) error {
	defer r.meter.MeasureDatabaseQuery("account", "AddBalance")()

	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE principal = $2
		  AND balance + $1 <= 18446744073709551615
	`

	result, err := r.q.Exec(ctx, query, numericFromUint64(amount), string(principal))
	if err != nil {
		return fmt.Errorf("failed to add balance for account %s: %w", principal, err)
	}
	if result.RowsAffected() == 0 {
		exists, err := r.GetByPrincipal(ctx, principal)
		if err != nil {
			return err
		}
		if exists == nil {
			return models.ErrAccountNotFound
		}
		return fmt.Errorf("account balance: %w", models.ErrOverflow)
	}

	return nil
}

// DeductBalance deducts from an account's balance atomically, failing if insufficient funds
func (r *AccountRepository) DeductBalance(ctx context.Context, principal models.Principal, amount uint64) error {
	defer r.meter.MeasureDatabaseQuery("account", "DeductBalance")()

	query := `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE principal = $2 AND balance >= $1
	`

	result, err := r.q.Exec(ctx, query, numericFromUint64(amount), string(principal))
	if err != nil {
		return fmt.Errorf("failed to deduct balance for account %s: %w", principal, err)
	}
	if result.RowsAffected() == 0 {
		exists, err := r.GetByPrincipal(ctx, principal)
		if err != nil {
			return err
		}
		if exists == nil {
			return models.ErrAccountNotFound
		}
		return models.ErrInsufficientFunds
	}

	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account   models.Account
		principal string
		balance   pgtype.Numeric
	)
	if err := row.Scan(&principal, &balance, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}
	account.Principal = models.Principal(principal)

	var err error
	if account.Balance, err = uint64FromNumeric(balance); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return &account, nil
}
