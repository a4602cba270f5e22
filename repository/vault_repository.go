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

// VaultRepository implements the VaultRepository interface
type VaultRepository struct {
	q     queryable
	meter QueryMeter
}

// NewVaultRepository creates a new vault repository
func NewVaultRepository(db *database.DB) *VaultRepository {
	return &VaultRepository{q: db.Pool, meter: noopMeter{}}
}

// newVaultRepositoryWithTx creates a new vault repository with a transaction
func newVaultRepositoryWithTx(tx queryable, meter QueryMeter) *VaultRepository {
	return &VaultRepository{q: tx, meter: meterOrNoop(meter)}
}

// Open creates an empty vault
func (r *VaultRepository) Open(ctx context.Context, vault *models.Vault) error {
	defer r.meter.MeasureDatabaseQuery("vault", "Open")()

	query := `
		INSERT INTO vaults (vault_key, market_key, balance)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, vault.Key[:], vault.MarketKey[:], numericFromUint64(vault.Balance)).
		Scan(&vault.CreatedAt, &vault.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to open vault %s: %w", vault.Key, err)
	}

	return nil
}

// GetByKeyForUpdate retrieves a vault with a row lock
func (r *VaultRepository) GetByKeyForUpdate(ctx context.Context, key models.VaultKey) (*models.Vault, error) {
	defer r.meter.MeasureDatabaseQuery("vault", "GetByKeyForUpdate")()

	query := `
		SELECT vault_key, market_key, balance, created_at, updated_at
		FROM vaults
		WHERE vault_key = $1
		FOR UPDATE
	`

	var (
		vault               models.Vault
		vaultKey, marketKey []byte
		balance             pgtype.Numeric
	)
	err := r.q.QueryRow(ctx, query, key[:]).Scan(&vaultKey, &marketKey, &balance, &vault.CreatedAt, &vault.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault %s: %w", key, err)
	}

	if err := copy32((*[32]byte)(&vault.Key), vaultKey); err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	if err := copy32((*[32]byte)(&vault.MarketKey), marketKey); err != nil {
		return nil, fmt.Errorf("market key: %w", err)
	}
	if vault.Balance, err = uint64FromNumeric(balance); err != nil {
		return nil, fmt.Errorf("vault balance: %w", err)
	}

	return &vault, nil
}

// Credit adds to the vault balance
func (r *VaultRepository) Credit(ctx context.Context, key models.VaultKey, amount uint64) error {
	defer r.meter.MeasureDatabaseQuery("vault", "Credit")()

	query := `
		UPDATE vaults
		SET balance = balance + $1, updated_at = NOW()
		WHERE vault_key = $2
		  AND balance + $1 <= 18446744073709551615
	`

	result, err := r.q.Exec(ctx, query, numericFromUint64(amount), key[:])
	if err != nil {
		return fmt.Errorf("failed to credit vault %s: %w", key, err)
	}
	if result.RowsAffected() == 0 {
		return r.explainMiss(ctx, key, fmt.Errorf("vault balance: %w", models.ErrOverflow))
	}

	return nil
}

// Debit removes from the vault balance, failing if it holds less than amount
func (r *VaultRepository) Debit(ctx context.Context, key models.VaultKey, amount uint64) error {
	defer r.meter.MeasureDatabaseQuery("vault", "Debit")()

	query := `
		UPDATE vaults
		SET balance = balance - $1, updated_at = NOW()
		WHERE vault_key = $2 AND balance >= $1
	`

	result, err := r.q.Exec(ctx, query, numericFromUint64(amount), key[:])
	if err != nil {
		return fmt.Errorf("failed to debit vault %s: %w", key, err)
	}
	if result.RowsAffected() == 0 {
		return r.explainMiss(ctx, key, models.ErrInsufficientPoolFunds)
	}

	return nil
}

// explainMiss distinguishes a missing vault from a failed balance guard
func (r *VaultRepository) explainMiss(ctx context.Context, key models.VaultKey, guardErr error) error {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vaults WHERE vault_key = $1)`, key[:]).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check vault %s: %w", key, err)
	}
	if !exists {
		return models.ErrVaultNotFound
	}
	return guardErr
}
