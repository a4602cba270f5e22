package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"commitbet/database"
	"commitbet/models"

	"github.com/jackc/pgx/v5/pgtype"
)

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q     queryable
	meter QueryMeter
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool, meter: noopMeter{}}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable, meter QueryMeter) *LedgerRepository {
	return &LedgerRepository{q: tx, meter: meterOrNoop(meter)}
}

// Record creates a new ledger entry
func (r *LedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	defer r.meter.MeasureDatabaseQuery("ledger", "Record")()

	var metadataJSON []byte
	if entry.TransactionMetadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.TransactionMetadata)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
	}

	var marketKey []byte
	if entry.MarketKey != nil {
		marketKey = entry.MarketKey[:]
	}

	query := `
		INSERT INTO ledger_entries
		(principal, balance_before, balance_after, transaction_type, transaction_metadata, market_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		string(entry.Principal),
		numericFromUint64(entry.BalanceBefore),
		numericFromUint64(entry.BalanceAfter),
		string(entry.TransactionType),
		metadataJSON,
		marketKey,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry for %s: %w", entry.Principal, err)
	}

	return nil
}

// ListByPrincipal returns the newest entries for a principal
func (r *LedgerRepository) ListByPrincipal(ctx context.Context, principal models.Principal, limit int) ([]*models.LedgerEntry, error) {
	defer r.meter.MeasureDatabaseQuery("ledger", "ListByPrincipal")()

	query := `
		SELECT id, principal, balance_before, balance_after, transaction_type,
		       transaction_metadata, market_key, created_at
		FROM ledger_entries
		WHERE principal = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, string(principal), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for %s: %w", principal, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var (
			entry         models.LedgerEntry
			owner, txType string
			before, after pgtype.Numeric
			metadataJSON  []byte
			marketKey     []byte
		)

		err := rows.Scan(
			&entry.ID,
			&owner,
			&before,
			&after,
			&txType,
			&metadataJSON,
			&marketKey,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.Principal = models.Principal(owner)
		entry.TransactionType = models.TransactionType(txType)
		if entry.BalanceBefore, err = uint64FromNumeric(before); err != nil {
			return nil, fmt.Errorf("balance before: %w", err)
		}
		if entry.BalanceAfter, err = uint64FromNumeric(after); err != nil {
			return nil, fmt.Errorf("balance after: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}
		if marketKey != nil {
			var key models.MarketKey
			if err := copy32((*[32]byte)(&key), marketKey); err != nil {
				return nil, fmt.Errorf("market key: %w", err)
			}
			entry.MarketKey = &key
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}
