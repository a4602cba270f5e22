package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commitbet/database"
	"commitbet/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// MarketRepository implements the MarketRepository interface
type MarketRepository struct {
	q     queryable
	meter QueryMeter
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *database.DB) *MarketRepository {
	return &MarketRepository{q: db.Pool, meter: noopMeter{}}
}

// newMarketRepositoryWithTx creates a new market repository with a transaction
func newMarketRepositoryWithTx(tx queryable, meter QueryMeter) *MarketRepository {
	return &MarketRepository{q: tx, meter: meterOrNoop(meter)}
}

const marketColumns = `
	market_key, creator, oracle, market_id, question, deadline, reveal_deadline,
	status, outcome, total_pool, yes_pool, no_pool, yes_count, no_count,
	vault_key, created_at, resolved_at`

// Create inserts a new market
func (r *MarketRepository) Create(ctx context.Context, market *models.Market) error {
	defer r.meter.MeasureDatabaseQuery("market", "Create")()

	query := `
		INSERT INTO markets (` + marketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.q.Exec(ctx, query,
		market.Key[:],
		string(market.Creator),
		string(market.Oracle),
		numericFromUint64(market.MarketID),
		market.Question,
		market.Deadline,
		market.RevealDeadline,
		string(market.Status),
		outcomeParam(market.Outcome),
		numericFromUint64(market.TotalPool),
		numericFromUint64(market.YesPool),
		numericFromUint64(market.NoPool),
		int64(market.YesCount),
		int64(market.NoCount),
		market.VaultKey[:],
		market.CreatedAt,
		market.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return models.ErrDuplicateMarket
	}
	if err != nil {
		return fmt.Errorf("failed to create market %s: %w", market.Key, err)
	}

	return nil
}

// GetByKey retrieves a market by its derived key
func (r *MarketRepository) GetByKey(ctx context.Context, key models.MarketKey) (*models.Market, error) {
	defer r.meter.MeasureDatabaseQuery("market", "GetByKey")()
	return r.get(ctx, `SELECT `+marketColumns+` FROM markets WHERE market_key = $1`, key)
}

// GetByKeyForUpdate retrieves a market with a row lock
func (r *MarketRepository) GetByKeyForUpdate(ctx context.Context, key models.MarketKey) (*models.Market, error) {
	defer r.meter.MeasureDatabaseQuery("market", "GetByKeyForUpdate")()
	return r.get(ctx, `SELECT `+marketColumns+` FROM markets WHERE market_key = $1 FOR UPDATE`, key)
}

func (r *MarketRepository) get(ctx context.Context, query string, key models.MarketKey) (*models.Market, error) {
	market, err := scanMarket(r.q.QueryRow(ctx, query, key[:]))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", key, err)
	}
	return market, nil
}

// Update persists status, outcome, pools and counts
func (r *MarketRepository) Update(ctx context.Context, market *models.Market) error {
	defer r.meter.MeasureDatabaseQuery("market", "Update")()

	query := `
		UPDATE markets
		SET status = $2,
			outcome = $3,
			total_pool = $4,
			yes_pool = $5,
			no_pool = $6,
			yes_count = $7,
			no_count = $8,
			resolved_at = $9
		WHERE market_key = $1
	`

	result, err := r.q.Exec(ctx, query,
		market.Key[:],
		string(market.Status),
		outcomeParam(market.Outcome),
		numericFromUint64(market.TotalPool),
		numericFromUint64(market.YesPool),
		numericFromUint64(market.NoPool),
		int64(market.YesCount),
		int64(market.NoCount),
		market.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update market %s: %w", market.Key, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("market %s not found", market.Key)
	}

	return nil
}

// List returns markets newest first, optionally filtered by status
func (r *MarketRepository) List(ctx context.Context, status *models.MarketStatus, limit int) ([]*models.Market, error) {
	defer r.meter.MeasureDatabaseQuery("market", "List")()

	var statusParam *string
	if status != nil {
		s := string(*status)
		statusParam = &s
	}

	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE $1::text IS NULL OR status = $1::text
		ORDER BY created_at DESC, market_key
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, statusParam, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	var markets []*models.Market
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, market)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markets: %w", err)
	}

	return markets, nil
}

func scanMarket(row pgx.Row) (*models.Market, error) {
	var (
		market                   models.Market
		key, vaultKey            []byte
		creator, oracle, status  string
		marketID                 pgtype.Numeric
		total, yes, no           pgtype.Numeric
		outcome                  *int16
		yesCount, noCount        int64
		deadline, revealDeadline time.Time
	)

	err := row.Scan(
		&key,
		&creator,
		&oracle,
		&marketID,
		&market.Question,
		&deadline,
		&revealDeadline,
		&status,
		&outcome,
		&total,
		&yes,
		&no,
		&yesCount,
		&noCount,
		&vaultKey,
		&market.CreatedAt,
		&market.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := copy32((*[32]byte)(&market.Key), key); err != nil {
		return nil, fmt.Errorf("market key: %w", err)
	}
	if err := copy32((*[32]byte)(&market.VaultKey), vaultKey); err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	market.Creator = models.Principal(creator)
	market.Oracle = models.Principal(oracle)
	market.Deadline = deadline.UTC()
	market.RevealDeadline = revealDeadline.UTC()
	market.Status = models.MarketStatus(status)
	market.YesCount = uint32(yesCount)
	market.NoCount = uint32(noCount)

	if market.MarketID, err = uint64FromNumeric(marketID); err != nil {
		return nil, fmt.Errorf("market id: %w", err)
	}
	if market.TotalPool, err = uint64FromNumeric(total); err != nil {
		return nil, fmt.Errorf("total pool: %w", err)
	}
	if market.YesPool, err = uint64FromNumeric(yes); err != nil {
		return nil, fmt.Errorf("yes pool: %w", err)
	}
	if market.NoPool, err = uint64FromNumeric(no); err != nil {
		return nil, fmt.Errorf("no pool: %w", err)
	}
	if market.Outcome, err = outcomeFromColumn(outcome); err != nil {
		return nil, err
	}

	return &market, nil
}

func outcomeParam(o *models.Outcome) *int16 {
	if o == nil {
		return nil
	}
	v := int16(*o)
	return &v
}

func outcomeFromColumn(v *int16) (*models.Outcome, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 || *v > 255 {
		return nil, models.ErrInvalidOutcome
	}
	o, err := models.ParseOutcome(uint8(*v))
	if err != nil {
		return nil, err
	}
	return &o, nil
}
