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

// BetRepository implements the BetRepository interface
type BetRepository struct {
	q     queryable
	meter QueryMeter
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool, meter: noopMeter{}}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable, meter QueryMeter) *BetRepository {
	return &BetRepository{q: tx, meter: meterOrNoop(meter)}
}

const betColumns = `
	bet_key, market_key, participant, commitment_hash, amount,
	revealed_outcome, revealed_salt, is_revealed, is_claimed, payout,
	committed_at, revealed_at, claimed_at`

// Create inserts a new bet
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	defer r.meter.MeasureDatabaseQuery("bet", "Create")()

	query := `
		INSERT INTO bets (` + betColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.Exec(ctx, query, betArgs(bet)...)
	if isUniqueViolation(err) {
		return models.ErrDuplicateCommitment
	}
	if err != nil {
		return fmt.Errorf("failed to create bet %s: %w", bet.Key, err)
	}

	return nil
}

// GetByKey retrieves a bet by its derived key
func (r *BetRepository) GetByKey(ctx context.Context, key models.BetKey) (*models.Bet, error) {
	defer r.meter.MeasureDatabaseQuery("bet", "GetByKey")()
	return r.get(ctx, `SELECT `+betColumns+` FROM bets WHERE bet_key = $1`, key)
}

// GetByKeyForUpdate retrieves a bet with a row lock
func (r *BetRepository) GetByKeyForUpdate(ctx context.Context, key models.BetKey) (*models.Bet, error) {
	defer r.meter.MeasureDatabaseQuery("bet", "GetByKeyForUpdate")()
	return r.get(ctx, `SELECT `+betColumns+` FROM bets WHERE bet_key = $1 FOR UPDATE`, key)
}

func (r *BetRepository) get(ctx context.Context, query string, key models.BetKey) (*models.Bet, error) {
	bet, err := scanBet(r.q.QueryRow(ctx, query, key[:]))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %s: %w", key, err)
	}
	return bet, nil
}

// Update persists reveal and claim state
func (r *BetRepository) Update(ctx context.Context, bet *models.Bet) error {
	defer r.meter.MeasureDatabaseQuery("bet", "Update")()

	query := `
		UPDATE bets
		SET revealed_outcome = $2,
			revealed_salt = $3,
			is_revealed = $4,
			is_claimed = $5,
			payout = $6,
			revealed_at = $7,
			claimed_at = $8
		WHERE bet_key = $1
	`

	var salt []byte
	if bet.RevealedSalt != nil {
		salt = bet.RevealedSalt[:]
	}

	result, err := r.q.Exec(ctx, query,
		bet.Key[:],
		outcomeParam(bet.RevealedOutcome),
		salt,
		bet.IsRevealed,
		bet.IsClaimed,
		payoutParam(bet.Payout),
		bet.RevealedAt,
		bet.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bet %s: %w", bet.Key, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bet %s not found", bet.Key)
	}

	return nil
}

// ListByMarket returns all bets of a market in commit order
func (r *BetRepository) ListByMarket(ctx context.Context, market models.MarketKey) ([]*models.Bet, error) {
	defer r.meter.MeasureDatabaseQuery("bet", "ListByMarket")()

	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE market_key = $1
		ORDER BY seq
	`

	rows, err := r.q.Query(ctx, query, market[:])
	if err != nil {
		return nil, fmt.Errorf("failed to list bets for market %s: %w", market, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}

	return bets, nil
}

func betArgs(bet *models.Bet) []any {
	var salt []byte
	if bet.RevealedSalt != nil {
		salt = bet.RevealedSalt[:]
	}
	return []any{
		bet.Key[:],
		bet.MarketKey[:],
		string(bet.Participant),
		bet.CommitmentHash[:],
		numericFromUint64(bet.Amount),
		outcomeParam(bet.RevealedOutcome),
		salt,
		bet.IsRevealed,
		bet.IsClaimed,
		payoutParam(bet.Payout),
		bet.CommittedAt,
		bet.RevealedAt,
		bet.ClaimedAt,
	}
}

func payoutParam(p *uint64) pgtype.Numeric {
	if p == nil {
		return pgtype.Numeric{}
	}
	return numericFromUint64(*p)
}

func scanBet(row pgx.Row) (*models.Bet, error) {
	var (
		bet                  models.Bet
		key, marketKey, hash []byte
		salt                 []byte
		participant          string
		amount, payout       pgtype.Numeric
		revealedOutcome      *int16
	)

	err := row.Scan(
		&key,
		&marketKey,
		&participant,
		&hash,
		&amount,
		&revealedOutcome,
		&salt,
		&bet.IsRevealed,
		&bet.IsClaimed,
		&payout,
		&bet.CommittedAt,
		&bet.RevealedAt,
		&bet.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := copy32((*[32]byte)(&bet.Key), key); err != nil {
		return nil, fmt.Errorf("bet key: %w", err)
	}
	if err := copy32((*[32]byte)(&bet.MarketKey), marketKey); err != nil {
		return nil, fmt.Errorf("market key: %w", err)
	}
	if err := copy32((*[32]byte)(&bet.CommitmentHash), hash); err != nil {
		return nil, fmt.Errorf("commitment hash: %w", err)
	}
	if salt != nil {
		var s models.Salt
		if err := copy32((*[32]byte)(&s), salt); err != nil {
			return nil, fmt.Errorf("revealed salt: %w", err)
		}
		bet.RevealedSalt = &s
	}
	bet.Participant = models.Principal(participant)

	if bet.Amount, err = uint64FromNumeric(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if bet.Payout, err = nullableUint64FromNumeric(payout); err != nil {
		return nil, fmt.Errorf("payout: %w", err)
	}
	if bet.RevealedOutcome, err = outcomeFromColumn(revealedOutcome); err != nil {
		return nil, err
	}

	return &bet, nil
}
