package server

import (
	"strconv"
	"time"

	"commitbet/models"
)

// Amounts travel as decimal strings so clients never lose uint64 precision

type createMarketRequest struct {
	MarketID            string           `json:"market_id"`
	Oracle              models.Principal `json:"oracle"`
	Question            string           `json:"question"`
	Deadline            time.Time        `json:"deadline"`
	RevealPeriodSeconds int64            `json:"reveal_period_seconds"`
}

type commitBetRequest struct {
	CommitmentHash models.Hash `json:"commitment_hash"`
	Amount         string      `json:"amount"`
}

type revealBetRequest struct {
	Outcome uint8       `json:"outcome"`
	Salt    models.Salt `json:"salt"`
}

type resolveMarketRequest struct {
	Outcome uint8 `json:"outcome"`
}

type marketResponse struct {
	MarketKey      models.MarketKey    `json:"market_key"`
	Creator        models.Principal    `json:"creator"`
	Oracle         models.Principal    `json:"oracle"`
	MarketID       string              `json:"market_id"`
	Question       string              `json:"question"`
	Deadline       time.Time           `json:"deadline"`
	RevealDeadline time.Time           `json:"reveal_deadline"`
	Status         models.MarketStatus `json:"status"`
	Outcome        *uint8              `json:"outcome"`
	TotalPool      string              `json:"total_pool"`
	YesPool        string              `json:"yes_pool"`
	NoPool         string              `json:"no_pool"`
	UnrevealedPool string              `json:"unrevealed_pool"`
	YesCount       uint32              `json:"yes_count"`
	NoCount        uint32              `json:"no_count"`
	VaultKey       models.VaultKey     `json:"vault_key"`
	CreatedAt      time.Time           `json:"created_at"`
	ResolvedAt     *time.Time          `json:"resolved_at,omitempty"`
}

type betResponse struct {
	BetKey          models.BetKey    `json:"bet_key"`
	MarketKey       models.MarketKey `json:"market_key"`
	Participant     models.Principal `json:"participant"`
	CommitmentHash  models.Hash      `json:"commitment_hash"`
	Amount          string           `json:"amount"`
	IsRevealed      bool             `json:"is_revealed"`
	RevealedOutcome *uint8           `json:"revealed_outcome"`
	IsClaimed       bool             `json:"is_claimed"`
	Payout          *string          `json:"payout,omitempty"`
	CommittedAt     time.Time        `json:"committed_at"`
	RevealedAt      *time.Time       `json:"revealed_at,omitempty"`
	ClaimedAt       *time.Time       `json:"claimed_at,omitempty"`
}

type accountResponse struct {
	Principal models.Principal `json:"principal"`
	Balance   string           `json:"balance"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type ledgerEntryResponse struct {
	ID              int64                  `json:"id"`
	BalanceBefore   string                 `json:"balance_before"`
	BalanceAfter    string                 `json:"balance_after"`
	ChangeAmount    string                 `json:"change_amount"`
	TransactionType models.TransactionType `json:"transaction_type"`
	MarketKey       *models.MarketKey      `json:"market_key,omitempty"`
	Metadata        map[string]any         `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func outcomeByte(o *models.Outcome) *uint8 {
	if o == nil {
		return nil
	}
	b := o.Byte()
	return &b
}

func toMarketResponse(m *models.Market) marketResponse {
	return marketResponse{
		MarketKey:      m.Key,
		Creator:        m.Creator,
		Oracle:         m.Oracle,
		MarketID:       formatAmount(m.MarketID),
		Question:       m.Question,
		Deadline:       m.Deadline.UTC(),
		RevealDeadline: m.RevealDeadline.UTC(),
		Status:         m.Status,
		Outcome:        outcomeByte(m.Outcome),
		TotalPool:      formatAmount(m.TotalPool),
		YesPool:        formatAmount(m.YesPool),
		NoPool:         formatAmount(m.NoPool),
		UnrevealedPool: formatAmount(m.UnrevealedPool()),
		YesCount:       m.YesCount,
		NoCount:        m.NoCount,
		VaultKey:       m.VaultKey,
		CreatedAt:      m.CreatedAt.UTC(),
		ResolvedAt:     m.ResolvedAt,
	}
}

func toBetResponse(b *models.Bet) betResponse {
	resp := betResponse{
		BetKey:          b.Key,
		MarketKey:       b.MarketKey,
		Participant:     b.Participant,
		CommitmentHash:  b.CommitmentHash,
		Amount:          formatAmount(b.Amount),
		IsRevealed:      b.IsRevealed,
		RevealedOutcome: outcomeByte(b.RevealedOutcome),
		IsClaimed:       b.IsClaimed,
		CommittedAt:     b.CommittedAt.UTC(),
		RevealedAt:      b.RevealedAt,
		ClaimedAt:       b.ClaimedAt,
	}
	if b.Payout != nil {
		payout := formatAmount(*b.Payout)
		resp.Payout = &payout
	}
	return resp
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		Principal: a.Principal,
		Balance:   formatAmount(a.Balance),
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func toLedgerEntryResponse(e *models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:              e.ID,
		BalanceBefore:   formatAmount(e.BalanceBefore),
		BalanceAfter:    formatAmount(e.BalanceAfter),
		ChangeAmount:    strconv.FormatInt(e.ChangeAmount(), 10),
		TransactionType: e.TransactionType,
		MarketKey:       e.MarketKey,
		Metadata:        e.TransactionMetadata,
		CreatedAt:       e.CreatedAt.UTC(),
	}
}
