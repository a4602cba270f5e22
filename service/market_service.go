package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"commitbet/commitment"
	"commitbet/events"
	"commitbet/models"

	log "github.com/sirupsen/logrus"
)

// Default and maximum page sizes for market listings
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type marketService struct {
	uowFactory UnitOfWorkFactory
	clock      Clock
	locker     MarketLocker
	metrics    OperationRecorder
}

// NewMarketService creates a new market service. A nil locker disables
// cross-instance locking and a nil recorder disables measurements.
func NewMarketService(uowFactory UnitOfWorkFactory, clock Clock, locker MarketLocker, metrics OperationRecorder) MarketService {
	if clock == nil {
		clock = SystemClock{}
	}
	if locker == nil {
		locker = NoopLocker{}
	}
	return &marketService{
		uowFactory: uowFactory,
		clock:      clock,
		locker:     locker,
		metrics:    metrics,
	}
}

func (s *marketService) track(ctx context.Context, operation string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOperation(ctx, operation, time.Since(start), *err)
}

// CreateMarket opens a new market and its escrow vault
func (s *marketService) CreateMarket(ctx context.Context, params CreateMarketParams) (market *models.Market, err error) {
	defer s.track(ctx, "create_market", time.Now(), &err)

	if err := params.Creator.Validate(); err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}
	if err := params.Oracle.Validate(); err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	now := s.clock.Now()

	if len(params.Question) > models.MaxQuestionLength {
		return nil, fmt.Errorf("question is %d bytes, max %d: %w", len(params.Question), models.MaxQuestionLength, models.ErrQuestionTooLong)
	}
	deadline := params.Deadline.Unix()
	if deadline <= now.Unix() {
		return nil, models.ErrDeadlineInPast
	}
	maxDeadline := models.MaxDeadline.Unix()
	if deadline > maxDeadline {
		return nil, fmt.Errorf("deadline: %w", models.ErrDeadlineTooFar)
	}
	revealPeriod := params.RevealPeriodSeconds
	if revealPeriod <= 0 {
		revealPeriod = int64(models.DefaultRevealPeriod / time.Second)
	}
	if revealPeriod > math.MaxInt64-deadline {
		return nil, fmt.Errorf("reveal deadline: %w", models.ErrOverflow)
	}
	if deadline+revealPeriod > maxDeadline {
		return nil, fmt.Errorf("reveal deadline: %w", models.ErrDeadlineTooFar)
	}

	key := models.DeriveMarketKey(params.Creator, params.MarketID)

	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.MarketRepository().GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing market: %w", err)
	}
	if existing != nil {
		return nil, models.ErrDuplicateMarket
	}

	market = &models.Market{
		Key:            key,
		Creator:        params.Creator,
		Oracle:         params.Oracle,
		MarketID:       params.MarketID,
		Question:       params.Question,
		Deadline:       time.Unix(deadline, 0).UTC(),
		RevealDeadline: time.Unix(deadline+revealPeriod, 0).UTC(),
		Status:         models.MarketStatusOpen,
		VaultKey:       models.DeriveVaultKey(key),
		CreatedAt:      now,
	}

	if err := uow.MarketRepository().Create(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to create market: %w", err)
	}

	if err := uow.VaultRepository().Open(ctx, &models.Vault{
		Key:       market.VaultKey,
		MarketKey: key,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	uow.EventBus().Publish(events.MarketCreatedEvent{
		MarketKey:      key,
		Creator:        market.Creator,
		Oracle:         market.Oracle,
		MarketID:       market.MarketID,
		Question:       market.Question,
		Deadline:       market.Deadline,
		RevealDeadline: market.RevealDeadline,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"market":         key.String(),
		"creator":        market.Creator,
		"oracle":         market.Oracle,
		"marketID":       market.MarketID,
		"deadline":       market.Deadline,
		"revealDeadline": market.RevealDeadline,
	}).Info("Market created")

	return market, nil
}

// CommitBet escrows a hidden stake for a participant
func (s *marketService) CommitBet(ctx context.Context, marketKey models.MarketKey, participant models.Principal, commitmentHash models.Hash, amount uint64) (bet *models.Bet, err error) {
	defer s.track(ctx, "commit_bet", time.Now(), &err)

	if err := participant.Validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, marketKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.clock.Now()

	market, err := uow.MarketRepository().GetByKeyForUpdate(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, models.ErrMarketNotFound
	}

	if market.Status != models.MarketStatusOpen {
		return nil, models.ErrMarketExpired
	}
	if market.DeadlinePassed(now) {
		return nil, models.ErrMarketExpired
	}
	if amount == 0 {
		return nil, models.ErrZeroBetAmount
	}

	betKey := models.DeriveBetKey(marketKey, participant)
	existing, err := uow.BetRepository().GetByKey(ctx, betKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing bet: %w", err)
	}
	if existing != nil {
		return nil, models.ErrDuplicateCommitment
	}

	if err := market.AddCommitment(amount); err != nil {
		return nil, err
	}

	if err := depositToVault(ctx, uow, market, participant, amount); err != nil {
		return nil, err
	}

	bet = &models.Bet{
		Key:            betKey,
		MarketKey:      marketKey,
		Participant:    participant,
		CommitmentHash: commitmentHash,
		Amount:         amount,
		CommittedAt:    now,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}
	if err := uow.MarketRepository().Update(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to update market: %w", err)
	}

	uow.EventBus().Publish(events.BetCommittedEvent{
		MarketKey:   marketKey,
		BetKey:      betKey,
		Participant: participant,
		Amount:      amount,
		TotalPool:   market.TotalPool,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordStake(ctx, amount)
	}

	log.WithFields(log.Fields{
		"market":      marketKey.String(),
		"participant": participant,
		"amount":      amount,
		"totalPool":   market.TotalPool,
	}).Info("Bet committed")

	return bet, nil
}

// RevealBet opens a participant's commitment after the deadline
func (s *marketService) RevealBet(ctx context.Context, marketKey models.MarketKey, participant models.Principal, rawOutcome uint8, salt models.Salt) (bet *models.Bet, err error) {
	defer s.track(ctx, "reveal_bet", time.Now(), &err)

	unlock, err := s.locker.Lock(ctx, marketKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.clock.Now()

	market, err := uow.MarketRepository().GetByKeyForUpdate(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, models.ErrMarketNotFound
	}
	if market.Status != models.MarketStatusOpen && market.Status != models.MarketStatusRevealing {
		return nil, models.ErrMarketAlreadyResolved
	}

	bet, err = uow.BetRepository().GetByKeyForUpdate(ctx, models.DeriveBetKey(marketKey, participant))
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, models.ErrBetNotFound
	}
	if bet.Participant != participant {
		return nil, models.ErrInvalidSigner
	}
	if bet.MarketKey != marketKey {
		return nil, models.ErrInvalidMarketID
	}
	if bet.IsRevealed {
		return nil, models.ErrAlreadyRevealed
	}
	if !market.DeadlinePassed(now) {
		return nil, models.ErrMarketNotExpired
	}
	if market.RevealDeadlinePassed(now) {
		return nil, models.ErrRevealPeriodEnded
	}

	outcome, err := models.ParseOutcome(rawOutcome)
	if err != nil {
		return nil, err
	}
	if !commitment.Verify(bet.CommitmentHash, bet.Amount, outcome, salt) {
		return nil, models.ErrCommitmentMismatch
	}

	oldStatus := market.Status
	if market.Status == models.MarketStatusOpen {
		market.Status = models.MarketStatusRevealing
	}
	if err := market.ApplyReveal(outcome, bet.Amount); err != nil {
		return nil, err
	}

	bet.IsRevealed = true
	bet.RevealedOutcome = &outcome
	bet.RevealedSalt = &salt
	bet.RevealedAt = &now

	if err := uow.BetRepository().Update(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to update bet: %w", err)
	}
	if err := uow.MarketRepository().Update(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to update market: %w", err)
	}

	if oldStatus != market.Status {
		uow.EventBus().Publish(events.MarketStatusChangedEvent{
			MarketKey: marketKey,
			OldStatus: oldStatus,
			NewStatus: market.Status,
		})
	}
	uow.EventBus().Publish(events.BetRevealedEvent{
		MarketKey:   marketKey,
		BetKey:      bet.Key,
		Participant: participant,
		Outcome:     outcome,
		Amount:      bet.Amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"market":      marketKey.String(),
		"participant": participant,
		"outcome":     outcome.String(),
		"amount":      bet.Amount,
		"yesPool":     market.YesPool,
		"noPool":      market.NoPool,
	}).Info("Bet revealed")

	return bet, nil
}

// ResolveMarket records the final outcome
func (s *marketService) ResolveMarket(ctx context.Context, marketKey models.MarketKey, resolver models.Principal, rawOutcome uint8) (market *models.Market, err error) {
	defer s.track(ctx, "resolve_market", time.Now(), &err)

	unlock, err := s.locker.Lock(ctx, marketKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.clock.Now()

	market, err = uow.MarketRepository().GetByKeyForUpdate(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, models.ErrMarketNotFound
	}
	if market.IsFinal() {
		return nil, models.ErrMarketAlreadyResolved
	}
	if !market.DeadlinePassed(now) {
		return nil, models.ErrMarketNotExpired
	}
	if resolver != market.Oracle && resolver != market.Creator {
		return nil, models.ErrUnauthorizedResolver
	}
	outcome, err := models.ParseOutcome(rawOutcome)
	if err != nil {
		return nil, err
	}

	oldStatus := market.Status
	market.Outcome = &outcome
	market.Status = models.MarketStatusResolved
	market.ResolvedAt = &now

	if err := uow.MarketRepository().Update(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to update market: %w", err)
	}

	uow.EventBus().Publish(events.MarketStatusChangedEvent{
		MarketKey: marketKey,
		OldStatus: oldStatus,
		NewStatus: market.Status,
	})
	uow.EventBus().Publish(events.MarketResolvedEvent{
		MarketKey:      marketKey,
		Resolver:       resolver,
		Outcome:        outcome,
		YesPool:        market.YesPool,
		NoPool:         market.NoPool,
		UnrevealedPool: market.UnrevealedPool(),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"market":     marketKey.String(),
		"resolver":   resolver,
		"outcome":    outcome.String(),
		"yesPool":    market.YesPool,
		"noPool":     market.NoPool,
		"unrevealed": market.UnrevealedPool(),
	}).Info("Market resolved")

	return market, nil
}

// ClaimWinnings pays a winning participant out of the market vault
func (s *marketService) ClaimWinnings(ctx context.Context, marketKey models.MarketKey, participant models.Principal) (bet *models.Bet, err error) {
	defer s.track(ctx, "claim_winnings", time.Now(), &err)

	unlock, err := s.locker.Lock(ctx, marketKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.clock.Now()

	market, err := uow.MarketRepository().GetByKeyForUpdate(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, models.ErrMarketNotFound
	}
	if market.Status != models.MarketStatusResolved || market.Outcome == nil {
		return nil, models.ErrMarketNotResolved
	}

	bet, err = uow.BetRepository().GetByKeyForUpdate(ctx, models.DeriveBetKey(marketKey, participant))
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, models.ErrBetNotFound
	}
	if bet.Participant != participant {
		return nil, models.ErrInvalidSigner
	}
	if bet.MarketKey != marketKey {
		return nil, models.ErrInvalidMarketID
	}
	if !bet.IsRevealed {
		return nil, models.ErrNotRevealed
	}
	if bet.IsClaimed {
		return nil, models.ErrAlreadyClaimed
	}
	if !bet.Won(*market.Outcome) {
		return nil, models.ErrDidNotWin
	}

	payout, err := market.Payout(bet.Amount)
	if err != nil {
		return nil, err
	}

	if err := withdrawFromVault(ctx, uow, market, participant, payout, models.DeriveVaultAuthority(marketKey)); err != nil {
		return nil, err
	}

	bet.IsClaimed = true
	bet.Payout = &payout
	bet.ClaimedAt = &now
	if err := uow.BetRepository().Update(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to update bet: %w", err)
	}

	uow.EventBus().Publish(events.WinningsClaimedEvent{
		MarketKey:   marketKey,
		BetKey:      bet.Key,
		Participant: participant,
		Payout:      payout,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPayout(ctx, payout)
	}

	log.WithFields(log.Fields{
		"market":      marketKey.String(),
		"participant": participant,
		"stake":       bet.Amount,
		"payout":      payout,
	}).Info("Winnings claimed")

	return bet, nil
}

// GetMarket retrieves a market
func (s *marketService) GetMarket(ctx context.Context, marketKey models.MarketKey) (*models.Market, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	market, err := uow.MarketRepository().GetByKey(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, models.ErrMarketNotFound
	}
	return market, nil
}

// ListMarkets lists markets, optionally filtered by status
func (s *marketService) ListMarkets(ctx context.Context, status *models.MarketStatus, limit int) ([]*models.Market, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	markets, err := uow.MarketRepository().List(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	return markets, nil
}

// GetBet retrieves a participant's bet in a market
func (s *marketService) GetBet(ctx context.Context, marketKey models.MarketKey, participant models.Principal) (*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByKey(ctx, models.DeriveBetKey(marketKey, participant))
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, models.ErrBetNotFound
	}
	return bet, nil
}

// ListBets lists the bets of a market
func (s *marketService) ListBets(ctx context.Context, marketKey models.MarketKey) ([]*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	market, err := uow.MarketRepository().GetByKey(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, models.ErrMarketNotFound
	}

	bets, err := uow.BetRepository().ListByMarket(ctx, marketKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return bets, nil
}
