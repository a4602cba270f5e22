package memory

import (
	"context"
	"fmt"
	"time"

	"commitbet/models"
)

// Reads look at the transaction overlay first, then at the committed arenas.
// Every record handed out is a copy.

type marketRepository struct {
	store *Store
	cs    *changeSet
}

func (r *marketRepository) lookup(key models.MarketKey) *models.Market {
	if m, ok := r.cs.markets[key]; ok {
		return m
	}
	if i, ok := r.store.marketIdx[key]; ok {
		return &r.store.markets[i]
	}
	return nil
}

func (r *marketRepository) stage(m *models.Market) {
	if _, ok := r.cs.markets[m.Key]; !ok {
		r.cs.marketSeq = append(r.cs.marketSeq, m.Key)
	}
	r.cs.markets[m.Key] = cloneMarket(m)
}

func (r *marketRepository) Create(ctx context.Context, market *models.Market) error {
	if r.lookup(market.Key) != nil {
		return models.ErrDuplicateMarket
	}
	r.stage(market)
	return nil
}

func (r *marketRepository) GetByKey(ctx context.Context, key models.MarketKey) (*models.Market, error) {
	m := r.lookup(key)
	if m == nil {
		return nil, nil
	}
	return cloneMarket(m), nil
}

func (r *marketRepository) GetByKeyForUpdate(ctx context.Context, key models.MarketKey) (*models.Market, error) {
	return r.GetByKey(ctx, key)
}

func (r *marketRepository) Update(ctx context.Context, market *models.Market) error {
	if r.lookup(market.Key) == nil {
		return fmt.Errorf("market %s not found", market.Key)
	}
	r.stage(market)
	return nil
}

func (r *marketRepository) List(ctx context.Context, status *models.MarketStatus, limit int) ([]*models.Market, error) {
	var markets []*models.Market
	seen := make(map[models.MarketKey]bool)
	add := func(m *models.Market) {
		if status != nil && m.Status != *status {
			return
		}
		markets = append(markets, cloneMarket(m))
	}
	// Walked newest first; the stable sort keeps that order for equal timestamps
	for _, key := range reverse(r.cs.marketSeq) {
		seen[key] = true
		add(r.cs.markets[key])
	}
	for i := len(r.store.markets) - 1; i >= 0; i-- {
		m := &r.store.markets[i]
		if seen[m.Key] {
			continue
		}
		add(m)
	}
	sortMarketsNewestFirst(markets)
	if limit > 0 && len(markets) > limit {
		markets = markets[:limit]
	}
	return markets, nil
}

func reverse[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

type betRepository struct {
	store *Store
	cs    *changeSet
}

func (r *betRepository) lookup(key models.BetKey) *models.Bet {
	if b, ok := r.cs.bets[key]; ok {
		return b
	}
	if i, ok := r.store.betIdx[key]; ok {
		return &r.store.bets[i]
	}
	return nil
}

func (r *betRepository) stage(b *models.Bet) {
	if _, ok := r.cs.bets[b.Key]; !ok {
		r.cs.betSeq = append(r.cs.betSeq, b.Key)
	}
	r.cs.bets[b.Key] = cloneBet(b)
}

func (r *betRepository) Create(ctx context.Context, bet *models.Bet) error {
	if r.lookup(bet.Key) != nil {
		return models.ErrDuplicateCommitment
	}
	r.stage(bet)
	return nil
}

func (r *betRepository) GetByKey(ctx context.Context, key models.BetKey) (*models.Bet, error) {
	b := r.lookup(key)
	if b == nil {
		return nil, nil
	}
	return cloneBet(b), nil
}

func (r *betRepository) GetByKeyForUpdate(ctx context.Context, key models.BetKey) (*models.Bet, error) {
	return r.GetByKey(ctx, key)
}

func (r *betRepository) Update(ctx context.Context, bet *models.Bet) error {
	if r.lookup(bet.Key) == nil {
		return fmt.Errorf("bet %s not found", bet.Key)
	}
	r.stage(bet)
	return nil
}

func (r *betRepository) ListByMarket(ctx context.Context, market models.MarketKey) ([]*models.Bet, error) {
	var bets []*models.Bet
	for _, i := range r.store.betsByMarket[market] {
		key := r.store.bets[i].Key
		bets = append(bets, cloneBet(r.lookup(key)))
	}
	for _, key := range r.cs.betSeq {
		if _, committed := r.store.betIdx[key]; committed {
			continue
		}
		if b := r.cs.bets[key]; b.MarketKey == market {
			bets = append(bets, cloneBet(b))
		}
	}
	return bets, nil
}

type accountRepository struct {
	store *Store
	cs    *changeSet
}

func (r *accountRepository) lookup(p models.Principal) *models.Account {
	if a, ok := r.cs.accounts[p]; ok {
		return a
	}
	if i, ok := r.store.accountIdx[p]; ok {
		return &r.store.accounts[i]
	}
	return nil
}

func (r *accountRepository) stage(a models.Account) {
	if _, ok := r.cs.accounts[a.Principal]; !ok {
		r.cs.accountSeq = append(r.cs.accountSeq, a.Principal)
	}
	r.cs.accounts[a.Principal] = &a
}

func (r *accountRepository) GetByPrincipal(ctx context.Context, principal models.Principal) (*models.Account, error) {
	a := r.lookup(principal)
	if a == nil {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *accountRepository) GetByPrincipalForUpdate(ctx context.Context, principal models.Principal) (*models.Account, error) {
	return r.GetByPrincipal(ctx, principal)
}

func (r *accountRepository) Create(ctx context.Context, principal models.Principal, initialBalance uint64) (*models.Account, error) {
	if r.lookup(principal) != nil {
		return nil, models.ErrDuplicateAccount
	}
	now := time.Now().UTC()
	account := models.Account{
		Principal: principal,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.stage(account)
	return &account, nil
}

func (r *accountRepository) AddBalance(ctx context.Context, principal models.Principal, amount uint64) error {
	a := r.lookup(principal)
	if a == nil {
		return models.ErrAccountNotFound
	}
	updated := *a
	if updated.Balance+amount < updated.Balance {
		return fmt.Errorf("account balance: %w", models.ErrOverflow)
	}
	updated.Balance += amount
	updated.UpdatedAt = time.Now().UTC()
	r.stage(updated)
	return nil
}

func (r *accountRepository) DeductBalance(ctx context.Context, principal models.Principal, amount uint64) error {
	a := r.lookup(principal)
	if a == nil {
		return models.ErrAccountNotFound
	}
	if a.Balance < amount {
		return models.ErrInsufficientFunds
	}
	updated := *a
	updated.Balance -= amount
	updated.UpdatedAt = time.Now().UTC()
	r.stage(updated)
	return nil
}

type vaultRepository struct {
	store *Store
	cs    *changeSet
}

func (r *vaultRepository) lookup(key models.VaultKey) *models.Vault {
	if v, ok := r.cs.vaults[key]; ok {
		return v
	}
	if i, ok := r.store.vaultIdx[key]; ok {
		return &r.store.vaults[i]
	}
	return nil
}

func (r *vaultRepository) stage(v models.Vault) {
	if _, ok := r.cs.vaults[v.Key]; !ok {
		r.cs.vaultSeq = append(r.cs.vaultSeq, v.Key)
	}
	r.cs.vaults[v.Key] = &v
}

func (r *vaultRepository) Open(ctx context.Context, vault *models.Vault) error {
	if r.lookup(vault.Key) != nil {
		return fmt.Errorf("vault %s already exists", vault.Key)
	}
	r.stage(*vault)
	return nil
}

func (r *vaultRepository) GetByKeyForUpdate(ctx context.Context, key models.VaultKey) (*models.Vault, error) {
	v := r.lookup(key)
	if v == nil {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (r *vaultRepository) Credit(ctx context.Context, key models.VaultKey, amount uint64) error {
	v := r.lookup(key)
	if v == nil {
		return models.ErrVaultNotFound
	}
	updated := *v
	if updated.Balance+amount < updated.Balance {
		return fmt.Errorf("vault balance: %w", models.ErrOverflow)
	}
	updated.Balance += amount
	updated.UpdatedAt = time.Now().UTC()
	r.stage(updated)
	return nil
}

func (r *vaultRepository) Debit(ctx context.Context, key models.VaultKey, amount uint64) error {
	v := r.lookup(key)
	if v == nil {
		return models.ErrVaultNotFound
	}
	if v.Balance < amount {
		return models.ErrInsufficientPoolFunds
	}
	updated := *v
	updated.Balance -= amount
	updated.UpdatedAt = time.Now().UTC()
	r.stage(updated)
	return nil
}

type ledgerRepository struct {
	store *Store
	cs    *changeSet
}

func (r *ledgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.cs.ledger = append(r.cs.ledger, *cloneLedgerEntry(entry))
	return nil
}

func (r *ledgerRepository) ListByPrincipal(ctx context.Context, principal models.Principal, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	for i := len(r.cs.ledger) - 1; i >= 0; i-- {
		if r.cs.ledger[i].Principal == principal {
			entries = append(entries, cloneLedgerEntry(&r.cs.ledger[i]))
		}
	}
	for i := len(r.store.ledger) - 1; i >= 0; i-- {
		if r.store.ledger[i].Principal == principal {
			entries = append(entries, cloneLedgerEntry(&r.store.ledger[i]))
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
