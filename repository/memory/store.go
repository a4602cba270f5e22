// Package memory provides an in-process record store with serialized,
// all-or-nothing transactions.
package memory

import (
	"sort"
	"sync"

	"commitbet/models"
)

// Store holds committed records. Records live in append-only arenas and are
// addressed through key indexes.
type Store struct {
	mu sync.Mutex

	markets   []models.Market
	marketIdx map[models.MarketKey]int

	bets         []models.Bet
	betIdx       map[models.BetKey]int
	betsByMarket map[models.MarketKey][]int

	accounts   []models.Account
	accountIdx map[models.Principal]int

	vaults   []models.Vault
	vaultIdx map[models.VaultKey]int

	ledger       []models.LedgerEntry
	nextLedgerID int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		marketIdx:    make(map[models.MarketKey]int),
		betIdx:       make(map[models.BetKey]int),
		betsByMarket: make(map[models.MarketKey][]int),
		accountIdx:   make(map[models.Principal]int),
		vaultIdx:     make(map[models.VaultKey]int),
		nextLedgerID: 1,
	}
}

// changeSet is the copy-on-write overlay of one transaction
type changeSet struct {
	markets    map[models.MarketKey]*models.Market
	marketSeq  []models.MarketKey
	bets       map[models.BetKey]*models.Bet
	betSeq     []models.BetKey
	accounts   map[models.Principal]*models.Account
	accountSeq []models.Principal
	vaults     map[models.VaultKey]*models.Vault
	vaultSeq   []models.VaultKey
	ledger     []models.LedgerEntry
}

func newChangeSet() *changeSet {
	return &changeSet{
		markets:  make(map[models.MarketKey]*models.Market),
		bets:     make(map[models.BetKey]*models.Bet),
		accounts: make(map[models.Principal]*models.Account),
		vaults:   make(map[models.VaultKey]*models.Vault),
	}
}

// apply writes the overlay into the arenas. Caller holds s.mu.
func (s *Store) apply(cs *changeSet) {
	for _, key := range cs.marketSeq {
		m := *cs.markets[key]
		if i, ok := s.marketIdx[key]; ok {
			s.markets[i] = m
			continue
		}
		s.marketIdx[key] = len(s.markets)
		s.markets = append(s.markets, m)
	}
	for _, key := range cs.betSeq {
		b := *cs.bets[key]
		if i, ok := s.betIdx[key]; ok {
			s.bets[i] = b
			continue
		}
		s.betIdx[key] = len(s.bets)
		s.betsByMarket[b.MarketKey] = append(s.betsByMarket[b.MarketKey], len(s.bets))
		s.bets = append(s.bets, b)
	}
	for _, p := range cs.accountSeq {
		a := *cs.accounts[p]
		if i, ok := s.accountIdx[p]; ok {
			s.accounts[i] = a
			continue
		}
		s.accountIdx[p] = len(s.accounts)
		s.accounts = append(s.accounts, a)
	}
	for _, key := range cs.vaultSeq {
		v := *cs.vaults[key]
		if i, ok := s.vaultIdx[key]; ok {
			s.vaults[i] = v
			continue
		}
		s.vaultIdx[key] = len(s.vaults)
		s.vaults = append(s.vaults, v)
	}
	for _, e := range cs.ledger {
		e.ID = s.nextLedgerID
		s.nextLedgerID++
		s.ledger = append(s.ledger, e)
	}
}

// Counts returns the number of committed markets, bets and accounts
func (s *Store) Counts() (markets, bets, accounts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markets), len(s.bets), len(s.accounts)
}

func cloneMarket(m *models.Market) *models.Market {
	c := *m
	if m.Outcome != nil {
		o := *m.Outcome
		c.Outcome = &o
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

func cloneBet(b *models.Bet) *models.Bet {
	c := *b
	if b.RevealedOutcome != nil {
		o := *b.RevealedOutcome
		c.RevealedOutcome = &o
	}
	if b.RevealedSalt != nil {
		salt := *b.RevealedSalt
		c.RevealedSalt = &salt
	}
	if b.Payout != nil {
		p := *b.Payout
		c.Payout = &p
	}
	if b.RevealedAt != nil {
		t := *b.RevealedAt
		c.RevealedAt = &t
	}
	if b.ClaimedAt != nil {
		t := *b.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

func cloneLedgerEntry(e *models.LedgerEntry) *models.LedgerEntry {
	c := *e
	if e.TransactionMetadata != nil {
		c.TransactionMetadata = make(map[string]any, len(e.TransactionMetadata))
		for k, v := range e.TransactionMetadata {
			c.TransactionMetadata[k] = v
		}
	}
	if e.MarketKey != nil {
		k := *e.MarketKey
		c.MarketKey = &k
	}
	return &c
}

func sortMarketsNewestFirst(markets []*models.Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].CreatedAt.After(markets[j].CreatedAt)
	})
}
