package models

import (
	"time"
)

// Account represents a principal's spendable balance
type Account struct {
	Principal Principal `db:"principal"`
	Balance   uint64    `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Vault is the escrow account holding a market's staked funds
type Vault struct {
	Key       VaultKey  `db:"vault_key"`
	MarketKey MarketKey `db:"market_key"`
	Balance   uint64    `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
