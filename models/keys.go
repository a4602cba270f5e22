package models

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MaxPrincipalLength bounds the size of a principal identifier
const MaxPrincipalLength = 128

// Principal identifies a participant, creator or oracle
type Principal string

// Validate checks that the principal is usable as an identity
func (p Principal) Validate() error {
	if len(p) == 0 || len(p) > MaxPrincipalLength {
		return fmt.Errorf("principal length %d: %w", len(p), ErrInvalidPrincipal)
	}
	if strings.TrimSpace(string(p)) != string(p) {
		return fmt.Errorf("principal %q has surrounding whitespace: %w", string(p), ErrInvalidPrincipal)
	}
	return nil
}

// MarketKey is the derived address of a market record
type MarketKey [32]byte

// BetKey is the derived address of a bet record
type BetKey [32]byte

// VaultKey is the derived address of a market's escrow vault
type VaultKey [32]byte

// Seed tags for derived addresses
const (
	seedMarket     = "market"
	seedCommitment = "commitment"
	seedVault      = "vault"
	seedAuthority  = "vault_authority"
)

func deriveKey(tag string, parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(tag))
	for _, p := range parts {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(p)))
		h.Write(l[:])
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveMarketKey returns the address of the market with the given creator and id
func DeriveMarketKey(creator Principal, marketID uint64) MarketKey {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], marketID)
	return MarketKey(deriveKey(seedMarket, []byte(creator), id[:]))
}

// DeriveBetKey returns the address of a participant's bet in a market
func DeriveBetKey(market MarketKey, participant Principal) BetKey {
	return BetKey(deriveKey(seedCommitment, market[:], []byte(participant)))
}

// DeriveVaultKey returns the address of the market's escrow vault
func DeriveVaultKey(market MarketKey) VaultKey {
	return VaultKey(deriveKey(seedVault, market[:]))
}

// DeriveVaultAuthority returns the authority allowed to move funds out of the
// market's vault. Only the settlement path derives it.
func DeriveVaultAuthority(market MarketKey) [32]byte {
	return deriveKey(seedAuthority, market[:])
}

func (k MarketKey) String() string { return hex.EncodeToString(k[:]) }
func (k BetKey) String() string    { return hex.EncodeToString(k[:]) }
func (k VaultKey) String() string  { return hex.EncodeToString(k[:]) }

func parse32(s string) ([32]byte, error) {
	out, err := decode32(s)
	if err != nil {
		return out, fmt.Errorf("key %q: %w", s, ErrInvalidKey)
	}
	return out, nil
}

// ParseMarketKey parses a hex-encoded market key
func ParseMarketKey(s string) (MarketKey, error) {
	k, err := parse32(s)
	return MarketKey(k), err
}

// ParseBetKey parses a hex-encoded bet key
func ParseBetKey(s string) (BetKey, error) {
	k, err := parse32(s)
	return BetKey(k), err
}

// ParseVaultKey parses a hex-encoded vault key
func ParseVaultKey(s string) (VaultKey, error) {
	k, err := parse32(s)
	return VaultKey(k), err
}

func (k MarketKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k BetKey) MarshalText() ([]byte, error)    { return []byte(k.String()), nil }
func (k VaultKey) MarshalText() ([]byte, error)  { return []byte(k.String()), nil }

func (k *MarketKey) UnmarshalText(b []byte) error {
	parsed, err := ParseMarketKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k *BetKey) UnmarshalText(b []byte) error {
	parsed, err := ParseBetKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k *VaultKey) UnmarshalText(b []byte) error {
	parsed, err := ParseVaultKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
