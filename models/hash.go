package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a 32-byte commitment digest
type Hash [32]byte

// Salt is the 32-byte secret mixed into a commitment
type Salt [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }
func (s Salt) String() string { return hex.EncodeToString(s[:]) }

// ParseHash parses a hex-encoded commitment hash
func ParseHash(s string) (Hash, error) {
	b, err := decode32(s)
	if err != nil {
		return Hash{}, fmt.Errorf("commitment hash: %w", err)
	}
	return Hash(b), nil
}

// ParseSalt parses a hex-encoded salt
func ParseSalt(s string) (Salt, error) {
	b, err := decode32(s)
	if err != nil {
		return Salt{}, fmt.Errorf("salt: %w", err)
	}
	return Salt(b), nil
}

func decode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }
func (s Salt) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func (s *Salt) UnmarshalText(b []byte) error {
	parsed, err := ParseSalt(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
