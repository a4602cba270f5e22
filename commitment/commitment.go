// Package commitment implements the hash commitment that binds a hidden bet
// to its later reveal.
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"commitbet/models"
)

// Compute returns SHA-256(le64(amount) || outcome || salt)
func Compute(amount uint64, outcome models.Outcome, salt models.Salt) models.Hash {
	var preimage [8 + 1 + 32]byte
	binary.LittleEndian.PutUint64(preimage[:8], amount)
	preimage[8] = outcome.Byte()
	copy(preimage[9:], salt[:])
	return models.Hash(sha256.Sum256(preimage[:]))
}

// Verify reports whether hash commits to the given amount, outcome and salt
func Verify(hash models.Hash, amount uint64, outcome models.Outcome, salt models.Salt) bool {
	computed := Compute(amount, outcome, salt)
	return subtle.ConstantTimeCompare(computed[:], hash[:]) == 1
}

// NewSalt draws a fresh random salt
func NewSalt() (models.Salt, error) {
	var salt models.Salt
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
