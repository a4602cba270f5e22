package models

import (
	"fmt"
	"strings"
)

// Outcome is the binary result of a market question
type Outcome uint8

const (
	OutcomeNo  Outcome = 0
	OutcomeYes Outcome = 1
)

// ParseOutcome converts a raw wire value into an Outcome
func ParseOutcome(raw uint8) (Outcome, error) {
	switch Outcome(raw) {
	case OutcomeNo, OutcomeYes:
		return Outcome(raw), nil
	default:
		return 0, fmt.Errorf("outcome %d: %w", raw, ErrInvalidOutcome)
	}
}

// ParseOutcomeString accepts "yes"/"no" as well as "1"/"0"
func ParseOutcomeString(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "1":
		return OutcomeYes, nil
	case "no", "0":
		return OutcomeNo, nil
	default:
		return 0, fmt.Errorf("outcome %q: %w", s, ErrInvalidOutcome)
	}
}

// Byte returns the single-byte encoding used in commitments
func (o Outcome) Byte() byte {
	return byte(o)
}

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}
