package cmd

import (
	"fmt"
	"io"
	"strconv"

	"commitbet/commitment"
	"commitbet/models"
)

// PrintCommitment computes the commitment for a stake and writes the salt and hash.
// args are <amount> <yes|no> [salt-hex]; a random salt is drawn when none is given.
func PrintCommitment(w io.Writer, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: commitbet commitment <amount> <yes|no> [salt-hex]")
	}

	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	if amount == 0 {
		return models.ErrZeroBetAmount
	}

	outcome, err := models.ParseOutcomeString(args[1])
	if err != nil {
		return err
	}

	var salt models.Salt
	if len(args) == 3 {
		salt, err = models.ParseSalt(args[2])
		if err != nil {
			return err
		}
	} else {
		salt, err = commitment.NewSalt()
		if err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	hash := commitment.Compute(amount, outcome, salt)

	fmt.Fprintf(w, "amount:     %d\n", amount)
	fmt.Fprintf(w, "outcome:    %s (%d)\n", outcome, outcome.Byte())
	fmt.Fprintf(w, "salt:       %s\n", salt)
	fmt.Fprintf(w, "commitment: %s\n", hash)
	return nil
}
