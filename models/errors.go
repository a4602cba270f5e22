package models

import "errors"

// ErrorKind classifies a market error by how the caller should react to it
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindTemporal      ErrorKind = "temporal"
	KindIntegrity     ErrorKind = "integrity"
	KindAuthorization ErrorKind = "authorization"
	KindConflict      ErrorKind = "conflict"
	KindArithmetic    ErrorKind = "arithmetic"
	KindResource      ErrorKind = "resource"
	KindNotFound      ErrorKind = "not_found"
	KindInternal      ErrorKind = "internal"
)

// Error is a named failure condition of a market operation
type Error struct {
	Code    string
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code string, kind ErrorKind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// Validation errors
var (
	ErrQuestionTooLong  = newError("question_too_long", KindValidation, "question too long")
	ErrDeadlineInPast   = newError("deadline_in_past", KindValidation, "deadline must be in the future")
	ErrDeadlineTooFar   = newError("deadline_too_far", KindValidation, "deadline is beyond the supported range")
	ErrZeroBetAmount    = newError("zero_bet_amount", KindValidation, "bet amount must be greater than zero")
	ErrInvalidOutcome   = newError("invalid_outcome", KindValidation, "invalid outcome")
	ErrInvalidKey       = newError("invalid_key", KindValidation, "invalid record key")
	ErrInvalidPrincipal = newError("invalid_principal", KindValidation, "invalid principal")
)

// Temporal gate errors
var (
	ErrMarketNotExpired  = newError("market_not_expired", KindTemporal, "market deadline has not passed yet")
	ErrMarketExpired     = newError("market_expired", KindTemporal, "market deadline has already passed")
	ErrRevealPeriodEnded = newError("reveal_period_ended", KindTemporal, "reveal period has ended")
)

// Cryptographic integrity errors
var (
	ErrCommitmentMismatch = newError("commitment_mismatch", KindIntegrity, "commitment hash does not match")
)

// Authorization errors
var (
	ErrUnauthorizedResolver  = newError("unauthorized_resolver", KindAuthorization, "unauthorized resolver")
	ErrInvalidSigner         = newError("invalid_signer", KindAuthorization, "bet does not belong to caller")
	ErrInvalidMarketID       = newError("invalid_market_id", KindAuthorization, "bet does not belong to market")
	ErrInvalidVaultAuthority = newError("invalid_vault_authority", KindAuthorization, "vault authority does not match vault")
)

// State conflict errors
var (
	ErrMarketAlreadyResolved = newError("market_already_resolved", KindConflict, "market has already been resolved")
	ErrMarketNotResolved     = newError("market_not_resolved", KindConflict, "market is not resolved yet")
	ErrAlreadyRevealed       = newError("already_revealed", KindConflict, "bet has already been revealed")
	ErrNotRevealed           = newError("not_revealed", KindConflict, "bet has not been revealed yet")
	ErrDidNotWin             = newError("did_not_win", KindConflict, "bet did not win")
	ErrAlreadyClaimed        = newError("already_claimed", KindConflict, "winnings have already been claimed")
	ErrDuplicateMarket       = newError("duplicate_market", KindConflict, "market already exists for creator and market id")
	ErrDuplicateCommitment   = newError("duplicate_commitment", KindConflict, "participant already committed to this market")
	ErrDuplicateAccount      = newError("duplicate_account", KindConflict, "account already exists")
)

// Arithmetic errors
var (
	ErrOverflow = newError("overflow", KindArithmetic, "arithmetic overflow")
)

// Resource errors
var (
	ErrInsufficientPoolFunds = newError("insufficient_pool_funds", KindResource, "insufficient pool funds")
	ErrInsufficientFunds     = newError("insufficient_funds", KindResource, "insufficient account balance")
	ErrMarketBusy            = newError("market_busy", KindResource, "market is locked by another operation")
)

// Lookup errors
var (
	ErrMarketNotFound  = newError("market_not_found", KindNotFound, "market not found")
	ErrBetNotFound     = newError("bet_not_found", KindNotFound, "bet not found")
	ErrAccountNotFound = newError("account_not_found", KindNotFound, "account not found")
	ErrVaultNotFound   = newError("vault_not_found", KindNotFound, "vault not found")
)

// AsError extracts the market error wrapped in err, if any
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the market error wrapped in err, or KindInternal
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}
